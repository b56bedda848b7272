package sitemap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Namespace is the sitemaps.org 0.9 schema.
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

const (
	header = xml.Header + `<urlset xmlns="` + Namespace + `">` + "\n"
	footer = "</urlset>\n"
)

type urlElement struct {
	XMLName    xml.Name `xml:"url"`
	Loc        string   `xml:"loc"`
	LastMod    string   `xml:"lastmod,omitempty"`
	ChangeFreq string   `xml:"changefreq,omitempty"`
	Priority   string   `xml:"priority,omitempty"`
}

// renderEntry is the exact byte form of one <url> line in the final document.
func renderEntry(e Entry) ([]byte, error) {
	el := urlElement{
		Loc:        e.Loc,
		ChangeFreq: string(e.ChangeFreq),
		Priority:   formatPriority(e.Priority),
	}
	if !e.LastMod.IsZero() {
		el.LastMod = e.LastMod.Format(DateLayout)
	}
	body, err := xml.Marshal(el)
	if err != nil {
		return nil, fmt.Errorf("marshal url %q: %w", e.Loc, err)
	}
	line := make([]byte, 0, len(body)+3)
	line = append(line, ' ', ' ')
	line = append(line, body...)
	return append(line, '\n'), nil
}

// formatPriority renders p with as many decimals as it needs and at least one.
func formatPriority(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// envelopeSize is the byte size of an empty urlset.
func envelopeSize() int { return len(header) + len(footer) }

// Encode writes the urlset document for entries.
func Encode(w io.Writer, entries []Entry) error {
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		line, err := renderEntry(e)
		if err != nil {
			return err
		}
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("write url: %w", err)
		}
	}
	if _, err := io.WriteString(w, footer); err != nil {
		return fmt.Errorf("write footer: %w", err)
	}
	return nil
}

// Marshal returns the urlset document for entries.
func Marshal(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
