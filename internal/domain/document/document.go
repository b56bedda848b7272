package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Well-known field names.
const (
	FieldID   = "id"
	FieldSlug = "slug"
)

type field struct {
	key   string
	value json.RawMessage
}

// Document is one content record: an ordered JSON object whose raw field values are kept
// verbatim. A Document is immutable; With returns a modified copy.
type Document struct {
	fields []field
	index  map[string]int
}

// Parse decodes a single JSON object into a Document.
func Parse(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	doc, err := parseObject(dec)
	if err != nil {
		return Document{}, err
	}
	if _, err := dec.Token(); err == nil {
		return Document{}, fmt.Errorf("trailing data after object")
	}
	return doc, nil
}

// MustParse is Parse for literals known to be valid. Panics on error.
func MustParse(data string) Document {
	doc, err := Parse([]byte(data))
	if err != nil {
		panic(err)
	}
	return doc
}

func parseObject(dec *json.Decoder) (Document, error) {
	tok, err := dec.Token()
	if err != nil {
		return Document{}, fmt.Errorf("read object start: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Document{}, fmt.Errorf("expected object, got %v", tok)
	}

	doc := Document{index: make(map[string]int)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Document{}, fmt.Errorf("read key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return Document{}, fmt.Errorf("expected string key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Document{}, fmt.Errorf("read value of %q: %w", key, err)
		}
		doc.set(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return Document{}, fmt.Errorf("read object end: %w", err)
	}
	return doc, nil
}

func (d *Document) set(key string, raw json.RawMessage) {
	if i, ok := d.index[key]; ok {
		d.fields[i].value = raw
		return
	}
	d.index[key] = len(d.fields)
	d.fields = append(d.fields, field{key: key, value: raw})
}

// ID returns the identifier as a string. Integer ids keep their literal form ("42").
func (d Document) ID() string { return d.Scalar(FieldID) }

// Slug returns the slug field, or "" when absent.
func (d Document) Slug() string { return d.String(FieldSlug) }

// Has reports whether the field is present.
func (d Document) Has(key string) bool {
	_, ok := d.index[key]
	return ok
}

// Keys returns the field names in document order.
func (d Document) Keys() []string {
	keys := make([]string, len(d.fields))
	for i, f := range d.fields {
		keys[i] = f.key
	}
	return keys
}

// Raw returns the verbatim JSON of a field.
func (d Document) Raw(key string) (json.RawMessage, bool) {
	i, ok := d.index[key]
	if !ok {
		return nil, false
	}
	return d.fields[i].value, true
}

// String returns a string field, or "" when the field is absent or not a string.
func (d Document) String(key string) string {
	raw, ok := d.Raw(key)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Scalar returns a string or number field as text. Other kinds yield "".
func (d Document) Scalar(key string) string {
	raw, ok := d.Raw(key)
	if !ok {
		return ""
	}
	switch v := decodeValue(raw).(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Value decodes a field. Numbers are returned as json.Number.
func (d Document) Value(key string) (any, bool) {
	raw, ok := d.Raw(key)
	if !ok {
		return nil, false
	}
	return decodeValue(raw), true
}

// With returns a copy of the document with key set to v. Existing keys keep their position,
// new keys are appended.
func (d Document) With(key string, v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Document{}, fmt.Errorf("marshal %q: %w", key, err)
	}
	out := Document{
		fields: make([]field, len(d.fields), len(d.fields)+1),
		index:  make(map[string]int, len(d.fields)+1),
	}
	copy(out.fields, d.fields)
	for k, i := range d.index {
		out.index[k] = i
	}
	out.set(key, raw)
	return out, nil
}

// Text returns every string value in the document, recursively, joined by newlines.
func (d Document) Text() string {
	var sb strings.Builder
	for _, f := range d.fields {
		collectText(&sb, decodeValue(f.value))
	}
	return sb.String()
}

func collectText(sb *strings.Builder, v any) {
	switch t := v.(type) {
	case string:
		sb.WriteString(t)
		sb.WriteByte('\n')
	case []any:
		for _, e := range t {
			collectText(sb, e)
		}
	case map[string]any:
		for _, e := range t {
			collectText(sb, e)
		}
	}
}

// MarshalJSON writes the fields in document order with their original values.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, f.key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		buf.Write(f.value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeKey appends key as a JSON string without HTML escaping.
func writeKey(buf *bytes.Buffer, key string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(key); err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	buf.Truncate(buf.Len() - 1) // Encode appends a newline
	return nil
}

// UnmarshalJSON parses an object, keeping field order.
func (d *Document) UnmarshalJSON(data []byte) error {
	doc, err := Parse(data)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}

func decodeValue(raw json.RawMessage) any {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}
