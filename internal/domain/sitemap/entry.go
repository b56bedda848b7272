// Package sitemap builds bounded sitemaps.org URL sets from content collections.
package sitemap

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ChangeFreq is the sitemaps.org change frequency hint.
type ChangeFreq string

// Change frequencies.
const (
	Always  ChangeFreq = "always"
	Hourly  ChangeFreq = "hourly"
	Daily   ChangeFreq = "daily"
	Weekly  ChangeFreq = "weekly"
	Monthly ChangeFreq = "monthly"
	Yearly  ChangeFreq = "yearly"
	Never   ChangeFreq = "never"
)

// IsValid checks if the change frequency is one of the protocol values.
func (f ChangeFreq) IsValid() bool {
	switch f {
	case Always, Hourly, Daily, Weekly, Monthly, Yearly, Never:
		return true
	default:
		return false
	}
}

// ParseChangeFreq parses a case-insensitive change frequency.
func ParseChangeFreq(s string) (ChangeFreq, error) {
	f := ChangeFreq(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", fmt.Errorf("unknown changefreq %q", s)
	}
	return f, nil
}

// Entry is one admitted URL.
type Entry struct {
	Loc        string
	LastMod    time.Time
	Priority   float64
	ChangeFreq ChangeFreq
}

// Candidate is a URL proposed for the sitemap, before budgeting.
type Candidate struct {
	// Path is the site-relative path, unescaped.
	Path string
	// Dates are raw date values in priority order; the first parseable one wins.
	Dates      []any
	Priority   float64
	ChangeFreq ChangeFreq
}

// EscapePath percent-encodes each path segment, keeping the separators. The result always starts
// with "/".
func EscapePath(p string) string {
	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(segments, "/")
}

// JoinURL joins a base URL and an unescaped path.
func JoinURL(base, p string) string {
	return strings.TrimRight(base, "/") + EscapePath(p)
}

func clampPriority(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
