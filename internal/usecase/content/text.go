package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// plainText lowercases s and strips HTML markup when s looks like it contains any.
func plainText(s string) string {
	if strings.ContainsRune(s, '<') {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.ToLower(s)
}

// matches reports whether every whitespace-separated term of q occurs in text.
func matches(text string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(text, t) {
			return false
		}
	}
	return true
}

func searchTerms(q string) []string {
	return strings.Fields(strings.ToLower(q))
}
