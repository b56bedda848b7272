// Package slug derives URL-safe identifiers from free text and keeps them unique within one
// collection.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultMaxWords is the word cap applied to item names and titles.
	DefaultMaxWords = 10
	// QuestionWords is how many words of a question's text feed its slug.
	QuestionWords = 5
	// FirmChars is how many characters of a firm name feed a question slug.
	FirmChars = 30
	// MaxQuestionLen caps a question slug, in bytes.
	MaxQuestionLen = 100
)

var (
	separatorRun = regexp.MustCompile(`[\s_]+`)
	hyphenRun    = regexp.MustCompile(`-+`)
)

// Slugify lowercases text, transliterates it to ASCII and joins its words with hyphens, keeping
// at most maxWords hyphen-separated pieces. maxWords <= 0 keeps every piece. Empty text gives "".
func Slugify(text string, maxWords int) string {
	if text == "" {
		return ""
	}

	s := strings.ToLower(toASCII(text))
	s = strings.Map(keepSlugRune, s)
	s = separatorRun.ReplaceAllString(s, "-")

	pieces := strings.Split(s, "-")
	if maxWords > 0 && len(pieces) > maxWords {
		pieces = pieces[:maxWords]
	}
	s = strings.Join(pieces, "-")
	s = hyphenRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Question builds the slug of an interview question: its first five words, then the first
// thirty characters of the firm name, cut to MaxQuestionLen.
func Question(question, firm string) string {
	words := strings.Fields(question)
	if len(words) > QuestionWords {
		words = words[:QuestionWords]
	}
	s := Slugify(strings.Join(words, " "), DefaultMaxWords)

	firm = strings.TrimSpace(firm)
	if firm != "" {
		s = s + "-" + Slugify(firstRunes(firm, FirmChars), DefaultMaxWords)
	}

	if len(s) > MaxQuestionLen {
		s = s[:MaxQuestionLen]
	}
	return s
}

// Fallback is the slug of a document with no usable text.
func Fallback(singular, id string) string {
	return singular + "-" + id
}

func toASCII(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// keepSlugRune drops everything outside ASCII letters, digits, underscore, hyphen and whitespace.
func keepSlugRune(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return r
	case r == '_', r == '-':
		return r
	case unicode.IsSpace(r):
		return r
	default:
		return -1
	}
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
