// Package interaction models reader interactions with content items: likes and comments.
package interaction

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain"
)

const (
	// AnonymousName is used when a comment is posted without a name.
	AnonymousName = "Anonymous"
	// DateLayout is the comment date format.
	DateLayout = "2006-01-02"

	maxNameLen = 100
	maxTextLen = 5000
)

// Comment is one reader comment on an item.
type Comment struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Text string `json:"text"`
	Date string `json:"date"`
}

// NewComment validates and normalizes a comment. Text is required; a blank name becomes
// AnonymousName; the date is the calendar day of now.
func NewComment(id, name, text string, now time.Time) (Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, fmt.Errorf("%w: comment text is required", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > maxTextLen {
		return Comment{}, fmt.Errorf("%w: comment text too long (max %d)", domain.ErrInvalidInput, maxTextLen)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = AnonymousName
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return Comment{}, fmt.Errorf("%w: name too long (max %d)", domain.ErrInvalidInput, maxNameLen)
	}
	return Comment{ID: id, Name: name, Text: text, Date: now.Format(DateLayout)}, nil
}

// Record is the interaction state of one item. Likes never go below zero.
type Record struct {
	Likes    int       `json:"likes"`
	Comments []Comment `json:"comments,omitempty"`
}

// CommentCount returns the number of comments.
func (r Record) CommentCount() int { return len(r.Comments) }

// Summary is what list views show for an item.
type Summary struct {
	Likes        int
	CommentCount int
}

// Summary returns the list-view counters of r.
func (r Record) Summary() Summary {
	return Summary{Likes: r.Likes, CommentCount: len(r.Comments)}
}

// Ledger maps item ids to their records. It is persisted as one unit.
type Ledger map[string]Record

// Summaries returns the list-view counters of every item.
func (l Ledger) Summaries() map[string]Summary {
	out := make(map[string]Summary, len(l))
	for id, r := range l {
		out[id] = r.Summary()
	}
	return out
}

// Clone returns a deep copy.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for id, r := range l {
		if r.Comments != nil {
			r.Comments = append([]Comment(nil), r.Comments...)
		}
		out[id] = r
	}
	return out
}

// Op names a ledger mutation.
type Op string

// Ledger mutations.
const (
	OpLike    Op = "like"
	OpUnlike  Op = "unlike"
	OpComment Op = "comment"
)

// Outcome is the result of a like or unlike that did not fail.
type Outcome struct {
	ItemID string `json:"-"`
	Likes  int    `json:"likes"`
	// Changed is false when the mutation was a no-op (unlike at zero) and nothing was persisted.
	Changed bool `json:"-"`
}

// ValidateItemID rejects ids that cannot key a ledger record.
func ValidateItemID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: item id is required", domain.ErrInvalidInput)
	}
	if len(id) > 256 {
		return fmt.Errorf("%w: item id too long", domain.ErrInvalidInput)
	}
	return nil
}
