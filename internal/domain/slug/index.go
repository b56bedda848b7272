package slug

import (
	"strconv"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/document"
)

// Index is the set of slugs already taken within one collection during one pass.
type Index struct {
	seen map[string]struct{}
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{seen: make(map[string]struct{})}
}

// Add marks s as taken. Empty slugs are ignored.
func (i *Index) Add(s string) {
	if s != "" {
		i.seen[s] = struct{}{}
	}
}

// Contains reports whether s is taken.
func (i *Index) Contains(s string) bool {
	_, ok := i.seen[s]
	return ok
}

// Assign returns base if it is free, otherwise base-1, base-2, ... (the smallest free suffix).
// The returned slug is recorded before Assign returns.
func (i *Index) Assign(base string) string {
	if base == "" {
		return ""
	}
	candidate := base
	for n := 1; i.Contains(candidate); n++ {
		candidate = base + "-" + strconv.Itoa(n)
	}
	i.Add(candidate)
	return candidate
}

// Rule selects how a collection derives slugs from its documents.
type Rule string

// Slug rules.
const (
	RuleNone     Rule = "none"
	RuleGeneric  Rule = "generic"
	RuleQuestion Rule = "question"
)

// Valid reports whether r is a known rule.
func (r Rule) Valid() bool {
	switch r {
	case RuleNone, RuleGeneric, RuleQuestion:
		return true
	default:
		return false
	}
}

// genericSources are tried in order for generic items.
var genericSources = []string{"name", "title", "question"}

// Derive returns the base slug of doc under r, before uniqueness is resolved.
func (r Rule) Derive(doc document.Document) string {
	switch r {
	case RuleGeneric:
		for _, key := range genericSources {
			if s := Slugify(doc.String(key), DefaultMaxWords); s != "" {
				return s
			}
		}
		return ""
	case RuleQuestion:
		return Question(doc.String("question"), doc.String("firm"))
	default:
		return ""
	}
}

// Backfill assigns a unique slug to every document lacking one. Slugs already present seed the
// index, so they never change. Returns the updated documents and how many were assigned.
// docs is not modified.
func Backfill(docs []document.Document, rule Rule, singular string) ([]document.Document, int) {
	idx := NewIndex()
	for _, d := range docs {
		idx.Add(d.Slug())
	}
	return assign(docs, rule, singular, idx, func(d document.Document) bool { return d.Slug() == "" })
}

// Regenerate recomputes every slug from scratch, in document order.
func Regenerate(docs []document.Document, rule Rule, singular string) ([]document.Document, int) {
	return assign(docs, rule, singular, NewIndex(), func(document.Document) bool { return true })
}

func assign(
	docs []document.Document, rule Rule, singular string, idx *Index,
	needs func(document.Document) bool,
) ([]document.Document, int) {
	out := make([]document.Document, len(docs))
	copy(out, docs)
	if rule == RuleNone || rule == "" {
		return out, 0
	}

	changed := 0
	for i, d := range out {
		if !needs(d) {
			continue
		}
		base := rule.Derive(d)
		if base == "" && d.ID() != "" {
			base = Fallback(singular, d.ID())
		}
		s := idx.Assign(base)
		if s == "" || s == d.Slug() {
			continue
		}
		updated, err := d.With(document.FieldSlug, s)
		if err != nil {
			continue
		}
		out[i] = updated
		changed++
	}
	return out, changed
}
