// Package collection describes the content collections served by the API.
package collection

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/sitemap"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/slug"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Path template placeholders.
const (
	PlaceholderID    = "{id}"
	PlaceholderSlug  = "{slug}"
	PlaceholderValue = "{value}"
)

// Sitemap describes how a collection contributes URLs to the sitemap.
type Sitemap struct {
	Enabled bool
	// Path is a template such as "/blog/{id}" or "/firms/{slug}".
	Path       string
	ChangeFreq sitemap.ChangeFreq
	Priority   float64
	// DateField is read first for lastmod, then FallbackDateFields in order.
	DateField          string
	FallbackDateFields []string
	// IndexField groups documents by a field value (e.g. firm) into one extra page per distinct
	// value, at IndexPath with {value} replaced by the slugified value.
	IndexField      string
	IndexPath       string
	IndexPriority   float64
	IndexChangeFreq sitemap.ChangeFreq
}

// DateFields returns the lastmod lookup order.
func (s Sitemap) DateFields() []string {
	out := make([]string, 0, 1+len(s.FallbackDateFields))
	if s.DateField != "" {
		out = append(out, s.DateField)
	}
	return append(out, s.FallbackDateFields...)
}

// HasIndex reports whether grouped index pages are configured.
func (s Sitemap) HasIndex() bool { return s.IndexField != "" && s.IndexPath != "" }

// Params are the inputs of New.
type Params struct {
	Name         string
	File         string
	Singular     string
	Slug         slug.Rule
	Interactions bool
	Sitemap      Sitemap
}

// Collection is one configured content collection (immutable value object).
type Collection struct {
	name         string
	file         string
	singular     string
	slugRule     slug.Rule
	interactions bool
	sitemap      Sitemap
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("collection name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("collection name too long (max 64)")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("collection name must be alphanumeric with underscores and hyphens")
	}
	return nil
}

func validateSitemap(s Sitemap) error {
	if !s.Enabled {
		return nil
	}
	if !strings.HasPrefix(s.Path, "/") {
		return fmt.Errorf("sitemap path %q must start with /", s.Path)
	}
	if !strings.Contains(s.Path, PlaceholderID) && !strings.Contains(s.Path, PlaceholderSlug) {
		return fmt.Errorf("sitemap path %q needs %s or %s", s.Path, PlaceholderID, PlaceholderSlug)
	}
	if s.Priority < 0 || s.Priority > 1 {
		return fmt.Errorf("sitemap priority %v out of [0,1]", s.Priority)
	}
	if s.ChangeFreq != "" && !s.ChangeFreq.IsValid() {
		return fmt.Errorf("invalid sitemap changefreq %q", s.ChangeFreq)
	}
	if s.IndexField != "" {
		if !strings.HasPrefix(s.IndexPath, "/") || !strings.Contains(s.IndexPath, PlaceholderValue) {
			return fmt.Errorf("sitemap index path %q must start with / and contain %s", s.IndexPath, PlaceholderValue)
		}
		if s.IndexPriority < 0 || s.IndexPriority > 1 {
			return fmt.Errorf("sitemap index priority %v out of [0,1]", s.IndexPriority)
		}
		if s.IndexChangeFreq != "" && !s.IndexChangeFreq.IsValid() {
			return fmt.Errorf("invalid sitemap index changefreq %q", s.IndexChangeFreq)
		}
	}
	return nil
}

// New validates and creates a Collection. An empty slug rule means generic; an empty singular
// falls back to the name.
func New(p Params) (Collection, error) {
	if err := validateName(p.Name); err != nil {
		return Collection{}, err
	}
	if strings.TrimSpace(p.File) == "" {
		return Collection{}, fmt.Errorf("collection %s: file is required", p.Name)
	}
	if p.Slug == "" {
		p.Slug = slug.RuleGeneric
	}
	if !p.Slug.Valid() {
		return Collection{}, fmt.Errorf("collection %s: invalid slug rule %q", p.Name, p.Slug)
	}
	if p.Singular == "" {
		p.Singular = p.Name
	}
	if err := validateSitemap(p.Sitemap); err != nil {
		return Collection{}, fmt.Errorf("collection %s: %w", p.Name, err)
	}
	if p.Sitemap.Enabled && p.Slug == slug.RuleNone && strings.Contains(p.Sitemap.Path, PlaceholderSlug) {
		return Collection{}, fmt.Errorf("collection %s: sitemap path uses %s but slugs are disabled",
			p.Name, PlaceholderSlug)
	}

	return Collection{
		name:         p.Name,
		file:         p.File,
		singular:     p.Singular,
		slugRule:     p.Slug,
		interactions: p.Interactions,
		sitemap:      p.Sitemap,
	}, nil
}

// Name returns the collection name.
func (c Collection) Name() string { return c.name }

// File returns the backing file, relative to the data directory.
func (c Collection) File() string { return c.file }

// Singular returns the singular noun used in fallback slugs.
func (c Collection) Singular() string { return c.singular }

// SlugRule returns how slugs are derived.
func (c Collection) SlugRule() slug.Rule { return c.slugRule }

// Interactions reports whether items carry likes and comments.
func (c Collection) Interactions() bool { return c.interactions }

// Sitemap returns the sitemap settings.
func (c Collection) Sitemap() Sitemap { return c.sitemap }

// ExpandPath fills a path template with an id and slug. ok is false when a required value is empty.
func ExpandPath(template, id, slugValue string) (string, bool) {
	if strings.Contains(template, PlaceholderID) && id == "" {
		return "", false
	}
	if strings.Contains(template, PlaceholderSlug) && slugValue == "" {
		return "", false
	}
	r := strings.NewReplacer(PlaceholderID, id, PlaceholderSlug, slugValue)
	return r.Replace(template), true
}

// Registry is the ordered set of configured collections.
type Registry struct {
	order  []string
	byName map[string]Collection
}

// NewRegistry indexes cols by name, keeping their order. Duplicate names are rejected.
func NewRegistry(cols []Collection) (*Registry, error) {
	r := &Registry{byName: make(map[string]Collection, len(cols))}
	for _, c := range cols {
		if _, dup := r.byName[c.Name()]; dup {
			return nil, fmt.Errorf("duplicate collection name: %s", c.Name())
		}
		r.byName[c.Name()] = c
		r.order = append(r.order, c.Name())
	}
	return r, nil
}

// Get looks up a collection by name.
func (r *Registry) Get(name string) (Collection, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// All returns the collections in configuration order.
func (r *Registry) All() []Collection {
	out := make([]Collection, len(r.order))
	for i, n := range r.order {
		out[i] = r.byName[n]
	}
	return out
}

// Files maps collection names to their files.
func (r *Registry) Files() map[string]string {
	out := make(map[string]string, len(r.byName))
	for n, c := range r.byName {
		out[n] = c.File()
	}
	return out
}
