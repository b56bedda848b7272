package collection

import (
	"strings"
	"testing"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/sitemap"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/slug"
)

func blogParams() Params {
	return Params{
		Name:         "blog",
		File:         "blog_posts.json",
		Singular:     "post",
		Interactions: true,
		Sitemap: Sitemap{
			Enabled:    true,
			Path:       "/blog/{id}",
			ChangeFreq: sitemap.Monthly,
			Priority:   0.8,
			DateField:  "date",
		},
	}
}

func TestNew_Valid(t *testing.T) {
	col, err := New(blogParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if col.Name() != "blog" {
		t.Errorf("Name() = %q, want blog", col.Name())
	}
	if col.SlugRule() != slug.RuleGeneric {
		t.Errorf("SlugRule() = %q, want generic default", col.SlugRule())
	}
	if !col.Interactions() {
		t.Error("Interactions() = false, want true")
	}
	if col.Singular() != "post" {
		t.Errorf("Singular() = %q", col.Singular())
	}
}

func TestNew_SingularDefaultsToName(t *testing.T) {
	p := blogParams()
	p.Singular = ""
	col, err := New(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if col.Singular() != "blog" {
		t.Errorf("Singular() = %q, want blog", col.Singular())
	}
}

func TestNew_InvalidNames(t *testing.T) {
	for _, name := range []string{"", "has space", "col/name", strings.Repeat("a", 65)} {
		p := blogParams()
		p.Name = name
		if _, err := New(p); err == nil {
			t.Errorf("expected error for name %q", name)
		}
	}
}

func TestNew_InvalidParams(t *testing.T) {
	tests := map[string]func(*Params){
		"no file":           func(p *Params) { p.File = " " },
		"bad slug rule":     func(p *Params) { p.Slug = "random" },
		"relative path":     func(p *Params) { p.Sitemap.Path = "blog/{id}" },
		"no placeholder":    func(p *Params) { p.Sitemap.Path = "/blog" },
		"priority too high": func(p *Params) { p.Sitemap.Priority = 1.5 },
		"bad changefreq":    func(p *Params) { p.Sitemap.ChangeFreq = "sometimes" },
		"bad index path":    func(p *Params) { p.Sitemap.IndexField = "firm"; p.Sitemap.IndexPath = "/firm" },
		"slug path without slugs": func(p *Params) {
			p.Slug = slug.RuleNone
			p.Sitemap.Path = "/blog/{slug}"
		},
	}
	for name, mutate := range tests {
		p := blogParams()
		mutate(&p)
		if _, err := New(p); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestNew_DisabledSitemapSkipsValidation(t *testing.T) {
	p := blogParams()
	p.Sitemap = Sitemap{Path: "nonsense"}
	if _, err := New(p); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSitemap_DateFields(t *testing.T) {
	s := Sitemap{DateField: "date", FallbackDateFields: []string{"updated_at", "created_at"}}
	got := strings.Join(s.DateFields(), ",")
	if got != "date,updated_at,created_at" {
		t.Errorf("DateFields() = %q", got)
	}
	if (Sitemap{FallbackDateFields: []string{"x"}}).DateFields()[0] != "x" {
		t.Error("empty DateField must be skipped")
	}
}

func TestExpandPath(t *testing.T) {
	if p, ok := ExpandPath("/blog/{id}", "7", ""); !ok || p != "/blog/7" {
		t.Errorf("got %q, %v", p, ok)
	}
	if p, ok := ExpandPath("/firms/{slug}", "1", "jane-street"); !ok || p != "/firms/jane-street" {
		t.Errorf("got %q, %v", p, ok)
	}
	if _, ok := ExpandPath("/firms/{slug}", "1", ""); ok {
		t.Error("missing slug must fail")
	}
	if _, ok := ExpandPath("/blog/{id}", "", "x"); ok {
		t.Error("missing id must fail")
	}
}

func TestRegistry(t *testing.T) {
	blog, _ := New(blogParams())
	firms, err := New(Params{Name: "firms", File: "firms.json", Singular: "firm"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, err := NewRegistry([]Collection{blog, firms})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if all := r.All(); len(all) != 2 || all[0].Name() != "blog" || all[1].Name() != "firms" {
		t.Errorf("unexpected order: %v", all)
	}
	if _, ok := r.Get("firms"); !ok {
		t.Error("expected firms")
	}
	if r.Files()["blog"] != "blog_posts.json" {
		t.Errorf("unexpected files: %v", r.Files())
	}

	if _, err := NewRegistry([]Collection{blog, blog}); err == nil {
		t.Error("expected duplicate error")
	}
}
