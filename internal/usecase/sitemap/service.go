package sitemap

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	domcol "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/collection"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/document"
	domsitemap "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/sitemap"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/slug"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/metrics"
)

const defaultConcurrency = 4

// StaticPage is a fixed site path listed before any collection.
type StaticPage struct {
	Path       string
	Priority   float64
	ChangeFreq domsitemap.ChangeFreq
}

// Config holds sitemap generation settings.
type Config struct {
	BaseURL string
	Limits  domsitemap.Limits
	Exclude []string
	Static  []StaticPage
	// CacheTTL keeps a generated document for reuse. Zero disables caching.
	CacheTTL time.Duration
	// Concurrency bounds parallel collection loads.
	Concurrency int
}

// Document is a generated sitemap.
type Document struct {
	XML         []byte
	Result      domsitemap.Result
	GeneratedAt time.Time
}

// Service generates the sitemap from every configured collection.
type Service struct {
	docs    DocumentSource
	catalog Catalog
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time

	group  singleflight.Group
	mu     sync.Mutex
	cached *Document
}

// New creates a sitemap service.
func New(docs DocumentSource, catalog Catalog, cfg Config, logger *zap.Logger) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{docs: docs, catalog: catalog, cfg: cfg, logger: logger, now: time.Now}
}

// WithClock overrides the generation clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns a cached sitemap when still fresh, otherwise generates one. Concurrent callers
// share a single generation, which runs detached from any one caller's context; a caller
// whose context ends stops waiting without failing the others.
func (s *Service) Get(ctx context.Context) (*Document, error) {
	if doc := s.fresh(); doc != nil {
		return doc, nil
	}
	genCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan("sitemap", func() (any, error) {
		if doc := s.fresh(); doc != nil {
			return doc, nil
		}
		doc, err := s.Generate(genCtx)
		if err != nil {
			return nil, err
		}
		if s.cfg.CacheTTL > 0 {
			s.mu.Lock()
			s.cached = doc
			s.mu.Unlock()
		}
		return doc, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("sitemap: %w", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err //nolint:wrapcheck // already wrapped by Generate
		}
		return r.Val.(*Document), nil //nolint:forcetypeassert // only *Document is stored
	}
}

func (s *Service) fresh() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil || s.now().Sub(s.cached.GeneratedAt) >= s.cfg.CacheTTL {
		return nil
	}
	return s.cached
}

// Generate builds a new sitemap, ignoring the cache.
func (s *Service) Generate(ctx context.Context) (*Document, error) {
	now := s.now()
	candidates, err := s.Candidates(ctx)
	if err != nil {
		return nil, err
	}

	res := domsitemap.Build(candidates, domsitemap.Options{
		BaseURL: s.cfg.BaseURL,
		Limits:  s.cfg.Limits,
		Now:     now,
		Exclude: s.cfg.Exclude,
	})
	xml, err := domsitemap.Marshal(res.Entries)
	if err != nil {
		return nil, fmt.Errorf("encode sitemap: %w", err)
	}

	metrics.SitemapEntries.Set(float64(len(res.Entries)))
	metrics.SitemapBytes.Set(float64(len(xml)))
	for a, n := range res.Stats {
		if a != domsitemap.Admitted && n > 0 {
			metrics.SitemapDroppedTotal.WithLabelValues(a.String()).Add(float64(n))
		}
	}
	if dropped := res.Stats[domsitemap.OverBytes] + res.Stats[domsitemap.OverCount]; dropped > 0 {
		s.logger.Warn("Sitemap budget reached",
			zap.Int("entries", len(res.Entries)),
			zap.Int("over_bytes", res.Stats[domsitemap.OverBytes]),
			zap.Int("over_count", res.Stats[domsitemap.OverCount]),
		)
	}

	return &Document{XML: xml, Result: res, GeneratedAt: now}, nil
}

// WriteFile generates a sitemap and writes it to path atomically.
func (s *Service) WriteFile(ctx context.Context, path string) (*Document, error) {
	doc, err := s.Generate(ctx)
	if err != nil {
		return nil, err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(doc.XML)); err != nil {
		return nil, fmt.Errorf("write sitemap %s: %w", path, err)
	}
	return doc, nil
}

// Candidates returns every proposed URL in traversal order: static pages, then each collection's
// items followed by its grouped index pages.
func (s *Service) Candidates(ctx context.Context) ([]domsitemap.Candidate, error) {
	cols := s.catalog.All()
	perCol := make([][]domsitemap.Candidate, len(cols))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, col := range cols {
		if !col.Sitemap().Enabled {
			continue
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err //nolint:wrapcheck // wrapped below
			}
			perCol[i] = collectionCandidates(col, s.docs.Load(gCtx, col.Name()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load collections: %w", err)
	}

	out := make([]domsitemap.Candidate, 0, len(s.cfg.Static))
	for _, p := range s.cfg.Static {
		out = append(out, domsitemap.Candidate{Path: p.Path, Priority: p.Priority, ChangeFreq: p.ChangeFreq})
	}
	for _, c := range perCol {
		out = append(out, c...)
	}
	return out, nil
}

func collectionCandidates(col domcol.Collection, docs []document.Document) []domsitemap.Candidate {
	sm := col.Sitemap()
	if col.SlugRule() != slug.RuleNone {
		docs, _ = slug.Backfill(docs, col.SlugRule(), col.Singular())
	}
	fields := sm.DateFields()

	out := make([]domsitemap.Candidate, 0, len(docs))
	for _, d := range docs {
		p, ok := domcol.ExpandPath(sm.Path, d.ID(), d.Slug())
		if !ok {
			continue
		}
		out = append(out, domsitemap.Candidate{
			Path:       p,
			Dates:      dates(d, fields),
			Priority:   sm.Priority,
			ChangeFreq: sm.ChangeFreq,
		})
	}
	if sm.HasIndex() {
		out = append(out, indexCandidates(sm, docs, fields)...)
	}
	return out
}

// indexCandidates emits one page per distinct IndexField value, in first-seen order. The lastmod
// is the most recent date among the grouped documents.
func indexCandidates(sm domcol.Sitemap, docs []document.Document, fields []string) []domsitemap.Candidate {
	type group struct {
		path   string
		latest time.Time
	}
	var order []string
	groups := make(map[string]*group)

	for _, d := range docs {
		value := strings.TrimSpace(d.String(sm.IndexField))
		key := slug.Slugify(value, slug.DefaultMaxWords)
		if key == "" {
			continue
		}
		grp, ok := groups[key]
		if !ok {
			grp = &group{path: strings.ReplaceAll(sm.IndexPath, domcol.PlaceholderValue, key)}
			groups[key] = grp
			order = append(order, key)
		}
		for _, v := range dates(d, fields) {
			if t, ok := domsitemap.ParseDate(v); ok {
				if t.After(grp.latest) {
					grp.latest = t
				}
				break
			}
		}
	}

	out := make([]domsitemap.Candidate, 0, len(order))
	for _, key := range order {
		grp := groups[key]
		var ds []any
		if !grp.latest.IsZero() {
			ds = []any{grp.latest}
		}
		out = append(out, domsitemap.Candidate{
			Path:       grp.path,
			Dates:      ds,
			Priority:   sm.IndexPriority,
			ChangeFreq: sm.IndexChangeFreq,
		})
	}
	return out
}

func dates(d document.Document, fields []string) []any {
	var out []any
	for _, f := range fields {
		if v, ok := d.Value(f); ok && v != nil {
			out = append(out, v)
		}
	}
	return out
}
