package content

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain"
	domcol "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/collection"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/document"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/interaction"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/slug"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/validation"
)

// Fields added to documents of interaction-enabled collections.
const (
	FieldLikes        = "likes"
	FieldCommentCount = "comment_count"
	FieldComments     = "comments"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// ListQuery filters a collection listing. Zero Limit returns everything after Offset.
type ListQuery struct {
	Query  string `json:"q" validate:"max=200"`
	ID     string `json:"id" validate:"max=256"`
	Slug   string `json:"slug" validate:"max=256"`
	Offset int    `json:"offset" validate:"min=0"`
	Limit  int    `json:"limit" validate:"min=0,max=1000"`
}

// Page is one window of a filtered listing.
type Page struct {
	Items []document.Document
	// Total counts matches before Offset and Limit apply.
	Total int
}

// SearchQuery is a substring scan across collections.
type SearchQuery struct {
	Query      string `json:"q" validate:"required,max=200"`
	Collection string `json:"collection" validate:"max=64"`
	Limit      int    `json:"limit" validate:"min=0,max=100"`
}

// Hit is one search match.
type Hit struct {
	Collection string            `json:"collection"`
	Item       document.Document `json:"item"`
}

// Service serves read-only content with live interaction data merged in.
type Service struct {
	docs    DocumentSource
	ledger  InteractionReader
	catalog Catalog
	logger  *zap.Logger
}

// New creates a content service. ledger can be nil when no collection has interactions.
func New(docs DocumentSource, ledger InteractionReader, catalog Catalog, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{docs: docs, ledger: ledger, catalog: catalog, logger: logger}
}

// List returns the filtered, windowed documents of a collection.
func (s *Service) List(ctx context.Context, name string, q ListQuery) (Page, error) {
	if err := validation.Struct(q); err != nil {
		return Page{}, err
	}
	col, docs, err := s.load(ctx, name)
	if err != nil {
		return Page{}, err
	}

	terms := searchTerms(q.Query)
	matched := make([]document.Document, 0, len(docs))
	for _, d := range docs {
		if q.ID != "" && d.ID() != q.ID {
			continue
		}
		if q.Slug != "" && d.Slug() != q.Slug {
			continue
		}
		if len(terms) > 0 && !matches(plainText(d.Text()), terms) {
			continue
		}
		matched = append(matched, d)
	}

	total := len(matched)
	start := min(q.Offset, total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}
	items := matched[start:end]

	if col.Interactions() {
		items = s.withSummaries(ctx, items)
	}
	return Page{Items: items, Total: total}, nil
}

// Get returns one document, looked up by id first and then by slug.
func (s *Service) Get(ctx context.Context, name, idOrSlug string) (document.Document, error) {
	col, docs, err := s.load(ctx, name)
	if err != nil {
		return document.Document{}, err
	}
	for _, d := range docs {
		if d.ID() == idOrSlug {
			return s.withRecord(ctx, col, d), nil
		}
	}
	for _, d := range docs {
		if d.Slug() == idOrSlug {
			return s.withRecord(ctx, col, d), nil
		}
	}
	return document.Document{}, fmt.Errorf("%s %q: %w", col.Singular(), idOrSlug, domain.ErrDocumentNotFound)
}

// GetBySlug returns one document by slug only.
func (s *Service) GetBySlug(ctx context.Context, name, slugValue string) (document.Document, error) {
	col, docs, err := s.load(ctx, name)
	if err != nil {
		return document.Document{}, err
	}
	for _, d := range docs {
		if d.Slug() == slugValue {
			return s.withRecord(ctx, col, d), nil
		}
	}
	return document.Document{}, fmt.Errorf("%s slug %q: %w", col.Singular(), slugValue, domain.ErrDocumentNotFound)
}

// Search scans every collection (or one, when named) for documents containing all query terms.
// Hits follow collection order, then document order.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]Hit, error) {
	if err := validation.Struct(q); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit == 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	cols := s.catalog.All()
	if q.Collection != "" {
		col, ok := s.catalog.Get(q.Collection)
		if !ok {
			return nil, fmt.Errorf("collection %q: %w", q.Collection, domain.ErrCollectionNotFound)
		}
		cols = []domcol.Collection{col}
	}

	terms := searchTerms(q.Query)
	hits := make([]Hit, 0)
	for _, col := range cols {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		for _, d := range s.withSlugs(col, s.docs.Load(ctx, col.Name())) {
			if !matches(plainText(d.Text()), terms) {
				continue
			}
			hits = append(hits, Hit{Collection: col.Name(), Item: d})
			if len(hits) >= limit {
				return hits, nil
			}
		}
	}
	return hits, nil
}

// Collection resolves a configured collection by name.
func (s *Service) Collection(name string) (domcol.Collection, error) {
	col, ok := s.catalog.Get(name)
	if !ok {
		return domcol.Collection{}, fmt.Errorf("collection %q: %w", name, domain.ErrCollectionNotFound)
	}
	return col, nil
}

func (s *Service) load(ctx context.Context, name string) (domcol.Collection, []document.Document, error) {
	col, err := s.Collection(name)
	if err != nil {
		return domcol.Collection{}, nil, err
	}
	return col, s.withSlugs(col, s.docs.Load(ctx, name)), nil
}

// withSlugs assigns slugs in memory to documents lacking one. The file is not rewritten.
func (s *Service) withSlugs(col domcol.Collection, docs []document.Document) []document.Document {
	if col.SlugRule() == slug.RuleNone {
		return docs
	}
	out, _ := slug.Backfill(docs, col.SlugRule(), col.Singular())
	return out
}

// withSummaries adds likes and comment_count to list items.
func (s *Service) withSummaries(ctx context.Context, docs []document.Document) []document.Document {
	sums := map[string]interaction.Summary{}
	if s.ledger != nil {
		got, err := s.ledger.Summaries(ctx)
		if err != nil {
			s.logger.Warn("Interaction summaries unavailable", zap.Error(err))
		} else {
			sums = got
		}
	}

	out := make([]document.Document, len(docs))
	for i, d := range docs {
		sum := sums[d.ID()]
		out[i] = s.set(s.set(d, FieldLikes, sum.Likes), FieldCommentCount, sum.CommentCount)
	}
	return out
}

// withRecord adds likes and the full comment list to a detail view.
func (s *Service) withRecord(ctx context.Context, col domcol.Collection, d document.Document) document.Document {
	if !col.Interactions() {
		return d
	}
	var rec interaction.Record
	if s.ledger != nil && d.ID() != "" {
		got, err := s.ledger.Get(ctx, d.ID())
		if err != nil {
			s.logger.Warn("Interaction record unavailable", zap.String("item_id", d.ID()), zap.Error(err))
		} else {
			rec = got
		}
	}
	comments := rec.Comments
	if comments == nil {
		comments = []interaction.Comment{}
	}
	return s.set(s.set(d, FieldLikes, rec.Likes), FieldComments, comments)
}

func (s *Service) set(d document.Document, key string, v any) document.Document {
	out, err := d.With(key, v)
	if err != nil {
		s.logger.Error("Enrich document", zap.String("field", key), zap.Error(err))
		return d
	}
	return out
}
