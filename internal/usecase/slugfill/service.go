// Package slugfill rewrites collection files so every document carries a unique slug.
package slugfill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
	"go.uber.org/zap"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain"
	domcol "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/collection"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/document"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/slug"
)

// Options controls a run.
type Options struct {
	// Regenerate recomputes every slug instead of filling only missing ones.
	Regenerate bool
	// DryRun reports what would change without writing.
	DryRun bool
}

// Result describes one collection's run.
type Result struct {
	Collection string
	Path       string
	Total      int
	Assigned   int
	Written    bool
	// Skipped is set when the collection cannot be rewritten.
	Skipped string
}

// Service runs offline slug backfills.
type Service struct {
	catalog Catalog
	dataDir string
	write   WriteFunc
	logger  *zap.Logger
}

// New creates a backfill service over files in dataDir.
func New(catalog Catalog, dataDir string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{catalog: catalog, dataDir: dataDir, write: atomic.WriteFile, logger: logger}
}

// WithWriter overrides the file writer.
func (s *Service) WithWriter(w WriteFunc) *Service {
	s.write = w
	return s
}

// RunAll backfills every collection in configuration order. Collections that cannot be
// rewritten are reported as skipped; the first hard failure stops the run.
func (s *Service) RunAll(ctx context.Context, opts Options) ([]Result, error) {
	var results []Result
	for _, col := range s.catalog.All() {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("backfill: %w", err)
		}
		res, err := s.run(col, opts)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Run backfills one collection by name.
func (s *Service) Run(_ context.Context, name string, opts Options) (Result, error) {
	col, ok := s.catalog.Get(name)
	if !ok {
		return Result{}, fmt.Errorf("collection %q: %w", name, domain.ErrCollectionNotFound)
	}
	return s.run(col, opts)
}

func (s *Service) run(col domcol.Collection, opts Options) (Result, error) {
	path := filepath.Join(s.dataDir, col.File())
	res := Result{Collection: col.Name(), Path: path}
	log := s.logger.With(zap.String("collection", col.Name()), zap.String("path", path))

	if col.SlugRule() == slug.RuleNone {
		res.Skipped = "slugs disabled"
		return res, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("read %s: %w", path, err)
	}
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return res, fmt.Errorf("parse %s: %w", path, err)
	}
	if document.DetectShape(standardized) != document.ShapeList {
		res.Skipped = "not a list-shaped file"
		log.Warn("Skipping slug backfill", zap.String("reason", res.Skipped))
		return res, nil
	}
	if !json.Valid(data) {
		// Re-encoding would drop the comments.
		res.Skipped = "hand-authored JSON (comments or trailing commas)"
		log.Warn("Skipping slug backfill", zap.String("reason", res.Skipped))
		return res, nil
	}
	docs, dropped, err := document.DecodeCollectionCounted(standardized)
	if err != nil {
		return res, fmt.Errorf("decode %s: %w", path, err)
	}
	res.Total = len(docs)
	if dropped > 0 {
		res.Skipped = fmt.Sprintf("%d non-object elements", dropped)
		log.Warn("Skipping slug backfill", zap.String("reason", res.Skipped))
		return res, nil
	}

	var updated []document.Document
	if opts.Regenerate {
		updated, res.Assigned = slug.Regenerate(docs, col.SlugRule(), col.Singular())
	} else {
		updated, res.Assigned = slug.Backfill(docs, col.SlugRule(), col.Singular())
	}
	if res.Assigned == 0 || opts.DryRun {
		log.Info("Slug backfill complete", zap.Int("assigned", res.Assigned), zap.Bool("dry_run", opts.DryRun))
		return res, nil
	}

	out, err := document.EncodeCollection(updated)
	if err != nil {
		return res, fmt.Errorf("encode %s: %w", path, err)
	}
	if err := s.write(path, bytes.NewReader(out)); err != nil {
		return res, fmt.Errorf("write %s: %w", path, err)
	}
	res.Written = true
	log.Info("Slug backfill written", zap.Int("assigned", res.Assigned), zap.Int("total", res.Total))
	return res, nil
}
