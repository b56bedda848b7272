// Package docstore loads content collections from JSON files and caches the decoded snapshots
// until the file's modification stamp changes.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/tailscale/hujson"
	"go.uber.org/zap"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/document"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/metrics"
)

// Stamp identifies one version of a file. Writes that keep both the modification time and the
// size unchanged (possible below the file system's mtime resolution) are not detected; the
// watcher narrows that window.
type Stamp struct {
	ModTime time.Time
	Size    int64
}

func stampOf(info fs.FileInfo) Stamp {
	return Stamp{ModTime: info.ModTime(), Size: info.Size()}
}

// Equal reports whether two stamps describe the same file version.
func (s Stamp) Equal(o Stamp) bool {
	return s.Size == o.Size && s.ModTime.Equal(o.ModTime)
}

type entry struct {
	stamp Stamp
	docs  []document.Document
}

// Store is a read-through cache over one JSON file per collection. Safe for concurrent use.
type Store struct {
	files  map[string]string // collection -> absolute path
	byPath map[string]string // absolute path -> collection
	dir    string
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]entry
}

// New creates a store. files maps collection names to file names relative to dir.
func New(dir string, files map[string]string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		files:   make(map[string]string, len(files)),
		byPath:  make(map[string]string, len(files)),
		dir:     filepath.Clean(dir),
		logger:  logger,
		entries: make(map[string]entry),
	}
	for name, file := range files {
		p := file
		if !filepath.IsAbs(p) {
			p = filepath.Join(s.dir, file)
		}
		p = filepath.Clean(p)
		s.files[name] = p
		s.byPath[p] = name
	}
	return s
}

// Has reports whether name is a configured collection.
func (s *Store) Has(name string) bool {
	_, ok := s.files[name]
	return ok
}

// Names returns the configured collections, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.files))
	for n := range s.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Path returns the file backing a collection.
func (s *Store) Path(name string) (string, bool) {
	p, ok := s.files[name]
	return p, ok
}

// Load returns the documents of a collection in file order. It never fails: unknown collections,
// missing files and undecodable files are logged and yield an empty collection. An unchanged file
// is served from cache without decoding. The returned slice is owned by the caller.
func (s *Store) Load(ctx context.Context, name string) []document.Document {
	path, ok := s.files[name]
	if !ok {
		s.logger.Warn("Unknown collection requested", zap.String("collection", name))
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("Collection file missing", zap.String("collection", name), zap.String("path", path))
		} else {
			s.logger.Warn("Stat collection file", zap.String("collection", name), zap.Error(err))
		}
		s.Evict(name)
		metrics.ContentCacheTotal.WithLabelValues(name, "error").Inc()
		return nil
	}
	current := stampOf(info)

	s.mu.RLock()
	cached, ok := s.entries[name]
	s.mu.RUnlock()
	if ok && cached.stamp.Equal(current) {
		metrics.ContentCacheTotal.WithLabelValues(name, "hit").Inc()
		return slices.Clone(cached.docs)
	}

	docs, err := readCollection(path)
	if err != nil {
		s.logger.Warn("Decode collection", zap.String("collection", name), zap.String("path", path), zap.Error(err))
		metrics.ContentCacheTotal.WithLabelValues(name, "error").Inc()
		return nil
	}

	// Racing loaders may both decode; entries are derived from the same file so last write wins.
	s.mu.Lock()
	s.entries[name] = entry{stamp: current, docs: docs}
	s.mu.Unlock()

	metrics.ContentCacheTotal.WithLabelValues(name, "miss").Inc()
	s.logger.Debug("Collection loaded",
		zap.String("collection", name),
		zap.Int("documents", len(docs)),
		zap.Time("mtime", current.ModTime),
	)
	return slices.Clone(docs)
}

// Stamp returns the cached stamp of a collection.
func (s *Store) Stamp(name string) (Stamp, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	return e.stamp, ok
}

// Evict drops the cached snapshot of a collection.
func (s *Store) Evict(name string) {
	s.mu.Lock()
	delete(s.entries, name)
	s.mu.Unlock()
}

// Ping checks that the data directory is readable.
func (s *Store) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("stat data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data dir %s is not a directory", s.dir)
	}
	return nil
}

func readCollection(path string) ([]document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	docs, err := document.DecodeCollection(standardized)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return docs, nil
}
