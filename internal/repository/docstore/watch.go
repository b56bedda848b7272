package docstore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/metrics"
)

const evictOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename | fsnotify.Chmod

// Watch evicts cached collections whenever their file changes on disk, until ctx is done.
// It watches the directories holding collection files, so atomic replace-by-rename is seen too.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dirs := make(map[string]struct{})
	for _, p := range s.files {
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for d := range dirs {
		if err := watcher.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}
	s.logger.Info("Watching collection files", zap.Int("dirs", len(dirs)))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(event)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("fsnotify error", zap.Error(werr))
		}
	}
}

func (s *Store) handleEvent(event fsnotify.Event) {
	if event.Op&evictOps == 0 {
		return
	}
	name, ok := s.byPath[filepath.Clean(event.Name)]
	if !ok {
		return
	}
	s.Evict(name)
	metrics.ContentCacheEvictionsTotal.WithLabelValues(name).Inc()
	s.logger.Debug("Collection evicted",
		zap.String("collection", name),
		zap.String("op", event.Op.String()),
	)
}
