package docstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/document"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/metrics"
)

func writeFile(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func newStore(t *testing.T, name string) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return New(dir, map[string]string{name: name + ".json"}, zap.NewNop()), filepath.Join(dir, name+".json")
}

func counter(collection, result string) float64 {
	return testutil.ToFloat64(metrics.ContentCacheTotal.WithLabelValues(collection, result))
}

func encode(t *testing.T, docs []document.Document) string {
	t.Helper()
	b, err := json.Marshal(docs)
	require.NoError(t, err)
	return string(b)
}

func TestLoad_CacheHitSkipsDecode(t *testing.T) {
	s, path := newStore(t, "hit-blog")
	writeFile(t, path, `[{"id":1,"title":"A"},{"id":2,"title":"B"}]`, time.Now().Add(-time.Hour))

	first := s.Load(context.Background(), "hit-blog")
	second := s.Load(context.Background(), "hit-blog")

	require.Len(t, first, 2)
	assert.Equal(t, encode(t, first), encode(t, second), "snapshots must be identical")
	assert.Equal(t, 1.0, counter("hit-blog", "miss"), "only the first load decodes")
	assert.Equal(t, 1.0, counter("hit-blog", "hit"))
}

func TestLoad_StaleStampReloads(t *testing.T) {
	s, path := newStore(t, "stale-blog")
	base := time.Now().Add(-time.Hour)
	writeFile(t, path, `[{"id":1}]`, base)
	require.Len(t, s.Load(context.Background(), "stale-blog"), 1)

	writeFile(t, path, `[{"id":1},{"id":2}]`, base.Add(time.Second))
	assert.Len(t, s.Load(context.Background(), "stale-blog"), 2)

	// Same mtime, different size.
	writeFile(t, path, `[{"id":1},{"id":2},{"id":3}]`, base.Add(time.Second))
	assert.Len(t, s.Load(context.Background(), "stale-blog"), 3)

	assert.Equal(t, 3.0, counter("stale-blog", "miss"))
}

func TestLoad_CallerOwnsSlice(t *testing.T) {
	s, path := newStore(t, "owned")
	writeFile(t, path, `[{"id":1,"title":"A"}]`, time.Now().Add(-time.Minute))

	docs := s.Load(context.Background(), "owned")
	docs[0] = document.MustParse(`{"id":"mutated"}`)

	again := s.Load(context.Background(), "owned")
	assert.Equal(t, "1", again[0].ID())
}

func TestLoad_MissingFileIsEmptyUntilCreated(t *testing.T) {
	s, path := newStore(t, "late")

	assert.Empty(t, s.Load(context.Background(), "late"))
	_, cached := s.Stamp("late")
	assert.False(t, cached, "absent files are never cached")

	writeFile(t, path, `[{"id":"x"}]`, time.Now())
	assert.Len(t, s.Load(context.Background(), "late"), 1)
}

func TestLoad_CorruptFileIsEmpty(t *testing.T) {
	s, path := newStore(t, "corrupt")
	writeFile(t, path, `[{"id":1},`, time.Now())

	assert.Empty(t, s.Load(context.Background(), "corrupt"))
	_, cached := s.Stamp("corrupt")
	assert.False(t, cached)
	assert.Equal(t, 1.0, counter("corrupt", "error"))
}

func TestLoad_UnknownCollection(t *testing.T) {
	s, _ := newStore(t, "known")
	assert.Nil(t, s.Load(context.Background(), "unknown"))
	assert.False(t, s.Has("unknown"))
	assert.True(t, s.Has("known"))
}

func TestLoad_ToleratesCommentsAndTrailingCommas(t *testing.T) {
	s, path := newStore(t, "jsonc")
	writeFile(t, path, `[
		// hand-edited
		{"id": 1, "title": "A",},
	]`, time.Now())

	docs := s.Load(context.Background(), "jsonc")
	require.Len(t, docs, 1)
	assert.Equal(t, "A", docs[0].String("title"))
}

func TestLoad_MapShapedCollection(t *testing.T) {
	s, path := newStore(t, "roadmaps")
	writeFile(t, path, `{"quant-dev":{"id":"quant-dev","title":"Quant Dev"},"trader":{"id":"trader"}}`, time.Now())

	docs := s.Load(context.Background(), "roadmaps")
	require.Len(t, docs, 2)
	assert.Equal(t, "quant-dev", docs[0].ID())
	assert.Equal(t, "trader", docs[1].ID())
}

func TestNamesAndPing(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, map[string]string{"b": "b.json", "a": "a.json"}, nil)
	assert.Equal(t, []string{"a", "b"}, s.Names())
	assert.NoError(t, s.Ping(context.Background()))

	p, ok := s.Path("a")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "a.json"), p)

	missing := New(filepath.Join(dir, "nope"), nil, nil)
	assert.Error(t, missing.Ping(context.Background()))
}

func TestWatch_EvictsOnWrite(t *testing.T) {
	s, path := newStore(t, "watched")
	mtime := time.Now().Add(-time.Hour)
	writeFile(t, path, `[{"id":1}]`, mtime)
	require.Len(t, s.Load(context.Background(), "watched"), 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	// Same size and mtime: invisible to the stamp check, visible to the watcher.
	require.Eventually(t, func() bool {
		writeFile(t, path, `[{"id":2}]`, mtime)
		_, cached := s.Stamp("watched")
		return !cached
	}, 5*time.Second, 50*time.Millisecond)

	docs := s.Load(context.Background(), "watched")
	require.Len(t, docs, 1)
	assert.Equal(t, "2", docs[0].ID())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
