package ledger

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	natomic "github.com/natefinch/atomic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/interaction"
)

type countingWriter struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (w *countingWriter) write(path string, r io.Reader) error {
	w.calls.Add(1)
	if w.fail.Load() {
		return errors.New("disk full")
	}
	return natomic.WriteFile(path, r)
}

func newLedger(t *testing.T) (*FileLedger, *countingWriter) {
	t.Helper()
	w := &countingWriter{}
	path := filepath.Join(t.TempDir(), "interactions.json")
	return NewFileLedger(path, zap.NewNop(), WithWriter(w.write)), w
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestFileLedger_LikeThreeTimesThenUnlike(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	var out interaction.Outcome
	var err error
	for i := 0; i < 3; i++ {
		out, err = l.Increment(ctx, "42")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, out.Likes)

	out, err = l.Decrement(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, 2, out.Likes)
	assert.True(t, out.Changed)

	assert.JSONEq(t, `{"42": {"likes": 2}}`, readFile(t, l.Path()))
}

func TestFileLedger_DecrementAtZeroDoesNotPersist(t *testing.T) {
	l, w := newLedger(t)
	ctx := context.Background()

	out, err := l.Decrement(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 0, out.Likes)
	assert.False(t, out.Changed)
	assert.Equal(t, int32(0), w.calls.Load())
	_, statErr := os.Stat(l.Path())
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "no file is created by a no-op")

	_, err = l.Increment(ctx, "fresh")
	require.NoError(t, err)
	_, err = l.Decrement(ctx, "fresh")
	require.NoError(t, err)
	calls := w.calls.Load()

	out, err = l.Decrement(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 0, out.Likes)
	assert.Equal(t, calls, w.calls.Load(), "decrement at zero must not write")
}

func TestFileLedger_IncrementDecrementRoundTrip(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	before, err := l.Get(ctx, "7")
	require.NoError(t, err)

	_, err = l.Increment(ctx, "7")
	require.NoError(t, err)
	out, err := l.Decrement(ctx, "7")
	require.NoError(t, err)

	assert.Equal(t, before.Likes, out.Likes)
}

func TestFileLedger_ConcurrentIncrementsLoseNothing(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	const n = 64

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Increment(ctx, "hot"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := l.Get(ctx, "hot")
	require.NoError(t, err)
	assert.Equal(t, n, rec.Likes)

	fresh := NewFileLedger(l.Path(), nil)
	rec, err = fresh.Get(ctx, "hot")
	require.NoError(t, err)
	assert.Equal(t, n, rec.Likes, "durable state matches")
}

func TestFileLedger_PersistFailureIsReported(t *testing.T) {
	l, w := newLedger(t)
	ctx := context.Background()

	_, err := l.Increment(ctx, "42")
	require.NoError(t, err)

	w.fail.Store(true)
	out, err := l.Increment(ctx, "42")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistFailed)

	var pe *domain.PersistError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.LastKnown)
	assert.Equal(t, "42", pe.ItemID)
	assert.Equal(t, 1, out.Likes, "the unpersisted value is never reported")

	rec, err := l.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Likes)
	assert.JSONEq(t, `{"42": {"likes": 1}}`, readFile(t, l.Path()))

	_, err = l.Decrement(ctx, "42")
	assert.ErrorIs(t, err, domain.ErrPersistFailed)
}

func TestFileLedger_ReloadsDurableStateBeforeMutating(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	_, err := l.Increment(ctx, "a")
	require.NoError(t, err)

	// Another writer replaces the file.
	require.NoError(t, os.WriteFile(l.Path(), []byte(`{"a":{"likes":10},"b":{"likes":1}}`), 0o644))

	out, err := l.Increment(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 11, out.Likes)
	assert.JSONEq(t, `{"a":{"likes":11},"b":{"likes":1}}`, readFile(t, l.Path()))
}

func TestFileLedger_CorruptFileIsNotOverwritten(t *testing.T) {
	for name, content := range map[string]string{
		"not json":       `{"a":`,
		"negative likes": `{"a":{"likes":-1}}`,
		"wrong type":     `{"a":{"likes":"many"}}`,
		"array":          `[]`,
	} {
		t.Run(name, func(t *testing.T) {
			l, w := newLedger(t)
			require.NoError(t, os.WriteFile(l.Path(), []byte(content), 0o644))

			_, err := l.Increment(context.Background(), "a")
			assert.ErrorIs(t, err, domain.ErrLedgerCorrupt)
			assert.Equal(t, int32(0), w.calls.Load())
			assert.Equal(t, content, readFile(t, l.Path()))
			assert.Error(t, l.Ping(context.Background()))
		})
	}
}

func TestFileLedger_AcceptsLegacyRecords(t *testing.T) {
	l, _ := newLedger(t)
	legacy := `{"1":{"likes":2,"comments":[{"name":"Ann","text":"Nice","date":"2024-01-02"}]},"2":{"likes":0,"comments":[]}}`
	require.NoError(t, os.WriteFile(l.Path(), []byte(legacy), 0o644))

	rec, err := l.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Likes)
	require.Len(t, rec.Comments, 1)
	assert.Equal(t, "Ann", rec.Comments[0].Name)

	out, err := l.Increment(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Likes)
}

func TestFileLedger_CommentsAndSummaries(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	_, err := l.Increment(ctx, "1")
	require.NoError(t, err)
	rec, err := l.AddComment(ctx, "1", interaction.Comment{ID: "c1", Name: "Ann", Text: "Nice", Date: "2025-01-01"})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Likes)
	assert.Len(t, rec.Comments, 1)

	_, err = l.AddComment(ctx, "2", interaction.Comment{Name: "Bob", Text: "Hm", Date: "2025-01-02"})
	require.NoError(t, err)

	sums, err := l.Summaries(ctx)
	require.NoError(t, err)
	assert.Equal(t, interaction.Summary{Likes: 1, CommentCount: 1}, sums["1"])
	assert.Equal(t, interaction.Summary{Likes: 0, CommentCount: 1}, sums["2"])

	snap, err := l.Snapshot(ctx)
	require.NoError(t, err)
	snap["1"] = interaction.Record{Likes: 99}
	again, err := l.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Likes, "snapshots are copies")
}

func TestFileLedger_ReadsSeeExternalWrites(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	_, err := l.Increment(ctx, "x")
	require.NoError(t, err)
	_, err = l.Get(ctx, "x")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(l.Path(), []byte(`{"x":{"likes":5}}`), 0o644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(l.Path(), future, future))

	rec, err := l.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Likes)
}

func TestFileLedger_EmptyFileIsEmptyLedger(t *testing.T) {
	l, _ := newLedger(t)
	require.NoError(t, os.WriteFile(l.Path(), []byte("  \n"), 0o644))

	out, err := l.Increment(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Likes)
}
