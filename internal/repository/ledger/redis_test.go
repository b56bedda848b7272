package ledger

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/db"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/interaction"
)

// fakeStore is an in-memory counterStore.
type fakeStore struct {
	hashes  map[string]map[string]int64
	lists   map[string][]string
	failOps map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hashes:  make(map[string]map[string]int64),
		lists:   make(map[string][]string),
		failOps: make(map[string]error),
	}
}

func (f *fakeStore) Ping(_ context.Context) error { return f.failOps["PING"] }

func (f *fakeStore) HIncrBy(_ context.Context, key, field string, delta int64) (int64, error) {
	if err := f.failOps[db.OpHIncrBy]; err != nil {
		return 0, err
	}
	if f.hashes[key] == nil {
		f.hashes[key] = make(map[string]int64)
	}
	f.hashes[key][field] += delta
	return f.hashes[key][field], nil
}

func (f *fakeStore) HDecrFloor(_ context.Context, key, field string) (int64, bool, error) {
	if err := f.failOps[db.OpEval]; err != nil {
		return 0, false, err
	}
	v := f.hashes[key][field]
	if v <= 0 {
		return 0, false, nil
	}
	f.hashes[key][field] = v - 1
	return v - 1, true, nil
}

func (f *fakeStore) HGetInt(_ context.Context, key, field string) (int64, error) {
	if err := f.failOps[db.OpHGet]; err != nil {
		return 0, err
	}
	v, ok := f.hashes[key][field]
	if !ok {
		return 0, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	out := make(map[string]string)
	for k, v := range f.hashes[key] {
		out[k] = strconv.FormatInt(v, 10)
	}
	return out, nil
}

func (f *fakeStore) RPush(_ context.Context, key string, values ...string) (int64, error) {
	if err := f.failOps[db.OpRPush]; err != nil {
		return 0, err
	}
	f.lists[key] = append(f.lists[key], values...)
	return int64(len(f.lists[key])), nil
}

func (f *fakeStore) LRange(_ context.Context, key string, _, _ int64) ([]string, error) {
	return f.lists[key], nil
}

func (f *fakeStore) LLenMulti(_ context.Context, keys []string) ([]int64, error) {
	out := make([]int64, len(keys))
	for i, k := range keys {
		out[i] = int64(len(f.lists[k]))
	}
	return out, nil
}

func (f *fakeStore) Scan(_ context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range f.lists {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func TestRedisLedger_LikeUnlike(t *testing.T) {
	s := newFakeStore()
	l := NewRedisLedger(s, "", nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := l.Increment(ctx, "42"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	out, err := l.Decrement(ctx, "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Likes != 2 || !out.Changed {
		t.Errorf("expected 2 changed, got %+v", out)
	}
	if s.hashes["qfwiki:likes"]["42"] != 2 {
		t.Errorf("unexpected stored value: %v", s.hashes)
	}
}

func TestRedisLedger_DecrementAtZero(t *testing.T) {
	l := NewRedisLedger(newFakeStore(), "", nil)
	out, err := l.Decrement(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Likes != 0 || out.Changed {
		t.Errorf("expected no-op, got %+v", out)
	}
}

func TestRedisLedger_PersistFailure(t *testing.T) {
	s := newFakeStore()
	l := NewRedisLedger(s, "", nil)
	ctx := context.Background()

	if _, err := l.Increment(ctx, "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.failOps[db.OpHIncrBy] = &db.Error{Op: db.OpHIncrBy, Err: errors.New("connection reset")}

	out, err := l.Increment(ctx, "1")
	if !errors.Is(err, domain.ErrPersistFailed) {
		t.Fatalf("expected ErrPersistFailed, got %v", err)
	}
	var pe *domain.PersistError
	if !errors.As(err, &pe) || pe.LastKnown != 1 {
		t.Errorf("expected last known 1, got %+v", pe)
	}
	if out.Likes != 1 {
		t.Errorf("expected outcome to carry last known value, got %d", out.Likes)
	}

	s.failOps[db.OpEval] = errors.New("timeout")
	if _, err := l.Decrement(ctx, "1"); !errors.Is(err, domain.ErrPersistFailed) {
		t.Errorf("expected ErrPersistFailed on decrement, got %v", err)
	}
}

func TestRedisLedger_CommentsAndSummaries(t *testing.T) {
	s := newFakeStore()
	l := NewRedisLedger(s, "test:", nil)
	ctx := context.Background()

	if _, err := l.Increment(ctx, "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, err := l.AddComment(ctx, "a", interaction.Comment{ID: "c1", Name: "Ann", Text: "Nice", Date: "2025-01-01"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Likes != 1 || len(rec.Comments) != 1 || rec.Comments[0].Name != "Ann" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if _, err := l.AddComment(ctx, "b", interaction.Comment{Text: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.lists["test:comments:b"] = append(s.lists["test:comments:b"], "{broken")

	sums, err := l.Summaries(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sums["a"] != (interaction.Summary{Likes: 1, CommentCount: 1}) {
		t.Errorf("unexpected summary for a: %+v", sums["a"])
	}
	if sums["b"].CommentCount != 2 {
		t.Errorf("unexpected summary for b: %+v", sums["b"])
	}

	rb, err := l.Get(ctx, "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rb.Comments) != 1 {
		t.Errorf("malformed comments must be skipped, got %d", len(rb.Comments))
	}
}

func TestRedisLedger_CommentPersistFailure(t *testing.T) {
	s := newFakeStore()
	s.failOps[db.OpRPush] = errors.New("readonly replica")
	l := NewRedisLedger(s, "", nil)

	_, err := l.AddComment(context.Background(), "1", interaction.Comment{Text: "x"})
	if !errors.Is(err, domain.ErrPersistFailed) {
		t.Errorf("expected ErrPersistFailed, got %v", err)
	}
}
