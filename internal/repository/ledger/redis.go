package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/db"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/interaction"
)

const (
	driverRedis = "redis"

	// DefaultKeyPrefix namespaces ledger keys.
	DefaultKeyPrefix = "qfwiki:"
)

// counterStore is the consumer interface for the Redis ledger (ISP).
type counterStore interface {
	db.Pinger
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	HDecrFloor(ctx context.Context, key, field string) (int64, bool, error)
	HGetInt(ctx context.Context, key, field string) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	RPush(ctx context.Context, key string, values ...string) (int64, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LLenMulti(ctx context.Context, keys []string) ([]int64, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// RedisLedger keeps likes in one hash and comments in one list per item. Each mutation is a
// single atomic server-side command, so no process-local lock is needed.
type RedisLedger struct {
	store  counterStore
	prefix string
	logger *zap.Logger
}

// NewRedisLedger creates a Redis-backed ledger. An empty prefix uses DefaultKeyPrefix.
func NewRedisLedger(s counterStore, prefix string, logger *zap.Logger) *RedisLedger {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLedger{store: s, prefix: prefix, logger: logger}
}

func (r *RedisLedger) likesKey() string { return r.prefix + "likes" }

func (r *RedisLedger) commentsKey(id string) string { return r.prefix + "comments:" + id }

// Increment adds one like to id.
func (r *RedisLedger) Increment(ctx context.Context, id string) (interaction.Outcome, error) {
	v, err := r.store.HIncrBy(ctx, r.likesKey(), id, 1)
	if err != nil {
		observe(driverRedis, interaction.OpLike, "persist_failed")
		last := r.lastKnown(ctx, id)
		return interaction.Outcome{ItemID: id, Likes: last}, domain.NewPersistError(id, last, err)
	}
	observe(driverRedis, interaction.OpLike, "committed")
	return interaction.Outcome{ItemID: id, Likes: int(v), Changed: true}, nil
}

// Decrement removes one like from id, never going below zero.
func (r *RedisLedger) Decrement(ctx context.Context, id string) (interaction.Outcome, error) {
	v, changed, err := r.store.HDecrFloor(ctx, r.likesKey(), id)
	if err != nil {
		observe(driverRedis, interaction.OpUnlike, "persist_failed")
		last := r.lastKnown(ctx, id)
		return interaction.Outcome{ItemID: id, Likes: last}, domain.NewPersistError(id, last, err)
	}
	if !changed {
		observe(driverRedis, interaction.OpUnlike, "noop")
	} else {
		observe(driverRedis, interaction.OpUnlike, "committed")
	}
	return interaction.Outcome{ItemID: id, Likes: int(v), Changed: changed}, nil
}

// AddComment appends c to id's comment list.
func (r *RedisLedger) AddComment(ctx context.Context, id string, c interaction.Comment) (interaction.Record, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return interaction.Record{}, fmt.Errorf("encode comment: %w", err)
	}
	if _, err := r.store.RPush(ctx, r.commentsKey(id), string(data)); err != nil {
		observe(driverRedis, interaction.OpComment, "persist_failed")
		last := r.lastKnown(ctx, id)
		return interaction.Record{Likes: last}, domain.NewPersistError(id, last, err)
	}
	observe(driverRedis, interaction.OpComment, "committed")
	return r.Get(ctx, id)
}

// Get returns the record of id. Unknown ids yield a zero record.
func (r *RedisLedger) Get(ctx context.Context, id string) (interaction.Record, error) {
	likes, err := r.store.HGetInt(ctx, r.likesKey(), id)
	if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return interaction.Record{}, fmt.Errorf("get likes: %w", err)
	}

	raw, err := r.store.LRange(ctx, r.commentsKey(id), 0, -1)
	if err != nil {
		return interaction.Record{}, fmt.Errorf("get comments: %w", err)
	}
	rec := interaction.Record{Likes: int(max(likes, 0))}
	for _, s := range raw {
		var c interaction.Comment
		if err := json.Unmarshal([]byte(s), &c); err != nil {
			r.logger.Warn("Skipping malformed comment", zap.String("item_id", id), zap.Error(err))
			continue
		}
		rec.Comments = append(rec.Comments, c)
	}
	return rec, nil
}

// Summaries returns likes and comment counts for every item.
func (r *RedisLedger) Summaries(ctx context.Context) (map[string]interaction.Summary, error) {
	likes, err := r.store.HGetAll(ctx, r.likesKey())
	if err != nil {
		return nil, fmt.Errorf("get likes: %w", err)
	}
	out := make(map[string]interaction.Summary, len(likes))
	for id, v := range likes {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.logger.Warn("Skipping non-integer like count", zap.String("item_id", id), zap.String("value", v))
			continue
		}
		out[id] = interaction.Summary{Likes: max(n, 0)}
	}

	keys, err := r.store.Scan(ctx, r.commentsKey("*"))
	if err != nil {
		return nil, fmt.Errorf("scan comments: %w", err)
	}
	lens, err := r.store.LLenMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}
	for i, key := range keys {
		id := strings.TrimPrefix(key, r.commentsKey(""))
		s := out[id]
		s.CommentCount = int(lens[i])
		out[id] = s
	}
	return out, nil
}

// Ping checks connectivity.
func (r *RedisLedger) Ping(ctx context.Context) error {
	return r.store.Ping(ctx) //nolint:wrapcheck // delegating
}

func (r *RedisLedger) lastKnown(ctx context.Context, id string) int {
	v, err := r.store.HGetInt(ctx, r.likesKey(), id)
	if err != nil {
		return 0
	}
	return int(max(v, 0))
}
