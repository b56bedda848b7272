package db

import (
	"context"
	"time"
)

// Store is the networked ledger backend: atomic counters plus append-only lists.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	CounterStore
	ListStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CounterStore keeps integer counters as fields of a hash.
type CounterStore interface {
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	// HDecrFloor decrements a field by one unless it is already zero or absent. changed reports
	// whether the stored value moved.
	HDecrFloor(ctx context.Context, key, field string) (value int64, changed bool, err error)
	// HGetInt returns ErrKeyNotFound for an absent field.
	HGetInt(ctx context.Context, key, field string) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// ListStore provides append-only lists.
type ListStore interface {
	RPush(ctx context.Context, key string, values ...string) (int64, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LLenMulti(ctx context.Context, keys []string) ([]int64, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}
