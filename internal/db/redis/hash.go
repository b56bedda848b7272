package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/db"
)

// decrFloor decrements a hash field unless it is already <= 0. Returns {value, changed}.
var decrFloor = rueidis.NewLuaScript(`
local v = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
if v <= 0 then
  return {0, 0}
end
return {redis.call('HINCRBY', KEYS[1], ARGV[1], -1), 1}
`)

// HIncrBy atomically adds delta to a hash field and returns the new value.
func (s *Store) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	cmd := s.b().Hincrby().Key(key).Field(field).Increment(delta).Build()
	v, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpHIncrBy, Err: err}
	}
	return v, nil
}

// HDecrFloor decrements a hash field by one, never below zero, in a single server-side step.
func (s *Store) HDecrFloor(ctx context.Context, key, field string) (int64, bool, error) {
	vals, err := decrFloor.Exec(ctx, s.client, []string{key}, []string{field}).AsIntSlice()
	if err != nil {
		return 0, false, &db.Error{Op: db.OpEval, Err: err}
	}
	if len(vals) != 2 {
		return 0, false, &db.Error{Op: db.OpEval, Err: fmt.Errorf("unexpected reply length %d", len(vals))}
	}
	return vals[0], vals[1] == 1, nil
}

// HGetInt returns an integer hash field.
func (s *Store) HGetInt(ctx context.Context, key, field string) (int64, error) {
	cmd := s.b().Hget().Key(key).Field(field).Build()
	v, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, db.ErrKeyNotFound
		}
		return 0, &db.Error{Op: db.OpHGet, Err: err}
	}
	return v, nil
}

// HGetAll returns all fields of a hash.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cmd := s.b().Hgetall().Key(key).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return m, nil
}
