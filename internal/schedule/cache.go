// Package schedule caches the hours-of-operation table so webhook traffic
// never waits on the roster store.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKey = "schedule:hours"

// Source provides the raw schedule rows.
type Source interface {
	ListSchedule(ctx context.Context) ([]map[string]any, error)
}

// kv is the narrow cache contract; redisKV is the real implementation.
type kv interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

var errMiss = errors.New("schedule: cache miss")

type redisKV struct {
	rdb *redis.Client
}

func (r redisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", errMiss
	}
	return v, err
}

func (r redisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

type Cache struct {
	src Source
	kv  kv
	ttl time.Duration
	log *slog.Logger
}

func NewCache(src Source, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *Cache {
	return newCache(src, redisKV{rdb: rdb}, ttl, log)
}

func newCache(src Source, store kv, ttl time.Duration, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{src: src, kv: store, ttl: ttl, log: log}
}

// Refresh fetches the schedule and replaces the cached copy.
func (c *Cache) Refresh(ctx context.Context) error {
	rows, err := c.src.ListSchedule(ctx)
	if err != nil {
		return err
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, cacheKey, string(b), c.ttl)
}

// Get serves the cached schedule, filling the cache on a miss.
func (c *Cache) Get(ctx context.Context) ([]map[string]any, error) {
	v, err := c.kv.Get(ctx, cacheKey)
	if errors.Is(err, errMiss) {
		if err := c.Refresh(ctx); err != nil {
			return nil, err
		}
		v, err = c.kv.Get(ctx, cacheKey)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := json.Unmarshal([]byte(v), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Run refreshes on a fixed interval until ctx is canceled. A failed
// refresh logs and keeps serving the previous copy.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := c.Refresh(ctx); err != nil {
				c.log.Error("schedule refresh failed", "err", err)
			}
		}
	}
}
