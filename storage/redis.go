package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each slot under prefix+slot.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to url (redis://host:port/db) and pings it.
func NewRedisStore(ctx context.Context, url, prefix string, logger *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("storage: parse redis url: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &RedisStore{client: redis.NewClient(opts), prefix: prefix, logger: logger}
	if err := r.Ping(ctx); err != nil {
		_ = r.client.Close()
		return nil, err
	}
	return r, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// WaitForConnection retries Ping until it succeeds, ctx ends or attempts
// run out.
func (r *RedisStore) WaitForConnection(ctx context.Context, attempts int, delay time.Duration) error {
	for i := 0; i < attempts; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(delay):
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("redis did not become available after %d attempts", attempts)
}

func (r *RedisStore) Put(ctx context.Context, slot string, data []byte) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.prefix+slot, data, 0).Err(); err != nil {
		r.logger.Error("Redis SET failed", "slot", slot, "error", err)
		return fmt.Errorf("redis set failed: %w", err)
	}
	r.logger.Debug("save slot written", "slot", slot, "bytes", len(data))
	return nil
}

func (r *RedisStore) Get(ctx context.Context, slot string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+slot).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Redis GET failed", "slot", slot, "error", err)
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisStore) Delete(ctx context.Context, slot string) error {
	if err := r.client.Del(ctx, r.prefix+slot).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (r *RedisStore) List(ctx context.Context) ([]string, error) {
	var out []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
