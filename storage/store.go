// Package storage persists save-slot blobs. The engine hands it opaque
// bytes keyed by slot name; backends decide where they live.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nathoo/tilecore/config"
)

// ErrNotFound is returned by Get for a slot that was never written.
var ErrNotFound = errors.New("save slot not found")

// Store is a save-slot blob store.
type Store interface {
	Put(ctx context.Context, slot string, data []byte) error
	Get(ctx context.Context, slot string) ([]byte, error)
	Delete(ctx context.Context, slot string) error
	List(ctx context.Context) ([]string, error)
	Close() error
}

// ValidateSlot rejects names that cannot be used as file names or keys.
func ValidateSlot(slot string) error {
	if slot == "" {
		return fmt.Errorf("storage: empty slot name")
	}
	if strings.ContainsAny(slot, `/\:*?"<>|`) || strings.HasPrefix(slot, ".") {
		return fmt.Errorf("storage: invalid slot name %q", slot)
	}
	return nil
}

// Open builds the backend selected by cfg.SaveBackend.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.SaveBackend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendFile:
		return NewFileStore(cfg.SaveDir)
	case config.BackendRedis:
		return NewRedisStore(ctx, cfg.RedisURL, "tilecore:save:", logger)
	case config.BackendSQLite:
		return OpenSQLite(cfg.SQLitePath)
	case config.BackendPostgres:
		return OpenPostgres(ctx, cfg.PostgresURL)
	}
	return nil, fmt.Errorf("storage: unknown backend %q", cfg.SaveBackend)
}
