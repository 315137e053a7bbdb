package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresStore keeps slots in a shared PostgreSQL table, so several
// hosts can read each other's saves.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to dsn and creates the saves table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS tilecore_saves (
		slot TEXT PRIMARY KEY,
		data BYTEA NOT NULL,
		saved_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: init postgres schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Put(ctx context.Context, slot string, data []byte) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tilecore_saves (slot, data, saved_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (slot) DO UPDATE SET data = EXCLUDED.data, saved_at = NOW()`,
		slot, data)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, slot string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM tilecore_saves WHERE slot = $1`, slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *PostgresStore) Delete(ctx context.Context, slot string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tilecore_saves WHERE slot = $1`, slot)
	return err
}

func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slot FROM tilecore_saves ORDER BY slot`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
