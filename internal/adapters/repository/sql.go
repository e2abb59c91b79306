package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	schemaTimeout = 5 * time.Second

	createKVTable = `
CREATE TABLE IF NOT EXISTS gacha_kv (
    key           TEXT PRIMARY KEY,
    value         TEXT NOT NULL,
    updated_at_ms BIGINT NOT NULL
)`

	selectKV = `SELECT value FROM gacha_kv WHERE key = $1`

	upsertKV = `
INSERT INTO gacha_kv (key, value, updated_at_ms)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET
    value = excluded.value,
    updated_at_ms = excluded.updated_at_ms`
)

// sqlStore implements Store over database/sql. Both sqlite and postgres
// accept the same schema and $n placeholders.
type sqlStore struct {
	db     *sql.DB
	driver string
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, schemaTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, createKVTable); err != nil {
		return fmt.Errorf("create kv table: %w", err)
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, selectKV, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%s get %s: %w", s.driver, key, err)
	}
	return v, nil
}

func (s *sqlStore) SetMany(ctx context.Context, values map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s begin: %w", s.driver, err)
	}
	defer func() { _ = tx.Rollback() }()

	nowMs := time.Now().UTC().UnixMilli()
	for k, v := range values {
		if _, err := tx.ExecContext(ctx, upsertKV, k, v, nowMs); err != nil {
			return fmt.Errorf("%s upsert %s: %w", s.driver, k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s commit: %w", s.driver, err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
