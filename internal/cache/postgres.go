package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store implementation backed by a single Postgres table,
// so preview caches can be shared across API replicas.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new Postgres-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the cache table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS cache_entries (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			stored_at  TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ
		)`)
	if err != nil {
		return fmt.Errorf("create cache_entries table: %w", err)
	}
	return nil
}

// Get returns the value for key, or false when absent or expired.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM cache_entries
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get cache entry: %w", err)
	}
	return value, true, nil
}

// Put stores a value under key. A ttl of zero means no expiry.
func (s *PostgresStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()

	var expiresAt *time.Time
	if ttl > 0 {
		t := now.Add(ttl)
		expiresAt = &t
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO cache_entries (key, value, stored_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, stored_at = EXCLUDED.stored_at, expires_at = EXCLUDED.expires_at`,
		key, value, now, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// Delete removes a key.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM cache_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Keys returns all live keys with the given prefix.
func (s *PostgresStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key FROM cache_entries
		WHERE key LIKE $1 || '%' AND (expires_at IS NULL OR expires_at > now())`,
		prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan cache key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache keys: %w", err)
	}
	return keys, nil
}

// DeletePrefix removes all keys with the given prefix.
func (s *PostgresStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cache_entries WHERE key LIKE $1 || '%'`, prefix)
	if err != nil {
		return 0, fmt.Errorf("delete cache entries by prefix: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Sweep removes expired entries and returns the number removed. Intended for
// periodic housekeeping on long-lived deployments.
func (s *PostgresStore) Sweep(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("sweep expired cache entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
