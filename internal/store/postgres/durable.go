// Package postgres is the PostgreSQL durable backend of the guide store.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrSnakeDoc/guide/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS guide_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Durable keeps guide cache entries in a PostgreSQL key/value table.
type Durable struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, checks the connection and ensures the table exists.
// Caller must call Close when done.
func Open(ctx context.Context, dsn string) (*Durable, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Durable{pool: pool}, nil
}

func (d *Durable) Close() {
	d.pool.Close()
}

func (d *Durable) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

func (d *Durable) Read(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := d.pool.QueryRow(ctx, `SELECT value FROM guide_kv WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, &domain.StorageError{Op: "read", Key: key, Err: err}
	}
	return value, true, nil
}

func (d *Durable) Write(ctx context.Context, key, value string) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO guide_kv (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return &domain.StorageError{Op: "write", Key: key, Err: err}
	}
	return nil
}
