// Package sqlite is the SQLite durable backend of the guide store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrSnakeDoc/guide/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS guide_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Durable keeps guide cache entries in a single key/value table.
type Durable struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. Use ":memory:" in tests.
func Open(path string) (*Durable, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: keeps ":memory:" a single database and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Durable{db: db}, nil
}

func (d *Durable) Close() error {
	return d.db.Close()
}

func (d *Durable) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *Durable) Read(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM guide_kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, &domain.StorageError{Op: "read", Key: key, Err: err}
	}
	return value, true, nil
}

func (d *Durable) Write(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO guide_kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix(),
	)
	if err != nil {
		return &domain.StorageError{Op: "write", Key: key, Err: err}
	}
	return nil
}
