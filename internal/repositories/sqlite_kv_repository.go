package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteKVRepository is the durable key-value store for read markers when no
// PostgreSQL database is configured.
type SQLiteKVRepository struct {
	conn *sql.DB
}

// NewSQLiteKVRepository opens or creates an SQLite database at path
func NewSQLiteKVRepository(path string) (*SQLiteKVRepository, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single writer; WAL lets readers proceed during a write.
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS read_markers (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteKVRepository{conn: conn}, nil
}

// Get returns the value stored under key
func (r *SQLiteKVRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.conn.QueryRowContext(ctx, "SELECT value FROM read_markers WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value
func (r *SQLiteKVRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.conn.ExecContext(ctx,
		"INSERT INTO read_markers (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP) "+
			"ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP",
		key, value)
	return err
}

// Close closes the database connection
func (r *SQLiteKVRepository) Close() error {
	return r.conn.Close()
}
