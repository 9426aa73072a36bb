package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	revision INTEGER NOT NULL
)`

// SQLiteStore keeps each key as a row of a single SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "medtracker.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Item, error) {
	return sqlGet(ctx, s.db, `SELECT payload, revision FROM kv WHERE key = ?`, key)
}

func (s *SQLiteStore) Commit(ctx context.Context, writes ...Write) error {
	return sqlCommit(ctx, s.db, writes, sqlStatements{
		insert: `INSERT INTO kv(key, payload, revision) VALUES(?, ?, 1) ON CONFLICT(key) DO NOTHING`,
		update: `UPDATE kv SET payload = ?, revision = revision + 1 WHERE key = ? AND revision = ?`,
	})
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for tests.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *SQLiteStore) Path() string { return s.path }
