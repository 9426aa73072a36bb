package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	postgresDriver = "pgx"
	defaultDSN     = "postgres://localhost/medtracker?sslmode=disable"

	postgresSchema = `CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		revision BIGINT NOT NULL
	)`
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// PostgresStore keeps each key as a JSONB row. Values must be JSON
// documents.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(postgresDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure kv table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (Item, error) {
	return sqlGet(ctx, s.db, `SELECT payload::text, revision FROM kv WHERE key = $1`, key)
}

func (s *PostgresStore) Commit(ctx context.Context, writes ...Write) error {
	return sqlCommit(ctx, s.db, writes, sqlStatements{
		insert: `INSERT INTO kv(key, payload, revision) VALUES($1, $2, 1) ON CONFLICT(key) DO NOTHING`,
		update: `UPDATE kv SET payload = $1, revision = kv.revision + 1 WHERE key = $2 AND revision = $3`,
	})
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for tests.
func (s *PostgresStore) DB() *sql.DB { return s.db }
