package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
)

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("MEDTRACKER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MEDTRACKER_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if _, err := store.DB().ExecContext(ctx, `DELETE FROM kv WHERE key IN ('drugs', 'a_overrides')`); err != nil {
		t.Fatalf("reset: %v", err)
	}
	exerciseKV(t, store)
}

func TestPostgresStoreOpenError(t *testing.T) {
	orig := sqlOpen
	t.Cleanup(func() { sqlOpen = orig })

	boom := errors.New("boom")
	sqlOpen = func(driverName, dataSourceName string) (*sql.DB, error) {
		if driverName != postgresDriver {
			t.Errorf("unexpected driver %q", driverName)
		}
		return nil, boom
	}

	if _, err := NewPostgresStore(context.Background(), ""); !errors.Is(err, boom) {
		t.Fatalf("expected open error, got %v", err)
	}
}
