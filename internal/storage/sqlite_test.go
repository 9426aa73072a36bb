package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	exerciseKV(t, store)
}

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if err := store.Commit(ctx, Write{Key: "drugs", Value: []byte(`[{"id":"persist"}]`)}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	_ = store.Close()

	reloaded, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })

	item, err := reloaded.Get(ctx, "drugs")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(item.Value) != `[{"id":"persist"}]` || item.Revision != "1" {
		t.Fatalf("unexpected item %+v", item)
	}

	var table string
	if err := reloaded.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", "kv").Scan(&table); err != nil {
		t.Fatalf("lookup kv table: %v", err)
	}
}
