// Package storage provides the key/value contract the tracker persists
// through, with memory, JSON file, SQLite, Postgres and S3 backends.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrConflict is returned when a key changed after it was read.
var ErrConflict = errors.New("storage: revision conflict")

// Revision identifies the version of a stored value. The empty revision
// means the key does not exist.
type Revision string

// Item is a stored value and its revision. A missing key yields an Item with
// nil Value and empty Revision.
type Item struct {
	Value    []byte
	Revision Revision
}

func (i Item) Exists() bool {
	return i.Revision != ""
}

// Write replaces the value of Key, provided its current revision still
// equals Expect.
type Write struct {
	Key    string
	Value  []byte
	Expect Revision
}

// KV is a key/value store with optimistic concurrency. Commit applies every
// write or none of them.
type KV interface {
	Get(ctx context.Context, key string) (Item, error)
	Commit(ctx context.Context, writes ...Write) error
	Close() error
}

func conflict(key string) error {
	return fmt.Errorf("%w on key %q", ErrConflict, key)
}

func checkWrites(writes []Write) error {
	seen := make(map[string]struct{}, len(writes))
	for _, w := range writes {
		if w.Key == "" {
			return errors.New("storage: empty key")
		}
		if _, dup := seen[w.Key]; dup {
			return fmt.Errorf("storage: duplicate write to key %q", w.Key)
		}
		seen[w.Key] = struct{}{}
	}
	return nil
}
