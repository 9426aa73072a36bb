package storage

import (
	"context"
	"slices"
	"strconv"
	"sync"
)

type entry struct {
	Value    []byte `json:"value"`
	Revision int64  `json:"revision"`
}

// MemoryStore keeps values in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key].item(), nil
}

func (s *MemoryStore) Commit(_ context.Context, writes ...Write) error {
	if err := checkWrites(writes); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return applyWrites(s.entries, writes)
}

func (s *MemoryStore) Close() error { return nil }

func (e entry) item() Item {
	if e.Revision == 0 {
		return Item{}
	}
	return Item{Value: slices.Clone(e.Value), Revision: e.revision()}
}

func (e entry) revision() Revision {
	if e.Revision == 0 {
		return ""
	}
	return Revision(strconv.FormatInt(e.Revision, 10))
}

// applyWrites validates every expectation before changing anything.
func applyWrites(entries map[string]entry, writes []Write) error {
	for _, w := range writes {
		if entries[w.Key].revision() != w.Expect {
			return conflict(w.Key)
		}
	}
	for _, w := range writes {
		entries[w.Key] = entry{Value: slices.Clone(w.Value), Revision: entries[w.Key].Revision + 1}
	}
	return nil
}
