package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// legacyKey receives the contents of a file that holds a bare JSON array,
// the format written before values were keyed.
const legacyKey = "drugs"

const (
	lockRetry = 10 * time.Millisecond
	lockStale = 30 * time.Second
)

type fileEntry struct {
	Value    json.RawMessage `json:"value"`
	Revision int64           `json:"revision"`
}

type fileSchema struct {
	Entries map[string]fileEntry `json:"entries"`
}

// FileStore keeps every key in a single JSON file that is rewritten on each
// commit. Values must be JSON documents.
//
// Every Get and Commit reads the file, so writes by other stores or
// processes on the same path are seen and revision checks hold across them.
// Commits are serialized through a lock file next to the data file.
type FileStore struct {
	mu       sync.Mutex
	filePath string
}

func NewFileStore(filePath string) *FileStore {
	return &FileStore{filePath: filePath}
}

// Load checks that the file, if present, can be read.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.read()
	return err
}

func (s *FileStore) Get(_ context.Context, key string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return Item{}, err
	}
	return entries[key].item(), nil
}

func (s *FileStore) Commit(ctx context.Context, writes ...Write) error {
	if err := checkWrites(writes); err != nil {
		return err
	}
	for _, w := range writes {
		if !json.Valid(w.Value) {
			return fmt.Errorf("value for key %q is not valid JSON", w.Key)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	entries, err := s.read()
	if err != nil {
		return err
	}
	if err := applyWrites(entries, writes); err != nil {
		return err
	}
	return s.save(entries)
}

func (s *FileStore) Close() error { return nil }

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.filePath }

func (s *FileStore) read() (map[string]entry, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]entry), nil
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return make(map[string]entry), nil
	}

	var schema fileSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		// Attempt migration from a bare substance array
		var legacy []json.RawMessage
		if err2 := json.Unmarshal(data, &legacy); err2 == nil {
			return map[string]entry{legacyKey: {Value: data, Revision: 1}}, nil
		}
		return nil, fmt.Errorf("failed to unmarshal data: %w", err)
	}

	entries := make(map[string]entry, len(schema.Entries))
	for key, e := range schema.Entries {
		if e.Revision == 0 {
			e.Revision = 1
		}
		entries[key] = entry{Value: e.Value, Revision: e.Revision}
	}
	return entries, nil
}

// save replaces the file through a rename so readers never see a partial
// write.
func (s *FileStore) save(entries map[string]entry) error {
	schema := fileSchema{Entries: make(map[string]fileEntry, len(entries))}
	for key, e := range entries {
		schema.Entries[key] = fileEntry{Value: e.Value, Revision: e.Revision}
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.filePath); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}

// lock creates <file>.lock exclusively, waiting while another writer holds
// it. A lock file older than lockStale is left over from a crashed writer
// and is removed.
func (s *FileStore) lock(ctx context.Context) (func(), error) {
	lockPath := s.filePath + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			f.Close()
			return func() { os.Remove(lockPath) }, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("failed to lock %s: %w", lockPath, err)
		}

		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > lockStale {
			slog.Warn("Removing stale lock file", "path", lockPath, "age", time.Since(info.ModTime()))
			os.Remove(lockPath)
			continue
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to lock %s: %w", lockPath, ctx.Err())
		case <-time.After(lockRetry):
		}
	}
}
