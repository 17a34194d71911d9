// Package persist provides the durable round-trip of minimal playback state:
// resume position, loop mode, speed, active tab and a bounded play history.
// Every operation is best-effort; storage being unavailable degrades to "no
// persistence", never to a playback failure.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store is a string-valued key-value record, the durable-local-storage
// contract the bridge is written against.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string)
}

// FileStore keeps the whole key space in a single JSON file, rewritten
// atomically (temp file + rename) on every Set.
type FileStore struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

// NewFileStore opens (or initializes) the store at path. A corrupt or
// unreadable file is treated as empty rather than fatal.
func NewFileStore(path string) *FileStore {
	fs := &FileStore{path: path, data: map[string]string{}}
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug().Err(err).Str("path", path).Msg("Failed to read state file, starting empty")
		}
		return fs
	}
	if err := json.Unmarshal(raw, &fs.data); err != nil {
		log.Debug().Err(err).Str("path", path).Msg("State file corrupt, starting empty")
		fs.data = map[string]string{}
	}
	return fs
}

func (fs *FileStore) Get(key string) (string, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	v, ok := fs.data[key]
	return v, ok
}

func (fs *FileStore) Set(key, value string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.data[key] = value
	return fs.flushLocked()
}

func (fs *FileStore) Delete(key string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.data, key)
	if err := fs.flushLocked(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Failed to persist key deletion")
	}
}

func (fs *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(fs.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, fs.path); err != nil {
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	tmpPath = "" // Prevent defer from removing the final file
	return nil
}

// MemStore is an in-memory Store for tests and for running without any
// writable disk.
type MemStore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{data: map[string]string{}}
}

func (m *MemStore) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *MemStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemStore) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}
