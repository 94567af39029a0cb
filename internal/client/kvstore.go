package client

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Store is the durable per-browser key-value storage the renderer keeps
// session starts and dismiss flags in. Keys are scoped per timer id, so
// instances never contend for the same key.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// MemStore is an in-memory Store for tests and ephemeral sessions.
type MemStore struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string]string)}
}

func (s *MemStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *MemStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

func (s *MemStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// FileStore persists keys to a JSON file so session clocks and dismiss
// flags survive process restarts, the way browser storage survives page
// reloads. Writes flush eagerly; the file is small.
type FileStore struct {
	mu   sync.Mutex
	path string
	m    map[string]string
}

func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, m: make(map[string]string)}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read kv store: %w", err)
	}
	if err := json.Unmarshal(data, &s.m); err != nil {
		// Corrupt store behaves like cleared browser storage.
		s.m = make(map[string]string)
	}
	return s, nil
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *FileStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	s.flush()
}

func (s *FileStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	s.flush()
}

func (s *FileStore) flush() {
	data, err := json.Marshal(s.m)
	if err != nil {
		return
	}
	_ = os.WriteFile(s.path, data, 0o644)
}
