package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"filmcat/internal/catalog"
)

// MemoryStore keeps documents as JSON in memory. Values round-trip through
// encoding/json exactly as they would on disk.
type MemoryStore struct {
	mu      sync.Mutex
	docs    map[string][]byte
	backups map[string][][]byte
	saves   int
}

var _ Backend = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[string][]byte),
		backups: make(map[string][][]byte),
	}
}

func (s *MemoryStore) Load(name string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.docs[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, &catalog.MalformedStoreError{Store: name, Err: err}
	}
	return true, nil
}

func (s *MemoryStore) Save(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.docs[name]; ok {
		s.backups[name] = append(s.backups[name], prev)
	}
	s.docs[name] = data
	s.saves++
	return nil
}

// Put stores raw bytes under name, bypassing encoding. Tests use it to seed
// malformed documents.
func (s *MemoryStore) Put(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[name] = append([]byte(nil), data...)
}

// Raw returns the stored bytes for name.
func (s *MemoryStore) Raw(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.docs[name]
	return append([]byte(nil), data...), ok
}

// Saves returns the number of successful saves.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *MemoryStore) Info(name string) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.docs[name]
	return Info{Name: name, Location: "memory", Exists: ok, Size: int64(len(data))}, nil
}

// Backups refers to backups by their index in save order.
func (s *MemoryStore) Backups(name string) ([]Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.backups[name]
	out := make([]Backup, 0, len(prev))
	for i := len(prev) - 1; i >= 0; i-- {
		out = append(out, Backup{Ref: strconv.Itoa(i), Size: int64(len(prev[i]))})
	}
	return out, nil
}

func (s *MemoryStore) Restore(name, ref string, _ catalog.DecryptionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := strconv.Atoi(ref)
	if err != nil || i < 0 || i >= len(s.backups[name]) {
		return &catalog.NotFoundError{Entity: "backup", Key: ref}
	}
	if cur, ok := s.docs[name]; ok {
		s.backups[name] = append(s.backups[name], cur)
	}
	s.docs[name] = s.backups[name][i]
	return nil
}

func (s *MemoryStore) Close() error { return nil }
