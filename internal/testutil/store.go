package testutil

import (
	"errors"
	"sync"

	"filmcat/internal/catalog"
)

// ErrInjectedSave is the default error returned by a failing FailingStore.
var ErrInjectedSave = errors.New("injected save failure")

// FailingStore wraps a catalog.Store and fails saves on demand.
type FailingStore struct {
	inner catalog.Store

	mu       sync.Mutex
	failWith error
	attempts int
}

var _ catalog.Store = (*FailingStore)(nil)

func NewFailingStore(inner catalog.Store) *FailingStore {
	return &FailingStore{inner: inner}
}

// FailSaves makes every following Save return err, or ErrInjectedSave when
// err is nil.
func (s *FailingStore) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = ErrInjectedSave
	}
	s.failWith = err
}

// Recover makes saves reach the wrapped store again.
func (s *FailingStore) Recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = nil
}

// Attempts returns the number of Save calls, failed or not.
func (s *FailingStore) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *FailingStore) Load(name string, v any) (bool, error) {
	return s.inner.Load(name, v)
}

func (s *FailingStore) Save(name string, v any) error {
	s.mu.Lock()
	s.attempts++
	err := s.failWith
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.inner.Save(name, v)
}
