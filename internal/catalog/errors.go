package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrWeakPassword      = errors.New("password does not meet strength rules")
	ErrDuplicateFilm     = errors.New("a film with this title and release date already exists")
	ErrNoChange          = errors.New("no field differs from the current value")
	ErrBadCredentials    = errors.New("invalid email or password")
	ErrInvalidField      = errors.New("invalid value")

	// ErrNotFound matches any *NotFoundError via errors.Is.
	ErrNotFound = errors.New("not found")

	// ErrStaleStore means the persisted store changed since this process last
	// read or wrote it. The in-memory mutation has been rolled back.
	ErrStaleStore = errors.New("store was modified by another writer")
)

// ValidationError reports input that violates a rule. Err is one of the
// package sentinels and Field names the offending input.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError reports an unknown user or film.
type NotFoundError struct {
	Entity string // "user" or "film"
	ID     int64
	Key    string // lookup key when not searching by ID (e.g. an email)
}

func (e *NotFoundError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// PermissionError reports an actor lacking the capability an operation requires.
type PermissionError struct {
	Action string
	UserID int64
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %d is not allowed to %s", e.UserID, e.Action)
}

// PersistenceError wraps an I/O failure while loading or saving a store.
type PersistenceError struct {
	Store string
	Op    string // "load", "save", "backup", "restore"
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s store: %v", e.Op, e.Store, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// MalformedStoreError reports a store that exists but cannot be parsed.
// It is fatal at load time: the store is never treated as empty.
type MalformedStoreError struct {
	Store string
	Path  string
	Err   error
}

func (e *MalformedStoreError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed %s store: %v", e.Store, e.Err)
	}
	return fmt.Sprintf("malformed %s store at %s: %v", e.Store, e.Path, e.Err)
}

func (e *MalformedStoreError) Unwrap() error { return e.Err }

// asPersistenceError passes typed store errors through and wraps anything
// else so callers always see a PersistenceError or MalformedStoreError.
func asPersistenceError(store, op string, err error) error {
	var pe *PersistenceError
	var me *MalformedStoreError
	if errors.As(err, &pe) || errors.As(err, &me) {
		return err
	}
	return &PersistenceError{Store: store, Op: op, Err: err}
}
