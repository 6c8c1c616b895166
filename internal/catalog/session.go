package catalog

import (
	"sync"
	"time"
)

// Session is the identity returned by Directory.Login. Callers pass it (or
// the User it carries) into every operation that needs an actor.
type Session struct {
	Token     string
	StartedAt time.Time

	mu    sync.Mutex
	user  *User
	ended bool
}

// User returns a copy of the logged-in account, or nil once the session ended.
func (s *Session) User() *User {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil
	}
	return s.user.clone()
}

// IsAdmin reports whether the session's account carries the admin capability.
func (s *Session) IsAdmin() bool {
	return HasAdminCapability(s.User())
}

// Active reports whether the session has not been ended.
func (s *Session) Active() bool {
	return s.User() != nil
}

// end marks the session ended and reports whether it was active.
func (s *Session) end() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := !s.ended
	s.ended = true
	return was
}
