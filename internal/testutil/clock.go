package testutil

import (
	"fmt"
	"sync"
	"time"

	"filmcat/internal/catalog"
)

// Epoch is the instant FixedClock starts at.
var Epoch = time.Date(2024, time.January, 15, 10, 30, 0, 0, time.UTC)

// StubClock is a catalog.Clock that only moves when told to.
// Safe for concurrent use.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

var _ catalog.Clock = (*StubClock)(nil)

func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock at Epoch.
func FixedClock() *StubClock {
	return NewStubClock(Epoch)
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *StubClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// StubTokenGenerator issues predictable session tokens "token-1", "token-2", ...
type StubTokenGenerator struct {
	mu     sync.Mutex
	issued []string
}

var _ catalog.TokenGenerator = (*StubTokenGenerator)(nil)

func NewStubTokenGenerator() *StubTokenGenerator {
	return &StubTokenGenerator{}
}

func (g *StubTokenGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	token := fmt.Sprintf("token-%d", len(g.issued)+1)
	g.issued = append(g.issued, token)
	return token
}

// Issued returns the tokens handed out so far, oldest first.
func (g *StubTokenGenerator) Issued() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.issued...)
}
