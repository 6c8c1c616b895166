package app

import (
	"time"

	"github.com/google/uuid"
)

// Operation tracks one CLI invocation. Its ID tags every log line the
// invocation writes.
type Operation struct {
	ID        string
	Name      string
	StartedAt time.Time
	Status    string // "success" or "error"
	Err       error
}

// NewOperation creates an operation that starts at now.
func NewOperation(name string, now time.Time) *Operation {
	return &Operation{
		ID:        now.UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8],
		Name:      name,
		StartedAt: now,
		Status:    "success",
	}
}

// Fail records err as the outcome. Only the first failure is kept.
func (op *Operation) Fail(err error) {
	if err == nil || op.Err != nil {
		return
	}
	op.Status = "error"
	op.Err = err
}

// Succeeded reports whether no failure was recorded.
func (op *Operation) Succeeded() bool {
	return op.Err == nil
}
