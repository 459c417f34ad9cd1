package compat

import (
	"context"
	"time"
)

// Logger defines the logging interface used by the Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Operation names reported to observers.
const (
	OpLink       = "link"
	OpDelete     = "delete"
	OpFind       = "find"
	OpCompatible = "compatible"
	OpList       = "list"
)

// OperationEvent is reported to every Observer after an engine call returns.
type OperationEvent struct {
	Op       string
	PartType PartType
	Models   int
	Merged   int
	Elapsed  time.Duration
	Err      error
}

// Observer receives a record of each engine operation. Implementations must
// not block; they run on the caller's goroutine.
type Observer interface {
	ObserveOperation(ev OperationEvent)
}

// CacheObserver is optionally implemented by an Observer that also wants
// phone cache hit/miss counts.
type CacheObserver interface {
	ObserveCacheLookup(hit bool)
}

// Change event types.
const (
	EventLinked  = "linked"
	EventDeleted = "deleted"
)

// ChangeEvent announces a committed change to the store.
type ChangeEvent struct {
	Type            string    `json:"type"`
	PartType        PartType  `json:"part_type,omitempty"`
	GroupID         string    `json:"group_id,omitempty"`
	Models          []string  `json:"models"`
	MergedGroupIDs  []string  `json:"merged_group_ids,omitempty"`
	EmptiedGroupIDs []string  `json:"emptied_group_ids,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// EventPublisher delivers change events after commit. A publish failure is
// logged and never fails the operation that produced the event.
type EventPublisher interface {
	PublishChange(ctx context.Context, ev ChangeEvent) error
}
