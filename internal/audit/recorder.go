package audit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRecorderClosed is returned by Record after Close.
var ErrRecorderClosed = errors.New("audit: recorder closed")

// ErrQueueFull is returned by Record when the pending queue is at capacity.
var ErrQueueFull = errors.New("audit: queue full")

// DefaultQueueSize is used when NewRecorder is given a non-positive size.
const DefaultQueueSize = 256

const writeTimeout = 5 * time.Second

// Logger defines the logging interface used by the Recorder.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder writes audit logs to a Repository on a background goroutine so
// request handlers never wait on the audit insert.
type Recorder struct {
	repo   Repository
	queue  chan *AuditLog
	logger Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewRecorder starts a recorder with a bounded queue of the given size.
func NewRecorder(repo Repository, size int) *Recorder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	r := &Recorder{
		repo:   repo,
		queue:  make(chan *AuditLog, size),
		logger: noopLogger{},
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// SetLogger sets the logger for write failures. Call before Record.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Record queues an entry without blocking. It returns ErrQueueFull when the
// writer has fallen behind; the entry is dropped.
func (r *Recorder) Record(log *AuditLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRecorderClosed
	}
	select {
	case r.queue <- log:
		return nil
	default:
		r.logger.Warn("audit queue full, dropping entry", "action", log.Action, "entity_id", log.EntityID)
		return ErrQueueFull
	}
}

// Close stops accepting entries and waits for queued entries to be written
// or ctx to end.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for log := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.repo.Create(ctx, log); err != nil {
			r.logger.Error("writing audit log", "action", log.Action, "entity_id", log.EntityID, "error", err)
		}
		cancel()
	}
}
