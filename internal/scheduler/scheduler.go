package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fentz26/tasklist/internal/codec"
	"github.com/fentz26/tasklist/internal/models"
	"github.com/fentz26/tasklist/internal/persist"
	"github.com/fentz26/tasklist/internal/taskerr"
)

// State is the scheduler's position in the debounce state machine.
type State string

const (
	StateIdle     State = "idle"
	StatePending  State = "pending"
	StateFlushing State = "flushing"
)

// Snapshot is a full copy of the collection at one instant. Seq orders
// snapshots: a larger Seq was taken after every smaller one.
type Snapshot struct {
	Seq   uint64
	Tasks []models.Task
}

// Status reports the persistence state.
type Status struct {
	Backend   string     `json:"backend"`
	State     State      `json:"state"`
	Pending   bool       `json:"pending"`
	LastFlush *time.Time `json:"last_flush,omitempty"`
	Writes    int        `json:"writes"`
	Skipped   int        `json:"skipped"`
	LastError string     `json:"last_error,omitempty"`
}

// Scheduler coalesces writes of task snapshots to a backend. It runs no
// goroutines of its own; every write happens in the caller's goroutine.
type Scheduler struct {
	backend  persist.Backend
	debounce time.Duration
	now      func() time.Time
	log      *zap.Logger

	// persistence state
	mu        sync.Mutex
	lastFlush time.Time // zero until the first successful write
	latest    uint64    // newest snapshot seq seen
	written   uint64    // newest snapshot seq durably written
	flushing  bool
	writes    int
	skipped   int
	lastErr   error

	// serializes backend writes; never held together with mu
	writeMu sync.Mutex
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a scheduler writing to backend. A non-positive debounce writes
// on every mutation.
func New(backend persist.Backend, debounce time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		backend:  backend,
		debounce: debounce,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads and decodes the stored collection. A missing document is an
// empty collection. An unreadable one is set aside when the backend supports
// it and reported as a decode failure.
func (s *Scheduler) Load(ctx context.Context) ([]models.Task, error) {
	data, err := s.backend.Read(ctx)
	if err != nil {
		return nil, taskerr.IO("load", err)
	}

	tasks, err := codec.Decode(data)
	if err == nil {
		return tasks, nil
	}

	if q, ok := s.backend.(persist.Quarantiner); ok {
		if where, qerr := q.Quarantine(ctx); qerr != nil {
			s.log.Error("Failed to set aside unreadable document", zap.Error(qerr))
		} else {
			s.log.Warn("Unreadable document set aside", zap.String("location", where))
		}
	}
	return nil, err
}

// Notify records a mutation. The snapshot is written immediately when the
// debounce interval has elapsed since the last successful write; otherwise
// the change is marked pending and nothing is written.
func (s *Scheduler) Notify(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	if snap.Seq > s.latest {
		s.latest = snap.Seq
	}
	if !s.dueLocked() {
		s.mu.Unlock()
		s.log.Debug("Write deferred", zap.Uint64("seq", snap.Seq))
		return nil
	}
	s.mu.Unlock()

	return s.flush(ctx, snap, false)
}

// ForceFlush writes snap regardless of the debounce interval.
func (s *Scheduler) ForceFlush(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	if snap.Seq > s.latest {
		s.latest = snap.Seq
	}
	s.mu.Unlock()

	return s.flush(ctx, snap, true)
}

// Due reports whether a pending change has waited at least the debounce
// interval.
func (s *Scheduler) Due() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked() && s.dueLocked()
}

// Pending reports whether a mutation has not been durably written yet.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked()
}

// Status returns a copy of the persistence state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Backend: s.backend.Name(),
		State:   StateIdle,
		Pending: s.pendingLocked(),
		Writes:  s.writes,
		Skipped: s.skipped,
	}
	switch {
	case s.flushing:
		st.State = StateFlushing
	case st.Pending:
		st.State = StatePending
	}
	if !s.lastFlush.IsZero() {
		t := s.lastFlush
		st.LastFlush = &t
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Flushes returns the backend's most recent journaled writes, newest first.
// Backends without a journal report none.
func (s *Scheduler) Flushes(ctx context.Context, limit int) ([]persist.Flush, error) {
	j, ok := s.backend.(persist.Journal)
	if !ok {
		return []persist.Flush{}, nil
	}
	flushes, err := j.Flushes(ctx, limit)
	if err != nil {
		return nil, taskerr.IO("flushes", err)
	}
	return flushes, nil
}

// Close releases the backend.
func (s *Scheduler) Close() error {
	return s.backend.Close()
}

func (s *Scheduler) pendingLocked() bool {
	return s.written < s.latest
}

func (s *Scheduler) dueLocked() bool {
	if s.lastFlush.IsZero() {
		return true
	}
	return s.now().Sub(s.lastFlush) >= s.debounce
}

// flush writes snap unless a newer snapshot is already durable. Writes are
// serialized, so the document on disk only ever moves forward.
func (s *Scheduler) flush(ctx context.Context, snap Snapshot, force bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if snap.Seq < s.written || (snap.Seq == s.written && !force) {
		s.skipped++
		s.mu.Unlock()
		s.log.Debug("Stale snapshot skipped", zap.Uint64("seq", snap.Seq))
		return nil
	}
	s.flushing = true
	s.mu.Unlock()

	start := time.Now()
	err := s.write(ctx, snap.Tasks)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushing = false

	if err != nil {
		s.lastErr = err
		s.log.Error("Flush failed",
			zap.String("backend", s.backend.Name()),
			zap.Uint64("seq", snap.Seq),
			zap.Error(err),
		)
		return taskerr.IO("flush", err)
	}

	s.lastFlush = s.now()
	if snap.Seq > s.written {
		s.written = snap.Seq
	}
	s.writes++
	s.lastErr = nil
	s.log.Debug("Flushed tasks",
		zap.String("backend", s.backend.Name()),
		zap.Uint64("seq", snap.Seq),
		zap.Int("count", len(snap.Tasks)),
		zap.Bool("forced", force),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// write encodes and stores tasks. A panicking backend is reported as an
// error instead of taking the process down.
func (s *Scheduler) write(ctx context.Context, tasks []models.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend %s panicked: %v", s.backend.Name(), r)
		}
	}()

	data, err := codec.Encode(tasks)
	if err != nil {
		return err
	}
	return s.backend.Write(ctx, data)
}
