// Package store owns the in-memory task collection and every operation that
// reads or mutates it.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fentz26/tasklist/internal/models"
	"github.com/fentz26/tasklist/internal/persist"
	"github.com/fentz26/tasklist/internal/scheduler"
	"github.com/fentz26/tasklist/internal/taskerr"
)

// Store guards the task collection with a single mutex. Every mutation hands
// a full snapshot to the scheduler after the lock is released.
type Store struct {
	sched *scheduler.Scheduler
	now   func() time.Time
	newID func() (string, error)
	log   *zap.Logger

	mu       sync.Mutex
	tasks    []models.Task
	seq      uint64
	poisoned bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for task timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs replaces the id generator.
func WithIDs(gen func() (string, error)) Option {
	return func(s *Store) { s.newID = gen }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates an empty store persisting through sched.
func New(sched *scheduler.Scheduler, opts ...Option) *Store {
	s := &Store{
		sched: sched,
		now:   time.Now,
		newID: newUUID,
		log:   zap.NewNop(),
		tasks: []models.Task{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a store and loads the collection sched's backend holds. An
// unreadable document is logged and the store starts empty; a backend that
// cannot be read at all is an error.
func Open(ctx context.Context, sched *scheduler.Scheduler, opts ...Option) (*Store, error) {
	s := New(sched, opts...)

	tasks, err := sched.Load(ctx)
	switch {
	case err == nil:
		s.tasks = tasks
		s.log.Info("Loaded tasks", zap.Int("count", len(tasks)))
	case errors.Is(err, taskerr.ErrDecodeFailure):
		s.log.Error("Stored tasks are unreadable, starting empty", zap.Error(err))
	default:
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return s, nil
}

func newUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// withLock runs fn holding the collection lock. A panic inside fn poisons
// the store; the failing call and every later one report LockFailure.
func (s *Store) withLock(op string, fn func() error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned {
		return taskerr.Lock(op, "store poisoned by an earlier failure")
	}

	defer func() {
		if r := recover(); r != nil {
			s.poisoned = true
			s.log.Error("Task store poisoned", zap.String("op", op), zap.Any("panic", r))
			err = taskerr.Lock(op, r)
		}
	}()
	return fn()
}

// snapshotLocked copies the collection and advances the sequence.
func (s *Store) snapshotLocked() scheduler.Snapshot {
	s.seq++
	return scheduler.Snapshot{Seq: s.seq, Tasks: copyTasks(s.tasks)}
}

func (s *Store) indexLocked(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func copyTasks(tasks []models.Task) []models.Task {
	out := make([]models.Task, len(tasks))
	copy(out, tasks)
	return out
}

// List returns a copy of the tasks visible under filter, in insertion order.
// The only possible error is LockFailure.
func (s *Store) List(filter models.Filter) ([]models.Task, error) {
	var out []models.Task
	err := s.withLock("list", func() error {
		out = make([]models.Task, 0, len(s.tasks))
		for _, t := range s.tasks {
			if filter.Match(t) {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, err
}

// Get returns the task with id.
func (s *Store) Get(id string) (models.Task, error) {
	var task models.Task
	err := s.withLock("get", func() error {
		i := s.indexLocked(id)
		if i < 0 {
			return taskerr.NotFound("get", id)
		}
		task = s.tasks[i]
		return nil
	})
	return task, err
}

// Stats counts tasks by completion.
func (s *Store) Stats() (models.Stats, error) {
	var st models.Stats
	err := s.withLock("stats", func() error {
		st.Total = len(s.tasks)
		for _, t := range s.tasks {
			if t.Completed {
				st.Completed++
			}
		}
		st.Active = st.Total - st.Completed
		return nil
	})
	return st, err
}

// Add appends a task with already normalized text. When the write that
// follows fails the task is still added and returned with an IOFailure.
func (s *Store) Add(ctx context.Context, text string) (models.Task, error) {
	var (
		task models.Task
		snap scheduler.Snapshot
	)
	err := s.withLock("add", func() error {
		id, err := s.newID()
		if err != nil {
			return taskerr.New(taskerr.KindInternal, "add", fmt.Errorf("generate id: %w", err))
		}
		ts := models.Millis(s.now())
		task = models.Task{
			ID:        id,
			Text:      text,
			Completed: false,
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		s.tasks = append(s.tasks, task)
		snap = s.snapshotLocked()
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return task, s.sched.Notify(ctx, snap)
}

// Toggle flips the completion flag of id.
func (s *Store) Toggle(ctx context.Context, id string) (models.Task, error) {
	return s.update(ctx, "toggle", id, func(t *models.Task) {
		t.Completed = !t.Completed
	})
}

// Edit replaces the text of id with already normalized text.
func (s *Store) Edit(ctx context.Context, id, text string) (models.Task, error) {
	return s.update(ctx, "edit", id, func(t *models.Task) {
		t.Text = text
	})
}

// update applies change to a copy of the record and swaps it in whole.
func (s *Store) update(ctx context.Context, op, id string, change func(*models.Task)) (models.Task, error) {
	var (
		task models.Task
		snap scheduler.Snapshot
	)
	err := s.withLock(op, func() error {
		i := s.indexLocked(id)
		if i < 0 {
			return taskerr.NotFound(op, id)
		}
		task = s.tasks[i]
		change(&task)
		task.UpdatedAt = models.Millis(s.now())
		s.tasks[i] = task
		snap = s.snapshotLocked()
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return task, s.sched.Notify(ctx, snap)
}

// Delete removes id.
func (s *Store) Delete(ctx context.Context, id string) error {
	var snap scheduler.Snapshot
	err := s.withLock("delete", func() error {
		i := s.indexLocked(id)
		if i < 0 {
			return taskerr.NotFound("delete", id)
		}
		s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
		snap = s.snapshotLocked()
		return nil
	})
	if err != nil {
		return err
	}
	return s.sched.Notify(ctx, snap)
}

// ClearCompleted removes every completed task and returns how many were
// removed. Removing none still counts as a mutation.
func (s *Store) ClearCompleted(ctx context.Context) (int, error) {
	var (
		removed int
		snap    scheduler.Snapshot
	)
	err := s.withLock("clear_completed", func() error {
		kept := make([]models.Task, 0, len(s.tasks))
		for _, t := range s.tasks {
			if !t.Completed {
				kept = append(kept, t)
			}
		}
		removed = len(s.tasks) - len(kept)
		s.tasks = kept
		snap = s.snapshotLocked()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, s.sched.Notify(ctx, snap)
}

// ForceSave writes the current collection regardless of the debounce window.
func (s *Store) ForceSave(ctx context.Context) error {
	var snap scheduler.Snapshot
	if err := s.withLock("force_save", func() error {
		snap = s.snapshotLocked()
		return nil
	}); err != nil {
		return err
	}
	return s.sched.ForceFlush(ctx, snap)
}

// FlushPending writes the current collection when a change is pending and
// its debounce window has passed. It is a no-op otherwise.
func (s *Store) FlushPending(ctx context.Context) error {
	if !s.sched.Due() {
		return nil
	}
	return s.ForceSave(ctx)
}

// Status reports the persistence state.
func (s *Store) Status() scheduler.Status {
	return s.sched.Status()
}

// Flushes returns the storage journal, newest first, when the backend keeps
// one.
func (s *Store) Flushes(ctx context.Context, limit int) ([]persist.Flush, error) {
	return s.sched.Flushes(ctx, limit)
}

// Close releases the storage backend. It does not save; call ForceSave first.
func (s *Store) Close() error {
	return s.sched.Close()
}
