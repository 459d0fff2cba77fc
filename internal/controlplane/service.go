// Package controlplane provides the command surface and HTTP API for the
// task list.
package controlplane

import (
	"context"

	"go.uber.org/zap"

	"github.com/fentz26/tasklist/internal/audit"
	"github.com/fentz26/tasklist/internal/models"
	"github.com/fentz26/tasklist/internal/persist"
	"github.com/fentz26/tasklist/internal/scheduler"
	"github.com/fentz26/tasklist/internal/store"
	"github.com/fentz26/tasklist/internal/taskerr"
	"github.com/fentz26/tasklist/internal/validate"
)

// Service validates untrusted input and runs task commands against the store.
type Service struct {
	store  *store.Store
	audit  *audit.Recorder
	maxLen int
	log    *zap.Logger
}

// NewService creates a new control plane service. A maxLen <= 0 selects the
// default text limit.
func NewService(s *store.Store, rec *audit.Recorder, maxLen int, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = audit.NewRecorder(log)
	}
	if maxLen <= 0 {
		maxLen = validate.DefaultMaxLength
	}
	return &Service{
		store:  s,
		audit:  rec,
		maxLen: maxLen,
		log:    log,
	}
}

// --- Queries ---

// ListTasks returns the tasks visible under filter.
func (s *Service) ListTasks(filter models.Filter) ([]models.Task, error) {
	return s.store.List(filter)
}

// GetTask retrieves a task by ID.
func (s *Service) GetTask(id string) (models.Task, error) {
	return s.store.Get(id)
}

// Stats counts tasks by completion.
func (s *Service) Stats() (models.Stats, error) {
	return s.store.Stats()
}

// Status reports the persistence state.
func (s *Service) Status() scheduler.Status {
	return s.store.Status()
}

// RecentAudit returns the latest recorded commands, newest first.
func (s *Service) RecentAudit(limit int) []audit.Entry {
	return s.audit.Recent(limit)
}

// Flushes returns the storage write journal, newest first.
func (s *Service) Flushes(ctx context.Context, limit int) ([]persist.Flush, error) {
	return s.store.Flushes(ctx, limit)
}

// --- Commands ---

// AddTask validates text and appends a task. An IOFailure means the task was
// added but not yet written.
func (s *Service) AddTask(ctx context.Context, text string) (models.Task, error) {
	normalized, err := validate.NormalizeAndValidate(text, s.maxLen)
	if err != nil {
		s.record("task.add", map[string]int{"length": len(text)}, "", err)
		return models.Task{}, taskerr.Invalid("add", err)
	}

	task, err := s.store.Add(ctx, normalized)
	s.record("task.add", map[string]string{"text": normalized}, task.ID, err)
	return task, err
}

// ToggleTask flips the completion flag of id.
func (s *Service) ToggleTask(ctx context.Context, id string) (models.Task, error) {
	task, err := s.store.Toggle(ctx, id)
	s.record("task.toggle", map[string]string{"id": id}, id, err)
	return task, err
}

// EditTask validates text and replaces the text of id.
func (s *Service) EditTask(ctx context.Context, id, text string) (models.Task, error) {
	normalized, err := validate.NormalizeAndValidate(text, s.maxLen)
	if err != nil {
		s.record("task.edit", map[string]interface{}{"id": id, "length": len(text)}, id, err)
		return models.Task{}, taskerr.Invalid("edit", err)
	}

	task, err := s.store.Edit(ctx, id, normalized)
	s.record("task.edit", map[string]string{"id": id, "text": normalized}, id, err)
	return task, err
}

// DeleteTask removes id.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, id)
	s.record("task.delete", map[string]string{"id": id}, id, err)
	return err
}

// ClearCompleted removes every completed task.
func (s *Service) ClearCompleted(ctx context.Context) (int, error) {
	n, err := s.store.ClearCompleted(ctx)
	s.record("task.clear_completed", map[string]int{"removed": n}, "", err)
	return n, err
}

// ForceSave writes the collection now.
func (s *Service) ForceSave(ctx context.Context) error {
	err := s.store.ForceSave(ctx)
	s.record("task.force_save", nil, "", err)
	if err != nil {
		s.log.Error("Force save failed", zap.Error(err))
	}
	return err
}

func (s *Service) record(action string, inputs interface{}, taskID string, err error) {
	if err != nil {
		s.audit.Record(action, inputs, audit.OutcomeFailure, taskID, taskerr.KindOf(err).String())
		return
	}
	s.audit.Record(action, inputs, audit.OutcomeSuccess, taskID, "")
}
