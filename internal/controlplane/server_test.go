package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/tasklist/internal/audit"
	"github.com/fentz26/tasklist/internal/models"
	"github.com/fentz26/tasklist/internal/persist"
	"github.com/fentz26/tasklist/internal/scheduler"
	"github.com/fentz26/tasklist/internal/store"
)

func newTestServer(t *testing.T) (*Server, *persist.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := persist.NewMemory()
	st := store.New(scheduler.New(mem, time.Second))
	service := NewService(st, audit.NewRecorder(nil), 0, nil)
	return NewServer(service, "127.0.0.1:0", nil, nil), mem
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createTask(t *testing.T, s *Server, text string) models.Task {
	t.Helper()
	w := do(t, s, http.MethodPost, "/api/tasks", textRequest{Text: text})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Task](t, w)
}

func TestHealthEndpoint_OK(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	health := decode[HealthResponse](t, w)
	assert.True(t, health.OK)
	assert.NotEmpty(t, health.Version)
	assert.NotEmpty(t, health.Time)
	assert.Equal(t, persist.DriverMemory, health.Persistence.Backend)
}

func TestHealthEndpoint_WriteFailure(t *testing.T) {
	s, mem := newTestServer(t)
	mem.FailWith(errors.New("disk full"))

	w := do(t, s, http.MethodPost, "/api/tasks", textRequest{Text: "unsaved"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	health := decode[HealthResponse](t, w)
	assert.False(t, health.OK)
	assert.True(t, health.Persistence.Pending)
	assert.Contains(t, health.Persistence.LastError, "disk full")
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/health", nil)
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestCreateAndListTasks(t *testing.T) {
	s, _ := newTestServer(t)

	task := createTask(t, s, "  Write\r\n\r\nreport  ")
	assert.Equal(t, "Write report", task.Text)
	assert.False(t, task.Completed)

	createTask(t, s, "second")

	w := do(t, s, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tasks := decode[[]models.Task](t, w)
	require.Len(t, tasks, 2)
	assert.Equal(t, task.ID, tasks[0].ID)
}

func TestListTasks_EmptyIsArray(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestListTasks_Filter(t *testing.T) {
	s, _ := newTestServer(t)
	done := createTask(t, s, "done")
	createTask(t, s, "open")
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/tasks/"+done.ID+"/toggle", nil).Code)

	w := do(t, s, http.MethodGet, "/api/tasks?filter=completed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tasks := decode[[]models.Task](t, w)
	require.Len(t, tasks, 1)
	assert.Equal(t, done.ID, tasks[0].ID)

	w = do(t, s, http.MethodGet, "/api/tasks?filter=someday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateTask_Invalid(t *testing.T) {
	s, _ := newTestServer(t)

	cases := map[string]interface{}{
		"empty":    textRequest{Text: ""},
		"blank":    textRequest{Text: " \n\t "},
		"nul":      textRequest{Text: "a\x00b"},
		"too long": textRequest{Text: strings.Repeat("x", 501)},
		"bad json": "{text",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/tasks", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decode[errorResponse](t, w)
			assert.Equal(t, "invalid_input", resp.Kind)
		})
	}

	w := do(t, s, http.MethodGet, "/api/tasks", nil)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()), "rejected input must not change the collection")
}

func TestCreateTask_AtLimit(t *testing.T) {
	s, _ := newTestServer(t)
	task := createTask(t, s, strings.Repeat("x", 500))
	assert.Len(t, task.Text, 500)
}

func TestGetTask(t *testing.T) {
	s, _ := newTestServer(t)
	task := createTask(t, s, "find me")

	w := do(t, s, http.MethodGet, "/api/tasks/"+task.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, task.ID, decode[models.Task](t, w).ID)

	w = do(t, s, http.MethodGet, "/api/tasks/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestToggleTask(t *testing.T) {
	s, _ := newTestServer(t)
	task := createTask(t, s, "flip")

	w := do(t, s, http.MethodPost, "/api/tasks/"+task.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[models.Task](t, w).Completed)

	w = do(t, s, http.MethodPost, "/api/tasks/missing/toggle", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[errorResponse](t, w).Kind)
}

func TestEditTask(t *testing.T) {
	s, _ := newTestServer(t)
	task := createTask(t, s, "draft")

	w := do(t, s, http.MethodPut, "/api/tasks/"+task.ID, textRequest{Text: "final"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "final", decode[models.Task](t, w).Text)

	w = do(t, s, http.MethodPut, "/api/tasks/"+task.ID, textRequest{Text: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPut, "/api/tasks/missing", textRequest{Text: "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteTask(t *testing.T) {
	s, _ := newTestServer(t)
	task := createTask(t, s, "doomed")

	w := do(t, s, http.MethodDelete, "/api/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, s, http.MethodDelete, "/api/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClearCompletedAndStats(t *testing.T) {
	s, _ := newTestServer(t)
	createTask(t, s, "keep")
	for _, text := range []string{"one", "two"} {
		task := createTask(t, s, text)
		require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/tasks/"+task.ID+"/toggle", nil).Code)
	}

	w := do(t, s, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Stats{Total: 3, Active: 1, Completed: 2}, decode[models.Stats](t, w))

	w = do(t, s, http.MethodPost, "/api/clear-completed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[map[string]int](t, w)["removed"])
}

func TestForceSave(t *testing.T) {
	s, mem := newTestServer(t)
	createTask(t, s, "first")
	createTask(t, s, "second")
	require.Equal(t, 1, mem.WriteCount())

	w := do(t, s, http.MethodPost, "/api/save", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, mem.WriteCount())

	st := decode[scheduler.Status](t, w)
	assert.False(t, st.Pending)
	assert.NotNil(t, st.LastFlush)
}

func TestPersistenceAndAudit(t *testing.T) {
	s, _ := newTestServer(t)
	createTask(t, s, "one")
	do(t, s, http.MethodPost, "/api/tasks/missing/toggle", nil)

	w := do(t, s, http.MethodGet, "/api/persistence", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[scheduler.Status](t, w).Writes)

	w = do(t, s, http.MethodGet, "/api/audit?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode[[]audit.Entry](t, w)
	require.Len(t, entries, 2)
	assert.Equal(t, "task.toggle", entries[0].Action)
	assert.Equal(t, audit.OutcomeFailure, entries[0].Outcome)

	w = do(t, s, http.MethodGet, "/api/audit?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mem := persist.NewMemory()
	service := NewService(store.New(scheduler.New(mem, time.Second)), nil, 0, nil)
	s := NewServer(service, "", []string{"http://localhost:3000"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestShutdownBeforeStart(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.Shutdown(context.Background()))

	// A server shut down before it started must not begin listening.
	assert.ErrorIs(t, s.Start(), http.ErrServerClosed)
}

func TestMutations_WriteFailureCarriesAppliedResult(t *testing.T) {
	s, mem := newTestServer(t)
	mem.FailWith(errors.New("disk full"))

	w := do(t, s, http.MethodPost, "/api/tasks", textRequest{Text: "unsaved"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decode[errorResponse](t, w)
	assert.Equal(t, "io_failure", resp.Kind)
	assert.True(t, resp.Applied)
	require.NotNil(t, resp.Task)
	require.NotEmpty(t, resp.Task.ID)
	assert.Equal(t, "unsaved", resp.Task.Text)
	added := *resp.Task

	w = do(t, s, http.MethodPost, "/api/tasks/"+added.ID+"/toggle", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp = decode[errorResponse](t, w)
	require.NotNil(t, resp.Task)
	assert.Equal(t, added.ID, resp.Task.ID)
	assert.True(t, resp.Task.Completed)

	w = do(t, s, http.MethodPost, "/api/clear-completed", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp = decode[errorResponse](t, w)
	require.NotNil(t, resp.Removed)
	assert.Equal(t, 1, *resp.Removed)

	w = do(t, s, http.MethodPost, "/api/tasks", textRequest{Text: "draft"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	kept := *decode[errorResponse](t, w).Task

	w = do(t, s, http.MethodPut, "/api/tasks/"+kept.ID, textRequest{Text: "final"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp = decode[errorResponse](t, w)
	require.NotNil(t, resp.Task)
	assert.Equal(t, "final", resp.Task.Text)

	w = do(t, s, http.MethodPost, "/api/tasks", textRequest{Text: "gone"})
	gone := *decode[errorResponse](t, w).Task
	w = do(t, s, http.MethodDelete, "/api/tasks/"+gone.ID, nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp = decode[errorResponse](t, w)
	assert.True(t, resp.Applied)
	assert.Nil(t, resp.Task)

	mem.FailWith(nil)
	w = do(t, s, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tasks := decode[[]models.Task](t, w)
	require.Len(t, tasks, 1, "each command applied exactly once")
	assert.Equal(t, kept.ID, tasks[0].ID)
	assert.Equal(t, "final", tasks[0].Text)

	w = do(t, s, http.MethodPost, "/api/save", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMutations_NotFoundIsNotApplied(t *testing.T) {
	s, mem := newTestServer(t)
	mem.FailWith(errors.New("disk full"))

	w := do(t, s, http.MethodPost, "/api/tasks/missing/toggle", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.NotContains(t, body, "applied")
	assert.NotContains(t, body, "task")
}

func TestFlushes_NoJournal(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/flushes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(t, s, http.MethodGet, "/api/flushes?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFlushes_SQLiteJournal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	backend, err := persist.NewSQLite(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	st := store.New(scheduler.New(backend, time.Second))
	t.Cleanup(func() { st.Close() })
	s := NewServer(NewService(st, nil, 0, nil), "127.0.0.1:0", nil, nil)

	createTask(t, s, "one")
	createTask(t, s, "two")
	w := do(t, s, http.MethodPost, "/api/save", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/api/flushes?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	flushes := decode[[]persist.Flush](t, w)
	require.Len(t, flushes, 1)
	assert.Equal(t, 2, flushes[0].Tasks)
	assert.Len(t, flushes[0].SHA256, 64)
}
