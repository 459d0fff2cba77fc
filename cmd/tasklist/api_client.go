package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fentz26/tasklist/internal/controlplane"
	"github.com/fentz26/tasklist/internal/models"
	"github.com/fentz26/tasklist/internal/scheduler"
	"github.com/fentz26/tasklist/internal/tui"
)

// healthClient is used for quick liveness probes.
var healthClient = &http.Client{
	Timeout: 2 * time.Second,
}

// taskAPI is the command surface the task subcommands drive, either over
// HTTP or against a local collection.
type taskAPI interface {
	ListTasks(filter models.Filter) ([]models.Task, error)
	GetTask(id string) (models.Task, error)
	AddTask(text string) (models.Task, error)
	ToggleTask(id string) (models.Task, error)
	EditTask(id, text string) (models.Task, error)
	DeleteTask(id string) error
	ClearCompleted() (int, error)
	Save() (scheduler.Status, error)
	Stats() (models.Stats, error)
}

var _ taskAPI = (*tui.Client)(nil)
var _ taskAPI = (*localAPI)(nil)

// localAPI runs commands in-process against the configured storage.
type localAPI struct {
	ctx context.Context
	app *localApp
}

func (l *localAPI) ListTasks(filter models.Filter) ([]models.Task, error) {
	return l.app.service.ListTasks(filter)
}

func (l *localAPI) GetTask(id string) (models.Task, error) {
	return l.app.service.GetTask(id)
}

func (l *localAPI) AddTask(text string) (models.Task, error) {
	return l.app.service.AddTask(l.ctx, text)
}

func (l *localAPI) ToggleTask(id string) (models.Task, error) {
	return l.app.service.ToggleTask(l.ctx, id)
}

func (l *localAPI) EditTask(id, text string) (models.Task, error) {
	return l.app.service.EditTask(l.ctx, id, text)
}

func (l *localAPI) DeleteTask(id string) error {
	return l.app.service.DeleteTask(l.ctx, id)
}

func (l *localAPI) ClearCompleted() (int, error) {
	return l.app.service.ClearCompleted(l.ctx)
}

func (l *localAPI) Save() (scheduler.Status, error) {
	if err := l.app.service.ForceSave(l.ctx); err != nil {
		return l.app.service.Status(), err
	}
	return l.app.service.Status(), nil
}

func (l *localAPI) Stats() (models.Stats, error) {
	return l.app.service.Stats()
}

// CheckHealth checks if the daemon is healthy and returns the health response.
// Unlike other API calls, this returns the parsed HealthResponse even on non-200
// responses, allowing callers to inspect the health payload alongside the error.
func CheckHealth(addr string) (*controlplane.HealthResponse, error) {
	resp, err := healthClient.Get(addr + "/health")
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var health controlplane.HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}

	// Return both payload and error on non-200 status
	if resp.StatusCode != http.StatusOK {
		return &health, fmt.Errorf("health check failed (status %d): %s", resp.StatusCode, string(body))
	}

	return &health, nil
}
