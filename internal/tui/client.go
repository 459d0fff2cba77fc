package tui

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fentz26/tasklist/internal/models"
	"github.com/fentz26/tasklist/internal/persist"
	"github.com/fentz26/tasklist/internal/scheduler"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status  int
	Kind    string
	Message string

	// Applied is set when the command took effect but was not saved.
	Applied bool
	Task    *models.Task
	Removed *int
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

// Client wraps HTTP calls to the tasklist API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// BaseURL returns the daemon address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListTasks fetches tasks visible under filter.
func (c *Client) ListTasks(filter models.Filter) ([]models.Task, error) {
	path := "/api/tasks"
	if filter != "" && filter != models.FilterAll {
		path += "?filter=" + url.QueryEscape(string(filter))
	}

	var tasks []models.Task
	if err := c.do(http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask fetches a single task.
func (c *Client) GetTask(id string) (models.Task, error) {
	var task models.Task
	err := c.do(http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, &task)
	return task, err
}

// AddTask creates a task. When the daemon added it but could not save, the
// task is returned together with the error; see IsUnsaved.
func (c *Client) AddTask(text string) (models.Task, error) {
	return c.taskCommand(http.MethodPost, "/api/tasks", map[string]string{"text": text})
}

// ToggleTask flips a task's completion flag.
func (c *Client) ToggleTask(id string) (models.Task, error) {
	return c.taskCommand(http.MethodPost, "/api/tasks/"+url.PathEscape(id)+"/toggle", nil)
}

// EditTask replaces a task's text.
func (c *Client) EditTask(id, text string) (models.Task, error) {
	return c.taskCommand(http.MethodPut, "/api/tasks/"+url.PathEscape(id), map[string]string{"text": text})
}

func (c *Client) taskCommand(method, path string, in interface{}) (models.Task, error) {
	var task models.Task
	err := c.do(method, path, in, &task)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Task != nil {
		task = *apiErr.Task
	}
	return task, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(id string) error {
	return c.do(http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil)
}

// ClearCompleted removes completed tasks and returns how many were removed.
func (c *Client) ClearCompleted() (int, error) {
	var result struct {
		Removed int `json:"removed"`
	}
	err := c.do(http.MethodPost, "/api/clear-completed", nil, &result)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Removed != nil {
		result.Removed = *apiErr.Removed
	}
	return result.Removed, err
}

// Save forces a write of the collection.
func (c *Client) Save() (scheduler.Status, error) {
	var st scheduler.Status
	err := c.do(http.MethodPost, "/api/save", nil, &st)
	return st, err
}

// Stats fetches task counts.
func (c *Client) Stats() (models.Stats, error) {
	var st models.Stats
	err := c.do(http.MethodGet, "/api/stats", nil, &st)
	return st, err
}

// Persistence fetches the persistence state.
func (c *Client) Persistence() (scheduler.Status, error) {
	var st scheduler.Status
	err := c.do(http.MethodGet, "/api/persistence", nil, &st)
	return st, err
}

// Flushes fetches the storage write journal, newest first.
func (c *Client) Flushes(limit int) ([]persist.Flush, error) {
	var flushes []persist.Flush
	err := c.do(http.MethodGet, fmt.Sprintf("/api/flushes?limit=%d", limit), nil, &flushes)
	return flushes, err
}

// CheckHealth checks if the daemon is healthy.
func (c *Client) CheckHealth() (bool, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var health struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, err
	}
	return resp.StatusCode == http.StatusOK && health.OK, nil
}

func (c *Client) do(method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: string(data)}
		var payload struct {
			Error   string       `json:"error"`
			Kind    string       `json:"kind"`
			Applied bool         `json:"applied"`
			Task    *models.Task `json:"task"`
			Removed *int         `json:"removed"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Kind = payload.Kind
			apiErr.Applied = payload.Applied
			apiErr.Task = payload.Task
			apiErr.Removed = payload.Removed
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// IsUnsaved reports whether err is from a command the daemon applied but
// could not write to storage. Repeating the command would apply it twice.
func IsUnsaved(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Applied
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
