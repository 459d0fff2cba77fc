package controlplane

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fentz26/tasklist/internal/models"
	"github.com/fentz26/tasklist/internal/scheduler"
	"github.com/fentz26/tasklist/internal/taskerr"
	"github.com/fentz26/tasklist/internal/version"
)

// Server provides the HTTP API for the task list.
type Server struct {
	service *Service
	addr    string
	log     *zap.Logger
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates a new HTTP server. An empty origins list allows every
// origin.
func NewServer(service *Service, addr string, origins []string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		service: service,
		addr:    addr,
		log:     log,
	}

	router := gin.New()
	router.Use(recovery(log))
	router.Use(requestLogger(log))
	router.Use(corsMiddleware(origins))

	// Health check
	router.GET("/health", s.handleHealth)

	api := router.Group("/api")
	{
		api.GET("/tasks", s.listTasks)
		api.POST("/tasks", s.createTask)
		api.GET("/tasks/:id", s.getTask)
		api.PUT("/tasks/:id", s.editTask)
		api.DELETE("/tasks/:id", s.deleteTask)
		api.POST("/tasks/:id/toggle", s.toggleTask)
		api.POST("/clear-completed", s.clearCompleted)
		api.POST("/save", s.forceSave)
		api.GET("/stats", s.getStats)
		api.GET("/persistence", s.getPersistence)
		api.GET("/audit", s.getAudit)
		api.GET("/flushes", s.getFlushes)
	}

	s.router = router
	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown, including a Shutdown that ran before Start.
func (s *Server) Start() error {
	s.log.Info("Starting tasklist daemon", zap.String("address", s.addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`

	// Applied is set when a command changed the collection but the write
	// that followed failed. Task or Removed then carry the command's result.
	Applied bool         `json:"applied,omitempty"`
	Task    *models.Task `json:"task,omitempty"`
	Removed *int         `json:"removed,omitempty"`
}

func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), errorResponse{
		Error: err.Error(),
		Kind:  taskerr.KindOf(err).String(),
	})
}

// failMutation reports a failed command. An IOFailure from a command means
// the change stands in memory, so the response carries its result and the
// client does not repeat it.
func (s *Server) failMutation(c *gin.Context, err error, result errorResponse) {
	if taskerr.KindOf(err) != taskerr.KindIOFailure {
		s.fail(c, err)
		return
	}
	_ = c.Error(err)
	result.Error = err.Error()
	result.Kind = taskerr.KindIOFailure.String()
	result.Applied = true
	c.JSON(statusFor(err), result)
}

// --- Health ---

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	OK          bool             `json:"ok"`
	Version     string           `json:"version"`
	Time        string           `json:"time"`
	Persistence scheduler.Status `json:"persistence"`
}

// handleHealth reports 503 while the most recent write has failed.
func (s *Server) handleHealth(c *gin.Context) {
	st := s.service.Status()
	resp := HealthResponse{
		OK:          st.LastError == "",
		Version:     version.Version,
		Time:        time.Now().UTC().Format(time.RFC3339),
		Persistence: st,
	}

	status := http.StatusOK
	if !resp.OK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// --- Task Handlers ---

type textRequest struct {
	Text string `json:"text"`
}

func (s *Server) bindText(c *gin.Context, op string) (string, bool) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, taskerr.Invalid(op, ErrInvalidJSON))
		return "", false
	}
	return req.Text, true
}

func (s *Server) listTasks(c *gin.Context) {
	filter, err := models.ParseFilter(c.Query("filter"))
	if err != nil {
		s.fail(c, taskerr.Invalid("list", err))
		return
	}

	tasks, err := s.service.ListTasks(filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) createTask(c *gin.Context) {
	text, ok := s.bindText(c, "add")
	if !ok {
		return
	}

	task, err := s.service.AddTask(c.Request.Context(), text)
	if err != nil {
		s.failMutation(c, err, errorResponse{Task: &task})
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) getTask(c *gin.Context) {
	task, err := s.service.GetTask(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) editTask(c *gin.Context) {
	text, ok := s.bindText(c, "edit")
	if !ok {
		return
	}

	task, err := s.service.EditTask(c.Request.Context(), c.Param("id"), text)
	if err != nil {
		s.failMutation(c, err, errorResponse{Task: &task})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) toggleTask(c *gin.Context) {
	task, err := s.service.ToggleTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.failMutation(c, err, errorResponse{Task: &task})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) deleteTask(c *gin.Context) {
	if err := s.service.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		s.failMutation(c, err, errorResponse{})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) clearCompleted(c *gin.Context) {
	n, err := s.service.ClearCompleted(c.Request.Context())
	if err != nil {
		s.failMutation(c, err, errorResponse{Removed: &n})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": n})
}

func (s *Server) forceSave(c *gin.Context) {
	if err := s.service.ForceSave(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.service.Status())
}

func (s *Server) getStats(c *gin.Context) {
	st, err := s.service.Stats()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) getPersistence(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Status())
}

// queryLimit parses ?limit=, falling back to def when absent.
func (s *Server) queryLimit(c *gin.Context, op string, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		s.fail(c, taskerr.Invalid(op, errors.New("limit must be a non-negative integer")))
		return 0, false
	}
	return n, true
}

func (s *Server) getAudit(c *gin.Context) {
	limit, ok := s.queryLimit(c, "audit", 20)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.service.RecentAudit(limit))
}

// getFlushes returns the storage write journal. Backends without one return
// an empty list.
func (s *Server) getFlushes(c *gin.Context) {
	limit, ok := s.queryLimit(c, "flushes", 20)
	if !ok {
		return
	}
	flushes, err := s.service.Flushes(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, flushes)
}
