package tui

import (
	"time"

	"github.com/fentz26/tasklist/internal/models"
	"github.com/fentz26/tasklist/internal/scheduler"
)

// Mode is what keystrokes currently drive.
type Mode string

const (
	ModeList  Mode = "list"
	ModeInput Mode = "input"
)

var filters = []models.Filter{models.FilterAll, models.FilterActive, models.FilterCompleted}
var filterNames = []string{"ALL", "ACTIVE", "DONE"}

// refreshInterval is how often the status bar polls the daemon.
const refreshInterval = 2 * time.Second

type tasksLoadedMsg struct {
	tasks       []models.Task
	stats       models.Stats
	persistence scheduler.Status
}

type commandResultMsg struct {
	message string
}

type errMsg struct {
	err error
}

type daemonStatusMsg struct {
	online bool
}

type tickMsg time.Time
