package tui

import (
	"net/http/httptest"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fentz26/tasklist/internal/audit"
	"github.com/fentz26/tasklist/internal/controlplane"
	"github.com/fentz26/tasklist/internal/models"
	"github.com/fentz26/tasklist/internal/persist"
	"github.com/fentz26/tasklist/internal/scheduler"
	"github.com/fentz26/tasklist/internal/store"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sched := scheduler.New(persist.NewMemory(), 0)
	st := store.New(sched)
	t.Cleanup(func() { st.Close() })

	log := zap.NewNop()
	svc := controlplane.NewService(st, audit.NewRecorder(log), 500, log)
	srv := controlplane.NewServer(svc, "", nil, log)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return New(ts.URL)
}

// run feeds cmd's message back into the model, the way the program loop
// would, and returns the resulting message.
func run(t *testing.T, a *App, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	a.Update(msg)
	return msg
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(a *App, text string) {
	for _, r := range text {
		a.Update(key(string(r)))
	}
}

func TestSuggestions(t *testing.T) {
	s := NewSuggestions()

	s.Update("buy milk")
	assert.False(t, s.IsVisible())

	s.Update("/")
	assert.True(t, s.IsVisible())
	assert.Equal(t, "/add", s.Selected().Text)

	s.Update("/t")
	require.True(t, s.IsVisible())
	assert.Equal(t, "/toggle", s.Selected().Text)

	s.Update("/add milk")
	assert.False(t, s.IsVisible(), "dropdown closes once an argument is typed")

	s.Update("/zzz")
	assert.False(t, s.IsVisible())
	assert.Nil(t, s.Selected())
}

func TestSuggestions_Cycle(t *testing.T) {
	s := NewSuggestions()
	s.Update("/")

	s.Prev()
	assert.Equal(t, "/quit", s.Selected().Text)
	s.Next()
	assert.Equal(t, "/add", s.Selected().Text)
}

func TestApp_AddThroughInput(t *testing.T) {
	a := newTestApp(t)

	a.Update(key("a"))
	assert.Equal(t, ModeInput, a.mode)

	typeText(a, "Buy milk")
	_, cmd := a.Update(key("enter"))
	assert.Equal(t, ModeList, a.mode)

	msg := run(t, a, cmd)
	assert.IsType(t, commandResultMsg{}, msg)
	assert.Contains(t, a.message, "Buy milk")

	run(t, a, a.fetchTasks())
	require.Len(t, a.tasks, 1)
	assert.Equal(t, "Buy milk", a.tasks[0].Text)
	assert.Equal(t, 1, a.stats.Active)
}

func TestApp_InvalidAddShowsError(t *testing.T) {
	a := newTestApp(t)

	a.Update(key("a"))
	typeText(a, "   ")
	_, cmd := a.Update(key("enter"))
	assert.Nil(t, cmd, "blank input is ignored")

	run(t, a, a.add("   "))
	assert.Contains(t, a.message, "Error")
}

func TestApp_ToggleEditDelete(t *testing.T) {
	a := newTestApp(t)
	run(t, a, a.add("first"))
	run(t, a, a.fetchTasks())
	require.Len(t, a.tasks, 1)

	_, cmd := a.Update(key("x"))
	run(t, a, cmd)
	run(t, a, a.fetchTasks())
	assert.True(t, a.tasks[0].Completed)

	a.Update(key("e"))
	assert.Equal(t, a.tasks[0].ID, a.editingID)
	assert.Equal(t, "first", a.input.Value())
	typeText(a, " edited")
	_, cmd = a.Update(key("enter"))
	run(t, a, cmd)
	run(t, a, a.fetchTasks())
	assert.Equal(t, "first edited", a.tasks[0].Text)

	_, cmd = a.Update(key("d"))
	run(t, a, cmd)
	run(t, a, a.fetchTasks())
	assert.Empty(t, a.tasks)
}

func TestApp_SlashCommands(t *testing.T) {
	a := newTestApp(t)

	run(t, a, a.executeCommand("/add one"))
	run(t, a, a.executeCommand("/add two"))
	run(t, a, a.fetchTasks())
	require.Len(t, a.tasks, 2)

	run(t, a, a.executeCommand("/toggle"))
	run(t, a, a.executeCommand("/filter completed"))
	assert.Equal(t, models.FilterCompleted, a.filter())
	require.Len(t, a.tasks, 1)
	assert.Equal(t, "one", a.tasks[0].Text)

	run(t, a, a.executeCommand("/clear"))
	assert.Equal(t, "✓ Cleared 1 completed", a.message)

	run(t, a, a.executeCommand("/save"))
	assert.Equal(t, "✓ Saved", a.message)
	run(t, a, a.fetchTasks())
	assert.False(t, a.persistence.Pending)

	run(t, a, a.executeCommand("/bogus"))
	assert.Contains(t, a.message, "Unknown")
}

func TestApp_FilterCycle(t *testing.T) {
	a := newTestApp(t)

	_, cmd := a.Update(key("tab"))
	assert.Equal(t, models.FilterActive, a.filter())
	run(t, a, cmd)

	a.Update(key("tab"))
	a.Update(key("tab"))
	assert.Equal(t, models.FilterAll, a.filter())
}

func TestApp_EscCancelsInput(t *testing.T) {
	a := newTestApp(t)

	a.Update(key("/"))
	assert.True(t, a.suggestions.IsVisible())

	a.Update(key("esc"))
	assert.Equal(t, ModeList, a.mode)
	assert.Empty(t, a.input.Value())
	assert.False(t, a.suggestions.IsVisible())
}

func TestApp_View(t *testing.T) {
	a := newTestApp(t)
	run(t, a, a.add("render me"))
	run(t, a, a.fetchTasks())

	view := a.View()
	assert.Contains(t, view, "TASKS")
	assert.Contains(t, view, "render me")
	assert.Contains(t, view, "1 total")
	assert.Contains(t, view, "● DAEMON")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
}
