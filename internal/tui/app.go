// Package tui provides the interactive terminal UI for the task list.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/tasklist/internal/models"
	"github.com/fentz26/tasklist/internal/scheduler"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	idleInputBoxStyle = inputBoxStyle.
				BorderForeground(mutedColor)

	taskItemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	pendingStyle = lipgloss.NewStyle().
			Foreground(warningColor)
)

// App is the main TUI application model.
type App struct {
	client      *Client
	tasks       []models.Task
	stats       models.Stats
	persistence scheduler.Status
	selectedIdx int
	input       textinput.Model
	width       int
	height      int
	mode        Mode
	editingID   string
	message     string
	filterIdx   int
	online      bool
	suggestions *Suggestions
}

// New creates a new TUI application.
func New(apiAddr string) *App {
	ti := textinput.New()
	ti.Placeholder = "New task text, or /command"
	ti.CharLimit = 1000
	ti.Width = 80

	return &App{
		client:      NewClient(apiAddr),
		input:       ti,
		mode:        ModeList,
		width:       80,
		height:      24,
		suggestions: NewSuggestions(),
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.fetchTasks(),
		a.checkDaemon(),
		a.tickCmd(),
	)
}

func (a *App) filter() models.Filter {
	return filters[a.filterIdx]
}

func (a *App) selected() (models.Task, bool) {
	if len(a.tasks) == 0 {
		return models.Task{}, false
	}
	return a.tasks[clampSelection(a.selectedIdx, len(a.tasks))], true
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.mode == ModeInput {
			return a.updateInput(msg)
		}
		return a, a.updateList(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 6

	case tasksLoadedMsg:
		a.tasks = msg.tasks
		a.stats = msg.stats
		a.persistence = msg.persistence
		a.online = true
		a.selectedIdx = clampSelection(a.selectedIdx, len(a.tasks))

	case daemonStatusMsg:
		a.online = msg.online

	case tickMsg:
		return a, tea.Batch(a.fetchTasks(), a.tickCmd())

	case commandResultMsg:
		a.message = msg.message
		return a, a.fetchTasks()

	case errMsg:
		a.message = "Error: " + msg.err.Error()
		if IsUnsaved(msg.err) {
			return a, a.fetchTasks()
		}
	}

	return a, nil
}

func (a *App) updateList(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit

	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "down", "j":
		if a.selectedIdx < len(a.tasks)-1 {
			a.selectedIdx++
		}

	case "tab", "f":
		a.filterIdx = (a.filterIdx + 1) % len(filters)
		a.selectedIdx = 0
		return a.fetchTasks()

	case " ", "space", "x":
		if task, ok := a.selected(); ok {
			return a.toggle(task.ID)
		}

	case "d", "delete":
		if task, ok := a.selected(); ok {
			return a.remove(task.ID)
		}

	case "c":
		return a.clearCompleted()

	case "s":
		return a.save()

	case "r":
		return a.fetchTasks()

	case "a", "n":
		return a.focusInput("", "")

	case "/":
		return a.focusInput("", "/")

	case "e", "enter":
		if task, ok := a.selected(); ok {
			return a.focusInput(task.ID, task.Text)
		}
	}
	return nil
}

func (a *App) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.blurInput()
		return a, nil

	case "up":
		if a.suggestions.IsVisible() {
			a.suggestions.Prev()
			return a, nil
		}

	case "down":
		if a.suggestions.IsVisible() {
			a.suggestions.Next()
			return a, nil
		}

	case "tab":
		if selected := a.suggestions.Selected(); selected != nil {
			a.input.SetValue(selected.Text + " ")
			a.input.CursorEnd()
			a.suggestions.Update(a.input.Value())
		}
		return a, nil

	case "enter":
		if selected := a.suggestions.Selected(); selected != nil && selected.Text != strings.TrimSpace(a.input.Value()) {
			a.input.SetValue(selected.Text + " ")
			a.input.CursorEnd()
			a.suggestions.Update(a.input.Value())
			return a, nil
		}
		value := a.input.Value()
		editingID := a.editingID
		a.blurInput()
		return a, a.submit(editingID, value)
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	a.suggestions.Update(a.input.Value())
	return a, cmd
}

func (a *App) focusInput(editingID, value string) tea.Cmd {
	a.mode = ModeInput
	a.editingID = editingID
	a.message = ""
	a.input.SetValue(value)
	a.input.CursorEnd()
	a.suggestions.Update(value)
	return a.input.Focus()
}

func (a *App) blurInput() {
	a.mode = ModeList
	a.editingID = ""
	a.input.SetValue("")
	a.input.Blur()
	a.suggestions.Update("")
}

// submit runs what was typed: a slash command, an edit of editingID, or a
// new task.
func (a *App) submit(editingID, value string) tea.Cmd {
	trimmed := strings.TrimSpace(value)
	switch {
	case strings.HasPrefix(trimmed, "/"):
		return a.executeCommand(trimmed)
	case editingID != "":
		return a.edit(editingID, value)
	case trimmed == "":
		return nil
	default:
		return a.add(value)
	}
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	// Header with daemon status
	daemonStatus := onlineStyle.Render("● DAEMON")
	if !a.online {
		daemonStatus = offlineStyle.Render("○ DAEMON")
	}

	saveStatus := onlineStyle.Render("saved")
	if a.persistence.Pending {
		saveStatus = pendingStyle.Render("unsaved changes")
	}
	if a.persistence.LastError != "" {
		saveStatus = offlineStyle.Render("save failed")
	}

	header := titleStyle.Render("TASKS")
	header += "  " + daemonStatus
	header += "  " + saveStatus

	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 1)) + "\n")

	// Main content area
	contentHeight := a.height - 9
	if contentHeight < 3 {
		contentHeight = 3
	}

	filterLabel := fmt.Sprintf(" Filter: [%s]", filterNames[a.filterIdx])
	b.WriteString(lipgloss.NewStyle().Foreground(mutedColor).Render(filterLabel) + "\n")
	b.WriteString(renderTaskList(a.tasks, a.selectedIdx, contentHeight, a.filter()))

	// Message bar
	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}

	// Input box
	b.WriteString("\n")
	if a.mode == ModeInput {
		b.WriteString(inputBoxStyle.Render(a.input.View()))
	} else {
		b.WriteString(idleInputBoxStyle.Render(a.input.View()))
	}

	// Suggestions dropdown (if visible) - renders BELOW input
	if a.suggestions.IsVisible() {
		b.WriteString("\n")
		b.WriteString(a.suggestions.Render(a.width))
	}
	b.WriteString("\n")

	// Status bar
	var status string
	switch {
	case a.mode == ModeInput && a.editingID != "":
		status = " Editing | Enter:save | Esc:cancel"
	case a.mode == ModeInput:
		status = " Enter:add | /:commands | Tab:complete | Esc:cancel"
	default:
		status = fmt.Sprintf(" %d total, %d active, %d done | ↑↓:nav | space:toggle | a:add | e:edit | d:delete | c:clear done | s:save | Tab:filter | q:quit",
			a.stats.Total, a.stats.Active, a.stats.Completed)
	}
	b.WriteString(statusBarStyle.Width(max(a.width, 1)).Render(status))

	return b.String()
}

// --- Commands ---

func (a *App) fetchTasks() tea.Cmd {
	client := a.client
	filter := a.filter()
	return func() tea.Msg {
		tasks, err := client.ListTasks(filter)
		if err != nil {
			return errMsg{err}
		}
		stats, err := client.Stats()
		if err != nil {
			return errMsg{err}
		}
		persistence, err := client.Persistence()
		if err != nil {
			return errMsg{err}
		}
		return tasksLoadedMsg{tasks: tasks, stats: stats, persistence: persistence}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	client := a.client
	return func() tea.Msg {
		ok, err := client.CheckHealth()
		return daemonStatusMsg{online: err == nil && ok}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) add(text string) tea.Cmd {
	client := a.client
	return func() tea.Msg {
		task, err := client.AddTask(text)
		if err != nil {
			return commandFailed(err, "added")
		}
		return commandResultMsg{fmt.Sprintf("✓ Added: %s", truncate(task.Text, 40))}
	}
}

func (a *App) edit(id, text string) tea.Cmd {
	client := a.client
	return func() tea.Msg {
		if _, err := client.EditTask(id, text); err != nil {
			return commandFailed(err, "updated")
		}
		return commandResultMsg{"✓ Task updated"}
	}
}

func (a *App) toggle(id string) tea.Cmd {
	client := a.client
	return func() tea.Msg {
		task, err := client.ToggleTask(id)
		if err != nil {
			return commandFailed(err, "toggled")
		}
		if task.Completed {
			return commandResultMsg{"✓ Marked done"}
		}
		return commandResultMsg{"✓ Marked not done"}
	}
}

func (a *App) remove(id string) tea.Cmd {
	client := a.client
	return func() tea.Msg {
		if err := client.DeleteTask(id); err != nil {
			return commandFailed(err, "deleted")
		}
		return commandResultMsg{"✓ Task deleted"}
	}
}

func (a *App) clearCompleted() tea.Cmd {
	client := a.client
	return func() tea.Msg {
		n, err := client.ClearCompleted()
		if err != nil {
			return commandFailed(err, fmt.Sprintf("cleared %d", n))
		}
		return commandResultMsg{fmt.Sprintf("✓ Cleared %d completed", n)}
	}
}

func (a *App) save() tea.Cmd {
	client := a.client
	return func() tea.Msg {
		if _, err := client.Save(); err != nil {
			return errMsg{err}
		}
		return commandResultMsg{"✓ Saved"}
	}
}

func (a *App) executeCommand(input string) tea.Cmd {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmd := parts[0]
	rest := strings.TrimSpace(strings.TrimPrefix(input, cmd))
	task, hasSelection := a.selected()

	switch cmd {
	case "/add":
		if rest == "" {
			return result("Usage: /add <text>")
		}
		return a.add(rest)

	case "/edit":
		if !hasSelection {
			return result("No task selected")
		}
		if rest == "" {
			return a.focusInput(task.ID, task.Text)
		}
		return a.edit(task.ID, rest)

	case "/toggle":
		if !hasSelection {
			return result("No task selected")
		}
		return a.toggle(task.ID)

	case "/delete":
		if !hasSelection {
			return result("No task selected")
		}
		return a.remove(task.ID)

	case "/clear":
		return a.clearCompleted()

	case "/save":
		return a.save()

	case "/filter":
		f, err := models.ParseFilter(rest)
		if err != nil {
			return result("Error: " + err.Error())
		}
		for i := range filters {
			if filters[i] == f {
				a.filterIdx = i
			}
		}
		a.selectedIdx = 0
		return a.fetchTasks()

	case "/q", "/quit", "/exit":
		return tea.Quit

	default:
		return result(fmt.Sprintf("Unknown: %s (try: /add, /edit, /save, /filter)", cmd))
	}
}

// commandFailed reports err. A command the daemon applied but could not save
// says so, since retrying it would apply it again.
func commandFailed(err error, done string) tea.Msg {
	if IsUnsaved(err) {
		return errMsg{fmt.Errorf("%s but not saved: %w", done, err)}
	}
	return errMsg{err}
}

func result(message string) tea.Cmd {
	return func() tea.Msg {
		return commandResultMsg{message}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
