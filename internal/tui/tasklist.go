package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/tasklist/internal/models"
)

var (
	statusActive    = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // Yellow
	statusCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // Green
	doneTextStyle   = lipgloss.NewStyle().Foreground(mutedColor).Strikethrough(true)
)

func formatCheck(completed bool) string {
	if completed {
		return statusCompleted.Render("[x]")
	}
	return statusActive.Render("[ ]")
}

func formatCheckPlain(completed bool) string {
	if completed {
		return "[x]"
	}
	return "[ ]"
}

// renderTaskList renders tasks with the selected row highlighted, scrolling
// so the selection stays visible within height lines.
func renderTaskList(tasks []models.Task, selectedIdx, height int, filter models.Filter) string {
	if len(tasks) == 0 {
		if filter != models.FilterAll {
			return fmt.Sprintf("\n  No %s tasks.\n", filter)
		}
		return "\n  No tasks yet. Press a to add one.\n"
	}

	lines := make([]string, 0, len(tasks))
	for i, task := range tasks {
		if i == selectedIdx {
			lines = append(lines, selectedStyle.Render(fmt.Sprintf("▶ %s  %s", formatCheckPlain(task.Completed), task.Text)))
			continue
		}
		text := task.Text
		if task.Completed {
			text = doneTextStyle.Render(text)
		}
		lines = append(lines, taskItemStyle.Render(fmt.Sprintf("  %s  %s", formatCheck(task.Completed), text)))
	}

	// Limit visible lines
	if height > 0 && len(lines) > height {
		start := selectedIdx - height/2
		if start < 0 {
			start = 0
		}
		end := start + height
		if end > len(lines) {
			end = len(lines)
			start = max(0, end-height)
		}
		lines = lines[start:end]
	}

	return strings.Join(lines, "\n")
}

// clampSelection keeps idx inside a list of n rows.
func clampSelection(idx, n int) int {
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}
