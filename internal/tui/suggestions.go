package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Suggestions provides autocomplete for slash commands typed in the input box.
type Suggestions struct {
	items       []SuggestionItem
	filtered    []SuggestionItem
	selectedIdx int
	visible     bool
}

// SuggestionItem represents a single autocomplete suggestion
type SuggestionItem struct {
	Text        string
	Description string
}

var commandSuggestions = []SuggestionItem{
	{Text: "/add", Description: "Create a new task"},
	{Text: "/edit", Description: "Replace the selected task's text"},
	{Text: "/toggle", Description: "Mark the selected task done or not done"},
	{Text: "/delete", Description: "Delete the selected task"},
	{Text: "/clear", Description: "Remove all completed tasks"},
	{Text: "/save", Description: "Write tasks to storage now"},
	{Text: "/filter", Description: "Show all, active or completed tasks"},
	{Text: "/quit", Description: "Leave the task list"},
}

// NewSuggestions creates a new suggestions handler
func NewSuggestions() *Suggestions {
	return &Suggestions{
		items:   commandSuggestions,
		visible: false,
	}
}

// Update updates suggestions based on current input. Only a leading slash
// with no argument typed yet opens the dropdown.
func (s *Suggestions) Update(input string) {
	if !strings.HasPrefix(input, "/") || strings.Contains(input, " ") {
		s.visible = false
		s.filtered = nil
		return
	}

	s.visible = true
	s.filter(strings.ToLower(input))
}

func (s *Suggestions) filter(query string) {
	if query == "" {
		s.filtered = s.items
		s.selectedIdx = 0
		return
	}

	s.filtered = []SuggestionItem{}
	for _, item := range s.items {
		if strings.HasPrefix(item.Text, query) {
			s.filtered = append(s.filtered, item)
		}
	}
	s.selectedIdx = 0
}

// Next moves to the next suggestion
func (s *Suggestions) Next() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx = (s.selectedIdx + 1) % len(s.filtered)
}

// Prev moves to the previous suggestion
func (s *Suggestions) Prev() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx--
	if s.selectedIdx < 0 {
		s.selectedIdx = len(s.filtered) - 1
	}
}

// Selected returns the currently selected suggestion
func (s *Suggestions) Selected() *SuggestionItem {
	if !s.visible || len(s.filtered) == 0 || s.selectedIdx >= len(s.filtered) {
		return nil
	}
	return &s.filtered[s.selectedIdx]
}

// IsVisible returns whether suggestions are currently visible
func (s *Suggestions) IsVisible() bool {
	return s.visible && len(s.filtered) > 0
}

// Render renders the suggestions dropdown
func (s *Suggestions) Render(width int) string {
	if !s.IsVisible() {
		return ""
	}

	var b strings.Builder

	suggestionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#6366F1")).
		Padding(0, 1).
		Width(width - 4)

	selectedStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("#7C3AED")).
		Foreground(lipgloss.Color("#F9FAFB")).
		Bold(true)

	itemStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F9FAFB"))

	descStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280")).
		Italic(true)

	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")).Render("Commands"))
	b.WriteString("\n")

	// Show max 5 suggestions
	maxVisible := 5
	for i, item := range s.filtered {
		if i >= maxVisible {
			more := len(s.filtered) - maxVisible
			b.WriteString(descStyle.Render(fmt.Sprintf("  ... and %d more", more)))
			break
		}

		line := ""
		if i == s.selectedIdx {
			line = selectedStyle.Render("▶ " + item.Text)
			if item.Description != "" {
				line += " " + selectedStyle.Render(item.Description)
			}
		} else {
			line = itemStyle.Render("  " + item.Text)
			if item.Description != "" {
				line += " " + descStyle.Render(item.Description)
			}
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return suggestionStyle.Render(b.String())
}
