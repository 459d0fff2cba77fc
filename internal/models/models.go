// Package models defines the core domain types for tasklist.
package models

import (
	"fmt"
	"time"
)

// Task is a single to-do item.
type Task struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	CreatedAt int64  `json:"createdAt"` // ms since epoch
	UpdatedAt int64  `json:"updatedAt"` // ms since epoch
}

// Filter selects which tasks a listing returns. It is view state only and is
// never persisted.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// ParseFilter converts user input into a Filter. The empty string means all.
func ParseFilter(s string) (Filter, error) {
	switch Filter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterActive:
		return FilterActive, nil
	case FilterCompleted:
		return FilterCompleted, nil
	}
	return "", fmt.Errorf("unknown filter %q (want all, active or completed)", s)
}

// Match reports whether t is visible under f.
func (f Filter) Match(t Task) bool {
	switch f {
	case FilterActive:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return true
	}
}

// Stats summarizes a collection.
type Stats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
}

// Millis converts t to milliseconds since the Unix epoch.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
