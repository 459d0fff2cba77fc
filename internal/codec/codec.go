// Package codec converts a task collection to and from its durable document
// form: a pretty-printed JSON array, kept human readable on purpose.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fentz26/tasklist/internal/models"
	"github.com/fentz26/tasklist/internal/taskerr"
)

// Encode renders tasks as an indented JSON document.
func Encode(tasks []models.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []models.Task{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tasks: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a document produced by Encode. Empty input is an empty
// collection, not an error: it means nothing was saved yet.
func Decode(data []byte) ([]models.Task, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.Task{}, nil
	}

	var tasks []models.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, taskerr.Decode("decode tasks", err)
	}
	if tasks == nil {
		// "null" document
		tasks = []models.Task{}
	}
	if err := check(tasks); err != nil {
		return nil, taskerr.Decode("decode tasks", err)
	}
	return tasks, nil
}

// check enforces the collection invariants on data read from outside.
func check(tasks []models.Task) error {
	seen := make(map[string]struct{}, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			return fmt.Errorf("task %d: missing id", i)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("task %d: duplicate id %s", i, t.ID)
		}
		seen[t.ID] = struct{}{}
		if t.Text == "" {
			return fmt.Errorf("task %s: empty text", t.ID)
		}
	}
	return nil
}
