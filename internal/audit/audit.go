// Package audit records state-mutating task commands for later review.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Outcomes recorded for a command.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Entry is one recorded command.
type Entry struct {
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	TaskID     string    `json:"task_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Recorder writes audit entries to a structured log and keeps the most
// recent ones in memory.
type Recorder struct {
	log *zap.Logger

	mu     sync.Mutex
	recent []Entry
	keep   int
}

// DefaultKeep is how many entries a Recorder retains.
const DefaultKeep = 100

// NewRecorder creates a recorder logging to log.
func NewRecorder(log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{log: log.Named("audit"), keep: DefaultKeep}
}

// Record logs a command. Inputs are hashed, never logged verbatim, since task
// text is user content.
func (r *Recorder) Record(action string, inputs interface{}, outcome, taskID, details string) Entry {
	e := Entry{
		Action:     action,
		InputsHash: hashInputs(inputs),
		Outcome:    outcome,
		TaskID:     taskID,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}

	r.log.Info("Command recorded",
		zap.String("action", e.Action),
		zap.String("inputs_hash", e.InputsHash),
		zap.String("outcome", e.Outcome),
		zap.String("task_id", e.TaskID),
		zap.String("details", e.Details),
	)

	r.mu.Lock()
	r.recent = append(r.recent, e)
	if len(r.recent) > r.keep {
		r.recent = r.recent[len(r.recent)-r.keep:]
	}
	r.mu.Unlock()

	return e
}

// Recent returns up to limit entries, newest first.
func (r *Recorder) Recent(limit int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > len(r.recent) {
		limit = len(r.recent)
	}
	out := make([]Entry, 0, limit)
	for i := len(r.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.recent[i])
	}
	return out
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
