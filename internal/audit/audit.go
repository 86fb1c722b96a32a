// Package audit implements the audit-trail sink named in SPEC_FULL §C:
// an append-only record of every Ralph-Loop correction attempt, written
// as one JSON file per record under a log directory.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Outcome is the result of one correction attempt.
type Outcome string

const (
	OutcomeCorrected Outcome = "corrected"
	OutcomeFailed    Outcome = "failed"
	OutcomeExhausted Outcome = "exhausted"
)

// Record is one append-only audit entry (§7 "Error Handling Design").
type Record struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	TaskID        string    `json:"taskId"`
	ErrorKind     string    `json:"errorKind"`
	TargetFile    string    `json:"targetFile,omitempty"`
	AttemptNumber int       `json:"attemptNumber"`
	Outcome       Outcome   `json:"outcome"`
	Detail        string    `json:"detail,omitempty"`
}

// NewRecord builds a Record with a fresh id, leaving Timestamp zero for
// the caller to stamp (this package never calls time.Now itself; Append
// takes the timestamp as a parameter, so tests can construct
// deterministic records directly).
func NewRecord(taskID, errorKind string, attempt int) *Record {
	return &Record{
		ID:            uuid.NewString(),
		TaskID:        taskID,
		ErrorKind:     errorKind,
		AttemptNumber: attempt,
	}
}

// Sink appends Records to a log directory, one JSON file per record.
type Sink struct {
	dir string
}

// NewSink creates a Sink writing under dir (created on first Append if
// missing).
func NewSink(dir string) *Sink {
	return &Sink{dir: dir}
}

// Append stamps r.Timestamp with now and writes it as
// "<dir>/audit-<id>.json". The write is a plain create (no atomic
// rename): each record is a new, distinct file, so there is no existing
// reader that could observe a partial overwrite the way tasks.md or the
// state file could.
func (s *Sink) Append(r *Record, now time.Time) (string, error) {
	if r == nil {
		return "", fmt.Errorf("audit: record cannot be nil")
	}
	r.Timestamp = now

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("audit: create log dir: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("audit: marshal record: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("audit-%s.json", r.ID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("audit: write record: %w", err)
	}
	return path, nil
}

// LoadAll reads every audit record in dir, ordered by filename (which
// sorts by record id, not chronologically; callers that need
// chronological order should sort the result by Timestamp).
func LoadAll(dir string) ([]*Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("audit: read log dir: %w", err)
	}

	var records []*Record
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var r Record
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		records = append(records, &r)
	}
	return records, nil
}

// ForTask filters records to those belonging to taskID.
func ForTask(records []*Record, taskID string) []*Record {
	var out []*Record
	for _, r := range records {
		if r.TaskID == taskID {
			out = append(out, r)
		}
	}
	return out
}
