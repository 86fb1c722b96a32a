// Package taskmgr implements the Task Manager (spec §4.3): it owns task
// state in memory, persists OrchestratorState to disk, enforces the
// status automaton and parent-completion invariant, and selects the next
// eligible task.
package taskmgr

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// StateFileRelPath is the persisted state file's location relative to
// the working directory (§6).
const StateFileRelPath = ".kiro/state/orchestrator-state.json"

// OrchestratorState is the persisted record described in §3 and §6.
type OrchestratorState struct {
	CurrentSpec        *string        `json:"currentSpec"`
	CurrentTask        *string        `json:"currentTask"`
	ExecutionStartTime *time.Time     `json:"executionStartTime"`
	RalphLoopAttempts  map[string]int `json:"ralphLoopAttempts"`
	CompletedTasks     []string       `json:"completedTasks"`
	SkippedTasks       []string       `json:"skippedTasks"`
}

// NewState returns a freshly initialized, empty OrchestratorState.
func NewState() *OrchestratorState {
	return &OrchestratorState{
		RalphLoopAttempts: make(map[string]int),
		CompletedTasks:    []string{},
		SkippedTasks:      []string{},
	}
}

// StatePath returns the absolute path to the persisted state file for
// the given working directory.
func StatePath(workDir string) string {
	return filepath.Join(workDir, StateFileRelPath)
}

// LoadState loads OrchestratorState from workDir's state file. If the
// file is missing, a fresh state is returned (no error). If the file
// exists but is corrupt, a fresh state is returned along with a non-nil
// warning error that the caller should log rather than treat as fatal
// (§4.3 "if corrupt, the engine logs a warning and falls back to initial
// state without crashing").
func LoadState(workDir string) (*OrchestratorState, error) {
	path := StatePath(workDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return NewState(), &CorruptStateWarning{Path: path, Cause: err}
	}

	var st OrchestratorState
	if err := json.Unmarshal(data, &st); err != nil {
		return NewState(), &CorruptStateWarning{Path: path, Cause: err}
	}

	if st.RalphLoopAttempts == nil {
		st.RalphLoopAttempts = make(map[string]int)
	}
	if st.CompletedTasks == nil {
		st.CompletedTasks = []string{}
	}
	if st.SkippedTasks == nil {
		st.SkippedTasks = []string{}
	}

	return &st, nil
}

// CorruptStateWarning is returned (non-fatal) by LoadState when the
// on-disk state file exists but cannot be parsed.
type CorruptStateWarning struct {
	Path  string
	Cause error
}

func (w *CorruptStateWarning) Error() string {
	return "taskmgr: state file at " + w.Path + " is corrupt, falling back to fresh state: " + w.Cause.Error()
}

func (w *CorruptStateWarning) Unwrap() error {
	return w.Cause
}
