package taskmgr

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/kirodev/speckit/internal/events"
	"github.com/kirodev/speckit/internal/fsatomic"
	"github.com/kirodev/speckit/internal/spec"
	"github.com/kirodev/speckit/internal/specparser"
)

// MaxAttempts is the default per-task Ralph-Loop attempt ceiling (§5,
// §7). Reaching it halts the engine for that task rather than retrying
// forever.
const MaxAttempts = 3

// Manager owns the in-memory task graph for one feature spec plus its
// persisted OrchestratorState, and is the single place status
// transitions, attempt counting, and next-task selection happen (§4.3).
type Manager struct {
	mu sync.Mutex

	workDir   string
	tasksPath string
	spec      *spec.ParsedSpec
	state     *OrchestratorState

	fs          *fsatomic.Substrate
	maxAttempts int

	registry *events.Registry
}

// Option configures a Manager at Load time, before its one-time recovery
// pass runs.
type Option func(*Manager)

// WithMaxAttempts overrides the default Ralph-Loop attempt ceiling before
// Load's recovery pass runs, so an already-exhausted task (per the
// caller's real configured ceiling, not the package default) is
// recognized as exhausted immediately rather than only after a later
// SetMaxAttempts call, which would be too late to affect recovery.
func WithMaxAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// Load parses the feature spec at specDir, validates cross-references,
// and either restores persisted state from workDir or initializes a
// fresh one. Any task left "in_progress" from a previous crashed run is
// reset to "not_started" (I3) before the Manager is returned, unless it
// has already exhausted its attempt budget (see recoverInProgress).
func Load(workDir, specDir string, opts ...Option) (*Manager, error) {
	ps, err := specparser.Parse(specDir)
	if err != nil {
		return nil, fmt.Errorf("taskmgr: load spec: %w", err)
	}
	if errs := ps.ValidateCrossReferences(); len(errs) > 0 {
		return nil, &CrossReferenceError{Errors: errs}
	}

	state, loadErr := LoadState(workDir)
	// loadErr, when non-nil, is a *CorruptStateWarning: state is always a
	// valid fresh-or-restored value, so loading continues regardless.

	m := &Manager{
		workDir:     workDir,
		tasksPath:   filepath.Join(specDir, specparser.TasksFile),
		spec:        ps,
		state:       state,
		fs:          fsatomic.New(),
		maxAttempts: MaxAttempts,
		registry:    events.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.recoverInProgress()

	if loadErr != nil {
		return m, loadErr
	}
	return m, nil
}

// SetMaxAttempts overrides the Ralph-Loop attempt ceiling for all
// subsequent attempt counting and exhaustion checks. It has no effect on
// the one-time recovery decision Load's recoverInProgress already made;
// pass WithMaxAttempts to Load itself to affect that.
func (m *Manager) SetMaxAttempts(n int) {
	if n <= 0 {
		n = MaxAttempts
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxAttempts = n
}

// Spec returns the parsed feature spec backing this Manager.
func (m *Manager) Spec() *spec.ParsedSpec {
	return m.spec
}

// recoverInProgress implements I3: on load, any task recorded as
// in_progress in the spec itself (not just in state) is not trustworthy
// evidence of live work, since the previous process may have crashed
// mid-task. It is reset to not_started both in memory and in tasks.md —
// unless the task has already exhausted its Ralph-Loop attempt budget,
// in which case §4.3's "further status mutations for that id are
// rejected" applies across a restart too: the engine left it in_progress
// deliberately (ralphloop.Engine never resets an exhausted task), and
// resetting it here would make NextTask auto-select and re-execute a
// task the operator must intervene on first.
func (m *Manager) recoverInProgress() {
	for i := range m.spec.Tasks {
		t := &m.spec.Tasks[i]
		if t.Status != spec.StatusInProgress {
			continue
		}
		if m.exhaustedLocked(t.ID) {
			continue
		}
		if err := m.fs.UpdateCheckbox(m.tasksPath, t.ID, spec.StatusNotStarted, ""); err == nil {
			t.Status = spec.StatusNotStarted
			m.emit(TaskEvent{Type: EventReset, TaskID: t.ID, From: string(spec.StatusInProgress), To: string(spec.StatusNotStarted)})
		}
	}
	if m.state.CurrentTask != nil {
		m.state.CurrentTask = nil
	}
}

// SaveState persists the current OrchestratorState via the Atomic File
// Substrate.
func (m *Manager) SaveState() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveStateLocked()
}

func (m *Manager) saveStateLocked() error {
	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("taskmgr: marshal state: %w", err)
	}
	return m.fs.AtomicWrite(StatePath(m.workDir), data, nil, fsatomic.CreateMissingDir)
}

// CrossReferenceError wraps the unresolved requirement/property
// references surfaced by ParsedSpec.ValidateCrossReferences at load
// time.
type CrossReferenceError struct {
	Errors []spec.ValidationError
}

func (e *CrossReferenceError) Error() string {
	return fmt.Sprintf("taskmgr: %d unresolved cross-reference(s), first: %s", len(e.Errors), e.Errors[0].String())
}

// Task looks up a task by id, returning an error compatible with
// errors.As(*NotFoundError) when absent.
func (m *Manager) Task(id string) (*spec.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.spec.TaskByID(id)
	if t == nil {
		return nil, &NotFoundError{Kind: "task", ID: id}
	}
	return t, nil
}

// NotFoundError reports a lookup miss for a task, requirement, or
// property id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("taskmgr: %s %q not found", e.Kind, e.ID)
}

// TransitionError reports a status change forbidden by the I4
// automaton.
type TransitionError struct {
	TaskID string
	From   spec.TaskStatus
	To     spec.TaskStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("taskmgr: task %s cannot transition %s -> %s", e.TaskID, e.From, e.To)
}

// ParentNotReadyError reports an attempt to complete a parent task whose
// non-optional children are not all completed (I2).
type ParentNotReadyError struct {
	ParentID string
	Pending  []string
}

func (e *ParentNotReadyError) Error() string {
	return fmt.Sprintf("taskmgr: parent task %s has incomplete required children: %v", e.ParentID, e.Pending)
}

func (m *Manager) transition(taskID string, to spec.TaskStatus, allowRalphReset bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.spec.TaskByID(taskID)
	if t == nil {
		return &NotFoundError{Kind: "task", ID: taskID}
	}

	from := t.Status
	if !spec.CanTransition(from, to) {
		if !(allowRalphReset && from == spec.StatusInProgress && to == spec.StatusNotStarted) {
			return &TransitionError{TaskID: taskID, From: from, To: to}
		}
	}

	if to == spec.StatusCompleted {
		if pending := m.incompleteRequiredChildren(t); len(pending) > 0 {
			return &ParentNotReadyError{ParentID: taskID, Pending: pending}
		}
	}

	if err := m.fs.UpdateCheckbox(m.tasksPath, taskID, to, ""); err != nil {
		return fmt.Errorf("taskmgr: persist checkbox for %s: %w", taskID, err)
	}

	t.Status = to

	var evType EventType
	switch to {
	case spec.StatusQueued:
		evType = EventQueued
	case spec.StatusInProgress:
		evType = EventStarted
	case spec.StatusCompleted:
		evType = EventCompleted
		m.state.CompletedTasks = appendUnique(m.state.CompletedTasks, taskID)
	case spec.StatusNotStarted:
		evType = EventReset
	}

	m.emit(TaskEvent{Type: evType, TaskID: taskID, From: string(from), To: string(to)})
	return m.saveStateLocked()
}

// Queue marks a not_started task as queued.
func (m *Manager) Queue(taskID string) error { return m.transition(taskID, spec.StatusQueued, false) }

// Start marks a queued (or not_started) task as in_progress.
func (m *Manager) Start(taskID string) error {
	return m.transition(taskID, spec.StatusInProgress, false)
}

// Complete marks an in_progress task as completed, enforcing I2.
func (m *Manager) Complete(taskID string) error {
	return m.transition(taskID, spec.StatusCompleted, false)
}

// Reset returns an in_progress task to not_started, the one backward edge
// of the I4 automaton. It exists for the Ralph-Loop to retry a task and is
// also called by the Orchestrator's cancellation and the retry command;
// Load's crash recovery (recoverInProgress) rewrites the checkbox directly
// instead of calling it.
func (m *Manager) Reset(taskID string) error {
	return m.transition(taskID, spec.StatusNotStarted, true)
}

// CurrentInProgress returns the id of the task currently in_progress, or
// "" if none is (used by the Orchestrator's cancellation sequence to know
// which task to reset).
func (m *Manager) CurrentInProgress() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.spec.Tasks {
		if t.Status == spec.StatusInProgress {
			return t.ID
		}
	}
	return ""
}

// Skip marks a task completed without enforcing I2, recording it in
// SkippedTasks. Used by the "skip" operator action for optional or
// abandoned tasks.
func (m *Manager) Skip(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.spec.TaskByID(taskID)
	if t == nil {
		return &NotFoundError{Kind: "task", ID: taskID}
	}

	from := t.Status
	if err := m.fs.UpdateCheckbox(m.tasksPath, taskID, spec.StatusCompleted, ""); err != nil {
		return fmt.Errorf("taskmgr: persist checkbox for %s: %w", taskID, err)
	}
	t.Status = spec.StatusCompleted
	m.state.SkippedTasks = appendUnique(m.state.SkippedTasks, taskID)
	m.state.CompletedTasks = appendUnique(m.state.CompletedTasks, taskID)

	m.emit(TaskEvent{Type: EventSkipped, TaskID: taskID, From: string(from), To: string(spec.StatusCompleted)})
	return m.saveStateLocked()
}

func (m *Manager) incompleteRequiredChildren(t *spec.Task) []string {
	var pending []string
	for _, childID := range t.Children {
		child := m.spec.TaskByID(childID)
		if child == nil {
			continue
		}
		if child.Optional {
			continue
		}
		if child.Status != spec.StatusCompleted {
			pending = append(pending, childID)
		}
	}
	return pending
}

func appendUnique(list []string, id string) []string {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}

// --- Ralph-Loop attempt counters (§5, §7) ---

// IncrementAttempt records one more correction attempt for taskID and
// returns the new count. When the count reaches the configured
// maxAttempts, EventExhausted is also emitted.
func (m *Manager) IncrementAttempt(taskID string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.RalphLoopAttempts[taskID]++
	n := m.state.RalphLoopAttempts[taskID]

	m.emit(TaskEvent{Type: EventAttempt, TaskID: taskID, Attempt: n})

	exhausted := n >= m.maxAttempts
	if exhausted {
		m.emit(TaskEvent{Type: EventExhausted, TaskID: taskID, Attempt: n})
	}

	if err := m.saveStateLocked(); err != nil {
		return n, exhausted, err
	}
	return n, exhausted, nil
}

// Attempts returns the current attempt count for taskID (0 if never
// attempted).
func (m *Manager) Attempts(taskID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.RalphLoopAttempts[taskID]
}

// ResetAttempts clears the attempt counter for taskID, used by the
// "retry" operator action to give a task a fresh budget.
func (m *Manager) ResetAttempts(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.RalphLoopAttempts, taskID)
	return m.saveStateLocked()
}

// Exhausted reports whether taskID has used up its attempt budget.
func (m *Manager) Exhausted(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exhaustedLocked(taskID)
}

// exhaustedLocked is Exhausted without acquiring m.mu, for callers that
// already hold the lock (NextTask, recoverInProgress).
func (m *Manager) exhaustedLocked(taskID string) bool {
	return m.state.RalphLoopAttempts[taskID] >= m.maxAttempts
}
