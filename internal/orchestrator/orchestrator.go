// Package orchestrator implements the execution loop: for as long as the
// Task Manager has a next task, it invokes the code-generation
// collaborator, runs the configured test command, and either completes
// the task or hands the failure to the Ralph-Loop engine for a bounded
// number of correction attempts, halting when a task's attempt budget is
// exhausted.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kirodev/speckit/internal/codegen"
	"github.com/kirodev/speckit/internal/events"
	"github.com/kirodev/speckit/internal/ralphloop"
	"github.com/kirodev/speckit/internal/spec"
	"github.com/kirodev/speckit/internal/state"
	"github.com/kirodev/speckit/internal/taskmgr"
	"github.com/kirodev/speckit/internal/testrunner"
	"github.com/kirodev/speckit/internal/vcs"
)

// Outcome is the terminal status of a Run call.
type Outcome string

const (
	// OutcomeCompleted means every required task reached "completed".
	OutcomeCompleted Outcome = "completed"
	// OutcomeExhausted means a task's Ralph-Loop attempt budget ran out.
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeCancelled means the run stopped on an external cancellation.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeError means an unrecoverable error stopped the run.
	OutcomeError Outcome = "error"
)

// RunResult is the terminal event the loop emits on exit (§4.6
// "Completion callback"): how it is delivered externally (CLI rendering,
// a dashboard, telemetry) is out of scope for this package.
type RunResult struct {
	Outcome        Outcome
	CompletedTasks []string
	ExhaustedTask  string
	Err            error
}

// Deps are the Orchestrator's collaborators. Tasks and RalphLoop are
// required, and Tests is required whenever TestCommand is set. A nil
// Collaborator skips code generation, a nil VCS skips change detection,
// and an empty TestCommand skips verification for every task (useful for
// pure documentation/config tasks).
type Deps struct {
	Tasks        *taskmgr.Manager
	Collaborator codegen.Collaborator
	Tests        *testrunner.Runner
	RalphLoop    *ralphloop.Engine
	VCS          vcs.Manager

	WorkDir     string
	TestCommand []string
}

// Orchestrator drives the single-flight task loop described in spec §4.6.
type Orchestrator struct {
	deps Deps
	now  func() time.Time
}

// New creates an Orchestrator from its dependencies.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps, now: time.Now}
}

// Run executes the loop until no task remains, a task's attempt budget is
// exhausted, ctx is cancelled, or an unrecoverable error occurs.
// Cancellation is graceful and idempotent (§5): the in-flight task is
// reset to not_started, state is flushed, and a cancellation result is
// returned.
func (o *Orchestrator) Run(ctx context.Context) RunResult {
	var completed []string

	for {
		select {
		case <-ctx.Done():
			return o.cancel(completed)
		default:
		}

		paused, err := state.IsPaused(o.deps.WorkDir)
		if err == nil && paused {
			return RunResult{Outcome: OutcomeCancelled, CompletedTasks: completed}
		}

		task := o.deps.Tasks.NextTask()
		if task == nil {
			return RunResult{Outcome: OutcomeCompleted, CompletedTasks: completed}
		}

		if err := o.deps.Tasks.Queue(task.ID); err != nil {
			return RunResult{Outcome: OutcomeError, CompletedTasks: completed, Err: err}
		}
		if err := o.deps.Tasks.Start(task.ID); err != nil {
			return RunResult{Outcome: OutcomeError, CompletedTasks: completed, Err: err}
		}

		ok, err := o.runTask(ctx, task)
		if err != nil {
			if ctx.Err() != nil {
				return o.cancel(completed)
			}
			return RunResult{Outcome: OutcomeError, CompletedTasks: completed, Err: err}
		}

		if ok {
			if err := o.deps.Tasks.Complete(task.ID); err != nil {
				return RunResult{Outcome: OutcomeError, CompletedTasks: completed, Err: err}
			}
			completed = append(completed, task.ID)
			continue
		}

		if o.deps.Tasks.Exhausted(task.ID) {
			return RunResult{Outcome: OutcomeExhausted, CompletedTasks: completed, ExhaustedTask: task.ID}
		}
		// Ralph-Loop reset the task to not_started (via IncrementAttempt's
		// caller); the next NextTask() call re-selects it.
	}
}

// runTask runs one iteration of a task: generate, verify, and on failure
// hand the result to the Ralph-Loop. Returns true if the task's
// verification passed.
func (o *Orchestrator) runTask(ctx context.Context, task *spec.Task) (bool, error) {
	req := codegen.Request{
		WorkDir:      o.deps.WorkDir,
		TaskID:       task.ID,
		Instructions: task.Description,
	}

	var changedFiles []string

	if o.deps.Collaborator != nil {
		resp, err := o.deps.Collaborator.Generate(ctx, req)
		if err != nil {
			return false, fmt.Errorf("orchestrator: code generation for %s: %w", task.ID, err)
		}

		if o.deps.VCS != nil {
			// The collaborator reports no file list of its own (§C); the
			// orchestrator fills it in from the working tree's diff so
			// audit entries and listeners can see what actually changed.
			changed, vcsErr := o.deps.VCS.ChangedFiles(ctx)
			if vcsErr == nil {
				resp.ChangedFiles = changed
				changedFiles = changed
				if len(changed) == 0 {
					noChange := &testrunner.TestResult{
						RawOutput: fmt.Sprintf("task %s: code generation produced no file changes", task.ID),
					}
					if _, err := o.deps.RalphLoop.Attempt(task, noChange); err != nil {
						return false, fmt.Errorf("orchestrator: ralph-loop attempt for %s: %w", task.ID, err)
					}
					return false, nil
				}
			}
		}
	}

	if len(o.deps.TestCommand) == 0 {
		return true, nil
	}

	// §4.6's runTests(testFilesFor(T)): scope the run to the test files
	// that exercise whatever source the collaborator just touched, when
	// that mapping turns up anything, instead of always re-running the
	// whole configured command against the entire suite.
	testCmd := o.deps.TestCommand
	testFiles := testrunner.FindTestFilesForAll(o.deps.WorkDir, changedFiles)
	if len(testFiles) > 0 {
		testCmd = append(append([]string{}, o.deps.TestCommand...), testFiles...)
	}

	result, err := o.deps.Tests.Run(ctx, testCmd)
	if err != nil {
		return false, fmt.Errorf("orchestrator: test run for %s: %w", task.ID, err)
	}

	result.PropertyWarnings = testrunner.ValidatePropertyTestFiles(o.deps.WorkDir, testFiles)

	if result.Success() {
		return true, nil
	}

	if len(result.PropertyWarnings) > 0 {
		// Warnings never fail the run on their own; they only enrich the
		// error context a failing run hands to the Ralph-Loop engine
		// (§4.4 "Property-test validator").
		var b strings.Builder
		b.WriteString(result.RawOutput)
		b.WriteString("\n\nproperty-test warnings:\n")
		for _, w := range result.PropertyWarnings {
			b.WriteString(w.String())
			b.WriteString("\n")
		}
		result.RawOutput = b.String()
	}

	// The Ralph-Loop engine itself resets the task to not_started on a
	// successfully applied correction (so the next NextTask() call
	// re-selects it); on exhaustion it leaves the task in_progress for the
	// caller to detect via Tasks.Exhausted and halt.
	if _, err := o.deps.RalphLoop.Attempt(task, result); err != nil {
		return false, fmt.Errorf("orchestrator: ralph-loop attempt for %s: %w", task.ID, err)
	}

	return false, nil
}

// cancel implements the cancellation sequence from §5: reset the
// in-flight task, flush state (handled by taskmgr's own Reset call), and
// return a cancellation result. It emits no cancellation event of its
// own; listeners see only the reset event of the in-flight task, if there
// was one. Cancellation is idempotent because
// Reset on an already not_started task is a no-op transition refusal that
// this method tolerates.
func (o *Orchestrator) cancel(completed []string) RunResult {
	current := o.deps.Tasks.CurrentInProgress()
	if current != "" {
		_ = o.deps.Tasks.Reset(current)
	}
	return RunResult{Outcome: OutcomeCancelled, CompletedTasks: completed}
}

// AddListener registers a listener for task-lifecycle events, delegating
// to the underlying Task Manager's registry (§9).
func (o *Orchestrator) AddListener(l events.Listener) {
	o.deps.Tasks.AddListener(l)
}
