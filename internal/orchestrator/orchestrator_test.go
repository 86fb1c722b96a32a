package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirodev/speckit/internal/codegen"
	"github.com/kirodev/speckit/internal/ralphloop"
	"github.com/kirodev/speckit/internal/state"
	"github.com/kirodev/speckit/internal/taskmgr"
	"github.com/kirodev/speckit/internal/testrunner"
)

type fakeCollaborator struct {
	calls int
	err   error
}

func (f *fakeCollaborator) Generate(ctx context.Context, req codegen.Request) (*codegen.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &codegen.Response{FinalText: "done"}, nil
}

type fakeVCS struct {
	changed []string
	err     error
}

func (f *fakeVCS) EnsureBranch(ctx context.Context, branch string) error { return nil }
func (f *fakeVCS) CurrentCommit(ctx context.Context) (string, error)     { return "deadbeef", nil }
func (f *fakeVCS) HasChanges(ctx context.Context) (bool, error)          { return len(f.changed) > 0, nil }
func (f *fakeVCS) ChangedFiles(ctx context.Context) ([]string, error)    { return f.changed, f.err }
func (f *fakeVCS) Commit(ctx context.Context, message string) (string, error) {
	return "deadbeef", nil
}

const fixtureRequirements = `# Requirements

### Requirement 1

**User Story:** As an operator, I want tasks executed end to end, so that the loop can make progress.

1. WHEN a task's tests pass THEN the system SHALL mark it completed
`

const fixtureDesign = `# Design
`

const fixtureTasksOneTask = `# Tasks

- [ ] 1 Implement the thing _Requirements: 1_
`

const fixtureTasksTwoTasks = `# Tasks

- [ ] 1 First task _Requirements: 1_
- [ ] 2 Second task _Requirements: 1_
`

func newOrchestratorFixture(t *testing.T, tasksContent string) (*taskmgr.Manager, *ralphloop.Engine, string) {
	t.Helper()
	dir := t.TempDir()
	specDir := filepath.Join(dir, "feature")
	require.NoError(t, os.MkdirAll(specDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(specDir, "requirements.md"), []byte(fixtureRequirements), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(specDir, "design.md"), []byte(fixtureDesign), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(specDir, "tasks.md"), []byte(tasksContent), 0o644))

	require.NoError(t, state.EnsureKiroDir(dir))

	mgr, err := taskmgr.Load(dir, specDir)
	require.NoError(t, err)
	mgr.SetMaxAttempts(2)

	eng := ralphloop.New(mgr, specDir, filepath.Join(dir, "audit"))

	return mgr, eng, dir
}

func TestOrchestratorRunCompletesAllTasks(t *testing.T) {
	mgr, eng, dir := newOrchestratorFixture(t, fixtureTasksTwoTasks)

	collab := &fakeCollaborator{}
	vcs := &fakeVCS{changed: []string{"main.go"}}
	tests := testrunner.New(dir)

	o := New(Deps{
		Tasks:        mgr,
		Collaborator: collab,
		Tests:        tests,
		RalphLoop:    eng,
		VCS:          vcs,
		WorkDir:      dir,
		TestCommand:  []string{"sh", "-c", "exit 0"},
	})

	result := o.Run(context.Background())

	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, []string{"1", "2"}, result.CompletedTasks)
	assert.Equal(t, 2, collab.calls)
}

func TestOrchestratorRunExhaustsOnPersistentFailure(t *testing.T) {
	mgr, eng, dir := newOrchestratorFixture(t, fixtureTasksOneTask)

	collab := &fakeCollaborator{}
	vcs := &fakeVCS{changed: []string{"main.go"}}
	tests := testrunner.New(dir)

	o := New(Deps{
		Tasks:        mgr,
		Collaborator: collab,
		Tests:        tests,
		RalphLoop:    eng,
		VCS:          vcs,
		WorkDir:      dir,
		TestCommand:  []string{"sh", "-c", "exit 1"},
	})

	result := o.Run(context.Background())

	assert.Equal(t, OutcomeExhausted, result.Outcome)
	assert.Equal(t, "1", result.ExhaustedTask)
	assert.Empty(t, result.CompletedTasks)
	assert.True(t, mgr.Exhausted("1"))
}

func TestOrchestratorRunTreatsNoFileChangesAsFailure(t *testing.T) {
	mgr, eng, dir := newOrchestratorFixture(t, fixtureTasksOneTask)

	collab := &fakeCollaborator{}
	vcs := &fakeVCS{changed: nil}
	tests := testrunner.New(dir)

	o := New(Deps{
		Tasks:        mgr,
		Collaborator: collab,
		Tests:        tests,
		RalphLoop:    eng,
		VCS:          vcs,
		WorkDir:      dir,
		TestCommand:  []string{"sh", "-c", "exit 0"},
	})

	result := o.Run(context.Background())

	assert.Equal(t, OutcomeExhausted, result.Outcome)
	assert.Equal(t, 2, collab.calls, "collaborator should be invoked once per retry even though nothing changed")
}

func TestOrchestratorRunRespectsPauseFlag(t *testing.T) {
	mgr, eng, dir := newOrchestratorFixture(t, fixtureTasksOneTask)
	require.NoError(t, state.SetPaused(dir, true))

	collab := &fakeCollaborator{}
	vcs := &fakeVCS{changed: []string{"main.go"}}
	tests := testrunner.New(dir)

	o := New(Deps{
		Tasks:        mgr,
		Collaborator: collab,
		Tests:        tests,
		RalphLoop:    eng,
		VCS:          vcs,
		WorkDir:      dir,
		TestCommand:  []string{"sh", "-c", "exit 0"},
	})

	result := o.Run(context.Background())

	assert.Equal(t, OutcomeCancelled, result.Outcome)
	assert.Equal(t, 0, collab.calls)
}

func TestOrchestratorRunScopesTestCommandToDiscoveredTestFiles(t *testing.T) {
	mgr, eng, dir := newOrchestratorFixture(t, fixtureTasksOneTask)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "widget.go"), []byte("package main"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "widget.test.go"), []byte("package main"), 0o644))

	collab := &fakeCollaborator{}
	vcs := &fakeVCS{changed: []string{"widget.go"}}

	// A fake test command that records the args it was actually invoked
	// with, by writing them to a file the test can inspect afterward,
	// since testrunner.Runner only reports stdout/exit code.
	recordPath := filepath.Join(dir, "args.txt")
	tests := testrunner.New(dir)

	o := New(Deps{
		Tasks:        mgr,
		Collaborator: collab,
		Tests:        tests,
		RalphLoop:    eng,
		VCS:          vcs,
		WorkDir:      dir,
		TestCommand:  []string{"sh", "-c", `printf '%s ' "$@" > "` + recordPath + `"; exit 0`, "sh"},
	})

	result := o.Run(context.Background())

	assert.Equal(t, OutcomeCompleted, result.Outcome)

	recorded, err := os.ReadFile(recordPath)
	require.NoError(t, err)
	assert.Contains(t, string(recorded), "widget.test.go")
}

func TestOrchestratorRunCancelsOnContextDone(t *testing.T) {
	mgr, eng, dir := newOrchestratorFixture(t, fixtureTasksOneTask)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(Deps{
		Tasks:        mgr,
		Collaborator: &fakeCollaborator{},
		Tests:        testrunner.New(dir),
		RalphLoop:    eng,
		WorkDir:      dir,
		TestCommand:  []string{"sh", "-c", "exit 0"},
	})

	result := o.Run(ctx)

	assert.Equal(t, OutcomeCancelled, result.Outcome)
}
