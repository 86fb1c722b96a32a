package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirodev/speckit/internal/taskmgr"
)

func TestRunResetAttemptsRequiresTaskFlag(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFixture(t, dir, "# Tasks\n\n- [ ] 1 First task _Requirements: 1_\n")
	chdir(t, dir)

	root := NewRootCmd()
	root.SetArgs([]string{"reset-attempts"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
}

func TestRunResetAttemptsClearsCounter(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFixture(t, dir, "# Tasks\n\n- [ ] 1 First task _Requirements: 1_\n")
	chdir(t, dir)

	mgr, err := taskmgr.Load(dir, dir)
	require.NoError(t, err)
	require.NoError(t, mgr.Queue("1"))
	require.NoError(t, mgr.Start("1"))
	_, _, err = mgr.IncrementAttempt("1")
	require.NoError(t, err)
	assert.Equal(t, 1, mgr.Attempts("1"))

	root := NewRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"reset-attempts", "--task", "1"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "attempt counter cleared")

	mgr2, err := taskmgr.Load(dir, dir)
	require.NoError(t, err)
	assert.Equal(t, 0, mgr2.Attempts("1"))
}

func TestRunResetAttemptsUnknownTask(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFixture(t, dir, "# Tasks\n\n- [ ] 1 First task _Requirements: 1_\n")
	chdir(t, dir)

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"reset-attempts", "--task", "999"})

	err := root.Execute()
	require.Error(t, err)
}
