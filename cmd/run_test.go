package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHarmlessConfig(t *testing.T, dir string) {
	t.Helper()
	content := "test_command: [\"sh\", \"-c\", \"exit 0\"]\n" +
		"max_attempts: 2\n" +
		"codegen:\n" +
		"  command: \"echo\"\n" +
		"  args: [\"ok\"]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kirospec.yaml"), []byte(content), 0o644))
}

func TestRunRunCompletesAllTasks(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFixture(t, dir, "# Tasks\n\n- [ ] 1 First task _Requirements: 1_\n")
	writeHarmlessConfig(t, dir)
	chdir(t, dir)

	root := NewRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"run"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "outcome: completed")
	assert.Contains(t, out.String(), "completed tasks: 1")
}

func TestRunRunFailsOnMissingSpec(t *testing.T) {
	dir := t.TempDir()
	writeHarmlessConfig(t, dir)
	chdir(t, dir)

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run"})

	err := root.Execute()
	require.Error(t, err)
}
