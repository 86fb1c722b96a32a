package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunImportAppendsTasksFromYAML(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFixture(t, dir, "# Tasks\n\n- [ ] 1 First task _Requirements: 1_\n")
	chdir(t, dir)

	yamlPath := filepath.Join(dir, "extra.yaml")
	yamlContent := "tasks:\n  - id: \"2\"\n    description: \"Add the widget\"\n    requirements: [\"1\"]\n"
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlContent), 0o644))

	root := NewRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"import", yamlPath})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "imported 1 task(s)")

	tasksContent, err := os.ReadFile(filepath.Join(dir, "tasks.md"))
	require.NoError(t, err)
	assert.Contains(t, string(tasksContent), "2 Add the widget")
}

func TestRunImportReportsSkippedEntries(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFixture(t, dir, "# Tasks\n\n- [ ] 1 First task _Requirements: 1_\n")
	chdir(t, dir)

	yamlPath := filepath.Join(dir, "extra.yaml")
	yamlContent := "tasks:\n  - id: \"\"\n    description: \"missing id\"\n"
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlContent), 0o644))

	root := NewRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"import", yamlPath})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "imported 0 task(s)")
	assert.Contains(t, out.String(), "skipped")
}

func TestRunImportMissingFile(t *testing.T) {
	dir := t.TempDir()
	writeFeatureFixture(t, dir, "# Tasks\n\n- [ ] 1 First task _Requirements: 1_\n")
	chdir(t, dir)

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"import", filepath.Join(dir, "missing.yaml")})

	err := root.Execute()
	require.Error(t, err)
}
