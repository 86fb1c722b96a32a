package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testRequirements = `# Requirements

### Requirement 1

**User Story:** As an operator, I want tasks executed end to end, so that the loop can make progress.

1. WHEN a task's tests pass THEN the system SHALL mark it completed
`

const testDesign = `# Design
`

func writeFeatureFixture(t *testing.T, dir, tasksContent string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.md"), []byte(testRequirements), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "design.md"), []byte(testDesign), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.md"), []byte(tasksContent), 0o644))
}

// chdir switches the working directory for the duration of a test and
// restores it afterward, mirroring the teacher's cmd test style.
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}
