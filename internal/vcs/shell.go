package vcs

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// ShellManager implements Manager by shelling out to the system git
// binary, the same approach as the teacher's git.ShellManager.
type ShellManager struct {
	workDir string
}

// NewShellManager creates a ShellManager rooted at workDir.
func NewShellManager(workDir string) *ShellManager {
	return &ShellManager{workDir: workDir}
}

func (m *ShellManager) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if m.workDir != "" {
		cmd.Dir = m.workDir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", &CommandError{Command: "git " + strings.Join(args, " "), Output: strings.TrimSpace(string(out)), Err: err}
	}
	return strings.TrimSpace(string(out)), nil
}

// EnsureBranch implements Manager.
func (m *ShellManager) EnsureBranch(ctx context.Context, branchName string) error {
	current, err := m.run(ctx, "symbolic-ref", "--short", "HEAD")
	if err == nil && current == branchName {
		return nil
	}

	if _, err := m.run(ctx, "rev-parse", "--verify", branchName); err == nil {
		_, err := m.run(ctx, "checkout", branchName)
		return err
	}

	_, err = m.run(ctx, "checkout", "-b", branchName)
	return err
}

// CurrentCommit implements Manager.
func (m *ShellManager) CurrentCommit(ctx context.Context) (string, error) {
	return m.run(ctx, "rev-parse", "HEAD")
}

// HasChanges implements Manager.
func (m *ShellManager) HasChanges(ctx context.Context) (bool, error) {
	out, err := m.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// ChangedFiles implements Manager.
func (m *ShellManager) ChangedFiles(ctx context.Context) ([]string, error) {
	out, err := m.run(ctx, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	var files []string
	for _, line := range strings.Split(out, "\n") {
		if len(line) <= 3 {
			continue
		}
		file := strings.TrimSpace(line[2:])
		if idx := strings.Index(file, " -> "); idx != -1 {
			file = file[idx+4:]
		}
		files = append(files, file)
	}
	return files, nil
}

// Commit implements Manager.
func (m *ShellManager) Commit(ctx context.Context, message string) (string, error) {
	hasChanges, err := m.HasChanges(ctx)
	if err != nil {
		return "", err
	}
	if !hasChanges {
		return "", &CommandError{Command: "git commit", Output: "nothing to commit", Err: ErrNoChanges}
	}

	if _, err := m.run(ctx, "add", "-A"); err != nil {
		return "", err
	}
	if _, err := m.run(ctx, "commit", "-m", message); err != nil {
		return "", &CommandError{Command: "git commit", Output: err.Error(), Err: errors.Join(ErrCommitFailed, err)}
	}
	return m.CurrentCommit(ctx)
}

var _ Manager = (*ShellManager)(nil)
