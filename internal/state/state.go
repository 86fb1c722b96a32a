// Package state manages the on-disk .kiro directory structure: logs,
// backups, and the pause flag the Orchestrator checks between tasks.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Directory names under the .kiro root.
const (
	KiroDir     = ".kiro"
	StateDir    = "state"
	LogsDir     = "logs"
	CodegenLogs = "codegen"
	ArchiveDir  = "archive"
	PausedFile  = "paused"
)

// KiroDirPath returns the path to the .kiro directory.
func KiroDirPath(root string) string {
	return filepath.Join(root, KiroDir)
}

// StateDirPath returns the path to the state directory.
func StateDirPath(root string) string {
	return filepath.Join(root, KiroDir, StateDir)
}

// LogsDirPath returns the path to the logs directory.
func LogsDirPath(root string) string {
	return filepath.Join(root, KiroDir, LogsDir)
}

// CodegenLogsDirPath returns the path to the code-generation collaborator's
// transcript log directory.
func CodegenLogsDirPath(root string) string {
	return filepath.Join(root, KiroDir, LogsDir, CodegenLogs)
}

// ArchiveDirPath returns the path to the audit/backup archive directory.
func ArchiveDirPath(root string) string {
	return filepath.Join(root, KiroDir, ArchiveDir)
}

// EnsureKiroDir creates the .kiro directory structure if it doesn't exist.
// Idempotent: calling it multiple times is safe.
func EnsureKiroDir(root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return fmt.Errorf("root directory does not exist: %s", root)
	}

	dirs := []string{
		KiroDirPath(root),
		StateDirPath(root),
		LogsDirPath(root),
		CodegenLogsDirPath(root),
		ArchiveDirPath(root),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// PausedFilePath returns the path to the paused state flag file.
func PausedFilePath(root string) string {
	return filepath.Join(root, KiroDir, StateDir, PausedFile)
}

// IsPaused reports whether the loop is currently paused.
func IsPaused(root string) (bool, error) {
	stateDir := StateDirPath(root)
	if _, err := os.Stat(stateDir); os.IsNotExist(err) {
		return false, fmt.Errorf(".kiro/state directory does not exist")
	}

	_, err := os.Stat(PausedFilePath(root))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check paused state: %w", err)
	}
	return true, nil
}

// SetPaused sets or clears the paused flag.
func SetPaused(root string, paused bool) error {
	stateDir := StateDirPath(root)
	if _, err := os.Stat(stateDir); os.IsNotExist(err) {
		return fmt.Errorf(".kiro/state directory does not exist")
	}

	path := PausedFilePath(root)

	if paused {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create paused file: %w", err)
		}
		return f.Close()
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove paused file: %w", err)
	}
	return nil
}
