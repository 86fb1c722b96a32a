package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newResetAttemptsCmd() *cobra.Command {
	var taskID string
	var specDir string

	cmd := &cobra.Command{
		Use:   "reset-attempts",
		Short: "Clear a task's Ralph-Loop attempt counter",
		Long:  "Give a task a fresh attempt budget without changing its current status, for use after an exhausted task has been fixed manually.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResetAttempts(cmd, specDir, taskID)
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "task ID to reset (required)")
	addSpecDirFlag(cmd, &specDir)

	return cmd
}

func runResetAttempts(cmd *cobra.Command, specDirFlag, taskID string) error {
	if taskID == "" {
		return errors.New("--task flag is required")
	}

	workDir, err := getWorkDir()
	if err != nil {
		return err
	}
	specDir := resolveSpecDir(workDir, specDirFlag)

	mgr, _, err := loadManager(workDir, specDir)
	if err != nil {
		return err
	}

	if _, err := mgr.Task(taskID); err != nil {
		return err
	}

	if err := mgr.ResetAttempts(taskID); err != nil {
		return fmt.Errorf("reset attempts for task %q: %w", taskID, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "attempt counter cleared for task %q\n", taskID)
	return nil
}
