package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kirodev/speckit/internal/spec"
	"github.com/kirodev/speckit/internal/state"
)

func newRetryCmd() *cobra.Command {
	var taskID string
	var feedback string
	var specDir string

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Retry a task",
		Long:  "Reset an in-progress task to not_started so the next `kirospec run` re-selects it, optionally saving operator feedback to .kiro/state/feedback-<task>.txt. `kirospec run` does not read that file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetry(cmd, specDir, taskID, feedback)
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "task ID to retry (required)")
	cmd.Flags().StringVar(&feedback, "feedback", "", "feedback to save in .kiro/state/feedback-<task>.txt")
	addSpecDirFlag(cmd, &specDir)

	return cmd
}

func runRetry(cmd *cobra.Command, specDirFlag, taskID, feedback string) error {
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

	task, err := mgr.Task(taskID)
	if err != nil {
		return err
	}

	if task.Status == spec.StatusCompleted {
		return fmt.Errorf("task %q is already completed", taskID)
	}
	if task.Status == spec.StatusNotStarted {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "task %q is already not_started\n", taskID)
		return nil
	}

	if err := mgr.Reset(taskID); err != nil {
		return fmt.Errorf("retry task %q: %w", taskID, err)
	}

	if feedback != "" {
		feedbackFile := filepath.Join(state.StateDirPath(workDir), fmt.Sprintf("feedback-%s.txt", taskID))
		if err := writeFeedbackFile(feedbackFile, feedback); err != nil {
			return fmt.Errorf("write feedback for task %q: %w", taskID, err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "feedback saved for task %q\n", taskID)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "task %q reset to not_started\n", taskID)
	return nil
}
