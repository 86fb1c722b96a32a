package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirodev/speckit/internal/state"
)

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the execution loop",
		Long:  "Set a pause flag so a running or future `kirospec run` stops after the current task.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPause(cmd)
		},
	}
}

func runPause(cmd *cobra.Command) error {
	workDir, err := getWorkDir()
	if err != nil {
		return err
	}

	if err := state.EnsureKiroDir(workDir); err != nil {
		return fmt.Errorf("create .kiro directory: %w", err)
	}

	paused, err := state.IsPaused(workDir)
	if err != nil {
		return err
	}
	if paused {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "already paused")
		return nil
	}

	if err := state.SetPaused(workDir, true); err != nil {
		return fmt.Errorf("pause: %w", err)
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "paused. use 'kirospec resume' to continue.")
	return nil
}
