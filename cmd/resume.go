package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirodev/speckit/internal/state"
)

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume the execution loop",
		Long:  "Clear the pause flag so 'kirospec run' can proceed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(cmd)
		},
	}
}

func runResume(cmd *cobra.Command) error {
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
	if !paused {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "not paused")
		return nil
	}

	if err := state.SetPaused(workDir, false); err != nil {
		return fmt.Errorf("resume: %w", err)
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "resumed. run 'kirospec run' to continue.")
	return nil
}
