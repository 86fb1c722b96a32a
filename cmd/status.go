package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	cmdinternal "github.com/kirodev/speckit/cmd/internal"
	"github.com/kirodev/speckit/internal/spec"
)

func newStatusCmd() *cobra.Command {
	var specDir string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show current status",
		Long:  "Display task counts, the next selected task, and per-task attempt counters.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, specDir)
		},
	}

	addSpecDirFlag(cmd, &specDir)
	return cmd
}

func runStatus(cmd *cobra.Command, specDirFlag string) error {
	workDir, err := getWorkDir()
	if err != nil {
		return err
	}
	specDir := resolveSpecDir(workDir, specDirFlag)

	mgr, _, err := loadManager(workDir, specDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ps := mgr.Spec()

	completed := 0
	for _, t := range ps.Tasks {
		if t.Status == spec.StatusCompleted {
			completed++
		}
	}
	total := len(ps.Tasks)
	percent := 0
	if total > 0 {
		percent = completed * 100 / total
	}

	_, _ = fmt.Fprintf(out, "%s %d/%d tasks completed\n\n", cmdinternal.ProgressBar(percent, cmdinternal.ProgressBarWidth()), completed, total)

	next := mgr.NextTask()
	if next != nil {
		_, _ = fmt.Fprintf(out, "next task: %s %s\n\n", next.ID, next.Description)
	} else if completed == total {
		_, _ = fmt.Fprintf(out, "%s\n\n", color.GreenString("all tasks completed"))
	} else {
		_, _ = fmt.Fprintf(out, "%s\n\n", color.YellowString("no ready task (dependencies pending or an exhausted task is blocking progress)"))
	}

	for _, t := range ps.Tasks {
		marker := statusMarker(t.Status)
		line := fmt.Sprintf("%s %s %s", marker, t.ID, t.Description)
		if attempts := mgr.Attempts(t.ID); attempts > 0 {
			line += fmt.Sprintf(" (attempts: %d)", attempts)
			if mgr.Exhausted(t.ID) {
				line = color.RedString(line + " exhausted")
			}
		}
		_, _ = fmt.Fprintln(out, line)
	}

	return nil
}

func statusMarker(status spec.TaskStatus) string {
	switch status {
	case spec.StatusCompleted:
		return color.GreenString("[x]")
	case spec.StatusInProgress:
		return color.CyanString("[>]")
	case spec.StatusQueued:
		return color.YellowString("[~]")
	default:
		return "[ ]"
	}
}
