package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kirodev/speckit/internal/orchestrator"
)

func newRunCmd() *cobra.Command {
	var specDir string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the execution loop",
		Long:  "Select the next ready task, delegate it to the code-generation collaborator, verify, and repeat until the spec is complete, a task's attempt budget is exhausted, or the loop is paused.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, specDir)
		},
	}

	addSpecDirFlag(cmd, &specDir)
	return cmd
}

func runRun(cmd *cobra.Command, specDirFlag string) error {
	workDir, err := getWorkDir()
	if err != nil {
		return err
	}
	specDir := resolveSpecDir(workDir, specDirFlag)

	mgr, cfg, err := loadManager(workDir, specDir)
	if err != nil {
		return err
	}

	deps := buildOrchestratorDeps(workDir, specDir, mgr, cfg)
	o := orchestrator.New(deps)

	out := cmd.OutOrStdout()
	o.AddListener(newRunProgressListener(out))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "\nreceived interrupt, cancelling the current task...")
		cancel()
	}()

	_, _ = fmt.Fprintf(out, "running spec at %s\n\n", specDir)

	result := o.Run(ctx)

	_, _ = fmt.Fprintf(out, "\n%s\n", formatRunResult(result))

	if result.Outcome == orchestrator.OutcomeError {
		return fmt.Errorf("run failed: %w", result.Err)
	}
	if result.Outcome == orchestrator.OutcomeExhausted {
		return fmt.Errorf("task %s exhausted its attempt budget", result.ExhaustedTask)
	}
	return nil
}

func formatRunResult(result orchestrator.RunResult) string {
	var line string
	switch result.Outcome {
	case orchestrator.OutcomeCompleted:
		line = color.GreenString("completed")
	case orchestrator.OutcomeExhausted:
		line = color.RedString("exhausted (task %s)", result.ExhaustedTask)
	case orchestrator.OutcomeCancelled:
		line = color.YellowString("cancelled")
	default:
		line = color.RedString("error")
	}
	return fmt.Sprintf("outcome: %s\ncompleted tasks: %d", line, len(result.CompletedTasks))
}
