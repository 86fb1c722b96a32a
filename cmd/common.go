package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kirodev/speckit/internal/codegen"
	"github.com/kirodev/speckit/internal/config"
	"github.com/kirodev/speckit/internal/orchestrator"
	"github.com/kirodev/speckit/internal/ralphloop"
	"github.com/kirodev/speckit/internal/state"
	"github.com/kirodev/speckit/internal/taskmgr"
	"github.com/kirodev/speckit/internal/testrunner"
	"github.com/kirodev/speckit/internal/vcs"
)

// addSpecDirFlag is shared by every command that operates on a feature
// directory (the one holding requirements.md/design.md/tasks.md).
func addSpecDirFlag(cmd *cobra.Command, specDir *string) {
	cmd.Flags().StringVar(specDir, "spec-dir", "", "feature spec directory (default: the working directory)")
}

func resolveSpecDir(workDir, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return workDir
}

// loadManager opens the Task Manager for the feature at specDir, ensuring
// the .kiro directory structure exists first.
func loadManager(workDir, specDir string) (*taskmgr.Manager, *config.Config, error) {
	cfg, err := config.LoadConfigWithFile(workDir, GetConfigFile())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if err := state.EnsureKiroDir(workDir); err != nil {
		return nil, nil, fmt.Errorf("create .kiro directory: %w", err)
	}

	// The configured ceiling must be in effect before Load's recovery pass
	// runs, so an already-exhausted in_progress task is recognized as
	// exhausted (and left alone) rather than reset to not_started.
	mgr, err := taskmgr.Load(workDir, specDir, taskmgr.WithMaxAttempts(cfg.MaxAttempts))
	if err != nil {
		return nil, nil, fmt.Errorf("load spec: %w", err)
	}

	return mgr, cfg, nil
}

// buildOrchestratorDeps wires the default codegen collaborator, test
// runner, Ralph-Loop engine, and VCS manager for one Run invocation.
func buildOrchestratorDeps(workDir, specDir string, mgr *taskmgr.Manager, cfg *config.Config) orchestrator.Deps {
	codegenLogsDir := state.CodegenLogsDirPath(workDir)
	collab := codegen.NewSubprocessCollaborator(cfg.Codegen.Command, cfg.Codegen.Args, codegenLogsDir)

	auditDir := filepath.Join(state.StateDirPath(workDir), "audit")
	engine := ralphloop.New(mgr, specDir, auditDir)

	return orchestrator.Deps{
		Tasks:        mgr,
		Collaborator: collab,
		Tests:        testrunner.New(workDir),
		RalphLoop:    engine,
		VCS:          vcs.NewShellManager(workDir),
		WorkDir:      workDir,
		TestCommand:  cfg.TestCommand,
	}
}

func getWorkDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return wd, nil
}

func writeFeedbackFile(path, feedback string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(feedback), 0o644)
}
