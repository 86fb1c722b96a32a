package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var specDir string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the orchestrator for a feature spec",
		Long:  "Parse requirements.md/design.md/tasks.md, validate cross-references, and create the .kiro state directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, specDir)
		},
	}

	addSpecDirFlag(cmd, &specDir)
	return cmd
}

func runInit(cmd *cobra.Command, specDirFlag string) error {
	workDir, err := getWorkDir()
	if err != nil {
		return err
	}
	specDir := resolveSpecDir(workDir, specDirFlag)

	mgr, _, err := loadManager(workDir, specDir)
	if err != nil {
		return err
	}

	ps := mgr.Spec()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "initialized for spec at %s\n", specDir)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d requirement(s), %d propert(y/ies), %d task(s)\n",
		len(ps.Requirements), len(ps.Properties), len(ps.Tasks))

	return nil
}
