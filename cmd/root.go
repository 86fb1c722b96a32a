package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// NewRootCmd creates the root command for the kirospec CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kirospec",
		Short: "Spec-driven development orchestrator",
		Long: `kirospec drives a feature's requirements.md/design.md/tasks.md through
an execution loop: select the next ready task, delegate it to a
code-generation collaborator, verify with the configured test command, and
either mark the task completed or hand a failure to the Ralph-Loop for a bounded
number of correction attempts.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./kirospec.yaml, falling back to the XDG config dir)")

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newPauseCmd())
	rootCmd.AddCommand(newResumeCmd())
	rootCmd.AddCommand(newRetryCmd())
	rootCmd.AddCommand(newResetAttemptsCmd())
	rootCmd.AddCommand(newImportCmd())

	return rootCmd
}

// GetConfigFile returns the --config flag's value, empty if unset.
func GetConfigFile() string {
	return cfgFile
}

// Execute runs the root command.
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		return err
	}
	return nil
}

// Main is the process entrypoint's body, split out so cmd/kirospec's
// main() stays a one-liner.
func Main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
