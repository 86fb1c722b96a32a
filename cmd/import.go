package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kirodev/speckit/internal/fsatomic"
	"github.com/kirodev/speckit/internal/specparser"
	"github.com/kirodev/speckit/internal/taskimport"
)

func newImportCmd() *cobra.Command {
	var specDir string

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import tasks from a YAML file into tasks.md",
		Long: `Append tasks described in a YAML file to tasks.md as not_started
checkboxes, independent of hand-authoring them in Markdown.

Example:
  tasks:
    - id: "2"
      description: "Add the widget"
      requirements: ["1"]
    - id: "3"
      description: "Polish the widget"
      optional: true
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, specDir, args[0])
		},
	}

	addSpecDirFlag(cmd, &specDir)
	return cmd
}

func runImport(cmd *cobra.Command, specDirFlag, yamlPath string) error {
	workDir, err := getWorkDir()
	if err != nil {
		return err
	}
	specDir := resolveSpecDir(workDir, specDirFlag)

	doc, err := taskimport.ParseFile(yamlPath)
	if err != nil {
		return err
	}

	tasksPath := filepath.Join(specDir, specparser.TasksFile)
	result, err := taskimport.AppendToTasksFile(fsatomic.New(), tasksPath, doc)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d task(s)\n", len(result.Imported))
	for _, impErr := range result.Errors {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  skipped %q: %s\n", impErr.ID, impErr.Reason)
	}

	return nil
}
