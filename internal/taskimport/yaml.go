// Package taskimport implements the operator-facing YAML task import path
// (SPEC_FULL §A/§B): an alternate way to seed tasks.md from a structured
// source, independent of the line-tokenizer that reads Markdown checkboxes
// back out of it.
package taskimport

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirodev/speckit/internal/fsatomic"
)

// YAMLTask is one task entry in an import document.
type YAMLTask struct {
	ID           string   `yaml:"id"`
	Description  string   `yaml:"description"`
	Requirements []string `yaml:"requirements"`
	Optional     bool     `yaml:"optional"`
}

// Document is the top-level shape of an import file: a flat list of tasks
// under a "tasks" key.
type Document struct {
	Tasks []YAMLTask `yaml:"tasks"`
}

// ImportError reports one task entry skipped for missing required fields.
type ImportError struct {
	ID     string
	Reason string
}

// Result reports which task ids were appended and which entries were
// skipped.
type Result struct {
	Imported []string
	Errors   []ImportError
}

// ParseFile reads and unmarshals a YAML import document.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("taskimport: read %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("taskimport: parse %s: %w", path, err)
	}
	return &doc, nil
}

// formatLine renders one task as a not_started checkbox line in the exact
// shape specparser's line-tokenizer expects: "- [ ]<*> <id> <description>
// _Requirements: <ids>_", the asterisk marking an optional task.
func formatLine(t YAMLTask) string {
	marker := ""
	if t.Optional {
		marker = "*"
	}
	tag := ""
	if len(t.Requirements) > 0 {
		tag = fmt.Sprintf(" _Requirements: %s_", strings.Join(t.Requirements, ", "))
	}
	return fmt.Sprintf("- [ ]%s %s %s%s", marker, t.ID, t.Description, tag)
}

// AppendToTasksFile formats doc's tasks as checkbox lines and appends them
// to tasksPath through the Atomic File Substrate (I5): a reader never
// observes a half-written tasks.md, and the validation hook refuses a
// write that would lose any pre-existing line.
func AppendToTasksFile(fs *fsatomic.Substrate, tasksPath string, doc *Document) (*Result, error) {
	existing, err := os.ReadFile(tasksPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("taskimport: read tasks file: %w", err)
	}

	result := &Result{}
	var lines []string
	for _, t := range doc.Tasks {
		switch {
		case t.ID == "":
			result.Errors = append(result.Errors, ImportError{Reason: "task missing id"})
			continue
		case t.Description == "":
			result.Errors = append(result.Errors, ImportError{ID: t.ID, Reason: "task missing description"})
			continue
		}
		lines = append(lines, formatLine(t))
		result.Imported = append(result.Imported, t.ID)
	}

	if len(lines) == 0 {
		return result, nil
	}

	newContent := existing
	if len(newContent) > 0 && newContent[len(newContent)-1] != '\n' {
		newContent = append(newContent, '\n')
	}
	newContent = append(newContent, []byte(strings.Join(lines, "\n")+"\n")...)

	validate := func(content []byte) error {
		if len(existing) > 0 && !strings.Contains(string(content), string(existing)) {
			return fmt.Errorf("tasks file must only grow, never lose prior entries")
		}
		return nil
	}

	if err := fs.AtomicWriteWithBackup(tasksPath, newContent, validate, fsatomic.CreateMissingDir, ""); err != nil {
		return nil, fmt.Errorf("taskimport: write tasks file: %w", err)
	}

	return result, nil
}
