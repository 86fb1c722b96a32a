package specparser

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kirodev/speckit/internal/spec"
)

// Filenames for the three documents making up a feature's spec.
const (
	RequirementsFile = "requirements.md"
	DesignFile       = "design.md"
	TasksFile        = "tasks.md"
)

// Parse reads requirements.md, design.md, and tasks.md from dir and
// returns a fully wired spec.ParsedSpec. featureName is normally
// filepath.Base(dir).
//
// Parse fails with a descriptive, file-named error (§4.2 "Error
// behavior") if any file is missing or unreadable, if task ids collide
// (I1), or if the task hierarchy is otherwise malformed. It does not
// validate cross-references against requirements/properties; callers
// that need that check call ParsedSpec.ValidateCrossReferences
// separately (this mirrors the Task Manager being the component that
// enforces that rule at load time, per §4.3).
func Parse(dir string) (*spec.ParsedSpec, error) {
	featureName := filepath.Base(dir)

	reqContent, err := readSpecFile(dir, RequirementsFile)
	if err != nil {
		return nil, err
	}
	designContent, err := readSpecFile(dir, DesignFile)
	if err != nil {
		return nil, err
	}
	tasksContent, err := readSpecFile(dir, TasksFile)
	if err != nil {
		return nil, err
	}

	requirements, err := ParseRequirementsFile(RequirementsFile, reqContent)
	if err != nil {
		return nil, err
	}

	properties, err := ParseDesignFile(DesignFile, designContent)
	if err != nil {
		return nil, err
	}

	rawTasks, err := ParseTasksFile(TasksFile, tasksContent)
	if err != nil {
		return nil, err
	}

	tasks, err := assembleTasks(rawTasks)
	if err != nil {
		return nil, err
	}

	ps := &spec.ParsedSpec{
		FeatureName:  featureName,
		Dir:          dir,
		Requirements: requirements,
		Properties:   properties,
		Tasks:        tasks,
	}

	if err := ps.Validate(); err != nil {
		return nil, err
	}

	if cycle := ps.DetectCircularReferences(); cycle != nil {
		return nil, fmt.Errorf("specparser: circular task reference detected: %v", cycle)
	}

	return ps, nil
}

func readSpecFile(dir, name string) ([]byte, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ParseError{File: name, Msg: "file not found"}
		}
		return nil, &ParseError{File: name, Msg: err.Error()}
	}
	return data, nil
}

// assembleTasks converts the flat rawTask list (with indent levels) into
// spec.Task values with ParentID/Children wired via buildHierarchy, and
// checks for duplicate ids (I1) before hierarchy assembly so the error
// names every duplicate.
func assembleTasks(raws []rawTask) ([]spec.Task, error) {
	seen := make(map[string]bool, len(raws))
	var dups []string
	for _, r := range raws {
		if seen[r.id] {
			dups = append(dups, r.id)
			continue
		}
		seen[r.id] = true
	}
	if len(dups) > 0 {
		return nil, &spec.DuplicateIDError{IDs: dups}
	}

	parents, children := buildHierarchy(raws)

	tasks := make([]spec.Task, 0, len(raws))
	for _, r := range raws {
		status := spec.TaskStatus(r.status)
		if !status.IsValid() {
			status = spec.StatusNotStarted
		}
		tasks = append(tasks, spec.Task{
			ID:              r.id,
			Description:     r.description,
			Status:          status,
			Optional:        r.optional,
			ParentID:        parents[r.id],
			Children:        children[r.id],
			RequirementRefs: r.requirementRefs,
			PropertyRefs:    r.propertyRefs,
			Line:            r.line,
			Indent:          r.rawIndent,
			Bullet:          r.bullet,
			Raw:             r.raw,
		})
	}

	return tasks, nil
}
