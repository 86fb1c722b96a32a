package spec

import (
	"fmt"
	"sort"
)

// ValidationError describes a single problem found while validating a
// ParsedSpec (invariants I1 and I2, plus cross-reference resolution).
type ValidationError struct {
	TaskID string
	Reason string
}

func (e ValidationError) String() string {
	if e.TaskID == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.TaskID, e.Reason)
}

// Validate checks invariant I1 (unique task ids) and returns a
// DuplicateIDError if violated. It does not mutate the spec.
func (p *ParsedSpec) Validate() error {
	seen := make(map[string]bool, len(p.Tasks))
	var dups []string
	for _, t := range p.Tasks {
		if seen[t.ID] {
			dups = append(dups, t.ID)
			continue
		}
		seen[t.ID] = true
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		return &DuplicateIDError{IDs: dups}
	}
	return nil
}

// ValidateCrossReferences checks that every task's RequirementRefs and
// PropertyRefs resolve to an existing requirement id or property number.
// Returns the full list of violations found (possibly empty).
func (p *ParsedSpec) ValidateCrossReferences() []ValidationError {
	var violations []ValidationError

	reqIDs := make(map[string]bool, len(p.Requirements))
	for _, r := range p.Requirements {
		reqIDs[r.ID] = true
	}
	propNums := make(map[string]bool, len(p.Properties))
	for _, pr := range p.Properties {
		propNums[fmt.Sprintf("%d", pr.Number)] = true
	}

	for _, t := range p.Tasks {
		for _, ref := range t.RequirementRefs {
			if !reqIDs[ref] {
				violations = append(violations, ValidationError{
					TaskID: t.ID,
					Reason: fmt.Sprintf("references requirement %q, which does not exist", ref),
				})
			}
		}
		for _, ref := range t.PropertyRefs {
			if !propNums[ref] {
				violations = append(violations, ValidationError{
					TaskID: t.ID,
					Reason: fmt.Sprintf("references property %q, which does not exist", ref),
				})
			}
		}
	}

	return violations
}

// CanCompleteParent reports whether the parent task may transition to
// completed: every non-optional child must already be completed (I2).
// Optional children are ignored regardless of status.
func (p *ParsedSpec) CanCompleteParent(parentID string) bool {
	for _, child := range p.Children(parentID) {
		if child.Optional {
			continue
		}
		if child.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// DetectCircularReferences reports a cycle if any task, transitively via
// RequirementRefs-as-task-ids-style self reference, is its own ancestor.
// Hierarchy cycles are detected by walking ParentID chains; a cycle here
// indicates the parser produced inconsistent hierarchy data (tasks.md
// indentation cannot itself encode a cycle, but defensive validation
// catches corrupt in-memory construction, e.g. from a future importer).
func (p *ParsedSpec) DetectCircularReferences() []string {
	byID := make(map[string]*Task, len(p.Tasks))
	for i := range p.Tasks {
		byID[p.Tasks[i].ID] = &p.Tasks[i]
	}

	for _, t := range p.Tasks {
		visited := map[string]bool{t.ID: true}
		cur := t.ParentID
		for cur != "" {
			if visited[cur] {
				path := make([]string, 0, len(visited))
				for id := range visited {
					path = append(path, id)
				}
				sort.Strings(path)
				return path
			}
			visited[cur] = true
			parent, ok := byID[cur]
			if !ok {
				break
			}
			cur = parent.ParentID
		}
	}
	return nil
}
