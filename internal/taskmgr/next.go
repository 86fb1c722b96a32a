package taskmgr

import "github.com/kirodev/speckit/internal/spec"

// NextTask selects the next task the orchestrator should work on (§4.3
// "Selection policy"):
//
//  1. Walk tasks in document order.
//  2. Skip tasks already completed, and skip optional tasks entirely
//     (they are never auto-selected; an operator must queue them
//     explicitly).
//  3. Only leaf tasks (no children) are returned: a parent task is
//     never itself executed. Nothing here marks it completed; Complete
//     accepts it only once every non-optional child is completed (I2).
//  4. A task nested under a parent is only eligible once every earlier
//     (document-order) non-optional sibling at each ancestor level is
//     completed — later siblings and deeper subtrees do not become
//     eligible out of order.
//
// Returns nil if no eligible task remains (either everything required
// is done, or the whole remaining queue is blocked on the engine
// exhausting attempts on some task elsewhere in the tree).
func (m *Manager) NextTask() *spec.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.spec.Tasks {
		t := &m.spec.Tasks[i]

		if len(t.Children) > 0 {
			continue // not a leaf; never directly executed
		}
		if t.Optional {
			continue
		}
		if t.Status == spec.StatusCompleted {
			continue
		}
		if m.exhaustedLocked(t.ID) {
			continue // §4.3: exhausted tasks reject further mutation, including re-selection
		}
		if !m.priorSiblingsDone(t) {
			continue
		}
		return t
	}
	return nil
}

// priorSiblingsDone reports whether every earlier non-optional sibling
// of t, at every ancestor level, is completed — implementing the
// document-order prerequisite described in §4.3.
func (m *Manager) priorSiblingsDone(t *spec.Task) bool {
	cur := t
	for {
		if !m.priorSiblingsAtLevelDone(cur) {
			return false
		}
		if cur.ParentID == "" {
			return true
		}
		parent := m.spec.TaskByID(cur.ParentID)
		if parent == nil {
			return true
		}
		cur = parent
	}
}

func (m *Manager) priorSiblingsAtLevelDone(t *spec.Task) bool {
	siblings := m.siblingIDs(t)
	for _, sibID := range siblings {
		if sibID == t.ID {
			break // reached t itself: everything before it has been checked
		}
		sib := m.spec.TaskByID(sibID)
		if sib == nil {
			continue
		}
		if sib.Optional {
			continue
		}
		if sib.Status != spec.StatusCompleted {
			return false
		}
	}
	return true
}

func (m *Manager) siblingIDs(t *spec.Task) []string {
	if t.ParentID == "" {
		ids := make([]string, 0, len(m.spec.Tasks))
		for _, root := range m.spec.Tasks {
			if root.ParentID == "" {
				ids = append(ids, root.ID)
			}
		}
		return ids
	}
	parent := m.spec.TaskByID(t.ParentID)
	if parent == nil {
		return []string{t.ID}
	}
	return parent.Children
}

// Progress summarizes completion for status reporting (§8 CLI surface).
type Progress struct {
	Total     int
	Completed int
	Skipped   int
}

// Progress computes the current completion counts across all
// non-optional leaf tasks.
func (m *Manager) Progress() Progress {
	m.mu.Lock()
	defer m.mu.Unlock()

	var p Progress
	skipped := make(map[string]bool, len(m.state.SkippedTasks))
	for _, id := range m.state.SkippedTasks {
		skipped[id] = true
	}

	for _, t := range m.spec.Tasks {
		if len(t.Children) > 0 || t.Optional {
			continue
		}
		p.Total++
		if t.Status == spec.StatusCompleted {
			p.Completed++
			if skipped[t.ID] {
				p.Skipped++
			}
		}
	}
	return p
}
