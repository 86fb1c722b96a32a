package ralphloop

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirodev/speckit/internal/spec"
	"github.com/kirodev/speckit/internal/specparser"
)

// correctionNote formats the single line of text a correction attaches to
// the target spec document, naming the task and the classified kind so a
// reader of requirements.md/design.md/tasks.md can trace a note back to
// the run that produced it without consulting the audit trail.
func correctionNote(task *spec.Task, c *Correction) string {
	return fmt.Sprintf("Correction (task %s, %s): %s", task.ID, c.Kind, c.Guidance)
}

// insertCorrectionNote inserts note into content in the place §4.5
// describes for targetName, and reports whether an insertion point was
// found. For the three spec documents it always returns ok=true: when the
// task's own refs don't pin down a specific Requirement section or
// Property paragraph, the note is appended at the end of the document
// rather than silently dropped. Any other targetName returns ok=false.
func insertCorrectionNote(targetName, content string, task *spec.Task, note string) (string, bool) {
	switch targetName {
	case specparser.RequirementsFile:
		if id := firstNonEmpty(task.RequirementRefs); id != "" {
			if out, ok := insertNoteInRequirementSection(content, id, note); ok {
				return out, true
			}
		}
		return appendNoteAtEnd(content, note), true

	case specparser.DesignFile:
		if num, ok := firstPropertyNumber(task.PropertyRefs); ok {
			if out, ok2 := insertNoteInPropertyParagraph(content, num, note); ok2 {
				return out, true
			}
		}
		return appendNoteAtEnd(content, note), true

	case specparser.TasksFile:
		if out, ok := insertNoteAfterTaskLine(content, task.ID, note); ok {
			return out, true
		}
		return appendNoteAtEnd(content, note), true

	default:
		return content, false
	}
}

func firstNonEmpty(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

func firstPropertyNumber(refs []string) (int, bool) {
	if len(refs) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(refs[0])
	if err != nil {
		return 0, false
	}
	return n, true
}

// insertNoteInRequirementSection appends note as a new paragraph inside
// the "### Requirement <id>" section, just before whatever follows it
// (the next "### " heading, or the end of the document). The heading
// line itself, and every byte before or after the section, is untouched.
func insertNoteInRequirementSection(content, id, note string) (string, bool) {
	heading := "### Requirement " + id
	idx := strings.Index(content, heading)
	if idx == -1 {
		return content, false
	}

	afterHeading := idx + len(heading)
	sectionEnd := len(content)
	if nextIdx := strings.Index(content[afterHeading:], "\n### "); nextIdx != -1 {
		sectionEnd = afterHeading + nextIdx
	}

	trimmedEnd := sectionEnd
	for trimmedEnd > afterHeading && content[trimmedEnd-1] == '\n' {
		trimmedEnd--
	}

	return content[:trimmedEnd] + "\n\n" + note + content[sectionEnd:], true
}

// insertNoteInPropertyParagraph attaches note inside the paragraph
// containing "Property <N>:", whether that text was authored as a
// heading or as a bold run, by locating the marker text itself rather
// than re-deriving section boundaries from goldmark. The note becomes an
// additional sentence in the same paragraph block, ending before the
// blank line (or document end) that closes it.
func insertNoteInPropertyParagraph(content string, number int, note string) (string, bool) {
	marker := fmt.Sprintf("Property %d:", number)
	idx := strings.Index(content, marker)
	if idx == -1 {
		return content, false
	}

	end := paragraphEnd(content, idx)
	return content[:end] + " " + note + content[end:], true
}

// paragraphEnd returns the offset of the blank line ("\n\n") that closes
// the paragraph containing position from, or len(content) if the
// paragraph runs to the end of the document.
func paragraphEnd(content string, from int) int {
	if i := strings.Index(content[from:], "\n\n"); i != -1 {
		return from + i
	}
	return len(content)
}

// taskLineIDPattern recognizes a tasks.md checkbox line well enough to
// extract its id; it mirrors fsatomic's and specparser's tokenizers but
// is kept local since both of those are internal to their own packages.
var taskLineIDPattern = regexp.MustCompile(`^(\s*)([-*+])\s\[([ x~>X])\](\*?)\s+(\d+(?:\.\d+)*)\.?\s*(.*)$`)

// insertNoteAfterTaskLine inserts note as an HTML-comment narrative line,
// indented one level deeper than taskID's own checkbox line, immediately
// below it. A comment line is not itself a checkbox line, so it is
// invisible to ParseTasksFile and can never be mistaken for a sibling or
// child task (§4.1's "never widen nor narrow" concern is about rewritten
// lines; this is a wholly new line, not a rewrite of an existing one).
func insertNoteAfterTaskLine(content, taskID, note string) (string, bool) {
	lines := strings.Split(content, "\n")

	for i, raw := range lines {
		trimmed := strings.TrimRight(raw, "\r")
		m := taskLineIDPattern.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		if strings.TrimSuffix(m[5], ".") != taskID {
			continue
		}

		noteLine := m[1] + "  <!-- " + note + " -->"
		out := make([]string, 0, len(lines)+1)
		out = append(out, lines[:i+1]...)
		out = append(out, noteLine)
		out = append(out, lines[i+1:]...)
		return strings.Join(out, "\n"), true
	}

	return content, false
}

func appendNoteAtEnd(content, note string) string {
	trimmed := strings.TrimRight(content, "\n")
	return trimmed + "\n\n" + note + "\n"
}
