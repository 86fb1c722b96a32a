package fsatomic

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/kirodev/speckit/internal/spec"
)

// taskLine is the tokenized form of one tasks.md checkbox line:
// {leading whitespace, bullet, marker, optional flag, id, rest}. Only the
// marker is ever rewritten; everything else is preserved byte-for-byte
// (P8), satisfying the REDESIGN FLAGS §9 guidance to tokenize instead of
// regex-rewriting the whole line.
type taskLine struct {
	indent   string
	bullet   string
	marker   string
	optional bool
	id       string
	rest     string
}

// checkboxPattern recognizes one of:
//
//	- [ ] 3 Description
//	- [x] 3.1 Description
//	- [ ]* 3.2 Description        (optional)
//	- [ ] 3. Description          (id may carry a trailing period)
//
// Capture groups: 1=indent 2=bullet 3=marker 4=optional-star 5=id
// (with optional trailing dot) 6=rest-of-line.
var checkboxPattern = regexp.MustCompile(`^(\s*)([-*+])\s\[([ x~>X])\](\*?)\s+(\d+(?:\.\d+)*\.?)\s*(.*)$`)

// parseTaskLine tokenizes a single raw tasks.md line. ok is false if the
// line is not a checkbox task line (narrative text, blank line, etc.).
func parseTaskLine(raw string) (taskLine, bool) {
	trimmed := strings.TrimRight(raw, "\r")
	m := checkboxPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return taskLine{}, false
	}
	id := strings.TrimSuffix(m[5], ".")
	return taskLine{
		indent:   m[1],
		bullet:   m[2],
		marker:   m[3],
		optional: m[4] == "*",
		id:       id,
		rest:     m[6],
	}, true
}

// idMatches reports whether a checkbox line's id is exactly the given
// task id, as a negative lookahead substitute: Go's regexp package has
// no lookahead, so the id-boundary check is done by
// string comparison after the generic checkboxPattern match rather than
// by regex (this is what makes "2" not match inside "2.1").
func idMatches(lineID, wantID string) bool {
	return lineID == wantID
}

// UpdateCheckbox rewrites, in tasksPath, the first checkbox line whose id
// equals taskID so that its marker reflects newStatus. Every other byte
// of the file, including every other line's id, indentation, bullet
// style, optional-asterisk suffix, description, and trailing annotations,
// is left untouched. Only the first match is rewritten, preventing
// duplicate-id cascades (§4.1).
//
// The update is written through AtomicWriteWithBackup so a reader never
// observes a partially-rewritten file (I5), and the new content is
// structurally validated (it must still tokenize as a task list) before
// the write commits.
func (s *Substrate) UpdateCheckbox(tasksPath string, taskID string, newStatus spec.TaskStatus, backupDir string) error {
	data, err := readFileForUpdate(tasksPath)
	if err != nil {
		return err
	}

	newMarker := newStatus.Marker()
	lines := splitLinesPreserveEnding(string(data))

	found := false
	for i, raw := range lines {
		tl, ok := parseTaskLine(raw)
		if !ok {
			continue
		}
		if !idMatches(tl.id, taskID) {
			continue
		}

		lines[i] = rewriteMarker(raw, tl, newMarker)
		found = true
		break
	}

	if !found {
		return fmt.Errorf("fsatomic: no checkbox line found for task id %q in %s", taskID, tasksPath)
	}

	newContent := strings.Join(lines, "\n")

	validator := func(content []byte) error {
		return validateTasksStructure(content)
	}

	return s.AtomicWriteWithBackup(tasksPath, []byte(newContent), validator, FailIfMissingDir, backupDir)
}

// rewriteMarker replaces only the marker character inside the brackets of
// raw, leaving every other character (including a trailing \r) intact.
func rewriteMarker(raw string, tl taskLine, newMarker string) string {
	hasCR := strings.HasSuffix(raw, "\r")
	body := raw
	if hasCR {
		body = strings.TrimSuffix(raw, "\r")
	}

	// Locate the bracket contents precisely: indent + bullet + " [" + marker + "]"
	prefixLen := len(tl.indent) + len(tl.bullet) + len(" [")
	if prefixLen+1 > len(body) {
		return raw // defensive: malformed line, leave untouched
	}

	rewritten := body[:prefixLen] + newMarker + body[prefixLen+1:]
	if hasCR {
		rewritten += "\r"
	}
	return rewritten
}

// splitLinesPreserveEnding splits content on "\n" only, leaving any "\r"
// that precedes it attached to the end of the preceding element. A file
// with mixed \n and \r\n line endings therefore round-trips byte-for-byte
// through strings.Join(lines, "\n") for every line this package does not
// rewrite (P8): normalizing to one line ending globally, as a naive
// s/\r\n/\n/ pre-pass would do, widens or narrows lines the edit never
// touched.
func splitLinesPreserveEnding(content string) []string {
	return strings.Split(content, "\n")
}

func readFileForUpdate(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Op: "read", Path: path, Err: err}
	}
	return data, nil
}

// validateTasksStructure ensures content still parses as a non-empty task
// list: at least one recognizable checkbox line must remain, per §4.5
// validation rule 2 ("tasks.md still parses as a task list").
func validateTasksStructure(content []byte) error {
	lines := splitLinesPreserveEnding(string(content))
	for _, l := range lines {
		if _, ok := parseTaskLine(l); ok {
			return nil
		}
	}
	return fmt.Errorf("tasks.md content has no recognizable task checkbox lines")
}
