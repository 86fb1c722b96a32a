package specparser

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/kirodev/speckit/internal/spec"
)

var requirementsMD = goldmark.New()

// requirementHeadingPrefix recognizes "### Requirement <id>" style
// headings at any level >= 3, per §4.2.
const requirementHeadingPrefix = "Requirement "

// userStoryLeadPattern and acceptanceCriteriaLeadPattern recognize the
// user-story and acceptance-criteria sub-sections when they're authored
// as a bold run opening a paragraph ("**User Story:** ...") rather than
// as their own sub-heading, mirroring ParseDesignFile's bold-run handling
// for "Property N:" leads (nodeText already flattens the bold markers, so
// the text form reaching these patterns is plain).
var (
	userStoryLeadPattern          = regexp.MustCompile(`(?i)^User Story:?\s*(.*)$`)
	acceptanceCriteriaLeadPattern = regexp.MustCompile(`(?i)^Acceptance Criteria:?\s*$`)
)

// ParseRequirementsFile extracts the ordered list of requirements from
// requirements.md. Each `### Requirement <id>` section (any heading level
// >= 3) contributes one Requirement; its user-story sub-section and its
// acceptance-criteria list (typically an ordered list) are captured as
// UserStory and AcceptanceCriteria.
func ParseRequirementsFile(filename string, content []byte) ([]spec.Requirement, error) {
	doc := requirementsMD.Parser().Parse(text.NewReader(content))

	var reqs []spec.Requirement
	var current *spec.Requirement
	var currentLevel int
	collectingStory := false

	flush := func() {
		if current != nil {
			reqs = append(reqs, *current)
			current = nil
		}
	}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			heading := nodeText(node, content)
			if node.Level >= 3 && strings.HasPrefix(heading, requirementHeadingPrefix) {
				flush()
				id := strings.TrimSpace(strings.TrimPrefix(heading, requirementHeadingPrefix))
				current = &spec.Requirement{ID: id}
				currentLevel = node.Level
				collectingStory = false
				return ast.WalkSkipChildren, nil
			}
			if current != nil && node.Level <= currentLevel {
				flush()
			}
			if current != nil {
				lower := strings.ToLower(heading)
				collectingStory = strings.Contains(lower, "user story")
			}
			return ast.WalkSkipChildren, nil

		case *ast.Paragraph:
			if current == nil {
				return ast.WalkContinue, nil
			}
			txt := strings.TrimSpace(nodeText(node, content))
			if txt == "" {
				return ast.WalkContinue, nil
			}

			// A paragraph may itself open the user-story or
			// acceptance-criteria sub-section when the document uses a
			// bold run instead of a sub-heading ("**User Story:** ...").
			if m := userStoryLeadPattern.FindStringSubmatch(txt); m != nil {
				collectingStory = true
				txt = strings.TrimSpace(m[1])
				if txt == "" {
					return ast.WalkSkipChildren, nil
				}
			} else if acceptanceCriteriaLeadPattern.MatchString(txt) {
				collectingStory = false
				return ast.WalkSkipChildren, nil
			}

			if collectingStory {
				if current.UserStory != "" {
					current.UserStory += " "
				}
				current.UserStory += txt
			}
			return ast.WalkSkipChildren, nil

		case *ast.List:
			if current == nil {
				return ast.WalkContinue, nil
			}
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				txt := strings.TrimSpace(nodeText(item, content))
				if txt != "" {
					current.AcceptanceCriteria = append(current.AcceptanceCriteria, txt)
				}
			}
			return ast.WalkSkipChildren, nil
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, &ParseError{File: filename, Msg: err.Error()}
	}
	flush()

	if len(reqs) == 0 {
		return nil, &ParseError{File: filename, Msg: "no '### Requirement <id>' sections found"}
	}

	return reqs, nil
}

// nodeText concatenates the text of every text-bearing descendant of n,
// using ast.Node.Text's segment-walking approach rather than relying on
// the deprecated whole-subtree Text() convenience method.
func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(node ast.Node) {
		switch v := node.(type) {
		case *ast.Text:
			buf.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(v.Value)
		default:
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}
