package specparser

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/kirodev/speckit/internal/spec"
)

var designMD = goldmark.New()

var (
	propertyHeadingPattern = regexp.MustCompile(`^Property\s+(\d+):\s*(.*)$`)
	validatesLinePattern   = regexp.MustCompile(`^Validates:\s*Requirements\s+(.+)$`)
)

// ParseDesignFile extracts the ordered list of properties from design.md.
// A property is introduced by any heading or bold run whose text begins
// with "Property <N>:"; its statement is the paragraph text up to the
// next sibling heading, and a trailing "Validates: Requirements ..." line
// supplies the requirement ids it validates.
func ParseDesignFile(filename string, content []byte) ([]spec.Property, error) {
	doc := designMD.Parser().Parse(text.NewReader(content))

	var props []spec.Property
	var current *spec.Property

	flush := func() {
		if current != nil {
			current.Statement = strings.TrimSpace(current.Statement)
			props = append(props, *current)
			current = nil
		}
	}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			txt := nodeText(node, content)
			if m := propertyHeadingPattern.FindStringSubmatch(txt); m != nil {
				flush()
				current = newProperty(m)
				return ast.WalkSkipChildren, nil
			}
			flush()
			return ast.WalkSkipChildren, nil

		case *ast.Paragraph:
			txt := nodeText(node, content)

			// A paragraph may itself open a new "Property N:" section when
			// the document uses bold runs instead of headings.
			if m := propertyHeadingPattern.FindStringSubmatch(stripLeadingEmphasis(txt)); m != nil && looksLikePropertyLead(node, content) {
				flush()
				current = newProperty(m)
				current.Statement = current.Title
				consumeValidatesLines(current, txt)
				return ast.WalkSkipChildren, nil
			}

			if current == nil {
				return ast.WalkContinue, nil
			}

			if consumeValidatesLines(current, txt) {
				return ast.WalkSkipChildren, nil
			}

			if current.Statement != "" {
				current.Statement += " "
			}
			current.Statement += txt
			return ast.WalkSkipChildren, nil
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, &ParseError{File: filename, Msg: err.Error()}
	}
	flush()

	return props, nil
}

func newProperty(m []string) *spec.Property {
	n, _ := parseInt(m[1])
	return &spec.Property{Number: n, Title: strings.TrimSpace(m[2])}
}

// looksLikePropertyLead reports whether a paragraph's first inline child
// is emphasis/strong text, the usual way "**Property 5:** ..." is
// authored instead of as a heading.
func looksLikePropertyLead(p *ast.Paragraph, source []byte) bool {
	first := p.FirstChild()
	if first == nil {
		return false
	}
	switch first.(type) {
	case *ast.Emphasis:
		return true
	default:
		return false
	}
}

// stripLeadingEmphasis is a no-op passthrough kept symmetrical with
// looksLikePropertyLead: nodeText already flattens emphasis markers, so
// the text form is already plain by the time it reaches the regex.
func stripLeadingEmphasis(s string) string {
	return s
}

// consumeValidatesLines scans txt for a "Validates: Requirements a.b, c.d"
// line and, if found, appends the referenced ids to prop.Requirements.
// Returns true if the paragraph was entirely consumed as a Validates line.
func consumeValidatesLines(prop *spec.Property, txt string) bool {
	for _, line := range strings.Split(txt, "\n") {
		line = strings.TrimSpace(line)
		if m := validatesLinePattern.FindStringSubmatch(line); m != nil {
			for _, id := range strings.Split(m[1], ",") {
				id = strings.TrimSpace(id)
				if id != "" {
					prop.Requirements = append(prop.Requirements, id)
				}
			}
			return line == txt
		}
	}
	return false
}
