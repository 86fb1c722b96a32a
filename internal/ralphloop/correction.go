package ralphloop

import (
	"fmt"

	"github.com/kirodev/speckit/internal/spec"
	"github.com/kirodev/speckit/internal/testrunner"
)

// Correction is a proposed change in response to a classified failure:
// free-form guidance text plus the file it targets. How that guidance is
// turned into an actual source edit is the code-generation
// collaborator's job (internal/codegen); the Ralph-Loop only decides
// what to ask for and where.
type Correction struct {
	TargetFile string
	Kind       ErrorKind
	Guidance   string
}

// Generator produces a Correction for a classified failure. The default
// Generator is a deterministic, rule-based one; a project may plug in a
// different Generator (e.g. one backed by an external agent) the same
// way internal/codegen's collaborator interface is pluggable (§4.5
// "pluggable correction generation").
type Generator interface {
	Generate(task *spec.Task, kind ErrorKind, result *testrunner.TestResult) *Correction
}

// DefaultGenerator produces a short, templated addendum per error kind
// (naming the failing test for a test failure) and records the file
// TargetFile resolved in Correction.TargetFile, not in the guidance text.
type DefaultGenerator struct{}

// Generate implements Generator.
func (DefaultGenerator) Generate(task *spec.Task, kind ErrorKind, result *testrunner.TestResult) *Correction {
	var failure testrunner.TestFailure
	if len(result.Failures) > 0 {
		failure = result.Failures[0]
	} else {
		failure.Output = result.RawOutput
	}

	file, _ := TargetFile(kind, failure)

	return &Correction{
		TargetFile: file,
		Kind:       kind,
		Guidance:   guidanceFor(task, kind, failure),
	}
}

func guidanceFor(task *spec.Task, kind ErrorKind, failure testrunner.TestFailure) string {
	switch kind {
	case KindTimeout:
		return fmt.Sprintf("Task %s: the test run timed out. Check for a blocking call, infinite loop, or deadlock introduced by the last change.", task.ID)
	case KindMissingDependency:
		return fmt.Sprintf("Task %s: a required package or symbol is missing. Add the import or dependency referenced by: %s", task.ID, firstLine(failure.Output))
	case KindRuntime:
		return fmt.Sprintf("Task %s: the code panicked at runtime. Fix the nil/bounds/type issue reported in: %s", task.ID, firstLine(failure.Output))
	case KindCompilation:
		return fmt.Sprintf("Task %s: the code does not compile. Resolve the compiler diagnostic: %s", task.ID, firstLine(failure.Output))
	case KindTestFailure:
		return fmt.Sprintf("Task %s: test %q failed. Make the implementation satisfy its assertions: %s", task.ID, failure.Name, firstLine(failure.Output))
	default:
		return fmt.Sprintf("Task %s: the verification run failed for an unclassified reason. Review the raw output and retry.", task.ID)
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
