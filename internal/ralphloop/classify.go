// Package ralphloop implements the Ralph-Loop Self-Correction Engine
// (spec §4.5): it classifies a failing test run, generates a textual
// correction, validates it before committing, and applies it through the
// Atomic File Substrate, bounded by a per-task attempt ceiling.
package ralphloop

import (
	"regexp"

	"github.com/kirodev/speckit/internal/specparser"
	"github.com/kirodev/speckit/internal/testrunner"
)

// ErrorKind enumerates the categories a failing run is classified into.
// Order matters: Classify checks kinds in exactly this priority order,
// so a run that looks like both a timeout and a compilation failure is
// classified as a timeout (§4.5 "Error classification").
type ErrorKind string

const (
	KindTimeout           ErrorKind = "timeout"
	KindMissingDependency ErrorKind = "missing_dependency"
	KindRuntime           ErrorKind = "runtime"
	KindCompilation       ErrorKind = "compilation"
	KindTestFailure       ErrorKind = "test_failure"
	KindUnknown           ErrorKind = "unknown"
)

var (
	missingDepPattern = regexp.MustCompile(`(?i)(no required module provides package|cannot find package|undefined:|undeclared name|missing go\.sum entry)`)
	runtimePattern    = regexp.MustCompile(`(?i)(panic:|nil pointer dereference|index out of range|goroutine \d+ \[)`)
	compilationPattern = regexp.MustCompile(`(?i)(syntax error|expected declaration|expected '|cannot use .* as .* value|\.go:\d+:\d+:)`)
)

// Classify determines the ErrorKind for a failed TestResult. A timeout
// always wins regardless of output content, since the process was killed
// before it could report anything trustworthy. Missing-dependency and
// runtime patterns are checked before generic compilation patterns
// because compiler diagnostics and "undefined: X" messages can overlap
// textually; the more specific category is preferred. A FailedTest count
// greater than zero does not, by itself, classify as KindTestFailure —
// the output must also lack every other pattern, since a run that both
// fails tests and panics should be classified as KindRuntime.
func Classify(result *testrunner.TestResult) ErrorKind {
	if result == nil {
		return KindUnknown
	}
	if result.TimedOut {
		return KindTimeout
	}

	output := result.RawOutput
	switch {
	case missingDepPattern.MatchString(output):
		return KindMissingDependency
	case runtimePattern.MatchString(output):
		return KindRuntime
	case compilationPattern.MatchString(output):
		return KindCompilation
	}

	if result.Failed > 0 {
		return KindTestFailure
	}
	if result.ExitError {
		return KindUnknown
	}
	return KindUnknown
}

// TargetFile derives the source file a correction should be applied to,
// from the classified kind and the failing test's recorded output. It
// looks for the first "<path>.go:<line>" reference in the output; for
// KindMissingDependency it looks for a quoted import path instead, since
// the relevant file is whichever imports the missing package rather than
// a line in the failing test itself.
var (
	goFileRefPattern   = regexp.MustCompile(`([A-Za-z0-9_./-]+\.go):\d+`)
	importPathPattern  = regexp.MustCompile(`"([A-Za-z0-9_./-]+)"`)
)

// TargetFile returns the implicated source file named in the failure
// output, and ok=false if none could be determined. DefaultGenerator
// stores it in Correction.TargetFile; the guidance text does not include
// it. It never names the spec document a correction is written into; that
// selection is SpecTargetFile's job.
func TargetFile(kind ErrorKind, failure testrunner.TestFailure) (string, bool) {
	switch kind {
	case KindMissingDependency:
		if m := importPathPattern.FindStringSubmatch(failure.Output); m != nil {
			return m[1], true
		}
	default:
		if m := goFileRefPattern.FindStringSubmatch(failure.Output); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// SpecTargetFile maps a classified ErrorKind to the spec document a
// correction for that kind is written into (§4.5 "Target-file
// selection"): dependency problems are a requirements gap, test and
// compilation failures are a design gap, and runtime/timeout/unclassified
// failures are treated as a task-execution gap.
func SpecTargetFile(kind ErrorKind) string {
	switch kind {
	case KindMissingDependency:
		return specparser.RequirementsFile
	case KindCompilation, KindTestFailure:
		return specparser.DesignFile
	default: // KindRuntime, KindTimeout, KindUnknown
		return specparser.TasksFile
	}
}
