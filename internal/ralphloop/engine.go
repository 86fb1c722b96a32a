package ralphloop

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirodev/speckit/internal/audit"
	"github.com/kirodev/speckit/internal/fsatomic"
	"github.com/kirodev/speckit/internal/spec"
	"github.com/kirodev/speckit/internal/specparser"
	"github.com/kirodev/speckit/internal/taskmgr"
	"github.com/kirodev/speckit/internal/testrunner"
)

// Engine drives one classify-generate-validate-apply cycle per failed
// test run, bounded by the Task Manager's per-task attempt ceiling
// (§4.5, §7).
type Engine struct {
	tasks     *taskmgr.Manager
	generator Generator
	fs        *fsatomic.Substrate
	auditSink *audit.Sink
	specDir   string
	now       func() time.Time
}

// New creates an Engine using the DefaultGenerator. specDir is the
// feature directory holding requirements.md/design.md/tasks.md, the
// three documents corrections are written into.
func New(tasks *taskmgr.Manager, specDir string, auditDir string) *Engine {
	return &Engine{
		tasks:     tasks,
		generator: DefaultGenerator{},
		fs:        fsatomic.New(),
		auditSink: audit.NewSink(auditDir),
		specDir:   specDir,
		now:       time.Now,
	}
}

// SetGenerator overrides the correction generator.
func (e *Engine) SetGenerator(g Generator) {
	e.generator = g
}

// Outcome reports what the engine did for one failed run.
type Outcome struct {
	Kind       ErrorKind
	Correction *Correction
	TargetFile string // the spec document the correction was written into
	Attempt    int
	Exhausted  bool
}

// ValidationError reports a correction that failed the pre-commit check
// (§4.5 "Validation before commit").
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ralphloop: correction failed validation: %s", e.Reason)
}

// Attempt processes one failed TestResult for task: classify the
// failure, generate a correction, validate it, rewrite the spec document
// §4.5's target-file table selects for that kind, record an audit entry,
// and bump the task's attempt counter. If the task has exhausted its
// attempt budget, Attempt still records the audit entry (as
// OutcomeExhausted) but returns Outcome.Exhausted = true without writing
// a new correction, since the engine has nothing further to try.
func (e *Engine) Attempt(task *spec.Task, result *testrunner.TestResult) (*Outcome, error) {
	kind := Classify(result)

	if e.tasks.Exhausted(task.ID) {
		n := e.tasks.Attempts(task.ID)
		e.recordAudit(task.ID, kind, "", n, audit.OutcomeExhausted, "attempt budget already exhausted")
		return &Outcome{Kind: kind, Attempt: n, Exhausted: true}, nil
	}

	correction := e.generator.Generate(task, kind, result)
	targetName := SpecTargetFile(kind)

	if err := e.validate(correction); err != nil {
		n, exhausted, incErr := e.tasks.IncrementAttempt(task.ID)
		e.recordAudit(task.ID, kind, targetName, n, audit.OutcomeFailed, err.Error())
		if incErr != nil {
			return nil, incErr
		}
		return &Outcome{Kind: kind, Correction: correction, TargetFile: targetName, Attempt: n, Exhausted: exhausted}, err
	}

	if err := e.apply(task, kind, correction, targetName); err != nil {
		n, exhausted, incErr := e.tasks.IncrementAttempt(task.ID)
		e.recordAudit(task.ID, kind, targetName, n, audit.OutcomeFailed, err.Error())
		if incErr != nil {
			return nil, incErr
		}
		return &Outcome{Kind: kind, Correction: correction, TargetFile: targetName, Attempt: n, Exhausted: exhausted}, err
	}

	n, exhausted, err := e.tasks.IncrementAttempt(task.ID)
	if err != nil {
		return nil, err
	}

	outcome := audit.OutcomeCorrected
	if exhausted {
		outcome = audit.OutcomeExhausted
	} else if resetErr := e.tasks.Reset(task.ID); resetErr != nil {
		return nil, fmt.Errorf("ralphloop: reset task after applied correction: %w", resetErr)
	}
	e.recordAudit(task.ID, kind, targetName, n, outcome, correction.Guidance)

	return &Outcome{Kind: kind, Correction: correction, TargetFile: targetName, Attempt: n, Exhausted: exhausted}, nil
}

// validate implements the structural half of §4.5's pre-commit checks
// that don't depend on the target document's current content: the
// correction must carry non-empty guidance and a real classified kind
// (Classify never returns the zero value, so a zero ErrorKind here means
// the caller built a Correction by hand incorrectly). The checks that do
// depend on the target document's content (non-empty after the edit,
// still-valid structure, cross-references still resolving, no section
// lost) run inside apply, as the Atomic File Substrate's staged-content
// validator, immediately before the write commits.
func (e *Engine) validate(c *Correction) error {
	if c == nil || strings.TrimSpace(c.Guidance) == "" {
		return &ValidationError{Reason: "empty correction guidance"}
	}
	if c.Kind == "" {
		return &ValidationError{Reason: "correction has no classified error kind"}
	}
	return nil
}

// apply rewrites the spec document targetName in place (one of
// requirements.md/design.md/tasks.md, as selected by SpecTargetFile)
// to attach the correction's note at the paragraph it implicates —
// the "### Requirement <id>" section named by task.RequirementRefs, the
// "Property <N>:" paragraph named by task.PropertyRefs, or task.ID's own
// line in tasks.md — falling back to appending at the end of the
// document when no specific ref pins down a location. The write goes
// through the Atomic File Substrate so a reader never observes a
// half-written document (I5), and the staged content is validated
// in-place before it commits (§4.5 "Validation before commit").
func (e *Engine) apply(task *spec.Task, kind ErrorKind, c *Correction, targetName string) error {
	targetPath := filepath.Join(e.specDir, targetName)

	oldContent, err := os.ReadFile(targetPath)
	if err != nil {
		return fmt.Errorf("ralphloop: read %s: %w", targetName, err)
	}

	note := correctionNote(task, c)
	newContent, ok := insertCorrectionNote(targetName, string(oldContent), task, note)
	if !ok {
		return &ValidationError{Reason: fmt.Sprintf("no insertion point for kind %s in %s", kind, targetName)}
	}

	validator := func(staged []byte) error {
		return e.validateSpecEdit(targetName, staged)
	}

	return e.fs.AtomicWriteWithBackup(targetPath, []byte(newContent), validator, fsatomic.FailIfMissingDir, "")
}

// validateSpecEdit implements §4.5's four validation-before-commit
// rules against staged, the proposed new content of targetName:
//  1. staged must not be empty.
//  2. staged must still satisfy its document's own structural parse
//     (requirements.md keeps at least one "### Requirement" section;
//     tasks.md still tokenizes as a task list; design.md still parses).
//  3. every requirement id, property number, and task id present before
//     the edit must still be present after it — cross-references that
//     resolved before the edit cannot be left dangling by it.
//  4. the full spec (all three documents, with targetName swapped for
//     staged) must still have zero unresolved cross-references, the
//     same state Load requires before a feature spec is usable at all.
func (e *Engine) validateSpecEdit(targetName string, staged []byte) error {
	if len(strings.TrimSpace(string(staged))) == 0 {
		return fmt.Errorf("%s would be emptied", targetName)
	}

	switch targetName {
	case specparser.RequirementsFile:
		if _, err := specparser.ParseRequirementsFile(targetName, staged); err != nil {
			return fmt.Errorf("%s would no longer have a valid Requirement section: %w", targetName, err)
		}
	case specparser.TasksFile:
		if _, err := specparser.ParseTasksFile(targetName, staged); err != nil {
			return fmt.Errorf("%s would no longer parse as a task list: %w", targetName, err)
		}
	case specparser.DesignFile:
		if _, err := specparser.ParseDesignFile(targetName, staged); err != nil {
			return fmt.Errorf("%s would no longer parse: %w", targetName, err)
		}
	}

	before := e.tasks.Spec()
	after, err := e.parseWithOverride(targetName, staged)
	if err != nil {
		return fmt.Errorf("ralphloop: re-parse spec after edit: %w", err)
	}

	for _, r := range before.Requirements {
		if _, ok := after.RequirementByID(r.ID); !ok {
			return fmt.Errorf("correction would delete existing requirement %s", r.ID)
		}
	}
	for _, p := range before.Properties {
		if _, ok := after.PropertyByNumber(p.Number); !ok {
			return fmt.Errorf("correction would delete existing property %d", p.Number)
		}
	}
	for _, t := range before.Tasks {
		if after.TaskByID(t.ID) == nil {
			return fmt.Errorf("correction would delete existing task %s", t.ID)
		}
	}

	if violations := after.ValidateCrossReferences(); len(violations) > 0 {
		return fmt.Errorf("correction would leave %d unresolved cross-reference(s), first: %s", len(violations), violations[0].String())
	}

	return nil
}

// parseWithOverride parses the full three-document spec with targetName's
// content replaced by staged, by materializing all three files in a
// scratch directory and running them through the ordinary specparser.Parse
// pipeline (hierarchy assembly, duplicate-id detection, cycle detection
// included) rather than re-implementing any of that here.
func (e *Engine) parseWithOverride(targetName string, staged []byte) (*spec.ParsedSpec, error) {
	tmpDir, err := os.MkdirTemp("", "ralphloop-validate-*")
	if err != nil {
		return nil, fmt.Errorf("ralphloop: create scratch dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	for _, name := range []string{specparser.RequirementsFile, specparser.DesignFile, specparser.TasksFile} {
		content := staged
		if name != targetName {
			content, err = os.ReadFile(filepath.Join(e.specDir, name))
			if err != nil {
				return nil, fmt.Errorf("ralphloop: read %s: %w", name, err)
			}
		}
		if err := os.WriteFile(filepath.Join(tmpDir, name), content, 0o644); err != nil {
			return nil, fmt.Errorf("ralphloop: write scratch %s: %w", name, err)
		}
	}

	return specparser.Parse(tmpDir)
}

func (e *Engine) recordAudit(taskID string, kind ErrorKind, targetFile string, attempt int, outcome audit.Outcome, detail string) {
	r := audit.NewRecord(taskID, string(kind), attempt)
	r.TargetFile = targetFile
	r.Outcome = outcome
	r.Detail = detail
	_, _ = e.auditSink.Append(r, e.now())
}
