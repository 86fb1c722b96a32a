package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/kirodev/speckit/internal/events"
)

// runProgressListener renders task-lifecycle events as colorized one-line
// progress updates, the same ambient role the teacher's display package
// plays for its iteration output.
type runProgressListener struct {
	out io.Writer
}

func newRunProgressListener(out io.Writer) *runProgressListener {
	return &runProgressListener{out: out}
}

func (l *runProgressListener) OnTaskEvent(ev events.TaskEvent) {
	switch ev.Type {
	case events.TypeStarted:
		_, _ = fmt.Fprintf(l.out, "%s task %s\n", color.CyanString("▶"), ev.TaskID)
	case events.TypeCompleted:
		_, _ = fmt.Fprintf(l.out, "%s task %s\n", color.GreenString("✓"), ev.TaskID)
	case events.TypeAttempt:
		_, _ = fmt.Fprintf(l.out, "%s task %s (attempt %d)\n", color.YellowString("↻"), ev.TaskID, ev.Attempt)
	case events.TypeExhausted:
		_, _ = fmt.Fprintf(l.out, "%s task %s exhausted its attempt budget\n", color.RedString("✗"), ev.TaskID)
	case events.TypeSkipped:
		_, _ = fmt.Fprintf(l.out, "%s task %s skipped\n", color.YellowString("—"), ev.TaskID)
	case events.TypeReset:
		_, _ = fmt.Fprintf(l.out, "%s task %s reset\n", color.HiBlackString("↺"), ev.TaskID)
	}
}
