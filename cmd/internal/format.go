package internal

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// DefaultProgressBarWidth is used whenever stdout isn't a terminal (piped
// output, a CI log) or its size can't be determined.
const DefaultProgressBarWidth = 30

// ProgressBarWidth sizes a progress bar's inner width to the current
// terminal, the same way the teacher's display package sizes its
// box-drawing output off term.GetSize, falling back to
// DefaultProgressBarWidth when stdout isn't a TTY or reports an
// implausibly narrow width.
func ProgressBarWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 40 {
		return DefaultProgressBarWidth
	}
	if width > 110 {
		width = 110
	}
	return width - 10 // leave room for the brackets and the trailing counts
}

// ProgressBar returns an ASCII progress bar string for the given percentage.
// The width parameter specifies the inner width of the bar (excluding brackets).
// Percentage values are clamped to 0-100.
//
// Example: ProgressBar(50, 20) returns "[==========          ]"
func ProgressBar(percent, width int) string {
	// Clamp percent to 0-100
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	// Calculate filled portion
	filled := (percent * width) / 100

	// Build the bar
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(strings.Repeat("=", filled))
	sb.WriteString(strings.Repeat(" ", width-filled))
	sb.WriteString("]")

	return sb.String()
}
