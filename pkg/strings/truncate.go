// Package strings holds text helpers for terminal output.
package strings

import (
	"strings"
)

// Ellipsis marks truncated text.
const Ellipsis = "..."

// minWidth leaves room for one character and the ellipsis.
const minWidth = len(Ellipsis) + 1

// SingleLine collapses every run of whitespace, newlines included, into one
// space.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate returns s on one line and at most width runes long. Truncated
// text ends in an ellipsis. Widths below 4 are raised to 4.
func Truncate(s string, width int) string {
	if width < minWidth {
		width = minWidth
	}
	s = SingleLine(s)
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-len(Ellipsis)]) + Ellipsis
}
