package layout

import (
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/penwyp/go-ha-timeline/internal/util"
)

const (
	DefaultWidth = 80
	MinWidth     = 40
	MaxWidth     = 120
)

// Package-level singleton Sizer instance
var sharedSizer = &Sizer{}

// Sizer measures and pads text by display cells, so wide runes and emoji
// line up.
type Sizer struct {
}

// Shared returns the package-wide Sizer.
func Shared() *Sizer {
	return sharedSizer
}

// DisplayWidth returns the number of terminal cells s occupies.
func (i Sizer) DisplayWidth(s string) int {
	return runewidth.StringWidth(s)
}

// PadString pads a string to a specific display width, handling emojis correctly
func (i Sizer) PadString(s string, width int, leftAlign bool) string {
	actualWidth := i.DisplayWidth(s)
	if actualWidth >= width {
		return s
	}

	padding := strings.Repeat(" ", width-actualWidth)
	if leftAlign {
		return s + padding
	}
	return padding + s
}

// Truncate shortens s to width cells, ending with an ellipsis when cut.
func (i Sizer) Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// Center pads s on both sides to width cells.
func (i Sizer) Center(s string, width int) string {
	w := i.DisplayWidth(s)
	if w >= width {
		return s
	}
	left := (width - w) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-w-left)
}

// TerminalWidth returns the width of the terminal on stdout, clamped to
// [MinWidth, MaxWidth], or DefaultWidth when stdout is not a terminal.
func (i Sizer) TerminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return DefaultWidth
	}
	termWidth, _, err := term.GetSize(fd)
	if err != nil {
		return DefaultWidth
	}

	width := clamp(termWidth)
	util.LogDebugf("terminal width %d (reported %d)", width, termWidth)
	return width
}

func clamp(width int) int {
	if width < MinWidth {
		return MinWidth
	}
	if width > MaxWidth {
		return MaxWidth
	}
	return width
}
