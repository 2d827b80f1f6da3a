package util

// Terminal control sequences
const (
	ColorReset = "\033[0m"
	ColorCyan  = "\033[36m"
	ColorBold  = "\033[1m"

	ClearScreen         = "\033[2J" // Clear entire screen
	ClearLineFromCursor = "\033[0K" // Clear from cursor to end of line
	ClearToEnd          = "\033[J"  // Clear from cursor to end of screen
	MoveCursorHome      = "\033[H"  // Move cursor to home position
	HideCursor          = "\033[?25l"
	ShowCursor          = "\033[?25h"
)
