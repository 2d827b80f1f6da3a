package display

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/penwyp/go-ha-timeline/internal/presentation/formatter"
	"github.com/penwyp/go-ha-timeline/internal/presentation/layout"
	"github.com/penwyp/go-ha-timeline/internal/util"
)

// Status is the footer of the live view.
type Status struct {
	Loading    bool
	Live       bool
	Language   string
	LastUpdate time.Time
	LastError  error
}

// TerminalDisplay redraws the timeline in place on a terminal in raw mode.
type TerminalDisplay struct {
	out               io.Writer
	text              *formatter.TextFormatter
	sizer             *layout.Sizer
	inAlternateScreen bool
}

// NewTerminalDisplay creates a display writing to out.
func NewTerminalDisplay(out io.Writer, color bool) *TerminalDisplay {
	text := formatter.NewTextFormatter()
	text.Color = color
	return &TerminalDisplay{out: out, text: text, sizer: layout.Shared()}
}

// EnterAlternateScreen switches to alternate screen buffer
func (td *TerminalDisplay) EnterAlternateScreen() {
	if td.inAlternateScreen {
		return
	}
	fmt.Fprint(td.out, "\033[?1049h", util.ClearScreen, util.MoveCursorHome, util.HideCursor)
	td.inAlternateScreen = true
}

// ExitAlternateScreen returns to normal screen buffer
func (td *TerminalDisplay) ExitAlternateScreen() {
	if !td.inAlternateScreen {
		return
	}
	fmt.Fprint(td.out, util.ClearScreen, util.MoveCursorHome, util.ShowCursor, "\033[?1049l")
	td.inAlternateScreen = false
}

// Render draws the view followed by the status footer.
func (td *TerminalDisplay) Render(v formatter.View, st Status) error {
	var body bytes.Buffer
	if st.Loading && len(v.Items) == 0 {
		body.WriteString("Loading timeline...\n")
	} else if err := td.text.Format(&body, v); err != nil {
		return err
	}

	lines := strings.Split(strings.TrimRight(body.String(), "\n"), "\n")
	lines = append(lines, "", td.footer(st, v.Width))
	return td.draw(lines)
}

// RenderHelp draws the key bindings.
func (td *TerminalDisplay) RenderHelp() error {
	return td.draw([]string{
		"Keyboard shortcuts",
		strings.Repeat("─", 40),
		"  q/Esc/Ctrl+C  quit",
		"  r             refresh history now",
		"  e/space       show more / show less",
		"  h             toggle this help",
	})
}

func (td *TerminalDisplay) footer(st Status, width int) string {
	live := "○ polling"
	if st.Live {
		live = "● live"
	}
	parts := []string{live}
	if st.Language != "" {
		parts = append(parts, st.Language)
	}
	if !st.LastUpdate.IsZero() {
		parts = append(parts, "updated "+st.LastUpdate.Format("15:04:05"))
	}
	if st.LastError != nil {
		parts = append(parts, "error: "+st.LastError.Error())
	}
	parts = append(parts, "h help")

	line := strings.Join(parts, "  ·  ")
	if width > 0 {
		line = td.sizer.Truncate(line, width)
	}
	if td.text.Color {
		line = util.ColorCyan + line + util.ColorReset
	}
	return line
}

// draw overwrites the screen from the top. Lines left over from a longer
// previous frame are cleared.
func (td *TerminalDisplay) draw(lines []string) error {
	var b strings.Builder
	b.WriteString(util.MoveCursorHome)
	for _, l := range lines {
		// Raw mode does not translate \n.
		b.WriteString(l + util.ClearLineFromCursor + "\r\n")
	}
	b.WriteString(util.ClearToEnd)
	_, err := io.WriteString(td.out, b.String())
	return err
}
