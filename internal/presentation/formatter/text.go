package formatter

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/penwyp/go-ha-timeline/internal/core/model"
	"github.com/penwyp/go-ha-timeline/internal/core/resolver"
	"github.com/penwyp/go-ha-timeline/internal/presentation/layout"
	"github.com/penwyp/go-ha-timeline/internal/util"
)

const (
	dot  = "●"
	line = "│"
)

// TextFormatter draws the timeline as a vertical line with events on one or
// both sides, following the card layout.
type TextFormatter struct {
	// Color enables ANSI colors for names, states and the title.
	Color bool
	sizer *layout.Sizer
}

func NewTextFormatter() *TextFormatter {
	return &TextFormatter{sizer: layout.Shared()}
}

func (f *TextFormatter) Format(w io.Writer, v View) error {
	var b strings.Builder
	f.render(&b, v)
	_, err := io.WriteString(w, b.String())
	return err
}

func (f *TextFormatter) render(b *strings.Builder, v View) {
	card := v.card()
	width := v.Width
	if width <= 0 {
		width = layout.DefaultWidth
	}

	if card.Title != "" {
		title := f.sizer.Center(card.Title, width)
		if f.Color {
			title = util.ColorBold + title + util.ColorReset
		}
		b.WriteString(strings.TrimRight(title, " ") + "\n\n")
	}

	if len(v.Items) == 0 {
		b.WriteString(v.Labels.T("ui.no_events", nil) + "\n")
		return
	}

	items, hidden := v.Visible()
	left, right := sideWidths(card.CardLayout, width)
	res := resolver.New(card)

	for i, it := range items {
		if i > 0 {
			b.WriteString(f.row(left, "", line, "") + "\n")
		}
		onLeft := card.CardLayout == model.LayoutRight ||
			(card.CardLayout != model.LayoutLeft && i%2 == 0)
		head, headPlain := f.headline(it, res, card)
		when := v.TimeLabel(it)

		if onLeft {
			b.WriteString(f.row(left, f.fit(head, headPlain, left, false), dot, "") + "\n")
			b.WriteString(f.row(left, f.sizer.PadString(f.sizer.Truncate(when, left), left, false), line, "") + "\n")
		} else {
			b.WriteString(f.row(left, "", dot, f.fit(head, headPlain, right, true)) + "\n")
			b.WriteString(f.row(left, "", line, f.sizer.Truncate(when, right)) + "\n")
		}
	}

	if hidden > 0 {
		label := v.Labels.T("ui.show_more", map[string]any{"n": hidden})
		if v.Expanded {
			label = v.Labels.T("ui.show_less", nil)
		}
		b.WriteString("\n" + strings.TrimRight(f.sizer.Center("[ "+label+" ]", width), " ") + "\n")
	}
}

// headline returns the icon, name and state text, with and without colors.
func (f *TextFormatter) headline(it model.TimelineItem, res *resolver.Resolver, card *model.CardConfig) (string, string) {
	var parts, plain []string
	add := func(text, color string) {
		plain = append(plain, text)
		if f.Color {
			if code := ansiColor(color); code != "" {
				text = code + text + util.ColorReset
			}
		}
		parts = append(parts, text)
	}

	if model.Flag(card.ShowIcons, true) {
		icon := it.Icon
		if it.EntityCfg != nil && it.EntityCfg.ShowEntityPicture && it.EntityPicture != "" {
			icon = "[picture]"
		}
		add(icon, it.IconColor)
	}

	showNames := model.Flag(card.ShowNames, true)
	if showNames {
		add(it.Name, res.NameColor(it.EntityCfg))
	}
	if model.Flag(card.ShowStates, true) {
		if showNames {
			add("("+it.State+")", res.StateColor(it.EntityCfg))
		} else {
			add(Capitalize(it.State), res.StateColor(it.EntityCfg))
		}
	}
	return strings.Join(parts, " "), strings.Join(plain, " ")
}

// fit pads text to width cells. Text that does not fit loses its colors.
func (f *TextFormatter) fit(text, plain string, width int, leftAlign bool) string {
	w := f.sizer.DisplayWidth(plain)
	if w > width {
		return f.sizer.PadString(f.sizer.Truncate(plain, width), width, leftAlign)
	}
	pad := strings.Repeat(" ", width-w)
	if leftAlign {
		return text
	}
	return pad + text
}

func (f *TextFormatter) row(leftWidth int, left, marker, right string) string {
	if left == "" {
		left = strings.Repeat(" ", leftWidth)
	}
	out := left + " " + marker
	if right != "" {
		out += " " + right
	}
	return strings.TrimRight(out, " ")
}

// sideWidths splits width around the " ● " column.
func sideWidths(cardLayout string, width int) (int, int) {
	avail := width - 3
	if avail < 2 {
		avail = 2
	}
	switch cardLayout {
	case model.LayoutLeft:
		return 0, avail
	case model.LayoutRight:
		return avail, 0
	default:
		left := avail / 2
		return left, avail - left
	}
}

var namedColors = map[string]string{
	"black":   "30",
	"red":     "31",
	"green":   "32",
	"yellow":  "33",
	"blue":    "34",
	"magenta": "35",
	"purple":  "35",
	"cyan":    "36",
	"white":   "37",
	"gray":    "90",
	"grey":    "90",
	"orange":  "38;5;208",
}

// ansiColor maps a CSS color name or hex value to an escape sequence.
// Anything else, such as CSS variables, yields "".
func ansiColor(css string) string {
	css = strings.ToLower(strings.TrimSpace(css))
	if code, ok := namedColors[css]; ok {
		return "\033[" + code + "m"
	}
	if !strings.HasPrefix(css, "#") {
		return ""
	}
	hex := css[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return ""
	}
	rgb, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("\033[38;2;%d;%d;%dm", rgb>>16&0xff, rgb>>8&0xff, rgb&0xff)
}
