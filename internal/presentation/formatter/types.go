package formatter

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/penwyp/go-ha-timeline/internal/core/model"
)

// Labels translates UI strings.
type Labels interface {
	T(key string, vars map[string]any) string
	Has(key string) bool
}

// View is everything a formatter needs to print one timeline.
type View struct {
	Card     *model.CardConfig
	Items    []model.TimelineItem
	Labels   Labels
	Now      time.Time
	Location *time.Location

	// Expanded shows the items hidden by overflow: collapse.
	Expanded bool
	// Width is the output width in cells; 0 means unbounded.
	Width int
}

// Formatter writes a View.
type Formatter interface {
	Format(w io.Writer, v View) error
}

// New returns the formatter for an output name: text, json or csv.
func New(output string) (Formatter, error) {
	switch strings.ToLower(output) {
	case "", "text", "table":
		return NewTextFormatter(), nil
	case "json":
		return NewJSONFormatter(), nil
	case "csv":
		return NewCSVFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (text, json, csv)", output)
	}
}

// Visible returns the items to print and how many are hidden behind the
// "show more" toggle.
func (v View) Visible() ([]model.TimelineItem, int) {
	card := v.card()
	if card.Overflow == model.OverflowScroll || card.VisibleEvents <= 0 || len(v.Items) <= card.VisibleEvents {
		return v.Items, 0
	}
	hidden := len(v.Items) - card.VisibleEvents
	if v.Expanded {
		return v.Items, hidden
	}
	return v.Items[:card.VisibleEvents], hidden
}

// TimeLabel formats the time of an item the way the card is configured to.
func (v View) TimeLabel(it model.TimelineItem) string {
	card := v.card()
	if card.RelativeTime {
		return RelativeTime(it.Time, v.Now, v.Labels)
	}
	return AbsoluteTime(it.Time, v.Location, v.Labels, model.Flag(card.ShowDate, true))
}

func (v View) card() *model.CardConfig {
	if v.Card == nil {
		return &model.CardConfig{}
	}
	return v.Card
}

// Capitalize upper-cases the first letter of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
