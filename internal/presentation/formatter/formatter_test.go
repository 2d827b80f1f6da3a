package formatter

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-ha-timeline/internal/core/i18n"
	"github.com/penwyp/go-ha-timeline/internal/core/model"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func labels(t *testing.T, lang string) *i18n.Translator {
	t.Helper()
	tr, err := i18n.New()
	require.NoError(t, err)
	tr.Load(lang)
	return tr
}

func item(id, name, state string, minutesAgo int) model.TimelineItem {
	return model.TimelineItem{
		ID:       id,
		Name:     name,
		Icon:     "mdi:lightbulb",
		State:    state,
		RawState: strings.ToLower(state),
		Time:     now.Add(-time.Duration(minutesAgo) * time.Minute),
	}
}

func render(t *testing.T, v View) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter().Format(&buf, v))
	return buf.String()
}

func TestRelativeTime(t *testing.T) {
	tr := labels(t, "en-US")
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "a few seconds ago"},
		{5*time.Minute + 59*time.Second, "5 minutes ago"},
		{3 * time.Hour, "3 hours ago"},
		{49 * time.Hour, "2 days ago"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, RelativeTime(now.Add(-tt.ago), now, tr))
		})
	}
}

func TestAbsoluteTime(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 5, 0, 0, time.UTC)

	en := labels(t, "en-US")
	assert.Equal(t, "9:05 AM", AbsoluteTime(at, time.UTC, en, false))
	assert.Equal(t, "May 1, 2024, 9:05 AM", AbsoluteTime(at, time.UTC, en, true))

	de := labels(t, "de-DE")
	assert.Equal(t, "09:05 Uhr", AbsoluteTime(at, time.UTC, de, false))
	assert.Equal(t, "01.05.2024, 09:05 Uhr", AbsoluteTime(at, time.UTC, de, true))

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	assert.Equal(t, "11:05 Uhr", AbsoluteTime(at, berlin, de, false))
}

func TestVisible(t *testing.T) {
	items := []model.TimelineItem{item("a.a", "A", "On", 1), item("b.b", "B", "On", 2), item("c.c", "C", "On", 3)}

	v := View{Card: &model.CardConfig{VisibleEvents: 2}, Items: items}
	shown, hidden := v.Visible()
	assert.Len(t, shown, 2)
	assert.Equal(t, 1, hidden)

	v.Expanded = true
	shown, hidden = v.Visible()
	assert.Len(t, shown, 3)
	assert.Equal(t, 1, hidden)

	v = View{Card: &model.CardConfig{VisibleEvents: 2, Overflow: model.OverflowScroll}, Items: items}
	shown, hidden = v.Visible()
	assert.Len(t, shown, 3)
	assert.Zero(t, hidden)
}

func TestTextNoEvents(t *testing.T) {
	out := render(t, View{Card: &model.CardConfig{Title: "Doors"}, Labels: labels(t, "en-US"), Width: 20})
	assert.Equal(t, "       Doors\n\nNo events in the selected period\n", out)
}

func TestTextLeftLayout(t *testing.T) {
	card := &model.CardConfig{CardLayout: model.LayoutLeft, ShowDate: model.BoolPtr(false)}
	out := render(t, View{
		Card:     card,
		Items:    []model.TimelineItem{item("light.hall", "Hall", "On", 2)},
		Labels:   labels(t, "en-US"),
		Now:      now,
		Location: time.UTC,
		Width:    40,
	})
	assert.Equal(t, " ● mdi:lightbulb Hall (On)\n │ 11:58 AM\n", out)
}

func TestTextCenterLayoutAlternates(t *testing.T) {
	card := &model.CardConfig{ShowIcons: model.BoolPtr(false), RelativeTime: true}
	out := render(t, View{
		Card:   card,
		Items:  []model.TimelineItem{item("light.hall", "Hall", "On", 2), item("binary_sensor.door", "Door", "Open", 5)},
		Labels: labels(t, "en-US"),
		Now:    now,
		Width:  40,
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 5)

	pad := strings.Repeat(" ", 18)
	assert.Equal(t, strings.Repeat(" ", 9)+"Hall (On) ●", lines[0])
	assert.Equal(t, "     2 minutes ago │", lines[1])
	assert.Equal(t, pad+" │", lines[2])
	assert.Equal(t, pad+" ● Door (Open)", lines[3])
	assert.Equal(t, pad+" │ 5 minutes ago", lines[4])
}

func TestTextStatesOnlyAreCapitalized(t *testing.T) {
	card := &model.CardConfig{CardLayout: model.LayoutLeft, ShowIcons: model.BoolPtr(false), ShowNames: model.BoolPtr(false), RelativeTime: true}
	out := render(t, View{
		Card:   card,
		Items:  []model.TimelineItem{item("lock.front", "Front", "locked", 1)},
		Labels: labels(t, "en-US"),
		Now:    now,
		Width:  40,
	})
	assert.Contains(t, out, "● Locked\n")
	assert.NotContains(t, out, "Front")
}

func TestTextOverflowToggle(t *testing.T) {
	items := []model.TimelineItem{item("a.a", "Alpha", "On", 1), item("b.b", "Beta", "On", 2), item("c.c", "Gamma", "On", 3)}
	v := View{
		Card:   &model.CardConfig{VisibleEvents: 2, CardLayout: model.LayoutLeft, RelativeTime: true},
		Items:  items,
		Labels: labels(t, "en-US"),
		Now:    now,
		Width:  40,
	}
	out := render(t, v)
	assert.Contains(t, out, "[ Show 1 more ]")
	assert.NotContains(t, out, "Gamma")

	v.Expanded = true
	out = render(t, v)
	assert.Contains(t, out, "[ Show less ]")
	assert.Contains(t, out, "Gamma")
}

func TestTextColors(t *testing.T) {
	card := &model.CardConfig{CardLayout: model.LayoutLeft, ShowIcons: model.BoolPtr(false), NameColor: "red", RelativeTime: true}
	f := NewTextFormatter()
	f.Color = true
	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, View{
		Card:   card,
		Items:  []model.TimelineItem{item("a.a", "Alpha", "On", 1)},
		Labels: labels(t, "en-US"),
		Now:    now,
		Width:  40,
	}))
	assert.Contains(t, buf.String(), "\033[31mAlpha\033[0m (On)")
}

func TestANSIColor(t *testing.T) {
	assert.Equal(t, "\033[32m", ansiColor("Green"))
	assert.Equal(t, "\033[38;2;255;0;0m", ansiColor("#ff0000"))
	assert.Equal(t, "\033[38;2;255;255;0m", ansiColor("#ff0"))
	assert.Equal(t, "", ansiColor("var(--primary-color)"))
	assert.Equal(t, "", ansiColor("#12345"))
}

func TestJSONAndCSV(t *testing.T) {
	v := View{
		Card:   &model.CardConfig{RelativeTime: true, VisibleEvents: 1},
		Items:  []model.TimelineItem{item("a.a", "Alpha", "On", 3), item("b.b", "Beta, the second", "Off", 61)},
		Labels: labels(t, "en-US"),
		Now:    now,
	}

	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter().Format(&buf, v))
	var decoded []map[string]any
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2, "json ignores overflow")
	assert.Equal(t, "3 minutes ago", decoded[0]["when"])
	assert.Equal(t, "1 hours ago", decoded[1]["when"])

	buf.Reset()
	require.NoError(t, NewCSVFormatter().Format(&buf, v))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"2024-05-01T10:59:00Z", "b.b", "Beta, the second", "Off", "off", "mdi:lightbulb"}, rows[2])
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", "text", "json", "CSV"} {
		f, err := New(name)
		require.NoError(t, err, name)
		assert.NotNil(t, f)
	}
	_, err := New("xml")
	assert.Error(t, err)
}
