package display

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-ha-timeline/internal/core/i18n"
	"github.com/penwyp/go-ha-timeline/internal/core/model"
	"github.com/penwyp/go-ha-timeline/internal/presentation/formatter"
	"github.com/penwyp/go-ha-timeline/internal/util"
)

func TestRender(t *testing.T) {
	var out bytes.Buffer
	td := NewTerminalDisplay(&out, false)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	v := formatter.View{
		Card:   &model.CardConfig{CardLayout: model.LayoutLeft, RelativeTime: true},
		Items:  []model.TimelineItem{{ID: "light.hall", Name: "Hall", Icon: "mdi:lightbulb", State: "On", Time: now}},
		Labels: i18n.MustNew(),
		Now:    now,
		Width:  60,
	}
	require.NoError(t, td.Render(v, Status{Live: true, Language: "en-us", LastUpdate: now, LastError: errors.New("timeout")}))

	s := out.String()
	assert.True(t, strings.HasPrefix(s, util.MoveCursorHome))
	assert.Contains(t, s, "● mdi:lightbulb Hall (On)"+util.ClearLineFromCursor+"\r\n")
	assert.Contains(t, s, "● live  ·  en-us  ·  updated 12:00:00  ·  error: timeout  ·  h help")
	assert.True(t, strings.HasSuffix(s, util.ClearToEnd))
	assert.NotContains(t, strings.ReplaceAll(s, "\r\n", ""), "\n")
}

func TestRenderLoading(t *testing.T) {
	var out bytes.Buffer
	td := NewTerminalDisplay(&out, false)
	require.NoError(t, td.Render(formatter.View{Labels: i18n.MustNew()}, Status{Loading: true}))
	assert.Contains(t, out.String(), "Loading timeline...")
	assert.Contains(t, out.String(), "○ polling")
}

func TestAlternateScreen(t *testing.T) {
	var out bytes.Buffer
	td := NewTerminalDisplay(&out, false)

	td.EnterAlternateScreen()
	td.EnterAlternateScreen()
	assert.Equal(t, 1, strings.Count(out.String(), "\033[?1049h"))

	require.NoError(t, td.RenderHelp())
	assert.Contains(t, out.String(), "show more / show less")

	td.ExitAlternateScreen()
	td.ExitAlternateScreen()
	assert.Equal(t, 1, strings.Count(out.String(), "\033[?1049l"))
}
