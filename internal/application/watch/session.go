// Package watch runs the interactive terminal view of a timeline.
package watch

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/penwyp/go-ha-timeline/internal/application/timeline"
	"github.com/penwyp/go-ha-timeline/internal/core/i18n"
	"github.com/penwyp/go-ha-timeline/internal/core/model"
	"github.com/penwyp/go-ha-timeline/internal/presentation/display"
	"github.com/penwyp/go-ha-timeline/internal/presentation/formatter"
	"github.com/penwyp/go-ha-timeline/internal/presentation/interaction"
	"github.com/penwyp/go-ha-timeline/internal/util"
)

// DefaultTick is how often relative times are redrawn without any change.
const DefaultTick = time.Second

// Timeline is the part of the orchestrator the view drives.
type Timeline interface {
	CurrentItems() []model.TimelineItem
	Status() timeline.Status
	Card() *model.CardConfig
	Translator() *i18n.Translator
	RequestRefresh()
	SetConfiguration(card *model.CardConfig) error
	Subscribe(l timeline.Listener) func()
}

// Renderer draws frames. *display.TerminalDisplay implements it.
type Renderer interface {
	Render(v formatter.View, st display.Status) error
	RenderHelp() error
}

// Config wires a Session.
type Config struct {
	Timeline Timeline
	Renderer Renderer
	Keys     <-chan interaction.KeyEvent
	// Cards delivers reloaded card configurations; nil disables reloading.
	Cards    <-chan *model.CardConfig
	Clock    clockwork.Clock
	Location *time.Location
	// Width returns the terminal width for each frame.
	Width func() int
	Tick  time.Duration
}

// Session is the event loop of the live view.
type Session struct {
	cfg      Config
	changed  chan struct{}
	expanded bool
	help     bool
}

// NewSession fills defaults and returns a session.
func NewSession(cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Width == nil {
		cfg.Width = func() int { return 80 }
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	return &Session{cfg: cfg, changed: make(chan struct{}, 1)}
}

// Run draws the timeline until ctx is done or the user quits.
func (s *Session) Run(ctx context.Context) error {
	unsubscribe := s.cfg.Timeline.Subscribe(func([]model.TimelineItem) {
		select {
		case s.changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	ticker := s.cfg.Clock.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	s.redraw()
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-s.changed:
			s.redraw()

		case <-ticker.Chan():
			s.redraw()

		case card, ok := <-s.cfg.Cards:
			if !ok {
				s.cfg.Cards = nil
				continue
			}
			if err := s.cfg.Timeline.SetConfiguration(card); err != nil {
				util.LogWarnf("Configuration rejected: %v", err)
				continue
			}
			util.LogInfo("Configuration reloaded")
			s.redraw()

		case ev, ok := <-s.cfg.Keys:
			if !ok {
				s.cfg.Keys = nil
				continue
			}
			if s.handleKey(ev) {
				return nil
			}
			s.redraw()
		}
	}
}

// handleKey applies a key and reports whether the user asked to quit.
func (s *Session) handleKey(ev interaction.KeyEvent) bool {
	// Any key closes the help screen.
	if s.help {
		s.help = false
		return false
	}
	switch interaction.ActionFor(ev) {
	case interaction.ActionQuit:
		return true
	case interaction.ActionRefresh:
		s.cfg.Timeline.RequestRefresh()
	case interaction.ActionToggleOverflow:
		s.expanded = !s.expanded
	case interaction.ActionToggleHelp:
		s.help = true
	}
	return false
}

func (s *Session) redraw() {
	var err error
	if s.help {
		err = s.cfg.Renderer.RenderHelp()
	} else {
		err = s.cfg.Renderer.Render(s.view(), s.status())
	}
	if err != nil {
		util.LogErrorf("Failed to draw timeline: %v", err)
	}
}

func (s *Session) view() formatter.View {
	return formatter.View{
		Card:     s.cfg.Timeline.Card(),
		Items:    s.cfg.Timeline.CurrentItems(),
		Labels:   s.cfg.Timeline.Translator(),
		Now:      s.cfg.Clock.Now(),
		Location: s.cfg.Location,
		Expanded: s.expanded,
		Width:    s.cfg.Width(),
	}
}

func (s *Session) status() display.Status {
	st := s.cfg.Timeline.Status()
	return display.Status{
		Loading:    st.Phase != timeline.PhaseReady,
		Live:       st.LiveSubscribed,
		Language:   st.Language,
		LastUpdate: st.LastUpdate,
		LastError:  st.LastError,
	}
}
