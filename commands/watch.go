package commands

import (
	"fmt"

	"github.com/penwyp/go-ha-timeline/internal/application/watch"
	"github.com/penwyp/go-ha-timeline/internal/core/model"
	"github.com/penwyp/go-ha-timeline/internal/presentation/display"
	"github.com/penwyp/go-ha-timeline/internal/presentation/formatter"
	"github.com/penwyp/go-ha-timeline/internal/presentation/interaction"
	"github.com/penwyp/go-ha-timeline/internal/presentation/layout"
	"github.com/penwyp/go-ha-timeline/internal/util"
	"github.com/spf13/cobra"
)

var (
	watchColor    bool
	watchNoReload bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the timeline live in the terminal",
	Long: `Shows the timeline full screen and keeps it current with live state changes
from Home Assistant and periodic refreshes. Edits to the configuration file are
applied without restarting.

Keys:
  r       refresh now
  e       show or hide events behind a collapsed overflow
  h       help
  q       quit`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchColor, "color", true,
		"Colorize the timeline")
	watchCmd.Flags().BoolVar(&watchNoReload, "no-reload", false,
		"Do not reload the card when the configuration file changes")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer util.CloseLogger()
	util.LogInfo("Starting timeline watch...")

	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	keyboard, err := interaction.NewKeyboardReader()
	if err != nil {
		return fmt.Errorf("failed to initialize keyboard: %w", err)
	}
	defer keyboard.Close()

	disp := display.NewTerminalDisplay(cmd.OutOrStdout(), watchColor)
	disp.EnterAlternateScreen()
	defer disp.ExitAlternateScreen()

	tp := util.GetTimeProvider()
	sizer := layout.Shared()

	// Show the loading state while the first fetch runs.
	_ = disp.Render(formatter.View{
		Card:     a.timeline.Card(),
		Labels:   a.timeline.Translator(),
		Now:      tp.Now(),
		Location: tp.Location(),
		Width:    sizer.TerminalWidth(),
	}, display.Status{Loading: true})

	if err := a.timeline.Start(ctx); err != nil {
		return fmt.Errorf("failed to load timeline: %w", err)
	}

	var cards <-chan *model.CardConfig
	if !watchNoReload {
		ch, stopWatching, err := watchCards(ctx, expandPath(configPath))
		if err != nil {
			util.LogWarnf("Config reload disabled: %v", err)
		} else {
			defer stopWatching()
			cards = ch
		}
	}

	session := watch.NewSession(watch.Config{
		Timeline: a.timeline,
		Renderer: disp,
		Keys:     keyboard.Events(),
		Cards:    cards,
		Clock:    tp.Clock(),
		Location: tp.Location(),
		Width:    sizer.TerminalWidth,
	})
	err = session.Run(ctx)
	util.LogInfo("Shutting down timeline watch...")
	return err
}
