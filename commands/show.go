package commands

import (
	"fmt"

	"github.com/penwyp/go-ha-timeline/internal/presentation/formatter"
	"github.com/penwyp/go-ha-timeline/internal/presentation/layout"
	"github.com/penwyp/go-ha-timeline/internal/util"
	"github.com/spf13/cobra"
)

// runShow loads the timeline once and prints it.
func runShow(cmd *cobra.Command, args []string) error {
	// Handle format alias
	if format := cmd.Flags().Lookup("format"); format != nil && format.Changed {
		outputFormat = format.Value.String()
	}
	out, err := formatter.New(outputFormat)
	if err != nil {
		return err
	}
	if text, ok := out.(*formatter.TextFormatter); ok {
		text.Color = color
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer util.CloseLogger()

	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.timeline.Start(cmd.Context()); err != nil {
		return fmt.Errorf("failed to load timeline: %w", err)
	}

	w := width
	if w <= 0 {
		w = layout.Shared().TerminalWidth()
	}
	tp := util.GetTimeProvider()
	return out.Format(cmd.OutOrStdout(), formatter.View{
		Card:     a.timeline.Card(),
		Items:    a.timeline.CurrentItems(),
		Labels:   a.timeline.Translator(),
		Now:      tp.Now(),
		Location: tp.Location(),
		Expanded: expand,
		Width:    w,
	})
}
