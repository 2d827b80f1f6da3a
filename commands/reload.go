package commands

import (
	"context"

	"github.com/penwyp/go-ha-timeline/internal/config"
	"github.com/penwyp/go-ha-timeline/internal/core/model"
	"github.com/penwyp/go-ha-timeline/internal/util"
)

// watchCards follows the configuration file and delivers the card of every
// valid version until ctx is done. The returned function stops watching.
func watchCards(ctx context.Context, path string) (<-chan *model.CardConfig, func(), error) {
	w, err := config.NewWatcher(path, util.GetTimeProvider().Clock())
	if err != nil {
		return nil, nil, err
	}

	cards := make(chan *model.CardConfig)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case cfg := <-w.Updates():
				if err := overrides(cfg.Card); err != nil {
					util.LogWarnf("Ignoring reloaded card: %v", err)
					continue
				}
				select {
				case cards <- cfg.Card:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	stop := func() {
		if err := w.Close(); err != nil {
			util.LogWarnf("Failed to stop config watcher: %v", err)
		}
	}
	return cards, stop, nil
}
