package commands

import (
	"fmt"

	"github.com/penwyp/go-ha-timeline/internal/application/timeline"
	"github.com/penwyp/go-ha-timeline/internal/config"
	"github.com/penwyp/go-ha-timeline/internal/core/model"
	"github.com/penwyp/go-ha-timeline/internal/data/hass"
	"github.com/penwyp/go-ha-timeline/internal/metrics"
	"github.com/penwyp/go-ha-timeline/internal/util"
)

// app is the wired pipeline shared by the subcommands.
type app struct {
	cfg      *config.Config
	client   *hass.Client
	metrics  *metrics.Collector
	timeline *timeline.Orchestrator
}

// newApp connects the orchestrator to Home Assistant. With live set the
// websocket subscription keeps the list current between refreshes.
func newApp(cfg *config.Config, live bool) (*app, error) {
	clock := util.GetTimeProvider().Clock()

	client, err := hass.NewClient(hass.Config{
		URL:     cfg.HomeAssistant.URL,
		Token:   cfg.HomeAssistant.Token,
		Timeout: cfg.HomeAssistant.Timeout,
		Clock:   clock,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create home assistant client: %w", err)
	}

	a := &app{cfg: cfg, client: client, metrics: metrics.NewCollector()}

	tcfg := timeline.Config{
		Card:             cfg.Card,
		History:          client,
		States:           client,
		Host:             client,
		Metrics:          a.metrics,
		Clock:            clock,
		PlatformLanguage: timeline.LanguageFromEnv(nil),
	}
	if live {
		subscriber, err := hass.NewSubscriber(client)
		if err != nil {
			return nil, fmt.Errorf("failed to create event subscriber: %w", err)
		}
		// Fall back to a fetch so nothing is missed until the next timer.
		subscriber.OnDisconnect = func(error) {
			if a.timeline != nil {
				a.timeline.RequestRefresh()
			}
		}
		tcfg.Live = subscriber
	}

	orch, err := timeline.NewOrchestrator(tcfg)
	if err != nil {
		return nil, err
	}
	a.timeline = orch
	orch.Subscribe(func(items []model.TimelineItem) {
		a.metrics.SetItems(len(items))
	})
	return a, nil
}

func (a *app) Close() {
	if err := a.timeline.Close(); err != nil {
		util.LogWarnf("Failed to stop timeline: %v", err)
	}
}
