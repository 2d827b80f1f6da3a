package timeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/penwyp/go-ha-timeline/internal/core/cache"
	"github.com/penwyp/go-ha-timeline/internal/core/model"
	"github.com/penwyp/go-ha-timeline/internal/util"
)

// RefreshController fetches history. Concurrent fetches of the same window
// share one request.
type RefreshController struct {
	source  HistorySource
	metrics Recorder
	clock   clockwork.Clock
	group   singleflight.Group
}

// NewRefreshController creates a new RefreshController instance
func NewRefreshController(source HistorySource, metrics Recorder, clock clockwork.Clock) *RefreshController {
	return &RefreshController{source: source, metrics: metrics, clock: clock}
}

// Fetch returns the raw history of the card's entities.
func (rc *RefreshController) Fetch(ctx context.Context, card *model.CardConfig) (model.HistoryPayload, error) {
	ids := card.EntityIDs()
	key := cache.Key(ids, card.Hours, "")

	v, err, shared := rc.group.Do(key, func() (interface{}, error) {
		start := rc.clock.Now()
		payload, err := rc.source.FetchHistory(ctx, ids, card.Hours)
		elapsed := rc.clock.Since(start)

		result := "ok"
		if err != nil {
			result = "error"
			if errors.Is(err, context.Canceled) {
				result = "canceled"
			}
		}
		rc.metrics.ObserveFetch(result, elapsed)
		return payload, err
	})
	if err != nil {
		util.LogErrorf("history fetch for %d entities failed: %v", len(ids), err)
		return model.HistoryPayload{}, fmt.Errorf("history fetch failed: %w", err)
	}

	payload := v.(model.HistoryPayload)
	util.LogDebugf("history fetched: %d groups, window %s..%s, shared=%v",
		len(payload.Records), payload.WindowStart.Format(time.RFC3339), payload.WindowEnd.Format(time.RFC3339), shared)
	return payload, nil
}
