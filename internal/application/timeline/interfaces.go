package timeline

import (
	"context"
	"time"

	"github.com/penwyp/go-ha-timeline/internal/core/model"
)

// HistorySource fetches recorded states for a time window
type HistorySource interface {
	// FetchHistory returns grouped records for the last hours
	FetchHistory(ctx context.Context, entityIDs []string, hours float64) (model.HistoryPayload, error)
}

// StateSource provides the current state of every entity
type StateSource interface {
	States(ctx context.Context) (map[string]*model.RawStateRecord, error)
}

// LanguageSource reports the language configured on the host
type LanguageSource interface {
	Language(ctx context.Context) (string, error)
}

// LiveSource streams state changes
type LiveSource interface {
	// Subscribe delivers events passing predicate to onEvent, one at a time.
	// The returned function releases the subscription and returns once no
	// further onEvent call can happen.
	Subscribe(ctx context.Context, predicate func(entityID string) bool, onEvent func(model.StateChangedEvent)) (func(), error)
}

// Recorder receives pipeline counters. *metrics.Collector implements it.
type Recorder interface {
	ObserveFetch(result string, d time.Duration)
	CacheLookup(result string)
	LiveEvent(outcome string)
	Refresh(outcome string)
}

// Listener is told about every change of the displayed list. It runs on the
// orchestrator goroutine and must not block or call back into the
// orchestrator.
type Listener func(items []model.TimelineItem)

type noopRecorder struct{}

func (noopRecorder) ObserveFetch(string, time.Duration) {}
func (noopRecorder) CacheLookup(string)                 {}
func (noopRecorder) LiveEvent(string)                   {}
func (noopRecorder) Refresh(string)                     {}
