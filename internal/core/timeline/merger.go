package timeline

import (
	"github.com/penwyp/go-ha-timeline/internal/core/model"
	"github.com/penwyp/go-ha-timeline/internal/core/resolver"
	"github.com/penwyp/go-ha-timeline/internal/core/transform"
	"github.com/penwyp/go-ha-timeline/internal/util"
)

// Outcome is what happened to one live event.
type Outcome int

const (
	Merged Outcome = iota
	Excluded
	Duplicate
	Empty
	Foreign
)

func (o Outcome) String() string {
	switch o {
	case Merged:
		return "merged"
	case Excluded:
		return "excluded"
	case Duplicate:
		return "duplicate"
	case Empty:
		return "empty"
	case Foreign:
		return "foreign"
	default:
		return "unknown"
	}
}

// Merger splices live state changes into a List with the same rules Build
// applies to history.
type Merger struct {
	card   *model.CardConfig
	res    *resolver.Resolver
	labels transform.Labeler
	list   *List
}

// NewMerger returns a Merger writing into list. card must not change while
// the merger is in use.
func NewMerger(card *model.CardConfig, labels transform.Labeler, list *List) *Merger {
	return &Merger{
		card:   card,
		res:    resolver.New(card),
		labels: labels,
		list:   list,
	}
}

// List returns the list the merger writes into.
func (m *Merger) List() *List {
	return m.list
}

// OnLiveEvent merges the new state of an entity. The item is only meaningful
// when the outcome is Merged.
func (m *Merger) OnLiveEvent(rec *model.RawStateRecord, live transform.Snapshot) (model.TimelineItem, Outcome) {
	if rec == nil {
		return model.TimelineItem{}, Empty
	}
	if !m.res.Configured(rec.EntityID) {
		return model.TimelineItem{}, Foreign
	}
	if !m.res.Entity(rec.EntityID).Admits(rec.State) {
		util.LogDebugf("timeline: live %s=%s excluded by state lists", rec.EntityID, rec.State)
		return model.TimelineItem{}, Excluded
	}

	item, ok := transform.State(rec.EntityID, rec, live, m.card.Entities, m.labels)
	if !ok {
		return model.TimelineItem{}, Empty
	}
	if out := m.Replay(item); out != Merged {
		return model.TimelineItem{}, out
	}
	return item, Merged
}

// Replay merges an already transformed item, used to carry live items over a
// refreshed history snapshot.
func (m *Merger) Replay(item model.TimelineItem) Outcome {
	if !m.res.Entity(item.ID).Admits(item.RawState) {
		return Excluded
	}
	if collapses(m.res, item, m.list) {
		util.LogDebugf("timeline: live %s=%s collapsed into previous state", item.ID, item.RawState)
		return Duplicate
	}
	m.list.Prepend(item)
	return Merged
}
