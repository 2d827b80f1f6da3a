package timeline

import (
	"time"

	"github.com/penwyp/go-ha-timeline/internal/core/model"
)

// lastStates answers the one question duplicate collapsing asks: what is the
// most recent retained raw state of an entity. Batch filtering and live
// merging both decide through it.
type lastStates interface {
	LastState(entityID string) (string, bool)
}

// runningStates is the lastStates of an oldest-first walk.
type runningStates map[string]string

func (r runningStates) LastState(entityID string) (string, bool) {
	s, ok := r[entityID]
	return s, ok
}

// List is the displayed timeline: newest first, at most limit items
// (limit <= 0 means unbounded). It is not safe for concurrent use; the
// orchestrator owns it exclusively.
//
// Items trimmed off the tail are remembered per entity so that the last
// retained state of an entity survives the cap.
type List struct {
	items   []model.TimelineItem
	limit   int
	evicted map[string]model.TimelineItem
}

// NewList returns an empty list capped at limit.
func NewList(limit int) *List {
	return &List{limit: limit, evicted: make(map[string]model.TimelineItem)}
}

// Items returns a copy of the displayed items.
func (l *List) Items() []model.TimelineItem {
	return model.CopyItems(l.items)
}

// Len returns the number of displayed items.
func (l *List) Len() int {
	return len(l.items)
}

// Limit returns the cap of the list.
func (l *List) Limit() int {
	return l.limit
}

// LastState returns the raw state of the newest retained item of entityID,
// looking past the cap when the entity has no displayed item left.
func (l *List) LastState(entityID string) (string, bool) {
	for i := range l.items {
		if l.items[i].ID == entityID {
			return l.items[i].RawState, true
		}
	}
	if it, ok := l.evicted[entityID]; ok {
		return it.RawState, true
	}
	return "", false
}

// Prepend inserts item at the head and trims the tail down to the limit.
func (l *List) Prepend(item model.TimelineItem) {
	l.items = append(l.items, model.TimelineItem{})
	copy(l.items[1:], l.items)
	l.items[0] = item
	l.trim()
}

// Reset drops all items and the eviction memory.
func (l *List) Reset() {
	l.items = nil
	l.evicted = make(map[string]model.TimelineItem)
}

// Equal reports whether both lists display the same items.
func (l *List) Equal(items []model.TimelineItem) bool {
	return model.ItemsEqual(l.items, items)
}

// Newer returns the displayed items strictly newer than t, newest first.
func (l *List) Newer(t time.Time) []model.TimelineItem {
	var out []model.TimelineItem
	for _, it := range l.items {
		if !it.Time.After(t) {
			break
		}
		out = append(out, it)
	}
	return out
}

// Contains reports whether an item of entityID stamped at t is displayed.
func (l *List) Contains(entityID string, t time.Time) bool {
	for i := range l.items {
		if l.items[i].ID == entityID && l.items[i].Time.Equal(t) {
			return true
		}
	}
	return false
}

func (l *List) trim() {
	if l.limit <= 0 || len(l.items) <= l.limit {
		return
	}
	for _, it := range l.items[l.limit:] {
		l.remember(it)
	}
	tail := l.items[l.limit:]
	for i := range tail {
		tail[i] = model.TimelineItem{}
	}
	l.items = l.items[:l.limit]
}

func (l *List) remember(it model.TimelineItem) {
	prev, ok := l.evicted[it.ID]
	if !ok || it.Time.After(prev.Time) {
		l.evicted[it.ID] = it
	}
}
