package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-ha-timeline/internal/core/model"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func at(id, state string, ms int) model.TimelineItem {
	return model.TimelineItem{ID: id, State: state, RawState: state, Time: base.Add(time.Duration(ms) * time.Millisecond)}
}

func summary(items []model.TimelineItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID + "=" + it.RawState + "@" + it.Time.Sub(base).String()
	}
	return out
}

func TestFilterKeepsEarliestOfRun(t *testing.T) {
	entities := []model.EntityConfig{{Entity: "A", CollapseDuplicates: model.BoolPtr(true)}}
	items := []model.TimelineItem{at("A", "ON", 2000), at("A", "ON", 1000)}

	got := Filter(items, entities, 10, nil)
	require.Len(t, got, 1)
	assert.True(t, got[0].Time.Equal(base.Add(time.Second)), "earlier occurrence must survive")
}

func TestFilterPerEntityIndependence(t *testing.T) {
	entities := []model.EntityConfig{{Entity: "A"}, {Entity: "B"}}
	global := &model.CardConfig{CollapseDuplicates: model.BoolPtr(true)}
	items := []model.TimelineItem{
		at("A", "ON", 1000),
		at("B", "RED", 900),
		at("A", "ON", 800),
		at("B", "RED", 700),
		at("A", "OFF", 600),
	}

	got := Filter(items, entities, 10, global)
	assert.Equal(t, []string{"A=ON@800ms", "B=RED@700ms", "A=OFF@600ms"}, summary(got))
}

func TestFilterPerEntityOverride(t *testing.T) {
	entities := []model.EntityConfig{
		{Entity: "A", CollapseDuplicates: model.BoolPtr(true)},
		{Entity: "B", CollapseDuplicates: model.BoolPtr(false)},
	}
	items := []model.TimelineItem{
		at("A", "on", 100), at("A", "on", 200),
		at("B", "on", 150), at("B", "on", 250),
	}

	for _, global := range []*model.CardConfig{nil, {CollapseDuplicates: model.BoolPtr(true)}, {CollapseDuplicates: model.BoolPtr(false)}} {
		got := Filter(items, entities, 0, global)
		assert.Equal(t, []string{"B=on@250ms", "B=on@150ms", "A=on@100ms"}, summary(got))
	}
}

func TestFilterIncludeExclude(t *testing.T) {
	entities := []model.EntityConfig{
		{Entity: "door", IncludeStates: []string{"open"}},
		{Entity: "light", ExcludeStates: []string{"unavailable"}},
	}
	items := []model.TimelineItem{
		at("door", "open", 1), at("door", "closed", 2),
		at("light", "on", 3), at("light", "unavailable", 4),
		at("other", "x", 5),
	}
	items[0].State = "Offen"

	got := Filter(items, entities, 0, nil)
	assert.Equal(t, []string{"other=x@5ms", "light=on@3ms", "door=open@1ms"}, summary(got))
}

func TestFilterExclusionBeforeCollapse(t *testing.T) {
	// An excluded state between two equal states does not break the run.
	entities := []model.EntityConfig{{Entity: "A", ExcludeStates: []string{"unavailable"}, CollapseDuplicates: model.BoolPtr(true)}}
	items := []model.TimelineItem{at("A", "on", 1), at("A", "unavailable", 2), at("A", "on", 3)}

	got := Filter(items, entities, 0, nil)
	assert.Equal(t, []string{"A=on@1ms"}, summary(got))
}

func TestFilterCapAndInputUntouched(t *testing.T) {
	items := []model.TimelineItem{at("A", "1", 1), at("A", "2", 2), at("A", "3", 3), at("A", "4", 4)}
	before := model.CopyItems(items)

	got := Filter(items, nil, 2, nil)
	assert.Equal(t, []string{"A=4@4ms", "A=3@3ms"}, summary(got))
	assert.True(t, model.ItemsEqual(before, items), "input slice must not be reordered")

	assert.Len(t, Filter(items, nil, 0, nil), 4)
	assert.Empty(t, Filter(nil, nil, 5, nil))
}

func TestBuildRemembersTrimmedStates(t *testing.T) {
	items := []model.TimelineItem{at("A", "on", 1), at("B", "x", 2), at("B", "y", 3)}
	list := Build(items, nil, 2, nil)

	assert.Equal(t, 2, list.Len())
	state, ok := list.LastState("A")
	require.True(t, ok, "trimmed entity keeps its last state")
	assert.Equal(t, "on", state)

	state, ok = list.LastState("B")
	require.True(t, ok)
	assert.Equal(t, "y", state)

	_, ok = list.LastState("C")
	assert.False(t, ok)
}
