// Package timeline filters, deduplicates and caps timeline items, in batch
// for fetched history and incrementally for live events.
package timeline

import (
	"sort"

	"github.com/penwyp/go-ha-timeline/internal/core/model"
	"github.com/penwyp/go-ha-timeline/internal/core/resolver"
	"github.com/penwyp/go-ha-timeline/internal/util"
)

// Filter applies include/exclude lists, collapses consecutive duplicate
// states per entity (keeping the earliest of a run), orders newest first
// and caps the result at limit. limit <= 0 means unbounded. items is not
// modified.
func Filter(items []model.TimelineItem, entities []model.EntityConfig, limit int, global *model.CardConfig) []model.TimelineItem {
	return Build(items, entities, limit, global).Items()
}

// Build is Filter returning the capped List, so that later live events can be
// merged against it.
func Build(items []model.TimelineItem, entities []model.EntityConfig, limit int, global *model.CardConfig) *List {
	res := newResolver(entities, global)

	kept := make([]model.TimelineItem, 0, len(items))
	for _, it := range items {
		if res.Entity(it.ID).Admits(it.RawState) {
			kept = append(kept, it)
		}
	}

	// Oldest first, so a run keeps its first observation.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Time.Before(kept[j].Time)
	})

	seen := make(runningStates)
	collapsed := kept[:0]
	for _, it := range kept {
		if collapses(res, it, seen) {
			continue
		}
		seen[it.ID] = it.RawState
		collapsed = append(collapsed, it)
	}

	for i, j := 0, len(collapsed)-1; i < j; i, j = i+1, j-1 {
		collapsed[i], collapsed[j] = collapsed[j], collapsed[i]
	}

	list := NewList(limit)
	list.items = collapsed
	list.trim()

	util.LogDebugf("timeline: filtered %d items -> %d admitted -> %d after collapse -> %d shown",
		len(items), len(kept), len(collapsed), list.Len())
	return list
}

// collapses reports whether it repeats the last retained state of its entity
// and collapsing is enabled for that entity.
func collapses(res *resolver.Resolver, it model.TimelineItem, last lastStates) bool {
	if !res.CollapseDuplicates(res.Entity(it.ID)) {
		return false
	}
	prev, ok := last.LastState(it.ID)
	return ok && prev == it.RawState
}

func newResolver(entities []model.EntityConfig, global *model.CardConfig) *resolver.Resolver {
	card := &model.CardConfig{Entities: entities}
	if global != nil {
		card.CollapseDuplicates = global.CollapseDuplicates
	}
	return resolver.New(card)
}
