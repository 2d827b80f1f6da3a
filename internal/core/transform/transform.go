// Package transform turns raw state records into timeline items.
package transform

import (
	"github.com/penwyp/go-ha-timeline/internal/core/icon"
	"github.com/penwyp/go-ha-timeline/internal/core/model"
	"github.com/penwyp/go-ha-timeline/internal/core/resolver"
)

// Labeler resolves the display label of a raw state. *i18n.Translator
// satisfies it.
type Labeler interface {
	LocalizedState(entityID, rawState string, cfg *model.EntityConfig) string
}

// Snapshot is the latest known state per entity id, used for friendly names,
// icons and units that historical records may not carry.
type Snapshot map[string]*model.RawStateRecord

// State converts one raw record into a timeline item. It reports false when
// rec is nil, which happens for live events of removed entities.
//
// The returned item points at the matching element of entities; callers must
// treat entities as immutable once items reference it.
func State(entityID string, rec *model.RawStateRecord, live Snapshot, entities []model.EntityConfig, labels Labeler) (model.TimelineItem, bool) {
	if rec == nil {
		return model.TimelineItem{}, false
	}

	cfg := resolver.Resolve(entityID, entities)
	rawState := rec.State
	current := live[entityID]

	iconSource := current
	if iconSource == nil {
		iconSource = rec
	}

	label := rawState
	if labels != nil {
		label = labels.LocalizedState(entityID, rawState, cfg)
	}
	unit := rec.Attr(model.AttrUnitOfMeasurement)
	if unit == "" {
		unit = current.Attr(model.AttrUnitOfMeasurement)
	}
	if unit != "" && label != "" {
		label = label + " " + unit
	}

	picture := rec.Attr(model.AttrEntityPicture)
	if picture == "" {
		picture = current.Attr(model.AttrEntityPicture)
	}

	return model.TimelineItem{
		ID:            entityID,
		Name:          resolver.Name(entityID, cfg, current),
		Icon:          icon.ForEntity(iconSource, cfg, rawState),
		IconColor:     icon.Color(cfg, rawState),
		EntityPicture: picture,
		State:         label,
		RawState:      rawState,
		Time:          rec.LastChanged,
		EntityCfg:     cfg,
	}, true
}

// History flattens a grouped history payload into items, preserving record
// order within each group. Items stamped exactly at the window start are the
// API's synthetic range anchors and are dropped.
func History(payload model.HistoryPayload, entities []model.EntityConfig, live Snapshot, labels Labeler) []model.TimelineItem {
	total := 0
	for _, group := range payload.Records {
		total += len(group)
	}

	items := make([]model.TimelineItem, 0, total)
	for _, group := range payload.Records {
		for i := range group {
			rec := &group[i]
			item, ok := State(rec.EntityID, rec, live, entities, labels)
			if !ok {
				continue
			}
			if item.Time.Equal(payload.WindowStart) {
				continue
			}
			items = append(items, item)
		}
	}
	return items
}
