package model

import (
	"fmt"
	"time"
)

// Attribute keys read by the pipeline
const (
	AttrFriendlyName      = "friendly_name"
	AttrUnitOfMeasurement = "unit_of_measurement"
	AttrIcon              = "icon"
	AttrDeviceClass       = "device_class"
	AttrEntityPicture     = "entity_picture"
)

// RawStateRecord is one observation of an entity, as delivered by the history
// API or the live event stream. It is never modified after decoding.
type RawStateRecord struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// Attr returns a string attribute, or "" when absent or not textual.
func (r *RawStateRecord) Attr(key string) string {
	if r == nil || r.Attributes == nil {
		return ""
	}
	switch v := r.Attributes[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// HistoryPayload is the history API response: one record group per entity,
// plus the start of the queried window.
type HistoryPayload struct {
	Records     [][]RawStateRecord
	WindowStart time.Time
	WindowEnd   time.Time
}

// StateChangedEvent is the data of a live state_changed event. NewState is nil
// when the entity was removed.
type StateChangedEvent struct {
	EntityID string          `json:"entity_id"`
	OldState *RawStateRecord `json:"old_state"`
	NewState *RawStateRecord `json:"new_state"`
}

// TimelineItem is a display-ready timeline entry. RawState is the comparison
// key for filtering, dedup and icon selection; State is the localized label.
type TimelineItem struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Icon          string        `json:"icon"`
	IconColor     string        `json:"icon_color,omitempty"`
	EntityPicture string        `json:"entity_picture,omitempty"`
	State         string        `json:"state"`
	RawState      string        `json:"raw_state"`
	Time          time.Time     `json:"time"`
	EntityCfg     *EntityConfig `json:"-"`
}

// SameAs compares two items by value, ignoring the config back-reference.
func (i TimelineItem) SameAs(o TimelineItem) bool {
	return i.ID == o.ID &&
		i.Name == o.Name &&
		i.Icon == o.Icon &&
		i.IconColor == o.IconColor &&
		i.EntityPicture == o.EntityPicture &&
		i.State == o.State &&
		i.RawState == o.RawState &&
		i.Time.Equal(o.Time)
}

// ItemsEqual reports whether two ordered item sequences are equal by value.
func ItemsEqual(a, b []TimelineItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].SameAs(b[i]) {
			return false
		}
	}
	return true
}

// CopyItems returns an independent copy of items.
func CopyItems(items []TimelineItem) []TimelineItem {
	if items == nil {
		return nil
	}
	out := make([]TimelineItem, len(items))
	copy(out, items)
	return out
}
