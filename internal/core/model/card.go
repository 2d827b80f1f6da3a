package model

import (
	"fmt"
	"strings"
)

// CardConfig is the card-wide (global) configuration.
//
// Only CollapseDuplicates feeds the filter engine; Hours, Limit, Language and
// RefreshInterval drive loading, the rest is consumed by renderers.
type CardConfig struct {
	Title              string         `yaml:"title,omitempty" json:"title,omitempty"`
	Entities           []EntityConfig `yaml:"entities" json:"entities"`
	Hours              float64        `yaml:"hours,omitempty" json:"hours,omitempty"`
	Limit              int            `yaml:"limit,omitempty" json:"limit,omitempty"`
	Language           string         `yaml:"language,omitempty" json:"language,omitempty"`
	RefreshInterval    int            `yaml:"refresh_interval,omitempty" json:"refresh_interval,omitempty"`
	CollapseDuplicates *bool          `yaml:"collapse_duplicates,omitempty" json:"collapse_duplicates,omitempty"`

	ShowNames    *bool `yaml:"show_names,omitempty" json:"show_names,omitempty"`
	ShowStates   *bool `yaml:"show_states,omitempty" json:"show_states,omitempty"`
	ShowIcons    *bool `yaml:"show_icons,omitempty" json:"show_icons,omitempty"`
	ShowDate     *bool `yaml:"show_date,omitempty" json:"show_date,omitempty"`
	RelativeTime bool  `yaml:"relative_time,omitempty" json:"relative_time,omitempty"`

	AllowMultiline bool   `yaml:"allow_multiline,omitempty" json:"allow_multiline,omitempty"`
	ForceMultiline bool   `yaml:"force_multiline,omitempty" json:"force_multiline,omitempty"`
	CompactLayout  bool   `yaml:"compact_layout,omitempty" json:"compact_layout,omitempty"`
	CardLayout     string `yaml:"card_layout,omitempty" json:"card_layout,omitempty"`

	CardBackground     string `yaml:"card_background,omitempty" json:"card_background,omitempty"`
	TimelineColorStart string `yaml:"timeline_color_start,omitempty" json:"timeline_color_start,omitempty"`
	TimelineColorEnd   string `yaml:"timeline_color_end,omitempty" json:"timeline_color_end,omitempty"`
	DotColor           string `yaml:"dot_color,omitempty" json:"dot_color,omitempty"`
	NameColor          string `yaml:"name_color,omitempty" json:"name_color,omitempty"`
	StateColor         string `yaml:"state_color,omitempty" json:"state_color,omitempty"`

	VisibleEvents int    `yaml:"visible_events,omitempty" json:"visible_events,omitempty"`
	Overflow      string `yaml:"overflow,omitempty" json:"overflow,omitempty"`
	MaxHeight     string `yaml:"max_height,omitempty" json:"max_height,omitempty"`
}

// Validate checks the configuration, fills loading defaults and normalises
// layout settings in place.
// It must succeed before a card config reaches the pipeline.
func (c *CardConfig) Validate() error {
	if c.Entities == nil {
		return fmt.Errorf("%w: please define 'entities' as a list", ErrInvalidConfig)
	}

	seen := make(map[string]struct{}, len(c.Entities))
	for i := range c.Entities {
		ent := &c.Entities[i]
		if err := ent.Validate(); err != nil {
			return err
		}
		if _, dup := seen[ent.Entity]; dup {
			return fmt.Errorf("%w: entity %q is configured more than once", ErrInvalidConfig, ent.Entity)
		}
		seen[ent.Entity] = struct{}{}
	}

	if c.Hours < 0 {
		return fmt.Errorf("%w: hours must not be negative", ErrInvalidConfig)
	}
	if c.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidConfig)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("%w: refresh_interval must not be negative", ErrInvalidConfig)
	}
	if c.Hours == 0 {
		c.Hours = DefaultHours
	}
	if c.Limit == 0 {
		c.Limit = DefaultLimit
	}

	layout := strings.ToLower(strings.TrimSpace(c.CardLayout))
	switch layout {
	case LayoutCenter, LayoutLeft, LayoutRight:
		c.CardLayout = layout
	default:
		c.CardLayout = LayoutCenter
	}
	if c.CompactLayout && c.CardLayout != LayoutCenter {
		return fmt.Errorf("%w: compact_layout is only supported with card_layout: center", ErrInvalidConfig)
	}

	if strings.EqualFold(strings.TrimSpace(c.Overflow), OverflowScroll) {
		c.Overflow = OverflowScroll
	} else {
		c.Overflow = OverflowCollapse
	}
	if c.VisibleEvents < 0 {
		c.VisibleEvents = 0
	}
	return nil
}

// EntityIDs returns the configured entity ids in configuration order.
func (c *CardConfig) EntityIDs() []string {
	ids := make([]string, 0, len(c.Entities))
	for _, e := range c.Entities {
		ids = append(ids, e.Entity)
	}
	return ids
}

// Clone returns a deep copy of the configuration.
func (c *CardConfig) Clone() *CardConfig {
	out := *c
	if c.Entities != nil {
		out.Entities = make([]EntityConfig, len(c.Entities))
		for i, e := range c.Entities {
			out.Entities[i] = e.Clone()
		}
	}
	return &out
}

// Flag returns the value of a display toggle, or def when it is unset.
func Flag(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
