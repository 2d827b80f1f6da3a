package model

import (
	"fmt"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// EntityConfig holds the per-entity overrides of a card.
//
// CollapseDuplicates is tri-state: nil means "inherit from the card", which is
// different from an explicit false.
type EntityConfig struct {
	Entity             string            `yaml:"entity" json:"entity"`
	Name               string            `yaml:"name,omitempty" json:"name,omitempty"`
	Icon               string            `yaml:"icon,omitempty" json:"icon,omitempty"`
	IconMap            map[string]string `yaml:"icon_map,omitempty" json:"icon_map,omitempty"`
	IconColor          string            `yaml:"icon_color,omitempty" json:"icon_color,omitempty"`
	IconColorMap       map[string]string `yaml:"icon_color_map,omitempty" json:"icon_color_map,omitempty"`
	NameColor          string            `yaml:"name_color,omitempty" json:"name_color,omitempty"`
	StateColor         string            `yaml:"state_color,omitempty" json:"state_color,omitempty"`
	StateMap           map[string]string `yaml:"state_map,omitempty" json:"state_map,omitempty"`
	IncludeStates      []string          `yaml:"include_states,omitempty" json:"include_states,omitempty"`
	ExcludeStates      []string          `yaml:"exclude_states,omitempty" json:"exclude_states,omitempty"`
	CollapseDuplicates *bool             `yaml:"collapse_duplicates,omitempty" json:"collapse_duplicates,omitempty"`
	ShowEntityPicture  bool              `yaml:"show_entity_picture,omitempty" json:"show_entity_picture,omitempty"`
}

// entityConfigFields breaks the UnmarshalYAML/UnmarshalJSON recursion.
type entityConfigFields EntityConfig

// UnmarshalYAML accepts both the shorthand `- sensor.x` and the mapping form.
func (e *EntityConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var id string
		if err := node.Decode(&id); err != nil {
			return err
		}
		*e = EntityConfig{Entity: id}
		return nil
	case yaml.MappingNode:
		var fields entityConfigFields
		if err := node.Decode(&fields); err != nil {
			return err
		}
		*e = EntityConfig(fields)
		return nil
	default:
		return fmt.Errorf("%w: entity at line %d must be an id or a mapping", ErrInvalidConfig, node.Line)
	}
}

// UnmarshalJSON mirrors UnmarshalYAML for JSON payloads.
func (e *EntityConfig) UnmarshalJSON(data []byte) error {
	var id string
	if err := sonic.Unmarshal(data, &id); err == nil {
		*e = EntityConfig{Entity: id}
		return nil
	}

	var fields entityConfigFields
	if err := sonic.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: entity must be an id or an object: %v", ErrInvalidConfig, err)
	}
	*e = EntityConfig(fields)
	return nil
}

// Validate checks invariants that must hold before any filtering runs.
func (e *EntityConfig) Validate() error {
	if e.Entity == "" {
		return fmt.Errorf("%w: entity id is required", ErrInvalidConfig)
	}
	if len(e.IncludeStates) > 0 && len(e.ExcludeStates) > 0 {
		return fmt.Errorf("%w: entity %q cannot use include_states and exclude_states simultaneously",
			ErrInvalidConfig, e.Entity)
	}
	return nil
}

// Admits reports whether rawState passes the include/exclude lists.
// Membership is an exact match on the raw state, never the localized label.
func (e *EntityConfig) Admits(rawState string) bool {
	if len(e.IncludeStates) > 0 {
		return containsString(e.IncludeStates, rawState)
	}
	if len(e.ExcludeStates) > 0 {
		return !containsString(e.ExcludeStates, rawState)
	}
	return true
}

// Clone returns a deep copy, so items can keep a snapshot that later config
// reloads cannot mutate.
func (e EntityConfig) Clone() EntityConfig {
	out := e
	out.IconMap = cloneMap(e.IconMap)
	out.IconColorMap = cloneMap(e.IconColorMap)
	out.StateMap = cloneMap(e.StateMap)
	if e.IncludeStates != nil {
		out.IncludeStates = append([]string(nil), e.IncludeStates...)
	}
	if e.ExcludeStates != nil {
		out.ExcludeStates = append([]string(nil), e.ExcludeStates...)
	}
	if e.CollapseDuplicates != nil {
		out.CollapseDuplicates = BoolPtr(*e.CollapseDuplicates)
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
