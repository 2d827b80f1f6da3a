// Package resolver resolves per-entity settings against card-wide defaults.
//
// Every concern is resolved independently with the same precedence:
// explicit entity value, then the card default, then a built-in fallback.
package resolver

import "github.com/penwyp/go-ha-timeline/internal/core/model"

// Resolve returns the configuration of entityID, or an empty config when the
// entity is not configured. Absence is a neutral value, never an error.
func Resolve(entityID string, entities []model.EntityConfig) *model.EntityConfig {
	for i := range entities {
		if entities[i].Entity == entityID {
			return &entities[i]
		}
	}
	return &model.EntityConfig{}
}

// Resolver indexes a card configuration for repeated lookups. It never
// mutates the card it was built from.
type Resolver struct {
	card *model.CardConfig
	byID map[string]*model.EntityConfig
}

// New builds a Resolver. A nil card behaves like a card without entities.
func New(card *model.CardConfig) *Resolver {
	if card == nil {
		card = &model.CardConfig{}
	}
	byID := make(map[string]*model.EntityConfig, len(card.Entities))
	for i := range card.Entities {
		e := &card.Entities[i]
		if _, exists := byID[e.Entity]; !exists {
			byID[e.Entity] = e
		}
	}
	return &Resolver{card: card, byID: byID}
}

// Card returns the card configuration the resolver was built from.
func (r *Resolver) Card() *model.CardConfig {
	return r.card
}

// Entity returns the entity config for entityID or an empty config.
func (r *Resolver) Entity(entityID string) *model.EntityConfig {
	if e, ok := r.byID[entityID]; ok {
		return e
	}
	return &model.EntityConfig{}
}

// Configured reports whether entityID is part of the card.
func (r *Resolver) Configured(entityID string) bool {
	_, ok := r.byID[entityID]
	return ok
}

// CollapseDuplicates resolves entity -> card -> false.
func (r *Resolver) CollapseDuplicates(cfg *model.EntityConfig) bool {
	return CollapseDuplicates(cfg, r.card)
}

// CollapseDuplicates resolves the collapse flag for one entity. An explicit
// false on the entity wins over a true card default.
func CollapseDuplicates(cfg *model.EntityConfig, card *model.CardConfig) bool {
	if cfg != nil && cfg.CollapseDuplicates != nil {
		return *cfg.CollapseDuplicates
	}
	if card != nil && card.CollapseDuplicates != nil {
		return *card.CollapseDuplicates
	}
	return false
}

// Name resolves entity name -> live friendly_name -> entity id.
func Name(entityID string, cfg *model.EntityConfig, live *model.RawStateRecord) string {
	if cfg != nil && cfg.Name != "" {
		return cfg.Name
	}
	if friendly := live.Attr(model.AttrFriendlyName); friendly != "" {
		return friendly
	}
	return entityID
}

// NameColor resolves entity -> card -> "" (theme default).
func (r *Resolver) NameColor(cfg *model.EntityConfig) string {
	if cfg != nil && cfg.NameColor != "" {
		return cfg.NameColor
	}
	return r.card.NameColor
}

// StateColor resolves entity -> card -> "" (theme default).
func (r *Resolver) StateColor(cfg *model.EntityConfig) string {
	if cfg != nil && cfg.StateColor != "" {
		return cfg.StateColor
	}
	return r.card.StateColor
}
