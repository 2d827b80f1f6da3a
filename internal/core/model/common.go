package model

import "errors"

// Icon tokens used when no lookup table matches.
const (
	IconFallback = "mdi:help-circle"
)

// Overflow modes for progressive disclosure
const (
	OverflowCollapse = "collapse"
	OverflowScroll   = "scroll"
)

// Card layouts
const (
	LayoutCenter = "center"
	LayoutLeft   = "left"
	LayoutRight  = "right"
)

// Loading defaults applied by CardConfig.Validate.
const (
	DefaultHours = 24
	DefaultLimit = 10
)

// DefaultLanguage is used when neither the card, the host nor the platform
// provide a language.
const DefaultLanguage = "en-US"

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid timeline configuration")

// BoolPtr returns a pointer to v, for tri-state settings.
func BoolPtr(v bool) *bool {
	return &v
}
