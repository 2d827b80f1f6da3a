// Package icon picks the icon and icon color of a timeline entry.
package icon

import (
	"strings"

	"github.com/penwyp/go-ha-timeline/internal/core/model"
)

const defaultKey = "default"

// deviceClassIcons maps device_class -> state -> icon. The "default" key is
// used when the state has no explicit entry.
var deviceClassIcons = map[string]map[string]string{
	"battery":      {"on": "mdi:battery-alert", "off": "mdi:battery", defaultKey: "mdi:battery"},
	"door":         {"open": "mdi:door-open", "closed": "mdi:door-closed"},
	"window":       {"open": "mdi:window-open", "closed": "mdi:window-closed"},
	"garage_door":  {"open": "mdi:garage-open", "closed": "mdi:garage"},
	"lock":         {"locked": "mdi:lock", "unlocked": "mdi:lock-open-variant"},
	"motion":       {"on": "mdi:run", "off": "mdi:walk"},
	"presence":     {"on": "mdi:account", "off": "mdi:account-off"},
	"occupancy":    {"on": "mdi:home-account", "off": "mdi:home-outline"},
	"opening":      {"on": "mdi:door-open", "off": "mdi:door-closed"},
	"problem":      {"on": "mdi:alert-circle", "off": "mdi:check-circle"},
	"safety":       {"on": "mdi:alert", "off": "mdi:shield-check"},
	"smoke":        {"on": "mdi:smoke-detector-alert", "off": "mdi:smoke-detector"},
	"gas":          {"on": "mdi:gas-cylinder", "off": "mdi:gas-burner"},
	"moisture":     {"on": "mdi:water-alert", "off": "mdi:water-check"},
	"vibration":    {"on": "mdi:vibrate", "off": "mdi:vibrate-off"},
	"connectivity": {"on": "mdi:wifi-check", "off": "mdi:wifi-off"},
	"sound":        {"on": "mdi:volume-high", "off": "mdi:volume-off"},
	"cold":         {"on": "mdi:snowflake-alert", "off": "mdi:snowflake"},
	"heat":         {"on": "mdi:fire", "off": "mdi:fire-off"},
	"tamper":       {"on": "mdi:shield-alert", "off": "mdi:shield-check"},

	"temperature":    {defaultKey: "mdi:thermometer"},
	"humidity":       {defaultKey: "mdi:water-percent"},
	"pressure":       {defaultKey: "mdi:gauge"},
	"energy":         {defaultKey: "mdi:flash"},
	"power":          {defaultKey: "mdi:lightning-bolt"},
	"power_factor":   {defaultKey: "mdi:sine-wave"},
	"voltage":        {defaultKey: "mdi:lightning-bolt"},
	"current":        {defaultKey: "mdi:current-ac"},
	"apparent_power": {defaultKey: "mdi:flash-triangle"},
	"co":             {defaultKey: "mdi:molecule-co"},
	"co2":            {defaultKey: "mdi:molecule-co2"},
	"pm25":           {defaultKey: "mdi:weather-hazy"},
	"pm10":           {defaultKey: "mdi:weather-hazy"},
	"aqi":            {defaultKey: "mdi:air-filter"},
	"illuminance":    {defaultKey: "mdi:brightness-6"},

	"battery_charging": {defaultKey: "mdi:battery-charging"},
	"update":           {"on": "mdi:package-up", "off": "mdi:package-check"},
}

// domainIcon holds per-domain state tables; fallback is used for states not
// listed. An empty fallback means the domain has no opinion about that state.
type domainIcon struct {
	states   map[string]string
	fallback string
}

var domainIcons = map[string]domainIcon{
	"lock":          {states: map[string]string{"locked": "mdi:lock"}, fallback: "mdi:lock-open-variant"},
	"binary_sensor": {states: map[string]string{"on": "mdi:eye"}, fallback: "mdi:eye-off"},
	"sensor":        {fallback: "mdi:information-outline"},
	"vacuum":        {fallback: "mdi:robot-vacuum"},
	"person":        {states: map[string]string{"home": "mdi:home"}, fallback: "mdi:account-arrow-right"},
	"light":         {states: map[string]string{"on": "mdi:lightbulb-on"}, fallback: "mdi:lightbulb"},
	"switch":        {states: map[string]string{"on": "mdi:toggle-switch"}, fallback: "mdi:toggle-switch-off"},
	"climate": {states: map[string]string{
		"heating": "mdi:radiator",
		"cooling": "mdi:snowflake",
		"drying":  "mdi:water-percent",
		"fan":     "mdi:fan",
	}, fallback: "mdi:thermostat"},
	"water_heater": {states: map[string]string{
		"eco":         "mdi:leaf",
		"performance": "mdi:fire",
	}, fallback: "mdi:water-boiler"},
	"alarm_control_panel": {states: map[string]string{
		"armed_away":  "mdi:shield-lock",
		"armed_home":  "mdi:shield-home",
		"armed_night": "mdi:shield-moon",
		"disarmed":    "mdi:shield-off",
		"triggered":   "mdi:bell-alert",
	}, fallback: "mdi:shield"},
	"media_player": {states: map[string]string{
		"playing": "mdi:play-circle",
		"paused":  "mdi:pause-circle",
	}, fallback: "mdi:stop-circle"},
}

var genericIcons = map[string]string{
	"on":      "mdi:check-circle",
	"off":     "mdi:circle-outline",
	"open":    "mdi:arrow-up",
	"closed":  "mdi:arrow-down",
	"unknown": "mdi:help-circle-outline",
}

// ForEntity returns the icon for an entity in rawState. source is the record
// supplying entity id and attributes; it is the live snapshot when one exists.
// The lookup is layered and the first non-empty layer wins:
//
//	icon_map[state], icon, icon_map.default, attributes.icon,
//	device_class table, domain table, generic states, mdi:help-circle
func ForEntity(source *model.RawStateRecord, cfg *model.EntityConfig, rawState string) string {
	if source == nil {
		return model.IconFallback
	}
	if cfg != nil {
		if v := cfg.IconMap[rawState]; v != "" {
			return v
		}
		if cfg.Icon != "" {
			return cfg.Icon
		}
		if v := cfg.IconMap[defaultKey]; v != "" {
			return v
		}
	}
	if v := source.Attr(model.AttrIcon); v != "" {
		return v
	}

	if dc := source.Attr(model.AttrDeviceClass); dc != "" {
		if table, ok := deviceClassIcons[dc]; ok {
			if v := table[rawState]; v != "" {
				return v
			}
			if v := table[defaultKey]; v != "" {
				return v
			}
			return model.IconFallback
		}
	}

	if d, ok := domainIcons[Domain(source.EntityID)]; ok {
		if v := d.states[rawState]; v != "" {
			return v
		}
		return d.fallback
	}

	if v := genericIcons[rawState]; v != "" {
		return v
	}
	return model.IconFallback
}

// Color returns icon_color_map[state], then icon_color, then "" (undefined).
func Color(cfg *model.EntityConfig, rawState string) string {
	if cfg == nil {
		return ""
	}
	if v := cfg.IconColorMap[rawState]; v != "" {
		return v
	}
	return cfg.IconColor
}

// Domain returns the part of an entity id before the first dot.
func Domain(entityID string) string {
	if i := strings.IndexByte(entityID, '.'); i >= 0 {
		return entityID[:i]
	}
	return entityID
}
