package formatter

import (
	"strings"
	"time"
)

const (
	fallbackDateTime = "2006-01-02 15:04"
	fallbackTime     = "15:04"
)

// RelativeTime renders t as "5 minutes ago" in the active language.
// Durations are truncated to whole units.
func RelativeTime(t, now time.Time, labels Labels) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return labels.T("time.seconds", nil)
	case diff < time.Hour:
		return labels.T("time.minutes", map[string]any{"n": int(diff / time.Minute)})
	case diff < 24*time.Hour:
		return labels.T("time.hours", map[string]any{"n": int(diff / time.Hour)})
	default:
		return labels.T("time.days", map[string]any{"n": int(diff / (24 * time.Hour))})
	}
}

// AbsoluteTime renders t with the locale's layout, followed by its time
// suffix when the locale has one.
func AbsoluteTime(t time.Time, loc *time.Location, labels Labels, includeDate bool) string {
	key, layout := "date_format.time", fallbackTime
	if includeDate {
		key, layout = "date_format.datetime", fallbackDateTime
	}
	if labels.Has(key) {
		layout = labels.T(key, nil)
	}
	if loc == nil {
		loc = time.Local
	}

	out := t.In(loc).Format(layout)
	if labels.Has("date_format.time_suffix") {
		if suffix := strings.TrimSpace(labels.T("date_format.time_suffix", nil)); suffix != "" {
			out += " " + suffix
		}
	}
	return out
}
