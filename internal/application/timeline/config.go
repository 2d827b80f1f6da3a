package timeline

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/penwyp/go-ha-timeline/internal/core/cache"
	"github.com/penwyp/go-ha-timeline/internal/core/i18n"
	"github.com/penwyp/go-ha-timeline/internal/core/model"
)

// Config contains everything an Orchestrator needs
type Config struct {
	// Card is the timeline configuration; it is cloned and validated.
	Card *model.CardConfig

	// Collaborators. History is required, the rest are optional.
	History    HistorySource
	States     StateSource
	Host       LanguageSource
	Live       LiveSource
	Cache      *cache.HistoryCache
	Translator *i18n.Translator
	Metrics    Recorder
	Clock      clockwork.Clock

	// PlatformLanguage is the language of the machine we run on, used when
	// neither the card nor the host name one.
	PlatformLanguage string

	// EventBuffer is the capacity of the live event queue.
	EventBuffer int
}

// Validate checks the configuration and fills defaults
func (c *Config) Validate() error {
	if c.Card == nil {
		return fmt.Errorf("%w: card configuration is required", model.ErrInvalidConfig)
	}
	if c.History == nil {
		return fmt.Errorf("history source is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Cache == nil {
		c.Cache = cache.NewHistoryCache(cache.Config{Clock: c.Clock})
	}
	if c.Translator == nil {
		tr, err := i18n.New()
		if err != nil {
			return fmt.Errorf("load translations: %w", err)
		}
		c.Translator = tr
	}
	if c.Metrics == nil {
		c.Metrics = noopRecorder{}
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 64
	}
	return nil
}

// LanguageFromEnv derives a language tag such as "de-DE" from the POSIX
// locale variables. It returns "" for the C and POSIX locales.
func LanguageFromEnv(getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := getenv(key)
		if v == "" {
			continue
		}
		if i := strings.IndexAny(v, ".@"); i >= 0 {
			v = v[:i]
		}
		if v == "C" || v == "POSIX" || v == "" {
			continue
		}
		return strings.ReplaceAll(v, "_", "-")
	}
	return ""
}

// refreshInterval returns the card's refresh interval, 0 when disabled.
func refreshInterval(card *model.CardConfig) time.Duration {
	return time.Duration(card.RefreshInterval) * time.Second
}
