// Package i18n resolves localized labels from the embedded locale tables.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/penwyp/go-ha-timeline/internal/core/model"
)

// FallbackLanguage is the table used when nothing better matches.
const FallbackLanguage = "en-us"

//go:embed locales/*.json
var localeFS embed.FS

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

// Translator holds the parsed locale tables and the active language.
// It is safe for concurrent use.
type Translator struct {
	tables map[string]map[string]any

	mu       sync.RWMutex
	active   map[string]any
	langCode string
}

// New parses the embedded locale tables. The fallback table is active until
// Load is called.
func New() (*Translator, error) {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}

	tables := make(map[string]map[string]any, len(entries))
	for _, entry := range entries {
		data, err := localeFS.ReadFile(path.Join("locales", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", entry.Name(), err)
		}
		var table map[string]any
		if err := sonic.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", entry.Name(), err)
		}
		tables[strings.TrimSuffix(entry.Name(), ".json")] = table
	}
	if _, ok := tables[FallbackLanguage]; !ok {
		return nil, fmt.Errorf("locale %s is missing", FallbackLanguage)
	}

	return &Translator{
		tables:   tables,
		active:   tables[FallbackLanguage],
		langCode: FallbackLanguage,
	}, nil
}

// MustNew is New for package-level use; it panics on a broken build.
func MustNew() *Translator {
	t, err := New()
	if err != nil {
		panic(err)
	}
	return t
}

// Load activates the table for lang: exact code first, then its two-letter
// prefix, then the fallback. The full lowercased code is kept for formatting
// even when a less specific table was chosen.
func (t *Translator) Load(lang string) {
	key := strings.ToLower(strings.TrimSpace(lang))
	if key == "" {
		key = strings.ToLower(model.DefaultLanguage)
	}
	short := key
	if len(short) > 2 {
		short = short[:2]
	}

	table, ok := t.tables[key]
	if !ok {
		table, ok = t.tables[short]
	}
	if !ok {
		table = t.tables[FallbackLanguage]
	}

	t.mu.Lock()
	t.active = table
	t.langCode = key
	t.mu.Unlock()
}

// LangCode returns the normalised code passed to the last Load.
func (t *Translator) LangCode() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.langCode
}

// Languages lists the available locale tables.
func (t *Translator) Languages() []string {
	out := make([]string, 0, len(t.tables))
	for k := range t.tables {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// T looks up a dotted path such as "time.minutes" and substitutes {name}
// placeholders from vars. Unknown placeholders are left as they are; a
// missing path is returned unchanged.
func (t *Translator) T(key string, vars map[string]any) string {
	t.mu.RLock()
	node := any(t.active)
	t.mu.RUnlock()

	for _, part := range strings.Split(key, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return key
		}
		next, ok := m[part]
		if !ok || next == nil || next == "" {
			return key
		}
		node = next
	}

	s, ok := node.(string)
	if !ok {
		return key
	}
	if len(vars) == 0 {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := vars[name]; ok {
			return fmt.Sprint(v)
		}
		return m
	})
}

// Has reports whether key resolves to a string in the active table.
func (t *Translator) Has(key string) bool {
	return t.T(key, nil) != key
}

// LocalizedState resolves the display label of a raw state:
// state_map override, then status.<raw>, then the raw state itself.
func (t *Translator) LocalizedState(entityID, rawState string, cfg *model.EntityConfig) string {
	if cfg != nil {
		if v := cfg.StateMap[rawState]; v != "" {
			return v
		}
	}
	key := "status." + rawState
	if v := t.T(key, nil); v != key {
		return v
	}
	return rawState
}
