// Package cache memoizes filtered timeline history for a short time.
package cache

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/penwyp/go-ha-timeline/internal/core/model"
	"github.com/penwyp/go-ha-timeline/internal/util"
)

// DefaultTTL is how long a filtered history stays valid.
const DefaultTTL = time.Minute

// Result classifies a lookup.
type Result string

const (
	Hit     Result = "hit"
	Miss    Result = "miss"
	Expired Result = "expired"
)

// Entry is one cached, frozen item sequence.
type Entry struct {
	Key       string
	Items     []model.TimelineItem
	Timestamp time.Time
}

// HistoryCache holds value copies of filtered histories keyed by entity set,
// hours and language. Expired entries are evicted when they are read.
type HistoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	ttl     time.Duration
	clock   clockwork.Clock
}

// Config configures a HistoryCache. Zero values get defaults.
type Config struct {
	TTL   time.Duration
	Clock clockwork.Clock
}

// NewHistoryCache creates an empty cache.
func NewHistoryCache(cfg Config) *HistoryCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &HistoryCache{
		entries: make(map[string]*Entry),
		ttl:     cfg.TTL,
		clock:   cfg.Clock,
	}
}

// Key builds the cache key. Entity ids are sorted so that reordering the
// configuration does not change the key.
func Key(entityIDs []string, hours float64, lang string) string {
	ids := append([]string(nil), entityIDs...)
	sort.Strings(ids)
	return strings.Join(ids, ",") + "__" + strconv.FormatFloat(hours, 'f', -1, 64) + "__" + lang
}

// Get returns a copy of the cached items, or nil on a miss.
func (c *HistoryCache) Get(entityIDs []string, hours float64, lang string) []model.TimelineItem {
	items, _ := c.Lookup(entityIDs, hours, lang)
	return items
}

// Lookup is Get that also reports why a miss happened. An entry older than
// the TTL is evicted and reported as Expired.
func (c *HistoryCache) Lookup(entityIDs []string, hours float64, lang string) ([]model.TimelineItem, Result) {
	key := Key(entityIDs, hours, lang)

	c.mu.RLock()
	entry, ok := c.entries[key]
	var stamp time.Time
	if ok {
		stamp = entry.Timestamp
	}
	c.mu.RUnlock()
	if !ok {
		return nil, Miss
	}

	if c.clock.Since(stamp) > c.ttl {
		c.mu.Lock()
		// Only evict what was observed; a concurrent Set may have replaced it.
		if cur, ok := c.entries[key]; ok && cur == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		util.LogDebugf("cache: entry %s expired", key)
		return nil, Expired
	}

	return model.CopyItems(entry.Items), Hit
}

// Set stores a copy of items, replacing any previous entry.
func (c *HistoryCache) Set(entityIDs []string, hours float64, lang string, items []model.TimelineItem) {
	key := Key(entityIDs, hours, lang)
	frozen := model.CopyItems(items)
	if frozen == nil {
		frozen = []model.TimelineItem{}
	}

	c.mu.Lock()
	c.entries[key] = &Entry{Key: key, Items: frozen, Timestamp: c.clock.Now()}
	c.mu.Unlock()
}

// Touch restarts the TTL of an existing entry. It reports false when there
// is no entry to refresh.
func (c *HistoryCache) Touch(entityIDs []string, hours float64, lang string) bool {
	key := Key(entityIDs, hours, lang)

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	entry.Timestamp = c.clock.Now()
	return true
}

// Len returns the number of stored entries, expired ones included.
func (c *HistoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *HistoryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()
}
