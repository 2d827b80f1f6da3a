package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/penwyp/go-ha-timeline/internal/core/cache"
	"github.com/penwyp/go-ha-timeline/internal/core/i18n"
	"github.com/penwyp/go-ha-timeline/internal/core/model"
	"github.com/penwyp/go-ha-timeline/internal/core/resolver"
	timelinepkg "github.com/penwyp/go-ha-timeline/internal/core/timeline"
	"github.com/penwyp/go-ha-timeline/internal/core/transform"
	"github.com/penwyp/go-ha-timeline/internal/util"
)

var (
	// ErrClosed is returned by operations on a closed orchestrator.
	ErrClosed = errors.New("timeline orchestrator is closed")
	// ErrStarted is returned when Start is called twice.
	ErrStarted = errors.New("timeline orchestrator already started")
)

type refreshResult struct {
	gen     uint64
	payload model.HistoryPayload
	err     error
}

type reloadRequest struct {
	card *model.CardConfig
	done chan struct{}
}

// Orchestrator keeps the timeline of one card up to date.
//
// After Start, a single goroutine owns the displayed list: it applies
// fetched history, live events, timer ticks and configuration reloads one
// at a time. Readers get copies through CurrentItems and listeners.
type Orchestrator struct {
	cfg     Config
	state   *StateManager
	refresh *RefreshController
	tr      *i18n.Translator
	cache   *cache.HistoryCache
	metrics Recorder
	clock   clockwork.Clock

	mu          sync.Mutex
	started     bool
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	closed      atomic.Bool
	closeOnce   sync.Once
	wg          sync.WaitGroup

	members atomic.Value // map[string]struct{}

	events   chan model.StateChangedEvent
	results  chan refreshResult
	reloads  chan reloadRequest
	triggers chan struct{}

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextID      int

	// Owned by the run loop once started.
	card     *model.CardConfig
	gen      uint64
	lang     string
	hostLang string
	list     *timelinepkg.List
	merger   *timelinepkg.Merger
	snapshot transform.Snapshot
	ticker   clockwork.Ticker
}

// NewOrchestrator validates cfg and returns an orchestrator that has not
// started loading yet.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	card := cfg.Card.Clone()
	if err := card.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:       cfg,
		state:     NewStateManager(),
		refresh:   NewRefreshController(cfg.History, cfg.Metrics, cfg.Clock),
		tr:        cfg.Translator,
		cache:     cfg.Cache,
		metrics:   cfg.Metrics,
		clock:     cfg.Clock,
		events:    make(chan model.StateChangedEvent, cfg.EventBuffer),
		results:   make(chan refreshResult),
		reloads:   make(chan reloadRequest),
		triggers:  make(chan struct{}, 1),
		listeners: make(map[int]Listener),
		card:      card,
		snapshot:  transform.Snapshot{},
	}
	o.setMembers(card)
	o.state.SetCard(card)
	return o, nil
}

// Start determines the display language and loads the timeline. On a cache
// hit it returns immediately and refreshes in the background; on a miss it
// waits for the fetch and returns its error. Afterwards live events and the
// refresh timer keep the list current until Close or ctx is done.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.closed.Load() {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.started {
		o.mu.Unlock()
		return ErrStarted
	}
	o.started = true
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.wg.Add(1)
	o.mu.Unlock()

	if err := o.start(); err != nil {
		o.state.SetPhase(PhaseUninitialized)
		o.state.SetError(err)
		o.cancel()
		o.mu.Lock()
		o.started = false
		o.mu.Unlock()
		o.wg.Done()
		return err
	}

	go o.run()
	return nil
}

func (o *Orchestrator) start() error {
	ctx := o.ctx
	o.state.SetPhase(PhaseLoading)

	if o.card.Language == "" && o.cfg.Host != nil {
		lang, err := o.cfg.Host.Language(ctx)
		if err != nil {
			util.LogWarnf("could not read host language: %v", err)
		}
		o.hostLang = lang
	}
	o.applyLanguage()

	if o.cfg.States != nil {
		states, err := o.cfg.States.States(ctx)
		if err != nil {
			util.LogWarnf("could not read current states: %v", err)
		} else {
			o.snapshot = states
		}
	}

	o.resetList()
	if !o.loadFromCache() {
		payload, err := o.refresh.Fetch(ctx, o.card)
		if err != nil {
			return err
		}
		o.applyRefresh(refreshResult{gen: o.gen, payload: payload})
	}

	if o.closed.Load() {
		return ErrClosed
	}
	return o.subscribeLive()
}

// run is the only goroutine touching the list after Start.
func (o *Orchestrator) run() {
	defer o.wg.Done()
	o.resetTicker()
	defer o.stopTicker()

	for {
		var tick <-chan time.Time
		if o.ticker != nil {
			tick = o.ticker.Chan()
		}

		select {
		case <-o.ctx.Done():
			util.LogDebug("timeline orchestrator stopped")
			return
		case ev := <-o.events:
			o.handleLive(ev)
		case res := <-o.results:
			o.applyRefresh(res)
		case req := <-o.reloads:
			o.applyConfiguration(req.card)
			close(req.done)
		case <-tick:
			util.LogDebug("timeline auto refresh")
			o.spawnRefresh()
		case <-o.triggers:
			o.spawnRefresh()
		}
	}
}

// Close stops the timer and the live subscription and waits for the
// orchestrator goroutines. No listener is called after Close returns.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() {
		o.closed.Store(true)

		o.mu.Lock()
		cancel, unsubscribe := o.cancel, o.unsubscribe
		o.unsubscribe = nil
		o.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if unsubscribe != nil {
			unsubscribe()
		}
		o.wg.Wait()
		o.state.SetLiveSubscribed(false)
		util.LogInfo("timeline orchestrator closed")
	})
	return nil
}

// SetConfiguration validates card and makes it the active configuration.
// A running orchestrator clears its list and reloads. On error the previous
// configuration stays active.
func (o *Orchestrator) SetConfiguration(card *model.CardConfig) error {
	if card == nil {
		return fmt.Errorf("%w: please define 'entities' as a list", model.ErrInvalidConfig)
	}
	next := card.Clone()
	if err := next.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	if o.closed.Load() {
		o.mu.Unlock()
		return ErrClosed
	}
	if !o.started {
		o.card = next
		o.setMembers(next)
		o.state.SetCard(next)
		o.mu.Unlock()
		return nil
	}
	ctx := o.ctx
	o.mu.Unlock()

	req := reloadRequest{card: next, done: make(chan struct{})}
	select {
	case o.reloads <- req:
	case <-ctx.Done():
		return ErrClosed
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ErrClosed
	}
}

// CurrentItems returns a copy of the displayed items, newest first.
func (o *Orchestrator) CurrentItems() []model.TimelineItem {
	return o.state.Items()
}

// Status reports phase, language and subscription state.
func (o *Orchestrator) Status() Status {
	return o.state.Status()
}

// Card returns the active configuration. Callers must not modify it.
func (o *Orchestrator) Card() *model.CardConfig {
	return o.state.Card()
}

// Translator returns the translator used for labels, for renderers.
func (o *Orchestrator) Translator() *i18n.Translator {
	return o.tr
}

// RequestRefresh asks for a background refresh. Requests made while one is
// pending are merged.
func (o *Orchestrator) RequestRefresh() {
	select {
	case o.triggers <- struct{}{}:
	default:
	}
}

// Subscribe registers l for list changes and returns a function removing it.
func (o *Orchestrator) Subscribe(l Listener) func() {
	o.listenersMu.Lock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = l
	o.listenersMu.Unlock()

	return func() {
		o.listenersMu.Lock()
		delete(o.listeners, id)
		o.listenersMu.Unlock()
	}
}

func (o *Orchestrator) subscribeLive() error {
	if o.cfg.Live == nil {
		return nil
	}
	unsubscribe, err := o.cfg.Live.Subscribe(o.ctx, o.isMember, o.enqueueLive)
	if err != nil {
		// History is loaded; run without live updates rather than fail.
		util.LogErrorf("live subscription failed, relying on refreshes: %v", err)
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed.Load() {
		unsubscribe()
		return ErrClosed
	}
	o.unsubscribe = unsubscribe
	o.state.SetLiveSubscribed(true)
	return nil
}

func (o *Orchestrator) enqueueLive(ev model.StateChangedEvent) {
	select {
	case o.events <- ev:
	case <-o.ctx.Done():
	}
}

func (o *Orchestrator) isMember(entityID string) bool {
	members, _ := o.members.Load().(map[string]struct{})
	_, ok := members[entityID]
	return ok
}

func (o *Orchestrator) setMembers(card *model.CardConfig) {
	members := make(map[string]struct{}, len(card.Entities))
	for _, id := range card.EntityIDs() {
		members[id] = struct{}{}
	}
	o.members.Store(members)
}

func (o *Orchestrator) handleLive(ev model.StateChangedEvent) {
	rec := ev.NewState
	if rec != nil && rec.EntityID == "" {
		cp := *rec
		cp.EntityID = ev.EntityID
		rec = &cp
	}
	if rec != nil {
		o.snapshot[ev.EntityID] = rec
	} else {
		delete(o.snapshot, ev.EntityID)
	}

	item, outcome := o.merger.OnLiveEvent(rec, o.snapshot)
	o.metrics.LiveEvent(outcome.String())
	if outcome != timelinepkg.Merged {
		return
	}
	util.LogDebugf("live %s -> %s", item.ID, item.RawState)
	o.publish()
}

func (o *Orchestrator) spawnRefresh() {
	gen, card, ctx := o.gen, o.card, o.ctx
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		payload, err := o.refresh.Fetch(ctx, card)
		select {
		case o.results <- refreshResult{gen: gen, payload: payload, err: err}:
		case <-ctx.Done():
			util.LogDebug("discarding refresh result after shutdown")
		}
	}()
}

// applyRefresh turns fetched history into the displayed list. Live items
// newer than the fetched window are carried over so a refresh never drops
// an event merged while it was in flight.
func (o *Orchestrator) applyRefresh(res refreshResult) {
	if o.closed.Load() || res.gen != o.gen {
		util.LogDebug("discarding stale refresh result")
		return
	}
	if res.err != nil {
		o.metrics.Refresh("error")
		o.state.SetError(res.err)
		return
	}

	card := o.card
	items := transform.History(res.payload, card.Entities, o.snapshot, o.tr)
	next := timelinepkg.Build(items, card.Entities, card.Limit, card)
	merger := timelinepkg.NewMerger(card, o.tr, next)
	// The host clock may run ahead of ours, so a carried item can already be
	// part of the fetched history.
	carried := o.list.Newer(res.payload.WindowEnd)
	for i := len(carried) - 1; i >= 0; i-- {
		if next.Contains(carried[i].ID, carried[i].Time) {
			continue
		}
		merger.Replay(carried[i])
	}

	ids := card.EntityIDs()
	shown := next.Items()
	if o.state.Phase() == PhaseReady && o.list.Equal(shown) {
		// Same items, but next remembers the states trimmed off the tail,
		// which a list rebuilt from the cache does not.
		o.list, o.merger = next, merger
		if !o.cache.Touch(ids, card.Hours, o.lang) {
			o.cache.Set(ids, card.Hours, o.lang, shown)
		}
		o.metrics.Refresh("unchanged")
		util.LogDebug("refresh unchanged, skipping publish")
		return
	}

	o.cache.Set(ids, card.Hours, o.lang, shown)
	o.list, o.merger = next, merger
	o.metrics.Refresh("replaced")
	o.state.SetPhase(PhaseReady)
	o.publish()
}

func (o *Orchestrator) applyConfiguration(card *model.CardConfig) {
	util.LogInfof("applying new configuration with %d entities", len(card.Entities))
	o.card = card
	o.gen++
	o.setMembers(card)
	o.state.SetCard(card)
	o.applyLanguage()
	o.resetTicker()

	o.state.SetPhase(PhaseLoading)
	o.resetList()
	o.publish()
	if !o.loadFromCache() {
		o.spawnRefresh()
	}
}

// loadFromCache serves a cached list and schedules a background refresh.
func (o *Orchestrator) loadFromCache() bool {
	card := o.card
	items, res := o.cache.Lookup(card.EntityIDs(), card.Hours, o.lang)
	o.metrics.CacheLookup(string(res))
	if res != cache.Hit {
		util.LogDebugf("history cache %s", res)
		return false
	}

	r := resolver.New(card)
	for i := range items {
		items[i].EntityCfg = r.Entity(items[i].ID)
	}
	o.list = timelinepkg.Build(items, card.Entities, card.Limit, card)
	o.merger = timelinepkg.NewMerger(card, o.tr, o.list)
	o.state.SetPhase(PhaseReady)
	o.publish()
	util.LogDebugf("served %d cached items", len(items))

	o.spawnRefresh()
	return true
}

func (o *Orchestrator) resetList() {
	o.list = timelinepkg.NewList(o.card.Limit)
	o.merger = timelinepkg.NewMerger(o.card, o.tr, o.list)
}

func (o *Orchestrator) applyLanguage() {
	lang := firstNonEmpty(o.card.Language, o.hostLang, o.cfg.PlatformLanguage, model.DefaultLanguage)
	o.tr.Load(lang)
	o.lang = o.tr.LangCode()
	o.state.SetLanguage(o.lang)
	util.LogDebugf("display language %s", o.lang)
}

func (o *Orchestrator) publish() {
	items := o.list.Items()
	o.state.SetItems(items, o.clock.Now())
	if o.closed.Load() {
		return
	}

	o.listenersMu.RLock()
	defer o.listenersMu.RUnlock()
	for _, l := range o.listeners {
		l(model.CopyItems(items))
	}
}

func (o *Orchestrator) resetTicker() {
	o.stopTicker()
	if d := refreshInterval(o.card); d > 0 {
		o.ticker = o.clock.NewTicker(d)
	}
}

func (o *Orchestrator) stopTicker() {
	if o.ticker != nil {
		o.ticker.Stop()
		o.ticker = nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
