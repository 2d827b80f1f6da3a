package timeline

import (
	"sync"
	"time"

	"github.com/penwyp/go-ha-timeline/internal/core/model"
)

// Phase is the load state of the orchestrator.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseLoading       Phase = "loading"
	PhaseReady         Phase = "ready"
)

// Status is a point-in-time view of the orchestrator.
type Status struct {
	Phase          Phase
	LiveSubscribed bool
	Language       string
	LastUpdate     time.Time
	LastError      error
}

// StateManager publishes what the orchestrator goroutine owns to readers on
// other goroutines. Items are stored as value copies.
type StateManager struct {
	mu sync.RWMutex

	items  []model.TimelineItem
	card   *model.CardConfig
	status Status
}

// NewStateManager creates a new StateManager instance
func NewStateManager() *StateManager {
	return &StateManager{
		items:  []model.TimelineItem{},
		status: Status{Phase: PhaseUninitialized},
	}
}

// Items returns a copy of the displayed items
func (sm *StateManager) Items() []model.TimelineItem {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	items := make([]model.TimelineItem, len(sm.items))
	copy(items, sm.items)
	return items
}

// SetItems replaces the displayed items
func (sm *StateManager) SetItems(items []model.TimelineItem, at time.Time) {
	frozen := model.CopyItems(items)
	if frozen == nil {
		frozen = []model.TimelineItem{}
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.items = frozen
	sm.status.LastUpdate = at
	sm.status.LastError = nil
}

// Card returns the active card configuration. Callers must not modify it.
func (sm *StateManager) Card() *model.CardConfig {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.card
}

// SetCard records the active card configuration
func (sm *StateManager) SetCard(card *model.CardConfig) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.card = card
}

// Status returns the current status
func (sm *StateManager) Status() Status {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.status
}

// Phase returns the current load phase
func (sm *StateManager) Phase() Phase {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.status.Phase
}

// SetPhase updates the load phase
func (sm *StateManager) SetPhase(p Phase) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.status.Phase = p
}

// SetLiveSubscribed updates the live-subscribed flag
func (sm *StateManager) SetLiveSubscribed(v bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.status.LiveSubscribed = v
}

// SetLanguage records the effective language code
func (sm *StateManager) SetLanguage(lang string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.status.Language = lang
}

// SetError records the last failure without touching the items
func (sm *StateManager) SetError(err error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.status.LastError = err
}
