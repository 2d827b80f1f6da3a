// Package fixtures provides an in-process Home Assistant for tests.
package fixtures

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/penwyp/go-ha-timeline/internal/core/model"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// HomeAssistant fakes the REST history, states and config endpoints and the
// websocket state_changed subscription.
type HomeAssistant struct {
	Token    string
	Language string

	server *httptest.Server

	mu       sync.Mutex
	history  map[string][]model.RawStateRecord
	states   map[string]model.RawStateRecord
	requests map[string]int

	events     chan model.StateChangedEvent
	subscribed chan struct{}
	subOnce    sync.Once
}

// NewHomeAssistant starts a fake server accepting token. It is closed when
// the test ends.
func NewHomeAssistant(t testing.TB, token string) *HomeAssistant {
	t.Helper()
	h := &HomeAssistant{
		Token:      token,
		Language:   "en",
		history:    make(map[string][]model.RawStateRecord),
		states:     make(map[string]model.RawStateRecord),
		requests:   make(map[string]int),
		events:     make(chan model.StateChangedEvent, 16),
		subscribed: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/history/period/", h.authorized(h.serveHistory))
	mux.HandleFunc("/api/states", h.authorized(h.serveStates))
	mux.HandleFunc("/api/config", h.authorized(h.serveConfig))
	mux.HandleFunc("/api/websocket", h.serveWebsocket)
	h.server = httptest.NewServer(mux)
	t.Cleanup(h.server.Close)
	return h
}

// URL is the base address of the server.
func (h *HomeAssistant) URL() string {
	return h.server.URL
}

// AddHistory records states. The latest record per entity also becomes its
// current state.
func (h *HomeAssistant) AddHistory(records ...model.RawStateRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, rec := range records {
		h.history[rec.EntityID] = append(h.history[rec.EntityID], rec)
		if cur, ok := h.states[rec.EntityID]; !ok || !rec.LastChanged.Before(cur.LastChanged) {
			h.states[rec.EntityID] = rec
		}
	}
}

// Emit changes the state of an entity and pushes a state_changed event to
// the subscriber.
func (h *HomeAssistant) Emit(rec model.RawStateRecord) {
	h.AddHistory(rec)
	h.events <- model.StateChangedEvent{EntityID: rec.EntityID, NewState: &rec}
}

// Requests returns how many REST calls hit the endpoint prefix.
func (h *HomeAssistant) Requests(prefix string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for path, count := range h.requests {
		if strings.HasPrefix(path, prefix) {
			n += count
		}
	}
	return n
}

// Subscribed is closed once a client subscribed to state changes.
func (h *HomeAssistant) Subscribed() <-chan struct{} {
	return h.subscribed
}

func (h *HomeAssistant) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.requests[r.URL.Path]++
		h.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+h.Token {
			http.Error(w, "401: Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (h *HomeAssistant) serveHistory(w http.ResponseWriter, r *http.Request) {
	end := time.Now()
	if v := r.URL.Query().Get("end_time"); v != "" {
		if t, err := time.Parse(isoMillis, v); err == nil {
			end = t
		}
	}

	h.mu.Lock()
	groups := make([][]map[string]any, 0)
	for _, id := range strings.Split(r.URL.Query().Get("filter_entity_id"), ",") {
		var group []map[string]any
		for _, rec := range h.history[id] {
			if rec.LastChanged.After(end) {
				continue
			}
			entry := map[string]any{
				"state":        rec.State,
				"last_changed": rec.LastChanged.UTC().Format(isoMillis),
			}
			// Like the real API only the first record of a group is complete.
			if len(group) == 0 {
				entry["entity_id"] = rec.EntityID
				entry["attributes"] = attributes(rec)
			}
			group = append(group, entry)
		}
		if len(group) > 0 {
			groups = append(groups, group)
		}
	}
	h.mu.Unlock()

	writeJSON(w, groups)
}

func (h *HomeAssistant) serveStates(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	out := make([]model.RawStateRecord, 0, len(h.states))
	for _, rec := range h.states {
		rec.Attributes = attributes(rec)
		out = append(out, rec)
	}
	h.mu.Unlock()

	writeJSON(w, out)
}

func (h *HomeAssistant) serveConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"language": h.Language, "time_zone": "UTC", "version": "2024.5.0"})
}

func (h *HomeAssistant) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "auth_required", "ha_version": "2024.5.0"}); err != nil {
		return
	}
	var auth map[string]any
	if err := conn.ReadJSON(&auth); err != nil {
		return
	}
	if auth["access_token"] != h.Token {
		_ = conn.WriteJSON(map[string]any{"type": "auth_invalid", "message": "Invalid access token"})
		return
	}
	if err := conn.WriteJSON(map[string]any{"type": "auth_ok", "ha_version": "2024.5.0"}); err != nil {
		return
	}

	var sub map[string]any
	if err := conn.ReadJSON(&sub); err != nil {
		return
	}
	id := sub["id"]
	if err := conn.WriteJSON(map[string]any{"id": id, "type": "result", "success": true}); err != nil {
		return
	}
	h.subOnce.Do(func() { close(h.subscribed) })

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg["type"] == "unsubscribe_events" {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev := <-h.events:
			err := conn.WriteJSON(map[string]any{
				"id":   id,
				"type": "event",
				"event": map[string]any{
					"event_type": "state_changed",
					"data": map[string]any{
						"entity_id": ev.EntityID,
						"old_state": nil,
						"new_state": map[string]any{
							"entity_id":    ev.NewState.EntityID,
							"state":        ev.NewState.State,
							"last_changed": ev.NewState.LastChanged.UTC().Format(isoMillis),
							"attributes":   attributes(*ev.NewState),
						},
					},
				},
			})
			if err != nil {
				return
			}
		}
	}
}

func attributes(rec model.RawStateRecord) map[string]any {
	if rec.Attributes == nil {
		return map[string]any{}
	}
	return rec.Attributes
}

func writeJSON(w http.ResponseWriter, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}
