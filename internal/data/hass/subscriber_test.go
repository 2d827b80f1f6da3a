package hass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-ha-timeline/internal/core/model"
)

// fakeHA speaks just enough of the websocket API for the subscriber.
type fakeHA struct {
	token  string
	events []map[string]any

	mu           sync.Mutex
	unsubscribed bool
	subscribed   chan struct{}
}

func (f *fakeHA) handler(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/websocket" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_ = conn.WriteJSON(map[string]any{"type": "auth_required", "ha_version": "2024.5.0"})
		var auth map[string]any
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		if auth["access_token"] != f.token {
			_ = conn.WriteJSON(map[string]any{"type": "auth_invalid", "message": "Invalid access token"})
			return
		}
		_ = conn.WriteJSON(map[string]any{"type": "auth_ok"})

		var sub map[string]any
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]any{"id": sub["id"], "type": "result", "success": true})
		close(f.subscribed)

		for _, ev := range f.events {
			_ = conn.WriteJSON(map[string]any{
				"id":    sub["id"],
				"type":  "event",
				"event": map[string]any{"event_type": "state_changed", "data": ev},
			})
		}

		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg["type"] == "unsubscribe_events" {
				f.mu.Lock()
				f.unsubscribed = true
				f.mu.Unlock()
			}
		}
	}
}

func stateEvent(id, state string) map[string]any {
	return map[string]any{
		"entity_id": id,
		"old_state": nil,
		"new_state": map[string]any{"entity_id": id, "state": state, "last_changed": "2024-05-01T10:00:00Z", "attributes": map[string]any{}},
	}
}

func newSubscriber(t *testing.T, f *fakeHA, token string) *Subscriber {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{URL: srv.URL, Token: token})
	require.NoError(t, err)
	s, err := NewSubscriber(c)
	require.NoError(t, err)
	return s
}

func TestSubscribeDeliversMatchingEventsInOrder(t *testing.T) {
	f := &fakeHA{
		token:      "secret",
		subscribed: make(chan struct{}),
		events: []map[string]any{
			stateEvent("light.hall", "on"),
			stateEvent("sensor.other", "1"),
			{"entity_id": "light.hall", "old_state": nil, "new_state": nil},
			stateEvent("light.hall", "off"),
		},
	}
	s := newSubscriber(t, f, "secret")

	received := make(chan model.StateChangedEvent, 10)
	unsubscribe, err := s.Subscribe(context.Background(),
		func(id string) bool { return id == "light.hall" },
		func(ev model.StateChangedEvent) { received <- ev })
	require.NoError(t, err)

	var got []model.StateChangedEvent
	for len(got) < 3 {
		select {
		case ev := <-received:
			got = append(got, ev)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d events", len(got))
		}
	}

	require.NotNil(t, got[0].NewState)
	assert.Equal(t, "on", got[0].NewState.State)
	assert.Nil(t, got[1].NewState, "removed entity arrives with a nil new state")
	assert.Equal(t, "off", got[2].NewState.State)
	assert.Equal(t, "light.hall", got[2].NewState.EntityID)

	unsubscribe()
	unsubscribe()

	select {
	case ev := <-received:
		t.Fatalf("unexpected event after unsubscribe: %+v", ev)
	default:
	}

	assert.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.unsubscribed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubscribeRejectsBadToken(t *testing.T) {
	f := &fakeHA{token: "secret", subscribed: make(chan struct{})}
	s := newSubscriber(t, f, "wrong")

	_, err := s.Subscribe(context.Background(), nil, func(model.StateChangedEvent) {})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSubscribeStopsOnContextCancel(t *testing.T) {
	f := &fakeHA{token: "secret", subscribed: make(chan struct{})}
	s := newSubscriber(t, f, "secret")

	disconnected := make(chan error, 1)
	s.OnDisconnect = func(err error) { disconnected <- err }

	ctx, cancel := context.WithCancel(context.Background())
	unsubscribe, err := s.Subscribe(ctx, nil, func(model.StateChangedEvent) {})
	require.NoError(t, err)

	cancel()
	assert.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.unsubscribed
	}, 2*time.Second, 10*time.Millisecond)
	unsubscribe()

	select {
	case err := <-disconnected:
		t.Fatalf("cancellation must not be reported as a disconnect: %v", err)
	default:
	}
}

func TestNewSubscriberScheme(t *testing.T) {
	c, err := NewClient(Config{URL: "https://ha.example.com/base"})
	require.NoError(t, err)
	s, err := NewSubscriber(c)
	require.NoError(t, err)
	assert.Equal(t, "wss://ha.example.com/base/api/websocket", s.wsURL)
}
