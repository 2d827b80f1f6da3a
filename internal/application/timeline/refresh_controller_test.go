package timeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-ha-timeline/internal/core/model"
)

func TestRefreshControllerFetch(t *testing.T) {
	card := testCard()
	require.NoError(t, card.Validate())

	t.Run("ok", func(t *testing.T) {
		history := &fakeHistory{payloads: []model.HistoryPayload{historyOf(rec("light.hall", "on", 1))}}
		metrics := newRecorder()
		rc := NewRefreshController(history, metrics, clockwork.NewFakeClock())

		payload, err := rc.Fetch(context.Background(), card)
		require.NoError(t, err)
		assert.Len(t, payload.Records, 1)
		assert.Equal(t, 1, metrics.Count("fetch_ok"))
	})

	t.Run("error is wrapped", func(t *testing.T) {
		boom := errors.New("connection refused")
		metrics := newRecorder()
		rc := NewRefreshController(&fakeHistory{err: boom}, metrics, clockwork.NewFakeClock())

		_, err := rc.Fetch(context.Background(), card)
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "history fetch failed")
		assert.Equal(t, 1, metrics.Count("fetch_error"))
	})

	t.Run("canceled", func(t *testing.T) {
		metrics := newRecorder()
		rc := NewRefreshController(&fakeHistory{gate: make(chan struct{})}, metrics, clockwork.NewFakeClock())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := rc.Fetch(ctx, card)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, metrics.Count("fetch_canceled"))
	})

	t.Run("concurrent fetches share one request", func(t *testing.T) {
		gate := make(chan struct{})
		history := &fakeHistory{gate: gate, payloads: []model.HistoryPayload{historyOf()}}
		rc := NewRefreshController(history, newRecorder(), clockwork.NewFakeClock())

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := rc.Fetch(context.Background(), card)
				assert.NoError(t, err)
			}()
		}
		assert.Eventually(t, func() bool { return history.Calls() == 1 }, time.Second, time.Millisecond)
		time.Sleep(10 * time.Millisecond)
		close(gate)
		wg.Wait()
		assert.LessOrEqual(t, history.Calls(), 5)
		assert.GreaterOrEqual(t, history.Calls(), 1)
	})
}

func TestStateManager(t *testing.T) {
	sm := NewStateManager()
	assert.Equal(t, PhaseUninitialized, sm.Phase())
	assert.NotNil(t, sm.Items())

	items := []model.TimelineItem{{ID: "light.hall", RawState: "on"}}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sm.SetError(errors.New("fetch failed"))
	sm.SetItems(items, at)
	items[0].RawState = "mutated"

	got := sm.Items()
	require.Len(t, got, 1)
	assert.Equal(t, "on", got[0].RawState)
	got[0].RawState = "mutated"
	assert.Equal(t, "on", sm.Items()[0].RawState)

	st := sm.Status()
	assert.Equal(t, at, st.LastUpdate)
	assert.NoError(t, st.LastError)

	sm.SetPhase(PhaseReady)
	sm.SetLiveSubscribed(true)
	sm.SetLanguage("de")
	st = sm.Status()
	assert.Equal(t, PhaseReady, st.Phase)
	assert.True(t, st.LiveSubscribed)
	assert.Equal(t, "de", st.Language)
}
