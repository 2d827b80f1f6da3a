package hass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const historyBody = `[
  [
    {"entity_id": "sensor.temp", "state": "21.0", "last_changed": "2024-05-01T10:00:00.000Z",
     "attributes": {"unit_of_measurement": "°C", "friendly_name": "Temp"}},
    {"state": "21.5", "last_changed": "2024-05-01T11:00:00.000Z"}
  ],
  [
    {"entity_id": "light.hall", "state": "on", "last_changed": "2024-05-01T10:30:00.123456+00:00", "attributes": {}}
  ]
]`

func newTestClient(t *testing.T, handler http.HandlerFunc, clock clockwork.Clock) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{URL: srv.URL + "/", Token: "secret", Timeout: 5 * time.Second, Clock: clock})
	require.NoError(t, err)
	return c
}

func TestFetchHistory(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	var gotPath, gotQuery, gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(historyBody))
	}, clock)

	payload, err := c.FetchHistory(context.Background(), []string{"sensor.temp", "light.hall"}, 2)
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "/api/history/period/2024-05-01T10:00:00.123Z", gotPath)
	assert.Contains(t, gotQuery, "filter_entity_id=sensor.temp%2Clight.hall")
	assert.Contains(t, gotQuery, "end_time=2024-05-01T12%3A00%3A00.123Z")

	assert.True(t, payload.WindowStart.Equal(time.Date(2024, 5, 1, 10, 0, 0, 123000000, time.UTC)))
	assert.True(t, payload.WindowEnd.Equal(time.Date(2024, 5, 1, 12, 0, 0, 123000000, time.UTC)))

	require.Len(t, payload.Records, 2)
	require.Len(t, payload.Records[0], 2)
	assert.Equal(t, "sensor.temp", payload.Records[0][1].EntityID, "record inherits its group id")
	assert.Equal(t, "°C", payload.Records[0][0].Attr("unit_of_measurement"))
	assert.True(t, payload.Records[1][0].LastChanged.Equal(time.Date(2024, 5, 1, 10, 30, 0, 123456000, time.UTC)))
}

func TestFetchHistoryErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{"unauthorized", http.StatusUnauthorized, "", ErrUnauthorized},
		{"server error", http.StatusInternalServerError, "boom", ErrUnexpectedStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, nil)
			_, err := c.FetchHistory(context.Background(), []string{"a.b"}, 1)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}, nil)
		_, err := c.FetchHistory(context.Background(), []string{"a.b"}, 1)
		require.Error(t, err)
	})
}

func TestStatesAndLanguage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/states":
			_, _ = w.Write([]byte(`[{"entity_id":"light.hall","state":"off","attributes":{"friendly_name":"Hall"}}, null]`))
		case "/api/config":
			_, _ = w.Write([]byte(`{"language":"de","time_zone":"Europe/Berlin","version":"2024.5.0"}`))
		default:
			http.NotFound(w, r)
		}
	}, nil)

	states, err := c.States(context.Background())
	require.NoError(t, err)
	require.Contains(t, states, "light.hall")
	assert.Equal(t, "Hall", states["light.hall"].Attr("friendly_name"))

	lang, err := c.Language(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "de", lang)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)

	c, err := NewClient(Config{URL: " http://ha.local:8123/ "})
	require.NoError(t, err)
	assert.Equal(t, "http://ha.local:8123", c.BaseURL())
	assert.True(t, strings.HasPrefix(c.BaseURL(), "http://"))
}
