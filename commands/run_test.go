package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-ha-timeline/internal/core/model"
	"github.com/penwyp/go-ha-timeline/internal/testing/fixtures"
)

// resetFlags undoes what earlier command runs left in the shared flag sets.
func resetFlags(t *testing.T) {
	t.Helper()
	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	for _, c := range append([]*cobra.Command{rootCmd}, rootCmd.Commands()...) {
		reset(c.Flags())
		reset(c.PersistentFlags())
	}
	outputFormat = "text"
	overrides = func(*model.CardConfig) error { return nil }
	onListening = nil

	t.Setenv("HASS_URL", "")
	t.Setenv("HASS_TOKEN", "")
}

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func writeConfig(t *testing.T, url, token, card string) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`home_assistant:
  url: %s
  token: %s
log:
  file: %s
timezone: UTC
card:
%s`, url, token, filepath.Join(dir, "logs", "app.log"), card)
	path := filepath.Join(dir, "timeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const hallCard = `  title: Hall
  entities:
    - light.hall
`

func hallHistory(ha *fixtures.HomeAssistant) {
	now := time.Now()
	attrs := map[string]any{"friendly_name": "Hall light"}
	ha.AddHistory(
		model.RawStateRecord{EntityID: "light.hall", State: "on", LastChanged: now.Add(-30 * time.Minute), Attributes: attrs},
		model.RawStateRecord{EntityID: "light.hall", State: "off", LastChanged: now.Add(-10 * time.Minute), Attributes: attrs},
	)
}

func TestShowJSON(t *testing.T) {
	resetFlags(t)
	ha := fixtures.NewHomeAssistant(t, "secret")
	hallHistory(ha)
	path := writeConfig(t, ha.URL(), "secret", hallCard)

	out, err := execute(t, context.Background(), "--config", path, "--output", "json")
	require.NoError(t, err)

	var items []map[string]any
	require.NoError(t, sonic.UnmarshalString(out, &items))
	require.Len(t, items, 2)
	assert.Equal(t, "light.hall", items[0]["id"])
	assert.Equal(t, "off", items[0]["raw_state"], "newest first")
	assert.Equal(t, "on", items[1]["raw_state"])
	assert.Equal(t, "Hall light", items[0]["name"])
	assert.Equal(t, 1, ha.Requests("/api/history/period/"))
}

func TestShowText(t *testing.T) {
	resetFlags(t)
	ha := fixtures.NewHomeAssistant(t, "secret")
	hallHistory(ha)
	path := writeConfig(t, ha.URL(), "secret", hallCard)

	out, err := execute(t, context.Background(), "--config", path, "--width", "60")
	require.NoError(t, err)
	assert.Contains(t, out, "Hall light")
	assert.NotContains(t, out, "\033[", "text output is uncolored by default")
}

func TestShowLimitOverride(t *testing.T) {
	resetFlags(t)
	ha := fixtures.NewHomeAssistant(t, "secret")
	hallHistory(ha)
	path := writeConfig(t, ha.URL(), "secret", hallCard)

	out, err := execute(t, context.Background(), "--config", path, "-o", "json", "--limit", "1")
	require.NoError(t, err)

	var items []map[string]any
	require.NoError(t, sonic.UnmarshalString(out, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "off", items[0]["raw_state"])
}

func TestShowUnauthorized(t *testing.T) {
	resetFlags(t)
	ha := fixtures.NewHomeAssistant(t, "secret")
	path := writeConfig(t, ha.URL(), "wrong", hallCard)

	_, err := execute(t, context.Background(), "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load timeline")
}

func TestShowUnknownFormat(t *testing.T) {
	resetFlags(t)
	_, err := execute(t, context.Background(), "--config", "/nonexistent.yaml", "--output", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestValidate(t *testing.T) {
	resetFlags(t)
	path := writeConfig(t, "http://homeassistant.local:8123", "secret", hallCard)

	out, err := execute(t, context.Background(), "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "http://homeassistant.local:8123")
	assert.Contains(t, out, "entities:       1")
	assert.Contains(t, out, "24h, 10 events")
}

func TestValidateRejectsBadCard(t *testing.T) {
	resetFlags(t)
	path := writeConfig(t, "http://homeassistant.local:8123", "secret", "  title: Broken\n  hours: -1\n  entities: []\n")

	_, err := execute(t, context.Background(), "validate", "--config", path)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestServe(t *testing.T) {
	resetFlags(t)
	ha := fixtures.NewHomeAssistant(t, "secret")
	hallHistory(ha)
	path := writeConfig(t, ha.URL(), "secret", hallCard)

	addrs := make(chan net.Addr, 1)
	onListening = func(addr net.Addr) { addrs <- addr }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := execute(t, ctx, "serve", "--config", path, "--listen", "127.0.0.1:0", "--no-reload")
		done <- err
	}()

	var base string
	select {
	case addr := <-addrs:
		base = "http://" + addr.String()
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not start")
	}

	timeline := func() []map[string]any {
		resp, err := http.Get(base + "/api/timeline")
		if err != nil {
			return nil
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		var r struct {
			Items []map[string]any `json:"items"`
		}
		if sonic.Unmarshal(body, &r) != nil {
			return nil
		}
		return r.Items
	}
	require.Len(t, timeline(), 2)

	select {
	case <-ha.Subscribed():
	case <-time.After(10 * time.Second):
		t.Fatal("no live subscription")
	}
	ha.Emit(model.RawStateRecord{EntityID: "light.hall", State: "on", LastChanged: time.Now(), Attributes: map[string]any{"friendly_name": "Hall light"}})

	assert.Eventually(t, func() bool {
		items := timeline()
		return len(items) == 3 && items[0]["raw_state"] == "on"
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "ha_timeline_displayed_items 3")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}
