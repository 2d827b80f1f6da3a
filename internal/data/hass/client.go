// Package hass talks to the Home Assistant REST and websocket APIs.
package hass

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jonboulle/clockwork"

	"github.com/penwyp/go-ha-timeline/internal/core/model"
	"github.com/penwyp/go-ha-timeline/internal/util"
)

var (
	// ErrUnauthorized is returned when the access token is rejected.
	ErrUnauthorized = errors.New("home assistant rejected the access token")
	// ErrUnexpectedStatus wraps any other non-200 response.
	ErrUnexpectedStatus = errors.New("unexpected status from home assistant")
)

const defaultTimeout = 30 * time.Second

// isoMillis matches the format the history API echoes back for the window
// start, so the range anchor compares equal.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Config configures a Client.
type Config struct {
	URL        string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Clock      clockwork.Clock
}

// Client is a minimal Home Assistant REST client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	clock      clockwork.Clock
}

// NewClient validates cfg and returns a client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, fmt.Errorf("home assistant url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid home assistant url %q: %w", base, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Client{
		baseURL:    base,
		token:      cfg.Token,
		httpClient: cfg.HTTPClient,
		clock:      cfg.Clock,
	}, nil
}

// BaseURL returns the normalised server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token returns the access token, used by the websocket subscriber.
func (c *Client) Token() string {
	return c.token
}

// FetchHistory returns the recorded states of entityIDs for the last hours.
// Groups are per entity in API order; records without an entity id inherit
// the id of their group.
func (c *Client) FetchHistory(ctx context.Context, entityIDs []string, hours float64) (model.HistoryPayload, error) {
	end := c.clock.Now().UTC().Truncate(time.Millisecond)
	start := end.Add(-time.Duration(hours * float64(time.Hour))).Truncate(time.Millisecond)

	q := url.Values{}
	q.Set("filter_entity_id", strings.Join(entityIDs, ","))
	q.Set("end_time", end.Format(isoMillis))
	path := "/api/history/period/" + url.PathEscape(start.Format(isoMillis)) + "?" + q.Encode()

	var groups [][]model.RawStateRecord
	if err := c.getJSON(ctx, path, &groups); err != nil {
		return model.HistoryPayload{}, fmt.Errorf("fetch history: %w", err)
	}

	total := 0
	for _, group := range groups {
		var groupID string
		for i := range group {
			if group[i].EntityID != "" {
				groupID = group[i].EntityID
				break
			}
		}
		for i := range group {
			if group[i].EntityID == "" {
				group[i].EntityID = groupID
			}
		}
		total += len(group)
	}
	util.LogDebugf("hass: fetched %d history records in %d groups for %d entities", total, len(groups), len(entityIDs))

	return model.HistoryPayload{Records: groups, WindowStart: start, WindowEnd: end}, nil
}

// States returns the current state of every entity keyed by entity id.
func (c *Client) States(ctx context.Context) (map[string]*model.RawStateRecord, error) {
	var states []*model.RawStateRecord
	if err := c.getJSON(ctx, "/api/states", &states); err != nil {
		return nil, fmt.Errorf("fetch states: %w", err)
	}
	out := make(map[string]*model.RawStateRecord, len(states))
	for _, s := range states {
		if s != nil && s.EntityID != "" {
			out[s.EntityID] = s
		}
	}
	return out, nil
}

type serverConfig struct {
	Language string `json:"language"`
	TimeZone string `json:"time_zone"`
	Version  string `json:"version"`
}

// Language returns the configured language of the server, "" if unknown.
func (c *Client) Language(ctx context.Context) (string, error) {
	var cfg serverConfig
	if err := c.getJSON(ctx, "/api/config", &cfg); err != nil {
		return "", fmt.Errorf("fetch server config: %w", err)
	}
	return cfg.Language, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := sonic.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
