package hass

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/penwyp/go-ha-timeline/internal/core/model"
	"github.com/penwyp/go-ha-timeline/internal/util"
)

const handshakeTimeout = 10 * time.Second

// Subscriber streams state_changed events over the websocket API.
type Subscriber struct {
	wsURL  string
	token  string
	dialer *websocket.Dialer

	// OnDisconnect, when set, is called once if the stream ends for any
	// reason other than unsubscribe.
	OnDisconnect func(err error)
}

// NewSubscriber derives the websocket endpoint from the client's base URL.
func NewSubscriber(c *Client) (*Subscriber, error) {
	u, err := url.Parse(c.BaseURL())
	if err != nil {
		return nil, fmt.Errorf("invalid home assistant url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/websocket"
	return &Subscriber{
		wsURL: u.String(),
		token: c.Token(),
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
	}, nil
}

// Subscribe authenticates, subscribes to state_changed and dispatches every
// event whose entity passes predicate to onEvent, one at a time in delivery
// order. The returned function unsubscribes; it is idempotent and returns
// only after the last onEvent call has finished. It must not be called from
// inside onEvent.
func (s *Subscriber) Subscribe(ctx context.Context, predicate func(entityID string) bool, onEvent func(model.StateChangedEvent)) (func(), error) {
	conn, _, err := s.dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.wsURL, err)
	}

	const subscriptionID = 1
	if err := s.handshake(conn, subscriptionID); err != nil {
		conn.Close()
		return nil, err
	}
	util.LogInfof("hass: subscribed to %s events", eventStateChanged)

	var (
		done      = make(chan struct{})
		closing   = make(chan struct{})
		closeOnce sync.Once
	)

	go func() {
		defer close(done)
		err := s.readLoop(conn, predicate, onEvent)
		select {
		case <-closing:
			return
		default:
		}
		util.LogWarnf("hass: event stream ended: %v", err)
		if s.OnDisconnect != nil {
			s.OnDisconnect(err)
		}
	}()

	unsubscribe := func() {
		closeOnce.Do(func() {
			close(closing)
			_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
			_ = conn.WriteJSON(unsubscribeMessage{ID: subscriptionID + 1, Type: msgUnsubscribeEvents, Subscription: subscriptionID})
			conn.Close()
			<-done
			util.LogDebug("hass: unsubscribed from events")
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-done:
		}
	}()

	return unsubscribe, nil
}

func (s *Subscriber) handshake(conn *websocket.Conn, subscriptionID int64) error {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	msg, err := readMessage(conn)
	if err != nil {
		return fmt.Errorf("read auth request: %w", err)
	}
	if msg.Type != msgAuthRequired {
		return fmt.Errorf("expected %s, got %q", msgAuthRequired, msg.Type)
	}

	if err := conn.WriteJSON(authMessage{Type: msgAuth, AccessToken: s.token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}
	if msg, err = readMessage(conn); err != nil {
		return fmt.Errorf("read auth result: %w", err)
	}
	switch msg.Type {
	case msgAuthOK:
	case msgAuthInvalid:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg.Message)
	default:
		return fmt.Errorf("unexpected auth reply %q", msg.Type)
	}

	sub := subscribeMessage{ID: subscriptionID, Type: msgSubscribeEvents, EventType: eventStateChanged}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}
	for {
		msg, err := readMessage(conn)
		if err != nil {
			return fmt.Errorf("read subscribe result: %w", err)
		}
		if msg.Type != msgResult || msg.ID != subscriptionID {
			continue
		}
		if !msg.Success {
			reason := "unknown error"
			if msg.Error != nil {
				reason = msg.Error.Code + ": " + msg.Error.Message
			}
			return fmt.Errorf("subscribe rejected: %s", reason)
		}
		return nil
	}
}

func (s *Subscriber) readLoop(conn *websocket.Conn, predicate func(string) bool, onEvent func(model.StateChangedEvent)) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg incoming
		if err := sonic.Unmarshal(data, &msg); err != nil {
			util.LogDebugf("hass: skipping undecodable message: %v", err)
			continue
		}
		if msg.Type != msgEvent || msg.Event == nil || msg.Event.EventType != eventStateChanged {
			continue
		}
		ev := msg.Event.Data
		if ev.EntityID == "" {
			continue
		}
		if predicate != nil && !predicate(ev.EntityID) {
			continue
		}
		if ev.NewState != nil && ev.NewState.EntityID == "" {
			ev.NewState.EntityID = ev.EntityID
		}
		onEvent(ev)
	}
}

func readMessage(conn *websocket.Conn) (incoming, error) {
	var msg incoming
	_, data, err := conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}
