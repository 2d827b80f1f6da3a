package hass

import "github.com/penwyp/go-ha-timeline/internal/core/model"

// Websocket message types of the Home Assistant API.
const (
	msgAuthRequired      = "auth_required"
	msgAuth              = "auth"
	msgAuthOK            = "auth_ok"
	msgAuthInvalid       = "auth_invalid"
	msgSubscribeEvents   = "subscribe_events"
	msgUnsubscribeEvents = "unsubscribe_events"
	msgResult            = "result"
	msgEvent             = "event"

	eventStateChanged = "state_changed"
)

type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

type subscribeMessage struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type"`
}

type unsubscribeMessage struct {
	ID           int64  `json:"id"`
	Type         string `json:"type"`
	Subscription int64  `json:"subscription"`
}

type resultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// incoming covers every server message we care about.
type incoming struct {
	ID      int64        `json:"id"`
	Type    string       `json:"type"`
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Error   *resultError `json:"error"`
	Event   *struct {
		EventType string                  `json:"event_type"`
		Data      model.StateChangedEvent `json:"data"`
	} `json:"event"`
}
