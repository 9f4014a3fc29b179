// Package hub pairs anonymous users and relays WebRTC signaling between the
// two sides of a match. It holds all state in memory: a registry of live
// connections, an insertion-ordered waiting queue, and a symmetric match
// table. Nothing survives a restart.
package hub

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Inbound event types sent by clients.
const (
	EventFindMatch    = "find_match"
	EventSkip         = "skip"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice_candidate"
	EventChatMessage  = "chat_message"
)

// Outbound event types sent to clients.
const (
	EventConnected           = "connected"
	EventOnlineCount         = "online_count"
	EventWaiting             = "waiting"
	EventMatchFound          = "match_found"
	EventPartnerDisconnected = "partner_disconnected"
)

// ClientEvent is a decoded inbound WebSocket message.
type ClientEvent struct {
	Type string `json:"type"`

	// find_match fields.
	Interests       []string `json:"interests,omitempty"`
	Gender          string   `json:"user_gender,omitempty"`
	PreferredGender string   `json:"gender_pref,omitempty"`

	// offer / answer / ice_candidate payload, forwarded verbatim.
	Data json.RawMessage `json:"data,omitempty"`

	// chat_message text, forwarded verbatim.
	Message string `json:"message,omitempty"`
}

// ParseClientEvent decodes and validates an inbound message. The returned
// error describes why the payload was rejected; callers drop the event and
// keep the connection open.
func ParseClientEvent(raw []byte) (ClientEvent, error) {
	var ev ClientEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ClientEvent{}, fmt.Errorf("malformed event: %w", err)
	}
	if strings.TrimSpace(ev.Type) == "" {
		return ClientEvent{}, fmt.Errorf("malformed event: missing type")
	}
	return ev, nil
}

// ServerEvent is an outbound WebSocket message. A single struct covers every
// outbound kind; omitempty keeps each wire shape minimal.
type ServerEvent struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`

	UserID      string          `json:"user_id,omitempty"`
	Count       *int            `json:"count,omitempty"`
	Message     string          `json:"message,omitempty"`
	PartnerID   string          `json:"partner_id,omitempty"`
	IsInitiator *bool           `json:"is_initiator,omitempty"`
	From        string          `json:"from,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// nowFunc stamps outbound events. Swapped in tests.
type nowFunc func() time.Time

func (f nowFunc) timestamp() string {
	return f().UTC().Format(time.RFC3339Nano)
}

func realNow() time.Time { return time.Now() }

func newConnectedEvent(now nowFunc, userID string) ServerEvent {
	return ServerEvent{Type: EventConnected, Timestamp: now.timestamp(), UserID: userID}
}

func newOnlineCountEvent(now nowFunc, count int) ServerEvent {
	return ServerEvent{Type: EventOnlineCount, Timestamp: now.timestamp(), Count: &count}
}

func newWaitingEvent(now nowFunc, message string) ServerEvent {
	return ServerEvent{Type: EventWaiting, Timestamp: now.timestamp(), Message: message}
}

func newMatchFoundEvent(now nowFunc, partnerID string, isInitiator bool) ServerEvent {
	return ServerEvent{Type: EventMatchFound, Timestamp: now.timestamp(), PartnerID: partnerID, IsInitiator: &isInitiator}
}

func newPartnerDisconnectedEvent(now nowFunc) ServerEvent {
	return ServerEvent{Type: EventPartnerDisconnected, Timestamp: now.timestamp()}
}

func newSignalEvent(now nowFunc, kind, from string, data json.RawMessage) ServerEvent {
	return ServerEvent{Type: kind, Timestamp: now.timestamp(), From: from, Data: data}
}

func newChatEvent(now nowFunc, from, message string) ServerEvent {
	return ServerEvent{Type: EventChatMessage, Timestamp: now.timestamp(), From: from, Message: message}
}
