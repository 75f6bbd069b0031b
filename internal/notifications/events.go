// Package notifications provides real-time event delivery over websockets.
package notifications

import (
	"encoding/json"
	"time"
)

// Room names. Rooms are a fixed set; clients join them explicitly and only
// members receive room-scoped events.
const (
	RoomGlobalChat = "global_chat"
	RoomGraffiti   = "graffiti_room"
)

// Client-to-server event types.
const (
	EventJoinChat      = "join_chat"
	EventJoinGraffiti  = "join_graffiti"
	EventSendMessage   = "send_message"
	EventTyping        = "typing"
	EventSendBuzz      = "send_buzz"
	EventUpdateRadio   = "update_radio"
	EventDraw          = "draw"
	EventClearGraffiti = "clear_graffiti"
)

// Server-to-client event types. Draw and clear_graffiti are echoed to the
// room under their inbound names.
const (
	EventReceiveMessage = "receive_message"
	EventUserTyping     = "user_typing"
	EventUserBuzz       = "user_buzz"
	EventRadioUpdated   = "radio_updated"
	EventRadioConflict  = "radio_conflict"
	EventError          = "error"
)

// Event is the wire envelope for every realtime frame in both directions.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals a payload into an Event frame ready for the wire.
func NewEvent(eventType string, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(Event{Type: eventType, Payload: raw})
}

// MessagePayload is a chat message delivered to the global chat room.
type MessagePayload struct {
	ID        uint      `json:"id"`
	Content   string    `json:"content"`
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// SendMessagePayload is the inbound body of a send_message event.
type SendMessagePayload struct {
	Content string `json:"content"`
}

// PresencePayload identifies the user behind a typing or buzz event.
type PresencePayload struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

// UpdateRadioPayload is the inbound body of an update_radio event. Version is
// the version the client last saw; a stale version loses the update.
type UpdateRadioPayload struct {
	YoutubeID string `json:"youtube_id"`
	Version   uint64 `json:"version"`
}

// RadioPayload is the authoritative radio state broadcast to every
// connection after a successful update.
type RadioPayload struct {
	YoutubeID string    `json:"youtube_id"`
	StartedAt time.Time `json:"started_at"`
	UpdatedBy uint      `json:"updated_by"`
	Version   uint64    `json:"version"`
}

// ErrorPayload carries a user-facing error message on a private error event.
type ErrorPayload struct {
	Message string `json:"message"`
}
