package notifications

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *RoomHub, userID uint, username string) *Client {
	client := &Client{
		Hub:      hub,
		Send:     make(chan []byte, 10),
		UserID:   userID,
		Username: username,
	}
	if err := hub.RegisterClient(client); err != nil {
		panic(err)
	}
	return client
}

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case msg := <-c.Send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestRoomHub_RegisterUnregister(t *testing.T) {
	hub := NewRoomHub()
	client := newTestClient(hub, 1, "amira")

	hub.mu.RLock()
	assert.Len(t, hub.userConns[1], 1)
	hub.mu.RUnlock()
	assert.Equal(t, 1, hub.ConnCount())

	hub.UnregisterClient(client)
	hub.mu.RLock()
	assert.Empty(t, hub.userConns[1])
	hub.mu.RUnlock()
	assert.Equal(t, 0, hub.ConnCount())

	_ = hub.Shutdown(context.Background())
}

func TestRoomHub_BroadcastToRoom_IncludesSenderWhenNotExcluded(t *testing.T) {
	hub := NewRoomHub()
	sender := newTestClient(hub, 1, "amira")
	other := newTestClient(hub, 2, "karim")
	outsider := newTestClient(hub, 3, "nadia")

	hub.Join(sender, RoomGlobalChat)
	hub.Join(other, RoomGlobalChat)
	// outsider never joins

	frame, err := NewEvent(EventReceiveMessage, MessagePayload{ID: 1, Content: "hello", UserID: 1, Username: "amira"})
	require.NoError(t, err)

	// Chat messages go to the whole room, sender included.
	hub.BroadcastToRoom(RoomGlobalChat, frame, "")

	assert.Len(t, drain(sender), 1)
	assert.Len(t, drain(other), 1)
	assert.Empty(t, drain(outsider))

	_ = hub.Shutdown(context.Background())
}

func TestRoomHub_BroadcastToRoom_ExcludesSender(t *testing.T) {
	hub := NewRoomHub()
	sender := newTestClient(hub, 1, "amira")
	other := newTestClient(hub, 2, "karim")

	hub.Join(sender, RoomGlobalChat)
	hub.Join(other, RoomGlobalChat)

	frame, err := NewEvent(EventUserTyping, PresencePayload{UserID: 1, Username: "amira"})
	require.NoError(t, err)

	// Typing indicators skip the connection that produced them.
	hub.BroadcastToRoom(RoomGlobalChat, frame, sender.ConnID)

	assert.Empty(t, drain(sender))

	received := drain(other)
	require.Len(t, received, 1)
	var event Event
	require.NoError(t, json.Unmarshal(received[0], &event))
	assert.Equal(t, EventUserTyping, event.Type)

	_ = hub.Shutdown(context.Background())
}

func TestRoomHub_BroadcastAll_ReachesEveryConnection(t *testing.T) {
	hub := NewRoomHub()
	inChat := newTestClient(hub, 1, "amira")
	inGraffiti := newTestClient(hub, 2, "karim")
	inNoRoom := newTestClient(hub, 3, "nadia")

	hub.Join(inChat, RoomGlobalChat)
	hub.Join(inGraffiti, RoomGraffiti)

	frame, err := NewEvent(EventRadioUpdated, RadioPayload{YoutubeID: "dQw4w9WgXcQ", Version: 2})
	require.NoError(t, err)

	// Radio updates ignore rooms entirely.
	hub.BroadcastAll(frame)

	assert.Len(t, drain(inChat), 1)
	assert.Len(t, drain(inGraffiti), 1)
	assert.Len(t, drain(inNoRoom), 1)

	_ = hub.Shutdown(context.Background())
}

func TestRoomHub_RoomScoping(t *testing.T) {
	hub := NewRoomHub()
	painter := newTestClient(hub, 1, "amira")
	chatter := newTestClient(hub, 2, "karim")

	hub.Join(painter, RoomGraffiti)
	hub.Join(chatter, RoomGlobalChat)

	assert.True(t, hub.InRoom(painter, RoomGraffiti))
	assert.False(t, hub.InRoom(chatter, RoomGraffiti))

	frame, err := NewEvent(EventDraw, json.RawMessage(`{"x":1,"y":2}`))
	require.NoError(t, err)
	hub.BroadcastToRoom(RoomGraffiti, frame, "")

	assert.Len(t, drain(painter), 1)
	assert.Empty(t, drain(chatter))

	_ = hub.Shutdown(context.Background())
}

func TestRoomHub_MultiDeviceSupport(t *testing.T) {
	hub := NewRoomHub()
	userID := uint(42)

	tab1 := newTestClient(hub, userID, "amira")
	tab2 := newTestClient(hub, userID, "amira")

	hub.mu.RLock()
	assert.Len(t, hub.userConns[userID], 2)
	hub.mu.RUnlock()

	hub.Join(tab1, RoomGlobalChat)
	hub.Join(tab2, RoomGlobalChat)

	frame, err := NewEvent(EventReceiveMessage, MessagePayload{ID: 1, Content: "hi", UserID: userID})
	require.NoError(t, err)

	// Excluding the sending tab still delivers to the user's other tab.
	hub.BroadcastToRoom(RoomGlobalChat, frame, tab1.ConnID)

	assert.Empty(t, drain(tab1))
	assert.Len(t, drain(tab2), 1)

	// Closing one tab keeps the user registered through the other.
	hub.UnregisterClient(tab1)
	hub.mu.RLock()
	assert.Len(t, hub.userConns[userID], 1)
	hub.mu.RUnlock()

	_ = hub.Shutdown(context.Background())
}

func TestRoomHub_UnregisterCleansUpRooms(t *testing.T) {
	hub := NewRoomHub()
	client := newTestClient(hub, 1, "amira")
	hub.Join(client, RoomGlobalChat)
	hub.Join(client, RoomGraffiti)

	hub.UnregisterClient(client)

	assert.Equal(t, 0, hub.RoomSize(RoomGlobalChat))
	assert.Equal(t, 0, hub.RoomSize(RoomGraffiti))
	assert.False(t, hub.InRoom(client, RoomGlobalChat))
}

func TestRoomHub_ConnectionLimit(t *testing.T) {
	hub := NewRoomHub()
	for i := 0; i < maxConnsPerUser; i++ {
		newTestClient(hub, 7, "amira")
	}

	err := hub.RegisterClient(&Client{Hub: hub, Send: make(chan []byte, 10), UserID: 7, Username: "amira"})
	assert.Error(t, err)
}
