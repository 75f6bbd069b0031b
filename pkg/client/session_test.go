package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"majlis/internal/models"
	"majlis/internal/notifications"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrap_NoToken(t *testing.T) {
	s := NewSession("http://example.invalid", NewMemoryTokenStore(""), Handlers{})

	state, err := s.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateAnonymous, state)
	assert.Equal(t, StateAnonymous, s.State())
}

func TestBootstrap_ValidToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/me", r.URL.Path)
		require.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(models.User{ID: 7, Username: "amira"})
	}))
	defer srv.Close()

	s := NewSession(srv.URL, NewMemoryTokenStore("tok-123"), Handlers{})

	state, err := s.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, state)
	require.NotNil(t, s.User())
	assert.Equal(t, "amira", s.User().Username)
}

func TestBootstrap_RejectedTokenIsDiscarded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := NewMemoryTokenStore("expired-tok")
	s := NewSession(srv.URL, store, Handlers{})

	state, err := s.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateAnonymous, state)

	token, _ := store.Load()
	assert.Empty(t, token)
}

func TestBootstrap_ResolvesOnce(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(models.User{ID: 7, Username: "amira"})
	}))
	defer srv.Close()

	s := NewSession(srv.URL, NewMemoryTokenStore("tok"), Handlers{})

	_, err := s.Bootstrap(context.Background())
	require.NoError(t, err)
	state, err := s.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, state)
	assert.Equal(t, 1, calls)
}

func TestGuardRoute(t *testing.T) {
	s := NewSession("http://example.invalid", NewMemoryTokenStore(""), Handlers{})
	_, err := s.Bootstrap(context.Background())
	require.NoError(t, err)

	route, ok := s.GuardRoute("/forum")
	assert.True(t, ok)
	assert.Equal(t, "/forum", route)

	for _, protected := range []string{"/chat", "/graffiti", "/profile", "/radio"} {
		route, ok := s.GuardRoute(protected)
		assert.False(t, ok, protected)
		assert.Equal(t, LoginRoute, route)
	}

	s.resolve(StateAuthenticated, &models.User{ID: 1})
	route, ok = s.GuardRoute("/chat")
	assert.True(t, ok)
	assert.Equal(t, "/chat", route)
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "amira@example.com", req["email"])
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"token": "fresh-token",
			"user":  models.User{ID: 7, Username: "amira"},
		})
	}))
	defer srv.Close()

	store := NewMemoryTokenStore("")
	s := NewSession(srv.URL, store, Handlers{})

	require.NoError(t, s.Login(context.Background(), "amira@example.com", "Password123!aa"))
	assert.Equal(t, StateAuthenticated, s.State())

	token, _ := store.Load()
	assert.Equal(t, "fresh-token", token)
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "بيانات الاعتماد غير صالحة"})
	}))
	defer srv.Close()

	s := NewSession(srv.URL, NewMemoryTokenStore(""), Handlers{})

	err := s.Login(context.Background(), "amira@example.com", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "بيانات الاعتماد غير صالحة")
	assert.NotEqual(t, StateAuthenticated, s.State())
}

// realtimeStub upgrades /api/ws and records every inbound frame.
type realtimeStub struct {
	srv    *httptest.Server
	frames chan notifications.Event
	conns  chan *websocket.Conn
}

func newRealtimeStub(t *testing.T) *realtimeStub {
	t.Helper()
	stub := &realtimeStub{
		frames: make(chan notifications.Event, 16),
		conns:  make(chan *websocket.Conn, 1),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/ws/ticket", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ticket": "t-1", "expires_in": 30})
	})
	mux.HandleFunc("/api/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ticket") != "t-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		stub.conns <- conn
		for {
			var event notifications.Event
			if err := conn.ReadJSON(&event); err != nil {
				return
			}
			stub.frames <- event
		}
	})

	stub.srv = httptest.NewServer(mux)
	t.Cleanup(stub.srv.Close)
	return stub
}

func (s *realtimeStub) nextFrame(t *testing.T) notifications.Event {
	t.Helper()
	select {
	case event := <-s.frames:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return notifications.Event{}
	}
}

func newConnectedSession(t *testing.T, stub *realtimeStub, handlers Handlers) *Session {
	t.Helper()
	s := NewSession(stub.srv.URL, NewMemoryTokenStore("tok"), handlers)
	s.resolve(StateAuthenticated, &models.User{ID: 7, Username: "amira"})
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConnect_JoinsGlobalChat(t *testing.T) {
	stub := newRealtimeStub(t)
	s := newConnectedSession(t, stub, Handlers{})

	assert.True(t, s.Connected())
	assert.Equal(t, notifications.EventJoinChat, stub.nextFrame(t).Type)
}

func TestConnect_RequiresAuthentication(t *testing.T) {
	stub := newRealtimeStub(t)
	s := NewSession(stub.srv.URL, NewMemoryTokenStore(""), Handlers{})

	err := s.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestSendMessage(t *testing.T) {
	stub := newRealtimeStub(t)
	s := newConnectedSession(t, stub, Handlers{})

	stub.nextFrame(t) // join_chat

	require.NoError(t, s.SendMessage("مرحبا"))
	frame := stub.nextFrame(t)
	assert.Equal(t, notifications.EventSendMessage, frame.Type)

	var payload notifications.SendMessagePayload
	require.NoError(t, json.Unmarshal(frame.Payload, &payload))
	assert.Equal(t, "مرحبا", payload.Content)
}

func TestEmitTyping_Throttled(t *testing.T) {
	stub := newRealtimeStub(t)
	s := newConnectedSession(t, stub, Handlers{})

	stub.nextFrame(t) // join_chat

	sent, err := s.EmitTyping()
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, notifications.EventTyping, stub.nextFrame(t).Type)

	// Second keystroke inside the window stays local.
	sent, err = s.EmitTyping()
	require.NoError(t, err)
	assert.False(t, sent)

	// After the window lapses the next signal goes out again.
	s.mu.Lock()
	s.lastTyping = time.Now().Add(-typingWindow - time.Millisecond)
	s.mu.Unlock()

	sent, err = s.EmitTyping()
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, notifications.EventTyping, stub.nextFrame(t).Type)
}

func TestEmitTyping_FailedWriteKeepsWindow(t *testing.T) {
	stub := newRealtimeStub(t)
	s := NewSession(stub.srv.URL, NewMemoryTokenStore("tok"), Handlers{})
	s.resolve(StateAuthenticated, &models.User{ID: 7, Username: "amira"})

	// Not connected yet: the write fails and the window stays open.
	sent, err := s.EmitTyping()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, sent)

	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	stub.nextFrame(t) // join_chat

	// The very next keystroke goes out immediately.
	sent, err = s.EmitTyping()
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, notifications.EventTyping, stub.nextFrame(t).Type)
}

func TestDispatch_InboundEvents(t *testing.T) {
	messages := make(chan notifications.MessagePayload, 1)
	conflicts := make(chan notifications.RadioPayload, 1)

	stub := newRealtimeStub(t)
	newConnectedSession(t, stub, Handlers{
		OnMessage:       func(p notifications.MessagePayload) { messages <- p },
		OnRadioConflict: func(p notifications.RadioPayload) { conflicts <- p },
	})

	conn := <-stub.conns
	frame, err := notifications.NewEvent(notifications.EventReceiveMessage, notifications.MessagePayload{
		ID: 3, Content: "hello", Username: "karim",
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	select {
	case got := <-messages:
		assert.Equal(t, "hello", got.Content)
		assert.Equal(t, "karim", got.Username)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message callback")
	}

	frame, err = notifications.NewEvent(notifications.EventRadioConflict, notifications.RadioPayload{
		YoutubeID: "winner12345", Version: 9,
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	select {
	case got := <-conflicts:
		assert.Equal(t, uint64(9), got.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for conflict callback")
	}
}

func TestEmitWithoutConnection(t *testing.T) {
	s := NewSession("http://example.invalid", NewMemoryTokenStore(""), Handlers{})
	assert.ErrorIs(t, s.SendMessage("x"), ErrNotConnected)
	assert.ErrorIs(t, s.JoinGraffiti(), ErrNotConnected)
}
