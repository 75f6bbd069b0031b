// Package client is a small SDK for the majlis API: HTTP auth, route
// guarding, and the realtime event protocol over a single WebSocket
// connection. All session state lives on an explicit Session value rather
// than package globals.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"majlis/internal/models"
	"majlis/internal/notifications"

	"github.com/gorilla/websocket"
)

// State is the session bootstrap state. A session starts Unchecked and
// resolves exactly once to Anonymous or Authenticated; Authenticated is
// terminal for the session's lifetime.
type State int

const (
	StateUnchecked State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unchecked"
	}
}

// LoginRoute is where GuardRoute sends anonymous visitors of protected pages.
const LoginRoute = "/login"

// typingWindow is the minimum gap between outbound typing signals. The
// server does not rate-limit typing on its own timeline; the throttle is
// purely client-enforced.
const typingWindow = 3 * time.Second

var (
	ErrNotAuthenticated = errors.New("client: session is not authenticated")
	ErrNotConnected     = errors.New("client: no live connection")
)

// protectedRoutes require an authenticated session.
var protectedRoutes = map[string]struct{}{
	"/chat":     {},
	"/graffiti": {},
	"/profile":  {},
	"/radio":    {},
}

// TokenStore persists the bearer credential between sessions. Load returns
// an empty string when no token is stored.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// MemoryTokenStore is an in-process TokenStore.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

func NewMemoryTokenStore(initial string) *MemoryTokenStore {
	return &MemoryTokenStore{token: initial}
}

func (m *MemoryTokenStore) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryTokenStore) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryTokenStore) Clear() error {
	return m.Save("")
}

// Handlers are the inbound event callbacks. Nil handlers drop their events.
// All callbacks run on the session's single read goroutine, mirroring a
// single-threaded UI event loop; handlers must not block.
type Handlers struct {
	OnMessage       func(notifications.MessagePayload)
	OnTyping        func(notifications.PresencePayload)
	OnBuzz          func(notifications.PresencePayload)
	OnRadioUpdated  func(notifications.RadioPayload)
	OnRadioConflict func(notifications.RadioPayload)
	OnDraw          func(json.RawMessage)
	OnClearGraffiti func()
	OnError         func(notifications.ErrorPayload)
}

// Session tracks the authenticated identity and the live connection handle.
type Session struct {
	baseURL  string
	httpc    *http.Client
	store    TokenStore
	handlers Handlers

	mu         sync.Mutex
	state      State
	user       *models.User
	conn       *websocket.Conn
	lastTyping time.Time
}

// NewSession builds an Unchecked session against baseURL
// (e.g. "http://localhost:8080"). A nil store gets an empty MemoryTokenStore.
func NewSession(baseURL string, store TokenStore, handlers Handlers) *Session {
	if store == nil {
		store = NewMemoryTokenStore("")
	}
	return &Session{
		baseURL:  strings.TrimRight(baseURL, "/"),
		httpc:    &http.Client{Timeout: 10 * time.Second},
		store:    store,
		handlers: handlers,
	}
}

// State returns the current bootstrap state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the authenticated user, or nil.
func (s *Session) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Bootstrap resolves the session state exactly once: no stored token means
// Anonymous; a stored token is verified against GET /api/auth/me and either
// authenticates the session or is discarded. Calling Bootstrap again
// returns the already-resolved state.
func (s *Session) Bootstrap(ctx context.Context) (State, error) {
	s.mu.Lock()
	if s.state != StateUnchecked {
		state := s.state
		s.mu.Unlock()
		return state, nil
	}
	s.mu.Unlock()

	token, err := s.store.Load()
	if err != nil {
		return StateUnchecked, err
	}
	if token == "" {
		return s.resolve(StateAnonymous, nil), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/auth/me", nil)
	if err != nil {
		return StateUnchecked, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpc.Do(req)
	if err != nil {
		return StateUnchecked, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Rejected token: discard it so the next session starts clean.
		_ = s.store.Clear()
		return s.resolve(StateAnonymous, nil), nil
	}

	var user models.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return StateUnchecked, err
	}
	return s.resolve(StateAuthenticated, &user), nil
}

func (s *Session) resolve(state State, user *models.User) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.user = user
	return state
}

// GuardRoute applies the page-protection policy: protected routes require an
// authenticated session. It returns the route to navigate to and whether the
// requested route was allowed.
func (s *Session) GuardRoute(route string) (string, bool) {
	if _, protected := protectedRoutes[route]; !protected {
		return route, true
	}
	if s.State() == StateAuthenticated {
		return route, true
	}
	return LoginRoute, false
}

// Register creates an account and authenticates the session with the
// returned token.
func (s *Session) Register(ctx context.Context, username, email, password string) error {
	return s.authenticate(ctx, "/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
}

// Login exchanges credentials for a token and authenticates the session.
func (s *Session) Login(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (s *Session) authenticate(ctx context.Context, path string, payload map[string]string) error {
	var result struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	if err := s.postJSON(ctx, path, payload, &result); err != nil {
		return err
	}
	if err := s.store.Save(result.Token); err != nil {
		return err
	}
	s.resolve(StateAuthenticated, &result.User)
	return nil
}

func (s *Session) postJSON(ctx context.Context, path string, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token, _ := s.store.Load(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("client: %s: %s", path, apiErr.Error)
		}
		return fmt.Errorf("client: %s returned status %d", path, resp.StatusCode)
	}
	if result == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// Connect obtains a single-use ticket, dials the realtime endpoint, joins
// global_chat and starts the read loop. The session must be Authenticated.
func (s *Session) Connect(ctx context.Context) error {
	if s.State() != StateAuthenticated {
		return ErrNotAuthenticated
	}

	var issued struct {
		Ticket string `json:"ticket"`
	}
	if err := s.postJSON(ctx, "/api/ws/ticket", map[string]string{}, &issued); err != nil {
		return err
	}

	wsURL := s.baseURL + "/api/ws?ticket=" + issued.Ticket
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		return fmt.Errorf("client: websocket dial: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if err := s.writeEvent(notifications.EventJoinChat, nil); err != nil {
		_ = s.Close()
		return err
	}

	go s.readLoop(conn)
	return nil
}

// Connected reports whether a live connection is open.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Close tears down the live connection. The session state is untouched.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return conn.Close()
}

func (s *Session) readLoop(conn *websocket.Conn) {
	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var event notifications.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			continue
		}
		s.dispatch(event)
	}
}

func (s *Session) dispatch(event notifications.Event) {
	switch event.Type {
	case notifications.EventReceiveMessage:
		if s.handlers.OnMessage != nil {
			var payload notifications.MessagePayload
			if json.Unmarshal(event.Payload, &payload) == nil {
				s.handlers.OnMessage(payload)
			}
		}
	case notifications.EventUserTyping:
		if s.handlers.OnTyping != nil {
			var payload notifications.PresencePayload
			if json.Unmarshal(event.Payload, &payload) == nil {
				s.handlers.OnTyping(payload)
			}
		}
	case notifications.EventUserBuzz:
		if s.handlers.OnBuzz != nil {
			var payload notifications.PresencePayload
			if json.Unmarshal(event.Payload, &payload) == nil {
				s.handlers.OnBuzz(payload)
			}
		}
	case notifications.EventRadioUpdated:
		if s.handlers.OnRadioUpdated != nil {
			var payload notifications.RadioPayload
			if json.Unmarshal(event.Payload, &payload) == nil {
				s.handlers.OnRadioUpdated(payload)
			}
		}
	case notifications.EventRadioConflict:
		if s.handlers.OnRadioConflict != nil {
			var payload notifications.RadioPayload
			if json.Unmarshal(event.Payload, &payload) == nil {
				s.handlers.OnRadioConflict(payload)
			}
		}
	case notifications.EventDraw:
		if s.handlers.OnDraw != nil {
			s.handlers.OnDraw(event.Payload)
		}
	case notifications.EventClearGraffiti:
		if s.handlers.OnClearGraffiti != nil {
			s.handlers.OnClearGraffiti()
		}
	case notifications.EventError:
		if s.handlers.OnError != nil {
			var payload notifications.ErrorPayload
			if json.Unmarshal(event.Payload, &payload) == nil {
				s.handlers.OnError(payload)
			}
		}
	}
}

func (s *Session) writeEvent(eventType string, payload interface{}) error {
	frame, err := notifications.NewEvent(eventType, payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// SendMessage emits a chat message into global_chat.
func (s *Session) SendMessage(content string) error {
	return s.writeEvent(notifications.EventSendMessage, notifications.SendMessagePayload{Content: content})
}

// EmitTyping emits a typing signal at most once per 3-second window.
// It reports whether a signal actually went out.
func (s *Session) EmitTyping() (bool, error) {
	s.mu.Lock()
	if time.Since(s.lastTyping) < typingWindow {
		s.mu.Unlock()
		return false, nil
	}
	s.mu.Unlock()

	if err := s.writeEvent(notifications.EventTyping, nil); err != nil {
		// A signal that never reached the server must not consume the window.
		return false, err
	}

	s.mu.Lock()
	s.lastTyping = time.Now()
	s.mu.Unlock()
	return true, nil
}

// SendBuzz emits a buzz into global_chat.
func (s *Session) SendBuzz() error {
	return s.writeEvent(notifications.EventSendBuzz, nil)
}

// JoinGraffiti joins the shared canvas room.
func (s *Session) JoinGraffiti() error {
	return s.writeEvent(notifications.EventJoinGraffiti, nil)
}

// Draw relays a stroke to the canvas room. The stroke payload is opaque to
// the server; coordinates should be room-relative fractions so geometry is
// resolution-independent.
func (s *Session) Draw(stroke json.RawMessage) error {
	return s.writeEvent(notifications.EventDraw, stroke)
}

// ClearGraffiti wipes the shared canvas for everyone else in the room.
func (s *Session) ClearGraffiti() error {
	return s.writeEvent(notifications.EventClearGraffiti, nil)
}

// UpdateRadio proposes a new station against the version the caller last
// saw. Losing a concurrent update surfaces as a radio_conflict event.
func (s *Session) UpdateRadio(youtubeID string, version uint64) error {
	return s.writeEvent(notifications.EventUpdateRadio, notifications.UpdateRadioPayload{
		YoutubeID: youtubeID,
		Version:   version,
	})
}
