package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"majlis/internal/middleware"
	"majlis/internal/models"
	"majlis/internal/notifications"
	"majlis/internal/observability"
	"majlis/internal/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const wsTicketTTL = 30 * time.Second

// IssueWSTicket handles POST /api/ws/ticket. It mints a short-lived
// single-use ticket the browser passes as a query parameter on the websocket
// upgrade, since browsers cannot set an Authorization header there.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(errors.New("ticket store unavailable")))
	}

	ticket := uuid.NewString()
	key := fmt.Sprintf("ws_ticket:%s", ticket)
	if err := s.redis.Set(c.Context(), key, strconv.FormatUint(uint64(userID), 10), wsTicketTTL).Err(); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}

// WebSocketHandler handles GET /api/ws websocket upgrades.
func (s *Server) WebSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx := context.Background()

		// Get userID from context locals (set by AuthRequired middleware)
		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			log.Printf("WebSocket: Unauthenticated connection attempt")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"unauthorized"}}`))
			_ = conn.Close()
			return
		}
		userID := userIDVal.(uint)

		// Get user info for the username carried on broadcasts
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			log.Printf("WebSocket: Failed to get user %d: %v", userID, err)
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, user.Username, conn)
		if err != nil {
			log.Printf("WebSocket: Failed to register user %d: %v", userID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"`+err.Error()+`"}}`))
			_ = conn.Close()
			return
		}

		log.Printf("WebSocket: User %d (%s) connected", userID, user.Username)

		client.IncomingHandler = func(c *notifications.Client, message []byte) {
			s.handleRealtimeEvent(ctx, c, message)
		}

		go client.WritePump()
		client.ReadPump()
	})
}

// handleRealtimeEvent dispatches one inbound websocket frame. The event
// catalogue is closed: anything outside it gets a private error frame.
func (s *Server) handleRealtimeEvent(ctx context.Context, client *notifications.Client, message []byte) {
	var event notifications.Event
	if err := json.Unmarshal(message, &event); err != nil {
		log.Printf("WebSocket: Invalid frame from user %d", client.UserID)
		s.sendWSError(client, "invalid frame")
		return
	}

	observability.WebSocketEventsTotal.WithLabelValues(event.Type).Inc()

	switch event.Type {
	case notifications.EventJoinChat:
		s.hub.Join(client, notifications.RoomGlobalChat)

	case notifications.EventJoinGraffiti:
		s.hub.Join(client, notifications.RoomGraffiti)

	case notifications.EventSendMessage:
		s.handleSendMessage(ctx, client, event.Payload)

	case notifications.EventTyping:
		// Server-side backstop for clients that ignore the local throttle.
		id := fmt.Sprintf("user:%d", client.UserID)
		allowed, err := middleware.CheckRateLimit(ctx, s.redis, "typing", id, 10, 10*time.Second)
		if err != nil {
			// Limiter unavailable (e.g. running without Redis): fail open,
			// same as the HTTP rate limit middleware.
			allowed = true
		}
		if !allowed {
			return // Silently drop spammy typing indicators
		}
		frame, err := notifications.NewEvent(notifications.EventUserTyping,
			notifications.PresencePayload{UserID: client.UserID, Username: client.Username})
		if err != nil {
			return
		}
		s.dispatcher.ToRoom(ctx, notifications.RoomGlobalChat, frame, client.ConnID)

	case notifications.EventSendBuzz:
		frame, err := notifications.NewEvent(notifications.EventUserBuzz,
			notifications.PresencePayload{UserID: client.UserID, Username: client.Username})
		if err != nil {
			return
		}
		s.dispatcher.ToRoom(ctx, notifications.RoomGlobalChat, frame, client.ConnID)

	case notifications.EventUpdateRadio:
		s.handleUpdateRadio(ctx, client, event.Payload)

	case notifications.EventDraw:
		if !s.hub.InRoom(client, notifications.RoomGraffiti) {
			s.sendWSError(client, "join graffiti_room first")
			return
		}
		frame, err := notifications.NewEvent(notifications.EventDraw, event.Payload)
		if err != nil {
			return
		}
		s.dispatcher.ToRoom(ctx, notifications.RoomGraffiti, frame, client.ConnID)

	case notifications.EventClearGraffiti:
		if !s.hub.InRoom(client, notifications.RoomGraffiti) {
			s.sendWSError(client, "join graffiti_room first")
			return
		}
		frame, err := notifications.NewEvent(notifications.EventClearGraffiti, nil)
		if err != nil {
			return
		}
		s.dispatcher.ToRoom(ctx, notifications.RoomGraffiti, frame, client.ConnID)

	default:
		s.sendWSError(client, "unknown event type: "+event.Type)
	}
}

// handleSendMessage persists a chat message and fans it out to the whole
// room, sender included.
func (s *Server) handleSendMessage(ctx context.Context, client *notifications.Client, payload json.RawMessage) {
	var req notifications.SendMessagePayload
	if payload != nil {
		if err := json.Unmarshal(payload, &req); err != nil {
			s.sendWSError(client, "invalid payload")
			return
		}
	}

	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		s.sendWSError(client, "message body required")
		return
	}

	id := fmt.Sprintf("user:%d", client.UserID)
	allowed, err := middleware.CheckRateLimit(ctx, s.redis, "send_chat", id, 15, time.Minute)
	if err != nil {
		// Fail open when the limiter cannot answer, matching the HTTP path.
		allowed = true
	}
	if !allowed {
		s.sendWSError(client, "Rate limit exceeded. Please wait a moment.")
		return
	}

	msg := &models.Message{
		Content: req.Content,
		UserID:  client.UserID,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		// Persistence failure is logged and swallowed; the relay itself is
		// best-effort and the emitting client gets no failure signal.
		log.Printf("WebSocket: failed to persist message from user %d: %v", client.UserID, err)
		return
	}

	frame, err := notifications.NewEvent(notifications.EventReceiveMessage, notifications.MessagePayload{
		ID:        msg.ID,
		Content:   msg.Content,
		UserID:    client.UserID,
		Username:  client.Username,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		return
	}
	s.dispatcher.ToRoom(ctx, notifications.RoomGlobalChat, frame, "")
}

// handleUpdateRadio applies an optimistic update to the shared radio state.
// The loser of a concurrent update gets a private radio_conflict frame with
// the authoritative state instead of having its write silently clobbered.
func (s *Server) handleUpdateRadio(ctx context.Context, client *notifications.Client, payload json.RawMessage) {
	var req notifications.UpdateRadioPayload
	if payload != nil {
		if err := json.Unmarshal(payload, &req); err != nil {
			s.sendWSError(client, "invalid payload")
			return
		}
	}

	req.YoutubeID = strings.TrimSpace(req.YoutubeID)
	if req.YoutubeID == "" {
		s.sendWSError(client, "youtube_id required")
		return
	}

	state, err := s.radioRepo.UpdateCAS(ctx, req.YoutubeID, client.UserID, req.Version)
	if err != nil {
		if errors.Is(err, repository.ErrRadioConflict) {
			observability.RadioConflictsTotal.Inc()
			current, getErr := s.radioRepo.Get(ctx)
			if getErr != nil {
				log.Printf("WebSocket: failed to load radio state after conflict: %v", getErr)
				return
			}
			frame, ferr := notifications.NewEvent(notifications.EventRadioConflict, notifications.RadioPayload{
				YoutubeID: current.YoutubeID,
				StartedAt: current.StartedAt,
				UpdatedBy: current.UpdatedBy,
				Version:   current.Version,
			})
			if ferr == nil {
				client.TrySend(frame)
			}
			return
		}
		log.Printf("WebSocket: failed to update radio state for user %d: %v", client.UserID, err)
		return
	}

	frame, err := notifications.NewEvent(notifications.EventRadioUpdated, notifications.RadioPayload{
		YoutubeID: state.YoutubeID,
		StartedAt: state.StartedAt,
		UpdatedBy: state.UpdatedBy,
		Version:   state.Version,
	})
	if err != nil {
		return
	}
	s.dispatcher.ToAll(ctx, frame)
}

// sendWSError delivers a private typed error frame to one connection.
func (s *Server) sendWSError(client *notifications.Client, message string) {
	frame, err := notifications.NewEvent(notifications.EventError, notifications.ErrorPayload{Message: message})
	if err != nil {
		return
	}
	client.TrySend(frame)
}
