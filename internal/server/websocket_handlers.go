package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"ripple/internal/observability"
	"ripple/internal/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// incomingEvent is the envelope clients send over the socket.
type incomingEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WebSocketChatHandler handles WebSocket connections for real-time chat.
func (s *Server) WebSocketChatHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		observability.ActiveWebSockets.Inc()
		defer observability.ActiveWebSockets.Dec()

		ctx := context.Background()

		// Set by WebSocketAuthRequired before the upgrade.
		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}
		userID := userIDVal.(string)

		// Privacy flags are fetched once at connect; later changes arrive via
		// updatePrivacySettings events. Fetch failures fall back to defaults
		// inside the client.
		privacy := s.profiles.Privacy(ctx, userID)

		client := realtime.NewClient(s.hub, conn, userID)
		client.IncomingHandler = s.handleIncomingEvent

		s.hub.Connect(client, privacy)
		s.profiles.UpdateLastSeen(userID)

		go client.WritePump()

		// Read pump runs in the handler goroutine; returning unregisters the
		// client and closes the socket.
		client.ReadPump()
	})
}

// handleIncomingEvent dispatches one client-originated socket event.
func (s *Server) handleIncomingEvent(c *realtime.Client, message []byte) {
	ctx := context.Background()

	var ev incomingEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		s.logger.Debug("invalid socket event", slog.String("user_id", c.UserID))
		return
	}
	observability.WebSocketEventsTotal.WithLabelValues(ev.Type).Inc()

	switch ev.Type {
	case "joinChat":
		var p struct {
			ChatID string `json:"chatId"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil || p.ChatID == "" {
			return
		}
		if !s.isParticipant(ctx, c.UserID, p.ChatID) {
			return
		}
		s.hub.JoinChat(c.UserID, p.ChatID)

	case "leaveChat":
		var p struct {
			ChatID string `json:"chatId"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil || p.ChatID == "" {
			return
		}
		s.hub.LeaveChat(c.UserID, p.ChatID)

	case "typing", "stopTyping":
		var p struct {
			ChatID string `json:"chatId"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil || p.ChatID == "" {
			return
		}
		if !s.isParticipant(ctx, c.UserID, p.ChatID) {
			return
		}
		s.router.Typing(p.ChatID, c.UserID, ev.Type == "stopTyping")

	case "addReaction":
		var p struct {
			MessageID string `json:"messageId"`
			Emoji     string `json:"emoji"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil || p.MessageID == "" {
			return
		}
		if _, err := s.messageService.ToggleReaction(ctx, c.UserID, p.MessageID, p.Emoji); err != nil {
			s.logger.Debug("socket reaction rejected",
				slog.String("user_id", c.UserID),
				slog.String("message_id", p.MessageID),
				slog.Any("error", err))
		}

	case "updatePrivacySettings":
		var p struct {
			ShowOnlineStatus *bool `json:"showOnlineStatus,omitempty"`
			ShowReadReceipts *bool `json:"showReadReceipts,omitempty"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return
		}
		// Partial update: absent fields keep their current value.
		current := s.hub.Privacy(c.UserID)
		if p.ShowOnlineStatus != nil {
			current.ShowOnlineStatus = *p.ShowOnlineStatus
		}
		if p.ShowReadReceipts != nil {
			current.ShowReadReceipts = *p.ShowReadReceipts
		}
		s.hub.SetPrivacy(c.UserID, current)

	default:
		s.logger.Debug("unknown socket event",
			slog.String("user_id", c.UserID), slog.String("type", ev.Type))
	}
}

// isParticipant checks whether the user belongs to the chat.
func (s *Server) isParticipant(ctx context.Context, userID, chatID string) bool {
	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		return false
	}
	return chat.HasParticipant(userID)
}
