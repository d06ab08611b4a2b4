package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"ripple/internal/cache"
	"ripple/internal/observability"
	"ripple/internal/profile"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

// Event is the wire envelope for every outbound realtime event.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Outbound event types.
const (
	EventOnlineUsers       = "getOnlineUser"
	EventUserTyping        = "userTyping"
	EventUserStoppedTyping = "userStoppedTyping"
	EventChatJoined        = "chatJoined"
	EventMessageReaction   = "messageReaction"
	EventNewMessage        = "newMessage"
	EventMessageUpdated    = "messageUpdated"
	EventMessagesSeen      = "messagesSeen"
	EventMessageDeleted    = "messageDeleted"
	EventMessageEdited     = "messageEdited"
)

// Hub owns the connection registry and room membership tracker, and performs
// all socket-level delivery. It is user-centric for direct sends and
// room-centric for chat broadcasts.
type Hub struct {
	registry *Registry
	rooms    *Rooms
	rdb      *redis.Client
	logger   *slog.Logger
}

// NewHub creates a hub. rdb may be nil; when present the online-user set is
// mirrored into Redis for cross-process visibility (best-effort only).
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		registry: NewRegistry(),
		rooms:    NewRooms(),
		rdb:      rdb,
		logger:   observability.Component("realtime"),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "chat hub" }

// Registry exposes the connection registry for privacy lookups.
func (h *Hub) Registry() *Registry { return h.registry }

// Connect registers the client as its user's live connection and broadcasts
// the refreshed presence snapshot to everyone.
func (h *Hub) Connect(c *Client, p profile.PrivacySettings) {
	snapshot, recipients := h.registry.Register(c.UserID, c, p)
	h.mirrorOnline(c.UserID, true)
	h.logger.Info("client connected", slog.String("user_id", c.UserID), slog.String("conn_id", c.ConnID))
	h.broadcastPresence(snapshot, recipients)
}

// UnregisterClient detaches a client whose socket died. Implements WSHub.
func (h *Hub) UnregisterClient(c *Client) {
	h.Disconnect(c)
}

// Disconnect drops the client's room memberships and, unless it was already
// superseded by a newer connection for the same user, removes it from the
// registry and broadcasts the refreshed presence snapshot.
func (h *Hub) Disconnect(c *Client) {
	h.rooms.LeaveAll(c.ConnID)

	snapshot, recipients, removed := h.registry.Unregister(c.UserID, c)
	if !removed {
		return
	}
	h.mirrorOnline(c.UserID, false)
	h.logger.Info("client disconnected", slog.String("user_id", c.UserID), slog.String("conn_id", c.ConnID))
	h.broadcastPresence(snapshot, recipients)
}

// SetPrivacy updates the user's privacy flags and re-broadcasts presence.
func (h *Hub) SetPrivacy(userID string, p profile.PrivacySettings) {
	snapshot, recipients := h.registry.SetPrivacy(userID, p)
	h.broadcastPresence(snapshot, recipients)
}

// Privacy returns the user's cached privacy flags.
func (h *Hub) Privacy(userID string) profile.PrivacySettings {
	return h.registry.Privacy(userID)
}

// JoinChat subscribes the user's live connection to the chat room and
// announces the join to the room.
func (h *Hub) JoinChat(userID, chatID string) {
	c := h.registry.Lookup(userID)
	if c == nil {
		return
	}
	h.rooms.Join(c.ConnID, chatID)
	h.BroadcastToRoom(chatID, Event{
		Type:    EventChatJoined,
		Payload: map[string]string{"chatId": chatID, "userId": userID},
	}, "")
}

// LeaveChat unsubscribes the user's live connection from the chat room.
func (h *Hub) LeaveChat(userID, chatID string) {
	c := h.registry.Lookup(userID)
	if c == nil {
		return
	}
	h.rooms.Leave(c.ConnID, chatID)
}

// IsViewing reports whether the user's live connection has joined the chat's
// room, i.e. the user is actively viewing the chat.
func (h *Hub) IsViewing(userID, chatID string) bool {
	c := h.registry.Lookup(userID)
	if c == nil {
		return false
	}
	return h.rooms.IsMember(c.ConnID, chatID)
}

// SendToUser delivers an event to the user's live connection. A missing
// connection is expected steady state, not an error; it returns false.
func (h *Hub) SendToUser(userID string, ev Event) bool {
	c := h.registry.Lookup(userID)
	if c == nil {
		return false
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event failed", slog.String("type", ev.Type), slog.Any("error", err))
		return false
	}
	c.TrySend(raw)
	return true
}

// BroadcastToRoom delivers an event to every connection joined to the room,
// optionally excluding one user's connection.
func (h *Hub) BroadcastToRoom(roomID string, ev Event, excludeUserID string) {
	raw, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event failed", slog.String("type", ev.Type), slog.Any("error", err))
		return
	}
	for _, connID := range h.rooms.Members(roomID) {
		c := h.registry.ByConn(connID)
		if c == nil || c.UserID == excludeUserID {
			continue
		}
		c.TrySend(raw)
	}
}

// BroadcastPresence recomputes and broadcasts the filtered online-user set to
// all connections as a full snapshot.
func (h *Hub) BroadcastPresence() {
	h.broadcastPresence(h.registry.Snapshot(), h.registry.Clients())
}

func (h *Hub) broadcastPresence(snapshot []string, recipients []*Client) {
	raw, err := json.Marshal(Event{Type: EventOnlineUsers, Payload: snapshot})
	if err != nil {
		return
	}
	for _, c := range recipients {
		c.TrySend(raw)
	}
}

// mirrorOnline keeps the Redis online-user set in sync, best-effort.
func (h *Hub) mirrorOnline(userID string, online bool) {
	if h.rdb == nil {
		return
	}
	ctx := context.Background()
	var err error
	if online {
		err = h.rdb.SAdd(ctx, cache.OnlineSetKey, userID).Err()
	} else {
		err = h.rdb.SRem(ctx, cache.OnlineSetKey, userID).Err()
	}
	if err != nil {
		h.logger.Debug("presence mirror failed", slog.String("user_id", userID), slog.Any("error", err))
	}
}

// Shutdown gracefully closes all websocket connections.
func (h *Hub) Shutdown(_ context.Context) error {
	for _, c := range h.registry.Clients() {
		if c.Conn == nil {
			continue
		}
		if err := c.Conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"serverShutdown","payload":{"message":"Server is shutting down"}}`)); err != nil {
			h.logger.Warn("shutdown notice failed", slog.String("user_id", c.UserID), slog.Any("error", err))
		}
		if err := c.Conn.Close(); err != nil {
			h.logger.Warn("socket close failed", slog.String("user_id", c.UserID), slog.Any("error", err))
		}
	}
	return nil
}
