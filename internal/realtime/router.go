package realtime

import (
	"time"

	"ripple/internal/models"
	"ripple/internal/observability"
)

// Router maps each domain event to its delivery legs. Target sets and leg
// order are fixed per event type; an unresolvable direct leg is skipped
// silently because an offline participant is expected steady state.
type Router struct {
	hub *Hub
}

// NewRouter returns a router delivering through the given hub.
func NewRouter(hub *Hub) *Router {
	return &Router{hub: hub}
}

// SeenPayload is the messagesSeen event body.
type SeenPayload struct {
	ChatID     string     `json:"chatId"`
	SeenBy     string     `json:"seenBy"`
	MessageIDs []string   `json:"messageIds"`
	SeenAt     *time.Time `json:"seenAt,omitempty"`
}

// ReactionPayload is the messageReaction event body. The full current set is
// always sent, never a diff, to avoid client-side merge ambiguity.
type ReactionPayload struct {
	MessageID string            `json:"messageId"`
	Reactions []models.Reaction `json:"reactions"`
}

// TypingPayload is the userTyping / userStoppedTyping event body.
type TypingPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// NewMessage fans out a freshly created message: chat room broadcast, then
// the receiver's direct connection, then the sender's.
func (r *Router) NewMessage(msg *models.Message) {
	r.roomAndDirect(EventNewMessage, msg)
}

// MessageUpdated fans out a message that gained a link preview. Same legs as
// NewMessage; the caller guarantees it fires only after NewMessage for the
// same message id has been dispatched.
func (r *Router) MessageUpdated(msg *models.Message) {
	r.roomAndDirect(EventMessageUpdated, msg)
}

func (r *Router) roomAndDirect(event string, msg *models.Message) {
	ev := Event{Type: event, Payload: msg}
	r.hub.BroadcastToRoom(msg.ChatID, ev, "")
	observability.FanoutDeliveries.WithLabelValues(event, "room").Inc()
	if r.hub.SendToUser(msg.ReceiverID, ev) {
		observability.FanoutDeliveries.WithLabelValues(event, "direct").Inc()
	}
	if r.hub.SendToUser(msg.SenderID, ev) {
		observability.FanoutDeliveries.WithLabelValues(event, "direct").Inc()
	}
}

// MessagesSeen notifies the message sender, and only the sender, that a batch
// of their messages was seen. The caller applies the read-receipt gate.
func (r *Router) MessagesSeen(senderID string, payload SeenPayload) {
	if r.hub.SendToUser(senderID, Event{Type: EventMessagesSeen, Payload: payload}) {
		observability.FanoutDeliveries.WithLabelValues(EventMessagesSeen, "direct").Inc()
	}
}

// MessageReaction fans out the full reaction set: room broadcast plus a direct
// leg to each chat participant. The direct legs are redundant by design — a
// participant may have the app open without having joined the chat's room.
func (r *Router) MessageReaction(chat *models.Chat, msg *models.Message) {
	ev := Event{Type: EventMessageReaction, Payload: ReactionPayload{
		MessageID: msg.ID,
		Reactions: msg.Reactions,
	}}
	r.hub.BroadcastToRoom(chat.ID, ev, "")
	observability.FanoutDeliveries.WithLabelValues(EventMessageReaction, "room").Inc()
	for _, userID := range []string{chat.UserAID, chat.UserBID} {
		if r.hub.SendToUser(userID, ev) {
			observability.FanoutDeliveries.WithLabelValues(EventMessageReaction, "direct").Inc()
		}
	}
}

// MessageDeleted fans out the tombstoned record to the chat room only; the
// deletion is only meaningful to viewers already inside the chat.
func (r *Router) MessageDeleted(msg *models.Message) {
	r.hub.BroadcastToRoom(msg.ChatID, Event{Type: EventMessageDeleted, Payload: msg}, "")
	observability.FanoutDeliveries.WithLabelValues(EventMessageDeleted, "room").Inc()
}

// MessageEdited fans out the edited record: room broadcast plus a direct leg
// to each participant.
func (r *Router) MessageEdited(chat *models.Chat, msg *models.Message) {
	ev := Event{Type: EventMessageEdited, Payload: msg}
	r.hub.BroadcastToRoom(chat.ID, ev, "")
	observability.FanoutDeliveries.WithLabelValues(EventMessageEdited, "room").Inc()
	for _, userID := range []string{chat.UserAID, chat.UserBID} {
		if r.hub.SendToUser(userID, ev) {
			observability.FanoutDeliveries.WithLabelValues(EventMessageEdited, "direct").Inc()
		}
	}
}

// Typing broadcasts a typing indicator to the chat room, excluding the typist.
func (r *Router) Typing(chatID, userID string, stopped bool) {
	event := EventUserTyping
	if stopped {
		event = EventUserStoppedTyping
	}
	r.hub.BroadcastToRoom(chatID, Event{
		Type:    event,
		Payload: TypingPayload{ChatID: chatID, UserID: userID},
	}, userID)
	observability.FanoutDeliveries.WithLabelValues(event, "room").Inc()
}
