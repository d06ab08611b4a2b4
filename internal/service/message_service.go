package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ripple/internal/cache"
	"ripple/internal/models"
	"ripple/internal/observability"
	"ripple/internal/preview"
	"ripple/internal/realtime"
	"ripple/internal/repository"
)

// PreviewFetcher retrieves link-preview metadata for a URL.
type PreviewFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*models.LinkPreview, error)
}

const maxMessageTextLen = 10000

// casRetries bounds optimistic-concurrency retry loops. Contention on a
// single message is rare; the per-key lock already serializes this process.
const casRetries = 3

// MessageService owns the message lifecycle: create, react, edit, soft
// delete, forward and batch seen-marking. It is the single authority for
// every mutation; HTTP handlers and websocket events are thin adapters.
type MessageService struct {
	chats    repository.ChatRepository
	messages repository.MessageRepository
	hub      *realtime.Hub
	router   *realtime.Router
	profiles ProfileDirectory
	previews PreviewFetcher
	locks    *keyedMutex
	logger   *slog.Logger
}

// NewMessageService returns a new MessageService. previews may be nil to
// disable link-preview attachment.
func NewMessageService(
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	hub *realtime.Hub,
	router *realtime.Router,
	profiles ProfileDirectory,
	previews PreviewFetcher,
) *MessageService {
	return &MessageService{
		chats:    chats,
		messages: messages,
		hub:      hub,
		router:   router,
		profiles: profiles,
		previews: previews,
		locks:    newKeyedMutex(),
		logger:   observability.Component("message_service"),
	}
}

// SendInput is the input for sending a message.
type SendInput struct {
	SenderID  string
	ChatID    string
	Text      string
	ImageURL  string
	ImageID   string
	ReplyToID string
}

// Send creates a message, computes its initial seen state from the
// receiver's live room membership, persists it and fans it out. The link
// preview, if any, is attached asynchronously after the fan-out.
func (s *MessageService) Send(ctx context.Context, in SendInput) (*models.Message, error) {
	if in.Text == "" && in.ImageURL == "" {
		return nil, models.NewValidationError("Message requires text or an image")
	}
	if len(in.Text) > maxMessageTextLen {
		return nil, models.NewValidationError("Message text too long (max 10000 characters)")
	}

	chat, err := s.chats.GetByID(ctx, in.ChatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(in.SenderID) {
		return nil, models.NewForbiddenError("You are not a participant in this chat")
	}

	msg := &models.Message{
		ChatID:     chat.ID,
		SenderID:   in.SenderID,
		ReceiverID: chat.OtherParticipant(in.SenderID),
		Text:       in.Text,
		ImageURL:   in.ImageURL,
		ImageID:    in.ImageID,
		Type:       models.MessageTypeText,
		Reactions:  []models.Reaction{},
	}
	if in.ImageURL != "" && in.Text == "" {
		msg.Type = models.MessageTypeImage
	}

	if in.ReplyToID != "" {
		target, err := s.messages.GetByID(ctx, in.ReplyToID)
		if err != nil {
			return nil, err
		}
		if target.ChatID != chat.ID {
			return nil, models.NewValidationError("Reply target belongs to a different chat")
		}
		replyTo := target.ID
		msg.Type = models.MessageTypeReply
		msg.ReplyToID = &replyTo
		// Frozen at reply time; never revisited if the original changes.
		msg.Replied = &models.RepliedSnapshot{
			MessageID: target.ID,
			Text:      target.Text,
			SenderID:  target.SenderID,
			Type:      target.SnapshotType(),
			ImageURL:  target.ImageURL,
		}
	}

	return s.deliver(ctx, chat, msg)
}

// Forward copies an existing message's content into another chat as a new
// forwarded message. The reply snapshot, if any, is not carried over.
func (s *MessageService) Forward(ctx context.Context, userID, messageID, targetChatID string) (*models.Message, error) {
	src, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	srcChat, err := s.chats.GetByID(ctx, src.ChatID)
	if err != nil {
		return nil, err
	}
	if !srcChat.HasParticipant(userID) {
		return nil, models.NewForbiddenError("You are not a participant in this chat")
	}
	if src.Type == models.MessageTypeDeleted {
		return nil, models.NewValidationError("Deleted messages cannot be forwarded")
	}

	target, err := s.chats.GetByID(ctx, targetChatID)
	if err != nil {
		return nil, err
	}
	if !target.HasParticipant(userID) {
		return nil, models.NewForbiddenError("You are not a participant in this chat")
	}

	msg := &models.Message{
		ChatID:      target.ID,
		SenderID:    userID,
		ReceiverID:  target.OtherParticipant(userID),
		Type:        models.MessageTypeForward,
		Text:        src.Text,
		ImageURL:    src.ImageURL,
		ImageID:     src.ImageID,
		IsForwarded: true,
		Reactions:   []models.Reaction{},
	}
	return s.deliver(ctx, target, msg)
}

// deliver persists the message, refreshes the chat summary and dispatches the
// fan-out. Shared by Send and Forward.
func (s *MessageService) deliver(ctx context.Context, chat *models.Chat, msg *models.Message) (*models.Message, error) {
	gateAllowed := false
	if s.hub != nil && s.hub.IsViewing(msg.ReceiverID, chat.ID) {
		// Recipient is actively viewing the chat: seen immediately, no
		// polling. SeenAt additionally passes the read-receipt gate.
		msg.Seen = true
		if s.receiptsAllowed(ctx, msg.SenderID, msg.ReceiverID) {
			now := time.Now().UTC()
			msg.SeenAt = &now
			gateAllowed = true
		}
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.chats.UpdateLatest(ctx, chat.ID, latestSummary(msg), msg.SenderID); err != nil {
		s.logger.Warn("latest-message refresh failed",
			slog.String("chat_id", chat.ID), slog.Any("error", err))
	}
	cache.InvalidateChatLists(ctx, chat.UserAID, chat.UserBID)

	if s.router != nil {
		s.router.NewMessage(msg)
		if gateAllowed {
			s.router.MessagesSeen(msg.SenderID, realtime.SeenPayload{
				ChatID:     chat.ID,
				SeenBy:     msg.ReceiverID,
				MessageIDs: []string{msg.ID},
				SeenAt:     msg.SeenAt,
			})
		}
	}

	if url := preview.FirstURL(msg.Text); url != "" && s.previews != nil {
		// Off the request path; the messageUpdated fan-out for this message
		// can only happen after the newMessage dispatch above.
		go s.attachPreview(msg.ID, url)
	}

	return msg, nil
}

// ToggleReaction applies the reaction toggle semantics: the same (user,
// emoji) pair toggles off, a different emoji replaces the user's prior
// reaction, at most one reaction per user. The full resulting set is fanned
// out, never a diff.
func (s *MessageService) ToggleReaction(ctx context.Context, userID, messageID, emoji string) (*models.Message, error) {
	if emoji == "" {
		return nil, models.NewValidationError("Emoji is required")
	}

	unlock := s.locks.Lock(messageID)
	defer unlock()

	for attempt := 0; attempt < casRetries; attempt++ {
		msg, err := s.messages.GetByID(ctx, messageID)
		if err != nil {
			return nil, err
		}
		chat, err := s.chats.GetByID(ctx, msg.ChatID)
		if err != nil {
			return nil, err
		}
		if !chat.HasParticipant(userID) {
			return nil, models.NewForbiddenError("You are not a participant in this chat")
		}
		if msg.Type == models.MessageTypeDeleted {
			return nil, models.NewValidationError("Cannot react to a deleted message")
		}

		idx := msg.ReactionBy(userID)
		switch {
		case idx >= 0 && msg.Reactions[idx].Emoji == emoji:
			msg.Reactions = append(msg.Reactions[:idx], msg.Reactions[idx+1:]...)
		case idx >= 0:
			msg.Reactions[idx].Emoji = emoji
		default:
			msg.Reactions = append(msg.Reactions, models.Reaction{UserID: userID, Emoji: emoji})
		}

		ok, err := s.messages.UpdateCAS(ctx, msg)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		if s.router != nil {
			s.router.MessageReaction(chat, msg)
		}
		return msg, nil
	}
	return nil, models.NewInternalError(errors.New("reaction update contention"))
}

// Edit replaces a message's text. Permitted only for the original sender, on
// a non-deleted non-image-only message, within the edit window.
func (s *MessageService) Edit(ctx context.Context, userID, messageID, text string) (*models.Message, error) {
	if text == "" {
		return nil, models.NewValidationError("Text is required")
	}
	if len(text) > maxMessageTextLen {
		return nil, models.NewValidationError("Message text too long (max 10000 characters)")
	}

	unlock := s.locks.Lock(messageID)
	defer unlock()

	for attempt := 0; attempt < casRetries; attempt++ {
		msg, err := s.messages.GetByID(ctx, messageID)
		if err != nil {
			return nil, err
		}
		if msg.SenderID != userID {
			return nil, models.NewForbiddenError("Only the sender can edit a message")
		}
		if msg.Type == models.MessageTypeDeleted {
			return nil, models.NewValidationError("Deleted messages cannot be edited")
		}
		if msg.Text == "" && msg.ImageURL != "" {
			return nil, models.NewValidationError("Image messages without text cannot be edited")
		}
		if time.Since(msg.CreatedAt) > models.EditWindow {
			return nil, models.NewValidationError("The edit window has closed")
		}

		now := time.Now().UTC()
		msg.Text = text
		msg.IsEdited = true
		msg.EditedAt = &now

		ok, err := s.messages.UpdateCAS(ctx, msg)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		chat, err := s.chats.GetByID(ctx, msg.ChatID)
		if err != nil {
			return nil, err
		}
		s.refreshLatestIfAffected(ctx, chat, msg, text)
		cache.InvalidateChatLists(ctx, chat.UserAID, chat.UserBID)

		if s.router != nil {
			s.router.MessageEdited(chat, msg)
		}
		return msg, nil
	}
	return nil, models.NewInternalError(errors.New("edit update contention"))
}

// Delete soft-deletes a message: an irreversible transition to the deleted
// type that clears text, image and reactions while keeping the row. The
// tombstone is broadcast to the chat room only.
func (s *MessageService) Delete(ctx context.Context, userID, messageID string) (*models.Message, error) {
	unlock := s.locks.Lock(messageID)
	defer unlock()

	for attempt := 0; attempt < casRetries; attempt++ {
		msg, err := s.messages.GetByID(ctx, messageID)
		if err != nil {
			return nil, err
		}
		if msg.SenderID != userID {
			return nil, models.NewForbiddenError("Only the sender can delete a message")
		}
		if msg.Type == models.MessageTypeDeleted {
			return msg, nil
		}

		msg.Type = models.MessageTypeDeleted
		msg.Text = ""
		msg.ImageURL = ""
		msg.ImageID = ""
		msg.Reactions = []models.Reaction{}
		msg.LinkPreview = nil

		ok, err := s.messages.UpdateCAS(ctx, msg)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		chat, err := s.chats.GetByID(ctx, msg.ChatID)
		if err != nil {
			return nil, err
		}
		s.refreshLatestIfAffected(ctx, chat, msg, models.DeletedMessageText)
		cache.InvalidateChatLists(ctx, chat.UserAID, chat.UserBID)

		if s.router != nil {
			s.router.MessageDeleted(msg)
		}
		return msg, nil
	}
	return nil, models.NewInternalError(errors.New("delete update contention"))
}

// ListAndMarkSeen returns the chat's messages in chronological order and, for
// a non-sender requester, marks every unseen message from the other side as
// seen. SeenAt is recorded only under the read-receipt gate, and the sender
// is notified once per batch, never per message.
func (s *MessageService) ListAndMarkSeen(ctx context.Context, userID, chatID string) ([]*models.Message, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, models.NewForbiddenError("You are not a participant in this chat")
	}

	msgs, err := s.messages.ListByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	hasUnseen := false
	for _, m := range msgs {
		if m.SenderID != userID && !m.Seen {
			hasUnseen = true
			break
		}
	}
	if !hasUnseen {
		return msgs, nil
	}

	other := chat.OtherParticipant(userID)
	var seenAt *time.Time
	allowed := s.receiptsAllowed(ctx, userID, other)
	if allowed {
		now := time.Now().UTC()
		seenAt = &now
	}

	ids, err := s.messages.MarkSeen(ctx, chatID, userID, seenAt)
	if err != nil {
		return nil, err
	}

	marked := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		marked[id] = struct{}{}
	}
	for _, m := range msgs {
		if _, ok := marked[m.ID]; ok {
			m.Seen = true
			if allowed {
				m.SeenAt = seenAt
			}
		}
	}

	if allowed && len(ids) > 0 && s.router != nil {
		s.router.MessagesSeen(other, realtime.SeenPayload{
			ChatID:     chatID,
			SeenBy:     userID,
			MessageIDs: ids,
			SeenAt:     seenAt,
		})
	}

	return msgs, nil
}

// receiptsAllowed is the read-receipt gate: both participants' flags must be
// true, fetched fresh at evaluation time because either may have changed
// independently of presence.
func (s *MessageService) receiptsAllowed(ctx context.Context, a, b string) bool {
	return s.profiles.Privacy(ctx, a).ShowReadReceipts &&
		s.profiles.Privacy(ctx, b).ShowReadReceipts
}

// attachPreview fetches the link preview for the message's first URL and, on
// success, persists it and fans out messageUpdated. Runs off the request
// path; every failure is logged and dropped.
func (s *MessageService) attachPreview(messageID, rawURL string) {
	ctx := context.Background()

	p, err := s.previews.Fetch(ctx, rawURL)
	if err != nil {
		s.logger.Debug("link preview unavailable",
			slog.String("message_id", messageID), slog.Any("error", err))
		return
	}

	unlock := s.locks.Lock(messageID)
	defer unlock()

	for attempt := 0; attempt < casRetries; attempt++ {
		msg, err := s.messages.GetByID(ctx, messageID)
		if err != nil {
			return
		}
		if msg.Type == models.MessageTypeDeleted {
			return
		}
		msg.LinkPreview = p

		ok, err := s.messages.UpdateCAS(ctx, msg)
		if err != nil {
			return
		}
		if ok {
			if s.router != nil {
				s.router.MessageUpdated(msg)
			}
			return
		}
	}
}

// refreshLatestIfAffected updates the chat's latest-message summary when the
// mutated message is the chronologically latest one.
func (s *MessageService) refreshLatestIfAffected(ctx context.Context, chat *models.Chat, msg *models.Message, summary string) {
	latest, err := s.messages.LatestInChat(ctx, chat.ID)
	if err != nil || latest == nil || latest.ID != msg.ID {
		return
	}
	if err := s.chats.UpdateLatest(ctx, chat.ID, summary, msg.SenderID); err != nil {
		s.logger.Warn("latest-message refresh failed",
			slog.String("chat_id", chat.ID), slog.Any("error", err))
	}
}

func latestSummary(msg *models.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return "Photo"
}
