// Package service provides the application business logic: chat lifecycle,
// message lifecycle and the read-receipt gate.
package service

import (
	"context"
	"log/slog"

	"ripple/internal/cache"
	"ripple/internal/models"
	"ripple/internal/observability"
	"ripple/internal/profile"
	"ripple/internal/repository"
)

// ProfileDirectory resolves user display data and privacy flags from the
// external profile service. Implementations must degrade to safe defaults
// instead of failing.
type ProfileDirectory interface {
	Privacy(ctx context.Context, userID string) profile.PrivacySettings
	Username(ctx context.Context, userID string) string
}

// ChatService provides chat lookup and listing logic.
type ChatService struct {
	chats    repository.ChatRepository
	messages repository.MessageRepository
	profiles ProfileDirectory
	logger   *slog.Logger
}

// NewChatService returns a new ChatService.
func NewChatService(
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	profiles ProfileDirectory,
) *ChatService {
	return &ChatService{
		chats:    chats,
		messages: messages,
		profiles: profiles,
		logger:   observability.Component("chat_service"),
	}
}

// ChatSummary pairs a chat with the requester-specific view data.
type ChatSummary struct {
	*models.Chat
	OtherUserID   string `json:"otherUserId"`
	OtherUsername string `json:"otherUsername"`
	UnseenCount   int64  `json:"unseenCount"`
}

// Open returns the chat between the requester and the other user, creating it
// lazily on first contact. Creation is idempotent: concurrent requests for
// the same pair yield exactly one chat.
func (s *ChatService) Open(ctx context.Context, userID, otherUserID string) (*models.Chat, error) {
	if otherUserID == "" {
		return nil, models.NewValidationError("otherUserId is required")
	}
	if otherUserID == userID {
		return nil, models.NewValidationError("Cannot open a chat with yourself")
	}

	chat, err := s.chats.GetOrCreate(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}

	cache.InvalidateChatLists(ctx, userID, otherUserID)
	return chat, nil
}

// Get returns the chat when the requester is a participant.
func (s *ChatService) Get(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, models.NewForbiddenError("You are not a participant in this chat")
	}
	return chat, nil
}

// List returns the requester's chats, most recently active first. The chat
// rows go through the cache-aside read path; unseen counts and usernames are
// always resolved fresh because the cache is never authoritative for them.
func (s *ChatService) List(ctx context.Context, userID string) ([]ChatSummary, error) {
	var chats []*models.Chat
	err := cache.Aside(ctx, cache.ChatListKey(userID), &chats, cache.ChatListTTL, func() error {
		var fetchErr error
		chats, fetchErr = s.chats.ListForUser(ctx, userID)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]ChatSummary, 0, len(chats))
	for _, chat := range chats {
		otherID := chat.OtherParticipant(userID)
		unseen, countErr := s.messages.CountUnseen(ctx, chat.ID, userID)
		if countErr != nil {
			return nil, countErr
		}
		summaries = append(summaries, ChatSummary{
			Chat:          chat,
			OtherUserID:   otherID,
			OtherUsername: s.profiles.Username(ctx, otherID),
			UnseenCount:   unseen,
		})
	}
	return summaries, nil
}
