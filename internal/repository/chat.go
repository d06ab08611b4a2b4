// Package repository provides data access for chats and messages.
package repository

import (
	"context"
	"errors"

	"ripple/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRepository defines the interface for chat data operations
type ChatRepository interface {
	GetOrCreate(ctx context.Context, userA, userB string) (*models.Chat, error)
	GetByID(ctx context.Context, id string) (*models.Chat, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Chat, error)
	UpdateLatest(ctx context.Context, chatID, text, senderID string) error
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// GetOrCreate returns the chat for the unordered user pair, creating it when
// absent. The unique pair key plus an on-conflict no-op insert keeps creation
// idempotent under concurrent first-contact requests.
func (r *chatRepository) GetOrCreate(ctx context.Context, userA, userB string) (*models.Chat, error) {
	pairKey := models.PairKey(userA, userB)

	var chat models.Chat
	err := r.db.WithContext(ctx).Where("pair_key = ?", pairKey).First(&chat).Error
	if err == nil {
		return &chat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	create := models.Chat{UserAID: userA, UserBID: userB, PairKey: pairKey}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "pair_key"}}, DoNothing: true}).
		Create(&create).Error; err != nil {
		return nil, err
	}

	// Re-fetch: under a race the insert may have been the losing no-op.
	if err := r.db.WithContext(ctx).Where("pair_key = ?", pairKey).First(&chat).Error; err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *chatRepository) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).First(&chat, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Chat", id)
		}
		return nil, err
	}
	return &chat, nil
}

func (r *chatRepository) ListForUser(ctx context.Context, userID string) ([]*models.Chat, error) {
	var chats []*models.Chat
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&chats).Error
	return chats, err
}

func (r *chatRepository) UpdateLatest(ctx context.Context, chatID, text, senderID string) error {
	return r.db.WithContext(ctx).Model(&models.Chat{}).
		Where("id = ?", chatID).
		Updates(map[string]any{
			"latest_text":      text,
			"latest_sender_id": senderID,
		}).Error
}
