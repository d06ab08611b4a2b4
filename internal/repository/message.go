package repository

import (
	"context"
	"errors"
	"time"

	"ripple/internal/models"

	"gorm.io/gorm"
)

// MessageRepository defines the interface for message data operations
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	ListByChat(ctx context.Context, chatID string) ([]*models.Message, error)
	LatestInChat(ctx context.Context, chatID string) (*models.Message, error)
	// UpdateCAS persists the message's mutable fields guarded by its version.
	// Returns false when another writer got there first.
	UpdateCAS(ctx context.Context, msg *models.Message) (bool, error)
	MarkSeen(ctx context.Context, chatID, viewerID string, seenAt *time.Time) ([]string, error)
	CountUnseen(ctx context.Context, chatID, viewerID string) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Message", id)
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) ListByChat(ctx context.Context, chatID string) ([]*models.Message, error) {
	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

func (r *messageRepository) LatestInChat(ctx context.Context, chatID string) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// UpdateCAS deliberately excludes the seen columns: MarkSeen writes them
// without the version guard, so carrying them here would let a CAS writer
// holding a pre-MarkSeen read push seen back to false.
func (r *messageRepository) UpdateCAS(ctx context.Context, msg *models.Message) (bool, error) {
	next := *msg
	next.Version = msg.Version + 1
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND version = ?", msg.ID, msg.Version).
		Select("message_type", "text", "image_url", "image_id",
			"reactions", "is_edited", "edited_at", "link_preview", "version").
		Updates(next)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	msg.Version++
	return true, nil
}

// MarkSeen flips Seen on every unseen message in the chat not authored by the
// viewer. seenAt is written only when the read-receipt gate permitted it.
// Only seen columns are touched so this never clobbers concurrent reaction or
// edit writes.
func (r *messageRepository) MarkSeen(ctx context.Context, chatID, viewerID string, seenAt *time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("chat_id = ? AND sender_id <> ? AND seen = ?", chatID, viewerID, false).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	updates := map[string]any{"seen": true}
	if seenAt != nil {
		updates["seen_at"] = *seenAt
	}
	err = r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id IN ? AND seen = ?", ids, false).
		Updates(updates).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *messageRepository) CountUnseen(ctx context.Context, chatID, viewerID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("chat_id = ? AND sender_id <> ? AND seen = ?", chatID, viewerID, false).
		Count(&count).Error
	return count, err
}
