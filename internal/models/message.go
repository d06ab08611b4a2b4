package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message types. Reply and forward are content augmentations: a reply or a
// forward may carry text or an image like any other message.
const (
	MessageTypeText    = "text"
	MessageTypeImage   = "image"
	MessageTypeReply   = "reply"
	MessageTypeForward = "forward"
	MessageTypeDeleted = "deleted"
)

// DeletedMessageText replaces the chat's latest-message summary when the
// most recent message is soft-deleted.
const DeletedMessageText = "This message was deleted"

// EditWindow is how long after creation a message stays editable.
const EditWindow = 15 * time.Minute

// Reaction is a single emoji reaction. A user holds at most one reaction per
// message; a second reaction replaces it and re-adding the same one clears it.
type Reaction struct {
	UserID string `json:"userId"`
	Emoji  string `json:"emoji"`
}

// RepliedSnapshot is the frozen copy of the replied-to message taken at reply
// time. It is never revisited if the original is later edited or deleted.
type RepliedSnapshot struct {
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
	SenderID  string `json:"senderId"`
	Type      string `json:"messageType"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// LinkPreview holds metadata scraped from the first URL in a message's text.
// It is attached asynchronously after the message has been persisted.
type LinkPreview struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	SiteName    string `json:"siteName,omitempty"`
}

// Message is a single chat message. Rows are never hard-deleted; deletion is a
// one-way transition to MessageTypeDeleted that clears content and reactions
// while keeping the row's position in history.
type Message struct {
	ID         string `gorm:"primaryKey;size:36" json:"id"`
	ChatID     string `gorm:"size:36;index" json:"chatId"`
	SenderID   string `gorm:"size:64;index" json:"senderId"`
	ReceiverID string `gorm:"size:64" json:"receiverId"`

	Type     string `gorm:"column:message_type;size:16" json:"messageType"`
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl,omitempty"`
	ImageID  string `json:"imageId,omitempty"`

	// Seen always reflects actual viewing; SeenAt is additionally gated by
	// both participants' read-receipt privacy flags.
	Seen   bool       `json:"seen"`
	SeenAt *time.Time `json:"seenAt,omitempty"`

	Reactions []Reaction       `gorm:"serializer:json" json:"reactions"`
	ReplyToID *string          `gorm:"size:36" json:"replyTo,omitempty"`
	Replied   *RepliedSnapshot `gorm:"serializer:json" json:"repliedMessage,omitempty"`

	IsForwarded bool       `json:"isForwarded"`
	IsEdited    bool       `json:"isEdited"`
	EditedAt    *time.Time `json:"editedAt,omitempty"`

	LinkPreview *LinkPreview `gorm:"serializer:json" json:"linkPreview,omitempty"`

	// Version backs optimistic concurrency control on read-modify-write
	// mutations (reactions, edits, soft delete, preview attachment).
	Version int `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (m *Message) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// ReactionBy returns the index of the user's reaction, or -1.
func (m *Message) ReactionBy(userID string) int {
	for i, r := range m.Reactions {
		if r.UserID == userID {
			return i
		}
	}
	return -1
}

// SnapshotType maps a message's type to the restricted snapshot vocabulary
// (text, image, deleted) used by RepliedSnapshot.
func (m *Message) SnapshotType() string {
	switch {
	case m.Type == MessageTypeDeleted:
		return MessageTypeDeleted
	case m.ImageURL != "" && m.Text == "":
		return MessageTypeImage
	default:
		return MessageTypeText
	}
}
