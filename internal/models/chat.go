// Package models defines the persistent domain records and the error model.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Chat is a 1:1 conversation between two users. It is created lazily on first
// contact and carries a denormalized summary of its most recent message.
type Chat struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	UserAID        string    `gorm:"size:64;index" json:"userAId"`
	UserBID        string    `gorm:"size:64;index" json:"userBId"`
	PairKey        string    `gorm:"size:130;uniqueIndex" json:"-"`
	LatestText     string    `json:"latestText"`
	LatestSenderID string    `gorm:"size:64" json:"latestSenderId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (c *Chat) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.PairKey == "" {
		c.PairKey = PairKey(c.UserAID, c.UserBID)
	}
	return nil
}

// PairKey derives the canonical key for an unordered pair of user IDs.
func PairKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}

// HasParticipant reports whether the user belongs to this chat.
func (c *Chat) HasParticipant(userID string) bool {
	return c.UserAID == userID || c.UserBID == userID
}

// OtherParticipant returns the chat member that is not the given user.
func (c *Chat) OtherParticipant(userID string) string {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}
