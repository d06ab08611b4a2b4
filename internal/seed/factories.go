// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"ripple/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db  *gorm.DB
	rnd *rand.Rand
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{db: db, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewUserID generates a user ID shaped like the ones the identity service
// issues. Users live in an external service; only their IDs appear here.
func (f *Factory) NewUserID() string {
	return uuid.NewString()
}

// CreateChat persists a chat between the two users.
func (f *Factory) CreateChat(userA, userB string) (*models.Chat, error) {
	chat := &models.Chat{
		UserAID: userA,
		UserBID: userB,
		PairKey: models.PairKey(userA, userB),
	}
	if err := f.db.Create(chat).Error; err != nil {
		return nil, err
	}
	return chat, nil
}

// CreateMessage constructs and persists a sample message in the chat with a
// realistic created_at spread. Optional override functions may modify the
// generated message before saving.
func (f *Factory) CreateMessage(chat *models.Chat, senderID string, overrides ...func(*models.Message)) (*models.Message, error) {
	receiver := chat.OtherParticipant(senderID)

	msg := &models.Message{
		ChatID:     chat.ID,
		SenderID:   senderID,
		ReceiverID: receiver,
		Type:       models.MessageTypeText,
		Text:       gofakeit.Sentence(f.rnd.Intn(12) + 3),
		Reactions:  []models.Reaction{},
	}

	daysBack := f.rnd.Intn(14)
	minsBack := f.rnd.Intn(24 * 60)
	msg.CreatedAt = time.Now().
		Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(minsBack)*time.Minute)

	// Roughly one in six demo messages carries an image.
	if f.rnd.Intn(6) == 0 {
		msg.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/600", gofakeit.UUID())
		msg.ImageID = gofakeit.UUID()
		if f.rnd.Intn(2) == 0 {
			msg.Text = ""
			msg.Type = models.MessageTypeImage
		}
	}

	for _, override := range overrides {
		override(msg)
	}

	if err := f.db.Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// AddRandomReaction appends a plausible reaction from the given user.
func (f *Factory) AddRandomReaction(msg *models.Message, userID string) error {
	emojis := []string{"👍", "❤️", "😂", "😮", "😢", "🔥"}
	msg.Reactions = append(msg.Reactions, models.Reaction{
		UserID: userID,
		Emoji:  emojis[f.rnd.Intn(len(emojis))],
	})
	msg.Version++
	return f.db.Model(msg).
		Select("reactions", "version").
		Updates(*msg).Error
}
