package seed

import (
	"fmt"
	"log"

	"ripple/internal/models"

	"gorm.io/gorm"
)

// Seeder populates the database with demo conversations.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db)}
}

// ClearAll removes all seeded rows. Messages first to satisfy references.
func (s *Seeder) ClearAll() error {
	if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.Message{}).Error; err != nil {
		return fmt.Errorf("clearing messages: %w", err)
	}
	if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.Chat{}).Error; err != nil {
		return fmt.Errorf("clearing chats: %w", err)
	}
	log.Println("Cleared existing chat data")
	return nil
}

// SeedChats creates numUsers synthetic user IDs and a mesh of chats between
// them, each holding messagesPerChat messages with occasional reactions.
// Returns the generated user IDs so callers can mint matching tokens.
func (s *Seeder) SeedChats(numUsers, messagesPerChat int) ([]string, error) {
	if numUsers < 2 {
		return nil, fmt.Errorf("need at least 2 users, got %d", numUsers)
	}

	users := make([]string, numUsers)
	for i := range users {
		users[i] = s.factory.NewUserID()
	}

	chatCount := 0
	for i := 0; i < numUsers; i++ {
		for j := i + 1; j < numUsers; j++ {
			// Sparse mesh: every user talks to roughly half the others.
			if (i+j)%2 == 1 {
				continue
			}
			chat, err := s.factory.CreateChat(users[i], users[j])
			if err != nil {
				return nil, fmt.Errorf("creating chat: %w", err)
			}
			chatCount++

			var last *models.Message
			for m := 0; m < messagesPerChat; m++ {
				sender := users[i]
				if m%2 == 1 {
					sender = users[j]
				}
				msg, err := s.factory.CreateMessage(chat, sender)
				if err != nil {
					return nil, fmt.Errorf("creating message: %w", err)
				}
				last = msg
			}

			if last != nil {
				if err := s.factory.AddRandomReaction(last, chat.OtherParticipant(last.SenderID)); err != nil {
					return nil, fmt.Errorf("adding reaction: %w", err)
				}
				summary := last.Text
				if summary == "" {
					summary = "Photo"
				}
				if err := s.db.Model(&models.Chat{}).Where("id = ?", chat.ID).
					Updates(map[string]any{
						"latest_text":      summary,
						"latest_sender_id": last.SenderID,
					}).Error; err != nil {
					return nil, fmt.Errorf("updating chat summary: %w", err)
				}
			}
		}
	}

	log.Printf("Seeded %d users, %d chats, ~%d messages each", numUsers, chatCount, messagesPerChat)
	return users, nil
}
