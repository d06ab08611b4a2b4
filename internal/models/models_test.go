package models

import (
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestPairKey_OrderIndependent(t *testing.T) {
	assert.Equal(t, PairKey("alice", "bob"), PairKey("bob", "alice"))
	assert.Equal(t, "alice|bob", PairKey("bob", "alice"))
}

func TestChat_Participants(t *testing.T) {
	chat := &Chat{UserAID: "alice", UserBID: "bob"}

	assert.True(t, chat.HasParticipant("alice"))
	assert.True(t, chat.HasParticipant("bob"))
	assert.False(t, chat.HasParticipant("mallory"))

	assert.Equal(t, "bob", chat.OtherParticipant("alice"))
	assert.Equal(t, "alice", chat.OtherParticipant("bob"))
}

func TestMessage_SnapshotType(t *testing.T) {
	tests := []struct {
		name     string
		message  Message
		expected string
	}{
		{"Text message", Message{Type: MessageTypeText, Text: "hi"}, MessageTypeText},
		{"Image only", Message{Type: MessageTypeImage, ImageURL: "https://cdn/img.png"}, MessageTypeImage},
		{"Image with caption", Message{Type: MessageTypeImage, Text: "look", ImageURL: "https://cdn/img.png"}, MessageTypeText},
		{"Forward with image only", Message{Type: MessageTypeForward, ImageURL: "https://cdn/img.png"}, MessageTypeImage},
		{"Deleted", Message{Type: MessageTypeDeleted}, MessageTypeDeleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.message.SnapshotType())
		})
	}
}

func TestMessage_ReactionBy(t *testing.T) {
	msg := Message{Reactions: []Reaction{
		{UserID: "alice", Emoji: "👍"},
		{UserID: "bob", Emoji: "❤️"},
	}}

	assert.Equal(t, 0, msg.ReactionBy("alice"))
	assert.Equal(t, 1, msg.ReactionBy("bob"))
	assert.Equal(t, -1, msg.ReactionBy("mallory"))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"Validation", NewValidationError("bad input"), fiber.StatusBadRequest},
		{"Not found", NewNotFoundError("chat", "c-1"), fiber.StatusNotFound},
		{"Forbidden", NewForbiddenError("not a participant"), fiber.StatusForbidden},
		{"Unauthorized", NewUnauthorizedError("no token"), fiber.StatusUnauthorized},
		{"Internal", NewInternalError(errors.New("boom")), fiber.StatusInternalServerError},
		{"Plain error", errors.New("boom"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	appErr := NewInternalError(inner)

	assert.ErrorIs(t, appErr, inner)
	assert.Contains(t, appErr.Error(), "connection reset")
}
