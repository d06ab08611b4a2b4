package server

import (
	"ripple/internal/models"
	"ripple/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SendMessage handles POST /api/chats/:id/messages.
func (s *Server) SendMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(string)
	chatID := c.Params("id")

	var req struct {
		Text      string `json:"text,omitempty"`
		ImageURL  string `json:"imageUrl,omitempty"`
		ImageID   string `json:"imageId,omitempty"`
		ReplyToID string `json:"replyToId,omitempty"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	msg, err := s.messageService.Send(ctx, service.SendInput{
		SenderID:  userID,
		ChatID:    chatID,
		Text:      req.Text,
		ImageURL:  req.ImageURL,
		ImageID:   req.ImageID,
		ReplyToID: req.ReplyToID,
	})
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}

	s.profiles.UpdateLastSeen(userID)

	return c.Status(fiber.StatusCreated).JSON(msg)
}

// GetMessages handles GET /api/chats/:id/messages. Fetching a chat's
// messages also marks the other side's unseen messages as seen.
func (s *Server) GetMessages(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(string)
	chatID := c.Params("id")

	msgs, err := s.messageService.ListAndMarkSeen(ctx, userID, chatID)
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}

	return c.JSON(msgs)
}

// AddReaction handles POST /api/messages/:id/reactions.
func (s *Server) AddReaction(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(string)
	messageID := c.Params("id")

	var req struct {
		Emoji string `json:"emoji"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	msg, err := s.messageService.ToggleReaction(ctx, userID, messageID, req.Emoji)
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}

	return c.JSON(msg)
}

// EditMessage handles PATCH /api/messages/:id.
func (s *Server) EditMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(string)
	messageID := c.Params("id")

	var req struct {
		Text string `json:"text"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	msg, err := s.messageService.Edit(ctx, userID, messageID, req.Text)
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}

	return c.JSON(msg)
}

// DeleteMessage handles DELETE /api/messages/:id.
func (s *Server) DeleteMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(string)
	messageID := c.Params("id")

	msg, err := s.messageService.Delete(ctx, userID, messageID)
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}

	return c.JSON(msg)
}

// ForwardMessage handles POST /api/messages/:id/forward.
func (s *Server) ForwardMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(string)
	messageID := c.Params("id")

	var req struct {
		ChatID string `json:"chatId"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.ChatID == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Target chat is required"))
	}

	msg, err := s.messageService.Forward(ctx, userID, messageID, req.ChatID)
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}

	return c.Status(fiber.StatusCreated).JSON(msg)
}
