package server

import (
	"ripple/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CreateChat handles POST /api/chats. Creation is idempotent: opening a chat
// with the same counterpart returns the existing one.
func (s *Server) CreateChat(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(string)

	var req struct {
		UserID string `json:"userId"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	chat, err := s.chatService.Open(ctx, userID, req.UserID)
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}

	return c.Status(fiber.StatusCreated).JSON(chat)
}

// GetChats handles GET /api/chats.
func (s *Server) GetChats(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(string)

	chats, err := s.chatService.List(ctx, userID)
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}

	return c.JSON(chats)
}

// GetChat handles GET /api/chats/:id.
func (s *Server) GetChat(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(string)
	chatID := c.Params("id")

	chat, err := s.chatService.Get(ctx, chatID, userID)
	if err != nil {
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	}

	return c.JSON(chat)
}
