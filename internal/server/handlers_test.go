package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ripple/internal/config"
	"ripple/internal/database"
	"ripple/internal/models"
	"ripple/internal/observability"
	"ripple/internal/preview"
	"ripple/internal/profile"
	"ripple/internal/realtime"
	"ripple/internal/repository"
	"ripple/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestServer builds a Server on an in-memory database with no Redis and an
// unreachable profile service (lookups degrade to permissive defaults).
// Routes are registered behind a header-driven auth stub instead of the JWT
// middleware, which has its own tests.
func newTestServer(t *testing.T) (*Server, *fiber.App) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A second pooled connection to :memory: would open a separate empty
	// database, so pin the pool to one connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		JWTSecret:         "test-secret",
		Port:              "0",
		ProfileServiceURL: "http://127.0.0.1:1",
		ProfileTimeoutMS:  200,
		PreviewTimeoutMS:  200,
	}

	chatRepo := repository.NewChatRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	profiles := profile.NewClient(cfg.ProfileServiceURL,
		time.Duration(cfg.ProfileTimeoutMS)*time.Millisecond)
	previews := preview.NewFetcher(time.Duration(cfg.PreviewTimeoutMS) * time.Millisecond)
	hub := realtime.NewHub(nil)
	router := realtime.NewRouter(hub)

	srv := &Server{
		config:      cfg,
		db:          db,
		logger:      observability.Component("server"),
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		profiles:    profiles,
		hub:         hub,
		router:      router,
	}
	srv.chatService = service.NewChatService(chatRepo, messageRepo, profiles)
	srv.messageService = service.NewMessageService(
		chatRepo, messageRepo, hub, router, profiles, previews)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if uid := c.Get("X-Test-User"); uid != "" {
			c.Locals("userID", uid)
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUnauthorized)
	})

	api := app.Group("/api")
	chats := api.Group("/chats")
	chats.Post("/", srv.CreateChat)
	chats.Get("/", srv.GetChats)
	chats.Get("/:id/messages", srv.GetMessages)
	chats.Post("/:id/messages", srv.SendMessage)
	chats.Get("/:id", srv.GetChat)

	messages := api.Group("/messages")
	messages.Post("/:id/reactions", srv.AddReaction)
	messages.Post("/:id/forward", srv.ForwardMessage)
	messages.Patch("/:id", srv.EditMessage)
	messages.Delete("/:id", srv.DeleteMessage)

	return srv, app
}

func doJSON(t *testing.T, app *fiber.App, method, path, userID string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
	}

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestCreateChat(t *testing.T) {
	_, app := newTestServer(t)

	resp := doJSON(t, app, http.MethodPost, "/api/chats/", "alice", fiber.Map{"userId": "bob"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var chat models.Chat
	decodeBody(t, resp, &chat)
	assert.NotEmpty(t, chat.ID)
	assert.True(t, chat.HasParticipant("alice"))
	assert.True(t, chat.HasParticipant("bob"))

	// Opening from the other side returns the same chat.
	resp = doJSON(t, app, http.MethodPost, "/api/chats/", "bob", fiber.Map{"userId": "alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var again models.Chat
	decodeBody(t, resp, &again)
	assert.Equal(t, chat.ID, again.ID)
}

func TestCreateChat_Validation(t *testing.T) {
	_, app := newTestServer(t)

	t.Run("Self chat", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/api/chats/", "alice", fiber.Map{"userId": "alice"})
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Missing counterpart", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/api/chats/", "alice", fiber.Map{})
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/api/chats/", "", fiber.Map{"userId": "bob"})
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestGetChat_EnforcesMembership(t *testing.T) {
	_, app := newTestServer(t)

	resp := doJSON(t, app, http.MethodPost, "/api/chats/", "alice", fiber.Map{"userId": "bob"})
	var chat models.Chat
	decodeBody(t, resp, &chat)

	resp = doJSON(t, app, http.MethodGet, "/api/chats/"+chat.ID, "alice", nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/chats/"+chat.ID, "mallory", nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/chats/no-such-chat", "alice", nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSendAndListMessages(t *testing.T) {
	_, app := newTestServer(t)

	resp := doJSON(t, app, http.MethodPost, "/api/chats/", "alice", fiber.Map{"userId": "bob"})
	var chat models.Chat
	decodeBody(t, resp, &chat)

	resp = doJSON(t, app, http.MethodPost, "/api/chats/"+chat.ID+"/messages", "alice",
		fiber.Map{"text": "hello bob"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var msg models.Message
	decodeBody(t, resp, &msg)
	assert.Equal(t, "alice", msg.SenderID)
	assert.Equal(t, "bob", msg.ReceiverID)
	assert.Equal(t, models.MessageTypeText, msg.Type)
	assert.False(t, msg.Seen)

	// Bob fetching the chat marks Alice's message seen.
	resp = doJSON(t, app, http.MethodGet, "/api/chats/"+chat.ID+"/messages", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var msgs []models.Message
	decodeBody(t, resp, &msgs)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Seen)

	// The chat list reflects the latest message.
	resp = doJSON(t, app, http.MethodGet, "/api/chats/", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summaries []service.ChatSummary
	decodeBody(t, resp, &summaries)
	require.Len(t, summaries, 1)
	assert.Equal(t, "hello bob", summaries[0].LatestText)
}

func TestSendMessage_Validation(t *testing.T) {
	_, app := newTestServer(t)

	resp := doJSON(t, app, http.MethodPost, "/api/chats/", "alice", fiber.Map{"userId": "bob"})
	var chat models.Chat
	decodeBody(t, resp, &chat)

	t.Run("Empty message", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/api/chats/"+chat.ID+"/messages", "alice", fiber.Map{})
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Non-participant", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/api/chats/"+chat.ID+"/messages", "mallory",
			fiber.Map{"text": "hi"})
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("Unknown chat", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/api/chats/no-such-chat/messages", "alice",
			fiber.Map{"text": "hi"})
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestReactionEndpoint(t *testing.T) {
	_, app := newTestServer(t)

	resp := doJSON(t, app, http.MethodPost, "/api/chats/", "alice", fiber.Map{"userId": "bob"})
	var chat models.Chat
	decodeBody(t, resp, &chat)

	resp = doJSON(t, app, http.MethodPost, "/api/chats/"+chat.ID+"/messages", "alice",
		fiber.Map{"text": "react to me"})
	var msg models.Message
	decodeBody(t, resp, &msg)

	resp = doJSON(t, app, http.MethodPost, "/api/messages/"+msg.ID+"/reactions", "bob",
		fiber.Map{"emoji": "👍"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reacted models.Message
	decodeBody(t, resp, &reacted)
	require.Len(t, reacted.Reactions, 1)
	assert.Equal(t, models.Reaction{UserID: "bob", Emoji: "👍"}, reacted.Reactions[0])

	// Same emoji again toggles it off.
	resp = doJSON(t, app, http.MethodPost, "/api/messages/"+msg.ID+"/reactions", "bob",
		fiber.Map{"emoji": "👍"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &reacted)
	assert.Empty(t, reacted.Reactions)
}

func TestEditMessageEndpoint(t *testing.T) {
	_, app := newTestServer(t)

	resp := doJSON(t, app, http.MethodPost, "/api/chats/", "alice", fiber.Map{"userId": "bob"})
	var chat models.Chat
	decodeBody(t, resp, &chat)

	resp = doJSON(t, app, http.MethodPost, "/api/chats/"+chat.ID+"/messages", "alice",
		fiber.Map{"text": "typo"})
	var msg models.Message
	decodeBody(t, resp, &msg)

	resp = doJSON(t, app, http.MethodPatch, "/api/messages/"+msg.ID, "alice",
		fiber.Map{"text": "fixed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var edited models.Message
	decodeBody(t, resp, &edited)
	assert.Equal(t, "fixed", edited.Text)
	assert.True(t, edited.IsEdited)
	require.NotNil(t, edited.EditedAt)

	// Only the sender may edit.
	resp = doJSON(t, app, http.MethodPatch, "/api/messages/"+msg.ID, "bob",
		fiber.Map{"text": "hijack"})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDeleteMessageEndpoint(t *testing.T) {
	_, app := newTestServer(t)

	resp := doJSON(t, app, http.MethodPost, "/api/chats/", "alice", fiber.Map{"userId": "bob"})
	var chat models.Chat
	decodeBody(t, resp, &chat)

	resp = doJSON(t, app, http.MethodPost, "/api/chats/"+chat.ID+"/messages", "alice",
		fiber.Map{"text": "remove me"})
	var msg models.Message
	decodeBody(t, resp, &msg)

	// Only the sender may delete.
	resp = doJSON(t, app, http.MethodDelete, "/api/messages/"+msg.ID, "bob", nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, http.MethodDelete, "/api/messages/"+msg.ID, "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var deleted models.Message
	decodeBody(t, resp, &deleted)
	assert.Equal(t, models.MessageTypeDeleted, deleted.Type)
	assert.Empty(t, deleted.Text)
	assert.Empty(t, deleted.Reactions)
}

func TestForwardMessageEndpoint(t *testing.T) {
	_, app := newTestServer(t)

	resp := doJSON(t, app, http.MethodPost, "/api/chats/", "alice", fiber.Map{"userId": "bob"})
	var source models.Chat
	decodeBody(t, resp, &source)

	resp = doJSON(t, app, http.MethodPost, "/api/chats/", "alice", fiber.Map{"userId": "carol"})
	var target models.Chat
	decodeBody(t, resp, &target)

	resp = doJSON(t, app, http.MethodPost, "/api/chats/"+source.ID+"/messages", "alice",
		fiber.Map{"text": "pass it on"})
	var msg models.Message
	decodeBody(t, resp, &msg)

	t.Run("Missing target chat", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/api/messages/"+msg.ID+"/forward", "alice", fiber.Map{})
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Forward", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/api/messages/"+msg.ID+"/forward", "alice",
			fiber.Map{"chatId": target.ID})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var fwd models.Message
		decodeBody(t, resp, &fwd)
		assert.Equal(t, target.ID, fwd.ChatID)
		assert.Equal(t, "pass it on", fwd.Text)
		assert.Equal(t, models.MessageTypeForward, fwd.Type)
		assert.True(t, fwd.IsForwarded)
	})
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	app := fiber.New()
	app.Get("/health/live", srv.LivenessCheck)
	app.Get("/health/ready", srv.ReadinessCheck)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)

	var body struct {
		Status string `json:"status"`
		Checks struct {
			Database string `json:"database"`
			Redis    string `json:"redis"`
		} `json:"checks"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Checks.Database)
	// Absent Redis does not fail readiness.
	assert.Equal(t, "unavailable", body.Checks.Redis)
}

func TestServerErrorHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	// The app Start builds must route unhandled errors through the JSON
	// error responder instead of Fiber's plain-text default.
	app := srv.newApp()
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)

	var body models.ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.Equal(t, "boom", body.Details)
}

func TestRespondWithErrorShape(t *testing.T) {
	app := fiber.New()
	app.Get("/boom", func(c *fiber.Ctx) error {
		err := models.NewNotFoundError("message", "m-1")
		return models.RespondWithError(c, models.HTTPStatus(err), err)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)

	var body models.ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.Equal(t, fmt.Sprintf("message with ID %v not found", "m-1"), body.Error)
}
