package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Etopia1/UberAppBackend/internal/apperr"
	"github.com/Etopia1/UberAppBackend/internal/auth"
	"github.com/Etopia1/UberAppBackend/internal/chat"
	"github.com/Etopia1/UberAppBackend/internal/registry"
	"github.com/Etopia1/UberAppBackend/internal/repository"
	"github.com/Etopia1/UberAppBackend/internal/ws"
)

type Server struct {
	engine *chat.Engine
	store  repository.Store
	reg    *registry.Registry
	secret string
	log    *zap.SugaredLogger
}

func NewServer(wsrv *ws.Server, engine *chat.Engine, store repository.Store, reg *registry.Registry, jwtSecret string, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New()
	app.Use(fiberlogger.New())

	s := &Server{engine: engine, store: store, reg: reg, secret: jwtSecret, log: log}

	v1 := app.Group("/v1")
	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	v1.Get("/ws", websocket.New(wsrv.HandleWS()))

	authed := v1.Group("/", s.requireAuth)
	authed.Get("/conversations", s.listConversations)
	authed.Post("/conversations", s.createConversation)
	authed.Get("/conversations/:id/messages", s.listMessages)
	authed.Get("/conversations/:id/media", s.listMedia)
	authed.Post("/conversations/:id/read", s.markRead)
	authed.Get("/users/:id/presence", s.getPresence)

	return app
}

func (s *Server) requireAuth(c *fiber.Ctx) error {
	token, err := auth.ParseBearerToken(c.Get("Authorization"))
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}
	claims, err := auth.ParseAndValidateToken(s.secret, token)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}
	c.Locals("user_id", claims.UserID)
	return c.Next()
}

func userID(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, apperr.ErrInvalidState):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) listConversations(c *fiber.Ctx) error {
	convs, err := s.store.ListConversations(c.Context(), userID(c))
	if err != nil {
		return fiber.NewError(httpStatus(err), "failed to fetch conversations")
	}
	return c.JSON(fiber.Map{"conversations": convs})
}

func (s *Server) createConversation(c *fiber.Ctx) error {
	var body struct {
		ParticipantID string `json:"participantId"`
	}
	if err := c.BodyParser(&body); err != nil || body.ParticipantID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "participantId required")
	}
	ids := []string{userID(c), body.ParticipantID}
	conv, err := s.store.FindConversationByParticipants(c.Context(), ids)
	if errors.Is(err, apperr.ErrNotFound) {
		conv, err = s.store.CreateConversation(c.Context(), ids)
	}
	if err != nil {
		return fiber.NewError(httpStatus(err), "failed to create conversation")
	}
	return c.JSON(fiber.Map{"conversation": conv})
}

func (s *Server) listMessages(c *fiber.Ctx) error {
	limit := int64(c.QueryInt("limit", 50))
	page := int64(c.QueryInt("page", 1))
	msgs, err := s.store.ListMessages(c.Context(), c.Params("id"), limit, page)
	if err != nil {
		return fiber.NewError(httpStatus(err), "failed to fetch messages")
	}
	return c.JSON(fiber.Map{"messages": msgs, "page": page})
}

func (s *Server) listMedia(c *fiber.Ctx) error {
	media, err := s.store.ListConversationMedia(c.Context(), c.Params("id"))
	if err != nil {
		return fiber.NewError(httpStatus(err), "failed to fetch media")
	}
	return c.JSON(fiber.Map{"media": media})
}

func (s *Server) markRead(c *fiber.Ctx) error {
	n, err := s.engine.MarkConversationRead(c.Context(), c.Params("id"), userID(c))
	if err != nil {
		return fiber.NewError(httpStatus(err), "failed to mark messages as read")
	}
	return c.JSON(fiber.Map{"marked": n})
}

func (s *Server) getPresence(c *fiber.Ctx) error {
	uid := c.Params("id")
	return c.JSON(fiber.Map{"userId": uid, "isOnline": s.reg.IsOnline(uid)})
}
