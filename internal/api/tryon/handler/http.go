package tryonHandler

import (
	tryonService "OpticalFactory/internal/api/tryon/service"
	"OpticalFactory/internal/middleware"
	"OpticalFactory/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type TryOnHandler struct {
	log          *logrus.Logger
	validator    *validator.Validate
	middleware   middleware.Middleware
	tryOnService tryonService.ITryOnService
	utils        utils.IUtils
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ts tryonService.ITryOnService,
	utils utils.IUtils,
) *TryOnHandler {
	return &TryOnHandler{
		tryOnService: ts,
		log:          log,
		validator:    validator,
		middleware:   middleware,
		utils:        utils,
	}
}

func (h *TryOnHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	face := srv.Group("/face")
	face.Get("/test", h.Test)
	face.Post("/detect", h.middleware.NewRateLimiter, h.middleware.NewOptionalTokenMiddleware, h.Detect)
	face.Post("/pose", h.middleware.NewRateLimiter, h.middleware.NewOptionalTokenMiddleware, h.Pose)

	face.Use("/ws", wsMiddleware)
	face.Get("/ws", h.middleware.NewOptionalTokenMiddleware, websocket.New(h.handleWebSocket))

	face.Get("/sessions", h.middleware.NewTokenMiddleware, h.History)
	face.Get("/sessions/:id", h.middleware.NewOptionalTokenMiddleware, h.GetSession)
	face.Delete("/sessions/:id", h.middleware.NewOptionalTokenMiddleware, h.CloseSession)
}
