// Package httpapi exposes dashboards, check-ins, the social overlay,
// notifications and the live push channel over HTTP.
package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"planpact/internal/push"
	"planpact/internal/repository"
	"planpact/internal/service"
)

// Deps are the collaborators the handlers call.
type Deps struct {
	Dashboards    *service.DashboardService
	Progress      *service.ProgressService
	Social        *service.SocialService
	Notifications *service.NotificationService
	Plans         *repository.PlanRepository
	Hub           *push.Hub
	// Health reports whether the store is reachable. Nil means always healthy.
	Health func(ctx context.Context) error
}

type handlers struct {
	Deps
	log *logrus.Entry
}

// NewApp builds the fiber application.
func NewApp(deps Deps, jwtSecret string, log *logrus.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "planpact",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})
	app.Use(recover.New())
	app.Use(requestLogger(log))

	h := &handlers{Deps: deps, log: log.WithField("component", "http")}

	app.Get("/health", h.health)

	api := app.Group("", Protected([]byte(jwtSecret)))
	api.Get("/plans/:id/dashboard", h.dashboard)
	api.Post("/plans/:id/checkins", h.checkIn)

	progress := api.Group("/progress/:kind/:id")
	progress.Get("/overlay", h.overlay)
	progress.Put("/reactions", h.react)
	progress.Delete("/reactions", h.unreact)
	progress.Post("/comments", h.addComment)

	api.Patch("/comments/:id", h.editComment)
	api.Get("/notifications", h.listNotifications)
	api.Post("/notifications/:id/read", h.markRead)

	api.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	api.Get("/ws", websocket.New(h.stream))

	return app
}

func requestLogger(log *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		log.WithFields(logrus.Fields{
			"method":  c.Method(),
			"path":    c.Path(),
			"status":  status,
			"latency": time.Since(start).String(),
		}).Debug("HTTP request")
		return err
	}
}

func (h *handlers) health(c *fiber.Ctx) error {
	if h.Health != nil {
		if err := h.Health(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
