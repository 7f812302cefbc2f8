package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/postflowhq/autopost/configs"
	"github.com/postflowhq/autopost/internal/dispatcher"
)

// DispatchHandler is the thin trigger adapter around the dispatcher. The
// cycle itself knows nothing about HTTP; this exists so an external cron
// service can drive dispatch in deployments without the in-process ticker.
type DispatchHandler struct {
	d   *dispatcher.Dispatcher
	cfg config.Config
}

func NewDispatchHandler(d *dispatcher.Dispatcher, cfg config.Config) *DispatchHandler {
	return &DispatchHandler{d: d, cfg: cfg}
}

func (h *DispatchHandler) RunCycle(c *fiber.Ctx) error {
	if h.cfg.CronSecret == "" || c.Get("X-Cron-Secret") != h.cfg.CronSecret {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid cron secret",
		})
	}

	stats, err := h.d.RunCycle(c.Context(), time.Now())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(stats)
}
