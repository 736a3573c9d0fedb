package http

import (
	"github.com/gofiber/fiber/v2"

	"jobscout/internal/queue"
	"jobscout/pkg/response"
)

// AdminHandler exposes the operator surface over the run queue.
type AdminHandler struct {
	queue *queue.Queue
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(q *queue.Queue) *AdminHandler {
	return &AdminHandler{queue: q}
}

// Register mounts the admin routes.
func (h *AdminHandler) Register(app *fiber.App) {
	admin := app.Group("/admin/queue")
	admin.Get("/status", h.Status)
	admin.Get("/failed", h.Failed)
	admin.Post("/trigger", h.Trigger)
}

// Status returns the queue snapshot: counts per state and the active run.
func (h *AdminHandler) Status(c *fiber.Ctx) error {
	st, err := h.queue.Status(c.Context())
	if err != nil {
		return response.AppError(c, err)
	}
	return response.OK(c, st)
}

// Failed returns the retained failed-run history.
func (h *AdminHandler) Failed(c *fiber.Ctx) error {
	runs, err := h.queue.RecentFailed(c.Context())
	if err != nil {
		return response.AppError(c, err)
	}
	return response.OK(c, runs)
}

// triggerRequest is the manual-trigger payload.
type triggerRequest struct {
	Type string `json:"type"`
}

// Trigger enqueues a run manually. A run type already waiting or active
// yields 409 with the in-flight run id.
func (h *AdminHandler) Trigger(c *fiber.Ctx) error {
	var req triggerRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if req.Type == "" {
		return response.BadRequest(c, "type is required")
	}

	run, err := h.queue.Enqueue(c.Context(), queue.RunType(req.Type), "manual", queue.PriorityHigh)
	if err != nil {
		return response.AppError(c, err)
	}
	return response.Accepted(c, run)
}
