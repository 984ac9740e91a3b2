package api

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/jetstream/internal/analysis"
	"github.com/p-blackswan/jetstream/internal/blob"
	"github.com/p-blackswan/jetstream/internal/health"
	"github.com/p-blackswan/jetstream/internal/metrics"
)

type statusRequest struct {
	TaskID string `json:"taskId"`
}

type statusHandler struct {
	tracker *analysis.Tracker
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewStatusServer builds the status checker application: POST / returns the
// task's status record verbatim, or {"status":"pending"} if there is none.
func NewStatusServer(cfg ServerConfig, tracker *analysis.Tracker, checker *health.Checker, m *metrics.Metrics, logger zerolog.Logger) *Server {
	s := newServer("status_server", cfg, checker, m, logger)
	h := &statusHandler{tracker: tracker, metrics: m, logger: s.logger}
	s.app.Post("/", h.handle)
	return s
}

func (h *statusHandler) handle(c *fiber.Ctx) error {
	var req statusRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil || req.TaskID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "taskId is required")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	raw, err := h.tracker.Raw(c.UserContext(), req.TaskID)
	if err != nil {
		if !errors.Is(err, blob.ErrNotFound) {
			h.logger.Warn().Err(err).Str("task_id", req.TaskID).Msg("failed to read task status, reporting pending")
		}
		h.metrics.RecordStatusPoll(false)
		return c.Status(fiber.StatusOK).Send(analysis.PendingRecord())
	}

	if !json.Valid(raw) {
		h.logger.Warn().Str("task_id", req.TaskID).Msg("corrupt task status record, reporting pending")
		h.metrics.RecordStatusPoll(false)
		return c.Status(fiber.StatusOK).Send(analysis.PendingRecord())
	}

	h.metrics.RecordStatusPoll(true)
	return c.Status(fiber.StatusOK).Send(raw)
}
