package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	jserrors "github.com/p-blackswan/jetstream/internal/errors"
	"github.com/p-blackswan/jetstream/internal/health"
	"github.com/p-blackswan/jetstream/internal/metrics"
	"github.com/p-blackswan/jetstream/internal/orchestrator"
	"github.com/p-blackswan/jetstream/internal/project"
)

// TaskResponse is returned when a background analysis was started.
type TaskResponse struct {
	TaskID string `json:"taskId"`
}

// HistoryResponse carries the full conversation after a follow-up or idle request.
type HistoryResponse struct {
	ChatHistory []project.ChatEntry `json:"chatHistory"`
}

type orchestratorHandler struct {
	svc     *orchestrator.Service
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewOrchestratorServer builds the orchestrator application: POST / runs a flow.
func NewOrchestratorServer(cfg ServerConfig, svc *orchestrator.Service, checker *health.Checker, m *metrics.Metrics, logger zerolog.Logger) *Server {
	s := newServer("orchestrator_server", cfg, checker, m, logger)
	h := &orchestratorHandler{svc: svc, metrics: m, logger: s.logger}
	s.app.Post("/", h.handle)
	return s
}

func (h *orchestratorHandler) handle(c *fiber.Ctx) error {
	start := time.Now()
	flow := "rejected"
	defer func() {
		h.metrics.RecordFlow(flow, c.Response().StatusCode(), time.Since(start).Seconds())
	}()

	var req orchestrator.Request
	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid JSON payload: Invalid JSON payload received.")
	}
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Warn().Err(err).Msg("invalid request body")
		return errorResponse(c, fiber.StatusBadRequest, "Invalid JSON payload: "+err.Error())
	}

	res, err := h.svc.Handle(c.UserContext(), req)
	switch {
	case errors.Is(err, jserrors.ErrInvalidInput):
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	case err != nil && orchestrator.IsQueueFull(err):
		return errorResponse(c, fiber.StatusServiceUnavailable, err.Error())
	case err != nil:
		c.Status(fiber.StatusInternalServerError)
		return err
	}

	flow = res.Flow
	if res.Flow == orchestrator.FlowAnalysis {
		return c.Status(fiber.StatusAccepted).JSON(TaskResponse{TaskID: res.TaskID})
	}
	return c.Status(fiber.StatusOK).JSON(HistoryResponse{ChatHistory: res.ChatHistory})
}
