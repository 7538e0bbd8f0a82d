package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/praxia/praxia-go-api/internal/dto"
	"github.com/praxia/praxia-go-api/internal/service"
	"github.com/praxia/praxia-go-api/internal/utils"
)

// AlertHandler manages performance alert endpoints.
type AlertHandler struct {
	service service.AlertService
	logger  zerolog.Logger
}

// NewAlertHandler builds an alert handler instance.
func NewAlertHandler(service service.AlertService, logger zerolog.Logger) *AlertHandler {
	return &AlertHandler{
		service: service,
		logger:  logger.With().Str("component", "alert_handler").Logger(),
	}
}

// RegisterStudentRoutes attaches the per-student alert routes.
func (h *AlertHandler) RegisterStudentRoutes(router fiber.Router) {
	router.Post("/:id/alerts/analyze", h.analyze)
	router.Get("/:id/alerts", h.list)
}

// RegisterAlertRoutes attaches the alert lifecycle routes.
func (h *AlertHandler) RegisterAlertRoutes(router fiber.Router) {
	router.Post("/:id/acknowledge", h.acknowledge)
	router.Post("/:id/resolve", h.resolve)
	router.Post("/:id/dismiss", h.dismiss)
}

func (h *AlertHandler) analyze(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	alerts, err := h.service.Analyze(c.UserContext(), studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "analysis complete", alerts)
}

func (h *AlertHandler) list(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var statuses []string
	if raw := c.Query("status"); raw != "" {
		statuses = splitAndTrim(raw)
	}

	alerts, err := h.service.ListAlerts(c.UserContext(), studentID, statuses)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "alerts retrieved", alerts)
}

func (h *AlertHandler) acknowledge(c *fiber.Ctx) error {
	return h.transition(c, h.service.Acknowledge, "alert acknowledged")
}

func (h *AlertHandler) resolve(c *fiber.Ctx) error {
	return h.transition(c, h.service.Resolve, "alert resolved")
}

func (h *AlertHandler) dismiss(c *fiber.Ctx) error {
	return h.transition(c, h.service.Dismiss, "alert dismissed")
}

func (h *AlertHandler) transition(c *fiber.Ctx, fn func(ctx context.Context, alertID uint) (dto.AlertResponse, error), message string) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	alert, err := fn(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, message, alert)
}

func (h *AlertHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrAlertNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "alert not found")
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
