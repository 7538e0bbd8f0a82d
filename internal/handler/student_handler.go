package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/praxia/praxia-go-api/internal/service"
	"github.com/praxia/praxia-go-api/internal/utils"
)

// StudentHandler serves the per-student read surfaces: gamification summary
// and learning profile.
type StudentHandler struct {
	summaries service.SummaryService
	profiles  service.ProfileService
	logger    zerolog.Logger
}

// NewStudentHandler builds a student read-surface handler instance.
func NewStudentHandler(summaries service.SummaryService, profiles service.ProfileService, logger zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		summaries: summaries,
		profiles:  profiles,
		logger:    logger.With().Str("component", "student_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *StudentHandler) Register(router fiber.Router) {
	router.Get("/:id/gamification", h.gamificationSummary)
	router.Get("/:id/profile", h.learningProfile)
}

func (h *StudentHandler) gamificationSummary(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summary, err := h.summaries.GetSummary(c.UserContext(), id)
	if err != nil {
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "gamification summary retrieved", summary)
}

func (h *StudentHandler) learningProfile(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	profile, err := h.profiles.GetProfile(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "learning profile not found")
		}
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "learning profile retrieved", profile)
}
