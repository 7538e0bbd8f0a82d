package handler

import (
	"errors"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/praxia/praxia-go-api/internal/dto"
	"github.com/praxia/praxia-go-api/internal/service"
	"github.com/praxia/praxia-go-api/internal/utils"
)

// AssessmentHandler manages the photographed-work submission endpoints.
type AssessmentHandler struct {
	service service.AssessmentService
	logger  zerolog.Logger
}

// NewAssessmentHandler builds an assessment handler instance.
func NewAssessmentHandler(service service.AssessmentService, logger zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assessment_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *AssessmentHandler) Register(router fiber.Router) {
	router.Post("", h.submit)
	router.Get("/:id", h.get)
	router.Post("/:id/viewed", h.markViewed)
}

func (h *AssessmentHandler) submit(c *fiber.Ctx) error {
	studentID, err := parseFormUint(c, "student_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	payload := dto.AssessmentSubmitRequest{
		StudentID:  *studentID,
		Subject:    c.FormValue("subject"),
		Topic:      c.FormValue("topic"),
		GradeLevel: c.FormValue("grade_level"),
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "image is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read image")
	}
	defer func() { _ = file.Close() }()

	image, err := io.ReadAll(file)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read image")
	}

	response, err := h.service.Submit(c.UserContext(), payload, image)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "attempt accepted", response)
}

func (h *AssessmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	attempt, err := h.service.GetAttempt(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempt retrieved", attempt)
}

func (h *AssessmentHandler) markViewed(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	attempt, err := h.service.MarkViewed(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempt marked viewed", attempt)
}

func (h *AssessmentHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "student not found")
	case errors.Is(err, service.ErrAttemptNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "attempt not found")
	case errors.Is(err, service.ErrNotAnImage):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "submitted file is not an image")
	case errors.Is(err, service.ErrAttemptNotTerminal):
		return utils.SendError(c, fiber.StatusConflict, "attempt has not finished processing")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
