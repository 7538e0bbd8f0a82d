package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/praxia/praxia-go-api/internal/config"
	"github.com/praxia/praxia-go-api/internal/handler"
	"github.com/praxia/praxia-go-api/internal/middleware"
	"github.com/praxia/praxia-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssessmentHandler *handler.AssessmentHandler
	ActivityHandler   *handler.ActivityHandler
	StudentHandler    *handler.StudentHandler
	AlertHandler      *handler.AlertHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	if deps.AssessmentHandler != nil {
		assessments := api.Group("/assessments", middleware.RateLimit("assessments", 10, time.Minute))
		deps.AssessmentHandler.Register(assessments)
	}

	if deps.ActivityHandler != nil {
		activities := api.Group("/activities")
		deps.ActivityHandler.Register(activities)
	}

	students := api.Group("/students")
	if deps.StudentHandler != nil {
		deps.StudentHandler.Register(students)
	}
	if deps.AlertHandler != nil {
		deps.AlertHandler.RegisterStudentRoutes(students)
		alerts := api.Group("/alerts")
		deps.AlertHandler.RegisterAlertRoutes(alerts)
	}
}
