package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-studyplan-api/internal/config"
	"github.com/noah-isme/gema-studyplan-api/internal/handler"
	"github.com/noah-isme/gema-studyplan-api/internal/middleware"
	"github.com/noah-isme/gema-studyplan-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	PlanTemplateHandler *handler.PlanTemplateHandler
	StudyPlanHandler    *handler.StudyPlanHandler
	StudyTaskHandler    *handler.StudyTaskHandler
	StatsHandler        *handler.StatsHandler
	RetentionHandler    *handler.RetentionHandler
	ActivityHandler     *handler.ActivityHandler
	HealthProbes        map[string]handler.HealthProbe
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	mentorOnly := middleware.RequireRole("teacher", "admin")
	adminOnly := middleware.RequireRole("admin")

	window := cfg.TaskRateLimitWindow
	if window <= 0 {
		window = time.Minute
	}

	study := app.Group("/api/v2/study", jwtMiddleware)

	if deps.PlanTemplateHandler != nil {
		deps.PlanTemplateHandler.Register(study.Group("/templates"), mentorOnly)
	}

	if deps.StudyPlanHandler != nil {
		deps.StudyPlanHandler.Register(study.Group("/plans"), mentorOnly)
	}

	if deps.StudyTaskHandler != nil {
		deps.StudyTaskHandler.Register(study.Group("/tasks"),
			[]fiber.Handler{
				guard(middleware.AuthRoleStudent),
				middleware.RateLimit("task-complete", cfg.TaskRateLimit, window),
			},
			[]fiber.Handler{
				guard(middleware.AuthRoleMentor),
				middleware.RateLimit("task-verify", cfg.TaskRateLimit, window),
			},
		)
	}

	if deps.StatsHandler != nil {
		deps.StatsHandler.Register(study.Group("/students", guard(middleware.AuthRoleAny)))
	}

	if deps.RetentionHandler != nil {
		deps.RetentionHandler.Register(study.Group("/schools", adminOnly))
	}

	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(study.Group("/activities", mentorOnly))
	}
}

// guard turns WithAuth into a route middleware for the given role group.
func guard(role string) fiber.Handler {
	return middleware.WithAuth(func(c *fiber.Ctx) error { return c.Next() }, middleware.AuthOptions{Role: role})
}
