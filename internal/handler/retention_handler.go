package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-studyplan-api/internal/dto"
	"github.com/noah-isme/gema-studyplan-api/internal/service"
	"github.com/noah-isme/gema-studyplan-api/internal/utils"
)

// RetentionHandler exposes school retention policy and cleanup endpoints.
type RetentionHandler struct {
	service service.RetentionScheduler
	logger  zerolog.Logger
}

// NewRetentionHandler constructs the handler.
func NewRetentionHandler(service service.RetentionScheduler, logger zerolog.Logger) *RetentionHandler {
	return &RetentionHandler{
		service: service,
		logger:  logger.With().Str("component", "retention_handler").Logger(),
	}
}

// Register attaches retention routes under /schools.
func (h *RetentionHandler) Register(router fiber.Router) {
	router.Get("/:id/retention", h.policy)
	router.Put("/:id/retention", h.updatePolicy)
	router.Get("/:id/retention/preview", h.preview)
	router.Post("/:id/retention/run", h.run)
}

func (h *RetentionHandler) policy(c *fiber.Ctx) error {
	schoolID, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid school id")
	}

	policy, err := h.service.Policy(c.UserContext(), schoolID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load retention policy")
	}
	return utils.SendSuccess(c, "retention policy", policy)
}

func (h *RetentionHandler) updatePolicy(c *fiber.Ctx) error {
	schoolID, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid school id")
	}

	var payload dto.RetentionPolicyUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid payload")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to resolve actor")
	}

	policy, err := h.service.UpdatePolicy(c.UserContext(), schoolID, payload, actor)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update retention policy")
	}
	return utils.SendSuccess(c, "retention policy updated", policy)
}

func (h *RetentionHandler) preview(c *fiber.Ctx) error {
	schoolID, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid school id")
	}

	report, err := h.service.Preview(c.UserContext(), schoolID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to preview cleanup")
	}
	return utils.SendSuccess(c, "cleanup preview", report)
}

func (h *RetentionHandler) run(c *fiber.Ctx) error {
	schoolID, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid school id")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to resolve actor")
	}

	report, err := h.service.RunCleanup(c.UserContext(), schoolID, actor)
	if err != nil {
		return respondError(c, h.logger, err, "failed to run cleanup")
	}
	return utils.SendSuccess(c, "cleanup finished", report)
}
