package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-studyplan-api/internal/dto"
	"github.com/noah-isme/gema-studyplan-api/internal/service"
	"github.com/noah-isme/gema-studyplan-api/internal/utils"
)

// PlanTemplateHandler exposes reusable plan template endpoints.
type PlanTemplateHandler struct {
	templates service.PlanTemplateService
	instances service.PlanInstanceService
	logger    zerolog.Logger
}

// NewPlanTemplateHandler constructs the handler.
func NewPlanTemplateHandler(templates service.PlanTemplateService, instances service.PlanInstanceService, logger zerolog.Logger) *PlanTemplateHandler {
	return &PlanTemplateHandler{
		templates: templates,
		instances: instances,
		logger:    logger.With().Str("component", "plan_template_handler").Logger(),
	}
}

// Register attaches template routes. Mutating routes are expected to sit
// behind a mentor guard supplied by the router.
func (h *PlanTemplateHandler) Register(router fiber.Router, mentorOnly fiber.Handler) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", mentorOnly, h.create)
	router.Delete("/:id", mentorOnly, h.delete)
	router.Post("/:id/instantiate", mentorOnly, h.instantiate)
}

func (h *PlanTemplateHandler) list(c *fiber.Ctx) error {
	schoolID, err := parseQueryUint(c, "school_id")
	if err != nil {
		return badRequest(c, "invalid school id")
	}

	items, err := h.templates.List(c.UserContext(), schoolID, c.Query("exam_type"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to list plan templates")
	}
	return utils.SendSuccess(c, "plan templates", items)
}

func (h *PlanTemplateHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid template id")
	}

	template, err := h.templates.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load plan template")
	}
	return utils.SendSuccess(c, "plan template", template)
}

func (h *PlanTemplateHandler) create(c *fiber.Ctx) error {
	var payload dto.PlanTemplateCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid payload")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to resolve actor")
	}

	template, err := h.templates.Create(c.UserContext(), payload, actor)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create plan template")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "plan template created", template)
}

func (h *PlanTemplateHandler) delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid template id")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to resolve actor")
	}

	if err := h.templates.Delete(c.UserContext(), id, actor); err != nil {
		return respondError(c, h.logger, err, "failed to delete plan template")
	}
	return utils.SendSuccess(c, "plan template deleted", fiber.Map{"id": id})
}

func (h *PlanTemplateHandler) instantiate(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid template id")
	}

	var payload dto.PlanInstantiateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid payload")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to resolve actor")
	}

	plan, err := h.instances.CreateFromTemplate(c.UserContext(), id, payload, actor)
	if err != nil {
		return respondError(c, h.logger, err, "failed to instantiate plan template")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "study plan created", plan)
}
