package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-studyplan-api/internal/dto"
	"github.com/noah-isme/gema-studyplan-api/internal/models"
	"github.com/noah-isme/gema-studyplan-api/internal/service"
	"github.com/noah-isme/gema-studyplan-api/internal/utils"
)

// StudyPlanHandler exposes plan instance endpoints.
type StudyPlanHandler struct {
	plans       service.PlanInstanceService
	assignments service.AssignmentResolver
	stats       service.CompletionAggregator
	logger      zerolog.Logger
}

// NewStudyPlanHandler constructs the handler.
func NewStudyPlanHandler(
	plans service.PlanInstanceService,
	assignments service.AssignmentResolver,
	stats service.CompletionAggregator,
	logger zerolog.Logger,
) *StudyPlanHandler {
	return &StudyPlanHandler{
		plans:       plans,
		assignments: assignments,
		stats:       stats,
		logger:      logger.With().Str("component", "study_plan_handler").Logger(),
	}
}

// Register attaches plan routes to the router group.
func (h *StudyPlanHandler) Register(router fiber.Router, mentorOnly fiber.Handler) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Get("/:id/tasks", h.tasks)
	router.Get("/:id/stats", h.planStats)
	router.Post("", mentorOnly, h.createFreeform)
	router.Patch("/:id/status", mentorOnly, h.updateStatus)
	router.Post("/:id/assign", mentorOnly, h.assign)
}

func (h *StudyPlanHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := pageParams(c, 20, 100)
	if err != nil {
		return badRequest(c, "invalid pagination")
	}

	schoolID, err := parseQueryUint(c, "school_id")
	if err != nil {
		return badRequest(c, "invalid school id")
	}
	templateID, err := parseQueryUint(c, "template_id")
	if err != nil {
		return badRequest(c, "invalid template id")
	}
	teacherID, err := parseQueryUint(c, "teacher_id")
	if err != nil {
		return badRequest(c, "invalid teacher id")
	}

	req := dto.PlanListRequest{
		SchoolID:   schoolID,
		TemplateID: templateID,
		TeacherID:  teacherID,
		Page:       page,
		PageSize:   pageSize,
	}
	for _, status := range splitAndTrim(c.Query("status")) {
		req.Statuses = append(req.Statuses, strings.ToUpper(status))
	}

	response, err := h.plans.List(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list study plans")
	}
	return utils.OK(c, response.Items, "study plans", response.Pagination)
}

func (h *StudyPlanHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid plan id")
	}

	plan, err := h.plans.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load study plan")
	}
	return utils.SendSuccess(c, "study plan", plan)
}

func (h *StudyPlanHandler) tasks(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid plan id")
	}

	var studentID *uint
	if raw, err := parseQueryUint(c, "student_id"); err != nil {
		return badRequest(c, "invalid student id")
	} else if raw > 0 {
		studentID = &raw
	}

	// Students only ever see their own rows.
	if userRoleFromContext(c) == service.RoleStudent {
		self := userIDFromContext(c)
		studentID = &self
	}

	items, err := h.plans.ListTasks(c.UserContext(), id, studentID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list study tasks")
	}
	return utils.SendSuccess(c, "study tasks", items)
}

func (h *StudyPlanHandler) planStats(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid plan id")
	}

	stats, err := h.stats.StatsForPlan(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to compute plan stats")
	}
	return utils.SendSuccess(c, "plan stats", stats)
}

func (h *StudyPlanHandler) createFreeform(c *fiber.Ctx) error {
	var payload dto.PlanFreeformRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid payload")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to resolve actor")
	}

	plan, err := h.plans.CreateFreeform(c.UserContext(), payload, actor)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create study plan")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "study plan created", plan)
}

func (h *StudyPlanHandler) updateStatus(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid plan id")
	}

	var payload dto.PlanStatusUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid payload")
	}
	status := models.PlanStatus(strings.ToUpper(strings.TrimSpace(payload.Status)))
	if !status.Valid() {
		return badRequest(c, "invalid plan status")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to resolve actor")
	}

	plan, err := h.plans.TransitionStatus(c.UserContext(), id, status, actor)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update plan status")
	}
	return utils.SendSuccess(c, "plan status updated", plan)
}

func (h *StudyPlanHandler) assign(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid plan id")
	}

	var payload dto.PlanAssignRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid payload")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to resolve actor")
	}

	response, err := h.assignments.Assign(c.UserContext(), id, payload, actor)
	if err != nil {
		return respondError(c, h.logger, err, "failed to assign study plan")
	}
	return utils.SendSuccess(c, "study plan assigned", response)
}
