package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-studyplan-api/internal/dto"
	"github.com/noah-isme/gema-studyplan-api/internal/service"
	"github.com/noah-isme/gema-studyplan-api/internal/utils"
)

// StudyTaskHandler exposes the task lifecycle endpoints.
type StudyTaskHandler struct {
	service service.TaskLifecycleService
	logger  zerolog.Logger
}

// NewStudyTaskHandler constructs the handler.
func NewStudyTaskHandler(service service.TaskLifecycleService, logger zerolog.Logger) *StudyTaskHandler {
	return &StudyTaskHandler{
		service: service,
		logger:  logger.With().Str("component", "study_task_handler").Logger(),
	}
}

// Register attaches task routes. The guards are applied per route so that
// completion and verification can carry their own role checks and limits.
func (h *StudyTaskHandler) Register(router fiber.Router, completeGuards, verifyGuards []fiber.Handler) {
	router.Get("/:id", h.get)
	router.Post("/:id/complete", append(completeGuards, h.complete)...)
	router.Post("/:id/verify", append(verifyGuards, h.verify)...)
}

func (h *StudyTaskHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid task id")
	}

	task, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load study task")
	}
	if userRoleFromContext(c) == service.RoleStudent && task.StudentID != userIDFromContext(c) {
		return utils.Fail(c, fiber.StatusForbidden, "task belongs to another student", fiber.Map{"code": CodeForbidden})
	}
	return utils.SendSuccess(c, "study task", task)
}

func (h *StudyTaskHandler) complete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid task id")
	}

	var payload dto.TaskCompleteRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid payload")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to resolve actor")
	}

	task, err := h.service.Complete(c.UserContext(), id, actor, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to complete study task")
	}

	requestLogger(h.logger, c).Info().Uint("task_id", task.ID).Uint("student_id", task.StudentID).Msg("task completed")
	return utils.SendSuccess(c, "study task completed", task)
}

func (h *StudyTaskHandler) verify(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid task id")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to resolve actor")
	}

	task, err := h.service.Verify(c.UserContext(), id, actor)
	if err != nil {
		return respondError(c, h.logger, err, "failed to verify study task")
	}

	requestLogger(h.logger, c).Info().Uint("task_id", task.ID).Uint("verifier_id", actor.ActorID()).Msg("task verified")
	return utils.SendSuccess(c, "study task verified", task)
}
