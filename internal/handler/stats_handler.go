package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-studyplan-api/internal/dto"
	"github.com/noah-isme/gema-studyplan-api/internal/service"
	"github.com/noah-isme/gema-studyplan-api/internal/utils"
)

// StatsHandler exposes per-student progress rollups.
type StatsHandler struct {
	service service.CompletionAggregator
	logger  zerolog.Logger
}

// NewStatsHandler constructs the handler.
func NewStatsHandler(service service.CompletionAggregator, logger zerolog.Logger) *StatsHandler {
	return &StatsHandler{
		service: service,
		logger:  logger.With().Str("component", "stats_handler").Logger(),
	}
}

// Register attaches student stats routes.
func (h *StatsHandler) Register(router fiber.Router) {
	router.Get("/:id/stats", h.studentStats)
	router.Get("/:id/history", h.history)
}

func (h *StatsHandler) studentStats(c *fiber.Ctx) error {
	studentID, ok, err := h.studentParam(c)
	if !ok {
		return err
	}

	req := dto.StudentStatsRequest{
		ExamType: strings.ToUpper(strings.TrimSpace(c.Query("exam_type"))),
		From:     strings.TrimSpace(c.Query("from")),
		To:       strings.TrimSpace(c.Query("to")),
	}
	for _, status := range splitAndTrim(c.Query("status")) {
		req.Statuses = append(req.Statuses, strings.ToUpper(status))
	}

	response, err := h.service.StatsForStudentAcrossPlans(c.UserContext(), studentID, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to compute student stats")
	}
	return utils.SendSuccess(c, "student stats", response)
}

func (h *StatsHandler) history(c *fiber.Ctx) error {
	studentID, ok, err := h.studentParam(c)
	if !ok {
		return err
	}

	items, err := h.service.HistoryForStudent(c.UserContext(), studentID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load student history")
	}
	return utils.SendSuccess(c, "student history", items)
}

// studentParam parses the student id and keeps students scoped to themselves.
// When ok is false the response has already been written.
func (h *StatsHandler) studentParam(c *fiber.Ctx) (uint, bool, error) {
	studentID, err := parseIDParam(c, "id")
	if err != nil {
		return 0, false, badRequest(c, "invalid student id")
	}
	if userRoleFromContext(c) == service.RoleStudent && userIDFromContext(c) != studentID {
		return 0, false, utils.Fail(c, fiber.StatusForbidden, "students may only read their own stats", fiber.Map{"code": CodeForbidden})
	}
	return studentID, true, nil
}
