package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-studyplan-api/internal/dto"
	"github.com/noah-isme/gema-studyplan-api/internal/models"
	"github.com/noah-isme/gema-studyplan-api/internal/repository"
)

// PlanStatsReader reports task progress for a plan and drops cached student
// rollups once a plan's status changes.
type PlanStatsReader interface {
	StatsInvalidator
	StatsForPlan(ctx context.Context, planID uint) (dto.PlanStats, error)
}

// PlanInstanceService creates dated plan instances and drives their status.
type PlanInstanceService interface {
	CreateFromTemplate(ctx context.Context, templateID uint, payload dto.PlanInstantiateRequest, actor Actor) (dto.StudyPlanResponse, error)
	CreateFreeform(ctx context.Context, payload dto.PlanFreeformRequest, actor Actor) (dto.StudyPlanResponse, error)
	Get(ctx context.Context, id uint) (dto.StudyPlanResponse, error)
	List(ctx context.Context, req dto.PlanListRequest) (dto.StudyPlanListResponse, error)
	ListTasks(ctx context.Context, planID uint, studentID *uint) ([]dto.StudyTaskResponse, error)
	TransitionStatus(ctx context.Context, planID uint, status models.PlanStatus, actor Actor) (dto.StudyPlanResponse, error)
	EvaluateCompletion(ctx context.Context, planID uint) (bool, error)
	CompleteElapsed(ctx context.Context) (int, error)
}

type planInstanceService struct {
	plans     repository.StudyPlanRepository
	templates repository.PlanTemplateRepository
	tasks     repository.StudyTaskRepository
	stats     PlanStatsReader
	validator *validator.Validate
	publisher LifecyclePublisher
	activity  ActivityRecorder
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewPlanInstanceService constructs the plan instance manager.
func NewPlanInstanceService(
	plans repository.StudyPlanRepository,
	templates repository.PlanTemplateRepository,
	tasks repository.StudyTaskRepository,
	stats PlanStatsReader,
	validator *validator.Validate,
	publisher LifecyclePublisher,
	activity ActivityRecorder,
	logger zerolog.Logger,
) PlanInstanceService {
	return &planInstanceService{
		plans:     plans,
		templates: templates,
		tasks:     tasks,
		stats:     stats,
		validator: validator,
		publisher: publisher,
		activity:  activity,
		logger:    logger.With().Str("component", "plan_instance_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-studyplan-api/internal/service/plan_instance"),
		now:       time.Now,
	}
}

func (s *planInstanceService) CreateFromTemplate(ctx context.Context, templateID uint, payload dto.PlanInstantiateRequest, actor Actor) (dto.StudyPlanResponse, error) {
	ctx, span := s.tracer.Start(ctx, "plans.instantiate", trace.WithAttributes(attribute.Int64("plan.template_id", int64(templateID))))
	defer span.End()

	mentor, err := requireMentor(actor)
	if err != nil {
		return dto.StudyPlanResponse{}, spanFailure(span, err, "forbidden")
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudyPlanResponse{}, spanFailure(span, err, "validation_failed")
	}

	weekStart, err := parseWeekStart(payload.WeekStartDate)
	if err != nil {
		return dto.StudyPlanResponse{}, spanFailure(span, err, "validation_failed")
	}

	template, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return dto.StudyPlanResponse{}, spanFailure(span, translateLookup(err, "template"), "template_lookup_failed")
	}

	definition := template.Definition
	if payload.Name != nil {
		name := plainText(*payload.Name)
		if name == "" {
			return dto.StudyPlanResponse{}, spanFailure(span, validationf("name is empty after removing markup"), "validation_failed")
		}
		definition.Name = name
	}

	slots := make([]models.TaskSlot, 0, len(template.Tasks))
	for _, task := range template.Tasks {
		slots = append(slots, task.Slot())
	}

	plan := models.StudyPlan{
		SchoolID:           template.SchoolID,
		TemplateID:         &template.ID,
		Definition:         definition,
		TargetType:         models.TargetType(payload.TargetType),
		GroupID:            groupForTarget(payload.TargetType, payload.GroupID),
		WeekStartDate:      weekStart,
		Status:             models.PlanStatusDraft,
		CreatedByTeacherID: mentor.ID,
		Definitions:        definitionsFromSlots(slots),
	}

	if err := s.plans.Create(ctx, &plan); err != nil {
		return dto.StudyPlanResponse{}, spanFailure(span, err, "plan_create_failed")
	}

	span.SetAttributes(attribute.Int64("plan.id", int64(plan.ID)), attribute.Int("plan.task_definitions", len(plan.Definitions)))
	recordActivity(ctx, s.activity, s.logger, actor, "plan.created", "study_plan", plan.ID, map[string]interface{}{
		"template_id":     template.ID,
		"week_start_date": weekStart.Format(dto.DateLayout),
	})

	return dto.NewStudyPlanResponse(plan), nil
}

func (s *planInstanceService) CreateFreeform(ctx context.Context, payload dto.PlanFreeformRequest, actor Actor) (dto.StudyPlanResponse, error) {
	ctx, span := s.tracer.Start(ctx, "plans.create_freeform")
	defer span.End()

	mentor, err := requireMentor(actor)
	if err != nil {
		return dto.StudyPlanResponse{}, spanFailure(span, err, "forbidden")
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudyPlanResponse{}, spanFailure(span, err, "validation_failed")
	}

	weekStart, err := parseWeekStart(payload.WeekStartDate)
	if err != nil {
		return dto.StudyPlanResponse{}, spanFailure(span, err, "validation_failed")
	}

	slots, err := slotsFromRequest(payload.Tasks)
	if err != nil {
		return dto.StudyPlanResponse{}, spanFailure(span, err, "validation_failed")
	}

	definition, err := newPlanDefinition(payload.Name, payload.Description, payload.ExamType, payload.GradeLevels)
	if err != nil {
		return dto.StudyPlanResponse{}, spanFailure(span, err, "validation_failed")
	}

	plan := models.StudyPlan{
		SchoolID:           payload.SchoolID,
		Definition:         definition,
		TargetType:         models.TargetType(payload.TargetType),
		GroupID:            groupForTarget(payload.TargetType, payload.GroupID),
		WeekStartDate:      weekStart,
		Status:             models.PlanStatusDraft,
		CreatedByTeacherID: mentor.ID,
		Definitions:        definitionsFromSlots(slots),
	}

	if err := s.plans.Create(ctx, &plan); err != nil {
		return dto.StudyPlanResponse{}, spanFailure(span, err, "plan_create_failed")
	}

	span.SetAttributes(attribute.Int64("plan.id", int64(plan.ID)))
	recordActivity(ctx, s.activity, s.logger, actor, "plan.created", "study_plan", plan.ID, map[string]interface{}{
		"week_start_date": weekStart.Format(dto.DateLayout),
		"freeform":        true,
	})

	return dto.NewStudyPlanResponse(plan), nil
}

func (s *planInstanceService) Get(ctx context.Context, id uint) (dto.StudyPlanResponse, error) {
	plan, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return dto.StudyPlanResponse{}, translateLookup(err, "plan")
	}

	return dto.NewStudyPlanResponse(plan), nil
}

func (s *planInstanceService) List(ctx context.Context, req dto.PlanListRequest) (dto.StudyPlanListResponse, error) {
	filter := repository.StudyPlanFilter{Page: req.Page, PageSize: req.PageSize}
	if req.SchoolID > 0 {
		filter.SchoolID = &req.SchoolID
	}
	if req.TemplateID > 0 {
		filter.TemplateID = &req.TemplateID
	}
	if req.TeacherID > 0 {
		filter.TeacherID = &req.TeacherID
	}
	for _, raw := range req.Statuses {
		status := models.PlanStatus(strings.ToUpper(strings.TrimSpace(raw)))
		if !status.Valid() {
			return dto.StudyPlanListResponse{}, validationf("unknown plan status %q", raw)
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	plans, total, err := s.plans.List(ctx, filter)
	if err != nil {
		return dto.StudyPlanListResponse{}, err
	}

	items := make([]dto.StudyPlanResponse, 0, len(plans))
	for _, plan := range plans {
		items = append(items, dto.NewStudyPlanResponse(plan))
	}

	return dto.StudyPlanListResponse{Items: items, Pagination: paginate(req.Page, req.PageSize, total)}, nil
}

func (s *planInstanceService) ListTasks(ctx context.Context, planID uint, studentID *uint) ([]dto.StudyTaskResponse, error) {
	if _, err := s.plans.GetByID(ctx, planID); err != nil {
		return nil, translateLookup(err, "plan")
	}

	tasks, err := s.tasks.List(ctx, repository.StudyTaskFilter{PlanID: planID, StudentID: studentID})
	if err != nil {
		return nil, err
	}

	return dto.NewStudyTaskResponseSlice(tasks), nil
}

func (s *planInstanceService) TransitionStatus(ctx context.Context, planID uint, status models.PlanStatus, actor Actor) (dto.StudyPlanResponse, error) {
	ctx, span := s.tracer.Start(ctx, "plans.transition", trace.WithAttributes(
		attribute.Int64("plan.id", int64(planID)),
		attribute.String("plan.next_status", string(status)),
	))
	defer span.End()

	if _, err := requireMentor(actor); err != nil {
		return dto.StudyPlanResponse{}, spanFailure(span, err, "forbidden")
	}
	if !status.Valid() {
		return dto.StudyPlanResponse{}, spanFailure(span, validationf("unknown plan status %q", status), "validation_failed")
	}

	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return dto.StudyPlanResponse{}, spanFailure(span, translateLookup(err, "plan"), "plan_lookup_failed")
	}

	if err := s.moveStatus(ctx, plan, status); err != nil {
		return dto.StudyPlanResponse{}, spanFailure(span, err, "transition_failed")
	}

	recordActivity(ctx, s.activity, s.logger, actor, "plan.status_changed", "study_plan", plan.ID, map[string]interface{}{
		"from": string(plan.Status),
		"to":   string(status),
	})

	return s.Get(ctx, planID)
}

// EvaluateCompletion completes an open plan once every task is verified.
func (s *planInstanceService) EvaluateCompletion(ctx context.Context, planID uint) (bool, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return false, translateLookup(err, "plan")
	}
	if !plan.Status.IsOpen() {
		return false, nil
	}

	stats, err := s.stats.StatsForPlan(ctx, planID)
	if err != nil {
		return false, err
	}
	if stats.Total == 0 || stats.Verified < stats.Total {
		return false, nil
	}

	if err := s.moveStatus(ctx, plan, models.PlanStatusCompleted); err != nil {
		return false, err
	}

	s.logger.Info().Uint("plan_id", planID).Int("tasks", stats.Total).Msg("plan completed after full verification")
	recordActivity(ctx, s.activity, s.logger, SystemActor{}, "plan.completed", "study_plan", planID, map[string]interface{}{
		"reason": "all_tasks_verified",
	})
	return true, nil
}

// CompleteElapsed completes open plans whose week has passed.
func (s *planInstanceService) CompleteElapsed(ctx context.Context) (int, error) {
	now := s.now().UTC()
	plans, err := s.plans.ListWeekElapsed(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, plan := range plans {
		if err := s.moveStatus(ctx, plan, models.PlanStatusCompleted); err != nil {
			s.logger.Warn().Err(err).Uint("plan_id", plan.ID).Msg("failed to complete elapsed plan")
			continue
		}
		completed++
		recordActivity(ctx, s.activity, s.logger, SystemActor{}, "plan.completed", "study_plan", plan.ID, map[string]interface{}{
			"reason": "week_elapsed",
		})
	}

	return completed, nil
}

func (s *planInstanceService) moveStatus(ctx context.Context, plan models.StudyPlan, next models.PlanStatus) error {
	if !plan.Status.CanTransitionTo(next) {
		return transitionf("plan %d cannot move from %s to %s", plan.ID, plan.Status, next)
	}

	var completedAt *time.Time
	if next == models.PlanStatusCompleted {
		now := s.now().UTC()
		completedAt = &now
	}

	updated, err := s.plans.UpdateStatus(ctx, plan.ID, plan.Status, next, completedAt)
	if err != nil {
		return err
	}
	if !updated {
		return transitionf("plan %d changed status concurrently", plan.ID)
	}
	s.invalidateAssignees(ctx, plan.ID)

	if next == models.PlanStatusCompleted {
		publishEvent(ctx, s.publisher, s.logger, LifecycleEvent{Type: EventPlanCompleted, PlanID: plan.ID, OccurredAt: *completedAt})
	}
	return nil
}

func (s *planInstanceService) invalidateAssignees(ctx context.Context, planID uint) {
	tasks, err := s.tasks.List(ctx, repository.StudyTaskFilter{PlanID: planID})
	if err != nil {
		s.logger.Warn().Err(err).Uint("plan_id", planID).Msg("failed to load assignees for cache invalidation")
		return
	}

	seen := make(map[uint]struct{}, len(tasks))
	studentIDs := make([]uint, 0)
	for _, task := range tasks {
		if _, ok := seen[task.StudentID]; ok {
			continue
		}
		seen[task.StudentID] = struct{}{}
		studentIDs = append(studentIDs, task.StudentID)
	}
	if len(studentIDs) > 0 {
		s.stats.InvalidateStudent(ctx, studentIDs...)
	}
}

func definitionsFromSlots(slots []models.TaskSlot) []models.PlanTaskDefinition {
	definitions := make([]models.PlanTaskDefinition, 0, len(slots))
	for _, slot := range slots {
		definitions = append(definitions, slot.Definition(0))
	}
	return definitions
}

func groupForTarget(targetType string, groupID *uint) *uint {
	if models.TargetType(targetType) != models.TargetGroup {
		return nil
	}
	return groupID
}

func spanFailure(span trace.Span, err error, status string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, status)
	return err
}
