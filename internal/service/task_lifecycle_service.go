package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-studyplan-api/internal/dto"
	"github.com/noah-isme/gema-studyplan-api/internal/models"
	"github.com/noah-isme/gema-studyplan-api/internal/observability"
	"github.com/noah-isme/gema-studyplan-api/internal/repository"
)

// VerificationAuthorizer decides whether a teacher may verify a student's work.
type VerificationAuthorizer interface {
	CanVerify(ctx context.Context, teacherID, studentID uint) (bool, error)
}

// PlanCompletionEvaluator re-evaluates a plan after one of its tasks is verified.
type PlanCompletionEvaluator interface {
	EvaluateCompletion(ctx context.Context, planID uint) (bool, error)
}

// TaskLifecycleService drives tasks through PENDING -> COMPLETED -> VERIFIED.
type TaskLifecycleService interface {
	Get(ctx context.Context, taskID uint) (dto.StudyTaskResponse, error)
	Complete(ctx context.Context, taskID uint, actor Actor, payload dto.TaskCompleteRequest) (dto.StudyTaskResponse, error)
	Verify(ctx context.Context, taskID uint, actor Actor) (dto.StudyTaskResponse, error)
}

type taskLifecycleService struct {
	tasks      repository.StudyTaskRepository
	authorizer VerificationAuthorizer
	plans      PlanCompletionEvaluator
	stats      StatsInvalidator
	validator  *validator.Validate
	publisher  LifecyclePublisher
	activity   ActivityRecorder
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewTaskLifecycleService constructs the lifecycle engine.
func NewTaskLifecycleService(
	tasks repository.StudyTaskRepository,
	authorizer VerificationAuthorizer,
	plans PlanCompletionEvaluator,
	stats StatsInvalidator,
	validator *validator.Validate,
	publisher LifecyclePublisher,
	activity ActivityRecorder,
	logger zerolog.Logger,
) TaskLifecycleService {
	return &taskLifecycleService{
		tasks:      tasks,
		authorizer: authorizer,
		plans:      plans,
		stats:      stats,
		validator:  validator,
		publisher:  publisher,
		activity:   activity,
		logger:     logger.With().Str("component", "task_lifecycle_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/gema-studyplan-api/internal/service/task_lifecycle"),
		now:        time.Now,
	}
}

func (s *taskLifecycleService) Get(ctx context.Context, taskID uint) (dto.StudyTaskResponse, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return dto.StudyTaskResponse{}, translateLookup(err, "task")
	}
	return dto.NewStudyTaskResponse(task), nil
}

func (s *taskLifecycleService) Complete(ctx context.Context, taskID uint, actor Actor, payload dto.TaskCompleteRequest) (dto.StudyTaskResponse, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.complete", trace.WithAttributes(attribute.Int64("task.id", int64(taskID))))
	defer span.End()

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return s.fail(span, "complete", translateLookup(err, "task"), "task_lookup_failed")
	}

	student, ok := actor.(StudentActor)
	if !ok || student.ID != task.StudentID {
		return s.fail(span, "complete", forbiddenf("only the assigned student may complete task %d", task.ID), "forbidden")
	}
	if err := s.validator.Struct(payload); err != nil {
		return s.fail(span, "complete", err, "validation_failed")
	}
	if task.Status != models.TaskStatusPending {
		return s.fail(span, "complete", transitionf("task %d is %s, not PENDING", task.ID, task.Status), "invalid_transition")
	}

	answered := payload.CorrectAnswers + payload.WrongAnswers + payload.BlankAnswers
	if answered > task.QuestionCount {
		return s.fail(span, "complete", validationf("%d answers exceed the %d questions of task %d", answered, task.QuestionCount, task.ID), "validation_failed")
	}

	completedAt := s.now().UTC()
	updated, err := s.tasks.UpdateIfStatus(ctx, task.ID, models.TaskStatusPending, map[string]interface{}{
		"status":                  models.TaskStatusCompleted,
		"correct_answers":         payload.CorrectAnswers,
		"wrong_answers":           payload.WrongAnswers,
		"blank_answers":           payload.BlankAnswers,
		"time_spent_minutes":      payload.TimeSpentMinutes,
		"notes":                   plainText(payload.Notes),
		"completed_by_student_id": student.ID,
		"completed_at":            completedAt,
	})
	if err != nil {
		return s.fail(span, "complete", err, "task_update_failed")
	}
	if !updated {
		return s.fail(span, "complete", transitionf("task %d was completed concurrently", task.ID), "invalid_transition")
	}

	task, err = s.tasks.GetByID(ctx, task.ID)
	if err != nil {
		return s.fail(span, "complete", translateLookup(err, "task"), "task_lookup_failed")
	}

	observability.TaskTransitions().WithLabelValues("complete", "ok").Inc()
	if s.stats != nil {
		s.stats.InvalidateStudent(ctx, task.StudentID)
	}
	taskID = task.ID
	publishEvent(ctx, s.publisher, s.logger, LifecycleEvent{
		Type:       EventTaskCompleted,
		PlanID:     task.PlanID,
		TaskID:     &taskID,
		StudentIDs: []uint{task.StudentID},
		ActorID:    student.ID,
		OccurredAt: completedAt,
	})

	return dto.NewStudyTaskResponse(task), nil
}

func (s *taskLifecycleService) Verify(ctx context.Context, taskID uint, actor Actor) (dto.StudyTaskResponse, error) {
	ctx, span := s.tracer.Start(ctx, "tasks.verify", trace.WithAttributes(attribute.Int64("task.id", int64(taskID))))
	defer span.End()

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return s.fail(span, "verify", translateLookup(err, "task"), "task_lookup_failed")
	}

	mentor, ok := actor.(MentorActor)
	if !ok {
		return s.fail(span, "verify", forbiddenf("only teachers and mentors may verify tasks"), "forbidden")
	}
	allowed, err := s.authorizer.CanVerify(ctx, mentor.ID, task.StudentID)
	if err != nil {
		return s.fail(span, "verify", err, "authorization_failed")
	}
	if !allowed {
		return s.fail(span, "verify", forbiddenf("teacher %d has no mentoring relationship with student %d", mentor.ID, task.StudentID), "forbidden")
	}

	if task.Status != models.TaskStatusCompleted {
		return s.fail(span, "verify", transitionf("task %d is %s, not COMPLETED", task.ID, task.Status), "invalid_transition")
	}

	verifiedAt := s.now().UTC()
	updated, err := s.tasks.UpdateIfStatus(ctx, task.ID, models.TaskStatusCompleted, map[string]interface{}{
		"status":                 models.TaskStatusVerified,
		"verified_by_teacher_id": mentor.ID,
		"verified_at":            verifiedAt,
	})
	if err != nil {
		return s.fail(span, "verify", err, "task_update_failed")
	}
	if !updated {
		return s.fail(span, "verify", transitionf("task %d was verified concurrently or removed", task.ID), "invalid_transition")
	}

	task, err = s.tasks.GetByID(ctx, task.ID)
	if err != nil {
		return s.fail(span, "verify", translateLookup(err, "task"), "task_lookup_failed")
	}

	observability.TaskTransitions().WithLabelValues("verify", "ok").Inc()
	if s.stats != nil {
		s.stats.InvalidateStudent(ctx, task.StudentID)
	}

	if s.plans != nil {
		completed, err := s.plans.EvaluateCompletion(ctx, task.PlanID)
		if err != nil {
			s.logger.Warn().Err(err).Uint("plan_id", task.PlanID).Msg("failed to re-evaluate plan after verification")
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Bool("plan.completed", completed))
	}

	taskID = task.ID
	publishEvent(ctx, s.publisher, s.logger, LifecycleEvent{
		Type:       EventTaskVerified,
		PlanID:     task.PlanID,
		TaskID:     &taskID,
		StudentIDs: []uint{task.StudentID},
		ActorID:    mentor.ID,
		OccurredAt: verifiedAt,
	})
	recordActivity(ctx, s.activity, s.logger, actor, "task.verified", "study_task", task.ID, map[string]interface{}{
		"plan_id":    task.PlanID,
		"student_id": task.StudentID,
	})

	return dto.NewStudyTaskResponse(task), nil
}

func (s *taskLifecycleService) fail(span trace.Span, transition string, err error, status string) (dto.StudyTaskResponse, error) {
	observability.TaskTransitions().WithLabelValues(transition, status).Inc()
	return dto.StudyTaskResponse{}, spanFailure(span, err, status)
}
