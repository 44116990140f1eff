package service

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-studyplan-api/internal/dto"
	"github.com/noah-isme/gema-studyplan-api/internal/models"
	"github.com/noah-isme/gema-studyplan-api/internal/repository"
)

// GroupMembership resolves the current student members of a group.
type GroupMembership interface {
	Members(ctx context.Context, groupID uint) ([]uint, error)
}

// StatsInvalidator drops cached rollups for students whose tasks changed.
type StatsInvalidator interface {
	InvalidateStudent(ctx context.Context, studentIDs ...uint)
}

// AssignmentResolver fans a plan out to its recipients.
type AssignmentResolver interface {
	Assign(ctx context.Context, planID uint, payload dto.PlanAssignRequest, actor Actor) (dto.PlanAssignResponse, error)
}

type assignmentResolver struct {
	plans       repository.StudyPlanRepository
	assignments repository.PlanAssignmentRepository
	groups      GroupMembership
	stats       StatsInvalidator
	validator   *validator.Validate
	publisher   LifecyclePublisher
	activity    ActivityRecorder
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewAssignmentResolver constructs the resolver.
func NewAssignmentResolver(
	plans repository.StudyPlanRepository,
	assignments repository.PlanAssignmentRepository,
	groups GroupMembership,
	stats StatsInvalidator,
	validator *validator.Validate,
	publisher LifecyclePublisher,
	activity ActivityRecorder,
	logger zerolog.Logger,
) AssignmentResolver {
	return &assignmentResolver{
		plans:       plans,
		assignments: assignments,
		groups:      groups,
		stats:       stats,
		validator:   validator,
		publisher:   publisher,
		activity:    activity,
		logger:      logger.With().Str("component", "assignment_resolver").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-studyplan-api/internal/service/assignment_resolver"),
		now:         time.Now,
	}
}

// Assign snapshots the recipients of a plan and gives each of them their own
// pending copy of every task. Re-assigning an existing recipient is a no-op.
func (s *assignmentResolver) Assign(ctx context.Context, planID uint, payload dto.PlanAssignRequest, actor Actor) (dto.PlanAssignResponse, error) {
	ctx, span := s.tracer.Start(ctx, "plans.assign", trace.WithAttributes(attribute.Int64("plan.id", int64(planID))))
	defer span.End()

	mentor, err := requireMentor(actor)
	if err != nil {
		return dto.PlanAssignResponse{}, spanFailure(span, err, "forbidden")
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.PlanAssignResponse{}, spanFailure(span, err, "validation_failed")
	}

	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return dto.PlanAssignResponse{}, spanFailure(span, translateLookup(err, "plan"), "plan_lookup_failed")
	}

	switch plan.Status {
	case models.PlanStatusDraft, models.PlanStatusActive, models.PlanStatusAssigned:
	default:
		return dto.PlanAssignResponse{}, spanFailure(span, transitionf("cannot assign a %s plan", plan.Status), "invalid_transition")
	}

	recipients, groupID, err := s.resolveRecipients(ctx, plan, payload)
	if err != nil {
		return dto.PlanAssignResponse{}, spanFailure(span, err, "recipient_resolution_failed")
	}
	if len(recipients) == 0 {
		return dto.PlanAssignResponse{}, spanFailure(span, ErrEmptyRecipientSet, "empty_recipient_set")
	}
	span.SetAttributes(attribute.Int("plan.recipients", len(recipients)))

	result, err := s.assignments.Assign(ctx, repository.AssignRecipientsInput{
		Plan:         plan,
		StudentIDs:   recipients,
		GroupID:      groupID,
		AssignedBy:   mentor.ID,
		AssignedAt:   s.now().UTC(),
		PromoteDraft: true,
	})
	if err != nil {
		return dto.PlanAssignResponse{}, spanFailure(span, translateLookup(err, "plan"), "assignment_failed")
	}
	span.SetAttributes(attribute.Int("plan.tasks_created", result.TasksCreated))

	if len(result.NewRecipients) > 0 {
		if s.stats != nil {
			s.stats.InvalidateStudent(ctx, result.NewRecipients...)
		}
		publishEvent(ctx, s.publisher, s.logger, LifecycleEvent{
			Type:       EventPlanAssigned,
			PlanID:     plan.ID,
			StudentIDs: result.NewRecipients,
			ActorID:    mentor.ID,
		})
		metadata := map[string]interface{}{
			"recipients":    len(result.NewRecipients),
			"tasks_created": result.TasksCreated,
		}
		if groupID != nil {
			metadata["group_id"] = *groupID
		}
		recordActivity(ctx, s.activity, s.logger, actor, "plan.assigned", "study_plan", plan.ID, metadata)
	}

	updated, err := s.plans.GetByID(ctx, plan.ID)
	if err != nil {
		return dto.PlanAssignResponse{}, spanFailure(span, translateLookup(err, "plan"), "plan_lookup_failed")
	}

	response := dto.PlanAssignResponse{
		Plan:          dto.NewStudyPlanResponse(updated),
		Assignments:   make([]dto.PlanAssignmentResponse, 0, len(result.Assignments)),
		NewRecipients: len(result.NewRecipients),
		TasksCreated:  result.TasksCreated,
	}
	for _, assignment := range result.Assignments {
		response.Assignments = append(response.Assignments, dto.NewPlanAssignmentResponse(assignment))
	}

	return response, nil
}

func (s *assignmentResolver) resolveRecipients(ctx context.Context, plan models.StudyPlan, payload dto.PlanAssignRequest) ([]uint, *uint, error) {
	switch plan.TargetType {
	case models.TargetIndividual:
		if payload.GroupID != nil {
			return nil, nil, validationf("group_id is not accepted for INDIVIDUAL plans")
		}
		return uniqueIDs(payload.StudentIDs), nil, nil
	case models.TargetGroup:
		if len(payload.StudentIDs) > 0 {
			return nil, nil, validationf("student_ids are not accepted for GROUP plans")
		}
		groupID := payload.GroupID
		if groupID == nil {
			groupID = plan.GroupID
		}
		if groupID == nil {
			return nil, nil, validationf("group_id is required for GROUP plans")
		}
		members, err := s.groups.Members(ctx, *groupID)
		if err != nil {
			return nil, nil, translateLookup(err, "group")
		}
		return uniqueIDs(members), groupID, nil
	default:
		return nil, nil, validationf("unknown target type %q", plan.TargetType)
	}
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
