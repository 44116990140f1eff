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
	"github.com/noah-isme/gema-studyplan-api/internal/middleware"
	"github.com/noah-isme/gema-studyplan-api/internal/models"
	"github.com/noah-isme/gema-studyplan-api/internal/observability"
	"github.com/noah-isme/gema-studyplan-api/internal/repository"
)

// ElapsedPlanCompleter closes plans whose week has passed.
type ElapsedPlanCompleter interface {
	CompleteElapsed(ctx context.Context) (int, error)
}

// RetentionScheduler purges aged plan instances per school policy.
type RetentionScheduler interface {
	Policy(ctx context.Context, schoolID uint) (dto.RetentionPolicyResponse, error)
	UpdatePolicy(ctx context.Context, schoolID uint, payload dto.RetentionPolicyUpdateRequest, actor Actor) (dto.RetentionPolicyResponse, error)
	Preview(ctx context.Context, schoolID uint) (dto.CleanupReport, error)
	RunCleanup(ctx context.Context, schoolID uint, actor Actor) (dto.CleanupReport, error)
	RunDue(ctx context.Context) error
	Start(ctx context.Context, interval time.Duration)
}

type retentionScheduler struct {
	schools   repository.SchoolRepository
	plans     repository.StudyPlanRepository
	completer ElapsedPlanCompleter
	stats     StatsInvalidator
	validator *validator.Validate
	publisher LifecyclePublisher
	activity  ActivityRecorder
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewRetentionScheduler constructs the retention scheduler.
func NewRetentionScheduler(
	schools repository.SchoolRepository,
	plans repository.StudyPlanRepository,
	completer ElapsedPlanCompleter,
	stats StatsInvalidator,
	validator *validator.Validate,
	publisher LifecyclePublisher,
	activity ActivityRecorder,
	logger zerolog.Logger,
) RetentionScheduler {
	return &retentionScheduler{
		schools:   schools,
		plans:     plans,
		completer: completer,
		stats:     stats,
		validator: validator,
		publisher: publisher,
		activity:  activity,
		logger:    logger.With().Str("component", "retention_scheduler").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-studyplan-api/internal/service/retention"),
		now:       time.Now,
	}
}

// SelectPurgeCandidates returns the plans policy allows deleting at now.
func SelectPurgeCandidates(policy models.RetentionPolicy, plans []models.StudyPlan, now time.Time) []models.StudyPlan {
	cutoff := policy.Cutoff(now)
	candidates := make([]models.StudyPlan, 0, len(plans))
	for _, plan := range plans {
		if plan.SchoolID != policy.SchoolID || !plan.CreatedAt.Before(cutoff) {
			continue
		}
		for _, status := range models.RetainableStatuses {
			if plan.Status == status {
				candidates = append(candidates, plan)
				break
			}
		}
	}
	return candidates
}

func (s *retentionScheduler) Policy(ctx context.Context, schoolID uint) (dto.RetentionPolicyResponse, error) {
	school, err := s.schools.GetByID(ctx, schoolID)
	if err != nil {
		return dto.RetentionPolicyResponse{}, translateLookup(err, "school")
	}
	return dto.NewRetentionPolicyResponse(school.RetentionPolicy()), nil
}

func (s *retentionScheduler) UpdatePolicy(ctx context.Context, schoolID uint, payload dto.RetentionPolicyUpdateRequest, actor Actor) (dto.RetentionPolicyResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return dto.RetentionPolicyResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.RetentionPolicyResponse{}, err
	}

	school, err := s.schools.UpdateRetention(ctx, schoolID, repository.RetentionUpdate{
		AutoCleanupEnabled:  payload.AutoCleanupEnabled,
		CleanupMonthsToKeep: payload.CleanupMonthsToKeep,
	})
	if err != nil {
		return dto.RetentionPolicyResponse{}, translateLookup(err, "school")
	}

	policy := school.RetentionPolicy()
	recordActivity(ctx, s.activity, s.logger, actor, "retention.policy_updated", "school", schoolID, map[string]interface{}{
		"auto_cleanup_enabled":   policy.AutoCleanupEnabled,
		"cleanup_months_to_keep": policy.CleanupMonthsToKeep,
	})

	return dto.NewRetentionPolicyResponse(policy), nil
}

// Preview lists what a run would purge now, as if cleanup were enabled.
func (s *retentionScheduler) Preview(ctx context.Context, schoolID uint) (dto.CleanupReport, error) {
	school, err := s.schools.GetByID(ctx, schoolID)
	if err != nil {
		return dto.CleanupReport{}, translateLookup(err, "school")
	}

	policy := school.RetentionPolicy()
	now := s.now().UTC()
	candidates, err := s.candidates(ctx, policy, now)
	if err != nil {
		return dto.CleanupReport{}, err
	}

	report := newCleanupReport(policy, now, true)
	for _, plan := range candidates {
		report.Candidates = append(report.Candidates, dto.NewCleanupCandidate(plan))
	}
	return report, nil
}

func (s *retentionScheduler) RunCleanup(ctx context.Context, schoolID uint, actor Actor) (dto.CleanupReport, error) {
	ctx, span := s.tracer.Start(ctx, "retention.run", trace.WithAttributes(attribute.Int64("school.id", int64(schoolID))))
	defer span.End()

	if err := requireAdmin(actor); err != nil {
		return dto.CleanupReport{}, spanFailure(span, err, "forbidden")
	}

	school, err := s.schools.GetByID(ctx, schoolID)
	if err != nil {
		return dto.CleanupReport{}, spanFailure(span, translateLookup(err, "school"), "school_lookup_failed")
	}

	policy := school.RetentionPolicy()
	now := s.now().UTC()
	report := newCleanupReport(policy, now, false)
	if !policy.AutoCleanupEnabled {
		observability.RetentionRuns().WithLabelValues("disabled").Inc()
		return report, nil
	}

	started := time.Now()
	candidates, err := s.candidates(ctx, policy, now)
	if err != nil {
		observability.RetentionRuns().WithLabelValues("error").Inc()
		return dto.CleanupReport{}, spanFailure(span, err, "candidate_query_failed")
	}

	for _, plan := range candidates {
		report.Candidates = append(report.Candidates, dto.NewCleanupCandidate(plan))

		var students []uint
		snapshot := func(locked models.StudyPlan, tasks []models.StudyTask) []models.StudentPerformanceSnapshot {
			rows := models.BuildPerformanceSnapshots(locked, tasks, now)
			students = students[:0]
			for _, row := range rows {
				students = append(students, row.StudentID)
			}
			return rows
		}

		purged, err := s.plans.Purge(ctx, plan.ID, models.RetainableStatuses, snapshot)
		if err != nil {
			s.logger.Error().Err(err).Uint("school_id", schoolID).Uint("plan_id", plan.ID).Msg("failed to purge plan, continuing sweep")
			span.RecordError(err)
			report.Failed = append(report.Failed, dto.CleanupFailure{PlanID: plan.ID, Error: err.Error()})
			continue
		}
		if !purged {
			s.logger.Debug().Uint("plan_id", plan.ID).Msg("plan no longer eligible for purge")
			continue
		}

		report.Purged = append(report.Purged, plan.ID)
		observability.RetentionPlansPurged().Inc()
		if s.stats != nil && len(students) > 0 {
			s.stats.InvalidateStudent(ctx, students...)
		}
		publishEvent(ctx, s.publisher, s.logger, LifecycleEvent{
			Type:       EventPlanPurged,
			PlanID:     plan.ID,
			StudentIDs: append([]uint(nil), students...),
			ActorID:    actor.ActorID(),
			OccurredAt: now,
		})
	}

	if err := s.schools.MarkCleanup(ctx, schoolID, now); err != nil {
		observability.RetentionRuns().WithLabelValues("error").Inc()
		return report, spanFailure(span, err, "mark_cleanup_failed")
	}

	outcome := "ok"
	if len(report.Failed) > 0 {
		outcome = "partial"
	}
	observability.RetentionRuns().WithLabelValues(outcome).Inc()
	observability.RetentionDuration().Observe(time.Since(started).Seconds())
	span.SetAttributes(
		attribute.Int("retention.candidates", len(report.Candidates)),
		attribute.Int("retention.purged", len(report.Purged)),
		attribute.Int("retention.failed", len(report.Failed)),
	)

	s.logger.Info().
		Uint("school_id", schoolID).
		Int("candidates", len(report.Candidates)).
		Int("purged", len(report.Purged)).
		Int("failed", len(report.Failed)).
		Time("cutoff", report.Cutoff).
		Msg("retention sweep finished")
	recordActivity(ctx, s.activity, s.logger, actor, "retention.run", "school", schoolID, map[string]interface{}{
		"purged": len(report.Purged),
		"failed": len(report.Failed),
	})

	return report, nil
}

// RunDue completes elapsed plans and sweeps every school whose monthly run is due.
func (s *retentionScheduler) RunDue(ctx context.Context) error {
	if s.completer != nil {
		if completed, err := s.completer.CompleteElapsed(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to complete elapsed plans")
		} else if completed > 0 {
			s.logger.Info().Int("plans", completed).Msg("completed plans with elapsed weeks")
		}
	}

	schools, err := s.schools.ListAutoCleanup(ctx)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	for _, school := range schools {
		if !school.RetentionPolicy().DueAt(now) {
			continue
		}
		if _, err := s.RunCleanup(ctx, school.ID, SystemActor{}); err != nil {
			s.logger.Error().Err(err).Uint("school_id", school.ID).Msg("retention sweep failed")
		}
	}

	return nil
}

// Start runs RunDue on every tick until ctx is cancelled.
func (s *retentionScheduler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	s.logger.Info().Dur("interval", interval).Msg("retention scheduler started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		sweepCtx := middleware.NewCorrelationContext(ctx, "retention")
		if err := s.RunDue(sweepCtx); err != nil {
			s.logger.Error().Err(err).Str("correlation_id", middleware.CorrelationIDFromContext(sweepCtx)).Msg("retention tick failed")
		}

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("retention scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *retentionScheduler) candidates(ctx context.Context, policy models.RetentionPolicy, now time.Time) ([]models.StudyPlan, error) {
	plans, err := s.plans.ListCreatedBefore(ctx, policy.SchoolID, policy.Cutoff(now), models.RetainableStatuses)
	if err != nil {
		return nil, err
	}
	return SelectPurgeCandidates(policy, plans, now), nil
}

func newCleanupReport(policy models.RetentionPolicy, now time.Time, dryRun bool) dto.CleanupReport {
	return dto.CleanupReport{
		SchoolID:   policy.SchoolID,
		Enabled:    policy.AutoCleanupEnabled,
		DryRun:     dryRun,
		Cutoff:     policy.Cutoff(now),
		RanAt:      now,
		Candidates: []dto.CleanupCandidate{},
		Purged:     []uint{},
		Failed:     []dto.CleanupFailure{},
	}
}

func requireAdmin(actor Actor) error {
	switch a := actor.(type) {
	case SystemActor:
		return nil
	case MentorActor:
		if a.ActorRole() == RoleAdmin {
			return nil
		}
	}
	return forbiddenf("only administrators may manage retention")
}
