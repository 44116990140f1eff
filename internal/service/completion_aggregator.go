package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-studyplan-api/internal/dto"
	"github.com/noah-isme/gema-studyplan-api/internal/models"
	"github.com/noah-isme/gema-studyplan-api/internal/repository"
)

const studentStatsKeyPrefix = "studyplan:stats:student"

// CompletionAggregator computes read-side progress rollups.
type CompletionAggregator interface {
	StatsForPlan(ctx context.Context, planID uint) (dto.PlanStats, error)
	StatsForStudentAcrossPlans(ctx context.Context, studentID uint, req dto.StudentStatsRequest) (dto.StudentStatsResponse, error)
	HistoryForStudent(ctx context.Context, studentID uint) ([]dto.PerformanceSnapshotResponse, error)
	InvalidateStudent(ctx context.Context, studentIDs ...uint)
}

type completionAggregator struct {
	plans     repository.StudyPlanRepository
	tasks     repository.StudyTaskRepository
	snapshots repository.PerformanceSnapshotRepository
	validator *validator.Validate
	cache     *redis.Client
	ttl       time.Duration
	logger    zerolog.Logger
}

// NewCompletionAggregator constructs the aggregator. A nil cache disables
// caching of student rollups.
func NewCompletionAggregator(
	plans repository.StudyPlanRepository,
	tasks repository.StudyTaskRepository,
	snapshots repository.PerformanceSnapshotRepository,
	validator *validator.Validate,
	cache *redis.Client,
	ttl time.Duration,
	logger zerolog.Logger,
) CompletionAggregator {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &completionAggregator{
		plans:     plans,
		tasks:     tasks,
		snapshots: snapshots,
		validator: validator,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.With().Str("component", "completion_aggregator").Logger(),
	}
}

func (s *completionAggregator) StatsForPlan(ctx context.Context, planID uint) (dto.PlanStats, error) {
	if _, err := s.plans.GetByID(ctx, planID); err != nil {
		return dto.PlanStats{}, translateLookup(err, "plan")
	}

	counts, err := s.tasks.CountByStatus(ctx, planID)
	if err != nil {
		return dto.PlanStats{}, err
	}

	stats := rollup(planID, counts)
	return stats, nil
}

func (s *completionAggregator) StatsForStudentAcrossPlans(ctx context.Context, studentID uint, req dto.StudentStatsRequest) (dto.StudentStatsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentStatsResponse{}, err
	}

	filter, err := studentPlanFilter(req)
	if err != nil {
		return dto.StudentStatsResponse{}, err
	}

	cacheKey := s.studentCacheKey(studentID, filter)
	if cacheKey != "" {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			var response dto.StudentStatsResponse
			if err := json.Unmarshal([]byte(cached), &response); err == nil {
				response.CacheHit = true
				return response, nil
			}
		} else if err != nil && err != redis.Nil {
			s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to read student stats cache")
		}
	}

	counts, err := s.tasks.CountByStatusForStudent(ctx, studentID, filter)
	if err != nil {
		return dto.StudentStatsResponse{}, err
	}

	byPlan := make(map[uint][]repository.TaskStatusCount)
	order := make([]uint, 0)
	for _, row := range counts {
		if _, seen := byPlan[row.PlanID]; !seen {
			order = append(order, row.PlanID)
		}
		byPlan[row.PlanID] = append(byPlan[row.PlanID], row)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	response := dto.StudentStatsResponse{StudentID: studentID, Plans: make([]dto.PlanStats, 0, len(order))}
	for _, planID := range order {
		response.Plans = append(response.Plans, rollup(planID, byPlan[planID]))
	}

	if cacheKey != "" {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.ttl).Err(); err != nil {
				s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to write student stats cache")
			}
		}
	}

	return response, nil
}

func (s *completionAggregator) HistoryForStudent(ctx context.Context, studentID uint) ([]dto.PerformanceSnapshotResponse, error) {
	snapshots, err := s.snapshots.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.PerformanceSnapshotResponse, 0, len(snapshots))
	for _, snapshot := range snapshots {
		responses = append(responses, dto.NewPerformanceSnapshotResponse(snapshot))
	}
	return responses, nil
}

// InvalidateStudent drops every cached rollup of the given students.
func (s *completionAggregator) InvalidateStudent(ctx context.Context, studentIDs ...uint) {
	if s.cache == nil {
		return
	}

	for _, studentID := range studentIDs {
		pattern := fmt.Sprintf("%s:%d:*", studentStatsKeyPrefix, studentID)
		iter := s.cache.Scan(ctx, 0, pattern, 100).Iterator()
		keys := make([]string, 0)
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to scan student stats cache")
			continue
		}
		if len(keys) == 0 {
			continue
		}
		if err := s.cache.Del(ctx, keys...).Err(); err != nil {
			s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to invalidate student stats cache")
		}
	}
}

func (s *completionAggregator) studentCacheKey(studentID uint, filter repository.StudentPlanFilter) string {
	if s.cache == nil {
		return ""
	}

	statuses := make([]string, 0, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)

	from, to := "-", "-"
	if filter.From != nil {
		from = filter.From.Format(dto.DateLayout)
	}
	if filter.To != nil {
		to = filter.To.Format(dto.DateLayout)
	}

	return fmt.Sprintf("%s:%d:%s|%s|%s|%s", studentStatsKeyPrefix, studentID, strings.Join(statuses, ","), filter.ExamType, from, to)
}

func studentPlanFilter(req dto.StudentStatsRequest) (repository.StudentPlanFilter, error) {
	filter := repository.StudentPlanFilter{ExamType: strings.ToUpper(strings.TrimSpace(req.ExamType))}
	for _, status := range req.Statuses {
		filter.Statuses = append(filter.Statuses, models.PlanStatus(status))
	}

	if req.From != "" {
		from, err := time.Parse(dto.DateLayout, req.From)
		if err != nil {
			return filter, validationf("invalid from date %q", req.From)
		}
		filter.From = &from
	}
	if req.To != "" {
		to, err := time.Parse(dto.DateLayout, req.To)
		if err != nil {
			return filter, validationf("invalid to date %q", req.To)
		}
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, validationf("to date must not precede from date")
	}

	return filter, nil
}

func rollup(planID uint, counts []repository.TaskStatusCount) dto.PlanStats {
	stats := dto.PlanStats{PlanID: planID}
	for _, row := range counts {
		total := row.Total
		stats.Total += total
		switch row.Status {
		case models.TaskStatusCompleted:
			stats.Completed += total
		case models.TaskStatusVerified:
			stats.Completed += total
			stats.Verified += total
		}
	}

	stats.Percentage = percentOf(stats.Completed, stats.Total)
	stats.VerifiedPercentage = percentOf(stats.Verified, stats.Total)
	return stats
}

func percentOf(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}
