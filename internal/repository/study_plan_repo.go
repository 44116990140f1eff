package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-studyplan-api/internal/models"
)

// StudyPlanFilter narrows plan instance listings.
type StudyPlanFilter struct {
	SchoolID   *uint
	TemplateID *uint
	TeacherID  *uint
	Statuses   []models.PlanStatus
	Page       int
	PageSize   int
}

// PurgeSnapshotFunc derives the performance rows to keep before a plan is deleted.
type PurgeSnapshotFunc func(plan models.StudyPlan, tasks []models.StudyTask) []models.StudentPerformanceSnapshot

// StudyPlanRepository persists plan instances and their task definitions.
type StudyPlanRepository interface {
	Create(ctx context.Context, plan *models.StudyPlan) error
	GetByID(ctx context.Context, id uint) (models.StudyPlan, error)
	List(ctx context.Context, filter StudyPlanFilter) ([]models.StudyPlan, int64, error)
	UpdateStatus(ctx context.Context, id uint, from, to models.PlanStatus, completedAt *time.Time) (bool, error)
	ListCreatedBefore(ctx context.Context, schoolID uint, cutoff time.Time, statuses []models.PlanStatus) ([]models.StudyPlan, error)
	ListWeekElapsed(ctx context.Context, weekStartBefore time.Time) ([]models.StudyPlan, error)
	Purge(ctx context.Context, id uint, statuses []models.PlanStatus, snapshot PurgeSnapshotFunc) (bool, error)
}

type studyPlanRepository struct {
	db *gorm.DB
}

// NewStudyPlanRepository instantiates the plan repository.
func NewStudyPlanRepository(db *gorm.DB) StudyPlanRepository {
	return &studyPlanRepository{db: db}
}

func (r *studyPlanRepository) Create(ctx context.Context, plan *models.StudyPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *studyPlanRepository) GetByID(ctx context.Context, id uint) (models.StudyPlan, error) {
	var plan models.StudyPlan
	if err := r.db.WithContext(ctx).
		Preload("Definitions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("day_index ASC, row_index ASC")
		}).
		First(&plan, id).Error; err != nil {
		return models.StudyPlan{}, err
	}

	return plan, nil
}

func (r *studyPlanRepository) List(ctx context.Context, filter StudyPlanFilter) ([]models.StudyPlan, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.StudyPlan{})

	if filter.SchoolID != nil {
		query = query.Where("school_id = ?", *filter.SchoolID)
	}
	if filter.TemplateID != nil {
		query = query.Where("template_id = ?", *filter.TemplateID)
	}
	if filter.TeacherID != nil {
		query = query.Where("created_by_teacher_id = ?", *filter.TeacherID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var plans []models.StudyPlan
	if err := query.Order("week_start_date DESC, id DESC").Find(&plans).Error; err != nil {
		return nil, 0, err
	}

	return plans, total, nil
}

// UpdateStatus moves a plan from one status to another only if it is still in from.
func (r *studyPlanRepository) UpdateStatus(ctx context.Context, id uint, from, to models.PlanStatus, completedAt *time.Time) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if completedAt != nil {
		updates["completed_at"] = *completedAt
	}

	result := r.db.WithContext(ctx).Model(&models.StudyPlan{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *studyPlanRepository) ListCreatedBefore(ctx context.Context, schoolID uint, cutoff time.Time, statuses []models.PlanStatus) ([]models.StudyPlan, error) {
	var plans []models.StudyPlan
	if err := r.db.WithContext(ctx).
		Where("school_id = ? AND created_at < ? AND status IN ?", schoolID, cutoff, statuses).
		Order("created_at ASC").
		Find(&plans).Error; err != nil {
		return nil, err
	}

	return plans, nil
}

func (r *studyPlanRepository) ListWeekElapsed(ctx context.Context, weekStartBefore time.Time) ([]models.StudyPlan, error) {
	var plans []models.StudyPlan
	if err := r.db.WithContext(ctx).
		Where("week_start_date <= ? AND status IN ?", weekStartBefore, []models.PlanStatus{models.PlanStatusActive, models.PlanStatusAssigned}).
		Order("week_start_date ASC").
		Find(&plans).Error; err != nil {
		return nil, err
	}

	return plans, nil
}

// Purge deletes a plan with its definitions, tasks and assignments in one
// transaction. The plan row is locked first so in-flight task transitions
// either finish before the purge or observe the plan as gone. It returns
// false when the plan no longer qualifies.
func (r *studyPlanRepository) Purge(ctx context.Context, id uint, statuses []models.PlanStatus, snapshot PurgeSnapshotFunc) (bool, error) {
	purged := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan models.StudyPlan
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&plan, id).Error; err != nil {
			return err
		}
		if !containsStatus(statuses, plan.Status) {
			return nil
		}

		if snapshot != nil {
			var tasks []models.StudyTask
			if err := tx.Where("plan_id = ?", id).Order("student_id ASC, day_index ASC, row_index ASC").Find(&tasks).Error; err != nil {
				return err
			}
			if rows := snapshot(plan, tasks); len(rows) > 0 {
				if err := tx.Clauses(clause.OnConflict{
					Columns: []clause.Column{{Name: "plan_id"}, {Name: "student_id"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"total_tasks", "completed_tasks", "verified_tasks", "correct_answers",
						"wrong_answers", "blank_answers", "time_spent_minutes", "captured_at",
					}),
				}).Create(&rows).Error; err != nil {
					return err
				}
			}
		}

		if err := tx.Where("plan_id = ?", id).Delete(&models.StudyTask{}).Error; err != nil {
			return err
		}
		if err := tx.Where("plan_id = ?", id).Delete(&models.PlanAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("plan_id = ?", id).Delete(&models.PlanTaskDefinition{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.StudyPlan{}, id).Error; err != nil {
			return err
		}

		purged = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return purged, nil
}

func containsStatus(statuses []models.PlanStatus, status models.PlanStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}
