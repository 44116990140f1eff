package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-studyplan-api/internal/models"
)

// StudyTaskFilter narrows task listings.
type StudyTaskFilter struct {
	PlanID    uint
	StudentID *uint
	Status    *models.TaskStatus
}

// TaskStatusCount is one row of a grouped status count.
type TaskStatusCount struct {
	PlanID uint
	Status models.TaskStatus
	Total  int
}

// StudentPlanFilter narrows per-student rollups.
type StudentPlanFilter struct {
	Statuses []models.PlanStatus
	ExamType string
	From     *time.Time
	To       *time.Time
}

// StudyTaskRepository persists per-student study tasks.
type StudyTaskRepository interface {
	GetByID(ctx context.Context, id uint) (models.StudyTask, error)
	List(ctx context.Context, filter StudyTaskFilter) ([]models.StudyTask, error)
	UpdateIfStatus(ctx context.Context, id uint, expected models.TaskStatus, updates map[string]interface{}) (bool, error)
	CountByStatus(ctx context.Context, planID uint) ([]TaskStatusCount, error)
	CountByStatusForStudent(ctx context.Context, studentID uint, filter StudentPlanFilter) ([]TaskStatusCount, error)
}

type studyTaskRepository struct {
	db *gorm.DB
}

// NewStudyTaskRepository constructs the task repository.
func NewStudyTaskRepository(db *gorm.DB) StudyTaskRepository {
	return &studyTaskRepository{db: db}
}

func (r *studyTaskRepository) GetByID(ctx context.Context, id uint) (models.StudyTask, error) {
	var task models.StudyTask
	if err := r.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return models.StudyTask{}, err
	}

	return task, nil
}

func (r *studyTaskRepository) List(ctx context.Context, filter StudyTaskFilter) ([]models.StudyTask, error) {
	query := r.db.WithContext(ctx).Model(&models.StudyTask{}).Where("plan_id = ?", filter.PlanID)

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var tasks []models.StudyTask
	if err := query.Order("student_id ASC, day_index ASC, row_index ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}

	return tasks, nil
}

// UpdateIfStatus applies updates only while the task is still in expected.
// Two racing transitions on the same task cannot both succeed.
func (r *studyTaskRepository) UpdateIfStatus(ctx context.Context, id uint, expected models.TaskStatus, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.StudyTask{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *studyTaskRepository) CountByStatus(ctx context.Context, planID uint) ([]TaskStatusCount, error) {
	var rows []TaskStatusCount
	if err := r.db.WithContext(ctx).Model(&models.StudyTask{}).
		Select("plan_id, status, COUNT(*) AS total").
		Where("plan_id = ?", planID).
		Group("plan_id, status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *studyTaskRepository) CountByStatusForStudent(ctx context.Context, studentID uint, filter StudentPlanFilter) ([]TaskStatusCount, error) {
	query := r.db.WithContext(ctx).Model(&models.StudyTask{}).
		Select("study_tasks.plan_id AS plan_id, study_tasks.status AS status, COUNT(*) AS total").
		Joins("JOIN study_plans ON study_plans.id = study_tasks.plan_id").
		Where("study_tasks.student_id = ?", studentID)

	if len(filter.Statuses) > 0 {
		query = query.Where("study_plans.status IN ?", filter.Statuses)
	}
	if filter.ExamType != "" {
		query = query.Where("study_plans.exam_type = ?", filter.ExamType)
	}
	if filter.From != nil {
		query = query.Where("study_plans.week_start_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("study_plans.week_start_date <= ?", *filter.To)
	}

	var rows []TaskStatusCount
	if err := query.
		Group("study_tasks.plan_id, study_tasks.status").
		Order("study_tasks.plan_id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}
