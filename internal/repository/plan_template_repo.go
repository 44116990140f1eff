package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-studyplan-api/internal/models"
)

// PlanTemplateFilter narrows template listings.
type PlanTemplateFilter struct {
	SchoolID *uint
	ExamType string
}

// PlanTemplateRepository persists reusable plan templates.
type PlanTemplateRepository interface {
	Create(ctx context.Context, template *models.PlanTemplate) error
	GetByID(ctx context.Context, id uint) (models.PlanTemplate, error)
	List(ctx context.Context, filter PlanTemplateFilter) ([]models.PlanTemplate, error)
	Delete(ctx context.Context, id uint) error
}

type planTemplateRepository struct {
	db *gorm.DB
}

// NewPlanTemplateRepository constructs the template repository.
func NewPlanTemplateRepository(db *gorm.DB) PlanTemplateRepository {
	return &planTemplateRepository{db: db}
}

func (r *planTemplateRepository) Create(ctx context.Context, template *models.PlanTemplate) error {
	return r.db.WithContext(ctx).Create(template).Error
}

func (r *planTemplateRepository) GetByID(ctx context.Context, id uint) (models.PlanTemplate, error) {
	var template models.PlanTemplate
	if err := r.db.WithContext(ctx).
		Preload("Tasks", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("day_index ASC, row_index ASC")
		}).
		First(&template, id).Error; err != nil {
		return models.PlanTemplate{}, err
	}

	return template, nil
}

func (r *planTemplateRepository) List(ctx context.Context, filter PlanTemplateFilter) ([]models.PlanTemplate, error) {
	query := r.db.WithContext(ctx).Model(&models.PlanTemplate{}).
		Preload("Tasks", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("day_index ASC, row_index ASC")
		})

	if filter.SchoolID != nil {
		query = query.Where("school_id = ?", *filter.SchoolID)
	}
	if filter.ExamType != "" {
		query = query.Where("exam_type = ?", filter.ExamType)
	}

	var templates []models.PlanTemplate
	if err := query.Order("created_at DESC").Find(&templates).Error; err != nil {
		return nil, err
	}

	return templates, nil
}

func (r *planTemplateRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", id).Delete(&models.PlanTemplateTask{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.PlanTemplate{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
