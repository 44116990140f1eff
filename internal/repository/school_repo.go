package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-studyplan-api/internal/models"
)

// RetentionUpdate carries a partial retention policy change.
type RetentionUpdate struct {
	AutoCleanupEnabled  *bool
	CleanupMonthsToKeep *int
}

// SchoolRepository exposes the school-owned retention configuration.
type SchoolRepository interface {
	GetByID(ctx context.Context, id uint) (models.School, error)
	ListAutoCleanup(ctx context.Context) ([]models.School, error)
	UpdateRetention(ctx context.Context, id uint, update RetentionUpdate) (models.School, error)
	MarkCleanup(ctx context.Context, id uint, at time.Time) error
}

type schoolRepository struct {
	db *gorm.DB
}

// NewSchoolRepository constructs the school repository.
func NewSchoolRepository(db *gorm.DB) SchoolRepository {
	return &schoolRepository{db: db}
}

func (r *schoolRepository) GetByID(ctx context.Context, id uint) (models.School, error) {
	var school models.School
	if err := r.db.WithContext(ctx).First(&school, id).Error; err != nil {
		return models.School{}, err
	}

	return school, nil
}

func (r *schoolRepository) ListAutoCleanup(ctx context.Context) ([]models.School, error) {
	var schools []models.School
	if err := r.db.WithContext(ctx).
		Where("auto_cleanup_enabled = ?", true).
		Order("id ASC").
		Find(&schools).Error; err != nil {
		return nil, err
	}

	return schools, nil
}

func (r *schoolRepository) UpdateRetention(ctx context.Context, id uint, update RetentionUpdate) (models.School, error) {
	updates := map[string]interface{}{}
	if update.AutoCleanupEnabled != nil {
		updates["auto_cleanup_enabled"] = *update.AutoCleanupEnabled
	}
	if update.CleanupMonthsToKeep != nil {
		updates["cleanup_months_to_keep"] = *update.CleanupMonthsToKeep
	}

	if len(updates) > 0 {
		result := r.db.WithContext(ctx).Model(&models.School{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return models.School{}, result.Error
		}
		if result.RowsAffected == 0 {
			return models.School{}, gorm.ErrRecordNotFound
		}
	}

	return r.GetByID(ctx, id)
}

func (r *schoolRepository) MarkCleanup(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.School{}).
		Where("id = ?", id).
		Update("last_cleanup_at", at).Error
}
