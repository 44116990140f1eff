package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-studyplan-api/internal/models"
)

// PerformanceSnapshotRepository reads the historical rollups kept after purges.
type PerformanceSnapshotRepository interface {
	ListByStudent(ctx context.Context, studentID uint) ([]models.StudentPerformanceSnapshot, error)
}

type performanceSnapshotRepository struct {
	db *gorm.DB
}

// NewPerformanceSnapshotRepository constructs the snapshot repository.
func NewPerformanceSnapshotRepository(db *gorm.DB) PerformanceSnapshotRepository {
	return &performanceSnapshotRepository{db: db}
}

func (r *performanceSnapshotRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.StudentPerformanceSnapshot, error) {
	var snapshots []models.StudentPerformanceSnapshot
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("week_start_date DESC").
		Find(&snapshots).Error; err != nil {
		return nil, err
	}

	return snapshots, nil
}
