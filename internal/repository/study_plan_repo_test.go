package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-studyplan-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func seedAssignedPlan(t *testing.T, db *gorm.DB, status models.PlanStatus, students ...uint) models.StudyPlan {
	t.Helper()

	plan := models.StudyPlan{
		SchoolID:           1,
		Definition:         models.PlanDefinition{Name: "LGS Hafta", ExamType: models.ExamTypeLGS},
		TargetType:         models.TargetIndividual,
		WeekStartDate:      time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
		Status:             models.PlanStatusDraft,
		CreatedByTeacherID: 10,
		Definitions: []models.PlanTaskDefinition{
			{SubjectName: "Turkce", DayIndex: 0, RowIndex: 0, QuestionCount: 10},
			{SubjectName: "Fen", DayIndex: 1, RowIndex: 0, QuestionCount: 10},
		},
	}
	require.NoError(t, db.Create(&plan).Error)

	repo := NewPlanAssignmentRepository(db)
	result, err := repo.Assign(context.Background(), AssignRecipientsInput{
		Plan:         plan,
		StudentIDs:   students,
		AssignedBy:   10,
		AssignedAt:   time.Now().UTC(),
		PromoteDraft: true,
	})
	require.NoError(t, err)
	require.Equal(t, len(students)*2, result.TasksCreated)

	require.NoError(t, db.Model(&models.StudyPlan{}).Where("id = ?", plan.ID).Update("status", status).Error)
	plan.Status = status
	return plan
}

func TestStudyPlanRepositoryPurgeSnapshotsAndDeletes(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudyPlanRepository(db)
	plan := seedAssignedPlan(t, db, models.PlanStatusCompleted, 1, 2)

	var seen int
	purged, err := repo.Purge(context.Background(), plan.ID, models.RetainableStatuses, func(locked models.StudyPlan, tasks []models.StudyTask) []models.StudentPerformanceSnapshot {
		seen = len(tasks)
		return models.BuildPerformanceSnapshots(locked, tasks, time.Now().UTC())
	})
	require.NoError(t, err)
	require.True(t, purged)
	require.Equal(t, 4, seen)

	for _, model := range []interface{}{&models.StudyPlan{}, &models.StudyTask{}, &models.PlanAssignment{}, &models.PlanTaskDefinition{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		require.Zero(t, count)
	}

	snapshots, err := NewPerformanceSnapshotRepository(db).ListByStudent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Equal(t, 2, snapshots[0].TotalTasks)
	require.Equal(t, "LGS Hafta", snapshots[0].PlanName)
}

func TestStudyPlanRepositoryPurgeSkipsIneligibleStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudyPlanRepository(db)
	plan := seedAssignedPlan(t, db, models.PlanStatusArchived, 1)

	purged, err := repo.Purge(context.Background(), plan.ID, models.RetainableStatuses, nil)
	require.NoError(t, err)
	require.False(t, purged)

	stored, err := repo.GetByID(context.Background(), plan.ID)
	require.NoError(t, err)
	require.Len(t, stored.Definitions, 2)

	_, err = repo.Purge(context.Background(), 999, models.RetainableStatuses, nil)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestStudyPlanRepositoryUpdateStatusIsConditional(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudyPlanRepository(db)
	plan := seedAssignedPlan(t, db, models.PlanStatusAssigned, 1)

	now := time.Now().UTC()
	updated, err := repo.UpdateStatus(context.Background(), plan.ID, models.PlanStatusActive, models.PlanStatusCompleted, &now)
	require.NoError(t, err)
	require.False(t, updated)

	updated, err = repo.UpdateStatus(context.Background(), plan.ID, models.PlanStatusAssigned, models.PlanStatusCompleted, &now)
	require.NoError(t, err)
	require.True(t, updated)

	stored, err := repo.GetByID(context.Background(), plan.ID)
	require.NoError(t, err)
	require.Equal(t, models.PlanStatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
}
