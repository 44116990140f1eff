package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-studyplan-api/internal/models"
)

func TestActivityLogListFiltersByActionsAndEntity(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityLogRepository(db)
	ctx := context.Background()

	planID := uint(12)
	taskID := uint(40)
	base := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	entries := []models.ActivityLog{
		{ActorID: 100, ActorRole: "teacher", Action: "plan.assigned", EntityType: "study_plan", EntityID: &planID, Metadata: datatypes.JSONMap{"recipients": 2}, CreatedAt: base},
		{ActorID: 1, ActorRole: "student", Action: "task.completed", EntityType: "study_task", EntityID: &taskID, CreatedAt: base.Add(time.Hour)},
		{ActorID: 100, ActorRole: "teacher", Action: "task.verified", EntityType: "study_task", EntityID: &taskID, CreatedAt: base.Add(2 * time.Hour)},
	}
	for i := range entries {
		require.NoError(t, repo.Create(ctx, &entries[i]))
	}

	items, total, err := repo.List(ctx, ActivityLogFilter{Actions: []string{"task.completed", "task.verified"}, EntityID: &taskID})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Equal(t, "task.verified", items[0].Action)

	until := base.Add(30 * time.Minute)
	items, total, err = repo.List(ctx, ActivityLogFilter{Until: &until})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "plan.assigned", items[0].Action)

	items, total, err = repo.List(ctx, ActivityLogFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, items, 1)
}
