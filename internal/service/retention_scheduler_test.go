package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-studyplan-api/internal/dto"
	"github.com/noah-isme/gema-studyplan-api/internal/models"
)

func TestSelectPurgeCandidates(t *testing.T) {
	now := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	policy := models.RetentionPolicy{SchoolID: 1, AutoCleanupEnabled: true, CleanupMonthsToKeep: 1}
	old := now.AddDate(0, -2, 0)

	plans := []models.StudyPlan{
		{ID: 1, SchoolID: 1, Status: models.PlanStatusCompleted, CreatedAt: old},
		{ID: 2, SchoolID: 1, Status: models.PlanStatusDraft, CreatedAt: old},
		{ID: 3, SchoolID: 1, Status: models.PlanStatusArchived, CreatedAt: old},
		{ID: 4, SchoolID: 1, Status: models.PlanStatusActive, CreatedAt: now.AddDate(0, 0, -10)},
		{ID: 5, SchoolID: 2, Status: models.PlanStatusAssigned, CreatedAt: old},
		{ID: 6, SchoolID: 1, Status: models.PlanStatusAssigned, CreatedAt: old},
	}

	candidates := SelectPurgeCandidates(policy, plans, now)
	ids := make([]uint, 0, len(candidates))
	for _, plan := range candidates {
		ids = append(ids, plan.ID)
	}
	require.Equal(t, []uint{1, 6}, ids)
}

func TestRetentionCutoffClampsToMonthEnd(t *testing.T) {
	cases := []struct {
		name   string
		now    time.Time
		months int
		want   time.Time
	}{
		{
			name:   "leap february",
			now:    time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC),
			months: 1,
			want:   time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC),
		},
		{
			name:   "thirty day month",
			now:    time.Date(2024, time.May, 31, 8, 30, 0, 0, time.UTC),
			months: 3,
			want:   time.Date(2024, time.February, 29, 8, 30, 0, 0, time.UTC),
		},
		{
			name:   "across a year",
			now:    time.Date(2025, time.March, 30, 0, 0, 0, 0, time.UTC),
			months: 13,
			want:   time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "mid month",
			now:    time.Date(2024, time.May, 15, 9, 0, 0, 0, time.UTC),
			months: 6,
			want:   time.Date(2023, time.November, 15, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			policy := models.RetentionPolicy{CleanupMonthsToKeep: tc.months}
			require.True(t, tc.want.Equal(policy.Cutoff(tc.now)), "got %s", policy.Cutoff(tc.now))
		})
	}
}

func TestSelectPurgeCandidatesKeepsRecentPlansAtMonthEnd(t *testing.T) {
	now := time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)
	policy := models.RetentionPolicy{SchoolID: 1, AutoCleanupEnabled: true, CleanupMonthsToKeep: 1}

	plans := []models.StudyPlan{
		{ID: 1, SchoolID: 1, Status: models.PlanStatusCompleted, CreatedAt: time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)},
		{ID: 2, SchoolID: 1, Status: models.PlanStatusCompleted, CreatedAt: time.Date(2024, time.March, 2, 12, 0, 0, 0, time.UTC)},
		{ID: 3, SchoolID: 1, Status: models.PlanStatusCompleted, CreatedAt: time.Date(2024, time.February, 28, 12, 0, 0, 0, time.UTC)},
	}

	candidates := SelectPurgeCandidates(policy, plans, now)
	require.Len(t, candidates, 1)
	require.Equal(t, uint(3), candidates[0].ID)

	policy.CleanupMonthsToKeep = 3
	now = time.Date(2024, time.May, 31, 12, 0, 0, 0, time.UTC)
	plans = []models.StudyPlan{
		{ID: 4, SchoolID: 1, Status: models.PlanStatusCompleted, CreatedAt: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 5, SchoolID: 1, Status: models.PlanStatusCompleted, CreatedAt: time.Date(2024, time.February, 29, 11, 0, 0, 0, time.UTC)},
	}
	candidates = SelectPurgeCandidates(policy, plans, now)
	require.Len(t, candidates, 1)
	require.Equal(t, uint(5), candidates[0].ID)
}

func TestRetentionPolicyDueOncePerMonth(t *testing.T) {
	now := time.Date(2024, time.May, 3, 12, 0, 0, 0, time.UTC)
	policy := models.RetentionPolicy{AutoCleanupEnabled: true, CleanupMonthsToKeep: 3}
	require.True(t, policy.DueAt(now))

	last := time.Date(2024, time.April, 30, 23, 0, 0, 0, time.UTC)
	policy.LastCleanupAt = &last
	require.True(t, policy.DueAt(now))

	last = time.Date(2024, time.May, 1, 0, 5, 0, 0, time.UTC)
	require.False(t, policy.DueAt(now))

	policy.AutoCleanupEnabled = false
	policy.LastCleanupAt = nil
	require.False(t, policy.DueAt(now))
}

func TestRunCleanupPurgesAgedInstancesOnly(t *testing.T) {
	fx := newStudyFixture(t, nil)
	ctx := context.Background()
	fx.seedSchool(t, 1, true, 1)
	fx.clock = time.Date(2024, time.May, 1, 2, 0, 0, 0, time.UTC)

	template := fx.createTemplate(t, 2)
	require.NoError(t, fx.db.Model(&models.PlanTemplate{}).Where("id = ?", template.ID).
		Update("created_at", fx.clock.AddDate(0, -5, 0)).Error)

	aged := fx.instantiate(t, template.ID, "INDIVIDUAL", nil)
	_, err := fx.assigner.Assign(ctx, aged.ID, dto.PlanAssignRequest{StudentIDs: []uint{90}}, teacherActor)
	require.NoError(t, err)
	task := fx.studentTasks(t, aged.ID, 90)[0]
	_, err = fx.lifecycle.Complete(ctx, task.ID, StudentActor{ID: 90}, dto.TaskCompleteRequest{CorrectAnswers: 7, WrongAnswers: 1, TimeSpentMinutes: 30})
	require.NoError(t, err)
	_, err = fx.plans.TransitionStatus(ctx, aged.ID, models.PlanStatusCompleted, teacherActor)
	require.NoError(t, err)

	agedDraft := fx.instantiate(t, template.ID, "INDIVIDUAL", nil)
	recent := fx.instantiate(t, template.ID, "INDIVIDUAL", nil)
	_, err = fx.assigner.Assign(ctx, recent.ID, dto.PlanAssignRequest{StudentIDs: []uint{90}}, teacherActor)
	require.NoError(t, err)

	twoMonthsAgo := fx.clock.AddDate(0, -2, 0)
	require.NoError(t, fx.db.Model(&models.StudyPlan{}).Where("id IN ?", []uint{aged.ID, agedDraft.ID}).
		Update("created_at", twoMonthsAgo).Error)
	require.NoError(t, fx.db.Model(&models.StudyPlan{}).Where("id = ?", recent.ID).
		Update("created_at", fx.clock.AddDate(0, 0, -3)).Error)

	preview, err := fx.retention.Preview(ctx, 1)
	require.NoError(t, err)
	require.True(t, preview.DryRun)
	require.Len(t, preview.Candidates, 1)
	require.Equal(t, aged.ID, preview.Candidates[0].PlanID)

	report, err := fx.retention.RunCleanup(ctx, 1, adminActor)
	require.NoError(t, err)
	require.False(t, report.DryRun)
	require.Equal(t, []uint{aged.ID}, report.Purged)
	require.Empty(t, report.Failed)

	_, err = fx.plans.Get(ctx, aged.ID)
	require.True(t, errors.Is(err, ErrNotFound))
	var remaining int64
	require.NoError(t, fx.db.Model(&models.StudyTask{}).Where("plan_id = ?", aged.ID).Count(&remaining).Error)
	require.Zero(t, remaining)
	require.NoError(t, fx.db.Model(&models.PlanAssignment{}).Where("plan_id = ?", aged.ID).Count(&remaining).Error)
	require.Zero(t, remaining)

	kept, err := fx.templates.Get(ctx, template.ID)
	require.NoError(t, err)
	require.Len(t, kept.Tasks, 2)
	_, err = fx.plans.Get(ctx, agedDraft.ID)
	require.NoError(t, err)
	_, err = fx.plans.Get(ctx, recent.ID)
	require.NoError(t, err)

	history, err := fx.aggregator.HistoryForStudent(ctx, 90)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, aged.ID, history[0].PlanID)
	require.Equal(t, 2, history[0].TotalTasks)
	require.Equal(t, 1, history[0].CompletedTasks)
	require.Equal(t, 7, history[0].CorrectAnswers)
	require.Equal(t, 30, history[0].TimeSpentMinutes)

	policy, err := fx.retention.Policy(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, policy.LastCleanupAt)
	require.Contains(t, fx.publisher.types(), EventPlanPurged)

	again, err := fx.retention.RunCleanup(ctx, 1, adminActor)
	require.NoError(t, err)
	require.Empty(t, again.Purged)
}

func TestRunCleanupIsNoopWhenDisabled(t *testing.T) {
	fx := newStudyFixture(t, nil)
	ctx := context.Background()
	fx.seedSchool(t, 2, false, 1)
	fx.clock = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	template := fx.createTemplate(t, 1)
	plan := fx.instantiate(t, template.ID, "INDIVIDUAL", nil)
	require.NoError(t, fx.db.Model(&models.StudyPlan{}).Where("id = ?", plan.ID).Updates(map[string]interface{}{
		"school_id":  2,
		"status":     models.PlanStatusActive,
		"created_at": fx.clock.AddDate(-1, 0, 0),
	}).Error)

	report, err := fx.retention.RunCleanup(ctx, 2, adminActor)
	require.NoError(t, err)
	require.False(t, report.Enabled)
	require.Empty(t, report.Purged)

	preview, err := fx.retention.Preview(ctx, 2)
	require.NoError(t, err)
	require.Len(t, preview.Candidates, 1)

	_, err = fx.plans.Get(ctx, plan.ID)
	require.NoError(t, err)

	policy, err := fx.retention.Policy(ctx, 2)
	require.NoError(t, err)
	require.Nil(t, policy.LastCleanupAt)
}

func TestUpdatePolicyRequiresAdmin(t *testing.T) {
	fx := newStudyFixture(t, nil)
	ctx := context.Background()
	fx.seedSchool(t, 3, false, 0)

	policy, err := fx.retention.Policy(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, models.DefaultCleanupMonthsToKeep, policy.CleanupMonthsToKeep)

	enabled := true
	months := 2
	_, err = fx.retention.UpdatePolicy(ctx, 3, dto.RetentionPolicyUpdateRequest{AutoCleanupEnabled: &enabled}, teacherActor)
	require.True(t, errors.Is(err, ErrForbidden))

	updated, err := fx.retention.UpdatePolicy(ctx, 3, dto.RetentionPolicyUpdateRequest{AutoCleanupEnabled: &enabled, CleanupMonthsToKeep: &months}, adminActor)
	require.NoError(t, err)
	require.True(t, updated.AutoCleanupEnabled)
	require.Equal(t, 2, updated.CleanupMonthsToKeep)

	zero := 0
	_, err = fx.retention.UpdatePolicy(ctx, 3, dto.RetentionPolicyUpdateRequest{CleanupMonthsToKeep: &zero}, adminActor)
	require.Error(t, err)

	_, err = fx.retention.UpdatePolicy(ctx, 404, dto.RetentionPolicyUpdateRequest{AutoCleanupEnabled: &enabled}, adminActor)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestRunDueSweepsDueSchools(t *testing.T) {
	fx := newStudyFixture(t, nil)
	ctx := context.Background()
	fx.seedSchool(t, 1, true, 1)
	fx.clock = time.Date(2024, time.July, 1, 3, 0, 0, 0, time.UTC)

	template := fx.createTemplate(t, 1)
	plan := fx.instantiate(t, template.ID, "INDIVIDUAL", nil)
	_, err := fx.plans.TransitionStatus(ctx, plan.ID, models.PlanStatusActive, teacherActor)
	require.NoError(t, err)
	require.NoError(t, fx.db.Model(&models.StudyPlan{}).Where("id = ?", plan.ID).
		Update("created_at", fx.clock.AddDate(0, -3, 0)).Error)

	require.NoError(t, fx.retention.RunDue(ctx))

	_, err = fx.plans.Get(ctx, plan.ID)
	require.True(t, errors.Is(err, ErrNotFound))

	policy, err := fx.retention.Policy(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, policy.LastCleanupAt)
}
