package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-studyplan-api/internal/dto"
	"github.com/noah-isme/gema-studyplan-api/internal/models"
)

func TestCreateFromTemplateCopiesDefinitions(t *testing.T) {
	fx := newStudyFixture(t, nil)
	ctx := context.Background()

	template := fx.createTemplate(t, 4)
	require.Equal(t, []int{11, 12}, template.GradeLevels)
	require.True(t, template.IsTemplate)

	name := "Mart <i>1.</i> hafta"
	plan, err := fx.plans.CreateFromTemplate(ctx, template.ID, dto.PlanInstantiateRequest{
		WeekStartDate: "2024-03-04",
		TargetType:    "INDIVIDUAL",
		Name:          &name,
	}, teacherActor)
	require.NoError(t, err)
	require.Equal(t, "Mart 1. hafta", plan.Name)
	require.Equal(t, "2024-03-04", plan.WeekStartDate)
	require.Equal(t, string(models.PlanStatusDraft), plan.Status)
	require.Equal(t, template.ID, *plan.TemplateID)
	require.Len(t, plan.Tasks, 4)
	require.Nil(t, plan.GroupID)

	for i, task := range plan.Tasks {
		require.Equal(t, template.Tasks[i].DayIndex, task.DayIndex)
		require.Equal(t, template.Tasks[i].RowIndex, task.RowIndex)
		require.Equal(t, template.Tasks[i].QuestionCount, task.QuestionCount)
	}

	reloaded, err := fx.templates.Get(ctx, template.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Tasks, 4)
}

func TestCreateFromTemplateValidatesInput(t *testing.T) {
	fx := newStudyFixture(t, nil)
	ctx := context.Background()
	template := fx.createTemplate(t, 1)

	_, err := fx.plans.CreateFromTemplate(ctx, template.ID, dto.PlanInstantiateRequest{WeekStartDate: "2024-03-06", TargetType: "INDIVIDUAL"}, teacherActor)
	require.True(t, errors.Is(err, ErrValidation))

	_, err = fx.plans.CreateFromTemplate(ctx, 404, dto.PlanInstantiateRequest{WeekStartDate: "2024-03-04", TargetType: "INDIVIDUAL"}, teacherActor)
	require.True(t, errors.Is(err, ErrNotFound))

	_, err = fx.plans.CreateFromTemplate(ctx, template.ID, dto.PlanInstantiateRequest{WeekStartDate: "2024-03-04", TargetType: "CLASS"}, teacherActor)
	var validationErrs validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrs))

	_, err = fx.plans.CreateFromTemplate(ctx, template.ID, dto.PlanInstantiateRequest{WeekStartDate: "2024-03-04", TargetType: "INDIVIDUAL"}, StudentActor{ID: 3})
	require.True(t, errors.Is(err, ErrForbidden))
}

func TestCreateFreeformRejectsDuplicateSlots(t *testing.T) {
	fx := newStudyFixture(t, nil)
	ctx := context.Background()

	payload := dto.PlanFreeformRequest{
		SchoolID:      1,
		Name:          "Serbest Program",
		ExamType:      "AYT",
		WeekStartDate: "2024-03-11",
		TargetType:    "INDIVIDUAL",
		Tasks: []dto.TaskSlotRequest{
			{SubjectName: "Fizik", DayIndex: 0, RowIndex: 0, QuestionCount: 15},
			{SubjectName: "Kimya", DayIndex: 0, RowIndex: 0, QuestionCount: 15},
		},
	}
	_, err := fx.plans.CreateFreeform(ctx, payload, teacherActor)
	require.True(t, errors.Is(err, ErrValidation))

	payload.Tasks[1].RowIndex = 1
	plan, err := fx.plans.CreateFreeform(ctx, payload, teacherActor)
	require.NoError(t, err)
	require.Nil(t, plan.TemplateID)
	require.Len(t, plan.Tasks, 2)

	payload.Tasks[1].DayIndex = 7
	_, err = fx.plans.CreateFreeform(ctx, payload, teacherActor)
	require.Error(t, err)
}

func TestTransitionStatusEnforcesStateMachine(t *testing.T) {
	fx := newStudyFixture(t, nil)
	ctx := context.Background()
	template := fx.createTemplate(t, 1)
	plan := fx.instantiate(t, template.ID, "INDIVIDUAL", nil)

	_, err := fx.plans.TransitionStatus(ctx, plan.ID, models.PlanStatusCompleted, teacherActor)
	require.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = fx.plans.TransitionStatus(ctx, plan.ID, models.PlanStatusArchived, teacherActor)
	require.True(t, errors.Is(err, ErrInvalidTransition))

	updated, err := fx.plans.TransitionStatus(ctx, plan.ID, models.PlanStatusAssigned, teacherActor)
	require.NoError(t, err)
	require.Equal(t, string(models.PlanStatusAssigned), updated.Status)

	_, err = fx.plans.TransitionStatus(ctx, plan.ID, models.PlanStatusDraft, teacherActor)
	require.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = fx.plans.TransitionStatus(ctx, plan.ID, models.PlanStatus("PAUSED"), teacherActor)
	require.True(t, errors.Is(err, ErrValidation))

	_, err = fx.plans.TransitionStatus(ctx, 404, models.PlanStatusActive, teacherActor)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestCompleteElapsedClosesPastWeeks(t *testing.T) {
	fx := newStudyFixture(t, nil)
	ctx := context.Background()
	template := fx.createTemplate(t, 1)

	open := fx.instantiate(t, template.ID, "INDIVIDUAL", nil)
	_, err := fx.plans.TransitionStatus(ctx, open.ID, models.PlanStatusActive, teacherActor)
	require.NoError(t, err)
	draft := fx.instantiate(t, template.ID, "INDIVIDUAL", nil)

	completed, err := fx.plans.CompleteElapsed(ctx)
	require.NoError(t, err)
	require.Zero(t, completed)

	fx.clock = time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)
	completed, err = fx.plans.CompleteElapsed(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, completed)

	current, err := fx.plans.Get(ctx, open.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.PlanStatusCompleted), current.Status)

	untouched, err := fx.plans.Get(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.PlanStatusDraft), untouched.Status)
}

func TestListPlansFiltersByStatus(t *testing.T) {
	fx := newStudyFixture(t, nil)
	ctx := context.Background()
	template := fx.createTemplate(t, 1)

	first := fx.instantiate(t, template.ID, "INDIVIDUAL", nil)
	fx.instantiate(t, template.ID, "INDIVIDUAL", nil)
	_, err := fx.plans.TransitionStatus(ctx, first.ID, models.PlanStatusActive, teacherActor)
	require.NoError(t, err)

	active, err := fx.plans.List(ctx, dto.PlanListRequest{Statuses: []string{"active"}, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, active.Items, 1)
	require.Equal(t, first.ID, active.Items[0].ID)
	require.EqualValues(t, 1, active.Pagination.TotalItems)

	all, err := fx.plans.List(ctx, dto.PlanListRequest{TemplateID: template.ID, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, all.Items, 2)

	_, err = fx.plans.List(ctx, dto.PlanListRequest{Statuses: []string{"PAUSED"}})
	require.True(t, errors.Is(err, ErrValidation))
}

func TestTemplateDeleteLeavesInstances(t *testing.T) {
	fx := newStudyFixture(t, nil)
	ctx := context.Background()
	template := fx.createTemplate(t, 2)
	plan := fx.instantiate(t, template.ID, "INDIVIDUAL", nil)

	require.NoError(t, fx.templates.Delete(ctx, template.ID, teacherActor))
	_, err := fx.templates.Get(ctx, template.ID)
	require.True(t, errors.Is(err, ErrNotFound))
	require.True(t, errors.Is(fx.templates.Delete(ctx, template.ID, teacherActor), ErrNotFound))

	kept, err := fx.plans.Get(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, kept.Tasks, 2)
}
