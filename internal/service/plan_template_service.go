package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-studyplan-api/internal/dto"
	"github.com/noah-isme/gema-studyplan-api/internal/models"
	"github.com/noah-isme/gema-studyplan-api/internal/repository"
)

// PlanTemplateService stores reusable weekly plan definitions.
type PlanTemplateService interface {
	Create(ctx context.Context, payload dto.PlanTemplateCreateRequest, actor Actor) (dto.PlanTemplateResponse, error)
	Get(ctx context.Context, id uint) (dto.PlanTemplateResponse, error)
	List(ctx context.Context, schoolID uint, examType string) ([]dto.PlanTemplateResponse, error)
	Delete(ctx context.Context, id uint, actor Actor) error
}

type planTemplateService struct {
	repo      repository.PlanTemplateRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewPlanTemplateService constructs the template store.
func NewPlanTemplateService(repo repository.PlanTemplateRepository, validator *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) PlanTemplateService {
	return &planTemplateService{
		repo:      repo,
		validator: validator,
		activity:  activity,
		logger:    logger.With().Str("component", "plan_template_service").Logger(),
	}
}

func (s *planTemplateService) Create(ctx context.Context, payload dto.PlanTemplateCreateRequest, actor Actor) (dto.PlanTemplateResponse, error) {
	mentor, err := requireMentor(actor)
	if err != nil {
		return dto.PlanTemplateResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.PlanTemplateResponse{}, err
	}

	slots, err := slotsFromRequest(payload.Tasks)
	if err != nil {
		return dto.PlanTemplateResponse{}, err
	}

	definition, err := newPlanDefinition(payload.Name, payload.Description, payload.ExamType, payload.GradeLevels)
	if err != nil {
		return dto.PlanTemplateResponse{}, err
	}

	template := models.PlanTemplate{
		SchoolID:           payload.SchoolID,
		Definition:         definition,
		CreatedByTeacherID: mentor.ID,
		Tasks:              make([]models.PlanTemplateTask, 0, len(slots)),
	}
	for _, slot := range slots {
		template.Tasks = append(template.Tasks, models.PlanTemplateTask{
			SubjectName:   slot.SubjectName,
			TopicName:     slot.TopicName,
			DayIndex:      slot.DayIndex,
			RowIndex:      slot.RowIndex,
			QuestionCount: slot.QuestionCount,
		})
	}

	if err := s.repo.Create(ctx, &template); err != nil {
		return dto.PlanTemplateResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, actor, "template.created", "plan_template", template.ID, map[string]interface{}{
		"school_id":  template.SchoolID,
		"task_count": len(template.Tasks),
	})

	return dto.NewPlanTemplateResponse(template), nil
}

func (s *planTemplateService) Get(ctx context.Context, id uint) (dto.PlanTemplateResponse, error) {
	template, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.PlanTemplateResponse{}, translateLookup(err, "template")
	}

	return dto.NewPlanTemplateResponse(template), nil
}

func (s *planTemplateService) List(ctx context.Context, schoolID uint, examType string) ([]dto.PlanTemplateResponse, error) {
	filter := repository.PlanTemplateFilter{ExamType: examType}
	if schoolID > 0 {
		filter.SchoolID = &schoolID
	}

	templates, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewPlanTemplateResponseSlice(templates), nil
}

func (s *planTemplateService) Delete(ctx context.Context, id uint, actor Actor) error {
	if _, err := requireMentor(actor); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("template")
		}
		return err
	}

	recordActivity(ctx, s.activity, s.logger, actor, "template.deleted", "plan_template", id, nil)
	return nil
}

func newPlanDefinition(name, description, examType string, levels []int) (models.PlanDefinition, error) {
	cleanName := plainText(name)
	if cleanName == "" {
		return models.PlanDefinition{}, validationf("name is empty after removing markup")
	}

	return models.PlanDefinition{
		Name:        cleanName,
		Description: plainText(description),
		ExamType:    models.ExamType(examType),
		GradeLevels: datatypes.JSONSlice[int](uniqueSortedInts(levels)),
	}, nil
}

// slotsFromRequest converts task payloads and enforces one task per (day, row).
func slotsFromRequest(tasks []dto.TaskSlotRequest) ([]models.TaskSlot, error) {
	type position struct{ day, row int }
	seen := make(map[position]struct{}, len(tasks))
	slots := make([]models.TaskSlot, 0, len(tasks))

	for _, task := range tasks {
		key := position{day: task.DayIndex, row: task.RowIndex}
		if _, exists := seen[key]; exists {
			return nil, validationf("duplicate task at day %d row %d", task.DayIndex, task.RowIndex)
		}
		seen[key] = struct{}{}

		slot := task.Slot()
		slot.SubjectName = plainText(slot.SubjectName)
		slot.TopicName = plainText(slot.TopicName)
		if slot.SubjectName == "" {
			return nil, validationf("subject name is required for day %d row %d", task.DayIndex, task.RowIndex)
		}
		slots = append(slots, slot)
	}

	return slots, nil
}

// parseWeekStart parses a plan week date, which must be a Monday.
func parseWeekStart(value string) (time.Time, error) {
	parsed, err := time.ParseInLocation(dto.DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, validationf("week_start_date must use YYYY-MM-DD")
	}
	if !models.IsWeekAligned(parsed) {
		return time.Time{}, validationf("week_start_date %s is not the Monday of an ISO week", value)
	}

	return models.WeekStart(parsed), nil
}

func uniqueSortedInts(values []int) []int {
	seen := make(map[int]struct{}, len(values))
	result := make([]int, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	sort.Ints(result)
	return result
}
