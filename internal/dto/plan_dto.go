package dto

import (
	"time"

	"github.com/noah-isme/gema-studyplan-api/internal/models"
)

// TaskSlotRequest describes one task of a template or freeform plan.
type TaskSlotRequest struct {
	SubjectName   string `json:"subject_name" validate:"required,max=128"`
	TopicName     string `json:"topic_name" validate:"max=255"`
	DayIndex      int    `json:"day_index" validate:"min=0,max=6"`
	RowIndex      int    `json:"row_index" validate:"min=0"`
	QuestionCount int    `json:"question_count" validate:"min=0,max=1000"`
}

// Slot converts the request into a task slot value.
func (r TaskSlotRequest) Slot() models.TaskSlot {
	return models.TaskSlot{
		SubjectName:   r.SubjectName,
		TopicName:     r.TopicName,
		DayIndex:      r.DayIndex,
		RowIndex:      r.RowIndex,
		QuestionCount: r.QuestionCount,
	}
}

// PlanTemplateCreateRequest is the payload for storing a reusable plan.
type PlanTemplateCreateRequest struct {
	SchoolID    uint              `json:"school_id" validate:"required"`
	Name        string            `json:"name" validate:"required,min=3,max=255"`
	Description string            `json:"description" validate:"max=2000"`
	ExamType    string            `json:"exam_type" validate:"required,oneof=TYT AYT YDT LGS"`
	GradeLevels []int             `json:"grade_levels" validate:"omitempty,dive,min=1,max=12"`
	Tasks       []TaskSlotRequest `json:"tasks" validate:"dive"`
}

// PlanInstantiateRequest creates a dated plan instance from a template.
type PlanInstantiateRequest struct {
	WeekStartDate string  `json:"week_start_date" validate:"required,datetime=2006-01-02"`
	TargetType    string  `json:"target_type" validate:"required,oneof=INDIVIDUAL GROUP"`
	GroupID       *uint   `json:"group_id" validate:"omitempty,gt=0"`
	Name          *string `json:"name" validate:"omitempty,min=3,max=255"`
}

// PlanFreeformRequest creates a plan instance with directly supplied tasks.
type PlanFreeformRequest struct {
	SchoolID      uint              `json:"school_id" validate:"required"`
	Name          string            `json:"name" validate:"required,min=3,max=255"`
	Description   string            `json:"description" validate:"max=2000"`
	ExamType      string            `json:"exam_type" validate:"required,oneof=TYT AYT YDT LGS"`
	GradeLevels   []int             `json:"grade_levels" validate:"omitempty,dive,min=1,max=12"`
	WeekStartDate string            `json:"week_start_date" validate:"required,datetime=2006-01-02"`
	TargetType    string            `json:"target_type" validate:"required,oneof=INDIVIDUAL GROUP"`
	GroupID       *uint             `json:"group_id" validate:"omitempty,gt=0"`
	Tasks         []TaskSlotRequest `json:"tasks" validate:"dive"`
}

// PlanStatusUpdateRequest requests a manual plan status transition.
type PlanStatusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=DRAFT ACTIVE ASSIGNED COMPLETED ARCHIVED"`
}

// PlanAssignRequest lists the recipients of a plan.
type PlanAssignRequest struct {
	StudentIDs []uint `json:"student_ids" validate:"omitempty,dive,gt=0"`
	GroupID    *uint  `json:"group_id" validate:"omitempty,gt=0"`
}

// PlanListRequest defines filters for listing plan instances.
type PlanListRequest struct {
	SchoolID   uint
	TemplateID uint
	TeacherID  uint
	Statuses   []string
	Page       int
	PageSize   int
}

// TaskSlotResponse serializes a task definition.
type TaskSlotResponse struct {
	ID            uint   `json:"id"`
	SubjectName   string `json:"subject_name"`
	TopicName     string `json:"topic_name"`
	DayIndex      int    `json:"day_index"`
	RowIndex      int    `json:"row_index"`
	QuestionCount int    `json:"question_count"`
}

// PlanTemplateResponse serializes a template.
type PlanTemplateResponse struct {
	ID                 uint               `json:"id"`
	SchoolID           uint               `json:"school_id"`
	IsTemplate         bool               `json:"is_template"`
	Name               string             `json:"name"`
	Description        string             `json:"description"`
	ExamType           string             `json:"exam_type"`
	GradeLevels        []int              `json:"grade_levels"`
	CreatedByTeacherID uint               `json:"created_by_teacher_id"`
	CreatedAt          time.Time          `json:"created_at"`
	Tasks              []TaskSlotResponse `json:"tasks"`
}

// StudyPlanResponse serializes a plan instance.
type StudyPlanResponse struct {
	ID                 uint               `json:"id"`
	SchoolID           uint               `json:"school_id"`
	TemplateID         *uint              `json:"template_id"`
	IsTemplate         bool               `json:"is_template"`
	Name               string             `json:"name"`
	Description        string             `json:"description"`
	ExamType           string             `json:"exam_type"`
	GradeLevels        []int              `json:"grade_levels"`
	TargetType         string             `json:"target_type"`
	GroupID            *uint              `json:"group_id"`
	WeekStartDate      string             `json:"week_start_date"`
	Status             string             `json:"status"`
	CreatedByTeacherID uint               `json:"created_by_teacher_id"`
	CompletedAt        *time.Time         `json:"completed_at"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	Tasks              []TaskSlotResponse `json:"tasks"`
}

// StudyPlanListResponse wraps paginated plans.
type StudyPlanListResponse struct {
	Items      []StudyPlanResponse `json:"items"`
	Pagination PaginationMeta      `json:"pagination"`
}

// PlanAssignmentResponse serializes one recipient snapshot.
type PlanAssignmentResponse struct {
	PlanID             uint      `json:"plan_id"`
	RecipientStudentID uint      `json:"recipient_student_id"`
	GroupID            *uint     `json:"group_id"`
	AssignedAt         time.Time `json:"assigned_at"`
}

// PlanAssignResponse reports the outcome of an assignment call.
type PlanAssignResponse struct {
	Plan          StudyPlanResponse        `json:"plan"`
	Assignments   []PlanAssignmentResponse `json:"assignments"`
	NewRecipients int                      `json:"new_recipients"`
	TasksCreated  int                      `json:"tasks_created"`
}

// NewPlanTemplateResponse converts a template model.
func NewPlanTemplateResponse(model models.PlanTemplate) PlanTemplateResponse {
	tasks := make([]TaskSlotResponse, 0, len(model.Tasks))
	for _, task := range model.Tasks {
		tasks = append(tasks, newTaskSlotResponse(task.ID, task.Slot()))
	}

	return PlanTemplateResponse{
		ID:                 model.ID,
		SchoolID:           model.SchoolID,
		IsTemplate:         true,
		Name:               model.Definition.Name,
		Description:        model.Definition.Description,
		ExamType:           string(model.Definition.ExamType),
		GradeLevels:        gradeLevels(model.Definition),
		CreatedByTeacherID: model.CreatedByTeacherID,
		CreatedAt:          model.CreatedAt,
		Tasks:              tasks,
	}
}

// NewPlanTemplateResponseSlice converts template models.
func NewPlanTemplateResponseSlice(templates []models.PlanTemplate) []PlanTemplateResponse {
	responses := make([]PlanTemplateResponse, 0, len(templates))
	for _, template := range templates {
		responses = append(responses, NewPlanTemplateResponse(template))
	}
	return responses
}

// NewStudyPlanResponse converts a plan instance model.
func NewStudyPlanResponse(model models.StudyPlan) StudyPlanResponse {
	tasks := make([]TaskSlotResponse, 0, len(model.Definitions))
	for _, definition := range model.Definitions {
		tasks = append(tasks, newTaskSlotResponse(definition.ID, definition.Slot()))
	}

	return StudyPlanResponse{
		ID:                 model.ID,
		SchoolID:           model.SchoolID,
		TemplateID:         model.TemplateID,
		Name:               model.Definition.Name,
		Description:        model.Definition.Description,
		ExamType:           string(model.Definition.ExamType),
		GradeLevels:        gradeLevels(model.Definition),
		TargetType:         string(model.TargetType),
		GroupID:            model.GroupID,
		WeekStartDate:      model.WeekStartDate.UTC().Format(DateLayout),
		Status:             string(model.Status),
		CreatedByTeacherID: model.CreatedByTeacherID,
		CompletedAt:        model.CompletedAt,
		CreatedAt:          model.CreatedAt,
		UpdatedAt:          model.UpdatedAt,
		Tasks:              tasks,
	}
}

// NewPlanAssignmentResponse converts an assignment model.
func NewPlanAssignmentResponse(model models.PlanAssignment) PlanAssignmentResponse {
	return PlanAssignmentResponse{
		PlanID:             model.PlanID,
		RecipientStudentID: model.RecipientStudentID,
		GroupID:            model.GroupID,
		AssignedAt:         model.AssignedAt,
	}
}

func newTaskSlotResponse(id uint, slot models.TaskSlot) TaskSlotResponse {
	return TaskSlotResponse{
		ID:            id,
		SubjectName:   slot.SubjectName,
		TopicName:     slot.TopicName,
		DayIndex:      slot.DayIndex,
		RowIndex:      slot.RowIndex,
		QuestionCount: slot.QuestionCount,
	}
}

func gradeLevels(definition models.PlanDefinition) []int {
	if len(definition.GradeLevels) == 0 {
		return []int{}
	}
	return append([]int(nil), definition.GradeLevels...)
}
