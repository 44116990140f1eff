package models

import (
	"time"

	"gorm.io/datatypes"
)

// ExamType identifies the national exam a plan prepares for.
type ExamType string

const (
	ExamTypeTYT ExamType = "TYT"
	ExamTypeAYT ExamType = "AYT"
	ExamTypeYDT ExamType = "YDT"
	ExamTypeLGS ExamType = "LGS"
)

// TargetType controls how a plan instance resolves its recipients.
type TargetType string

const (
	TargetIndividual TargetType = "INDIVIDUAL"
	TargetGroup      TargetType = "GROUP"
)

// PlanStatus tracks the lifecycle of a plan instance.
type PlanStatus string

const (
	PlanStatusDraft     PlanStatus = "DRAFT"
	PlanStatusActive    PlanStatus = "ACTIVE"
	PlanStatusAssigned  PlanStatus = "ASSIGNED"
	PlanStatusCompleted PlanStatus = "COMPLETED"
	PlanStatusArchived  PlanStatus = "ARCHIVED"
)

var planTransitions = map[PlanStatus][]PlanStatus{
	PlanStatusDraft:     {PlanStatusActive, PlanStatusAssigned},
	PlanStatusActive:    {PlanStatusCompleted},
	PlanStatusAssigned:  {PlanStatusCompleted},
	PlanStatusCompleted: {PlanStatusArchived},
}

// CanTransitionTo reports whether the plan state machine allows moving to next.
func (s PlanStatus) CanTransitionTo(next PlanStatus) bool {
	for _, candidate := range planTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsOpen reports whether tasks of a plan in this status are still being worked on.
func (s PlanStatus) IsOpen() bool {
	return s == PlanStatusActive || s == PlanStatusAssigned
}

// Valid reports whether s is a known plan status.
func (s PlanStatus) Valid() bool {
	switch s {
	case PlanStatusDraft, PlanStatusActive, PlanStatusAssigned, PlanStatusCompleted, PlanStatusArchived:
		return true
	}
	return false
}

// RetainableStatuses lists the statuses eligible for retention cleanup.
var RetainableStatuses = []PlanStatus{PlanStatusActive, PlanStatusAssigned, PlanStatusCompleted}

// PlanDefinition is the part of a weekly plan shared by templates and instances.
type PlanDefinition struct {
	Name        string                   `gorm:"size:255;not null" json:"name"`
	Description string                   `gorm:"type:text" json:"description"`
	ExamType    ExamType                 `gorm:"size:16;not null;index" json:"exam_type"`
	GradeLevels datatypes.JSONSlice[int] `gorm:"type:json" json:"grade_levels"`
}

// PlanTemplate is a reusable weekly plan. Templates are never purged by retention.
type PlanTemplate struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	SchoolID           uint               `gorm:"not null;index" json:"school_id"`
	Definition         PlanDefinition     `gorm:"embedded" json:"definition"`
	CreatedByTeacherID uint               `gorm:"not null" json:"created_by_teacher_id"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	Tasks              []PlanTemplateTask `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE" json:"tasks"`
}

// PlanTemplateTask is one slot of a template week.
type PlanTemplateTask struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	TemplateID    uint   `gorm:"not null;uniqueIndex:idx_template_task_slot,priority:1" json:"template_id"`
	SubjectName   string `gorm:"size:128;not null" json:"subject_name"`
	TopicName     string `gorm:"size:255" json:"topic_name"`
	DayIndex      int    `gorm:"not null;uniqueIndex:idx_template_task_slot,priority:2" json:"day_index"`
	RowIndex      int    `gorm:"not null;uniqueIndex:idx_template_task_slot,priority:3" json:"row_index"`
	QuestionCount int    `gorm:"not null;default:0" json:"question_count"`
}

// Slot returns the task definition carried by the template row.
func (t PlanTemplateTask) Slot() TaskSlot {
	return TaskSlot{SubjectName: t.SubjectName, TopicName: t.TopicName, DayIndex: t.DayIndex, RowIndex: t.RowIndex, QuestionCount: t.QuestionCount}
}

// StudyPlan is a dated, assignable plan instance.
type StudyPlan struct {
	ID                 uint                 `gorm:"primaryKey" json:"id"`
	SchoolID           uint                 `gorm:"not null;index" json:"school_id"`
	TemplateID         *uint                `gorm:"index" json:"template_id"`
	Definition         PlanDefinition       `gorm:"embedded" json:"definition"`
	TargetType         TargetType           `gorm:"size:16;not null" json:"target_type"`
	GroupID            *uint                `json:"group_id"`
	WeekStartDate      time.Time            `gorm:"not null;index" json:"week_start_date"`
	Status             PlanStatus           `gorm:"size:16;not null;index" json:"status"`
	CreatedByTeacherID uint                 `gorm:"not null;index" json:"created_by_teacher_id"`
	CompletedAt        *time.Time           `json:"completed_at"`
	CreatedAt          time.Time            `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
	Definitions        []PlanTaskDefinition `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"definitions"`
}

// WeekEnd returns the instant the plan's week elapses.
func (p StudyPlan) WeekEnd() time.Time {
	return p.WeekStartDate.AddDate(0, 0, 7)
}

// PlanTaskDefinition is a task slot owned by a plan instance. Study tasks are
// materialised from definitions once per recipient.
type PlanTaskDefinition struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	PlanID        uint   `gorm:"not null;uniqueIndex:idx_plan_definition_slot,priority:1" json:"plan_id"`
	SubjectName   string `gorm:"size:128;not null" json:"subject_name"`
	TopicName     string `gorm:"size:255" json:"topic_name"`
	DayIndex      int    `gorm:"not null;uniqueIndex:idx_plan_definition_slot,priority:2" json:"day_index"`
	RowIndex      int    `gorm:"not null;uniqueIndex:idx_plan_definition_slot,priority:3" json:"row_index"`
	QuestionCount int    `gorm:"not null;default:0" json:"question_count"`
}

// Slot returns the task definition carried by the row.
func (d PlanTaskDefinition) Slot() TaskSlot {
	return TaskSlot{SubjectName: d.SubjectName, TopicName: d.TopicName, DayIndex: d.DayIndex, RowIndex: d.RowIndex, QuestionCount: d.QuestionCount}
}

// TaskSlot identifies one unit of work inside a plan week.
type TaskSlot struct {
	SubjectName   string
	TopicName     string
	DayIndex      int
	RowIndex      int
	QuestionCount int
}

// Definition converts the slot into an instance definition row.
func (s TaskSlot) Definition(planID uint) PlanTaskDefinition {
	return PlanTaskDefinition{PlanID: planID, SubjectName: s.SubjectName, TopicName: s.TopicName, DayIndex: s.DayIndex, RowIndex: s.RowIndex, QuestionCount: s.QuestionCount}
}

// WeekStart normalises t to midnight UTC of the Monday of its ISO week.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// IsWeekAligned reports whether t falls on a Monday.
func IsWeekAligned(t time.Time) bool {
	return t.Weekday() == time.Monday
}
