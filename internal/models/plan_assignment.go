package models

import "time"

// PlanAssignment snapshots one recipient of a plan. Group assignments are
// expanded at assignment time and never follow later membership changes.
type PlanAssignment struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	PlanID              uint      `gorm:"not null;uniqueIndex:idx_plan_assignment_recipient,priority:1" json:"plan_id"`
	RecipientStudentID  uint      `gorm:"not null;index;uniqueIndex:idx_plan_assignment_recipient,priority:2" json:"recipient_student_id"`
	GroupID             *uint     `json:"group_id"`
	AssignedByTeacherID uint      `gorm:"not null" json:"assigned_by_teacher_id"`
	AssignedAt          time.Time `gorm:"not null" json:"assigned_at"`
}
