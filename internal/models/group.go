package models

import "time"

// Group member roles.
const (
	GroupRoleStudent = "student"
	GroupRoleMentor  = "mentor"
)

// StudyGroup is a class or study circle whose members receive group plans.
type StudyGroup struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	SchoolID  uint          `gorm:"not null;index" json:"school_id"`
	Name      string        `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Members   []GroupMember `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"members"`
}

// GroupMember links a user to a group with a role.
type GroupMember struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	GroupID  uint      `gorm:"not null;uniqueIndex:idx_group_member,priority:1" json:"group_id"`
	UserID   uint      `gorm:"not null;index;uniqueIndex:idx_group_member,priority:2" json:"user_id"`
	Role     string    `gorm:"size:16;not null" json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// MentorStudent is a direct mentoring relationship outside of groups.
type MentorStudent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MentorID  uint      `gorm:"not null;uniqueIndex:idx_mentor_student,priority:1" json:"mentor_id"`
	StudentID uint      `gorm:"not null;index;uniqueIndex:idx_mentor_student,priority:2" json:"student_id"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
