package models

import "time"

// TaskStatus tracks the completion/verification ratchet of a study task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusVerified  TaskStatus = "VERIFIED"
)

// Next returns the only status a task may move to from s.
func (s TaskStatus) Next() (TaskStatus, bool) {
	switch s {
	case TaskStatusPending:
		return TaskStatusCompleted, true
	case TaskStatusCompleted:
		return TaskStatusVerified, true
	default:
		return "", false
	}
}

// CanTransitionTo reports whether next directly follows s.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	candidate, ok := s.Next()
	return ok && candidate == next
}

// StudyTask is a per-student copy of a plan task definition.
type StudyTask struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	PlanID               uint       `gorm:"not null;index;uniqueIndex:idx_study_task_slot,priority:1" json:"plan_id"`
	DefinitionID         uint       `gorm:"not null;index" json:"definition_id"`
	StudentID            uint       `gorm:"not null;index;uniqueIndex:idx_study_task_slot,priority:2" json:"student_id"`
	SubjectName          string     `gorm:"size:128;not null" json:"subject_name"`
	TopicName            string     `gorm:"size:255" json:"topic_name"`
	DayIndex             int        `gorm:"not null;uniqueIndex:idx_study_task_slot,priority:3" json:"day_index"`
	RowIndex             int        `gorm:"not null;uniqueIndex:idx_study_task_slot,priority:4" json:"row_index"`
	QuestionCount        int        `gorm:"not null;default:0" json:"question_count"`
	Status               TaskStatus `gorm:"size:16;not null;index" json:"status"`
	CorrectAnswers       int        `gorm:"not null;default:0" json:"correct_answers"`
	WrongAnswers         int        `gorm:"not null;default:0" json:"wrong_answers"`
	BlankAnswers         int        `gorm:"not null;default:0" json:"blank_answers"`
	TimeSpentMinutes     int        `gorm:"not null;default:0" json:"time_spent_minutes"`
	Notes                string     `gorm:"type:text" json:"notes"`
	CompletedByStudentID *uint      `json:"completed_by_student_id"`
	VerifiedByTeacherID  *uint      `json:"verified_by_teacher_id"`
	CompletedAt          *time.Time `json:"completed_at"`
	VerifiedAt           *time.Time `json:"verified_at"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// NewStudyTask materialises a pending task for studentID from a definition.
func NewStudyTask(definition PlanTaskDefinition, studentID uint) StudyTask {
	return StudyTask{
		PlanID:        definition.PlanID,
		DefinitionID:  definition.ID,
		StudentID:     studentID,
		SubjectName:   definition.SubjectName,
		TopicName:     definition.TopicName,
		DayIndex:      definition.DayIndex,
		RowIndex:      definition.RowIndex,
		QuestionCount: definition.QuestionCount,
		Status:        TaskStatusPending,
	}
}

// AnsweredCount sums the recorded answers.
func (t StudyTask) AnsweredCount() int {
	return t.CorrectAnswers + t.WrongAnswers + t.BlankAnswers
}

// IsDone reports whether the student has finished the task.
func (t StudyTask) IsDone() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusVerified
}
