package dto

import (
	"time"

	"github.com/noah-isme/gema-studyplan-api/internal/models"
)

// TaskCompleteRequest carries the metrics a student reports on completion.
type TaskCompleteRequest struct {
	CorrectAnswers   int    `json:"correct_answers" validate:"min=0"`
	WrongAnswers     int    `json:"wrong_answers" validate:"min=0"`
	BlankAnswers     int    `json:"blank_answers" validate:"min=0"`
	TimeSpentMinutes int    `json:"time_spent_minutes" validate:"min=0"`
	Notes            string `json:"notes" validate:"max=2000"`
}

// StudyTaskResponse serializes a study task.
type StudyTaskResponse struct {
	ID                   uint       `json:"id"`
	PlanID               uint       `json:"plan_id"`
	StudentID            uint       `json:"student_id"`
	SubjectName          string     `json:"subject_name"`
	TopicName            string     `json:"topic_name"`
	DayIndex             int        `json:"day_index"`
	RowIndex             int        `json:"row_index"`
	QuestionCount        int        `json:"question_count"`
	Status               string     `json:"status"`
	CorrectAnswers       int        `json:"correct_answers"`
	WrongAnswers         int        `json:"wrong_answers"`
	BlankAnswers         int        `json:"blank_answers"`
	TimeSpentMinutes     int        `json:"time_spent_minutes"`
	Notes                string     `json:"notes"`
	CompletedByStudentID *uint      `json:"completed_by_student_id"`
	VerifiedByTeacherID  *uint      `json:"verified_by_teacher_id"`
	CompletedAt          *time.Time `json:"completed_at"`
	VerifiedAt           *time.Time `json:"verified_at"`
}

// NewStudyTaskResponse converts a task model.
func NewStudyTaskResponse(model models.StudyTask) StudyTaskResponse {
	return StudyTaskResponse{
		ID:                   model.ID,
		PlanID:               model.PlanID,
		StudentID:            model.StudentID,
		SubjectName:          model.SubjectName,
		TopicName:            model.TopicName,
		DayIndex:             model.DayIndex,
		RowIndex:             model.RowIndex,
		QuestionCount:        model.QuestionCount,
		Status:               string(model.Status),
		CorrectAnswers:       model.CorrectAnswers,
		WrongAnswers:         model.WrongAnswers,
		BlankAnswers:         model.BlankAnswers,
		TimeSpentMinutes:     model.TimeSpentMinutes,
		Notes:                model.Notes,
		CompletedByStudentID: model.CompletedByStudentID,
		VerifiedByTeacherID:  model.VerifiedByTeacherID,
		CompletedAt:          model.CompletedAt,
		VerifiedAt:           model.VerifiedAt,
	}
}

// NewStudyTaskResponseSlice converts task models.
func NewStudyTaskResponseSlice(tasks []models.StudyTask) []StudyTaskResponse {
	responses := make([]StudyTaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, NewStudyTaskResponse(task))
	}
	return responses
}
