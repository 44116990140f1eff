package dto

import (
	"time"

	"github.com/noah-isme/gema-studyplan-api/internal/models"
)

// PlanStats summarises task progress for a plan, optionally scoped to one student.
type PlanStats struct {
	PlanID             uint `json:"plan_id"`
	Completed          int  `json:"completed"`
	Verified           int  `json:"verified"`
	Total              int  `json:"total"`
	Percentage         int  `json:"percentage"`
	VerifiedPercentage int  `json:"verified_percentage"`
}

// StudentStatsRequest filters the per-student rollup.
type StudentStatsRequest struct {
	Statuses []string `validate:"omitempty,dive,oneof=DRAFT ACTIVE ASSIGNED COMPLETED ARCHIVED"`
	ExamType string   `validate:"omitempty,oneof=TYT AYT YDT LGS"`
	From     string   `validate:"omitempty,datetime=2006-01-02"`
	To       string   `validate:"omitempty,datetime=2006-01-02"`
}

// StudentStatsResponse lists a student's per-plan progress.
type StudentStatsResponse struct {
	StudentID uint        `json:"student_id"`
	Plans     []PlanStats `json:"plans"`
	CacheHit  bool        `json:"cache_hit"`
}

// PerformanceSnapshotResponse serializes a preserved per-plan result.
type PerformanceSnapshotResponse struct {
	PlanID           uint      `json:"plan_id"`
	PlanName         string    `json:"plan_name"`
	ExamType         string    `json:"exam_type"`
	WeekStartDate    string    `json:"week_start_date"`
	TotalTasks       int       `json:"total_tasks"`
	CompletedTasks   int       `json:"completed_tasks"`
	VerifiedTasks    int       `json:"verified_tasks"`
	CorrectAnswers   int       `json:"correct_answers"`
	WrongAnswers     int       `json:"wrong_answers"`
	BlankAnswers     int       `json:"blank_answers"`
	TimeSpentMinutes int       `json:"time_spent_minutes"`
	CapturedAt       time.Time `json:"captured_at"`
}

// NewPerformanceSnapshotResponse converts a snapshot model.
func NewPerformanceSnapshotResponse(model models.StudentPerformanceSnapshot) PerformanceSnapshotResponse {
	return PerformanceSnapshotResponse{
		PlanID:           model.PlanID,
		PlanName:         model.PlanName,
		ExamType:         string(model.ExamType),
		WeekStartDate:    model.WeekStartDate.UTC().Format(DateLayout),
		TotalTasks:       model.TotalTasks,
		CompletedTasks:   model.CompletedTasks,
		VerifiedTasks:    model.VerifiedTasks,
		CorrectAnswers:   model.CorrectAnswers,
		WrongAnswers:     model.WrongAnswers,
		BlankAnswers:     model.BlankAnswers,
		TimeSpentMinutes: model.TimeSpentMinutes,
		CapturedAt:       model.CapturedAt,
	}
}
