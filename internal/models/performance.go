package models

import "time"

// StudentPerformanceSnapshot preserves a student's results for a plan that
// retention has purged.
type StudentPerformanceSnapshot struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	SchoolID         uint      `gorm:"not null;index" json:"school_id"`
	PlanID           uint      `gorm:"not null;uniqueIndex:idx_snapshot_plan_student,priority:1" json:"plan_id"`
	StudentID        uint      `gorm:"not null;index;uniqueIndex:idx_snapshot_plan_student,priority:2" json:"student_id"`
	PlanName         string    `gorm:"size:255" json:"plan_name"`
	ExamType         ExamType  `gorm:"size:16" json:"exam_type"`
	WeekStartDate    time.Time `json:"week_start_date"`
	TotalTasks       int       `json:"total_tasks"`
	CompletedTasks   int       `json:"completed_tasks"`
	VerifiedTasks    int       `json:"verified_tasks"`
	CorrectAnswers   int       `json:"correct_answers"`
	WrongAnswers     int       `json:"wrong_answers"`
	BlankAnswers     int       `json:"blank_answers"`
	TimeSpentMinutes int       `json:"time_spent_minutes"`
	CapturedAt       time.Time `json:"captured_at"`
}

// BuildPerformanceSnapshots rolls a plan's tasks up per student.
func BuildPerformanceSnapshots(plan StudyPlan, tasks []StudyTask, capturedAt time.Time) []StudentPerformanceSnapshot {
	byStudent := make(map[uint]*StudentPerformanceSnapshot)
	order := make([]uint, 0)
	for _, task := range tasks {
		snapshot, ok := byStudent[task.StudentID]
		if !ok {
			snapshot = &StudentPerformanceSnapshot{
				SchoolID:      plan.SchoolID,
				PlanID:        plan.ID,
				StudentID:     task.StudentID,
				PlanName:      plan.Definition.Name,
				ExamType:      plan.Definition.ExamType,
				WeekStartDate: plan.WeekStartDate,
				CapturedAt:    capturedAt,
			}
			byStudent[task.StudentID] = snapshot
			order = append(order, task.StudentID)
		}
		snapshot.TotalTasks++
		if task.IsDone() {
			snapshot.CompletedTasks++
		}
		if task.Status == TaskStatusVerified {
			snapshot.VerifiedTasks++
		}
		snapshot.CorrectAnswers += task.CorrectAnswers
		snapshot.WrongAnswers += task.WrongAnswers
		snapshot.BlankAnswers += task.BlankAnswers
		snapshot.TimeSpentMinutes += task.TimeSpentMinutes
	}

	snapshots := make([]StudentPerformanceSnapshot, 0, len(order))
	for _, studentID := range order {
		snapshots = append(snapshots, *byStudent[studentID])
	}
	return snapshots
}
