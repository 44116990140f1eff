package dto

import (
	"time"

	"github.com/noah-isme/gema-studyplan-api/internal/models"
)

// RetentionPolicyUpdateRequest changes a school's retention settings.
type RetentionPolicyUpdateRequest struct {
	AutoCleanupEnabled  *bool `json:"auto_cleanup_enabled"`
	CleanupMonthsToKeep *int  `json:"cleanup_months_to_keep" validate:"omitempty,min=1,max=120"`
}

// RetentionPolicyResponse serializes a school's retention settings.
type RetentionPolicyResponse struct {
	SchoolID            uint       `json:"school_id"`
	AutoCleanupEnabled  bool       `json:"auto_cleanup_enabled"`
	CleanupMonthsToKeep int        `json:"cleanup_months_to_keep"`
	LastCleanupAt       *time.Time `json:"last_cleanup_at"`
}

// CleanupCandidate is a plan selected for purge.
type CleanupCandidate struct {
	PlanID        uint      `json:"plan_id"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	WeekStartDate string    `json:"week_start_date"`
	CreatedAt     time.Time `json:"created_at"`
}

// CleanupFailure records a plan the sweep could not purge.
type CleanupFailure struct {
	PlanID uint   `json:"plan_id"`
	Error  string `json:"error"`
}

// CleanupReport describes a retention preview or run.
type CleanupReport struct {
	SchoolID   uint               `json:"school_id"`
	Enabled    bool               `json:"enabled"`
	DryRun     bool               `json:"dry_run"`
	Cutoff     time.Time          `json:"cutoff"`
	RanAt      time.Time          `json:"ran_at"`
	Candidates []CleanupCandidate `json:"candidates"`
	Purged     []uint             `json:"purged"`
	Failed     []CleanupFailure   `json:"failed"`
}

// NewRetentionPolicyResponse converts a retention policy.
func NewRetentionPolicyResponse(policy models.RetentionPolicy) RetentionPolicyResponse {
	return RetentionPolicyResponse{
		SchoolID:            policy.SchoolID,
		AutoCleanupEnabled:  policy.AutoCleanupEnabled,
		CleanupMonthsToKeep: policy.CleanupMonthsToKeep,
		LastCleanupAt:       policy.LastCleanupAt,
	}
}

// NewCleanupCandidate converts a plan selected for purge.
func NewCleanupCandidate(plan models.StudyPlan) CleanupCandidate {
	return CleanupCandidate{
		PlanID:        plan.ID,
		Name:          plan.Definition.Name,
		Status:        string(plan.Status),
		WeekStartDate: plan.WeekStartDate.UTC().Format(DateLayout),
		CreatedAt:     plan.CreatedAt,
	}
}
