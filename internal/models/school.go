package models

import "time"

// DefaultCleanupMonthsToKeep applies when a school never configured retention.
const DefaultCleanupMonthsToKeep = 6

// School owns the retention configuration for its plans.
type School struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Name                string     `gorm:"size:255;not null" json:"name"`
	AutoCleanupEnabled  bool       `gorm:"not null;default:false" json:"auto_cleanup_enabled"`
	CleanupMonthsToKeep int        `gorm:"not null;default:6" json:"cleanup_months_to_keep"`
	LastCleanupAt       *time.Time `json:"last_cleanup_at"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// RetentionPolicy governs automatic deletion of aged plan instances.
type RetentionPolicy struct {
	SchoolID            uint
	AutoCleanupEnabled  bool
	CleanupMonthsToKeep int
	LastCleanupAt       *time.Time
}

// RetentionPolicy extracts the school's retention settings.
func (s School) RetentionPolicy() RetentionPolicy {
	months := s.CleanupMonthsToKeep
	if months < 1 {
		months = DefaultCleanupMonthsToKeep
	}
	return RetentionPolicy{
		SchoolID:            s.ID,
		AutoCleanupEnabled:  s.AutoCleanupEnabled,
		CleanupMonthsToKeep: months,
		LastCleanupAt:       s.LastCleanupAt,
	}
}

// Cutoff returns the creation instant before which plans are purged. The day
// is clamped to the end of the target month, so Mar 31 minus one month is
// Feb 29 (or 28) rather than a normalized Mar 2.
func (p RetentionPolicy) Cutoff(now time.Time) time.Time {
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	target := firstOfMonth.AddDate(0, -p.CleanupMonthsToKeep, 0)
	day := min(now.Day(), daysIn(target.Year(), target.Month(), now.Location()))
	return time.Date(target.Year(), target.Month(), day, now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), now.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// DueAt reports whether the monthly sweep has not yet run in now's calendar month.
func (p RetentionPolicy) DueAt(now time.Time) bool {
	if !p.AutoCleanupEnabled {
		return false
	}
	if p.LastCleanupAt == nil {
		return true
	}
	now = now.UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return p.LastCleanupAt.Before(monthStart)
}
