// models/activity_run.go
package models

type RunStatus string

const (
	RunOpen      RunStatus = "open"
	RunClaimed   RunStatus = "claimed"
	RunCancelled RunStatus = "cancelled"
)

// ActivityRun aggregates consecutive sessions at one location until claimed or cancelled.
type ActivityRun struct {
	ID                string    `json:"id" gorm:"primaryKey;type:uuid"`
	PlayerID          string    `json:"player_id" gorm:"not null;index:idx_run_player_location"`
	Location          string    `json:"location" gorm:"not null;index:idx_run_player_location"`
	Status            RunStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	CompletedSessions int       `json:"completed_sessions" gorm:"not null;default:0"`
	TotalFocusMinutes int       `json:"total_focus_minutes" gorm:"not null;default:0"`
	AssessmentSum     int       `json:"assessment_sum" gorm:"not null;default:0"`
	AssessmentCount   int       `json:"assessment_count" gorm:"not null;default:0"`
	// BundledSessions is how many of CompletedSessions earlier bundles already paid for.
	BundledSessions   int       `json:"bundled_sessions" gorm:"not null;default:0"`

	Timestamps
}

// AverageAssessment is the rounded mean of reported block scores, 0 when none.
func (r ActivityRun) AverageAssessment() int {
	if r.AssessmentCount == 0 {
		return 0
	}
	return (r.AssessmentSum + r.AssessmentCount/2) / r.AssessmentCount
}

// TakeUnbundled advances the bundle cursor and returns the sessions it moved past.
func (r *ActivityRun) TakeUnbundled() int {
	n := max(0, r.CompletedSessions-r.BundledSessions)
	r.BundledSessions = r.CompletedSessions
	return n
}
