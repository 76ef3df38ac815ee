// models/activity_session.go
package models

import (
	"time"
)

type SessionState string

const (
	SessionActive    SessionState = "active"
	SessionCompleted SessionState = "completed"
	SessionAbandoned SessionState = "abandoned"
)

// ActivitySession is one time-boxed run of an activity at a location.
// The partial unique index keeps at most one active session per (player, location).
type ActivitySession struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	PlayerID string `json:"player_id" gorm:"not null;index;uniqueIndex:idx_active_session,where:state = 'active'"`
	Location string `json:"location" gorm:"not null;uniqueIndex:idx_active_session,where:state = 'active'"`
	Activity string `json:"activity" gorm:"not null"`
	RunID    string `json:"run_id" gorm:"type:uuid;index"`

	PromptID         string `json:"prompt_id"`
	PromptText       string `json:"prompt_text"`
	PromptDifficulty string `json:"prompt_difficulty"`

	DurationMinutes int          `json:"duration_minutes" gorm:"not null"`
	StartedAt       time.Time    `json:"started_at" gorm:"not null"`
	ExpectedEndAt   time.Time    `json:"expected_end_at" gorm:"not null;index"`
	State           SessionState `json:"state" gorm:"type:varchar(16);not null;index"`

	// Snapshot fed to the reward generator, set once by complete.
	Outcome         *SessionOutcome `json:"outcome,omitempty" gorm:"serializer:json"`
	BundleFinalized bool            `json:"bundle_finalized" gorm:"not null;default:false"`
	FeedSeq         int64           `json:"feed_seq" gorm:"not null;default:0;index"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`

	Rewards []SessionReward `json:"rewards,omitempty" gorm:"foreignKey:SessionID"`

	Timestamps
}

// SessionOutcome is the input to reward generation. CompletedSessions and
// TotalFocusMinutes are run totals and drive the multipliers; BundleSessions
// counts only the sessions this bundle pays for.
type SessionOutcome struct {
	ProductivityScore int    `json:"productivity_score"`
	CompletedSessions int    `json:"completed_sessions"`
	BundleSessions    int    `json:"bundle_sessions"`
	TotalFocusMinutes int    `json:"total_focus_minutes"`
	Difficulty        string `json:"difficulty,omitempty"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
