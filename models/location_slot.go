// models/location_slot.go
package models

import "time"

// LocationSlot is the per-(player, location) row that serializes starts.
// It carries the in-progress marker and the cooldown deadline.
type LocationSlot struct {
	PlayerID        string     `json:"player_id" gorm:"primaryKey"`
	Location        string     `json:"location" gorm:"primaryKey"`
	ActiveSessionID *string    `json:"active_session_id,omitempty" gorm:"type:uuid"`
	CooldownUntil   *time.Time `json:"cooldown_until,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}
