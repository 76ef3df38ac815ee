// models/player_feed.go
package models

import "time"

// PlayerFeed hands out the per-player finalization sequence for the reward stream.
// Its row is locked while a bundle finalizes, so sequence order is commit order.
type PlayerFeed struct {
	PlayerID  string    `json:"player_id" gorm:"primaryKey"`
	LastSeq   int64     `json:"last_seq" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
