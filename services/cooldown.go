// services/cooldown.go
package services

import (
	"context"
	"errors"
	"time"

	"activity-reward-system/config"
	"activity-reward-system/models"

	"gorm.io/gorm"
)

// CooldownStatus is the gate's answer for one (player, location).
type CooldownStatus struct {
	Active               bool          `json:"active"`
	TimeRemaining        time.Duration `json:"-"`
	TimeRemainingSeconds int64         `json:"time_remaining_seconds"`
	AvailableAt          *time.Time    `json:"available_at,omitempty"`
}

// CooldownGate blocks new sessions at a location until its interval has passed.
type CooldownGate struct {
	DB     *gorm.DB
	Tables *config.RewardTables
	Now    func() time.Time
}

func NewCooldownGate(db *gorm.DB, tables *config.RewardTables) *CooldownGate {
	return &CooldownGate{DB: db, Tables: tables, Now: time.Now}
}

// CanStart reports whether the player may start a session at location now.
func (g *CooldownGate) CanStart(ctx context.Context, playerID, location string) (CooldownStatus, error) {
	if _, ok := g.Tables.Locations[location]; !ok {
		return CooldownStatus{}, ErrInvalidLocationOrActivity
	}

	var slot models.LocationSlot
	err := g.DB.WithContext(ctx).
		Where("player_id = ? AND location = ?", playerID, location).
		First(&slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CooldownStatus{}, nil
	}
	if err != nil {
		return CooldownStatus{}, err
	}
	return cooldownFor(&slot, g.Now().UTC()), nil
}

func cooldownFor(slot *models.LocationSlot, now time.Time) CooldownStatus {
	if slot == nil || slot.CooldownUntil == nil || !now.Before(*slot.CooldownUntil) {
		return CooldownStatus{}
	}
	until := slot.CooldownUntil.UTC()
	remaining := until.Sub(now)
	return CooldownStatus{
		Active:               true,
		TimeRemaining:        remaining,
		TimeRemainingSeconds: int64(remaining.Round(time.Second) / time.Second),
		AvailableAt:          &until,
	}
}
