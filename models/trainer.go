// models/trainer.go
package models

import (
	"time"
)

// Trainer is the player-owned entity rewards are applied to.
type Trainer struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	PlayerID string `json:"player_id" gorm:"not null;index"`
	Name     string `json:"name" gorm:"not null"`
	Coins    int64  `json:"coins" gorm:"not null;default:0"`
	Level    int    `json:"level" gorm:"not null;default:1"`

	Items    []TrainerItem  `json:"items,omitempty" gorm:"foreignKey:TrainerID"`
	Monsters []OwnedMonster `json:"monsters,omitempty" gorm:"foreignKey:TrainerID"`

	Timestamps
}

// TrainerItem is one stacked inventory line keyed by category and item slug.
type TrainerItem struct {
	TrainerID string    `json:"trainer_id" gorm:"primaryKey;type:uuid"`
	Category  string    `json:"category" gorm:"primaryKey"`
	ItemKey   string    `json:"item_key" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Quantity  int       `json:"quantity" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// OwnedMonster is a creature granted to a trainer.
type OwnedMonster struct {
	ID             string            `json:"id" gorm:"primaryKey;type:uuid"`
	TrainerID      string            `json:"trainer_id" gorm:"type:uuid;not null;index"`
	SourceRewardID *string           `json:"source_reward_id,omitempty" gorm:"type:uuid;uniqueIndex"`
	Name           string            `json:"name" gorm:"not null"`
	Franchise      string            `json:"franchise" gorm:"not null"`
	RarityTier     string            `json:"rarity_tier"`
	Level          int               `json:"level" gorm:"not null"`
	Species        SpeciesDescriptor `json:"species" gorm:"serializer:json"`
	CreatedAt      time.Time         `json:"created_at" gorm:"autoCreateTime"`
}
