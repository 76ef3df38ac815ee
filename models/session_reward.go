// models/session_reward.go
package models

import "time"

type RewardKind string

const (
	RewardCoin    RewardKind = "coin"
	RewardLevel   RewardKind = "level"
	RewardItem    RewardKind = "item"
	RewardMonster RewardKind = "monster"
)

// SessionReward is one finalized entry of a session's bundle.
// Payload never changes after creation; claiming only flips Claimed and records the owner.
type SessionReward struct {
	ID        string        `json:"id" gorm:"primaryKey;type:uuid"`
	SessionID string        `json:"session_id" gorm:"type:uuid;not null;uniqueIndex:idx_session_reward_position"`
	PlayerID  string        `json:"player_id" gorm:"not null;index"`
	Position  int           `json:"position" gorm:"not null;uniqueIndex:idx_session_reward_position"`
	Kind      RewardKind    `json:"kind" gorm:"type:varchar(16);not null"`
	Rarity    string        `json:"rarity,omitempty" gorm:"type:varchar(32)"`
	Payload   RewardPayload `json:"payload" gorm:"serializer:json;not null"`
	Claimed   bool          `json:"claimed" gorm:"not null;default:false;index"`
	ClaimedBy *string       `json:"claimed_by,omitempty"`
	ClaimedAt *time.Time    `json:"claimed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// RewardPayload is a tagged union: exactly one member is set, matching Kind.
type RewardPayload struct {
	Coin    *CoinReward    `json:"coin,omitempty"`
	Level   *LevelReward   `json:"level,omitempty"`
	Item    *ItemReward    `json:"item,omitempty"`
	Monster *MonsterReward `json:"monster,omitempty"`
}

// Split is one randomly sized sub-bundle. An empty Target means "the claim destination".
type Split struct {
	Target string `json:"target,omitempty"`
	Amount int    `json:"amount"`
}

type CoinReward struct {
	Amount   int     `json:"amount"`
	Splits   []Split `json:"splits,omitempty"`
	Fallback bool    `json:"fallback,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

type LevelReward struct {
	Levels int     `json:"levels"`
	Splits []Split `json:"splits,omitempty"`
}

type ItemReward struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description,omitempty"`
	Rarity      string `json:"rarity,omitempty"`
}

type MonsterReward struct {
	RarityTier string            `json:"rarity_tier"`
	Species    SpeciesDescriptor `json:"species"`
	Level      int               `json:"level"`
}

// SpeciesDescriptor identifies a rolled creature independently of the catalog row.
type SpeciesDescriptor struct {
	CatalogID string   `json:"catalog_id,omitempty"`
	Franchise string   `json:"franchise"`
	Name      string   `json:"name"`
	Types     []string `json:"types,omitempty"`
	Stage     string   `json:"stage,omitempty"`
	Rank      string   `json:"rank,omitempty"`
	Attribute string   `json:"attribute,omitempty"`
	ImageURL  string   `json:"image_url,omitempty"`
}

// Kind derives the payload's tag.
func (p RewardPayload) Kind() RewardKind {
	switch {
	case p.Coin != nil:
		return RewardCoin
	case p.Level != nil:
		return RewardLevel
	case p.Item != nil:
		return RewardItem
	case p.Monster != nil:
		return RewardMonster
	}
	return ""
}

// IsCurrency reports whether the payload is a coin or level grant.
func (p RewardPayload) IsCurrency() bool {
	k := p.Kind()
	return k == RewardCoin || k == RewardLevel
}
