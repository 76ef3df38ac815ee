// models/catalog.go
package models

import "time"

// Species is the local mirror of the remote creature catalogs, one row per creature.
type Species struct {
	ID         string   `json:"id" gorm:"primaryKey;type:uuid"`
	ExternalID string   `json:"external_id" gorm:"uniqueIndex;not null"`
	Franchise  string   `json:"franchise" gorm:"not null;index"`
	Name       string   `json:"name" gorm:"not null"`
	Types      []string `json:"types" gorm:"serializer:json"`
	// Flattened "|Grass|Poison|" form so type filters stay portable across postgres and sqlite.
	TypeTags  string    `json:"-" gorm:"index"`
	Stage     string    `json:"stage,omitempty" gorm:"index"`
	Rank      string    `json:"rank,omitempty" gorm:"index"`
	Rarity    string    `json:"rarity,omitempty" gorm:"index"`
	Attribute string    `json:"attribute,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CatalogItem mirrors the remote item catalog.
type CatalogItem struct {
	ID         string    `json:"id" gorm:"primaryKey;type:uuid"`
	ExternalID string    `json:"external_id" gorm:"uniqueIndex;not null"`
	Name       string    `json:"name" gorm:"not null"`
	Category   string    `json:"category" gorm:"not null;index"`
	Effect     string    `json:"effect,omitempty"`
	Icon       string    `json:"icon,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
