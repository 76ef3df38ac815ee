// services/catalog.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"activity-reward-system/models"

	"gorm.io/gorm"
)

// CreatureFilter narrows a random creature lookup to one franchise.
type CreatureFilter struct {
	Franchise string
	Types     []string
	Stages    []string
	Ranks     []string
	Rarities  []string
}

// CreatureCatalog returns nil, nil when nothing matches.
type CreatureCatalog interface {
	FindRandom(ctx context.Context, filter CreatureFilter) (*models.SpeciesDescriptor, error)
}

type CatalogEntry struct {
	Name   string `json:"name"`
	Effect string `json:"effect,omitempty"`
	Icon   string `json:"icon,omitempty"`
}

type ItemCatalog interface {
	ListByCategory(ctx context.Context, category string) ([]CatalogEntry, error)
}

// GormCreatureCatalog reads the local species mirror.
type GormCreatureCatalog struct {
	DB *gorm.DB
}

func NewGormCreatureCatalog(db *gorm.DB) *GormCreatureCatalog {
	return &GormCreatureCatalog{DB: db}
}

func (c *GormCreatureCatalog) FindRandom(ctx context.Context, f CreatureFilter) (*models.SpeciesDescriptor, error) {
	q := c.DB.WithContext(ctx).Model(&models.Species{}).Where("franchise = ?", f.Franchise)
	if len(f.Stages) > 0 {
		q = q.Where("stage IN ?", f.Stages)
	}
	if len(f.Ranks) > 0 {
		q = q.Where("rank IN ?", f.Ranks)
	}
	if len(f.Rarities) > 0 {
		q = q.Where("rarity IN ?", f.Rarities)
	}
	if len(f.Types) > 0 {
		conds := make([]string, 0, len(f.Types))
		args := make([]any, 0, len(f.Types))
		for _, t := range f.Types {
			conds = append(conds, "type_tags LIKE ?")
			args = append(args, "%|"+t+"|%")
		}
		q = q.Where("("+strings.Join(conds, " OR ")+")", args...)
	}

	var s models.Species
	err := q.Order("RANDOM()").Limit(1).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyCatalogErr(ctx, err)
	}
	d := DescriptorFromSpecies(s)
	return &d, nil
}

func DescriptorFromSpecies(s models.Species) models.SpeciesDescriptor {
	return models.SpeciesDescriptor{
		CatalogID: s.ExternalID,
		Franchise: s.Franchise,
		Name:      s.Name,
		Types:     s.Types,
		Stage:     s.Stage,
		Rank:      s.Rank,
		Attribute: s.Attribute,
		ImageURL:  s.ImageURL,
	}
}

// TypeTags flattens types into the form FindRandom matches with LIKE.
func TypeTags(types []string) string {
	if len(types) == 0 {
		return ""
	}
	return "|" + strings.Join(types, "|") + "|"
}

// GormItemCatalog reads the local item mirror.
type GormItemCatalog struct {
	DB *gorm.DB
}

func NewGormItemCatalog(db *gorm.DB) *GormItemCatalog {
	return &GormItemCatalog{DB: db}
}

func (c *GormItemCatalog) ListByCategory(ctx context.Context, category string) ([]CatalogEntry, error) {
	var items []models.CatalogItem
	err := c.DB.WithContext(ctx).
		Where("LOWER(category) = ?", strings.ToLower(category)).
		Order("name ASC").
		Find(&items).Error
	if err != nil {
		return nil, classifyCatalogErr(ctx, err)
	}
	out := make([]CatalogEntry, 0, len(items))
	for _, it := range items {
		out = append(out, CatalogEntry{Name: it.Name, Effect: it.Effect, Icon: it.Icon})
	}
	return out, nil
}

func classifyCatalogErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrCatalogTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
}
