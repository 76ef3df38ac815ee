// services/owner_store.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"activity-reward-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Owner is the minimal view of a player-owned trainer.
type Owner struct {
	ID       string `json:"id"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

// OwnerStore applies grants to owners. Every method is atomic on its own row;
// callers that need all-or-nothing bind the store to a transaction.
type OwnerStore interface {
	GetOwner(ctx context.Context, ownerID string) (*Owner, error)
	ListOwners(ctx context.Context, playerID string) ([]Owner, error)
	IncrementCoins(ctx context.Context, ownerID string, amount int) error
	IncrementLevel(ctx context.Context, ownerID string, levels int) error
	AppendInventoryItem(ctx context.Context, ownerID string, item models.ItemReward) error
	CreateOwnedMonster(ctx context.Context, ownerID, sourceRewardID string, monster models.MonsterReward) error
}

// GormOwnerStore keeps owners in the trainers tables.
type GormOwnerStore struct {
	DB *gorm.DB
}

func NewGormOwnerStore(db *gorm.DB) *GormOwnerStore {
	return &GormOwnerStore{DB: db}
}

// CreateOwner registers a new trainer for a player.
func (s *GormOwnerStore) CreateOwner(ctx context.Context, playerID, name string) (*models.Trainer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidTrainerName
	}
	t := &models.Trainer{ID: uuid.NewString(), PlayerID: playerID, Name: name, Level: 1}
	if err := s.DB.WithContext(ctx).Create(t).Error; err != nil {
		return nil, fmt.Errorf("failed to create trainer: %w", err)
	}
	return t, nil
}

// Trainers lists a player's trainers with inventory and monsters.
func (s *GormOwnerStore) Trainers(ctx context.Context, playerID string) ([]models.Trainer, error) {
	var trainers []models.Trainer
	err := s.DB.WithContext(ctx).
		Preload("Items").
		Preload("Monsters").
		Where("player_id = ?", playerID).
		Order("created_at ASC").
		Find(&trainers).Error
	return trainers, err
}

func (s *GormOwnerStore) GetOwner(ctx context.Context, ownerID string) (*Owner, error) {
	if _, err := uuid.Parse(ownerID); err != nil {
		return nil, ErrOwnerNotFound
	}
	var t models.Trainer
	err := s.DB.WithContext(ctx).Where("id = ?", ownerID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOwnerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Owner{ID: t.ID, PlayerID: t.PlayerID, Name: t.Name}, nil
}

func (s *GormOwnerStore) ListOwners(ctx context.Context, playerID string) ([]Owner, error) {
	var trainers []models.Trainer
	if err := s.DB.WithContext(ctx).Where("player_id = ?", playerID).Order("created_at ASC").Find(&trainers).Error; err != nil {
		return nil, err
	}
	out := make([]Owner, 0, len(trainers))
	for _, t := range trainers {
		out = append(out, Owner{ID: t.ID, PlayerID: t.PlayerID, Name: t.Name})
	}
	return out, nil
}

func (s *GormOwnerStore) IncrementCoins(ctx context.Context, ownerID string, amount int) error {
	return s.increment(ctx, ownerID, "coins", amount)
}

func (s *GormOwnerStore) IncrementLevel(ctx context.Context, ownerID string, levels int) error {
	return s.increment(ctx, ownerID, "level", levels)
}

func (s *GormOwnerStore) increment(ctx context.Context, ownerID, column string, delta int) error {
	res := s.DB.WithContext(ctx).Model(&models.Trainer{}).
		Where("id = ?", ownerID).
		UpdateColumn(column, gorm.Expr(column+" + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOwnerNotFound
	}
	return nil
}

// AppendInventoryItem stacks the item onto the trainer's line for (category, slug(name)).
func (s *GormOwnerStore) AppendInventoryItem(ctx context.Context, ownerID string, item models.ItemReward) error {
	line := models.TrainerItem{
		TrainerID: ownerID,
		Category:  strings.ToLower(item.Category),
		ItemKey:   slug.Make(item.Name),
		Name:      item.Name,
		Quantity:  item.Quantity,
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "trainer_id"}, {Name: "category"}, {Name: "item_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("trainer_items.quantity + excluded.quantity"),
			"updated_at": time.Now().UTC(),
		}),
	}).Create(&line).Error
}

func (s *GormOwnerStore) CreateOwnedMonster(ctx context.Context, ownerID, sourceRewardID string, monster models.MonsterReward) error {
	owned := models.OwnedMonster{
		ID:         uuid.NewString(),
		TrainerID:  ownerID,
		Name:       monster.Species.Name,
		Franchise:  monster.Species.Franchise,
		RarityTier: monster.RarityTier,
		Level:      monster.Level,
		Species:    monster.Species,
	}
	if sourceRewardID != "" {
		owned.SourceRewardID = &sourceRewardID
	}
	return s.DB.WithContext(ctx).Create(&owned).Error
}
