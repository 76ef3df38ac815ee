// services/claim_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"activity-reward-system/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var titleCaser = cases.Title(language.English)

// Confirmation is the human-readable receipt for one applied reward.
type Confirmation struct {
	RewardID string            `json:"reward_id"`
	Kind     models.RewardKind `json:"kind"`
	Message  string            `json:"message"`
}

type ClaimResult struct {
	SessionID          string         `json:"session_id"`
	DestinationOwnerID string         `json:"destination_owner_id"`
	Confirmations      []Confirmation `json:"confirmations"`
}

// ClaimService applies a finalized bundle to player-owned trainers exactly once.
type ClaimService struct {
	DB  *gorm.DB
	Now func() time.Time

	// ownerStoreFor binds the owner store to the claim transaction.
	ownerStoreFor func(tx *gorm.DB) OwnerStore
}

func NewClaimService(db *gorm.DB) *ClaimService {
	return &ClaimService{
		DB:  db,
		Now: time.Now,
		ownerStoreFor: func(tx *gorm.DB) OwnerStore {
			return NewGormOwnerStore(tx)
		},
	}
}

// Claim grants every reward of the session's bundle in one transaction.
// Coin and level splits go to their recorded trainer when it still belongs to the
// player, otherwise to the destination.
func (s *ClaimService) Claim(ctx context.Context, playerID, sessionID, destinationOwnerID string) (*ClaimResult, error) {
	ctx, span := tracer.Start(ctx, "ClaimService.Claim", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("owner.id", destinationOwnerID),
	))
	defer span.End()

	var result *ClaimResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.claimTx(ctx, tx, playerID, sessionID, destinationOwnerID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorKind(err))
		if !errors.Is(err, ErrAlreadyClaimed) {
			log.Printf("❌ [CLAIM] session=%s owner=%s: %v", sessionID, destinationOwnerID, err)
		}
		return nil, err
	}

	log.Printf("🎁 [CLAIM] session=%s claimed by owner=%s (%d rewards)", sessionID, destinationOwnerID, len(result.Confirmations))
	return result, nil
}

func (s *ClaimService) claimTx(ctx context.Context, tx *gorm.DB, playerID, sessionID, destinationOwnerID string) (*ClaimResult, error) {
	var session models.ActivitySession
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND player_id = ?", sessionID, playerID).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if session.State != models.SessionCompleted || !session.BundleFinalized {
		return nil, ErrSessionNotCompleted
	}

	var rewards []models.SessionReward
	if err := tx.Where("session_id = ?", session.ID).Order("position ASC").Find(&rewards).Error; err != nil {
		return nil, err
	}
	for _, r := range rewards {
		if r.Claimed {
			return nil, ErrAlreadyClaimed
		}
	}

	store := s.ownerStoreFor(tx)
	dest, err := store.GetOwner(ctx, destinationOwnerID)
	if err != nil {
		return nil, err
	}
	if dest.PlayerID != playerID {
		return nil, ErrOwnerNotFound
	}
	owners, err := store.ListOwners(ctx, playerID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Owner, len(owners))
	for _, o := range owners {
		byID[o.ID] = o
	}
	byID[dest.ID] = *dest

	result := &ClaimResult{SessionID: session.ID, DestinationOwnerID: dest.ID}
	for _, r := range rewards {
		msg, err := s.apply(ctx, store, r, *dest, byID)
		if err != nil {
			return nil, fmt.Errorf("apply reward %d (%s): %w", r.Position, r.Kind, err)
		}
		result.Confirmations = append(result.Confirmations, Confirmation{RewardID: r.ID, Kind: r.Kind, Message: msg})
	}

	now := s.Now().UTC()
	res := tx.Model(&models.SessionReward{}).
		Where("session_id = ? AND claimed = ?", session.ID, false).
		Updates(map[string]interface{}{"claimed": true, "claimed_by": dest.ID, "claimed_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != int64(len(rewards)) {
		return nil, ErrAlreadyClaimed
	}

	if err := tx.Model(&models.ActivityRun{}).
		Where("id = ? AND status = ?", session.RunID, models.RunOpen).
		Update("status", models.RunClaimed).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ClaimService) apply(ctx context.Context, store OwnerStore, r models.SessionReward, dest Owner, owners map[string]Owner) (string, error) {
	p := r.Payload
	switch {
	case p.Coin != nil:
		grants, err := applySplits(p.Coin.Amount, p.Coin.Splits, dest, owners, func(id string, n int) error {
			return store.IncrementCoins(ctx, id, n)
		})
		if err != nil {
			return "", err
		}
		label := "coins"
		if p.Coin.Fallback {
			label = "bonus coins"
		}
		return fmt.Sprintf("+%d %s (%s)", p.Coin.Amount, label, grants), nil

	case p.Level != nil:
		grants, err := applySplits(p.Level.Levels, p.Level.Splits, dest, owners, func(id string, n int) error {
			return store.IncrementLevel(ctx, id, n)
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("+%d levels (%s)", p.Level.Levels, grants), nil

	case p.Item != nil:
		if err := store.AppendInventoryItem(ctx, dest.ID, *p.Item); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s received %d× %s (%s)", dest.Name, p.Item.Quantity, p.Item.Name, titleCaser.String(p.Item.Category)), nil

	case p.Monster != nil:
		if err := store.CreateOwnedMonster(ctx, dest.ID, r.ID, *p.Monster); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s caught a %s %s (Lv. %d)",
			dest.Name, titleCaser.String(p.Monster.RarityTier), p.Monster.Species.Name, p.Monster.Level), nil
	}
	return "", fmt.Errorf("reward %s has an empty payload", r.ID)
}

// applySplits grants each split and returns a summary like "Ash +20, Misty +15".
func applySplits(total int, splits []models.Split, dest Owner, owners map[string]Owner, grant func(ownerID string, n int) error) (string, error) {
	if len(splits) == 0 {
		if total <= 0 {
			return dest.Name + " +0", nil
		}
		splits = []models.Split{{Target: dest.ID, Amount: total}}
	}

	perOwner := make(map[string]int)
	var order []string
	for _, sp := range splits {
		if sp.Amount <= 0 {
			continue
		}
		target := sp.Target
		if _, ok := owners[target]; !ok {
			target = dest.ID
		}
		if err := grant(target, sp.Amount); err != nil {
			return "", err
		}
		if _, seen := perOwner[target]; !seen {
			order = append(order, target)
		}
		perOwner[target] += sp.Amount
	}

	parts := make([]string, 0, len(order))
	for _, id := range order {
		parts = append(parts, fmt.Sprintf("%s +%d", owners[id].Name, perOwner[id]))
	}
	if len(parts) == 0 {
		return dest.Name + " +0", nil
	}
	return strings.Join(parts, ", "), nil
}
