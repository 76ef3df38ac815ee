// services/reward_service.go
package services

import (
	"context"

	"activity-reward-system/models"

	"gorm.io/gorm"
)

// RewardService is the player's reward feed over finalized bundles.
type RewardService struct {
	DB *gorm.DB
}

func NewRewardService(db *gorm.DB) *RewardService {
	return &RewardService{DB: db}
}

type RewardFilter struct {
	Claimed *bool
	Kind    models.RewardKind
	Limit   int
}

type RewardCounts struct {
	Total     int64 `json:"total_count"`
	Unclaimed int64 `json:"unclaimed_count"`
}

func (s *RewardService) finalized(ctx context.Context, playerID string) *gorm.DB {
	return s.DB.WithContext(ctx).Model(&models.SessionReward{}).
		Joins("JOIN activity_sessions ON activity_sessions.id = session_rewards.session_id").
		Where("session_rewards.player_id = ? AND activity_sessions.bundle_finalized = ?", playerID, true)
}

// ListRewards returns the player's rewards, newest first.
func (s *RewardService) ListRewards(ctx context.Context, playerID string, f RewardFilter) ([]models.SessionReward, error) {
	q := s.finalized(ctx, playerID)
	if f.Claimed != nil {
		q = q.Where("session_rewards.claimed = ?", *f.Claimed)
	}
	if f.Kind != "" {
		q = q.Where("session_rewards.kind = ?", f.Kind)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rewards []models.SessionReward
	err := q.Order("session_rewards.created_at DESC").Order("session_rewards.position ASC").Find(&rewards).Error
	return rewards, err
}

// Counts returns total and unclaimed reward counts. Poll-friendly.
func (s *RewardService) Counts(ctx context.Context, playerID string) (RewardCounts, error) {
	var c RewardCounts
	if err := s.finalized(ctx, playerID).Count(&c.Total).Error; err != nil {
		return c, err
	}
	err := s.finalized(ctx, playerID).Where("session_rewards.claimed = ?", false).Count(&c.Unclaimed).Error
	return c, err
}

// FeedHead is the player's newest finalization sequence, zero when none.
// Every bundle at or below it has committed.
func (s *RewardService) FeedHead(ctx context.Context, playerID string) (int64, error) {
	var feed models.PlayerFeed
	err := s.DB.WithContext(ctx).Where("player_id = ?", playerID).Limit(1).Find(&feed).Error
	return feed.LastSeq, err
}

// Since returns rewards of bundles finalized in (after, upTo], in finalization order.
func (s *RewardService) Since(ctx context.Context, playerID string, after, upTo int64) ([]models.SessionReward, error) {
	var rewards []models.SessionReward
	err := s.finalized(ctx, playerID).
		Where("activity_sessions.feed_seq > ? AND activity_sessions.feed_seq <= ?", after, upTo).
		Order("activity_sessions.feed_seq ASC").
		Order("session_rewards.position ASC").
		Find(&rewards).Error
	return rewards, err
}
