// services/session_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"activity-reward-system/config"
	"activity-reward-system/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionService owns the activity session lifecycle: start, resume, progress, complete, cancel.
type SessionService struct {
	DB        *gorm.DB
	Tables    *config.RewardTables
	Prompts   *PromptProvider
	Generator *RewardGenerator
	Rng       Source
	Now       func() time.Time
}

func NewSessionService(db *gorm.DB, tables *config.RewardTables, generator *RewardGenerator, rng Source) *SessionService {
	return &SessionService{
		DB:        db,
		Tables:    tables,
		Prompts:   NewPromptProvider(tables),
		Generator: generator,
		Rng:       rng,
		Now:       time.Now,
	}
}

func (s *SessionService) now() time.Time { return s.Now().UTC() }

// CompleteRequest optionally reports the last focus block along with completion.
type CompleteRequest struct {
	Assessment   string `json:"assessment,omitempty"`
	FocusMinutes int    `json:"focus_minutes,omitempty"`
}

type CompleteResult struct {
	Session *models.ActivitySession `json:"session"`
	Bundle  Bundle                  `json:"bundle"`
	Rewards []models.SessionReward  `json:"rewards"`
}

type StatusResult struct {
	ActiveSession *models.ActivitySession `json:"active_session,omitempty"`
	Cooldown      CooldownStatus          `json:"cooldown"`
}

// Start creates a new active session, abandoning any active one at the same location.
func (s *SessionService) Start(ctx context.Context, playerID, location, activity string) (*models.ActivitySession, error) {
	loc, act, ok := s.Tables.Lookup(location, activity)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrInvalidLocationOrActivity, location, activity)
	}

	prompt, err := s.Prompts.RandomPrompt(s.Rng, location, activity)
	if err != nil {
		return nil, err
	}
	duration := intBetween(s.Rng, act.Duration.Min, act.Duration.Max)
	now := s.now()

	session := &models.ActivitySession{
		ID:               uuid.NewString(),
		PlayerID:         playerID,
		Location:         location,
		Activity:         activity,
		PromptID:         prompt.ID,
		PromptText:       prompt.Text,
		PromptDifficulty: prompt.Difficulty,
		DurationMinutes:  duration,
		StartedAt:        now,
		ExpectedEndAt:    now.Add(time.Duration(duration) * time.Minute),
		State:            models.SessionActive,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slot, err := lockSlot(tx, playerID, location)
		if err != nil {
			return err
		}
		if cd := cooldownFor(slot, now); cd.Active {
			return &CooldownError{Location: location, Remaining: cd.TimeRemaining}
		}

		// Last start wins: whatever is still active here is superseded.
		res := tx.Model(&models.ActivitySession{}).
			Where("player_id = ? AND location = ? AND state = ?", playerID, location, models.SessionActive).
			Updates(map[string]interface{}{"state": models.SessionAbandoned, "ended_at": now})
		if res.Error != nil {
			return fmt.Errorf("failed to abandon previous session: %w", res.Error)
		}
		var cooldownUntil *time.Time
		if res.RowsAffected > 0 {
			log.Printf("🔁 [SESSION] Superseded %d active session(s) for player=%s location=%s", res.RowsAffected, playerID, location)
			cooldownUntil = cooldownDeadline(now, loc)
		}

		run, err := openRun(tx, playerID, location)
		if err != nil {
			return err
		}
		session.RunID = run.ID

		if err := tx.Create(session).Error; err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		updates := map[string]interface{}{"active_session_id": session.ID}
		if cooldownUntil != nil {
			updates["cooldown_until"] = *cooldownUntil
		}
		return tx.Model(&models.LocationSlot{}).
			Where("player_id = ? AND location = ?", playerID, location).
			Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("▶️ [SESSION] Started %s for player=%s at %s/%s (%d min, prompt=%s)",
		session.ID, playerID, location, activity, duration, prompt.ID)
	return session, nil
}

// Resume returns the active session for the pair, or starts a new one.
// The boolean reports whether an existing session was returned.
func (s *SessionService) Resume(ctx context.Context, playerID, location, activity string) (*models.ActivitySession, bool, error) {
	if _, _, ok := s.Tables.Lookup(location, activity); !ok {
		return nil, false, fmt.Errorf("%w: %s/%s", ErrInvalidLocationOrActivity, location, activity)
	}

	active, err := s.activeSession(ctx, playerID, location)
	if err != nil {
		return nil, false, err
	}
	if active != nil && active.Activity == activity {
		return active, true, nil
	}

	session, err := s.Start(ctx, playerID, location, activity)
	return session, false, err
}

// Get loads one of the player's sessions with its rewards.
func (s *SessionService) Get(ctx context.Context, playerID, sessionID string) (*models.ActivitySession, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, ErrSessionNotFound
	}
	var session models.ActivitySession
	err := s.DB.WithContext(ctx).
		Preload("Rewards", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ? AND player_id = ?", sessionID, playerID).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// RecordProgress adds one finished focus block to the session's run.
func (s *SessionService) RecordProgress(ctx context.Context, playerID, sessionID, assessment string, minutes int) (*models.ActivityRun, error) {
	score, ok := AssessmentScore(assessment)
	if !ok {
		return nil, fmt.Errorf("%w: %q (want none, some, most or all)", ErrInvalidAssessment, assessment)
	}
	minutes = min(max(minutes, 0), config.MaxDurationMinutes)

	var run *models.ActivityRun
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := lockSession(tx, playerID, sessionID)
		if err != nil {
			return err
		}
		if session.State != models.SessionActive {
			return ErrSessionNotActive
		}
		_, act, _ := s.Tables.Lookup(session.Location, session.Activity)
		if act.Scoring != config.ScoringAssessment {
			return fmt.Errorf("%w: %s/%s is scored by elapsed time", ErrInvalidAssessment, session.Location, session.Activity)
		}

		run, err = currentRun(tx, session)
		if err != nil {
			return err
		}
		addBlock(run, score, minutes)
		return tx.Save(run).Error
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Complete moves an active session to completed exactly once, snapshots the run,
// generates the bundle and persists it.
func (s *SessionService) Complete(ctx context.Context, playerID, sessionID string, req CompleteRequest) (*CompleteResult, error) {
	ctx, span := tracer.Start(ctx, "SessionService.Complete", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	result, err := s.complete(ctx, playerID, sessionID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorKind(err))
	}
	return result, err
}

func (s *SessionService) complete(ctx context.Context, playerID, sessionID string, req CompleteRequest) (*CompleteResult, error) {
	var blockScore int
	if req.Assessment != "" {
		score, ok := AssessmentScore(req.Assessment)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAssessment, req.Assessment)
		}
		blockScore = score
	}

	head, err := s.Get(ctx, playerID, sessionID)
	if err != nil {
		return nil, err
	}
	loc, act, ok := s.Tables.Lookup(head.Location, head.Activity)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrInvalidLocationOrActivity, head.Location, head.Activity)
	}

	now := s.now()
	var session *models.ActivitySession

	// Step 1: compare-and-set Active -> Completed and snapshot the run.
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockSlot(tx, head.PlayerID, head.Location); err != nil {
			return err
		}
		res := tx.Model(&models.ActivitySession{}).
			Where("id = ? AND state = ?", sessionID, models.SessionActive).
			Updates(map[string]interface{}{
				"state":        models.SessionCompleted,
				"completed_at": now,
				"ended_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSessionNotActive
		}

		locked, err := lockSession(tx, playerID, sessionID)
		if err != nil {
			return err
		}
		session = locked

		run, err := currentRun(tx, session)
		if err != nil {
			return err
		}
		switch act.Scoring {
		case config.ScoringElapsed:
			elapsed := now.Sub(session.StartedAt).Minutes()
			addBlock(run, ElapsedScore(elapsed, session.DurationMinutes), max(1, int(math.Round(elapsed))))
		case config.ScoringAssessment:
			if req.Assessment != "" {
				addBlock(run, blockScore, min(max(req.FocusMinutes, 0), config.MaxDurationMinutes))
			}
		}
		unbundled := run.TakeUnbundled()
		if err := tx.Save(run).Error; err != nil {
			return err
		}

		outcome := models.SessionOutcome{
			ProductivityScore: run.AverageAssessment(),
			CompletedSessions: run.CompletedSessions,
			BundleSessions:    unbundled,
			TotalFocusMinutes: run.TotalFocusMinutes,
			Difficulty:        session.PromptDifficulty,
		}
		session.Outcome = &outcome
		session.RunID = run.ID
		if err := tx.Model(session).Select("outcome", "run_id").Updates(session).Error; err != nil {
			return err
		}

		return tx.Model(&models.LocationSlot{}).
			Where("player_id = ? AND location = ?", session.PlayerID, session.Location).
			Updates(map[string]interface{}{
				"active_session_id": gorm.Expr("CASE WHEN active_session_id = ? THEN NULL ELSE active_session_id END", session.ID),
				"cooldown_until":    *cooldownDeadline(now, loc),
			}).Error
	})
	if err != nil {
		return nil, err
	}

	// Step 2: the single generation for this session, outside any transaction.
	targets, err := s.rewardTargets(ctx, playerID)
	if err != nil {
		return nil, err
	}
	bundle, err := s.Generator.Generate(ctx, s.Rng, GenerateInput{
		Location: session.Location,
		Activity: session.Activity,
		Outcome:  *session.Outcome,
		Targets:  targets,
	})
	if err != nil {
		return nil, err
	}

	// Step 3: persist and finalize.
	rewards := make([]models.SessionReward, 0, len(bundle.Rewards))
	for i, payload := range bundle.Rewards {
		r := models.SessionReward{
			ID:        uuid.NewString(),
			SessionID: session.ID,
			PlayerID:  playerID,
			Position:  i,
			Kind:      payload.Kind(),
			Payload:   payload,
		}
		switch {
		case payload.Item != nil:
			r.Rarity = payload.Item.Rarity
		case payload.Monster != nil:
			r.Rarity = payload.Monster.RarityTier
		}
		rewards = append(rewards, r)
	}

	var feedSeq int64
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rewards).Error; err != nil {
			return fmt.Errorf("failed to persist rewards: %w", err)
		}
		seq, err := nextFeedSeq(tx, playerID)
		if err != nil {
			return err
		}
		feedSeq = seq
		res := tx.Model(&models.ActivitySession{}).
			Where("id = ? AND bundle_finalized = ?", session.ID, false).
			Updates(map[string]interface{}{"bundle_finalized": true, "feed_seq": seq})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("session %s already finalized", session.ID)
		}
		return nil
	})
	if err != nil {
		log.Printf("❌ [SESSION] Completed %s but could not finalize its bundle: %v", session.ID, err)
		return nil, err
	}

	session.BundleFinalized = true
	session.FeedSeq = feedSeq
	session.Rewards = rewards
	log.Printf("🏁 [SESSION] Completed %s (score=%d, sessions=%d/%d, minutes=%d, x%.2f) with %d reward(s)",
		session.ID, session.Outcome.ProductivityScore, session.Outcome.BundleSessions, session.Outcome.CompletedSessions,
		session.Outcome.TotalFocusMinutes, bundle.Multipliers.Combined, len(rewards))

	return &CompleteResult{Session: session, Bundle: bundle, Rewards: rewards}, nil
}

// Cancel abandons an active session and closes its run.
func (s *SessionService) Cancel(ctx context.Context, playerID, sessionID string) (*models.ActivitySession, error) {
	head, err := s.Get(ctx, playerID, sessionID)
	if err != nil {
		return nil, err
	}
	loc := s.Tables.Locations[head.Location]
	now := s.now()

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockSlot(tx, head.PlayerID, head.Location); err != nil {
			return err
		}
		if err := abandonLocked(tx, head, now, loc); err != nil {
			return err
		}
		return tx.Model(&models.ActivityRun{}).
			Where("id = ? AND status = ?", head.RunID, models.RunOpen).
			Update("status", models.RunCancelled).Error
	})
	if err != nil {
		return nil, err
	}

	head.State = models.SessionAbandoned
	head.EndedAt = &now
	log.Printf("⏹️ [SESSION] Cancelled %s for player=%s", head.ID, playerID)
	return head, nil
}

// Status reports the active session (if any) and the cooldown at a location.
func (s *SessionService) Status(ctx context.Context, playerID, location string) (*StatusResult, error) {
	if _, ok := s.Tables.Locations[location]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidLocationOrActivity, location)
	}
	active, err := s.activeSession(ctx, playerID, location)
	if err != nil {
		return nil, err
	}

	var slot models.LocationSlot
	err = s.DB.WithContext(ctx).Where("player_id = ? AND location = ?", playerID, location).First(&slot).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return &StatusResult{ActiveSession: active, Cooldown: cooldownFor(&slot, s.now())}, nil
}

// History lists the player's most recent sessions, newest first.
func (s *SessionService) History(ctx context.Context, playerID string, limit int) ([]models.ActivitySession, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var sessions []models.ActivitySession
	err := s.DB.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("started_at DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

// ExpireStale abandons active sessions whose expected end is before cutoff.
func (s *SessionService) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	var stale []models.ActivitySession
	if err := s.DB.WithContext(ctx).
		Where("state = ? AND expected_end_at < ?", models.SessionActive, cutoff.UTC()).
		Find(&stale).Error; err != nil {
		return 0, err
	}

	now := s.now()
	expired := 0
	for i := range stale {
		session := &stale[i]
		loc := s.Tables.Locations[session.Location]
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if _, err := lockSlot(tx, session.PlayerID, session.Location); err != nil {
				return err
			}
			return abandonLocked(tx, session, now, loc)
		})
		if errors.Is(err, ErrSessionNotActive) {
			continue
		}
		if err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s *SessionService) activeSession(ctx context.Context, playerID, location string) (*models.ActivitySession, error) {
	var session models.ActivitySession
	err := s.DB.WithContext(ctx).
		Where("player_id = ? AND location = ? AND state = ?", playerID, location, models.SessionActive).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionService) rewardTargets(ctx context.Context, playerID string) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Model(&models.Trainer{}).
		Where("player_id = ?", playerID).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// lockSlot upserts and row-locks the (player, location) slot. Every state change
// at a location goes through it first, so writers at one location are serialized.
func lockSlot(tx *gorm.DB, playerID, location string) (*models.LocationSlot, error) {
	slot := models.LocationSlot{PlayerID: playerID, Location: location}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&slot).Error; err != nil {
		return nil, fmt.Errorf("failed to ensure location slot: %w", err)
	}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("player_id = ? AND location = ?", playerID, location).
		First(&slot).Error; err != nil {
		return nil, fmt.Errorf("failed to lock location slot: %w", err)
	}
	return &slot, nil
}

func lockSession(tx *gorm.DB, playerID, sessionID string) (*models.ActivitySession, error) {
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
	return &session, nil
}

func abandonLocked(tx *gorm.DB, session *models.ActivitySession, now time.Time, loc config.Location) error {
	res := tx.Model(&models.ActivitySession{}).
		Where("id = ? AND state = ?", session.ID, models.SessionActive).
		Updates(map[string]interface{}{"state": models.SessionAbandoned, "ended_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotActive
	}
	return tx.Model(&models.LocationSlot{}).
		Where("player_id = ? AND location = ?", session.PlayerID, session.Location).
		Updates(map[string]interface{}{
			"active_session_id": gorm.Expr("CASE WHEN active_session_id = ? THEN NULL ELSE active_session_id END", session.ID),
			"cooldown_until":    *cooldownDeadline(now, loc),
		}).Error
}

// nextFeedSeq locks the player's feed row and takes the next finalization sequence.
func nextFeedSeq(tx *gorm.DB, playerID string) (int64, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.PlayerFeed{PlayerID: playerID}).Error; err != nil {
		return 0, err
	}
	var feed models.PlayerFeed
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("player_id = ?", playerID).First(&feed).Error; err != nil {
		return 0, err
	}
	feed.LastSeq++
	if err := tx.Model(&feed).Update("last_seq", feed.LastSeq).Error; err != nil {
		return 0, err
	}
	return feed.LastSeq, nil
}

func cooldownDeadline(now time.Time, loc config.Location) *time.Time {
	t := now.Add(loc.Cooldown)
	return &t
}

// openRun returns the open run for (player, location), creating one when needed.
func openRun(tx *gorm.DB, playerID, location string) (*models.ActivityRun, error) {
	var run models.ActivityRun
	err := tx.Where("player_id = ? AND location = ? AND status = ?", playerID, location, models.RunOpen).
		Order("created_at DESC").
		First(&run).Error
	if err == nil {
		return &run, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	run = models.ActivityRun{
		ID:       uuid.NewString(),
		PlayerID: playerID,
		Location: location,
		Status:   models.RunOpen,
	}
	if err := tx.Create(&run).Error; err != nil {
		return nil, fmt.Errorf("failed to open run: %w", err)
	}
	return &run, nil
}

// currentRun locks the session's run, or opens a fresh one if it was already closed.
func currentRun(tx *gorm.DB, session *models.ActivitySession) (*models.ActivityRun, error) {
	var run models.ActivityRun
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", session.RunID).First(&run).Error
	if err == nil && run.Status == models.RunOpen {
		return &run, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	fresh, err := openRun(tx, session.PlayerID, session.Location)
	if err != nil {
		return nil, err
	}
	if err := tx.Model(&models.ActivitySession{}).Where("id = ?", session.ID).Update("run_id", fresh.ID).Error; err != nil {
		return nil, err
	}
	session.RunID = fresh.ID
	return fresh, nil
}

func addBlock(run *models.ActivityRun, score, minutes int) {
	run.CompletedSessions++
	run.TotalFocusMinutes += minutes
	run.AssessmentSum += score
	run.AssessmentCount++
}
