package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"activity-reward-system/config"
	"activity-reward-system/database"
	"activity-reward-system/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fixedSource always returns the same draws.
type fixedSource struct {
	f float64
	n int
}

func (s fixedSource) Float64() float64 { return s.f }
func (s fixedSource) IntN(n int) int   { return min(s.n, n-1) }

// countingSource counts every draw made through it.
type countingSource struct {
	Source
	calls atomic.Int64
}

func newCountingSource(seed uint64) *countingSource {
	return &countingSource{Source: NewSource(seed)}
}

func (s *countingSource) Float64() float64 {
	s.calls.Add(1)
	return s.Source.Float64()
}

func (s *countingSource) IntN(n int) int {
	s.calls.Add(1)
	return s.Source.IntN(n)
}

// fakeCreatures answers lookups from a fixed function and records filters.
type fakeCreatures struct {
	mu    sync.Mutex
	seen  []CreatureFilter
	reply func(ctx context.Context, f CreatureFilter) (*models.SpeciesDescriptor, error)
}

func (c *fakeCreatures) FindRandom(ctx context.Context, f CreatureFilter) (*models.SpeciesDescriptor, error) {
	c.mu.Lock()
	c.seen = append(c.seen, f)
	c.mu.Unlock()
	if c.reply == nil {
		return nil, nil
	}
	return c.reply(ctx, f)
}

func (c *fakeCreatures) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func alwaysCreature(name string) *fakeCreatures {
	return &fakeCreatures{reply: func(_ context.Context, f CreatureFilter) (*models.SpeciesDescriptor, error) {
		return &models.SpeciesDescriptor{CatalogID: f.Franchise + "-1", Franchise: f.Franchise, Name: name, Types: f.Types}, nil
	}}
}

type fakeItems map[string][]CatalogEntry

func (f fakeItems) ListByCategory(_ context.Context, category string) ([]CatalogEntry, error) {
	return f[category], nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func mustTables(t *testing.T) *config.RewardTables {
	t.Helper()
	tables, err := config.DefaultTables()
	require.NoError(t, err)
	return tables
}

// withRewards edits one activity's reward row in place.
func withRewards(tables *config.RewardTables, location, activity string, edit func(*config.ActivityRewards)) {
	loc := tables.Locations[location]
	act := loc.Activities[activity]
	edit(&act.Rewards)
	loc.Activities[activity] = act
	tables.Locations[location] = loc
}

type engine struct {
	db       *gorm.DB
	tables   *config.RewardTables
	clock    *fakeClock
	rng      *countingSource
	sessions *SessionService
	claims   *ClaimService
	rewards  *RewardService
	owners   *GormOwnerStore
	gate     *CooldownGate
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	db := database.NewTestDB(t)
	tables := mustTables(t)
	clock := newFakeClock()
	rng := newCountingSource(42)

	roller := NewCreatureRoller(alwaysCreature("Sproutling"), 200*time.Millisecond)
	gen := NewRewardGenerator(tables, roller, fakeItems{
		"berries": {{Name: "Oran Berry", Effect: "Restores 10 HP"}},
		"items":   {{Name: "Potion", Effect: "Restores 20 HP"}},
	})

	sessions := NewSessionService(db, tables, gen, rng)
	sessions.Now = clock.Now
	claims := NewClaimService(db)
	claims.Now = clock.Now
	gate := NewCooldownGate(db, tables)
	gate.Now = clock.Now

	return &engine{
		db:       db,
		tables:   tables,
		clock:    clock,
		rng:      rng,
		sessions: sessions,
		claims:   claims,
		rewards:  NewRewardService(db),
		owners:   NewGormOwnerStore(db),
		gate:     gate,
	}
}

// completed starts a session at location, runs it for its full duration and completes it.
func (e *engine) completed(t *testing.T, player, location, activity string) *CompleteResult {
	t.Helper()
	ctx := context.Background()
	s, err := e.sessions.Start(ctx, player, location, activity)
	require.NoError(t, err)
	e.clock.Advance(time.Duration(s.DurationMinutes) * time.Minute)

	res, err := e.sessions.Complete(ctx, player, s.ID, CompleteRequest{})
	require.NoError(t, err)
	return res
}
