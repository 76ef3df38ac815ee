package services

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"activity-reward-system/config"
	"activity-reward-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGenerator(t *testing.T, tables *config.RewardTables, creatures CreatureCatalog) *RewardGenerator {
	t.Helper()
	return NewRewardGenerator(tables, NewCreatureRoller(creatures, 100*time.Millisecond), fakeItems{
		"berries": {{Name: "Oran Berry"}, {Name: "Sitrus Berry"}},
	})
}

func TestGenerateCurrencyTotals(t *testing.T) {
	gen := newGenerator(t, mustTables(t), alwaysCreature("Sproutling"))
	in := GenerateInput{
		Location: "garden",
		Activity: "tend",
		Outcome:  models.SessionOutcome{ProductivityScore: 100, CompletedSessions: 4, BundleSessions: 4, TotalFocusMinutes: 60, Difficulty: "normal"},
		Targets:  []string{"t1", "t2"},
	}

	b, err := gen.Generate(context.Background(), NewSource(3), in)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(b.Rewards), 2)
	assert.InDelta(t, 2.0, b.Multipliers.Combined, 1e-9)

	coin := b.Rewards[0].Coin
	require.NotNil(t, coin)
	assert.Equal(t, 400, coin.Amount)
	level := b.Rewards[1].Level
	require.NotNil(t, level)
	assert.Equal(t, 8, level.Levels)

	sum := 0
	for _, sp := range coin.Splits {
		assert.Contains(t, in.Targets, sp.Target)
		assert.LessOrEqual(t, sp.Amount, 25)
		sum += sp.Amount
	}
	assert.Equal(t, 400, sum)

	sum = 0
	for _, sp := range level.Splits {
		sum += sp.Amount
	}
	assert.Equal(t, 8, sum)
}

func TestGenerateDifficultyScalesCoins(t *testing.T) {
	gen := newGenerator(t, mustTables(t), alwaysCreature("Sproutling"))
	in := GenerateInput{
		Location: "garden",
		Activity: "tend",
		Outcome:  models.SessionOutcome{ProductivityScore: 100, CompletedSessions: 4, BundleSessions: 4, TotalFocusMinutes: 60, Difficulty: "hard"},
	}
	b, err := gen.Generate(context.Background(), NewSource(3), in)
	require.NoError(t, err)
	assert.Equal(t, 600, b.Rewards[0].Coin.Amount)
	assert.Equal(t, 8, b.Rewards[1].Level.Levels, "difficulty only scales coins")
}

func TestGenerateUnknownPair(t *testing.T) {
	gen := newGenerator(t, mustTables(t), alwaysCreature("x"))
	_, err := gen.Generate(context.Background(), NewSource(1), GenerateInput{Location: "garden", Activity: "fishing"})
	assert.ErrorIs(t, err, ErrInvalidLocationOrActivity)
}

func TestGenerateBounds(t *testing.T) {
	gen := newGenerator(t, mustTables(t), alwaysCreature("Sproutling"))
	src := NewSource(11)

	for i := 0; i < 300; i++ {
		sessions := i % 9
		b, err := gen.Generate(context.Background(), src, GenerateInput{
			Location: "pirates_dock",
			Activity: "fishing",
			Outcome:  models.SessionOutcome{ProductivityScore: 120, CompletedSessions: sessions, BundleSessions: sessions, TotalFocusMinutes: 240},
		})
		require.NoError(t, err)

		items := 0
		for _, r := range b.Rewards {
			if r.Item != nil {
				items++
				assert.GreaterOrEqual(t, r.Item.Quantity, 1)
			}
		}
		assert.LessOrEqual(t, b.NonCurrencyCount(), MaxNonCurrencyRewards)
		assert.LessOrEqual(t, items, min(MaxNonCurrencyRewards, sessions))
	}
}

// monsterOnly makes every encounter slot a monster encounter and disables item rolls.
func monsterOnly(t *testing.T) *config.RewardTables {
	tables := mustTables(t)
	withRewards(tables, "garden", "tend", func(r *config.ActivityRewards) {
		r.ItemChance = 0
		r.ItemWeight = 0
		r.MonsterWeight = 1
	})
	return tables
}

func TestGenerateNoCreatureFallsBackToCoins(t *testing.T) {
	gen := newGenerator(t, monsterOnly(t), &fakeCreatures{})

	b, err := gen.Generate(context.Background(), fixedSource{}, GenerateInput{
		Location: "garden",
		Activity: "tend",
		Outcome:  models.SessionOutcome{ProductivityScore: 100, CompletedSessions: 4, BundleSessions: 4, TotalFocusMinutes: 60},
	})
	require.NoError(t, err)

	// coin, level, then one fallback per encounter slot
	require.Len(t, b.Rewards, 2+3)
	for _, r := range b.Rewards[2:] {
		require.NotNil(t, r.Coin)
		assert.True(t, r.Coin.Fallback)
		assert.Equal(t, 100, r.Coin.Amount)
	}
	assert.Equal(t, 0, b.NonCurrencyCount())
}

func TestGenerateCatalogErrorDegrades(t *testing.T) {
	failing := &fakeCreatures{reply: func(context.Context, CreatureFilter) (*models.SpeciesDescriptor, error) {
		return nil, ErrCatalogUnavailable
	}}
	gen := newGenerator(t, monsterOnly(t), failing)

	b, err := gen.Generate(context.Background(), fixedSource{}, GenerateInput{
		Location: "garden",
		Activity: "tend",
		Outcome:  models.SessionOutcome{CompletedSessions: 1, BundleSessions: 1},
	})
	require.NoError(t, err)
	last := b.Rewards[len(b.Rewards)-1]
	require.NotNil(t, last.Coin)
	assert.Equal(t, "catalog_unavailable", last.Coin.Reason)
}

func TestGenerateMonsterReward(t *testing.T) {
	tables := monsterOnly(t)
	gen := newGenerator(t, tables, alwaysCreature("Sproutling"))

	b, err := gen.Generate(context.Background(), fixedSource{}, GenerateInput{
		Location: "garden",
		Activity: "tend",
		Outcome:  models.SessionOutcome{CompletedSessions: 1, BundleSessions: 1},
	})
	require.NoError(t, err)
	require.Len(t, b.Rewards, 5)

	common := tables.Rarities[0]
	for _, r := range b.Rewards[2:] {
		require.NotNil(t, r.Monster)
		assert.Equal(t, common.Name, r.Monster.RarityTier)
		assert.Equal(t, "Sproutling", r.Monster.Species.Name)
		assert.GreaterOrEqual(t, r.Monster.Level, common.Level.Min)
		assert.LessOrEqual(t, r.Monster.Level, common.Level.Max)
	}
	assert.Equal(t, 3, b.NonCurrencyCount())
}

func TestGenerateItemsUseCatalog(t *testing.T) {
	tables := mustTables(t)
	withRewards(tables, "garden", "tend", func(r *config.ActivityRewards) {
		r.ItemChance = 1
		r.EncounterSlots = 0
		r.CategoryBias = map[string]float64{"berries": 1}
	})
	for i := range tables.Items {
		if tables.Items[i].Category != "berries" {
			tables.Items[i].Weight = 0
		}
	}
	gen := newGenerator(t, tables, alwaysCreature("x"))

	b, err := gen.Generate(context.Background(), NewSource(5), GenerateInput{
		Location: "garden",
		Activity: "tend",
		Outcome:  models.SessionOutcome{ProductivityScore: 100, CompletedSessions: 7, BundleSessions: 7},
	})
	require.NoError(t, err)
	assert.Equal(t, MaxNonCurrencyRewards, b.NonCurrencyCount())
	for _, r := range b.Rewards[2:] {
		require.NotNil(t, r.Item)
		assert.Equal(t, "berries", r.Item.Category)
		assert.Contains(t, []string{"Oran Berry", "Sitrus Berry"}, r.Item.Name)
	}
}

func TestEncounterWeightsDifferByActivity(t *testing.T) {
	tables := mustTables(t)
	for _, act := range []string{"fishing", "swab"} {
		withRewards(tables, "pirates_dock", act, func(r *config.ActivityRewards) { r.ItemChance = 0 })
	}
	gen := newGenerator(t, tables, alwaysCreature("Magikarp"))

	// combined is 2 here, so every monster encounter lands and only the kind pick matters
	monsterShare := func(activity string) float64 {
		src := NewSource(21)
		const n = 500
		monsters := 0
		for i := 0; i < n; i++ {
			b, err := gen.Generate(context.Background(), src, GenerateInput{
				Location: "pirates_dock",
				Activity: activity,
				Outcome:  models.SessionOutcome{ProductivityScore: 100, CompletedSessions: 4, BundleSessions: 1, TotalFocusMinutes: 60},
			})
			require.NoError(t, err)
			for _, r := range b.Rewards {
				if r.Monster != nil {
					monsters++
				}
			}
		}
		return float64(monsters) / float64(n*3)
	}

	assert.InDelta(t, 0.8, monsterShare("fishing"), 0.05)
	assert.InDelta(t, 0.2, monsterShare("swab"), 0.05)
}

func TestNatureLocationsPassMonsterTypes(t *testing.T) {
	for _, loc := range []struct{ location, activity string }{{"garden", "tend"}, {"farm", "work"}} {
		tables := mustTables(t)
		withRewards(tables, loc.location, loc.activity, func(r *config.ActivityRewards) {
			r.ItemChance = 0
			r.ItemWeight = 0
			r.MonsterWeight = 1
		})
		creatures := alwaysCreature("Oddish")
		gen := newGenerator(t, tables, creatures)

		src := NewSource(8)
		for i := 0; i < 20; i++ {
			_, err := gen.Generate(context.Background(), src, GenerateInput{
				Location: loc.location,
				Activity: loc.activity,
				Outcome:  models.SessionOutcome{ProductivityScore: 100, CompletedSessions: 4, BundleSessions: 1, TotalFocusMinutes: 60},
			})
			require.NoError(t, err)
		}

		typed := 0
		for _, f := range creatures.seen {
			if f.Franchise != "pokemon" || slices.Contains(f.Rarities, "Legendary") {
				assert.Empty(t, f.Types, loc.location)
				continue
			}
			assert.Equal(t, []string{"Grass", "Bug", "Ground", "Normal", "Flying"}, f.Types, loc.location)
			typed++
		}
		assert.Positive(t, typed, loc.location)
	}
}

func TestCategoryBiasShapesItemPicks(t *testing.T) {
	tables := mustTables(t)
	catalog := fakeItems{}
	for _, row := range tables.Items {
		catalog[row.Category] = []CatalogEntry{{Name: row.Category + " item"}}
	}
	for _, loc := range []struct{ location, activity string }{{"garden", "tend"}, {"farm", "work"}} {
		withRewards(tables, loc.location, loc.activity, func(r *config.ActivityRewards) {
			r.ItemChance = 1
			r.EncounterSlots = 0
		})
	}
	gen := NewRewardGenerator(tables, NewCreatureRoller(alwaysCreature("x"), time.Second), catalog)

	shares := func(location, activity string) map[string]float64 {
		src := NewSource(13)
		counts := map[string]int{}
		total := 0
		for i := 0; i < 400; i++ {
			b, err := gen.Generate(context.Background(), src, GenerateInput{
				Location: location,
				Activity: activity,
				Outcome:  models.SessionOutcome{ProductivityScore: 100, CompletedSessions: 5, BundleSessions: 5},
			})
			require.NoError(t, err)
			for _, r := range b.Rewards {
				if r.Item != nil {
					counts[r.Item.Category]++
					total++
				}
			}
		}
		require.Equal(t, 400*5, total)
		out := make(map[string]float64, len(counts))
		for c, n := range counts {
			out[c] = float64(n) / float64(total)
		}
		return out
	}

	garden, farm := shares("garden", "tend"), shares("farm", "work")
	assert.Greater(t, garden["berries"], farm["berries"]+0.1)
	assert.Greater(t, farm["eggs"], garden["eggs"]+0.1)
}

func TestRollTierFavoursHigherTiersWithMultiplier(t *testing.T) {
	tables := mustTables(t)
	gen := newGenerator(t, tables, alwaysCreature("x"))

	index := make(map[string]int, len(tables.Rarities))
	for i, r := range tables.Rarities {
		index[r.Name] = i
	}
	meanTier := func(combined float64) float64 {
		src := NewSource(99)
		total := 0
		const n = 20000
		for i := 0; i < n; i++ {
			total += index[gen.RollTier(src, combined).Name]
		}
		return float64(total) / n
	}

	low, mid, high := meanTier(1), meanTier(1.8), meanTier(3)
	assert.Less(t, low, mid)
	assert.Less(t, mid, high)

	// the top tier's share grows with every step up in the multiplier
	share := func(combined float64) float64 {
		w := TierWeights([]float64{60, 25, 10, 4, 1}, combined)
		sum := 0.0
		for _, x := range w {
			sum += x
		}
		return w[len(w)-1] / sum
	}
	prev := share(1)
	for _, c := range []float64{1.25, 1.5, 2, 2.5, 3} {
		s := share(c)
		assert.Greater(t, s, prev)
		prev = s
	}
}

func TestCreatureRollerTimeoutStopsRoll(t *testing.T) {
	blocking := &fakeCreatures{reply: func(ctx context.Context, _ CreatureFilter) (*models.SpeciesDescriptor, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	roller := NewCreatureRoller(blocking, 20*time.Millisecond)
	tier := mustTables(t).Rarities[0]
	require.Greater(t, len(tier.Filters), 1)

	started := time.Now()
	creature, err := roller.Roll(context.Background(), NewSource(1), tier, nil)
	assert.Nil(t, creature)
	assert.True(t, errors.Is(err, ErrCatalogTimeout))
	assert.Less(t, time.Since(started), time.Second)
	assert.Equal(t, 1, blocking.calls())
}

func TestCreatureRollerSkipsFailingFranchise(t *testing.T) {
	catalog := &fakeCreatures{reply: func(_ context.Context, f CreatureFilter) (*models.SpeciesDescriptor, error) {
		if f.Franchise == "pokemon" {
			return nil, ErrCatalogUnavailable
		}
		if f.Franchise == "digimon" {
			return nil, nil
		}
		return &models.SpeciesDescriptor{Franchise: f.Franchise, Name: "Jibanyan"}, nil
	}}
	roller := NewCreatureRoller(catalog, time.Second)
	tier := mustTables(t).Rarities[0]

	for seed := uint64(0); seed < 10; seed++ {
		creature, err := roller.Roll(context.Background(), NewSource(seed), tier, []string{"Grass"})
		require.NoError(t, err)
		require.NotNil(t, creature)
		assert.Equal(t, "yokai", creature.Franchise)
	}
}

func TestCreatureRollerFilters(t *testing.T) {
	roller := NewCreatureRoller(&fakeCreatures{}, 0)
	assert.Equal(t, defaultCatalogTimeout, roller.Timeout)

	tier := config.RarityTier{Name: "rare", Filters: []config.FranchiseFilter{
		{Franchise: "pokemon", Rarities: []string{"rare"}, MatchTypes: true},
		{Franchise: "digimon", Stages: []string{"Champion"}},
	}}
	filters := roller.Filters(tier, []string{"Water"})
	require.Len(t, filters, 2)
	assert.Equal(t, []string{"Water"}, filters[0].Types)
	assert.Nil(t, filters[1].Types)
	assert.Equal(t, []string{"Champion"}, filters[1].Stages)
}
