// services/reward_generator.go
package services

import (
	"context"
	"log"
	"math"
	"slices"
	"time"

	"activity-reward-system/config"
	"activity-reward-system/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MaxNonCurrencyRewards bounds items plus monsters in one bundle.
const MaxNonCurrencyRewards = 5

// GenerateInput is everything the generator needs for one bundle.
type GenerateInput struct {
	Location string
	Activity string
	Outcome  models.SessionOutcome
	// Reward targets for coin and level splits, usually the player's trainer ids.
	Targets []string
}

// Bundle is the ordered result of one generation.
type Bundle struct {
	Multipliers Multipliers            `json:"multipliers"`
	Rewards     []models.RewardPayload `json:"rewards"`
}

// NonCurrencyCount counts items and monsters.
func (b Bundle) NonCurrencyCount() int {
	n := 0
	for _, r := range b.Rewards {
		if !r.IsCurrency() {
			n++
		}
	}
	return n
}

// RewardGenerator computes bundles from session outcomes. It keeps no state between calls;
// all randomness comes from the Source passed in.
type RewardGenerator struct {
	Tables         *config.RewardTables
	Roller         *CreatureRoller
	Items          ItemCatalog
	CatalogTimeout time.Duration
}

func NewRewardGenerator(tables *config.RewardTables, roller *CreatureRoller, items ItemCatalog) *RewardGenerator {
	return &RewardGenerator{Tables: tables, Roller: roller, Items: items, CatalogTimeout: roller.Timeout}
}

type encounterKind int

const (
	encounterItem encounterKind = iota
	encounterMonster
)

// Generate builds the bundle: one coin reward, one level reward, per-session item rolls,
// then the encounter slots. Failed creature lookups degrade into fallback coin rewards.
func (g *RewardGenerator) Generate(ctx context.Context, src Source, in GenerateInput) (Bundle, error) {
	ctx, span := tracer.Start(ctx, "RewardGenerator.Generate", trace.WithAttributes(
		attribute.String("location", in.Location),
		attribute.String("activity", in.Activity),
	))
	defer span.End()

	_, act, ok := g.Tables.Lookup(in.Location, in.Activity)
	if !ok {
		return Bundle{}, ErrInvalidLocationOrActivity
	}
	rw := act.Rewards
	m := ComputeMultipliers(in.Outcome)
	combined := m.Combined
	sessions := max(0, in.Outcome.BundleSessions)

	coins := int(math.Round(float64(sessions*rw.BaseCoins) * combined * g.Tables.DifficultyFactor(in.Outcome.Difficulty)))
	levels := int(math.Round(float64(sessions*rw.BaseLevels) * combined))

	b := Bundle{Multipliers: m}
	b.Rewards = append(b.Rewards,
		models.RewardPayload{Coin: &models.CoinReward{Amount: coins, Splits: splitBundles(src, coins, rw.CoinBundle, in.Targets)}},
		models.RewardPayload{Level: &models.LevelReward{Levels: levels, Splits: splitBundles(src, levels, rw.LevelBundle, in.Targets)}},
	)

	itemChance := math.Min(1, rw.ItemChance*combined)
	itemCap := min(MaxNonCurrencyRewards, sessions)
	items, extras := 0, 0

	for i := 0; i < sessions && items < itemCap; i++ {
		if bernoulli(src, itemChance) {
			b.Rewards = append(b.Rewards, models.RewardPayload{Item: g.rollItem(ctx, src, rw, combined)})
			items++
			extras++
		}
	}

	encounterKinds := []Weighted[encounterKind]{
		{Value: encounterItem, Weight: rw.ItemWeight},
		{Value: encounterMonster, Weight: rw.MonsterWeight},
	}
	monsterChance := math.Min(1, 0.5*combined)

	for slot := 0; slot < rw.EncounterSlots && extras < MaxNonCurrencyRewards; slot++ {
		kind, ok := PickWeighted(src, encounterKinds)
		if !ok {
			break
		}
		switch kind {
		case encounterItem:
			if !bernoulli(src, itemChance) || items >= itemCap {
				continue
			}
			b.Rewards = append(b.Rewards, models.RewardPayload{Item: g.rollItem(ctx, src, rw, combined)})
			items++
			extras++
		case encounterMonster:
			if !bernoulli(src, monsterChance) {
				continue
			}
			reward := g.rollMonster(ctx, src, rw, combined)
			b.Rewards = append(b.Rewards, reward)
			if !reward.IsCurrency() {
				extras++
			}
		}
	}

	span.SetAttributes(
		attribute.Float64("multiplier.combined", combined),
		attribute.Int("bundle.size", len(b.Rewards)),
	)
	return b, nil
}

// RollTier picks a rarity tier with weights tilted by combined^i.
func (g *RewardGenerator) RollTier(src Source, combined float64) config.RarityTier {
	base := make([]float64, len(g.Tables.Rarities))
	for i, t := range g.Tables.Rarities {
		base[i] = t.Weight
	}
	scaled := TierWeights(base, combined)

	entries := make([]Weighted[int], len(scaled))
	for i, w := range scaled {
		entries[i] = Weighted[int]{Value: i, Weight: w}
	}
	idx, _ := PickWeighted(src, entries)
	return g.Tables.Rarities[idx]
}

func (g *RewardGenerator) rollMonster(ctx context.Context, src Source, rw config.ActivityRewards, combined float64) models.RewardPayload {
	tier := g.RollTier(src, combined)

	creature, err := g.Roller.Roll(ctx, src, tier, rw.MonsterTypes)
	if err != nil || creature == nil {
		reason := "no creature matched"
		if err != nil {
			reason = ErrorKind(err)
			log.Printf("⚠️ [GENERATOR] %s creature lookup failed, granting coins instead: %v", tier.Name, err)
		}
		return models.RewardPayload{Coin: &models.CoinReward{
			Amount:   int(math.Round(float64(rw.FallbackCoins) * combined)),
			Fallback: true,
			Reason:   reason,
		}}
	}

	return models.RewardPayload{Monster: &models.MonsterReward{
		RarityTier: tier.Name,
		Species:    *creature,
		Level:      intBetween(src, tier.Level.Min, tier.Level.Max),
	}}
}

func (g *RewardGenerator) rollItem(ctx context.Context, src Source, rw config.ActivityRewards, combined float64) *models.ItemReward {
	fallback := &models.ItemReward{
		Name:        rw.DefaultItem.Name,
		Category:    rw.DefaultItem.Category,
		Description: rw.DefaultItem.Description,
		Quantity:    1,
		Rarity:      "common",
	}

	entries := make([]Weighted[config.ItemRow], 0, len(g.Tables.Items))
	for _, row := range g.Tables.Items {
		w := row.Weight
		if bias, ok := rw.CategoryBias[row.Category]; ok {
			w *= bias
		}
		if slices.Contains(g.Tables.BoostedItemRarities, row.Rarity) {
			w *= combined
		}
		entries = append(entries, Weighted[config.ItemRow]{Value: row, Weight: w})
	}
	row, ok := PickWeighted(src, entries)
	if !ok {
		return fallback
	}
	quantity := intBetween(src, row.Quantity.Min, row.Quantity.Max)

	if g.Items == nil {
		return fallback
	}
	lctx, cancel := context.WithTimeout(ctx, g.CatalogTimeout)
	defer cancel()
	candidates, err := g.Items.ListByCategory(lctx, row.Category)
	if err != nil {
		log.Printf("⚠️ [GENERATOR] item catalog lookup for %s failed, using %s: %v", row.Category, fallback.Name, err)
		return fallback
	}
	if len(candidates) == 0 {
		return fallback
	}
	picked := candidates[src.IntN(len(candidates))]
	return &models.ItemReward{
		Name:        picked.Name,
		Category:    row.Category,
		Quantity:    quantity,
		Description: picked.Effect,
		Rarity:      row.Rarity,
	}
}

// splitBundles cuts total into random sizes from r (the last one truncated)
// and assigns each to a uniformly chosen target.
func splitBundles(src Source, total int, r config.Range, targets []string) []models.Split {
	var splits []models.Split
	for remaining := total; remaining > 0; {
		size := min(intBetween(src, r.Min, r.Max), remaining)
		split := models.Split{Amount: size}
		switch len(targets) {
		case 0:
		case 1:
			split.Target = targets[0]
		default:
			split.Target = targets[src.IntN(len(targets))]
		}
		splits = append(splits, split)
		remaining -= size
	}
	return splits
}
