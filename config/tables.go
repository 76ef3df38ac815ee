// config/tables.go
package config

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed reward_tables.yaml
var defaultTables []byte

const (
	MinDurationMinutes = 20
	MaxDurationMinutes = 120
	MaxEncounterSlots  = 3
)

// Scoring modes decide how a session's productivity score is derived.
const (
	ScoringElapsed    = "elapsed"    // elapsed vs expected duration
	ScoringAssessment = "assessment" // self-assessed focus blocks
)

type Range struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

func (r Range) valid() bool { return r.Min <= r.Max }

type Prompt struct {
	ID         string `yaml:"id" json:"id"`
	Text       string `yaml:"text" json:"text"`
	Difficulty string `yaml:"difficulty" json:"difficulty"`
}

type DefaultItem struct {
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
}

// ActivityRewards holds the per-activity knobs for the reward generator.
type ActivityRewards struct {
	BaseCoins      int                `yaml:"base_coins"`
	BaseLevels     int                `yaml:"base_levels"`
	CoinBundle     Range              `yaml:"coin_bundle"`
	LevelBundle    Range              `yaml:"level_bundle"`
	ItemChance     float64            `yaml:"item_chance"`
	EncounterSlots int                `yaml:"encounter_slots"`
	ItemWeight     float64            `yaml:"item_weight"`
	MonsterWeight  float64            `yaml:"monster_weight"`
	CategoryBias   map[string]float64 `yaml:"category_bias"`
	MonsterTypes   []string           `yaml:"monster_types"`
	FallbackCoins  int                `yaml:"fallback_coins"`
	DefaultItem    DefaultItem        `yaml:"default_item"`
}

type Activity struct {
	Name       string          `yaml:"name"`
	FlavorText string          `yaml:"flavor_text"`
	ImageURL   string          `yaml:"image_url"`
	Scoring    string          `yaml:"scoring"`
	Duration   Range           `yaml:"duration"`
	Prompts    []Prompt        `yaml:"prompts"`
	Rewards    ActivityRewards `yaml:"rewards"`
}

type Location struct {
	Name       string              `yaml:"name"`
	FlavorText string              `yaml:"flavor_text"`
	ImageURL   string              `yaml:"image_url"`
	Cooldown   time.Duration       `yaml:"cooldown"`
	Activities map[string]Activity `yaml:"activities"`
}

// ItemRow is one entry of the global weighted item table.
type ItemRow struct {
	Category string  `yaml:"category"`
	Rarity   string  `yaml:"rarity"`
	Weight   float64 `yaml:"weight"`
	Quantity Range   `yaml:"quantity"`
}

// FranchiseFilter narrows one source franchise's catalog for a rarity tier.
type FranchiseFilter struct {
	Franchise  string   `yaml:"franchise"`
	Rarities   []string `yaml:"rarities"`
	Stages     []string `yaml:"stages"`
	Ranks      []string `yaml:"ranks"`
	MatchTypes bool     `yaml:"match_types"`
}

// RarityTier entries are ordered from most common to rarest.
type RarityTier struct {
	Name    string            `yaml:"name"`
	Weight  float64           `yaml:"weight"`
	Level   Range             `yaml:"level"`
	Filters []FranchiseFilter `yaml:"filters"`
}

type RewardTables struct {
	Difficulty          map[string]float64  `yaml:"difficulty"`
	BoostedItemRarities []string            `yaml:"boosted_item_rarities"`
	Items               []ItemRow           `yaml:"items"`
	Rarities            []RarityTier        `yaml:"rarities"`
	Locations           map[string]Location `yaml:"locations"`
}

// Lookup resolves a (location, activity) pair against the enumeration.
func (t *RewardTables) Lookup(location, activity string) (Location, Activity, bool) {
	loc, ok := t.Locations[location]
	if !ok {
		return Location{}, Activity{}, false
	}
	act, ok := loc.Activities[activity]
	if !ok {
		return Location{}, Activity{}, false
	}
	return loc, act, true
}

// DifficultyFactor returns the coin scale for a prompt difficulty, 1 when unknown.
func (t *RewardTables) DifficultyFactor(difficulty string) float64 {
	if f, ok := t.Difficulty[difficulty]; ok {
		return f
	}
	return 1
}

// ObjectFetcher reads a whole object from a bucket.
type ObjectFetcher interface {
	FetchObject(ctx context.Context, key string) ([]byte, error)
}

// LoadTables picks the reward table source: R2 object, then local file, then the embedded default.
func LoadTables(ctx context.Context, cfg Config, fetcher ObjectFetcher) (*RewardTables, error) {
	var (
		data   []byte
		source string
		err    error
	)
	switch {
	case cfg.RewardTablesR2Key != "":
		if fetcher == nil {
			return nil, errors.New("REWARD_TABLES_R2_KEY set but R2 is not configured")
		}
		data, err = fetcher.FetchObject(ctx, cfg.RewardTablesR2Key)
		if err != nil {
			return nil, fmt.Errorf("fetch reward tables: %w", err)
		}
		source = "r2://" + cfg.RewardTablesR2Key
	case cfg.RewardTablesPath != "":
		data, err = os.ReadFile(cfg.RewardTablesPath)
		if err != nil {
			return nil, fmt.Errorf("read reward tables: %w", err)
		}
		source = cfg.RewardTablesPath
	default:
		data = defaultTables
		source = "embedded"
	}

	tables, err := DecodeTables(data)
	if err != nil {
		return nil, fmt.Errorf("reward tables (%s): %w", source, err)
	}
	log.Printf("📦 [TABLES] Loaded reward tables from %s (%d locations)", source, len(tables.Locations))
	return tables, nil
}

// DefaultTables decodes the embedded reward tables.
func DefaultTables() (*RewardTables, error) {
	return DecodeTables(defaultTables)
}

// DecodeTables parses and validates a YAML reward table document.
func DecodeTables(data []byte) (*RewardTables, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var t RewardTables
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("parse reward tables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *RewardTables) Validate() error {
	if len(t.Locations) == 0 {
		return errors.New("no locations defined")
	}
	if len(t.Rarities) == 0 {
		return errors.New("no rarity tiers defined")
	}

	var tierSum float64
	for _, tier := range t.Rarities {
		if tier.Weight < 0 {
			return fmt.Errorf("rarity %s: negative weight", tier.Name)
		}
		if tier.Level.Min < 1 || !tier.Level.valid() {
			return fmt.Errorf("rarity %s: invalid level range %d-%d", tier.Name, tier.Level.Min, tier.Level.Max)
		}
		if len(tier.Filters) == 0 {
			return fmt.Errorf("rarity %s: no franchise filters", tier.Name)
		}
		tierSum += tier.Weight
	}
	if tierSum <= 0 {
		return errors.New("rarity weights must sum to a positive value")
	}

	var itemSum float64
	for i, row := range t.Items {
		if row.Category == "" || row.Weight < 0 {
			return fmt.Errorf("item row %d: category required and weight must be >= 0", i)
		}
		if row.Quantity.Min < 1 || !row.Quantity.valid() {
			return fmt.Errorf("item row %d (%s): invalid quantity range", i, row.Category)
		}
		itemSum += row.Weight
	}
	if len(t.Items) > 0 && itemSum <= 0 {
		return errors.New("item weights must sum to a positive value")
	}

	for locName, loc := range t.Locations {
		if loc.Cooldown < 0 {
			return fmt.Errorf("location %s: negative cooldown", locName)
		}
		if len(loc.Activities) == 0 {
			return fmt.Errorf("location %s: no activities", locName)
		}
		for actName, act := range loc.Activities {
			if err := t.validateActivity(act); err != nil {
				return fmt.Errorf("%s/%s: %w", locName, actName, err)
			}
		}
	}
	return nil
}

func (t *RewardTables) validateActivity(act Activity) error {
	switch act.Scoring {
	case ScoringElapsed, ScoringAssessment:
	default:
		return fmt.Errorf("unknown scoring mode %q", act.Scoring)
	}
	if act.Duration.Min < MinDurationMinutes || act.Duration.Max > MaxDurationMinutes || !act.Duration.valid() {
		return fmt.Errorf("duration %d-%d outside [%d,%d]", act.Duration.Min, act.Duration.Max, MinDurationMinutes, MaxDurationMinutes)
	}
	if len(act.Prompts) == 0 {
		return errors.New("no prompts")
	}
	for _, p := range act.Prompts {
		if p.ID == "" || p.Text == "" {
			return errors.New("prompt id and text are required")
		}
		if _, ok := t.Difficulty[p.Difficulty]; !ok {
			return fmt.Errorf("prompt %s: unknown difficulty %q", p.ID, p.Difficulty)
		}
	}

	r := act.Rewards
	if r.BaseCoins < 0 || r.BaseLevels < 0 || r.FallbackCoins < 0 {
		return errors.New("base amounts must be >= 0")
	}
	if r.CoinBundle.Min < 1 || !r.CoinBundle.valid() || r.LevelBundle.Min < 1 || !r.LevelBundle.valid() {
		return errors.New("bundle ranges must start at 1 or more")
	}
	if r.ItemChance < 0 || r.ItemChance > 1 {
		return fmt.Errorf("item_chance %.2f outside [0,1]", r.ItemChance)
	}
	if r.EncounterSlots < 0 || r.EncounterSlots > MaxEncounterSlots {
		return fmt.Errorf("encounter_slots %d outside [0,%d]", r.EncounterSlots, MaxEncounterSlots)
	}
	if r.ItemWeight < 0 || r.MonsterWeight < 0 || (r.EncounterSlots > 0 && r.ItemWeight+r.MonsterWeight <= 0) {
		return errors.New("item/monster weights must be >= 0 with a positive sum")
	}
	for cat, bias := range r.CategoryBias {
		if bias < 0 {
			return fmt.Errorf("category_bias %s is negative", cat)
		}
	}
	if r.DefaultItem.Name == "" || r.DefaultItem.Category == "" {
		return errors.New("default_item name and category are required")
	}
	return nil
}
