// services/creature_roller.go
package services

import (
	"context"
	"errors"
	"log"
	"time"

	"activity-reward-system/config"
	"activity-reward-system/models"
)

const defaultCatalogTimeout = 2 * time.Second

// CreatureRoller turns a rarity tier into one concrete creature.
type CreatureRoller struct {
	Catalog CreatureCatalog
	Timeout time.Duration
}

func NewCreatureRoller(catalog CreatureCatalog, timeout time.Duration) *CreatureRoller {
	if timeout <= 0 {
		timeout = defaultCatalogTimeout
	}
	return &CreatureRoller{Catalog: catalog, Timeout: timeout}
}

// Filters translates a tier into per-franchise filters, adding location types where the franchise uses them.
func (r *CreatureRoller) Filters(tier config.RarityTier, locationTypes []string) []CreatureFilter {
	out := make([]CreatureFilter, 0, len(tier.Filters))
	for _, f := range tier.Filters {
		cf := CreatureFilter{
			Franchise: f.Franchise,
			Stages:    f.Stages,
			Ranks:     f.Ranks,
			Rarities:  f.Rarities,
		}
		if f.MatchTypes && len(locationTypes) > 0 {
			cf.Types = locationTypes
		}
		out = append(out, cf)
	}
	return out
}

// Roll tries the tier's franchises in random order and returns the first match.
// A nil creature with a nil error means no franchise had a match.
// A timeout stops the roll at once; other lookup errors move on to the next franchise.
func (r *CreatureRoller) Roll(ctx context.Context, src Source, tier config.RarityTier, locationTypes []string) (*models.SpeciesDescriptor, error) {
	filters := r.Filters(tier, locationTypes)
	for i := len(filters) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		filters[i], filters[j] = filters[j], filters[i]
	}

	var lastErr error
	for _, f := range filters {
		creature, err := r.lookup(ctx, f)
		if errors.Is(err, ErrCatalogTimeout) {
			return nil, err
		}
		if err != nil {
			log.Printf("⚠️ [ROLLER] %s lookup failed for tier %s: %v", f.Franchise, tier.Name, err)
			lastErr = err
			continue
		}
		if creature != nil {
			return creature, nil
		}
	}
	return nil, lastErr
}

func (r *CreatureRoller) lookup(ctx context.Context, f CreatureFilter) (*models.SpeciesDescriptor, error) {
	lctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	type result struct {
		creature *models.SpeciesDescriptor
		err      error
	}
	done := make(chan result, 1)
	go func() {
		c, err := r.Catalog.FindRandom(lctx, f)
		done <- result{c, err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(lctx.Err(), context.DeadlineExceeded) {
			return nil, ErrCatalogTimeout
		}
		return res.creature, res.err
	case <-lctx.Done():
		if errors.Is(lctx.Err(), context.DeadlineExceeded) {
			return nil, ErrCatalogTimeout
		}
		return nil, ErrCatalogUnavailable
	}
}
