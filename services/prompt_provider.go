// services/prompt_provider.go
package services

import (
	"sort"
	"time"

	"activity-reward-system/config"
)

// Flavor is the presentational text attached to a session.
type Flavor struct {
	LocationName string `json:"location_name"`
	ActivityName string `json:"activity_name"`
	FlavorText   string `json:"flavor_text"`
	ImageURL     string `json:"image_url,omitempty"`
}

type ActivityInfo struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Scoring  string       `json:"scoring"`
	Duration config.Range `json:"duration_minutes"`
	Flavor   Flavor       `json:"flavor"`
}

type LocationInfo struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	FlavorText      string         `json:"flavor_text"`
	ImageURL        string         `json:"image_url,omitempty"`
	CooldownSeconds int64          `json:"cooldown_seconds"`
	Activities      []ActivityInfo `json:"activities"`
}

// PromptProvider hands out narrative prompts and flavor for (location, activity) pairs.
type PromptProvider struct {
	tables *config.RewardTables
}

func NewPromptProvider(tables *config.RewardTables) *PromptProvider {
	return &PromptProvider{tables: tables}
}

// RandomPrompt draws one prompt for the pair.
func (p *PromptProvider) RandomPrompt(src Source, location, activity string) (config.Prompt, error) {
	_, act, ok := p.tables.Lookup(location, activity)
	if !ok {
		return config.Prompt{}, ErrInvalidLocationOrActivity
	}
	return act.Prompts[src.IntN(len(act.Prompts))], nil
}

// Flavor returns the display text for the pair.
func (p *PromptProvider) Flavor(location, activity string) (Flavor, error) {
	loc, act, ok := p.tables.Lookup(location, activity)
	if !ok {
		return Flavor{}, ErrInvalidLocationOrActivity
	}
	return flavorFor(loc, act), nil
}

func flavorFor(loc config.Location, act config.Activity) Flavor {
	f := Flavor{
		LocationName: loc.Name,
		ActivityName: act.Name,
		FlavorText:   act.FlavorText,
		ImageURL:     act.ImageURL,
	}
	if f.FlavorText == "" {
		f.FlavorText = loc.FlavorText
	}
	if f.ImageURL == "" {
		f.ImageURL = loc.ImageURL
	}
	return f
}

// Locations lists the enumeration in a stable order.
func (p *PromptProvider) Locations() []LocationInfo {
	out := make([]LocationInfo, 0, len(p.tables.Locations))
	for id, loc := range p.tables.Locations {
		info := LocationInfo{
			ID:              id,
			Name:            loc.Name,
			FlavorText:      loc.FlavorText,
			ImageURL:        loc.ImageURL,
			CooldownSeconds: int64(loc.Cooldown / time.Second),
		}
		for actID, act := range loc.Activities {
			info.Activities = append(info.Activities, ActivityInfo{
				ID:       actID,
				Name:     act.Name,
				Scoring:  act.Scoring,
				Duration: act.Duration,
				Flavor:   flavorFor(loc, act),
			})
		}
		sort.Slice(info.Activities, func(i, j int) bool { return info.Activities[i].ID < info.Activities[j].ID })
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
