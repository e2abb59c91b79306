// Package types contains the wire shapes exchanged with the banner backend
// and the HTTP API.
package types

import (
	"fmt"
	"strings"

	"github.com/okian/gachasim/internal/domain/model"
)

// Wire tier names used by the banner backend.
const (
	WireNormal   = "normal"
	WireRateUp   = "rateup"
	WireFeatured = "featured"
)

// ParseTier maps a wire tier to the engine tier. The engine names
// rateup-1 and rateup-2 are accepted as aliases. Empty means normal.
func ParseTier(s string) (model.Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", WireNormal:
		return model.TierNormal, nil
	case WireRateUp, string(model.TierRateUp1):
		return model.TierRateUp1, nil
	case WireFeatured, string(model.TierRateUp2):
		return model.TierRateUp2, nil
	default:
		return "", fmt.Errorf("unknown tier %q", s)
	}
}

// FormatTier maps an engine tier back to its wire name.
func FormatTier(t model.Tier) string {
	switch t {
	case model.TierRateUp1:
		return WireRateUp
	case model.TierRateUp2:
		return WireFeatured
	default:
		return WireNormal
	}
}

// Character is a banner character as served by the backend.
// Legacy documents carry _id and rateUpStatus instead of characterId and tier.
type Character struct {
	CharacterID  string `json:"characterId,omitempty" yaml:"characterId,omitempty"`
	LegacyID     string `json:"_id,omitempty" yaml:"_id,omitempty"`
	Name         string `json:"name" yaml:"name"`
	Image        string `json:"image,omitempty" yaml:"image,omitempty"`
	Rarity       int    `json:"rarity" yaml:"rarity"`
	Tier         string `json:"tier,omitempty" yaml:"tier,omitempty"`
	RateUpStatus string `json:"rateUpStatus,omitempty" yaml:"rateUpStatus,omitempty"`
}

// ID returns the character id, preferring characterId over _id.
func (c Character) ID() string {
	if c.CharacterID != "" {
		return c.CharacterID
	}
	return c.LegacyID
}

// ToModel converts the wire character into an engine entry.
func (c Character) ToModel() (model.CharacterEntry, error) {
	id := c.ID()
	if id == "" {
		return model.CharacterEntry{}, fmt.Errorf("character %q has no id", c.Name)
	}
	r := model.Rarity(c.Rarity)
	if !r.Valid() {
		return model.CharacterEntry{}, fmt.Errorf("character %s: invalid rarity %d", id, c.Rarity)
	}
	raw := c.Tier
	if raw == "" {
		raw = c.RateUpStatus
	}
	tier, err := ParseTier(raw)
	if err != nil {
		return model.CharacterEntry{}, fmt.Errorf("character %s: %w", id, err)
	}
	return model.CharacterEntry{
		CharacterID: id,
		Name:        c.Name,
		Image:       c.Image,
		Rarity:      r,
		Tier:        tier,
	}, nil
}

// Banner is a banner document as served by the backend.
type Banner struct {
	ID         string      `json:"id,omitempty" yaml:"id,omitempty"`
	LegacyID   string      `json:"_id,omitempty" yaml:"_id,omitempty"`
	Name       string      `json:"name" yaml:"name"`
	Image      string      `json:"image,omitempty" yaml:"image,omitempty"`
	Characters []Character `json:"characters" yaml:"characters"`
}

// ToModel converts the banner. Characters that fail conversion are skipped
// and their errors returned alongside the normalized banner.
func (b Banner) ToModel() (model.Banner, []error) {
	id := b.ID
	if id == "" {
		id = b.LegacyID
	}
	out := model.Banner{ID: id, Name: b.Name, Image: b.Image}
	var errs []error
	for _, c := range b.Characters {
		entry, err := c.ToModel()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out.Characters = append(out.Characters, entry)
	}
	return out.Normalized(), errs
}

// FromModel converts an engine banner to its wire shape.
func FromModel(b model.Banner) Banner {
	out := Banner{ID: b.ID, Name: b.Name, Image: b.Image, Characters: make([]Character, 0, len(b.Characters))}
	for _, c := range b.Characters {
		out.Characters = append(out.Characters, Character{
			CharacterID: c.CharacterID,
			Name:        c.Name,
			Image:       c.Image,
			Rarity:      int(c.Rarity),
			Tier:        FormatTier(c.Tier),
		})
	}
	return out
}

// BannerSummary is the list view of a banner.
type BannerSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Image      string `json:"image,omitempty"`
	Characters int    `json:"characters"`
	Selected   bool   `json:"selected"`
}

// TierRates is the per-tier mass of one rarity.
type TierRates struct {
	Total   float64 `json:"total"`
	Normal  float64 `json:"normal"`
	RateUp1 float64 `json:"rateup-1"`
	RateUp2 float64 `json:"rateup-2"`
}

// RatesView describes the ordinary and tenth-slot tables of a banner.
type RatesView struct {
	BannerID   string            `json:"banner_id"`
	Single     map[int]TierRates `json:"single"`
	TenthSlot  map[int]TierRates `json:"tenth_slot"`
	Guaranteed map[int]float64   `json:"guaranteed"`
}

// PullResponse is returned by the pull endpoints.
type PullResponse struct {
	Results  []model.PullResult   `json:"results"`
	Wallet   model.CurrencyLedger `json:"wallet"`
	Replayed bool                 `json:"replayed"`
}
