// Package model contains domain models passed between layers.
package model

// Rarity is the star grade of a character.
type Rarity int

// Supported rarities.
const (
	Rarity3 Rarity = 3
	Rarity4 Rarity = 4
	Rarity5 Rarity = 5
)

// DrawOrder lists rarities in the order cumulative thresholds are evaluated.
var DrawOrder = []Rarity{Rarity5, Rarity4, Rarity3} //nolint:gochecknoglobals // fixed lookup order

// Valid reports whether r is one of 3, 4 or 5.
func (r Rarity) Valid() bool {
	return r == Rarity3 || r == Rarity4 || r == Rarity5
}

// Tier is the engine's rate-up classification of a banner character.
type Tier string

// Engine tiers. Wire names are mapped in the types package.
const (
	TierNormal  Tier = "normal"
	TierRateUp1 Tier = "rateup-1"
	TierRateUp2 Tier = "rateup-2"
)

// TierOrder lists tiers in the order cumulative thresholds are evaluated.
var TierOrder = []Tier{TierRateUp1, TierRateUp2, TierNormal} //nolint:gochecknoglobals // fixed lookup order

// Valid reports whether t is a known engine tier.
func (t Tier) Valid() bool {
	return t == TierNormal || t == TierRateUp1 || t == TierRateUp2
}

// IsRateUp reports whether t is one of the rate-up tiers.
func (t Tier) IsRateUp() bool {
	return t == TierRateUp1 || t == TierRateUp2
}

// CharacterEntry is one character as listed on a banner.
type CharacterEntry struct {
	CharacterID string `json:"characterId"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	Rarity      Rarity `json:"rarity"`
	Tier        Tier   `json:"tier"`
}

// Banner is a read-only pool definition owned by the banner backend.
type Banner struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Image      string           `json:"image"`
	Characters []CharacterEntry `json:"characters"`
}

// Normalized returns a copy of b where every character id appears once
// (first occurrence wins) and entries with an unknown rarity or tier are dropped.
func (b Banner) Normalized() Banner {
	out := b
	out.Characters = make([]CharacterEntry, 0, len(b.Characters))
	seen := make(map[string]struct{}, len(b.Characters))
	for _, c := range b.Characters {
		if c.CharacterID == "" || !c.Rarity.Valid() || !c.Tier.Valid() {
			continue
		}
		if _, dup := seen[c.CharacterID]; dup {
			continue
		}
		seen[c.CharacterID] = struct{}{}
		out.Characters = append(out.Characters, c)
	}
	return out
}

// CountByTier returns how many characters of rarity r carry tier t.
func (b Banner) CountByTier(r Rarity, t Tier) int {
	n := 0
	for _, c := range b.Characters {
		if c.Rarity == r && c.Tier == t {
			n++
		}
	}
	return n
}
