// Package draw performs weighted single-unit draws against a rate table.
package draw

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/internal/domain/rates"
)

// DefaultPlaceholderImage is shown for synthetic placeholder results.
const DefaultPlaceholderImage = "/placeholder-character.jpg"

// LevelSource reports the mastery level of a character, 0 when never drawn.
type LevelSource interface {
	Level(characterID string) int
}

// LevelMap is a read-only LevelSource backed by a plain map.
type LevelMap map[string]int

// Level implements LevelSource.
func (m LevelMap) Level(id string) int { return m[id] }

// Drawer produces one pull result per call. It never fails: empty pools
// degrade to synthetic placeholders.
type Drawer struct {
	rng              RandomSource
	newID            func() string
	placeholderImage string
}

// Option configures a Drawer.
type Option func(*Drawer)

// WithRNG sets the random source.
func WithRNG(rng RandomSource) Option {
	return func(d *Drawer) {
		if rng != nil {
			d.rng = rng
		}
	}
}

// WithIDGenerator overrides the placeholder id suffix generator.
func WithIDGenerator(fn func() string) Option {
	return func(d *Drawer) {
		if fn != nil {
			d.newID = fn
		}
	}
}

// WithPlaceholderImage sets the image used by placeholder results.
func WithPlaceholderImage(img string) Option {
	return func(d *Drawer) {
		if img != "" {
			d.placeholderImage = img
		}
	}
}

// NewDrawer constructs a Drawer.
func NewDrawer(opts ...Option) *Drawer {
	d := &Drawer{
		rng:              DefaultRNG(),
		newID:            uuid.NewString,
		placeholderImage: DefaultPlaceholderImage,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Draw rolls a rarity over the table, then a tier within it, then a character.
func (d *Drawer) Draw(t rates.Table, chars []model.CharacterEntry, levels LevelSource) model.PullResult {
	r := t.PickRarity(d.rng.Float64())
	return d.resolve(t, r, chars, levels)
}

// DrawAtLeastFour is Draw restricted to rarities 4 and 5.
func (d *Drawer) DrawAtLeastFour(t rates.Table, chars []model.CharacterEntry, levels LevelSource) model.PullResult {
	r := t.PickAtLeastFour(d.rng.Float64())
	return d.resolve(t, r, chars, levels)
}

// resolve picks a character of rarity r. IsRateUp follows the rolled tier,
// even when the tier fallback lands on a character of another tier.
func (d *Drawer) resolve(t rates.Table, r model.Rarity, chars []model.CharacterEntry, levels LevelSource) model.PullResult {
	tier := t[r].PickTier(d.rng.Float64())

	pool := eligible(chars, levels, func(c model.CharacterEntry) bool {
		return c.Rarity == r && c.Tier == tier
	})
	if len(pool) == 0 {
		pool = eligible(chars, levels, func(c model.CharacterEntry) bool {
			return c.Rarity == r
		})
	}
	if len(pool) == 0 {
		return d.placeholder(r)
	}

	c := pool[d.rng.IntN(len(pool))]
	return model.PullResult{
		CharacterID: c.CharacterID,
		Name:        c.Name,
		Image:       c.Image,
		Rarity:      c.Rarity,
		Tier:        c.Tier,
		IsRateUp:    tier.IsRateUp(),
	}
}

func (d *Drawer) placeholder(r model.Rarity) model.PullResult {
	return model.PullResult{
		CharacterID: model.PlaceholderPrefix + d.newID(),
		Name:        fmt.Sprintf("Random Character %d★", r),
		Image:       d.placeholderImage,
		Rarity:      r,
		Tier:        model.TierNormal,
		IsRateUp:    false,
	}
}

// eligible filters characters by match, excluding maxed ones.
func eligible(chars []model.CharacterEntry, levels LevelSource, match func(model.CharacterEntry) bool) []model.CharacterEntry {
	var out []model.CharacterEntry
	for _, c := range chars {
		if !match(c) {
			continue
		}
		if levels != nil && levels.Level(c.CharacterID) >= model.MaxLevel {
			continue
		}
		out = append(out, c)
	}
	return out
}
