// Package rates derives per-rarity, per-tier probability mass from a banner.
package rates

import (
	"fmt"
	"math"

	"github.com/okian/gachasim/internal/domain/model"
)

// Tenth-slot constants.
const (
	// TenthSlotFiveMultiplier scales the 5★ mass of the last ten-pull slot.
	TenthSlotFiveMultiplier = 2.0
	// TenthSlotFourTotal is the forced 4★ mass of the last ten-pull slot.
	TenthSlotFourTotal = 0.96

	sumTolerance = 1e-9
)

// Config holds the base rarity rates and the per-character rate-up slices.
type Config struct {
	Base         map[model.Rarity]float64 `json:"base"`
	RateUp1Slice map[model.Rarity]float64 `json:"rateup1_slice"`
	RateUp2Slice map[model.Rarity]float64 `json:"rateup2_slice"`
}

// DefaultConfig returns the fixed production rates.
func DefaultConfig() Config {
	return Config{
		Base: map[model.Rarity]float64{
			model.Rarity5: 0.02,
			model.Rarity4: 0.16,
			model.Rarity3: 0.82,
		},
		RateUp1Slice: map[model.Rarity]float64{
			model.Rarity5: 0.00729,
			model.Rarity4: 0.01789,
			model.Rarity3: 0.06349,
		},
		RateUp2Slice: map[model.Rarity]float64{
			model.Rarity5: 0.018,
			model.Rarity4: 0.09,
			model.Rarity3: 0.03174,
		},
	}
}

// Validate checks the base rates are non-negative and sum to 1.
func (c Config) Validate() error {
	sum := 0.0
	for _, r := range model.DrawOrder {
		p, ok := c.Base[r]
		if !ok || p < 0 {
			return fmt.Errorf("%w: base rate for %d★ is missing or negative", ErrInvalidRates, r)
		}
		if c.RateUp1Slice[r] < 0 || c.RateUp2Slice[r] < 0 {
			return fmt.Errorf("%w: negative rate-up slice for %d★", ErrInvalidRates, r)
		}
		sum += p
	}
	if math.Abs(sum-1) > sumTolerance {
		return fmt.Errorf("%w: base rates sum to %.6f", ErrInvalidRates, sum)
	}
	return nil
}

// Bucket is the probability mass of one rarity split by tier.
type Bucket struct {
	Total   float64 `json:"total"`
	Normal  float64 `json:"normal"`
	RateUp1 float64 `json:"rateup-1"`
	RateUp2 float64 `json:"rateup-2"`
}

// Share returns the mass assigned to tier t.
func (b Bucket) Share(t model.Tier) float64 {
	switch t {
	case model.TierRateUp1:
		return b.RateUp1
	case model.TierRateUp2:
		return b.RateUp2
	default:
		return b.Normal
	}
}

// scaled multiplies every component of b by f.
func (b Bucket) scaled(f float64) Bucket {
	return Bucket{Total: b.Total * f, Normal: b.Normal * f, RateUp1: b.RateUp1 * f, RateUp2: b.RateUp2 * f}
}

// PickTier maps u in [0,1) onto the tier thresholds rateup-1, rateup-2, normal
// scaled to the bucket's total. An empty bucket always yields normal.
func (b Bucket) PickTier(u float64) model.Tier {
	if b.Total <= 0 {
		return model.TierNormal
	}
	x := u * b.Total
	if x < b.RateUp1 {
		return model.TierRateUp1
	}
	if x < b.RateUp1+b.RateUp2 {
		return model.TierRateUp2
	}
	return model.TierNormal
}

// Table maps each rarity to its bucket.
type Table map[model.Rarity]Bucket

// Build computes the table for a character list. Rate-up mass is capped at
// the rarity's base rate: rateup-1 first, then rateup-2 with what remains,
// and normal receives the rest (possibly zero). When a rarity is
// over-subscribed the stored RateUp1/RateUp2 can be smaller than n·slice.
func Build(chars []model.CharacterEntry, cfg Config) Table {
	n1 := map[model.Rarity]int{}
	n2 := map[model.Rarity]int{}
	for _, c := range chars {
		switch c.Tier {
		case model.TierRateUp1:
			n1[c.Rarity]++
		case model.TierRateUp2:
			n2[c.Rarity]++
		}
	}

	t := make(Table, len(model.DrawOrder))
	for _, r := range model.DrawOrder {
		p := cfg.Base[r]
		r1 := math.Min(float64(n1[r])*cfg.RateUp1Slice[r], p)
		r2 := math.Min(float64(n2[r])*cfg.RateUp2Slice[r], p-r1)
		normal := math.Max(0, p-r1-r2)
		t[r] = Bucket{Total: r1 + r2 + normal, Normal: normal, RateUp1: r1, RateUp2: r2}
	}
	return t
}

// Boosted returns the table for the last slot of a ten-pull: 5★ mass is
// doubled, 4★ mass is forced to TenthSlotFourTotal keeping its tier
// proportions, and 3★ keeps whatever mass is left.
func (t Table) Boosted() Table {
	out := make(Table, len(t))
	five := t[model.Rarity5].scaled(TenthSlotFiveMultiplier)
	out[model.Rarity5] = five

	four := t[model.Rarity4]
	if four.Total > 0 {
		four = four.scaled(TenthSlotFourTotal / four.Total)
	} else {
		four = Bucket{Total: TenthSlotFourTotal, Normal: TenthSlotFourTotal}
	}
	out[model.Rarity4] = four

	rest := math.Max(0, 1-five.Total-four.Total)
	three := t[model.Rarity3]
	if three.Total > 0 {
		three = three.scaled(rest / three.Total)
	} else {
		three = Bucket{Total: rest, Normal: rest}
	}
	out[model.Rarity3] = three
	return out
}

// PickRarity maps u in [0,1) onto cumulative thresholds 5★, 4★, else 3★.
func (t Table) PickRarity(u float64) model.Rarity {
	acc := 0.0
	for _, r := range model.DrawOrder[:len(model.DrawOrder)-1] {
		acc += t[r].Total
		if u < acc {
			return r
		}
	}
	return model.Rarity3
}

// PickAtLeastFour maps u onto 5★ versus 4★ renormalized over their combined mass.
func (t Table) PickAtLeastFour(u float64) model.Rarity {
	p5, p4 := t[model.Rarity5].Total, t[model.Rarity4].Total
	if p5+p4 <= 0 {
		return model.Rarity4
	}
	if u < p5/(p5+p4) {
		return model.Rarity5
	}
	return model.Rarity4
}
