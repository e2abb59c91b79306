package simulate

import (
	"math"

	"github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/internal/domain/pull"
	"github.com/okian/gachasim/internal/domain/rates"
	"github.com/okian/gachasim/internal/domain/types"
)

// Expectation holds the theoretical per-slot rarity probabilities of a table.
type Expectation struct {
	Ordinary map[model.Rarity]float64 `json:"ordinary"`
	// Tenth includes the 4★ floor: when the first nine slots and the boosted
	// tenth roll are all 3★, the tenth is redrawn over 4★ and 5★ only.
	Tenth map[model.Rarity]float64 `json:"tenth"`
	// RateUpShare is the chance a unit of each rarity rolls a rate-up tier.
	// Placeholders never count, so a maxed-out rarity reads low.
	RateUpShare map[model.Rarity]float64 `json:"rate_up_share"`
}

// Expect derives the expectation for a rate table.
func Expect(t rates.Table) Expectation {
	e := Expectation{
		Ordinary:    map[model.Rarity]float64{},
		Tenth:       map[model.Rarity]float64{},
		RateUpShare: map[model.Rarity]float64{},
	}
	for _, r := range model.DrawOrder {
		b := t[r]
		e.Ordinary[r] = b.Total
		if b.Total > 0 {
			e.RateUpShare[r] = (b.RateUp1 + b.RateUp2) / b.Total
		}
	}

	boosted := t.Boosted()
	allThree := math.Pow(t[model.Rarity3].Total, pull.MultiCount-1) * boosted[model.Rarity3].Total
	p5, p4 := t[model.Rarity5].Total, t[model.Rarity4].Total
	share5 := 0.0
	if p5+p4 > 0 {
		share5 = p5 / (p5 + p4)
	}
	e.Tenth[model.Rarity5] = boosted[model.Rarity5].Total + allThree*share5
	e.Tenth[model.Rarity4] = boosted[model.Rarity4].Total + allThree*(1-share5)
	e.Tenth[model.Rarity3] = boosted[model.Rarity3].Total - allThree
	return e
}

// tableFromView rebuilds a rate table from the HTTP rates view.
func tableFromView(v types.RatesView) rates.Table {
	t := rates.Table{}
	for r, tr := range v.Single {
		t[model.Rarity(r)] = rates.Bucket{Total: tr.Total, Normal: tr.Normal, RateUp1: tr.RateUp1, RateUp2: tr.RateUp2}
	}
	return t
}
