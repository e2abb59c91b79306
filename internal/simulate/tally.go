package simulate

import (
	"github.com/okian/gachasim/internal/domain/model"
)

// Tally counts what a run drew. Ordinary slots are single pulls and the
// first nine slots of a ten-pull; the tenth slot is counted apart.
type Tally struct {
	Batches             int                  `json:"batches"`
	Singles             int                  `json:"singles"`
	OrdinarySlots       int                  `json:"ordinary_slots"`
	Ordinary            map[model.Rarity]int `json:"ordinary"`
	TenthSlots          int                  `json:"tenth_slots"`
	Tenth               map[model.Rarity]int `json:"tenth"`
	RateUp              map[model.Rarity]int `json:"rate_up"`
	Placeholders        int                  `json:"placeholders"`
	Guaranteed          int                  `json:"guaranteed"`
	GuaranteeViolations int                  `json:"guarantee_violations"`
	Replays             int                  `json:"replays"`
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{
		Ordinary: map[model.Rarity]int{},
		Tenth:    map[model.Rarity]int{},
		RateUp:   map[model.Rarity]int{},
	}
}

// AddTen records a ten-pull batch.
func (t *Tally) AddTen(results []model.PullResult, guaranteed bool) {
	t.Batches++
	if guaranteed {
		t.Guaranteed++
	}
	floor := false
	for i, r := range results {
		if r.Rarity >= model.Rarity4 {
			floor = true
		}
		if i == len(results)-1 {
			t.TenthSlots++
			t.Tenth[r.Rarity]++
		} else {
			t.OrdinarySlots++
			t.Ordinary[r.Rarity]++
		}
		t.mark(r)
	}
	if !floor {
		t.GuaranteeViolations++
	}
}

// AddSingle records one single pull.
func (t *Tally) AddSingle(r model.PullResult) {
	t.Singles++
	t.OrdinarySlots++
	t.Ordinary[r.Rarity]++
	t.mark(r)
}

func (t *Tally) mark(r model.PullResult) {
	if r.IsPlaceholder() {
		t.Placeholders++
		return
	}
	if r.IsRateUp {
		t.RateUp[r.Rarity]++
	}
}

// Slots returns every drawn unit counted so far.
func (t *Tally) Slots() int {
	return t.OrdinarySlots + t.TenthSlots
}

// Merge adds o into t.
func (t *Tally) Merge(o *Tally) {
	t.Batches += o.Batches
	t.Singles += o.Singles
	t.OrdinarySlots += o.OrdinarySlots
	t.TenthSlots += o.TenthSlots
	t.Placeholders += o.Placeholders
	t.Guaranteed += o.Guaranteed
	t.GuaranteeViolations += o.GuaranteeViolations
	t.Replays += o.Replays
	for r, n := range o.Ordinary {
		t.Ordinary[r] += n
	}
	for r, n := range o.Tenth {
		t.Tenth[r] += n
	}
	for r, n := range o.RateUp {
		t.RateUp[r] += n
	}
}
