package model

import (
	"strings"
	"time"
)

// Progression bounds.
const (
	MinLevel = 1
	MaxLevel = 100
)

// Wallet defaults used on first start and after a full reset.
const (
	DefaultCrystals = 3000
	DefaultTickets  = 10
)

// PlaceholderPrefix marks synthetic results produced for empty pools.
const PlaceholderPrefix = "placeholder-"

// CurrencyType names the balance a pull was paid with.
type CurrencyType string

// Currency types.
const (
	CurrencyCrystals CurrencyType = "crystals"
	CurrencyTickets  CurrencyType = "tickets"
)

// PullResult is one drawn unit.
type PullResult struct {
	CharacterID string `json:"characterId"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	Rarity      Rarity `json:"rarity"`
	Tier        Tier   `json:"tier"`
	IsRateUp    bool   `json:"isRateUp"`
}

// IsPlaceholder reports whether the result stands in for an empty pool.
func (p PullResult) IsPlaceholder() bool {
	return strings.HasPrefix(p.CharacterID, PlaceholderPrefix)
}

// CurrencyLedger holds the two spendable balances.
type CurrencyLedger struct {
	Crystals int `json:"crystals"`
	Tickets  int `json:"tickets"`
}

// ProgressionEntry is the mastery level of one drawn character.
type ProgressionEntry struct {
	CharacterID string `json:"characterId"`
	Level       int    `json:"level"`
}

// HistoryEntry records one paid pull batch.
type HistoryEntry struct {
	Timestamp    time.Time    `json:"timestamp"`
	BannerName   string       `json:"bannerName"`
	Results      []PullResult `json:"results"`
	Cost         int          `json:"cost"`
	CurrencyType CurrencyType `json:"currencyType"`
}

// Stats are cumulative counters over all recorded history.
type Stats struct {
	TotalPulls   int            `json:"totalPulls"`
	RarityCounts map[Rarity]int `json:"rarityCounts"`
	RateUpCount  int            `json:"rateUpCount"`
}

// NewStats returns zeroed counters with every rarity present.
func NewStats() Stats {
	return Stats{RarityCounts: map[Rarity]int{Rarity3: 0, Rarity4: 0, Rarity5: 0}}
}

// Clone returns a deep copy of s.
func (s Stats) Clone() Stats {
	out := NewStats()
	out.TotalPulls = s.TotalPulls
	out.RateUpCount = s.RateUpCount
	for r, n := range s.RarityCounts {
		out.RarityCounts[r] = n
	}
	return out
}

// Equal compares counters, treating missing rarities as zero.
func (s Stats) Equal(o Stats) bool {
	if s.TotalPulls != o.TotalPulls || s.RateUpCount != o.RateUpCount {
		return false
	}
	for _, r := range DrawOrder {
		if s.RarityCounts[r] != o.RarityCounts[r] {
			return false
		}
	}
	return true
}
