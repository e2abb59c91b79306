package model

// Snapshot is the full persisted session state. Field names match the
// key space used by the session store so an export round-trips exactly.
type Snapshot struct {
	CurrencyLedger
	Levels         map[string]int `json:"sa_levels"`
	Stats          Stats          `json:"stats"`
	History        []HistoryEntry `json:"history"`
	SelectedBanner string         `json:"selected_banner"`

	// Seq orders snapshots produced by the session. It is not persisted.
	Seq uint64 `json:"-"`
}

// DefaultSnapshot returns the state used on first start or when storage is unusable.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		CurrencyLedger: CurrencyLedger{Crystals: DefaultCrystals, Tickets: DefaultTickets},
		Levels:         map[string]int{},
		Stats:          NewStats(),
		History:        []HistoryEntry{},
	}
}

// ClampLevel bounds a level to the valid progression range.
func ClampLevel(level int) int {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}
