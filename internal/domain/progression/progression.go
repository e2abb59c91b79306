// Package progression tracks capped mastery levels per drawn character.
package progression

import (
	"sort"
	"sync"

	"github.com/okian/gachasim/internal/domain/draw"
	"github.com/okian/gachasim/internal/domain/model"
)

// Step returns the level gain for a repeat draw of the given rarity.
func Step(r model.Rarity) int {
	switch r {
	case model.Rarity5:
		return 20
	case model.Rarity4:
		return 5
	default:
		return 1
	}
}

// Tracker holds mastery levels. Placeholders never create entries.
type Tracker struct {
	mu     sync.RWMutex
	levels map[string]int
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{levels: make(map[string]int)}
}

// Restore replaces all levels, clamping each into [1,100] and dropping
// placeholder ids. It returns how many entries were adjusted.
func (t *Tracker) Restore(levels map[string]int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	adjusted := 0
	t.levels = make(map[string]int, len(levels))
	for id, lvl := range levels {
		if id == "" || (model.PullResult{CharacterID: id}).IsPlaceholder() {
			adjusted++
			continue
		}
		clamped := model.ClampLevel(lvl)
		if clamped != lvl {
			adjusted++
		}
		t.levels[id] = clamped
	}
	return adjusted
}

// Level returns the level of id, 0 when it was never drawn.
func (t *Tracker) Level(id string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.levels[id]
}

// Snapshot returns a frozen copy usable as a draw.LevelSource, so that all
// slots of one batch see the same levels.
func (t *Tracker) Snapshot() draw.LevelMap {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(draw.LevelMap, len(t.levels))
	for id, lvl := range t.levels {
		out[id] = lvl
	}
	return out
}

// Levels returns a copy of the raw id to level map.
func (t *Tracker) Levels() map[string]int {
	return map[string]int(t.Snapshot())
}

// Apply folds a batch of results into the levels in order.
func (t *Tracker) Apply(results []model.PullResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range results {
		if r.IsPlaceholder() {
			continue
		}
		cur, seen := t.levels[r.CharacterID]
		if !seen {
			t.levels[r.CharacterID] = model.MinLevel
			continue
		}
		t.levels[r.CharacterID] = min(model.MaxLevel, cur+Step(r.Rarity))
	}
}

// Entries lists all levels sorted by character id.
func (t *Tracker) Entries() []model.ProgressionEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.ProgressionEntry, 0, len(t.levels))
	for id, lvl := range t.levels {
		out = append(out, model.ProgressionEntry{CharacterID: id, Level: lvl})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CharacterID < out[j].CharacterID })
	return out
}

// Len returns the number of tracked characters.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.levels)
}

// Clear drops every entry.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.levels = make(map[string]int)
}
