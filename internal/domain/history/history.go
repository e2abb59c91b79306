// Package history keeps the append-only pull log and its running counters.
package history

import (
	"sync"
	"time"

	"github.com/okian/gachasim/internal/domain/model"
)

// Aggregate computes stats over a history. Placeholders count toward
// rarity totals but never toward rate-up hits.
func Aggregate(entries []model.HistoryEntry) model.Stats {
	s := model.NewStats()
	for _, h := range entries {
		add(&s, h.Results)
	}
	return s
}

func add(s *model.Stats, results []model.PullResult) {
	s.TotalPulls += len(results)
	for _, r := range results {
		s.RarityCounts[r.Rarity]++
		if r.IsRateUp && !r.IsPlaceholder() {
			s.RateUpCount++
		}
	}
}

// Recorder appends history entries and updates stats in the same step.
type Recorder struct {
	mu      sync.RWMutex
	entries []model.HistoryEntry
	stats   model.Stats
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{stats: model.NewStats()}
}

// RecordBatch appends one entry for a paid batch and returns it.
func (r *Recorder) RecordBatch(at time.Time, results []model.PullResult, cost int, currency model.CurrencyType, bannerName string) model.HistoryEntry {
	entry := model.HistoryEntry{
		Timestamp:    at,
		BannerName:   bannerName,
		Results:      append([]model.PullResult(nil), results...),
		Cost:         cost,
		CurrencyType: currency,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	add(&r.stats, entry.Results)
	return entry
}

// Restore replaces the log. Stats are recomputed from entries when the
// persisted counters disagree; the return value reports whether that happened.
func (r *Recorder) Restore(entries []model.HistoryEntry, stats model.Stats) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append([]model.HistoryEntry(nil), entries...)
	derived := Aggregate(r.entries)
	if stats.Equal(derived) {
		r.stats = stats.Clone()
		return false
	}
	r.stats = derived
	return true
}

// Clear drops all history and zeroes the counters.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	r.stats = model.NewStats()
}

// Stats returns a copy of the counters.
func (r *Recorder) Stats() model.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats.Clone()
}

// Entries returns the log in append order.
func (r *Recorder) Entries() []model.HistoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.HistoryEntry{}, r.entries...)
}

// View returns the log in append order without copying. Entries are never
// mutated after being recorded, and the capacity is clipped so appends do
// not alias the returned slice.
func (r *Recorder) View() []model.HistoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.entries)
	return r.entries[:n:n]
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (r *Recorder) Recent(limit int) []model.HistoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]model.HistoryEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, r.entries[i])
	}
	return out
}

// Len returns the number of recorded batches.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
