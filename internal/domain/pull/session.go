// Package pull implements the pull session: the only entry point that
// mutates currency, progression, stats and history.
package pull

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/gachasim/internal/domain/draw"
	"github.com/okian/gachasim/internal/domain/history"
	"github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/internal/domain/progression"
	"github.com/okian/gachasim/internal/domain/rates"
	"github.com/okian/gachasim/pkg/logger"
	"github.com/okian/gachasim/pkg/metrics"
)

// Costs.
const (
	SingleCost = 5
	TicketCost = 1
	MultiCost  = 50
	MultiCount = 10
)

// Pull kinds used in logs and metrics.
const (
	KindSingle = "single"
	KindTen    = "ten"
)

// Persister receives a snapshot after every mutation. Calls are made in
// mutation order; implementations must not block.
type Persister interface {
	Persist(ctx context.Context, snap model.Snapshot)
}

type nopPersister struct{}

func (nopPersister) Persist(context.Context, model.Snapshot) {}

// Receipt is the outcome of a successful pull.
type Receipt struct {
	Results    []model.PullResult   `json:"results"`
	Cost       int                  `json:"cost"`
	Currency   model.CurrencyType   `json:"currencyType"`
	Wallet     model.CurrencyLedger `json:"wallet"`
	Guaranteed bool                 `json:"guaranteed"`
}

// RestoreReport describes corrections made while restoring a snapshot.
type RestoreReport struct {
	LevelsAdjusted  int  `json:"levels_adjusted"`
	StatsRecomputed bool `json:"stats_recomputed"`
}

// Session holds one player's simulator state.
type Session struct {
	mu       sync.Mutex
	inFlight atomic.Bool

	wallet     model.CurrencyLedger
	defaults   model.CurrencyLedger
	banner     *model.Banner
	selectedID string
	seq        uint64

	tracker  *progression.Tracker
	recorder *history.Recorder

	drawer      *draw.Drawer
	rateCfg     rates.Config
	persister   Persister
	revealDelay time.Duration
	now         func() time.Time
	logger      logger.Logger
}

// NewSession constructs a Session with the default wallet and no banner.
func NewSession(opts ...Option) *Session {
	defaults := model.CurrencyLedger{Crystals: model.DefaultCrystals, Tickets: model.DefaultTickets}
	s := &Session{
		wallet:    defaults,
		defaults:  defaults,
		tracker:   progression.NewTracker(),
		recorder:  history.NewRecorder(),
		drawer:    draw.NewDrawer(),
		rateCfg:   rates.DefaultConfig(),
		persister: nopPersister{},
		now:       time.Now,
		logger:    logger.GetOr(logger.Nop()).Named("session"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// PullSingle draws one unit for SingleCost crystals, or TicketCost tickets
// when useTicket is set.
func (s *Session) PullSingle(ctx context.Context, useTicket bool) (Receipt, error) {
	return s.pull(ctx, KindSingle, useTicket)
}

// PullTen draws ten units for MultiCost crystals with a 4★ floor.
func (s *Session) PullTen(ctx context.Context) (Receipt, error) {
	return s.pull(ctx, KindTen, false)
}

func (s *Session) pull(ctx context.Context, kind string, useTicket bool) (Receipt, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.reject(ctx, kind, ErrPullInProgress)
		return Receipt{}, ErrPullInProgress
	}
	defer s.inFlight.Store(false)

	start := time.Now()
	receipt, err := s.commit(ctx, kind, useTicket)
	if err != nil {
		s.reject(ctx, kind, err)
		return Receipt{}, err
	}
	metrics.RecordPullLatency(float64(time.Since(start).Microseconds()) / 1000)

	// Reveal delay: state is already committed; the flag stays held until
	// results are handed back.
	if s.revealDelay > 0 {
		time.Sleep(s.revealDelay)
	}
	return receipt, nil
}

func (s *Session) reject(ctx context.Context, kind string, err error) {
	metrics.RecordPullRejected(Reason(err))
	s.logger.Info(ctx, "pull rejected", logger.String("kind", kind), logger.String("reason", Reason(err)))
}

// commit checks funds, draws, debits and records as one step under s.mu.
func (s *Session) commit(ctx context.Context, kind string, useTicket bool) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.banner == nil {
		return Receipt{}, ErrNoBanner
	}

	cost, currency := MultiCost, model.CurrencyCrystals
	switch {
	case kind == KindSingle && useTicket:
		cost, currency = TicketCost, model.CurrencyTickets
	case kind == KindSingle:
		cost = SingleCost
	}
	if !s.canAfford(cost, currency) {
		return Receipt{}, fmt.Errorf("%w: %s pull needs %d %s", ErrInsufficientCurrency, kind, cost, currency)
	}

	chars := s.banner.Characters
	levels := s.tracker.Snapshot()
	table := rates.Build(chars, s.rateCfg)

	var results []model.PullResult
	guaranteed := false
	if kind == KindSingle {
		results = []model.PullResult{s.drawer.Draw(table, chars, levels)}
	} else {
		results = make([]model.PullResult, 0, MultiCount)
		for i := 0; i < MultiCount-1; i++ {
			results = append(results, s.drawer.Draw(table, chars, levels))
		}
		results = append(results, s.drawer.Draw(table.Boosted(), chars, levels))
		if !hasFourOrBetter(results) {
			results[MultiCount-1] = s.drawer.DrawAtLeastFour(table, chars, levels)
			guaranteed = true
			metrics.RecordGuaranteeApplied()
		}
	}

	s.debit(cost, currency)
	s.tracker.Apply(results)
	s.recorder.RecordBatch(s.now(), results, cost, currency, s.banner.Name)

	metrics.RecordPull(kind, string(currency))
	for _, r := range results {
		metrics.RecordPullResult(int(r.Rarity), r.IsRateUp, r.IsPlaceholder())
	}
	s.publishLocked(ctx)

	s.logger.Debug(ctx, "pull committed",
		logger.String("kind", kind),
		logger.String("banner", s.banner.ID),
		logger.Int("results", len(results)),
		logger.Int("crystals", s.wallet.Crystals),
		logger.Int("tickets", s.wallet.Tickets),
		logger.Bool("guaranteed", guaranteed),
	)

	return Receipt{
		Results:    results,
		Cost:       cost,
		Currency:   currency,
		Wallet:     s.wallet,
		Guaranteed: guaranteed,
	}, nil
}

func hasFourOrBetter(results []model.PullResult) bool {
	for _, r := range results {
		if r.Rarity >= model.Rarity4 {
			return true
		}
	}
	return false
}

func (s *Session) canAfford(cost int, currency model.CurrencyType) bool {
	if currency == model.CurrencyTickets {
		return s.wallet.Tickets >= cost
	}
	return s.wallet.Crystals >= cost
}

func (s *Session) debit(cost int, currency model.CurrencyType) {
	if currency == model.CurrencyTickets {
		s.wallet.Tickets -= cost
		return
	}
	s.wallet.Crystals -= cost
}

// publishLocked bumps the sequence and hands the new state to the persister.
// Must be called with s.mu held so snapshots leave in mutation order.
func (s *Session) publishLocked(ctx context.Context) {
	s.seq++
	snap := s.snapshotLocked()
	metrics.UpdateWallet(s.wallet.Crystals, s.wallet.Tickets)
	metrics.UpdateTrackedCharacters(s.tracker.Len())
	metrics.UpdateHistoryEntries(s.recorder.Len())
	s.persister.Persist(ctx, snap)
}

func (s *Session) snapshotLocked() model.Snapshot {
	return model.Snapshot{
		CurrencyLedger: s.wallet,
		Levels:         s.tracker.Levels(),
		Stats:          s.recorder.Stats(),
		History:        s.recorder.View(),
		SelectedBanner: s.selectedID,
		Seq:            s.seq,
	}
}

// SelectBanner makes b the pool for subsequent pulls.
func (s *Session) SelectBanner(ctx context.Context, b model.Banner) {
	n := b.Normalized()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banner = &n
	s.selectedID = n.ID
	s.publishLocked(ctx)
}

// Banner returns the selected banner, if any.
func (s *Session) Banner() (model.Banner, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.banner == nil {
		return model.Banner{}, false
	}
	return *s.banner, true
}

// SelectedID returns the persisted selection, which may name a banner
// that is not loaded.
func (s *Session) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// InFlight reports whether a pull is outstanding.
func (s *Session) InFlight() bool {
	return s.inFlight.Load()
}

// Wallet returns the current balances.
func (s *Session) Wallet() model.CurrencyLedger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallet
}

// Stats returns the cumulative counters.
func (s *Session) Stats() model.Stats {
	return s.recorder.Stats()
}

// History returns up to limit batches, newest first. limit <= 0 returns all.
func (s *Session) History(limit int) []model.HistoryEntry {
	return s.recorder.Recent(limit)
}

// Progression returns mastery levels sorted by character id.
func (s *Session) Progression() []model.ProgressionEntry {
	return s.tracker.Entries()
}

// Rates returns the ordinary and tenth-slot tables for the selected banner.
func (s *Session) Rates() (rates.Table, rates.Table, error) {
	b, ok := s.Banner()
	if !ok {
		return nil, nil, ErrNoBanner
	}
	t := rates.Build(b.Characters, s.rateCfg)
	return t, t.Boosted(), nil
}

// RateConfig returns the configured rates.
func (s *Session) RateConfig() rates.Config {
	return s.rateCfg
}

// ResetWallet sets both balances. It is a user-initiated operation.
func (s *Session) ResetWallet(ctx context.Context, l model.CurrencyLedger) error {
	if l.Crystals < 0 || l.Tickets < 0 {
		return fmt.Errorf("%w: balances must be non-negative", ErrInvalidAmount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallet = l
	s.publishLocked(ctx)
	s.logger.Info(ctx, "wallet reset", logger.Int("crystals", l.Crystals), logger.Int("tickets", l.Tickets))
	return nil
}

// ClearHistory drops the pull log together with the counters derived from it.
func (s *Session) ClearHistory(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder.Clear()
	s.publishLocked(ctx)
	s.logger.Info(ctx, "history cleared")
}

// Reset returns wallet, progression, stats and history to defaults.
// The banner selection is kept.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallet = s.defaults
	s.tracker.Clear()
	s.recorder.Clear()
	s.publishLocked(ctx)
	s.logger.Info(ctx, "session reset")
}

// Snapshot returns the full state.
func (s *Session) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Restore loads persisted state without publishing it. Negative balances
// fall back to the defaults. An empty selection keeps the current banner.
func (s *Session) Restore(snap model.Snapshot) RestoreReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreLocked(snap)
}

func (s *Session) restoreLocked(snap model.Snapshot) RestoreReport {
	s.wallet = snap.CurrencyLedger
	if s.wallet.Crystals < 0 {
		s.wallet.Crystals = s.defaults.Crystals
	}
	if s.wallet.Tickets < 0 {
		s.wallet.Tickets = s.defaults.Tickets
	}
	if snap.SelectedBanner != "" {
		s.selectedID = snap.SelectedBanner
		if s.banner != nil && s.banner.ID != s.selectedID {
			s.banner = nil
		}
	}
	if snap.Seq > s.seq {
		s.seq = snap.Seq
	}
	return RestoreReport{
		LevelsAdjusted:  s.tracker.Restore(snap.Levels),
		StatsRecomputed: s.recorder.Restore(snap.History, snap.Stats),
	}
}

// Import replaces the state with an exported snapshot and persists it.
func (s *Session) Import(ctx context.Context, snap model.Snapshot) (RestoreReport, error) {
	if snap.Crystals < 0 || snap.Tickets < 0 {
		return RestoreReport{}, fmt.Errorf("%w: balances must be non-negative", ErrInvalidAmount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	report := s.restoreLocked(snap)
	s.publishLocked(ctx)
	s.logger.Info(ctx, "snapshot imported",
		logger.Int("history", s.recorder.Len()),
		logger.Int("levels_adjusted", report.LevelsAdjusted),
		logger.Bool("stats_recomputed", report.StatsRecomputed),
	)
	return report, nil
}
