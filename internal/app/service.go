// Package service composes the pull session with its catalog, idempotency
// cache and persistence pipeline, and implements the HTTP API dependencies.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/gachasim/internal/adapters/catalog"
	persistqueue "github.com/okian/gachasim/internal/adapters/mq/queue"
	"github.com/okian/gachasim/internal/adapters/mq/worker"
	"github.com/okian/gachasim/internal/adapters/repository"
	"github.com/okian/gachasim/internal/domain/dedupe"
	"github.com/okian/gachasim/internal/domain/draw"
	"github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/internal/domain/pull"
	"github.com/okian/gachasim/internal/domain/rates"
	"github.com/okian/gachasim/internal/domain/types"
	"github.com/okian/gachasim/pkg/logger"
	"github.com/okian/gachasim/pkg/metrics"
)

// Idempotency scopes. A key only replays within the operation it was used for.
const (
	scopeSingleCrystals = "single:crystals"
	scopeSingleTicket   = "single:tickets"
	scopeTen            = "ten"
)

const defaultRevealDelay = 1500 * time.Millisecond

// Service implements the API dependencies for the pull simulator.
type Service struct {
	mu sync.RWMutex

	// Core components
	session      *pull.Session
	catalog      *catalog.Catalog
	deduper      dedupe.Deduper
	store        repository.Store
	sessionStore *repository.SessionStore
	queue        *persistqueue.InMemoryQueue
	writer       *worker.Writer

	// Configuration
	storeDriver string
	storeDSN    string
	bannerFile  string
	bannerAPI   string
	rngSeed     uint64
	revealDelay time.Duration
	wallet      model.CurrencyLedger
	rateCfg     rates.Config
	queueSize   int
	idemSize    int

	// State
	started   bool
	startedAt time.Time
	loaded    repository.LoadReport
	restored  pull.RestoreReport

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storeDriver: repository.DriverMemory,
		revealDelay: defaultRevealDelay,
		wallet:      model.CurrencyLedger{Crystals: model.DefaultCrystals, Tickets: model.DefaultTickets},
		rateCfg:     rates.DefaultConfig(),
		queueSize:   256,
		idemSize:    10_000,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	if s.catalog == nil {
		s.catalog = catalog.New()
	}
	return s
}

// Start opens storage, loads banners, restores the persisted session and
// starts the persistence writer.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.GetOr(logger.Nop()).Named("service")
	}
	s.logger.Info(ctx, "starting pull simulator service...")

	if err := s.loadBanners(ctx); err != nil {
		return err
	}

	if s.store == nil {
		store, err := repository.Open(ctx, s.storeDriver, s.storeDSN)
		if err != nil {
			// Persistence failures degrade to an in-memory session.
			metrics.RecordErrorByComponent("service", "store_open")
			s.logger.Error(ctx, "store unavailable, falling back to memory",
				logger.String("driver", s.storeDriver),
				logger.Error(err),
			)
			store = repository.NewMemoryStore()
		}
		s.store = store
	}

	defaults := model.DefaultSnapshot()
	defaults.CurrencyLedger = s.wallet
	s.sessionStore = repository.NewSessionStore(s.store,
		repository.WithLogger(s.logger.Named("session_store")),
		repository.WithDefaults(defaults),
	)

	s.queue = persistqueue.NewInMemoryQueue(persistqueue.WithCapacity(s.queueSize))
	s.writer = worker.NewWriter(s.queue, s.sessionStore, worker.WithLogger(s.logger.Named("writer")))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.idemSize))

	rng := draw.DefaultRNG()
	if s.rngSeed != 0 {
		rng = draw.NewSeededRNG(s.rngSeed)
	}
	s.session = pull.NewSession(
		pull.WithRNG(rng),
		pull.WithRateConfig(s.rateCfg),
		pull.WithPersister(s.writer),
		pull.WithRevealDelay(s.revealDelay),
		pull.WithDefaultWallet(s.wallet),
		pull.WithLogger(s.logger.Named("session")),
	)

	snap, loaded := s.sessionStore.Load(ctx)
	s.loaded = loaded
	s.restored = s.session.Restore(snap)
	s.writer.Start(context.WithoutCancel(ctx))

	s.reselectLocked(ctx, snap.SelectedBanner)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "pull simulator service started",
		logger.Int("banners", s.catalog.Len()),
		logger.String("selected", s.session.SelectedID()),
		logger.Int("crystals", snap.Crystals),
		logger.Int("tickets", snap.Tickets),
		logger.Int("history", len(snap.History)),
		logger.Bool("stats_recomputed", s.restored.StatsRecomputed),
	)
	return nil
}

func (s *Service) loadBanners(ctx context.Context) error {
	if s.bannerAPI != "" {
		err := s.catalog.Fetch(ctx, s.bannerAPI)
		if err == nil {
			return nil
		}
		s.logger.Warn(ctx, "banner api unavailable", logger.String("url", s.bannerAPI), logger.Error(err))
	}
	if s.bannerFile != "" {
		if err := s.catalog.LoadFile(ctx, s.bannerFile); err != nil {
			return fmt.Errorf("load banners: %w", err)
		}
		return nil
	}
	if s.catalog.Len() > 0 {
		return nil
	}
	if err := s.catalog.LoadDefault(ctx); err != nil {
		return fmt.Errorf("load built-in banners: %w", err)
	}
	return nil
}

// reselectLocked selects the persisted banner if the catalog has it, and
// otherwise the first catalog banner.
func (s *Service) reselectLocked(ctx context.Context, id string) {
	if id != "" {
		if b, err := s.catalog.Get(id); err == nil {
			s.session.SelectBanner(ctx, b)
			return
		}
		s.logger.Warn(ctx, "persisted banner no longer in catalog", logger.String("banner", id))
	}
	if b, ok := s.catalog.First(); ok {
		s.session.SelectBanner(ctx, b)
	}
}

// Stop flushes pending snapshots and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping pull simulator service...")

	var firstErr error
	if err := s.writer.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	s.started = false
	s.logger.Info(ctx, "pull simulator service stopped", logger.Uint64("last_seq", s.writer.LastSeq()))
	return firstErr
}

func (s *Service) running() (*pull.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.session, nil
}

// Banners lists catalog banners and marks the selected one.
func (s *Service) Banners(_ context.Context) []types.BannerSummary {
	selected := ""
	if sess, err := s.running(); err == nil {
		selected = sess.SelectedID()
	}
	list := s.catalog.List()
	out := make([]types.BannerSummary, 0, len(list))
	for _, b := range list {
		out = append(out, summarize(b, b.ID == selected))
	}
	return out
}

// Banner returns one catalog banner in its wire shape.
func (s *Service) Banner(_ context.Context, id string) (types.Banner, error) {
	b, err := s.catalog.Get(id)
	if err != nil {
		return types.Banner{}, err
	}
	return types.FromModel(b), nil
}

func summarize(b model.Banner, selected bool) types.BannerSummary {
	return types.BannerSummary{
		ID:         b.ID,
		Name:       b.Name,
		Image:      b.Image,
		Characters: len(b.Characters),
		Selected:   selected,
	}
}

// Rates returns the ordinary and tenth-slot tables of a catalog banner.
func (s *Service) Rates(_ context.Context, id string) (types.RatesView, error) {
	sess, err := s.running()
	if err != nil {
		return types.RatesView{}, err
	}
	b, err := s.catalog.Get(id)
	if err != nil {
		return types.RatesView{}, err
	}
	single := rates.Build(b.Characters, sess.RateConfig())
	return ratesView(b.ID, single, single.Boosted()), nil
}

func ratesView(id string, single, tenth rates.Table) types.RatesView {
	v := types.RatesView{
		BannerID:   id,
		Single:     make(map[int]types.TierRates, len(single)),
		TenthSlot:  make(map[int]types.TierRates, len(tenth)),
		Guaranteed: make(map[int]float64, 2),
	}
	for r, b := range single {
		v.Single[int(r)] = tierRates(b)
	}
	for r, b := range tenth {
		v.TenthSlot[int(r)] = tierRates(b)
	}
	p5, p4 := single[model.Rarity5].Total, single[model.Rarity4].Total
	if p5+p4 > 0 {
		v.Guaranteed[int(model.Rarity5)] = p5 / (p5 + p4)
		v.Guaranteed[int(model.Rarity4)] = p4 / (p5 + p4)
	} else {
		v.Guaranteed[int(model.Rarity4)] = 1
	}
	return v
}

func tierRates(b rates.Bucket) types.TierRates {
	return types.TierRates{Total: b.Total, Normal: b.Normal, RateUp1: b.RateUp1, RateUp2: b.RateUp2}
}

// Selection returns the selected banner.
func (s *Service) Selection(_ context.Context) (types.BannerSummary, error) {
	sess, err := s.running()
	if err != nil {
		return types.BannerSummary{}, err
	}
	b, ok := sess.Banner()
	if !ok {
		return types.BannerSummary{}, pull.ErrNoBanner
	}
	return summarize(b, true), nil
}

// SelectBanner switches the session to a catalog banner.
func (s *Service) SelectBanner(ctx context.Context, id string) (types.BannerSummary, error) {
	sess, err := s.running()
	if err != nil {
		return types.BannerSummary{}, err
	}
	b, err := s.catalog.Get(id)
	if err != nil {
		return types.BannerSummary{}, err
	}
	sess.SelectBanner(ctx, b)
	s.logger.Info(ctx, "banner selected", logger.String("banner", b.ID))
	return summarize(b, true), nil
}

// PullSingle draws one unit. A non-empty idempotency key replays the first
// result for that key instead of pulling again.
func (s *Service) PullSingle(ctx context.Context, useTicket bool, idempotencyKey string) (types.PullResponse, error) {
	scope := scopeSingleCrystals
	if useTicket {
		scope = scopeSingleTicket
	}
	return s.pullOnce(ctx, scope, idempotencyKey, func(sess *pull.Session) (pull.Receipt, error) {
		return sess.PullSingle(ctx, useTicket)
	})
}

// PullTen draws a ten-unit batch, with the same idempotency behaviour as PullSingle.
func (s *Service) PullTen(ctx context.Context, idempotencyKey string) (types.PullResponse, error) {
	return s.pullOnce(ctx, scopeTen, idempotencyKey, func(sess *pull.Session) (pull.Receipt, error) {
		return sess.PullTen(ctx)
	})
}

func (s *Service) pullOnce(ctx context.Context, scope, key string, do func(*pull.Session) (pull.Receipt, error)) (types.PullResponse, error) {
	sess, err := s.running()
	if err != nil {
		return types.PullResponse{}, err
	}

	if r, ok := s.deduper.Lookup(ctx, scope, key); ok {
		metrics.RecordIdempotentReplay()
		s.logger.Debug(ctx, "idempotent replay", logger.String("scope", scope), logger.String("key", key))
		return types.PullResponse{Results: r.Results, Wallet: r.Wallet, Replayed: true}, nil
	}

	r, err := do(sess)
	if err != nil {
		return types.PullResponse{}, err
	}
	s.deduper.Remember(ctx, scope, key, r)
	metrics.UpdateIdempotencyEntries(int(s.deduper.Size()))
	return types.PullResponse{Results: r.Results, Wallet: r.Wallet}, nil
}

// Wallet returns the current balances.
func (s *Service) Wallet(_ context.Context) (model.CurrencyLedger, error) {
	sess, err := s.running()
	if err != nil {
		return model.CurrencyLedger{}, err
	}
	return sess.Wallet(), nil
}

// ResetWallet sets both balances.
func (s *Service) ResetWallet(ctx context.Context, l model.CurrencyLedger) (model.CurrencyLedger, error) {
	sess, err := s.running()
	if err != nil {
		return model.CurrencyLedger{}, err
	}
	if err := sess.ResetWallet(ctx, l); err != nil {
		return model.CurrencyLedger{}, err
	}
	return sess.Wallet(), nil
}

// Stats returns the cumulative counters.
func (s *Service) Stats(_ context.Context) (model.Stats, error) {
	sess, err := s.running()
	if err != nil {
		return model.Stats{}, err
	}
	return sess.Stats(), nil
}

// History returns up to limit batches, newest first.
func (s *Service) History(_ context.Context, limit int) ([]model.HistoryEntry, error) {
	sess, err := s.running()
	if err != nil {
		return nil, err
	}
	return sess.History(limit), nil
}

// ClearHistory drops the pull log and its counters.
func (s *Service) ClearHistory(ctx context.Context) error {
	sess, err := s.running()
	if err != nil {
		return err
	}
	sess.ClearHistory(ctx)
	return nil
}

// Progression returns mastery levels sorted by character id.
func (s *Service) Progression(_ context.Context) ([]model.ProgressionEntry, error) {
	sess, err := s.running()
	if err != nil {
		return nil, err
	}
	return sess.Progression(), nil
}

// Reset returns the session to defaults and forgets idempotency keys.
func (s *Service) Reset(ctx context.Context) error {
	sess, err := s.running()
	if err != nil {
		return err
	}
	sess.Reset(ctx)
	s.deduper.Forget(ctx)
	metrics.UpdateIdempotencyEntries(0)
	return nil
}

// Export returns the full session snapshot.
func (s *Service) Export(_ context.Context) (model.Snapshot, error) {
	sess, err := s.running()
	if err != nil {
		return model.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Import replaces the session with an exported snapshot. The imported
// selection is re-resolved against the catalog.
func (s *Service) Import(ctx context.Context, snap model.Snapshot) (pull.RestoreReport, error) {
	sess, err := s.running()
	if err != nil {
		return pull.RestoreReport{}, err
	}
	report, err := sess.Import(ctx, snap)
	if err != nil {
		return pull.RestoreReport{}, err
	}
	s.deduper.Forget(ctx)
	metrics.UpdateIdempotencyEntries(0)

	if _, ok := sess.Banner(); !ok {
		s.mu.RLock()
		s.reselectLocked(ctx, sess.SelectedID())
		s.mu.RUnlock()
	}
	return report, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"storeDriver":    repository.NormalizeDriver(s.storeDriver),
		"queueCapacity":  s.queueSize,
		"idempotencyCap": s.idemSize,
	}
	stats["banners"] = s.catalog.Len()

	if s.started {
		ctx := context.Background()
		queueLen := s.queue.Len(ctx)
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
		stats["queueLength"] = queueLen
		stats["lastPersistedSeq"] = s.writer.LastSeq()
		stats["idempotencyEntries"] = s.deduper.Size()
		stats["pullInFlight"] = s.session.InFlight()
		stats["selectedBanner"] = s.session.SelectedID()
		stats["restoreFallbacks"] = sortedCopy(s.loaded.Fallbacks)
		stats["storeUnavailable"] = s.loaded.Unavailable
		stats["statsRecomputed"] = s.restored.StatsRecomputed

		metrics.UpdatePersistQueueSize(queueLen)
		metrics.UpdateIdempotencyEntries(int(s.deduper.Size()))
	}
	return stats
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}

// Size returns the current number of remembered idempotency keys.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}
