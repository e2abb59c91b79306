package simulate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/gachasim/internal/domain/draw"
	"github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/internal/domain/pull"
	"github.com/okian/gachasim/internal/domain/rates"
	"github.com/okian/gachasim/pkg/logger"
)

const progressInterval = time.Second

// RunLocal simulates cfg.Sessions independent in-process sessions on banner.
// Results with a non-zero seed do not depend on the worker count.
func RunLocal(ctx context.Context, cfg Config, banner model.Banner) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.GetOr(logger.Nop()).Named("simulate")
	report := &Report{
		RunID:     cfg.RunID,
		Mode:      ModeLocal,
		BannerID:  banner.ID,
		Seed:      cfg.Seed,
		Sessions:  cfg.Sessions,
		Workers:   cfg.Workers,
		StartedAt: time.Now(),
		Tally:     NewTally(),
		Expected:  Expect(rates.Build(banner.Characters, rates.DefaultConfig())),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		firstErr error
		done     int64
		wg       sync.WaitGroup
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	jobs := make(chan int, cfg.Workers*workerMultiplier)
	lastReport := time.Now()
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := NewTally()
			defer func() {
				mu.Lock()
				report.Tally.Merge(local)
				mu.Unlock()
			}()

			for i := range jobs {
				if ctx.Err() != nil {
					return
				}
				if err := runSession(ctx, cfg, banner, i, local); err != nil {
					fail(err)
					return
				}
				n := atomic.AddInt64(&done, 1)
				if cfg.Verbose {
					mu.Lock()
					if time.Since(lastReport) >= progressInterval {
						lastReport = time.Now()
						log.Debug(ctx, "progress", logger.Int("sessions", int(n)), logger.Int("of", cfg.Sessions))
					}
					mu.Unlock()
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < cfg.Sessions; i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report.finish(cfg.Sigma)
	return report, nil
}

// runSession plays one fresh session funded for exactly its pulls.
func runSession(ctx context.Context, cfg Config, banner model.Banner, index int, t *Tally) error {
	rng := draw.DefaultRNG()
	if cfg.Seed != 0 {
		rng = draw.NewSeededRNG(cfg.Seed + uint64(index)) //nolint:gosec // index is non-negative
	}
	crystals, tickets := cfg.wallet()
	sess := pull.NewSession(
		pull.WithRNG(rng),
		pull.WithRevealDelay(0),
		pull.WithDefaultWallet(model.CurrencyLedger{Crystals: crystals, Tickets: tickets}),
		pull.WithLogger(logger.Nop()),
	)
	sess.SelectBanner(ctx, banner)

	for i := 0; i < cfg.TenPulls; i++ {
		rc, err := sess.PullTen(ctx)
		if err != nil {
			return fmt.Errorf("session %d ten-pull %d: %w", index, i, err)
		}
		t.AddTen(rc.Results, rc.Guaranteed)
	}
	for i := 0; i < cfg.Singles; i++ {
		rc, err := sess.PullSingle(ctx, i%2 == 0)
		if err != nil {
			return fmt.Errorf("session %d single %d: %w", index, i, err)
		}
		t.AddSingle(rc.Results[0])
	}

	if w := sess.Wallet(); w != (model.CurrencyLedger{}) {
		return fmt.Errorf("%w: session %d left %d crystals, %d tickets", ErrLedgerMismatch, index, w.Crystals, w.Tickets)
	}
	return nil
}
