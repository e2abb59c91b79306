package pull

import (
	"time"

	"github.com/okian/gachasim/internal/domain/draw"
	"github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/internal/domain/rates"
	"github.com/okian/gachasim/pkg/logger"
)

// Option applies a configuration option to the Session.
type Option func(*Session)

// WithDrawer sets the drawer used for every slot.
func WithDrawer(d *draw.Drawer) Option {
	return func(s *Session) {
		if d != nil {
			s.drawer = d
		}
	}
}

// WithRNG builds the drawer around the given random source.
func WithRNG(rng draw.RandomSource) Option {
	return func(s *Session) {
		if rng != nil {
			s.drawer = draw.NewDrawer(draw.WithRNG(rng))
		}
	}
}

// WithRateConfig overrides the base rates and rate-up slices.
func WithRateConfig(cfg rates.Config) Option {
	return func(s *Session) {
		if cfg.Validate() == nil {
			s.rateCfg = cfg
		}
	}
}

// WithPersister sets where snapshots go after every mutation.
func WithPersister(p Persister) Option {
	return func(s *Session) {
		if p != nil {
			s.persister = p
		}
	}
}

// WithRevealDelay sets how long a pull holds the in-flight flag after
// committing, before its results are returned.
func WithRevealDelay(d time.Duration) Option {
	return func(s *Session) {
		if d >= 0 {
			s.revealDelay = d
		}
	}
}

// WithLogger sets a custom logger for the session.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDefaultWallet sets the balances used on first start and full reset.
func WithDefaultWallet(l model.CurrencyLedger) Option {
	return func(s *Session) {
		if l.Crystals >= 0 && l.Tickets >= 0 {
			s.defaults = l
			s.wallet = l
		}
	}
}
