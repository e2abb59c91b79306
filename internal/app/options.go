package service

import (
	"time"

	"github.com/okian/gachasim/internal/adapters/catalog"
	"github.com/okian/gachasim/internal/adapters/repository"
	"github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/internal/domain/rates"
	"github.com/okian/gachasim/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore uses an already opened key-value store instead of opening one.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithStoreDriver selects the store opened on Start.
func WithStoreDriver(driver, dsn string) Option {
	return func(s *Service) {
		s.storeDriver = driver
		s.storeDSN = dsn
	}
}

// WithCatalog uses a prepared banner catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithBannerFile loads banners from a YAML or JSON file on Start.
func WithBannerFile(path string) Option {
	return func(s *Service) {
		s.bannerFile = path
	}
}

// WithBannerAPI fetches banners from the banner backend on Start.
func WithBannerAPI(baseURL string) Option {
	return func(s *Service) {
		s.bannerAPI = baseURL
	}
}

// WithRNGSeed fixes the draw sequence. Zero keeps the clock-seeded source.
func WithRNGSeed(seed uint64) Option {
	return func(s *Service) {
		s.rngSeed = seed
	}
}

// WithRevealDelay sets how long each pull holds the in-flight flag.
func WithRevealDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.revealDelay = d
		}
	}
}

// WithInitialWallet sets the first-start and reset balances.
func WithInitialWallet(crystals, tickets int) Option {
	return func(s *Service) {
		if crystals >= 0 && tickets >= 0 {
			s.wallet = model.CurrencyLedger{Crystals: crystals, Tickets: tickets}
		}
	}
}

// WithRateConfig overrides the base rates and rate-up slices.
func WithRateConfig(cfg rates.Config) Option {
	return func(s *Service) {
		if cfg.Validate() == nil {
			s.rateCfg = cfg
		}
	}
}

// WithPersistQueueSize bounds the snapshot queue.
func WithPersistQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithIdempotencyCacheSize caps remembered Idempotency-Key replies.
func WithIdempotencyCacheSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.idemSize = size
		}
	}
}
