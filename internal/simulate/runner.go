// Package simulate runs Monte Carlo pull campaigns, in-process or against a
// running server, and checks the observed rates against the rate table.
package simulate

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/okian/gachasim/internal/adapters/catalog"
	"github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/pkg/logger"
)

// Run executes the configured campaign, writes the report when an output
// file is set, and logs the summary.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	log := logger.GetOr(logger.Nop()).Named("simulate")
	log.Info(ctx, "starting simulation",
		logger.String("runID", cfg.RunID),
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("sessions", cfg.Sessions),
		logger.Int("tenPulls", cfg.TenPulls),
		logger.Int("singles", cfg.Singles),
		logger.Int("workers", cfg.Workers),
		logger.Uint64("seed", cfg.Seed))

	var (
		report *Report
		err    error
	)
	if cfg.BaseURL != "" {
		report, err = RunRemote(ctx, cfg)
	} else {
		var banner model.Banner
		banner, err = selectBanner(ctx, cfg)
		if err != nil {
			return nil, err
		}
		report, err = RunLocal(ctx, cfg, banner)
	}
	if err != nil {
		return nil, err
	}

	if cfg.OutputFile != "" {
		if err := report.WriteFile(cfg.OutputFile); err != nil {
			log.Warn(ctx, "failed to save report", logger.Error(err))
		} else {
			log.Info(ctx, "report saved", logger.String("filename", cfg.OutputFile))
		}
	}
	report.Log(ctx, log)
	return report, nil
}

// selectBanner loads the banner file or the built-in banners and picks
// cfg.BannerID, or the first banner when unset.
func selectBanner(ctx context.Context, cfg Config) (model.Banner, error) {
	cat := catalog.New()
	var err error
	if cfg.BannerFile != "" {
		err = cat.LoadFile(ctx, cfg.BannerFile)
	} else {
		err = cat.LoadDefault(ctx)
	}
	if err != nil {
		return model.Banner{}, fmt.Errorf("load banners: %w", err)
	}
	if cfg.BannerID != "" {
		return cat.Get(cfg.BannerID)
	}
	b, ok := cat.First()
	if !ok {
		return model.Banner{}, catalog.ErrEmptyCatalog
	}
	return b, nil
}
