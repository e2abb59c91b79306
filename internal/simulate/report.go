package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	reportPermission    = 0600
)

// Check compares one observed frequency with its expectation.
type Check struct {
	Name      string  `json:"name"`
	Samples   int     `json:"samples"`
	Observed  float64 `json:"observed"`
	Expected  float64 `json:"expected"`
	Tolerance float64 `json:"tolerance"`
	OK        bool    `json:"ok"`
}

// Report is the outcome of a run.
type Report struct {
	RunID      string      `json:"run_id"`
	Mode       string      `json:"mode"`
	BannerID   string      `json:"banner_id"`
	Seed       uint64      `json:"seed"`
	Sessions   int         `json:"sessions"`
	Workers    int         `json:"workers"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Duration   string      `json:"duration"`
	Tally      *Tally      `json:"tally"`
	Expected   Expectation `json:"expected"`
	// Checks gate Pass. RateUp is informational because a fully maxed
	// rarity yields placeholders, which are never rate-up.
	Checks []Check `json:"checks"`
	RateUp []Check `json:"rate_up"`
	Pass   bool    `json:"pass"`
}

// Run modes.
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// binomialCheck tolerates sigma standard errors around p over n samples.
func binomialCheck(name string, hits, n int, p, sigma float64) Check {
	c := Check{Name: name, Samples: n, Expected: p, OK: true}
	if n == 0 {
		return c
	}
	c.Observed = float64(hits) / float64(n)
	c.Tolerance = sigma*math.Sqrt(p*(1-p)/float64(n)) + 1e-12
	c.OK = math.Abs(c.Observed-c.Expected) <= c.Tolerance
	return c
}

// evaluate fills the checks and the verdict.
func (r *Report) evaluate(sigma float64) {
	t, e := r.Tally, r.Expected
	r.Checks = r.Checks[:0]
	r.RateUp = r.RateUp[:0]
	for _, rar := range model.DrawOrder {
		r.Checks = append(r.Checks,
			binomialCheck(fmt.Sprintf("ordinary %d★", rar), t.Ordinary[rar], t.OrdinarySlots, e.Ordinary[rar], sigma),
			binomialCheck(fmt.Sprintf("tenth slot %d★", rar), t.Tenth[rar], t.TenthSlots, e.Tenth[rar], sigma),
		)
		r.RateUp = append(r.RateUp,
			binomialCheck(fmt.Sprintf("rate-up share %d★", rar), t.RateUp[rar], t.Ordinary[rar]+t.Tenth[rar], e.RateUpShare[rar], sigma))
	}
	r.Checks = append(r.Checks, Check{
		Name:     "ten-pull 4★ floor",
		Samples:  t.Batches,
		Observed: float64(t.GuaranteeViolations),
		OK:       t.GuaranteeViolations == 0,
	})

	r.Pass = true
	for _, c := range r.Checks {
		if !c.OK {
			r.Pass = false
		}
	}
}

func (r *Report) finish(sigma float64) {
	r.FinishedAt = time.Now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt).String()
	r.evaluate(sigma)
}

// WriteFile saves the report as indented JSON.
func (r *Report) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), reportPermission); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Log prints the summary and every check.
func (r *Report) Log(ctx context.Context, l logger.Logger) {
	l.Info(ctx, "simulation finished",
		logger.String("runID", r.RunID),
		logger.String("mode", r.Mode),
		logger.String("banner", r.BannerID),
		logger.Int("sessions", r.Sessions),
		logger.Int("batches", r.Tally.Batches),
		logger.Int("singles", r.Tally.Singles),
		logger.Int("slots", r.Tally.Slots()),
		logger.Int("guaranteed", r.Tally.Guaranteed),
		logger.Int("placeholders", r.Tally.Placeholders),
		logger.Int("replays", r.Tally.Replays),
		logger.String("duration", r.Duration),
		logger.Bool("pass", r.Pass))

	for _, c := range append(append([]Check{}, r.Checks...), r.RateUp...) {
		fields := []logger.Field{
			logger.String("check", c.Name),
			logger.Int("samples", c.Samples),
			logger.Float64("observed", c.Observed),
			logger.Float64("expected", c.Expected),
			logger.Float64("tolerance", c.Tolerance),
		}
		if c.OK {
			l.Info(ctx, "check ok", fields...)
		} else {
			l.Warn(ctx, "check failed", fields...)
		}
	}
}
