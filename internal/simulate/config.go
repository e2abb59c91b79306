package simulate

import (
	"fmt"
	"runtime"
	"time"

	"github.com/okian/gachasim/internal/domain/pull"
)

// Config holds configuration for a simulation run.
type Config struct {
	RunID      string        // Identifier stamped on the report; generated when empty
	BaseURL    string        // Drives a running server instead of in-process sessions when set
	BannerID   string        // Banner to pull on; the first catalog banner when empty
	BannerFile string        // Banner document for local runs; built-in banners when empty
	Sessions   int           // Independent sessions (players) to simulate
	TenPulls   int           // Ten-pulls per session
	Singles    int           // Single pulls per session, alternating tickets and crystals
	Workers    int           // Concurrent local sessions
	Seed       uint64        // Base seed; session i uses Seed+i. Zero seeds from the clock
	Sigma      float64       // Check tolerance in standard errors
	Timeout    time.Duration // HTTP request timeout for remote runs
	OutputFile string        // JSON report destination; skipped when empty
	Verbose    bool          // Enable debug logging
}

// Default configuration constants.
const (
	DefaultSessions = 1000
	DefaultTenPulls = 10
	DefaultSingles  = 10
	DefaultSigma    = 5.0
	DefaultTimeout  = 30 * time.Second

	workerMultiplier = 2
)

// DefaultConfig returns a local run sized for a quick sanity check.
func DefaultConfig() Config {
	return Config{
		Sessions: DefaultSessions,
		TenPulls: DefaultTenPulls,
		Singles:  DefaultSingles,
		Workers:  runtime.NumCPU() * workerMultiplier,
		Sigma:    DefaultSigma,
		Timeout:  DefaultTimeout,
	}
}

// Validate checks the run has work to do and sane bounds.
func (c *Config) Validate() error {
	if c.Sessions <= 0 {
		return fmt.Errorf("%w: sessions must be > 0", ErrInvalidConfig)
	}
	if c.TenPulls < 0 || c.Singles < 0 || c.TenPulls+c.Singles == 0 {
		return fmt.Errorf("%w: need at least one pull per session", ErrInvalidConfig)
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Sigma <= 0 {
		c.Sigma = DefaultSigma
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return nil
}

// wallet returns the balances that pay for exactly one session's pulls.
func (c *Config) wallet() (crystals, tickets int) {
	tickets = c.Singles - c.Singles/2
	crystals = c.TenPulls*pull.MultiCost + (c.Singles/2)*pull.SingleCost
	return crystals, tickets
}
