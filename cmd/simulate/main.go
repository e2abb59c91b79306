package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/gachasim/internal/simulate"
)

const defaultRunTimeout = 30 * time.Minute

func main() {
	def := simulate.DefaultConfig()
	var (
		sessions   = flag.Int("sessions", def.Sessions, "Independent sessions to simulate")
		tenPulls   = flag.Int("ten", def.TenPulls, "Ten-pulls per session")
		singles    = flag.Int("single", def.Singles, "Single pulls per session")
		workers    = flag.Int("workers", def.Workers, "Concurrent local sessions")
		seed       = flag.Uint64("seed", 0, "Base seed; 0 seeds from the clock")
		sigma      = flag.Float64("sigma", def.Sigma, "Check tolerance in standard errors")
		bannerID   = flag.String("banner", "", "Banner id (default: first banner)")
		bannerFile = flag.String("banners", "", "Banner YAML/JSON file for local runs")
		baseURL    = flag.String("url", "", "Drive a running server instead of in-process sessions")
		timeout    = flag.Duration("timeout", def.Timeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "JSON report file")
		logFile    = flag.String("log", "", "Also log to this file (\"auto\" for a timestamped name)")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)

	cfg := simulate.Config{
		BaseURL:    *baseURL,
		BannerID:   *bannerID,
		BannerFile: *bannerFile,
		Sessions:   *sessions,
		TenPulls:   *tenPulls,
		Singles:    *singles,
		Workers:    *workers,
		Seed:       *seed,
		Sigma:      *sigma,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	}

	report, err := simulate.Run(ctx, cfg)
	cancel()
	stop()
	if err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	if !report.Pass {
		os.Exit(2)
	}
}
