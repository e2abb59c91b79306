package simulate

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/okian/gachasim/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to the console, and to logFile when set.
// The special value "auto" generates a timestamped filename.
func SetupLogging(logFile string, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	if logFile != "" {
		if logFile == "auto" {
			logFile = "simulate_log_" + time.Now().Format("20060102_150405") + ".log"
		}
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
	}

	if err := logger.Init(logger.WithOutput(out), logger.WithLevel(level)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Gacha Pull Simulator
====================

Runs Monte Carlo pull campaigns and checks observed rarity frequencies,
the boosted tenth slot and the ten-pull 4★ floor against the rate table.

Usage:
  go run ./cmd/simulate [options]

Options:
  -sessions int
        Independent sessions to simulate (default 1000)
  -ten int
        Ten-pulls per session (default 10)
  -single int
        Single pulls per session, alternating tickets and crystals (default 10)
  -workers int
        Concurrent local sessions (default CPU cores * 2)
  -seed uint
        Base seed; 0 seeds from the clock (default 0)
  -sigma float
        Check tolerance in standard errors (default 5)
  -banner string
        Banner id (default: first banner)
  -banners string
        Banner YAML/JSON file for local runs (default: built-in banners)
  -url string
        Drive a running server instead; its wallet is overwritten
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        JSON report file
  -log string
        Also log to this file ("auto" for a timestamped name)
  -verbose
        Enable debug logging
  -help
        Show this help message

Examples:
  # Reproducible local run
  go run ./cmd/simulate -sessions 5000 -seed 42

  # Against a server started with GACHA_REVEAL_DELAY_MS=0
  go run ./cmd/simulate -url http://localhost:9080 -sessions 20 -output report.json
`)
}
