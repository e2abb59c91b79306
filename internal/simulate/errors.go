package simulate

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidConfig    = errors.New("invalid simulation config")
	ErrUnhealthy        = errors.New("service unhealthy")
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrReplayMismatch   = errors.New("idempotent replay mismatch")
	ErrLedgerMismatch   = errors.New("wallet not drained as expected")
	ErrStatsMismatch    = errors.New("server stats disagree with pulls made")
)
