package pull

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInsufficientCurrency = errors.New("insufficient currency")
	ErrPullInProgress       = errors.New("pull in progress")
	ErrNoBanner             = errors.New("no banner selected")
	ErrInvalidAmount        = errors.New("invalid amount")
)

// Reason returns the metric/log label for a rejection error.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientCurrency):
		return "insufficient_currency"
	case errors.Is(err, ErrPullInProgress):
		return "pull_in_progress"
	case errors.Is(err, ErrNoBanner):
		return "no_banner"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	default:
		return "unknown"
	}
}
