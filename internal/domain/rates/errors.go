package rates

import "errors"

// ErrInvalidRates is returned when a rate configuration cannot form a distribution.
var ErrInvalidRates = errors.New("invalid rates")
