package config

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrInvalidConfig wraps every Validate failure. An unknown store driver
	// additionally wraps repository.ErrUnknownDriver.
	ErrInvalidConfig = errors.New("invalid gacha config")
	// ErrLoadConfig wraps failures reading the config file or environment.
	ErrLoadConfig = errors.New("loading gacha config")
)
