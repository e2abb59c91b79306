package repository

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrNotFound        = errors.New("key not found")
	ErrCorrupt         = errors.New("corrupt value")
	ErrUnknownDriver   = errors.New("unknown store driver")
	ErrStoreClosed     = errors.New("store closed")
	ErrEmptyDataSource = errors.New("empty data source")
)
