// Package repository persists session state in a durable key-value store.
package repository

import "context"

// Store is a string key-value store. Writes of several keys are atomic.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// SetMany upserts every key in one transaction.
	SetMany(ctx context.Context, values map[string]string) error

	// Close releases the underlying resources.
	Close() error
}
