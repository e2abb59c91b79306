package repository

import (
	"github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/pkg/logger"
)

// Option applies a configuration option to the SessionStore.
type Option func(*SessionStore)

// WithLogger sets a custom logger for the session store.
func WithLogger(l logger.Logger) Option {
	return func(s *SessionStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaults sets the snapshot used for keys that are missing or unreadable.
func WithDefaults(snap model.Snapshot) Option {
	return func(s *SessionStore) {
		if snap.Crystals >= 0 && snap.Tickets >= 0 {
			s.defaults = snap
		}
	}
}
