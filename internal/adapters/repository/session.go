package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/pkg/logger"
	"github.com/okian/gachasim/pkg/metrics"
)

// Persisted keys.
const (
	KeyCrystals       = "crystals"
	KeyTickets        = "tickets"
	KeyHistory        = "history"
	KeyStats          = "stats"
	KeyLevels         = "sa_levels"
	KeySelectedBanner = "selected_banner"
)

// Keys lists every persisted key in load order.
var Keys = []string{KeyCrystals, KeyTickets, KeyHistory, KeyStats, KeyLevels, KeySelectedBanner} //nolint:gochecknoglobals // fixed key space

// LoadReport describes how a snapshot was assembled from storage.
type LoadReport struct {
	// Fallbacks lists keys that were missing or unreadable and took defaults.
	Fallbacks []string `json:"fallbacks"`
	// Unavailable is set when the store could not be read at all.
	Unavailable bool `json:"unavailable"`
}

// SessionStore maps session snapshots onto the key-value Store.
type SessionStore struct {
	store    Store
	defaults model.Snapshot
	logger   logger.Logger
}

// NewSessionStore wraps store.
func NewSessionStore(store Store, opts ...Option) *SessionStore {
	s := &SessionStore{
		store:    store,
		defaults: model.DefaultSnapshot(),
		logger:   logger.GetOr(logger.Nop()).Named("session_store"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Encode renders a snapshot as the persisted key/value pairs.
func Encode(snap model.Snapshot) (map[string]string, error) {
	history := snap.History
	if history == nil {
		history = []model.HistoryEntry{}
	}
	levels := snap.Levels
	if levels == nil {
		levels = map[string]int{}
	}
	stats := snap.Stats
	if stats.RarityCounts == nil {
		stats = model.NewStats()
	}

	hb, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	sb, err := json.Marshal(stats)
	if err != nil {
		return nil, fmt.Errorf("encode stats: %w", err)
	}
	lb, err := json.Marshal(levels)
	if err != nil {
		return nil, fmt.Errorf("encode levels: %w", err)
	}

	return map[string]string{
		KeyCrystals:       strconv.Itoa(snap.Crystals),
		KeyTickets:        strconv.Itoa(snap.Tickets),
		KeyHistory:        string(hb),
		KeyStats:          string(sb),
		KeyLevels:         string(lb),
		KeySelectedBanner: snap.SelectedBanner,
	}, nil
}

// Save writes every key of snap in one transaction.
func (s *SessionStore) Save(ctx context.Context, snap model.Snapshot) error {
	values, err := Encode(snap)
	if err != nil {
		return err
	}
	return s.store.SetMany(ctx, values)
}

// Load reads a snapshot. Each key falls back to its default independently
// when missing or unreadable, so one corrupt value never discards the rest.
func (s *SessionStore) Load(ctx context.Context) (model.Snapshot, LoadReport) {
	snap := s.defaultSnapshot()
	var report LoadReport

	for _, key := range Keys {
		raw, err := s.store.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Error(ctx, "store unavailable, using defaults", logger.String("key", key), logger.Error(err))
			metrics.RecordRestoreFallback("unavailable")
			return s.defaultSnapshot(), LoadReport{Unavailable: true}
		}
		if err := decodeInto(&snap, key, raw); err != nil {
			s.logger.Warn(ctx, "persisted value unreadable, using default", logger.String("key", key), logger.Error(err))
			metrics.RecordRestoreFallback(key)
			report.Fallbacks = append(report.Fallbacks, key)
		}
	}
	return snap, report
}

// Close closes the underlying store.
func (s *SessionStore) Close() error {
	return s.store.Close()
}

func (s *SessionStore) defaultSnapshot() model.Snapshot {
	d := s.defaults
	d.Levels = map[string]int{}
	d.Stats = model.NewStats()
	d.History = []model.HistoryEntry{}
	return d
}

func decodeInto(snap *model.Snapshot, key, raw string) error {
	switch key {
	case KeyCrystals:
		n, err := decodeBalance(raw)
		if err != nil {
			return err
		}
		snap.Crystals = n
	case KeyTickets:
		n, err := decodeBalance(raw)
		if err != nil {
			return err
		}
		snap.Tickets = n
	case KeyHistory:
		var h []model.HistoryEntry
		if err := json.Unmarshal([]byte(raw), &h); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if h == nil {
			h = []model.HistoryEntry{}
		}
		snap.History = h
	case KeyStats:
		var st model.Stats
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if st.RarityCounts == nil {
			st.RarityCounts = model.NewStats().RarityCounts
		}
		snap.Stats = st
	case KeyLevels:
		var lv map[string]int
		if err := json.Unmarshal([]byte(raw), &lv); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if lv == nil {
			lv = map[string]int{}
		}
		snap.Levels = lv
	case KeySelectedBanner:
		snap.SelectedBanner = strings.TrimSpace(raw)
	}
	return nil
}

func decodeBalance(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative balance %d", ErrCorrupt, n)
	}
	return n, nil
}
