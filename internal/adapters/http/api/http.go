// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/gachasim/internal/adapters/catalog"
	"github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/internal/domain/pull"
	"github.com/okian/gachasim/internal/domain/types"
)

// BannerDependencies exposes the catalog and the banner selection.
type BannerDependencies interface {
	Banners(ctx context.Context) []types.BannerSummary
	Banner(ctx context.Context, id string) (types.Banner, error)
	Rates(ctx context.Context, id string) (types.RatesView, error)
	Selection(ctx context.Context) (types.BannerSummary, error)
	SelectBanner(ctx context.Context, id string) (types.BannerSummary, error)
}

// PullDependencies performs pulls. An empty idempotency key disables replay.
type PullDependencies interface {
	PullSingle(ctx context.Context, useTicket bool, idempotencyKey string) (types.PullResponse, error)
	PullTen(ctx context.Context, idempotencyKey string) (types.PullResponse, error)
}

// SessionDependencies reads and manages the session state.
type SessionDependencies interface {
	Wallet(ctx context.Context) (model.CurrencyLedger, error)
	ResetWallet(ctx context.Context, l model.CurrencyLedger) (model.CurrencyLedger, error)
	Stats(ctx context.Context) (model.Stats, error)
	History(ctx context.Context, limit int) ([]model.HistoryEntry, error)
	ClearHistory(ctx context.Context) error
	Progression(ctx context.Context) ([]model.ProgressionEntry, error)
	Reset(ctx context.Context) error
	Export(ctx context.Context) (model.Snapshot, error)
	Import(ctx context.Context, snap model.Snapshot) (pull.RestoreReport, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	BannerDependencies
	PullDependencies
	SessionDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statusHandler  *StatusHandler
	bannersHandler *BannersHandler
	pullHandler    *PullHandler
	sessionHandler *SessionHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statusHandler:  NewStatusHandler(statsProvider),
		bannersHandler: NewBannersHandler(deps),
		pullHandler:    NewPullHandler(deps),
		sessionHandler: NewSessionHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /status", MetricsMiddleware(s.statusHandler.HandleStatus, "status"))

	mux.HandleFunc("GET /banners", MetricsMiddleware(s.bannersHandler.HandleList, "banners"))
	mux.HandleFunc("GET /banners/{id}", MetricsMiddleware(s.bannersHandler.HandleGet, "banner"))
	mux.HandleFunc("GET /banners/{id}/rates", MetricsMiddleware(s.bannersHandler.HandleRates, "rates"))
	mux.HandleFunc("GET /selection", MetricsMiddleware(s.bannersHandler.HandleGetSelection, "selection"))
	mux.HandleFunc("PUT /selection", MetricsMiddleware(s.bannersHandler.HandlePutSelection, "selection"))

	mux.HandleFunc("POST /pull/single", MetricsMiddleware(s.pullHandler.HandleSingle, "pull_single"))
	mux.HandleFunc("POST /pull/ten", MetricsMiddleware(s.pullHandler.HandleTen, "pull_ten"))

	mux.HandleFunc("GET /wallet", MetricsMiddleware(s.sessionHandler.HandleGetWallet, "wallet"))
	mux.HandleFunc("PUT /wallet", MetricsMiddleware(s.sessionHandler.HandlePutWallet, "wallet"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.sessionHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /history", MetricsMiddleware(s.sessionHandler.HandleGetHistory, "history"))
	mux.HandleFunc("DELETE /history", MetricsMiddleware(s.sessionHandler.HandleDeleteHistory, "history"))
	mux.HandleFunc("GET /progression", MetricsMiddleware(s.sessionHandler.HandleProgression, "progression"))
	mux.HandleFunc("POST /reset", MetricsMiddleware(s.sessionHandler.HandleReset, "reset"))
	mux.HandleFunc("GET /export", MetricsMiddleware(s.sessionHandler.HandleExport, "export"))
	mux.HandleFunc("GET /export.xlsx", MetricsMiddleware(s.sessionHandler.HandleExportXLSX, "export_xlsx"))
	mux.HandleFunc("POST /import", MetricsMiddleware(s.sessionHandler.HandleImport, "import"))
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps sentinel errors from the session and catalog to
// status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pull.ErrInsufficientCurrency):
		writeError(w, http.StatusPaymentRequired, "insufficient_currency", err)
	case errors.Is(err, pull.ErrPullInProgress):
		writeError(w, http.StatusConflict, "pull_in_progress", err)
	case errors.Is(err, pull.ErrNoBanner):
		writeError(w, http.StatusConflict, "no_banner", err)
	case errors.Is(err, catalog.ErrBannerNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, pull.ErrInvalidAmount), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
