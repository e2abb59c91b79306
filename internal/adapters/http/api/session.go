package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/gachasim/internal/adapters/export"
	"github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/internal/domain/pull"
)

const exportFileName = "gacha-export"

// SessionHandler serves wallet, stats, history, progression and the
// export/import endpoints.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

type walletRequest struct {
	Crystals *int `json:"crystals" validate:"required,min=0"`
	Tickets  *int `json:"tickets" validate:"required,min=0"`
}

// importRequest mirrors the exported snapshot.
type importRequest struct {
	Crystals       *int                 `json:"crystals" validate:"required,min=0"`
	Tickets        *int                 `json:"tickets" validate:"required,min=0"`
	Levels         map[string]int       `json:"sa_levels"`
	Stats          model.Stats          `json:"stats"`
	History        []model.HistoryEntry `json:"history"`
	SelectedBanner string               `json:"selected_banner" validate:"max=200"`
}

type importResponse struct {
	Report pull.RestoreReport   `json:"report"`
	Wallet model.CurrencyLedger `json:"wallet"`
}

// HandleGetWallet handles GET /wallet.
func (h *SessionHandler) HandleGetWallet(w http.ResponseWriter, r *http.Request) {
	l, err := h.deps.Wallet(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// HandlePutWallet handles PUT /wallet.
func (h *SessionHandler) HandlePutWallet(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	l, err := h.deps.ResetWallet(r.Context(), model.CurrencyLedger{Crystals: *req.Crystals, Tickets: *req.Tickets})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// HandleStats handles GET /stats.
func (h *SessionHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleGetHistory handles GET /history?limit=N, newest first.
func (h *SessionHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: limit must be a non-negative integer", ErrBadRequest))
			return
		}
		limit = n
	}
	entries, err := h.deps.History(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleDeleteHistory handles DELETE /history.
func (h *SessionHandler) HandleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.ClearHistory(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleProgression handles GET /progression.
func (h *SessionHandler) HandleProgression(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.Progression(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []model.ProgressionEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleReset handles POST /reset.
func (h *SessionHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Reset(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleExport handles GET /export.
func (h *SessionHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Export(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if snap.History == nil {
		snap.History = []model.HistoryEntry{}
	}
	if snap.Levels == nil {
		snap.Levels = map[string]int{}
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFileName+".json"))
	writeJSON(w, http.StatusOK, snap)
}

// HandleExportXLSX handles GET /export.xlsx.
func (h *SessionHandler) HandleExportXLSX(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Export(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, snap); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFileName+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// HandleImport handles POST /import.
func (h *SessionHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	snap := model.Snapshot{
		CurrencyLedger: model.CurrencyLedger{Crystals: *req.Crystals, Tickets: *req.Tickets},
		Levels:         req.Levels,
		Stats:          req.Stats,
		History:        req.History,
		SelectedBanner: req.SelectedBanner,
	}
	report, err := h.deps.Import(r.Context(), snap)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	l, err := h.deps.Wallet(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Report: report, Wallet: l})
}
