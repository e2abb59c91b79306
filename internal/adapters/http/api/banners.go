package api

import (
	"net/http"
	"strings"
)

// BannersHandler serves the catalog and the banner selection.
type BannersHandler struct {
	deps BannerDependencies
}

// NewBannersHandler creates a new banners handler.
func NewBannersHandler(deps BannerDependencies) *BannersHandler {
	return &BannersHandler{deps: deps}
}

type selectionRequest struct {
	BannerID string `json:"banner_id" validate:"required,max=200"`
}

// HandleList handles GET /banners.
func (h *BannersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Banners(r.Context()))
}

// HandleGet handles GET /banners/{id}.
func (h *BannersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	b, err := h.deps.Banner(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// HandleRates handles GET /banners/{id}/rates.
func (h *BannersHandler) HandleRates(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.Rates(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleGetSelection handles GET /selection.
func (h *BannersHandler) HandleGetSelection(w http.ResponseWriter, r *http.Request) {
	sel, err := h.deps.Selection(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// HandlePutSelection handles PUT /selection.
func (h *BannersHandler) HandlePutSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	sel, err := h.deps.SelectBanner(r.Context(), strings.TrimSpace(req.BannerID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}
