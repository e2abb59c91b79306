package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// IdempotencyHeader names the optional request header that makes a pull replayable.
const IdempotencyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 200

// PullHandler serves the pull endpoints.
type PullHandler struct {
	deps PullDependencies
}

// NewPullHandler creates a new pull handler.
func NewPullHandler(deps PullDependencies) *PullHandler {
	return &PullHandler{deps: deps}
}

func idempotencyKey(r *http.Request) (string, error) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if len(key) > maxIdempotencyKeyLen {
		return "", fmt.Errorf("%w: %s longer than %d", ErrBadRequest, IdempotencyHeader, maxIdempotencyKeyLen)
	}
	return key, nil
}

// HandleSingle handles POST /pull/single?ticket=true|false.
func (h *PullHandler) HandleSingle(w http.ResponseWriter, r *http.Request) {
	useTicket := false
	if raw := r.URL.Query().Get("ticket"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: ticket must be a boolean", ErrBadRequest))
			return
		}
		useTicket = v
	}
	key, err := idempotencyKey(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp, err := h.deps.PullSingle(r.Context(), useTicket, key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleTen handles POST /pull/ten.
func (h *PullHandler) HandleTen(w http.ResponseWriter, r *http.Request) {
	key, err := idempotencyKey(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp, err := h.deps.PullTen(r.Context(), key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
