package httpapi

import (
	"fmt"
	"net/http"

	"github.com/proofofputt/putt-api/internal/usecase"
)

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeSuccess(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.opts.DB != nil {
		if err := h.opts.DB.PingContext(ctx); err != nil {
			h.logger.WarnContext(ctx, "readiness ping failed", "error", err)
			writeError(ctx, w, fmt.Errorf("%w: database is not reachable", usecase.ErrDependencyUnavailable))
			return
		}
	}
	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ready"})
}
