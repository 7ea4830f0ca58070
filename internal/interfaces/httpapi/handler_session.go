package httpapi

import (
	"net/http"

	"github.com/proofofputt/putt-api/internal/usecase"
)

func (h *Handler) UploadSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.UploadSession")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	var req uploadSessionRequest
	if err := h.decode(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	res, err := h.svc.Sessions.Upload(ctx, usecase.UploadSessionInput{
		PlayerID:      principal.PlayerID,
		SessionID:     req.SessionID,
		Data:          req.SessionData,
		CSV:           req.CSVData,
		DuelID:        req.DuelID,
		LeagueRoundID: req.LeagueRoundID,
	})
	if err != nil {
		h.fail(ctx, w, "upload session", err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeSuccess(ctx, w, status, uploadToDTO(res))
}
