package httpapi

import (
	"net/http"
	"strings"

	"github.com/proofofputt/putt-api/internal/domain/invitation"
	"github.com/proofofputt/putt-api/internal/usecase"
)

func (h *Handler) CreateDuel(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateDuel")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	var req createDuelRequest
	if err := h.decode(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	d, err := h.svc.Duels.Create(ctx, usecase.CreateDuelInput{
		CreatorID:       principal.PlayerID,
		InvitedPlayerID: req.InvitedPlayerID,
		Identifier:      req.Identifier,
		IdentifierType:  invitation.IdentifierType(req.IdentifierType),
		Rules:           req.Settings,
		Message:         req.Message,
	})
	if err != nil {
		h.fail(ctx, w, "create duel", err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, duelToDTO(d))
}

func (h *Handler) ListDuels(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListDuels")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}

	items, err := h.svc.Duels.List(ctx, principal.PlayerID, strings.TrimSpace(r.URL.Query().Get("status")))
	if err != nil {
		h.fail(ctx, w, "list duels", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, duelsToDTO(items))
}

func (h *Handler) GetDuel(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetDuel")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	duelID, err := pathID(r, "duelID")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	view, err := h.svc.Duels.Status(ctx, principal.PlayerID, duelID)
	if err != nil {
		h.fail(ctx, w, "get duel status", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, duelViewToDTO(view))
}

func (h *Handler) RespondDuel(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RespondDuel")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	duelID, err := pathID(r, "duelID")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	var req respondRequest
	if err := h.decode(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	d, err := h.svc.Duels.Respond(ctx, principal.PlayerID, duelID, req.Action == string(invitation.ActionAccept))
	if err != nil {
		h.fail(ctx, w, "respond to duel", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, duelToDTO(d))
}

func (h *Handler) CancelDuel(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CancelDuel")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	duelID, err := pathID(r, "duelID")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	d, err := h.svc.Duels.Cancel(ctx, principal.PlayerID, duelID)
	if err != nil {
		h.fail(ctx, w, "cancel duel", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, duelToDTO(d))
}
