package httpapi

import (
	"net/http"
	"strings"

	"github.com/proofofputt/putt-api/internal/domain/invitation"
	"github.com/proofofputt/putt-api/internal/usecase"
)

func (h *Handler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateInvitation")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	var req createInvitationRequest
	if err := h.decode(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	created, err := h.svc.Invitations.Create(ctx, usecase.CreateInvitationInput{
		InviterID:      principal.PlayerID,
		Identifier:     req.Identifier,
		IdentifierType: invitation.IdentifierType(req.IdentifierType),
		Type:           invitation.Type(req.InvitationType),
		Data:           req.InvitationData,
		Message:        req.Message,
	})
	if err != nil {
		h.fail(ctx, w, "create invitation", err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, createdInvitationDTO{
		Invitation:    invitationToDTO(created.Invitation),
		Target:        playerToDTO(created.Target, false),
		HiddenCreated: created.HiddenCreated,
	})
}

func (h *Handler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListInvitations")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}

	direction := usecase.InvitationDirection(strings.TrimSpace(r.URL.Query().Get("direction")))
	items, err := h.svc.Invitations.List(ctx, principal.PlayerID, direction)
	if err != nil {
		h.fail(ctx, w, "list invitations", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, invitationsToDTO(items))
}

func (h *Handler) RespondInvitation(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RespondInvitation")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	invitationID, err := pathID(r, "invitationID")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	var req respondRequest
	if err := h.decode(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	res, err := h.svc.Invitations.Respond(ctx, usecase.RespondInvitationInput{
		PlayerID:     principal.PlayerID,
		InvitationID: invitationID,
		Action:       invitation.Action(req.Action),
	})
	if err != nil {
		h.fail(ctx, w, "respond to invitation", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, invitationResponseDTO{
		Invitation: invitationToDTO(res.Invitation),
		Claimed:    res.Claimed,
		Warning:    strings.Join(res.Warnings, "; "),
		Warnings:   res.Warnings,
	})
}
