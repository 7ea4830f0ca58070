package httpapi

import (
	"net/http"

	"github.com/proofofputt/putt-api/internal/domain/invitation"
	"github.com/proofofputt/putt-api/internal/usecase"
)

func (h *Handler) CreateLeague(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateLeague")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	var req createLeagueRequest
	if err := h.decode(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	l, err := h.svc.Leagues.Create(ctx, usecase.CreateLeagueInput{
		OwnerID:     principal.PlayerID,
		Name:        req.Name,
		Description: req.Description,
		Settings:    req.Settings,
		MaxMembers:  req.MaxMembers,
	})
	if err != nil {
		h.fail(ctx, w, "create league", err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, leagueToDTO(l))
}

func (h *Handler) ListLeagues(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListLeagues")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}

	listing, err := h.svc.Leagues.List(ctx, principal.PlayerID)
	if err != nil {
		h.fail(ctx, w, "list leagues", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, leagueListingDTO{
		MyLeagues:     leaguesToDTO(listing.Mine),
		PublicLeagues: leaguesToDTO(listing.Public),
	})
}

func (h *Handler) GetLeague(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetLeague")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	leagueID, err := pathID(r, "leagueID")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	detail, err := h.svc.Leagues.Detail(ctx, principal.PlayerID, leagueID)
	if err != nil {
		h.fail(ctx, w, "get league", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, leagueDetailToDTO(detail))
}

func (h *Handler) JoinLeague(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.JoinLeague")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	leagueID, err := pathID(r, "leagueID")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	m, err := h.svc.Leagues.Join(ctx, principal.PlayerID, leagueID)
	if err != nil {
		h.fail(ctx, w, "join league", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, membershipToDTO(m))
}

func (h *Handler) StartLeague(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.StartLeague")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	leagueID, err := pathID(r, "leagueID")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	detail, err := h.svc.Leagues.Start(ctx, principal.PlayerID, leagueID)
	if err != nil {
		h.fail(ctx, w, "start league", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, leagueDetailToDTO(detail))
}

func (h *Handler) InviteToLeague(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.InviteToLeague")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	leagueID, err := pathID(r, "leagueID")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	var req leagueInviteRequest
	if err := h.decode(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	inv, err := h.svc.Leagues.Invite(ctx, usecase.InviteToLeagueInput{
		InviterID: principal.PlayerID,
		LeagueID:  leagueID,
		InviteeID: req.PlayerID,
		Message:   req.Message,
	})
	if err != nil {
		h.fail(ctx, w, "invite to league", err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, leagueInvitationToDTO(inv))
}

func (h *Handler) RespondLeagueInvitation(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RespondLeagueInvitation")
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

	inv, err := h.svc.Leagues.RespondInvitation(ctx, principal.PlayerID, invitationID, req.Action == string(invitation.ActionAccept))
	if err != nil {
		h.fail(ctx, w, "respond to league invitation", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, leagueInvitationToDTO(inv))
}
