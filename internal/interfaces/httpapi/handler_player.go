package httpapi

import (
	"net/http"
	"strings"
)

func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetPlayer")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	playerID, err := pathID(r, "playerID")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	profile, err := h.svc.Players.Profile(ctx, playerID)
	if err != nil {
		h.fail(ctx, w, "get player", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, profileToDTO(profile, principal.PlayerID == playerID))
}

func (h *Handler) ListPlayerSessions(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListPlayerSessions")
	defer span.End()

	playerID, err := pathID(r, "playerID")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	items, total, err := h.svc.Sessions.List(ctx, playerID, limit, offset)
	if err != nil {
		h.fail(ctx, w, "list player sessions", err)
		return
	}

	out := sessionPageDTO{Sessions: make([]sessionDTO, 0, len(items)), Total: total, Limit: limit, Offset: offset}
	for _, s := range items {
		out.Sessions = append(out.Sessions, sessionToDTO(s))
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SearchPlayers")
	defer span.End()

	items, err := h.svc.Players.Search(ctx, strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		h.fail(ctx, w, "search players", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, playersToDTO(items))
}

func (h *Handler) ListFriends(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListFriends")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}

	items, err := h.svc.Players.Friends(ctx, principal.PlayerID)
	if err != nil {
		h.fail(ctx, w, "list friends", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, playersToDTO(items))
}

func (h *Handler) AddFriend(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.AddFriend")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	var req addFriendRequest
	if err := h.decode(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	inv, err := h.svc.Invitations.InviteFriend(ctx, principal.PlayerID, req.FriendID)
	if err != nil {
		h.fail(ctx, w, "add friend", err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, invitationToDTO(inv))
}
