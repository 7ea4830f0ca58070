package httpapi

import (
	"net/http"
	"strings"

	"github.com/proofofputt/putt-api/internal/usecase"
)

func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetLeaderboard")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	contextID, err := queryInt64(r, "context_id")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	board, err := h.svc.Leaderboards.Get(ctx, usecase.GetLeaderboardInput{
		PlayerID:    principal.PlayerID,
		ContextType: strings.TrimSpace(r.URL.Query().Get("context")),
		ContextID:   contextID,
		Metric:      strings.TrimSpace(r.URL.Query().Get("metric")),
		Limit:       limit,
	})
	if err != nil {
		h.fail(ctx, w, "get leaderboard", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, boardToDTO(board))
}

func (h *Handler) RefreshLeaderboards(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RefreshLeaderboards")
	defer span.End()

	var req refreshLeaderboardRequest
	if err := h.decode(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	res, err := h.svc.Leaderboards.Refresh(ctx, usecase.RefreshLeaderboardInput{
		ContextType: req.Context,
		ContextID:   req.ContextID,
	})
	if err != nil {
		h.fail(ctx, w, "refresh leaderboards", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, refreshResultDTO{
		Contexts:   res.Contexts,
		Failed:     res.Failed,
		DurationMS: res.Duration.Milliseconds(),
	})
}

func (h *Handler) CreateLeaderboardGroup(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateLeaderboardGroup")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	var req createGroupRequest
	if err := h.decode(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	g, err := h.svc.Leaderboards.CreateGroup(ctx, usecase.CreateGroupInput{
		OwnerID:   principal.PlayerID,
		Name:      req.Name,
		MemberIDs: req.MemberIDs,
	})
	if err != nil {
		h.fail(ctx, w, "create leaderboard group", err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, groupDTO{
		ID:        g.ID,
		Name:      g.Name,
		CreatedBy: g.CreatedBy,
		MemberIDs: g.MemberIDs,
		CreatedAt: g.CreatedAt,
	})
}
