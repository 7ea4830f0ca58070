package httpapi

import (
	"net/http"

	"github.com/proofofputt/putt-api/internal/usecase"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Register")
	defer span.End()

	var req registerRequest
	if err := h.decode(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	res, err := h.svc.Auth.Register(ctx, usecase.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.fail(ctx, w, "register", err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, authToDTO(res))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Login")
	defer span.End()

	var req loginRequest
	if err := h.decode(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	res, err := h.svc.Auth.Login(ctx, usecase.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		h.fail(ctx, w, "login", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, authToDTO(res))
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Me")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}

	profile, err := h.svc.Auth.Me(ctx, principal.PlayerID)
	if err != nil {
		h.fail(ctx, w, "get current player", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, profileToDTO(profile, true))
}
