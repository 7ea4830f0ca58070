package httpapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/proofofputt/putt-api/internal/usecase"
)

const zapriteSignatureHeader = "x-zaprite-signature"

func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CreateCheckout")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	var req checkoutRequest
	if err := h.decode(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	checkout, err := h.svc.Subscriptions.CreateCheckout(ctx, principal.PlayerID, req.Interval)
	if err != nil {
		h.fail(ctx, w, "create checkout", err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, checkoutDTO{
		OrderID:     checkout.OrderID,
		CheckoutURL: checkout.CheckoutURL,
		Interval:    string(checkout.Interval),
		Amount:      checkout.Price.Amount,
		Currency:    checkout.Price.Currency,
	})
}

func (h *Handler) SubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SubscriptionStatus")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}

	state, err := h.svc.Subscriptions.Status(ctx, principal.PlayerID)
	if err != nil {
		h.fail(ctx, w, "subscription status", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, subscriptionStatusToDTO(state))
}

// ZapriteWebhook verifies the signature over the raw body, so the body is
// read as bytes rather than decoded.
func (h *Handler) ZapriteWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ZapriteWebhook")
	defer span.End()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(ctx, w, fmt.Errorf("%w: read webhook body: %v", usecase.ErrInvalidInput, err))
		return
	}

	ack, err := h.svc.Subscriptions.HandleWebhook(ctx, body, r.Header.Get(zapriteSignatureHeader))
	if err != nil {
		h.fail(ctx, w, "handle zaprite webhook", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, webhookAckDTO{Received: true, EventID: ack.EventID, Duplicate: ack.Duplicate})
}
