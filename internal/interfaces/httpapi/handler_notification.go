package httpapi

import (
	"net/http"

	"github.com/proofofputt/putt-api/internal/usecase"
)

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListNotifications")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
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

	items, err := h.svc.Notifications.List(ctx, usecase.ListNotificationsInput{
		PlayerID:   principal.PlayerID,
		Limit:      limit,
		Offset:     offset,
		UnreadOnly: queryBool(r, "unread_only"),
	})
	if err != nil {
		h.fail(ctx, w, "list notifications", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.MarkNotificationRead")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	notificationID, err := pathID(r, "notificationID")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if err := h.svc.Notifications.MarkRead(ctx, principal.PlayerID, notificationID); err != nil {
		h.fail(ctx, w, "mark notification read", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]any{"notification_id": notificationID, "read_status": true})
}

func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.MarkAllNotificationsRead")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}

	n, err := h.svc.Notifications.MarkAllRead(ctx, principal.PlayerID)
	if err != nil {
		h.fail(ctx, w, "mark all notifications read", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]int{"updated": n})
}

func (h *Handler) NotificationStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.NotificationStats")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}

	stats, err := h.svc.Notifications.Stats(ctx, principal.PlayerID)
	if err != nil {
		h.fail(ctx, w, "notification stats", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, notificationStatsDTO{Total: stats.Total, Unread: stats.Unread, Today: stats.Today})
}

func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.DeleteNotification")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}
	notificationID, err := pathID(r, "notificationID")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if err := h.svc.Notifications.Delete(ctx, principal.PlayerID, notificationID); err != nil {
		h.fail(ctx, w, "delete notification", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]any{"notification_id": notificationID, "deleted": true})
}
