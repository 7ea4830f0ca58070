package httpapi

import (
	"net/http"

	"github.com/proofofputt/putt-api/internal/usecase"
)

func (h *Handler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.TrackEvent")
	defer span.End()

	var req trackEventRequest
	if err := h.decode(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	input := usecase.TrackEventInput{
		EventType:    req.EventType,
		EventName:    req.EventName,
		SessionID:    req.SessionID,
		VisitorID:    req.VisitorID,
		PageURL:      req.PageURL,
		Referrer:     req.Referrer,
		Properties:   req.Properties,
		UserAgent:    r.UserAgent(),
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
		RemoteAddr:   r.RemoteAddr,
	}
	if input.Referrer == "" {
		input.Referrer = r.Referer()
	}
	if p, ok := principalFromContext(ctx); ok {
		id := p.PlayerID
		input.PlayerID = &id
	}

	if err := h.svc.Analytics.Track(ctx, input); err != nil {
		h.fail(ctx, w, "track analytics event", err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, map[string]bool{"tracked": true})
}

func (h *Handler) AnalyticsDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.AnalyticsDashboard")
	defer span.End()

	q := r.URL.Query()
	d, err := h.svc.Analytics.Dashboard(ctx, usecase.DashboardInput{
		Metric:    q.Get("metric"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		GroupBy:   q.Get("group_by"),
	})
	if err != nil {
		h.fail(ctx, w, "analytics dashboard", err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, dashboardToDTO(d))
}
