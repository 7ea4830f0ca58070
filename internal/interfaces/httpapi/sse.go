package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/valyala/bytebufferpool"
)

type streamConnected struct {
	PlayerID    int64     `json:"player_id"`
	UnreadCount int       `json:"unread_count"`
	Timestamp   time.Time `json:"timestamp"`
}

// StreamNotifications pushes notifications to the caller as Server-Sent
// Events until the client goes away or the bus closes the subscription.
func (h *Handler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.StreamNotifications")
	defer span.End()

	principal, ok := h.principal(ctx, w)
	if !ok {
		return
	}

	sub, err := h.svc.Notifications.Subscribe(ctx, principal.PlayerID)
	if err != nil {
		h.fail(ctx, w, "subscribe to notifications", err)
		return
	}
	defer sub.Cancel()

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if h.opts.StreamRecorder != nil {
		h.opts.StreamRecorder.StreamOpened()
		defer h.opts.StreamRecorder.StreamClosed()
	}
	h.logger.InfoContext(ctx, "notification stream opened", "player_id", principal.PlayerID)
	defer h.logger.InfoContext(ctx, "notification stream closed", "player_id", principal.PlayerID)

	hello := streamConnected{PlayerID: principal.PlayerID, UnreadCount: sub.Unread, Timestamp: time.Now().UTC()}
	if err := writeEvent(w, "connected", "", hello); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(ctx, "response writer cannot flush, closing stream", "error", err)
		return
	}

	heartbeat := time.NewTicker(h.opts.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.streamsDone:
			_ = writeEvent(w, "shutdown", "", map[string]string{"reason": "server shutting down"})
			_ = rc.Flush()
			return
		case n, open := <-sub.Events:
			if !open {
				return
			}
			if err := writeEvent(w, "notification", strconv.FormatInt(n.ID, 10), n); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ":heartbeat\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w io.Writer, event, id string, payload any) error {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if id != "" {
		_, _ = buf.WriteString("id: " + id + "\n")
	}
	_, _ = buf.WriteString("event: " + event + "\n")
	_, _ = buf.WriteString("data: ")
	_, _ = buf.Write(data)
	_, _ = buf.WriteString("\n\n")

	_, err = w.Write(buf.B)
	return err
}
