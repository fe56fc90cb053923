package http

import (
	"net/http"
	"time"

	"statusboard/internal/events/application"
	events "statusboard/internal/events/domain"
	"statusboard/internal/observability/metrics"
)

// handleStream serves GET /event/all as server-sent events. Only broadcasts
// published after the client connects are sent.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	stream, err := h.subscriptions.Live(r.Context(), application.FilterAll)
	if err != nil {
		h.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	metrics.AddSubscribers("sse", 1)
	defer metrics.AddSubscribers("sse", -1)

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	var tick <-chan time.Time
	if h.keepAlive > 0 {
		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	notify := r.Context().Done()
	for {
		select {
		case event, ok := <-stream:
			if !ok {
				return
			}
			payload, err := events.Encode(event)
			if err != nil {
				h.logger.WithError(err).Warnf("events stream: encode %s", event.ID)
				continue
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-tick:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		case <-notify:
			return
		}
	}
}
