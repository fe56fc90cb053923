package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"statusboard/internal/events/application"
	events "statusboard/internal/events/domain"
	"statusboard/internal/observability/metrics"
)

const wsWriteTimeout = 10 * time.Second

// handleWebSocket upgrades GET /event and sends one text frame per event:
// the cached snapshot first, then live broadcasts.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("events websocket: upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client never sends data; reading surfaces its close frame.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	stream, err := h.subscriptions.Subscribe(ctx, application.FilterAll)
	if err != nil {
		h.logger.WithError(err).Warn("events websocket: subscribe failed")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "event store unavailable"),
			time.Now().Add(wsWriteTimeout))
		return
	}

	metrics.AddSubscribers("websocket", 1)
	defer metrics.AddSubscribers("websocket", -1)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-stream:
			if !ok {
				return
			}
			payload, err := events.Encode(event)
			if err != nil {
				h.logger.WithError(err).Warnf("events websocket: encode %s", event.ID)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.WithError(err).Debug("events websocket: write failed")
				return
			}
		}
	}
}
