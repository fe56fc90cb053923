package http

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"statusboard/internal/observability/metrics"
)

// Instrument logs each request and records its duration by route template.
// Use it with mux.Router.Use so the matched route is known.
func Instrument(logger logrus.FieldLogger) mux.MiddlewareFunc {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(resp, r)

			route := ""
			if current := mux.CurrentRoute(r); current != nil {
				route, _ = current.GetPathTemplate()
			}
			elapsed := time.Since(start)
			metrics.ObserveHTTP(route, resp.status, elapsed)
			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   resp.status,
				"duration": elapsed.String(),
			}).Info("http request")
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("http: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}
