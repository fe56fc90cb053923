package export

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	events "statusboard/internal/events/domain"
	"statusboard/internal/observability/metrics"
)

const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"

	// formatOther is the metric label for every rejected format.
	formatOther = "other"

	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
)

// SnapshotSource lists every cached event.
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]events.Event, error)
}

// Handler serves downloadable snapshots of the cache.
type Handler struct {
	source SnapshotSource
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewHandler constructs an export handler.
func NewHandler(source SnapshotSource, logger logrus.FieldLogger) (*Handler, error) {
	if source == nil {
		return nil, errors.New("export handler: nil snapshot source")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{source: source, logger: logger, now: time.Now}, nil
}

// Register mounts the export route.
func (h *Handler) Register(router *mux.Router) {
	router.Handle("/api/events/export", h).Methods(http.MethodGet)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = FormatXLSX
	}
	if format != FormatXLSX && format != FormatPDF {
		metrics.IncExport(formatOther, "invalid")
		http.Error(w, "format must be xlsx or pdf", http.StatusBadRequest)
		return
	}

	list, err := h.source.Snapshot(r.Context())
	if err != nil {
		metrics.IncExport(format, metrics.ResultError)
		h.logger.WithError(err).Error("export: snapshot")
		http.Error(w, "snapshot unavailable", http.StatusServiceUnavailable)
		return
	}

	now := h.now()
	var (
		body        []byte
		contentType string
	)
	switch format {
	case FormatPDF:
		body, err = BuildSnapshotPDF(list, now)
		contentType = contentTypePDF
	default:
		body, err = BuildSnapshotXLSX(list)
		contentType = contentTypeXLSX
	}
	if err != nil {
		metrics.IncExport(format, metrics.ResultError)
		h.logger.WithError(err).WithField("format", format).Error("export: render")
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	metrics.IncExport(format, metrics.ResultSuccess)
	filename := fmt.Sprintf("statusboard-%s.%s", now.UTC().Format("20060102-150405"), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
