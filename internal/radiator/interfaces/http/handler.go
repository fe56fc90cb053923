package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	radiatorapp "statusboard/internal/radiator/application"
	radiator "statusboard/internal/radiator/domain"
)

// Handler serves the dashboard layout document.
type Handler struct {
	service *radiatorapp.Service
	logger  logrus.FieldLogger
}

// NewHandler constructs a handler.
func NewHandler(service *radiatorapp.Service, logger logrus.FieldLogger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("radiator handler: nil service")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{service: service, logger: logger}, nil
}

// Register mounts GET and PUT /api/radiator/configuration.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/api/radiator/configuration", h.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/api/radiator/configuration", h.handlePut).Methods(http.MethodPut)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.GetConfiguration(r.Context())
	if err != nil {
		if errors.Is(err, radiatorapp.ErrNotConfigured) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.logger.WithError(err).Error("radiator handler: get")
		http.Error(w, "configuration unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cfg)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	var cfg radiator.Configuration
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&cfg); err != nil {
		http.Error(w, "invalid configuration body", http.StatusBadRequest)
		return
	}
	if err := h.service.SetConfiguration(r.Context(), cfg); err != nil {
		if errors.Is(err, radiator.ErrInvalidConfiguration) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.WithError(err).Error("radiator handler: put")
		http.Error(w, "configuration unavailable", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
