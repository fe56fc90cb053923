package producers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	events "statusboard/internal/events/domain"
)

// SonarQubeAnalysis is the quality gate webhook payload.
type SonarQubeAnalysis struct {
	AnalysedAt string `json:"analysedAt"`
	Project    struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"project"`
	QualityGate struct {
		Status string `json:"status"`
	} `json:"qualityGate"`
}

// SonarQubeHandler turns quality gate webhooks into status events.
type SonarQubeHandler struct {
	publisher Publisher
	logger    logrus.FieldLogger
}

// NewSonarQubeHandler constructs the webhook handler.
func NewSonarQubeHandler(publisher Publisher, logger logrus.FieldLogger) (*SonarQubeHandler, error) {
	if publisher == nil {
		return nil, errors.New("sonarqube handler: nil publisher")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SonarQubeHandler{publisher: publisher, logger: logger}, nil
}

// Register mounts POST /api/sonarqube/webhook.
func (h *SonarQubeHandler) Register(router *mux.Router) {
	router.Handle("/api/sonarqube/webhook", h).Methods(http.MethodPost)
}

// ServeHTTP publishes exactly one event per accepted payload.
func (h *SonarQubeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload SonarQubeAnalysis
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&payload); err != nil {
		http.Error(w, "invalid analysis payload", http.StatusBadRequest)
		return
	}
	event, err := SonarQubeEvent(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := h.publisher.Publish(r.Context(), event); err != nil {
		h.logger.WithError(err).Error("sonarqube handler: publish")
		http.Error(w, "publish failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// SonarQubeEvent maps an analysis to its status event.
func SonarQubeEvent(payload SonarQubeAnalysis) (events.Event, error) {
	if strings.TrimSpace(payload.Project.Key) == "" {
		return events.Event{}, errors.New("sonarqube: missing project key")
	}
	analysedAt, err := time.Parse(time.RFC3339, payload.AnalysedAt)
	if err != nil {
		analysedAt, err = time.Parse("2006-01-02T15:04:05-0700", payload.AnalysedAt)
	}
	if err != nil {
		return events.Event{}, errors.New("sonarqube: invalid analysedAt")
	}

	level, text := events.LevelUnknown, "Unknown"
	switch payload.QualityGate.Status {
	case "OK":
		level, text = events.LevelOK, "Passed"
	case "ERROR":
		level, text = events.LevelError, "Failed"
	}
	return events.New(
		"status.sonarqube."+payload.Project.Key,
		payload.Project.Name,
		level,
		events.StringPtr(analysedAt.Format(time.RFC3339)),
		events.Status{StatusText: text},
	), nil
}
