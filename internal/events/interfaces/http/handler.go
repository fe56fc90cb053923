package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"statusboard/internal/events/application"
	events "statusboard/internal/events/domain"
)

// KeyHeader carries the registration secret on publish and delete.
const KeyHeader = "X-Event-Key"

const defaultMaxBody = 1 << 20

// Handler serves the event endpoints.
type Handler struct {
	gate          *application.Gate
	publisher     *application.Publisher
	subscriptions *application.Subscriptions
	logger        logrus.FieldLogger
	upgrader      websocket.Upgrader
	keepAlive     time.Duration
	maxBody       int64
}

// Option configures the handler.
type Option func(*Handler)

// WithLogger assigns a logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithKeepAlive sets the interval of SSE comment frames. Zero disables them.
func WithKeepAlive(interval time.Duration) Option {
	return func(h *Handler) {
		if interval >= 0 {
			h.keepAlive = interval
		}
	}
}

// WithMaxBody caps request bodies.
func WithMaxBody(limit int64) Option {
	return func(h *Handler) {
		if limit > 0 {
			h.maxBody = limit
		}
	}
}

// NewHandler constructs a handler.
func NewHandler(gate *application.Gate, publisher *application.Publisher, subscriptions *application.Subscriptions, opts ...Option) (*Handler, error) {
	if gate == nil {
		return nil, errors.New("events handler: nil gate")
	}
	if publisher == nil {
		return nil, errors.New("events handler: nil publisher")
	}
	if subscriptions == nil {
		return nil, errors.New("events handler: nil subscriptions")
	}
	h := &Handler{
		gate:          gate,
		publisher:     publisher,
		subscriptions: subscriptions,
		logger:        logrus.StandardLogger(),
		keepAlive:     30 * time.Second,
		maxBody:       defaultMaxBody,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts the event routes on router.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/endpoint/register", h.handleRegister).Methods(http.MethodPost)
	router.HandleFunc("/endpoint/publish", h.handlePublish).Methods(http.MethodPost)
	router.HandleFunc("/event/all", h.handleStream).Methods(http.MethodGet)
	router.HandleFunc("/event/{id}", h.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/event/{id}", h.handleDelete).Methods(http.MethodDelete)
	router.HandleFunc("/event", h.handleWebSocket).Methods(http.MethodGet)
}

type registrationRequest struct {
	ID string `json:"id"`
}

type registrationResponse struct {
	Key string `json:"key"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, h.maxBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeProblem(w, http.StatusBadRequest, "invalid registration body")
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeProblem(w, http.StatusBadRequest, (&events.ValidationError{Field: "id"}).Error())
		return
	}
	key, err := h.gate.Register(r.Context(), req.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, registrationResponse{Key: key})
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if err := events.ValidateJSON(body); err != nil {
		writeProblem(w, http.StatusBadRequest, err.Error())
		return
	}
	event, err := events.Decode(body)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.gate.Publish(r.Context(), event, r.Header.Get(KeyHeader)); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.gate.Delete(r.Context(), id, r.Header.Get(KeyHeader)); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	event, ok, err := h.publisher.GetCachedOrEmpty(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrEmptyID):
		writeProblem(w, http.StatusBadRequest, (&events.ValidationError{Field: "id"}).Error())
	case errors.Is(err, application.ErrIncorrectKey):
		writeProblem(w, http.StatusUnauthorized, "incorrect event key")
	case errors.Is(err, application.ErrAlreadyRegistered):
		writeProblem(w, http.StatusConflict, "event already registered")
	default:
		h.logger.WithError(err).Error("events handler: request failed")
		writeProblem(w, http.StatusInternalServerError, "event store unavailable")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
