package producers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	events "statusboard/internal/events/domain"
)

// HealthApplication is one endpoint probed for a 2xx response.
type HealthApplication struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// HealthConfig lists the probed applications.
type HealthConfig struct {
	Interval     time.Duration       `yaml:"interval"`
	Applications []HealthApplication `yaml:"applications"`
}

// Health publishes an up/down status per application.
type Health struct {
	cfg       HealthConfig
	client    *http.Client
	publisher Publisher
	cache     Cache
	clock     Clock
	logger    logrus.FieldLogger
}

// NewHealth constructs the health producer. cache may be nil.
func NewHealth(cfg HealthConfig, client *http.Client, publisher Publisher, cache Cache, logger logrus.FieldLogger) (*Health, error) {
	if publisher == nil {
		return nil, errors.New("health producer: nil publisher")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Health{cfg: cfg, client: client, publisher: publisher, cache: cache, clock: systemClock{}, logger: logger}, nil
}

func (h *Health) Name() string { return "health" }

// Poll probes every application. When the level has not changed, the cached
// event is republished so its original timestamp is kept.
func (h *Health) Poll(ctx context.Context) error {
	var errs []error
	for _, app := range h.cfg.Applications {
		event := h.probe(ctx, app)
		if h.cache != nil {
			cached, ok, err := h.cache.GetCachedOrEmpty(ctx, event.ID)
			if err == nil && ok && cached.Level == event.Level {
				event = cached
			}
		}
		if _, err := h.publisher.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Health) probe(ctx context.Context, app HealthApplication) events.Event {
	req := request{url: app.URL}
	if app.Username != "" && app.Password != "" {
		req.user, req.pass = app.Username, app.Password
	}
	_, err := doRaw(ctx, h.client, req)
	up := err == nil
	if !up {
		h.logger.WithError(err).Debugf("health producer: %s is down", app.ID)
	}

	level, text := events.LevelOK, "Up"
	if !up {
		level, text = events.LevelError, "Down"
	}
	return events.New("health."+app.ID, app.Name, level, events.Timestamp(h.clock.Now()), events.Status{StatusText: text})
}
