package producers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	events "statusboard/internal/events/domain"
)

// DefaultAppCenterURL is the App Center API base.
const DefaultAppCenterURL = "https://api.appcenter.ms"

// AppCenterApp is one monitored application.
type AppCenterApp struct {
	Owner   string `yaml:"owner"`
	AppName string `yaml:"appName"`
}

// AppCenterConfig holds the API token and app list.
type AppCenterConfig struct {
	URL      string         `yaml:"url"`
	Token    string         `yaml:"token"`
	Interval time.Duration  `yaml:"interval"`
	Apps     []AppCenterApp `yaml:"apps"`
}

type sessionCount struct {
	Count json.Number `json:"count"`
}

// AppCenter publishes today's active session count per app.
type AppCenter struct {
	cfg       AppCenterConfig
	client    *http.Client
	publisher Publisher
	clock     Clock
	logger    logrus.FieldLogger
}

// NewAppCenter constructs the statistics producer.
func NewAppCenter(cfg AppCenterConfig, client *http.Client, publisher Publisher, logger logrus.FieldLogger) (*AppCenter, error) {
	if publisher == nil {
		return nil, errors.New("appcenter producer: nil publisher")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultAppCenterURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AppCenter{cfg: cfg, client: client, publisher: publisher, clock: systemClock{}, logger: logger}, nil
}

func (a *AppCenter) Name() string { return "appcenter" }

// Poll publishes one event per returned count entry.
func (a *AppCenter) Poll(ctx context.Context) error {
	var errs []error
	for _, app := range a.cfg.Apps {
		a.logger.Debugf("appcenter producer: processing %s", app.AppName)
		counts, err := a.sessionCounts(ctx, app)
		if err != nil {
			a.logger.WithError(err).Warnf("appcenter producer: app %s", app.AppName)
			errs = append(errs, err)
			continue
		}
		for _, count := range counts {
			event := events.New("statistics.appcenter."+app.AppName, app.AppName, events.LevelOK, events.Timestamp(a.clock.Now()), events.Statistics{
				Statistics: []events.Statistic{{Label: "active sessions today", Value: count.Count.String()}},
			})
			if _, err := a.publisher.Publish(ctx, event); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (a *AppCenter) sessionCounts(ctx context.Context, app AppCenterApp) ([]sessionCount, error) {
	query := url.Values{}
	query.Set("start", a.clock.Now().Format("2006-01-02"))
	query.Set("interval", "P1D")
	path := fmt.Sprintf("/v0.1/apps/%s/%s/analytics/session_counts?%s",
		url.PathEscape(app.Owner), url.PathEscape(app.AppName), query.Encode())
	var counts []sessionCount
	err := doJSON(ctx, a.client, request{
		url:     joinURL(a.cfg.URL, path),
		headers: map[string]string{"X-API-Token": a.cfg.Token},
	}, &counts)
	return counts, err
}
