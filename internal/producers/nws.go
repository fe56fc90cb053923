package producers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	events "statusboard/internal/events/domain"
)

// DefaultNWSURL is the National Weather Service API base.
const DefaultNWSURL = "https://api.weather.gov"

// NWSLocation is one forecast point.
type NWSLocation struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Lat  string `yaml:"lat"`
	Lon  string `yaml:"lon"`
}

// NWSConfig lists the forecast points.
type NWSConfig struct {
	URL       string        `yaml:"url"`
	Interval  time.Duration `yaml:"interval"`
	Locations []NWSLocation `yaml:"locations"`
}

type nwsPointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type nwsForecastResponse struct {
	Properties struct {
		Updated string `json:"updated"`
		Periods []struct {
			Temperature     float64 `json:"temperature"`
			TemperatureUnit string  `json:"temperatureUnit"`
			ShortForecast   string  `json:"shortForecast"`
		} `json:"periods"`
	} `json:"properties"`
}

// NWS publishes the current forecast period per location.
type NWS struct {
	cfg       NWSConfig
	client    *http.Client
	publisher Publisher
	logger    logrus.FieldLogger
}

// NewNWS constructs the weather producer.
func NewNWS(cfg NWSConfig, client *http.Client, publisher Publisher, logger logrus.FieldLogger) (*NWS, error) {
	if publisher == nil {
		return nil, errors.New("nws producer: nil publisher")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultNWSURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &NWS{cfg: cfg, client: client, publisher: publisher, logger: logger}, nil
}

func (n *NWS) Name() string { return "nws" }

// Poll publishes each location that could be fetched; failed locations are skipped.
func (n *NWS) Poll(ctx context.Context) error {
	var errs []error
	for _, location := range n.cfg.Locations {
		event, err := n.forecast(ctx, location)
		if err != nil {
			n.logger.WithError(err).Warnf("nws producer: location %s", location.ID)
			errs = append(errs, err)
			continue
		}
		if _, err := n.publisher.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *NWS) forecast(ctx context.Context, location NWSLocation) (events.Event, error) {
	headers := map[string]string{"Host": "api.weather.gov"}
	var points nwsPointsResponse
	pointsURL := joinURL(n.cfg.URL, fmt.Sprintf("/points/%s,%s", location.Lat, location.Lon))
	if err := doJSON(ctx, n.client, request{url: pointsURL, headers: headers}, &points); err != nil {
		return events.Event{}, err
	}
	forecastURL := points.Properties.Forecast
	if forecastURL == "" {
		return events.Event{}, errors.New("nws producer: points response without forecast url")
	}
	if strings.HasPrefix(forecastURL, "/") {
		forecastURL = joinURL(n.cfg.URL, forecastURL)
	}

	var forecast nwsForecastResponse
	if err := doJSON(ctx, n.client, request{url: forecastURL, headers: headers}, &forecast); err != nil {
		return events.Event{}, err
	}
	if len(forecast.Properties.Periods) == 0 {
		return events.Event{}, errors.New("nws producer: forecast without periods")
	}
	current := forecast.Properties.Periods[0]
	var at *string
	if forecast.Properties.Updated != "" {
		at = events.StringPtr(forecast.Properties.Updated)
	}
	return events.New("weather."+location.ID, location.Name, events.LevelOK, at, events.Weather{
		Temperature:     current.Temperature,
		TemperatureUnit: current.TemperatureUnit,
		Condition:       current.ShortForecast,
	}), nil
}
