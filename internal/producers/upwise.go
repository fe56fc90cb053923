package producers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	events "statusboard/internal/events/domain"
)

// DefaultUpwiseURL is the Upwise API base.
const DefaultUpwiseURL = "https://upwise.cfapps.io"

// UpwiseID identifies the quote event.
const UpwiseID = "quote.upwise"

// UpwiseConfig enables the quote producer.
type UpwiseConfig struct {
	Enabled  bool          `yaml:"enabled"`
	URL      string        `yaml:"url"`
	Interval time.Duration `yaml:"interval"`
}

type wisdomResponse struct {
	WisdomContent string `json:"wisdomContent"`
	Attribution   string `json:"attribution"`
	TimeAdded     string `json:"timeAdded"`
}

// Upwise publishes a random quote.
type Upwise struct {
	cfg       UpwiseConfig
	client    *http.Client
	publisher Publisher
	logger    logrus.FieldLogger
	down      events.Event
}

// NewUpwise constructs the quote producer. The fallback event is stamped once
// so repeated failures publish an identical event.
func NewUpwise(cfg UpwiseConfig, client *http.Client, publisher Publisher, logger logrus.FieldLogger) (*Upwise, error) {
	if publisher == nil {
		return nil, errors.New("upwise producer: nil publisher")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultUpwiseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	down := events.New(UpwiseID, "Upwise", events.LevelUnknown, events.Timestamp(time.Now().UTC()), events.Quote{
		Quote:  "Upwise is down!",
		Author: "Probably John Martin",
	})
	return &Upwise{cfg: cfg, client: client, publisher: publisher, logger: logger, down: down}, nil
}

func (u *Upwise) Name() string { return "upwise" }

func (u *Upwise) Poll(ctx context.Context) error {
	var wisdom wisdomResponse
	event := u.down
	if err := doJSON(ctx, u.client, request{url: joinURL(u.cfg.URL, "/wisdom/random")}, &wisdom); err != nil {
		u.logger.WithError(err).Warn("upwise producer: fetch failed")
	} else {
		var at *string
		if wisdom.TimeAdded != "" {
			at = events.StringPtr(wisdom.TimeAdded)
		}
		event = events.New(UpwiseID, "Upwise", events.LevelOK, at, events.Quote{
			Quote:  wisdom.WisdomContent,
			Author: wisdom.Attribution,
		})
	}
	_, err := u.publisher.Publish(ctx, event)
	return err
}
