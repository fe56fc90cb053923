package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	events "statusboard/internal/events/domain"
	"statusboard/internal/observability/metrics"
	"statusboard/internal/observability/tracing"
)

// TopicPrefix prefixes every broadcast topic.
const TopicPrefix = "event"

// TopicFor returns the broadcast topic for an identifier.
func TopicFor(id string) string {
	return TopicPrefix + "." + id
}

// Publisher caches the latest event per identifier and broadcasts changes.
//
// The read-compare-write in Publish is not atomic. Two concurrent publishes for
// the same identifier may both observe the old value and both write; the store
// decides which one wins.
type Publisher struct {
	store  EventStore
	logger logrus.FieldLogger
	clock  Clock
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// PublisherOption customizes the publisher.
type PublisherOption func(*Publisher)

// WithPublisherLogger assigns a logger.
func WithPublisherLogger(logger logrus.FieldLogger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPublisherClock assigns a clock used for latency metrics.
func WithPublisherClock(clock Clock) PublisherOption {
	return func(p *Publisher) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewPublisher constructs a publisher over store.
func NewPublisher(store EventStore, opts ...PublisherOption) (*Publisher, error) {
	if store == nil {
		return nil, errors.New("events publisher: nil store")
	}
	p := &Publisher{
		store:  store,
		logger: logrus.StandardLogger(),
		clock:  systemClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish stores and broadcasts event unless it equals the cached one.
// It reports whether subscribers were notified.
func (p *Publisher) Publish(ctx context.Context, event events.Event) (notified bool, err error) {
	if event.ID == "" {
		return false, ErrEmptyID
	}
	event = event.Normalize()
	start := p.clock.Now()
	ctx, span := tracing.StartEventSpan(ctx, "publish", event.ID, attribute.String("event.type", string(event.Type)))
	defer func() {
		span.SetAttributes(attribute.Bool("event.notified", notified))
		tracing.End(span, err)
		outcome := metrics.PublishUnchanged
		switch {
		case err != nil:
			outcome = metrics.ResultError
		case notified:
			outcome = metrics.PublishNotified
		}
		metrics.ObservePublish(outcome, p.clock.Now().Sub(start))
	}()

	cached, ok, err := p.store.Get(ctx, event.ID)
	if err != nil {
		return false, p.storeError("get", event.ID, err)
	}
	if ok && events.Equal(cached, event) {
		p.logger.Debugf("Event [%s] is unchanged", event.ID)
		return false, nil
	}

	p.logger.WithField("event_id", event.ID).Infof("Publishing Event: [%s] level=%s", event.ID, event.Level)
	if err := p.store.Put(ctx, event); err != nil {
		return false, p.storeError("put", event.ID, err)
	}
	if err := p.store.Publish(ctx, TopicFor(event.ID), event); err != nil {
		return false, p.storeError("publish", event.ID, err)
	}
	return true, nil
}

// GetCachedOrEmpty returns the cached event for id, if any.
func (p *Publisher) GetCachedOrEmpty(ctx context.Context, id string) (events.Event, bool, error) {
	if id == "" {
		return events.Event{}, false, ErrEmptyID
	}
	event, ok, err := p.store.Get(ctx, id)
	if err != nil {
		return events.Event{}, false, p.storeError("get", id, err)
	}
	return event, ok, nil
}

// Delete removes the cached event for id. Deleting an absent id is a no-op that returns false.
// Subscribers are not notified of deletions.
func (p *Publisher) Delete(ctx context.Context, id string) (deleted bool, err error) {
	if id == "" {
		return false, ErrEmptyID
	}
	ctx, span := tracing.StartEventSpan(ctx, "delete", id)
	defer func() {
		tracing.End(span, err)
		if err != nil {
			metrics.IncDelete(metrics.ResultError)
		} else if deleted {
			metrics.IncDelete(metrics.ResultSuccess)
		}
	}()

	present, err := p.store.HasKey(ctx, id)
	if err != nil {
		return false, p.storeError("has_key", id, err)
	}
	if !present {
		return false, nil
	}
	removed, err := p.store.Delete(ctx, id)
	if err != nil {
		return false, p.storeError("delete", id, err)
	}
	return removed, nil
}

// Snapshot returns every cached event.
func (p *Publisher) Snapshot(ctx context.Context) ([]events.Event, error) {
	list, err := p.store.List(ctx)
	if err != nil {
		return nil, p.storeError("list", "*", err)
	}
	return list, nil
}

// Count returns the number of cached events.
func (p *Publisher) Count(ctx context.Context) (int, error) {
	list, err := p.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

func (p *Publisher) storeError(op, id string, err error) error {
	metrics.IncStoreError(op)
	return fmt.Errorf("%w: %s %s: %w", ErrStoreUnavailable, op, id, err)
}
