package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	events "statusboard/internal/events/domain"
	"statusboard/internal/observability/metrics"
)

// LiveFeed streams broadcasts published after the call.
type LiveFeed interface {
	Live(ctx context.Context, filter string) (<-chan events.Event, error)
}

// Sink forwards bad events and recoveries to a chat channel.
//
// An event is forwarded when its level is WARN or ERROR, or when it is OK and
// its identifier was bad before. Everything else is dropped.
type Sink struct {
	feed        LiveFeed
	channel     Channel
	renderers   Renderers
	bad         *BadSet
	logger      logrus.FieldLogger
	sendTimeout time.Duration
}

// Option configures the sink.
type Option func(*Sink)

// WithLogger assigns a logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRenderers replaces the renderer table.
func WithRenderers(renderers Renderers) Option {
	return func(s *Sink) {
		s.renderers = renderers
	}
}

// WithSendTimeout bounds each delivery.
func WithSendTimeout(timeout time.Duration) Option {
	return func(s *Sink) {
		if timeout > 0 {
			s.sendTimeout = timeout
		}
	}
}

// NewSink constructs an alert sink.
func NewSink(feed LiveFeed, channel Channel, opts ...Option) (*Sink, error) {
	if feed == nil {
		return nil, errors.New("alert sink: nil feed")
	}
	if channel == nil {
		return nil, errors.New("alert sink: nil channel")
	}
	s := &Sink{
		feed:        feed,
		channel:     channel,
		renderers:   DefaultRenderers(),
		bad:         NewBadSet(),
		logger:      logrus.StandardLogger(),
		sendTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run consumes the unfiltered live feed until ctx is cancelled or the feed closes.
//
// Every event is evaluated as soon as it arrives; rendered alerts queue in an
// outbox drained by a single sender, so a slow channel never stalls the feed.
// When the feed closes the queued alerts are delivered before Run returns.
func (s *Sink) Run(ctx context.Context) error {
	stream, err := s.feed.Live(ctx, "ALL")
	if err != nil {
		return fmt.Errorf("alert sink: subscribe: %w", err)
	}
	s.logger.Info("alert sink: listening")

	queue := newOutbox()
	sent := make(chan struct{})
	go func() {
		defer close(sent)
		s.drain(ctx, queue)
	}()
	defer func() {
		queue.close()
		<-sent
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-stream:
			if !ok {
				return nil
			}
			if msg, forward := s.prepare(event); forward {
				queue.push(pendingAlert{eventID: event.ID, msg: msg})
			}
		}
	}
}

func (s *Sink) drain(ctx context.Context, queue *outbox) {
	for {
		batch, closed := queue.take()
		for i, alert := range batch {
			if ctx.Err() != nil {
				s.logger.Warnf("alert sink: stopping with %d undelivered alerts", len(batch)-i+queue.len())
				return
			}
			s.deliver(ctx, alert.eventID, alert.msg)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		select {
		case <-ctx.Done():
			if pending := queue.len(); pending > 0 {
				s.logger.Warnf("alert sink: stopping with %d undelivered alerts", pending)
			}
			return
		case <-queue.signal:
		}
	}
}

// Handle evaluates one event and delivers a message when it passes the filter.
// It reports whether a message was sent.
func (s *Sink) Handle(ctx context.Context, event events.Event) bool {
	msg, forward := s.prepare(event)
	if !forward {
		return false
	}
	return s.deliver(ctx, event.ID, msg)
}

// prepare runs the filter and renders the message for a forwarded event.
func (s *Sink) prepare(event events.Event) (Message, bool) {
	if !s.Evaluate(event) {
		return Message{}, false
	}
	msg, err := s.renderers.Render(event)
	if err != nil {
		s.logger.WithError(err).Warnf("alert sink: render %s", event.ID)
		metrics.IncAlert("render_error")
		return Message{}, false
	}
	return msg, true
}

func (s *Sink) deliver(ctx context.Context, eventID string, msg Message) bool {
	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	if err := s.channel.Send(sendCtx, msg); err != nil {
		s.logger.WithError(err).Warnf("alert sink: deliver %s", eventID)
		metrics.IncAlert(metrics.ResultError)
		return false
	}
	metrics.IncAlert(metrics.ResultSuccess)
	return true
}

// Evaluate applies the hysteresis filter and updates the bad set.
func (s *Sink) Evaluate(event events.Event) bool {
	bad := event.Level.IsBad()
	recovered := event.Level == events.LevelOK && s.bad.Contains(event.ID)
	s.logger.WithFields(logrus.Fields{
		"event_id": event.ID,
		"level":    event.Level,
	}).Debug("alert sink: evaluate")

	switch {
	case bad:
		s.bad.Add(event.ID)
	case event.Level == events.LevelOK:
		s.bad.Remove(event.ID)
	}
	return bad || recovered
}

// BadEvents returns the identifiers currently considered bad.
func (s *Sink) BadEvents() []string {
	return s.bad.Snapshot()
}
