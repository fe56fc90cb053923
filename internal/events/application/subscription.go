package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	events "statusboard/internal/events/domain"
)

// FilterAll subscribes to every event type.
const FilterAll = "ALL"

// PatternFor maps a subscription filter to a topic pattern. Unrecognized
// filters subscribe to everything; UNKNOWN keeps its own pattern.
func PatternFor(filter string) string {
	normalized := strings.ToUpper(strings.TrimSpace(filter))
	if normalized == string(events.TypeUnknown) {
		return TopicPrefix + ".unknown*"
	}
	for _, t := range events.KnownTypes {
		if normalized == string(t) {
			return TopicPrefix + "." + strings.ToLower(string(t)) + "*"
		}
	}
	return TopicPrefix + "*"
}

// MatchTopic reports whether topic matches a glob pattern where '*' matches
// any run of characters and '?' matches exactly one.
func MatchTopic(pattern, topic string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			for len(pattern) > 0 && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			if pattern == "" {
				return true
			}
			for i := 0; i <= len(topic); i++ {
				if MatchTopic(pattern, topic[i:]) {
					return true
				}
			}
			return false
		case '?':
			if topic == "" {
				return false
			}
		default:
			if topic == "" || topic[0] != pattern[0] {
				return false
			}
		}
		pattern = pattern[1:]
		topic = topic[1:]
	}
	return topic == ""
}

// Subscriptions merges a cache snapshot with the live broadcast feed.
type Subscriptions struct {
	store  EventStore
	logger logrus.FieldLogger
	buffer int
}

// SubscriptionsOption customizes the service.
type SubscriptionsOption func(*Subscriptions)

// WithSubscriptionsLogger assigns a logger.
func WithSubscriptionsLogger(logger logrus.FieldLogger) SubscriptionsOption {
	return func(s *Subscriptions) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStreamBuffer sets the per-subscriber channel capacity.
func WithStreamBuffer(size int) SubscriptionsOption {
	return func(s *Subscriptions) {
		if size >= 0 {
			s.buffer = size
		}
	}
}

// NewSubscriptions constructs the subscription service.
func NewSubscriptions(store EventStore, opts ...SubscriptionsOption) (*Subscriptions, error) {
	if store == nil {
		return nil, errors.New("events subscriptions: nil store")
	}
	s := &Subscriptions{
		store:  store,
		logger: logrus.StandardLogger(),
		buffer: 16,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Subscribe emits every cached event matching filter, then every later
// broadcast matching it, until ctx is cancelled or the store feed ends.
//
// The snapshot is read before the live feed is attached, so an event published
// in between may be missed or delivered twice.
func (s *Subscriptions) Subscribe(ctx context.Context, filter string) (<-chan events.Event, error) {
	pattern := PatternFor(filter)
	snapshot, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot: %w", ErrStoreUnavailable, err)
	}
	live, err := s.store.Subscribe(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe %s: %w", ErrStoreUnavailable, pattern, err)
	}

	out := make(chan events.Event, s.buffer)
	go func() {
		defer close(out)
		defer live.Close()
		for _, event := range snapshot {
			if !MatchTopic(pattern, TopicFor(event.ID)) {
				continue
			}
			if !send(ctx, out, event) {
				return
			}
		}
		s.forward(ctx, live, out)
	}()
	return out, nil
}

// Live emits only broadcasts published after the call that match filter.
func (s *Subscriptions) Live(ctx context.Context, filter string) (<-chan events.Event, error) {
	pattern := PatternFor(filter)
	live, err := s.store.Subscribe(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe %s: %w", ErrStoreUnavailable, pattern, err)
	}
	out := make(chan events.Event, s.buffer)
	go func() {
		defer close(out)
		defer live.Close()
		s.forward(ctx, live, out)
	}()
	return out, nil
}

func (s *Subscriptions) forward(ctx context.Context, live Subscription, out chan<- events.Event) {
	feed := live.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-feed:
			if !ok {
				s.logger.Debug("events subscriptions: live feed closed")
				return
			}
			if !send(ctx, out, event) {
				return
			}
		}
	}
}

func send(ctx context.Context, out chan<- events.Event, event events.Event) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- event:
		return true
	}
}
