package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"statusboard/internal/events/application"
	events "statusboard/internal/events/domain"
	"statusboard/internal/observability/metrics"
)

const defaultSendTimeout = 5 * time.Second

// Broker fans broadcasts out to in-process pattern subscribers.
// A subscriber whose buffer is full holds the publisher back for at most the
// send timeout; only a subscriber that stays stalled that long misses the event.
type Broker struct {
	mu          sync.RWMutex
	subs        map[*BrokerSubscription]struct{}
	buffer      int
	sendTimeout time.Duration
	logger      logrus.FieldLogger
}

// BrokerOption customizes a broker.
type BrokerOption func(*Broker)

// WithSendTimeout bounds how long Publish waits on one full subscriber.
func WithSendTimeout(timeout time.Duration) BrokerOption {
	return func(b *Broker) {
		if timeout > 0 {
			b.sendTimeout = timeout
		}
	}
}

// NewBroker constructs a broker with the given per-subscriber buffer.
func NewBroker(buffer int, logger logrus.FieldLogger, opts ...BrokerOption) *Broker {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	b := &Broker{
		subs:        make(map[*BrokerSubscription]struct{}),
		buffer:      buffer,
		sendTimeout: defaultSendTimeout,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers event to every subscriber whose pattern matches topic.
func (b *Broker) Publish(topic string, event events.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if !application.MatchTopic(sub.pattern, topic) {
			continue
		}
		if !b.deliver(sub, event) {
			metrics.IncBroadcastDrop()
			b.logger.WithFields(logrus.Fields{
				"pattern": sub.pattern,
				"topic":   topic,
			}).Warnf("event broker: subscriber stalled for %s, dropping event", b.sendTimeout)
		}
	}
}

// deliver runs under the read lock. Close signals done before remove takes
// the write lock, so a blocked send always unwinds.
func (b *Broker) deliver(sub *BrokerSubscription, event events.Event) bool {
	select {
	case sub.ch <- event:
		return true
	case <-sub.done:
		return true
	default:
	}
	timer := time.NewTimer(b.sendTimeout)
	defer timer.Stop()
	select {
	case sub.ch <- event:
		return true
	case <-sub.done:
		return true
	case <-timer.C:
		return false
	}
}

// Subscribe attaches a subscriber for pattern. It is closed when ctx ends or Close is called.
func (b *Broker) Subscribe(ctx context.Context, pattern string) *BrokerSubscription {
	sub := &BrokerSubscription{
		broker:  b,
		pattern: pattern,
		ch:      make(chan events.Event, b.buffer),
		done:    make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()
	return sub
}

// Subscribers returns the number of attached subscribers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broker) remove(sub *BrokerSubscription) {
	b.mu.Lock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
	b.mu.Unlock()
}

// BrokerSubscription is one pattern subscriber.
type BrokerSubscription struct {
	broker  *Broker
	pattern string
	ch      chan events.Event
	done    chan struct{}
	once    sync.Once
}

// Events returns the delivery channel.
func (s *BrokerSubscription) Events() <-chan events.Event {
	return s.ch
}

// Close detaches the subscriber and closes its channel.
func (s *BrokerSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.broker.remove(s)
	})
	return nil
}
