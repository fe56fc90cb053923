package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"statusboard/internal/events/application"
	events "statusboard/internal/events/domain"
)

const (
	// CacheHash holds the latest event per identifier.
	CacheHash = "event"
	// RegistrationHash maps identifiers to registration secrets.
	RegistrationHash = "registeredEvents"
)

// Store implements the event, registration and document stores on Redis.
// Broadcasts use PUBLISH/PSUBSCRIBE so several instances share one feed.
type Store struct {
	client redis.UniversalClient
	logger logrus.FieldLogger
	buffer int
}

// Option customizes the store.
type Option func(*Store)

// WithLogger assigns a logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(size int) Option {
	return func(s *Store) {
		if size > 0 {
			s.buffer = size
		}
	}
}

// NewClient dials Redis with the given address and credentials.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewStore constructs a store on client.
func NewStore(client redis.UniversalClient, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("redisstore: nil client")
	}
	s := &Store{client: client, logger: logrus.StandardLogger(), buffer: 64}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get returns the cached event for id.
func (s *Store) Get(ctx context.Context, id string) (events.Event, bool, error) {
	raw, err := s.client.HGet(ctx, CacheHash, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return events.Event{}, false, nil
	}
	if err != nil {
		return events.Event{}, false, fmt.Errorf("redisstore: hget %s: %w", id, err)
	}
	event, err := events.Decode(raw)
	if err != nil {
		return events.Event{}, false, fmt.Errorf("redisstore: decode %s: %w", id, err)
	}
	return event, true, nil
}

// Put overwrites the cached event.
func (s *Store) Put(ctx context.Context, event events.Event) error {
	raw, err := events.Encode(event)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, CacheHash, event.ID, raw).Err(); err != nil {
		return fmt.Errorf("redisstore: hset %s: %w", event.ID, err)
	}
	return nil
}

// Delete removes the cached event for id.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := s.client.HDel(ctx, CacheHash, id).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: hdel %s: %w", id, err)
	}
	return removed > 0, nil
}

// HasKey reports whether id is cached.
func (s *Store) HasKey(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.HExists(ctx, CacheHash, id).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: hexists %s: %w", id, err)
	}
	return ok, nil
}

// List returns every cached event. Entries that fail to decode are skipped.
func (s *Store) List(ctx context.Context) ([]events.Event, error) {
	values, err := s.client.HVals(ctx, CacheHash).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: hvals: %w", err)
	}
	list := make([]events.Event, 0, len(values))
	for _, value := range values {
		event, err := events.Decode([]byte(value))
		if err != nil {
			s.logger.Warnf("redisstore: skip undecodable cache entry: %v", err)
			continue
		}
		list = append(list, event)
	}
	return list, nil
}

// Publish broadcasts event on topic.
func (s *Store) Publish(ctx context.Context, topic string, event events.Event) error {
	raw, err := events.Encode(event)
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, topic, raw).Err(); err != nil {
		return fmt.Errorf("redisstore: publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe attaches a pattern subscription. It returns once Redis has confirmed it.
func (s *Store) Subscribe(ctx context.Context, pattern string) (application.Subscription, error) {
	pubsub := s.client.PSubscribe(ctx, pattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redisstore: psubscribe %s: %w", pattern, err)
	}
	sub := &subscription{
		pubsub: pubsub,
		out:    make(chan events.Event, s.buffer),
		done:   make(chan struct{}),
	}
	go sub.run(ctx, s.logger)
	return sub, nil
}

// GetKey returns the registration secret for id.
func (s *Store) GetKey(ctx context.Context, id string) (string, bool, error) {
	key, err := s.client.HGet(ctx, RegistrationHash, id).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redisstore: hget registration %s: %w", id, err)
	}
	return key, true, nil
}

// PutKeyIfAbsent stores key with HSETNX.
func (s *Store) PutKeyIfAbsent(ctx context.Context, id, key string) (bool, error) {
	stored, err := s.client.HSetNX(ctx, RegistrationHash, id, key).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: hsetnx registration %s: %w", id, err)
	}
	return stored, nil
}

// GetDocument returns the raw document stored under key.
func (s *Store) GetDocument(ctx context.Context, key string) ([]byte, bool, error) {
	doc, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redisstore: get %s: %w", key, err)
	}
	return doc, true, nil
}

// PutDocument stores a raw document under key.
func (s *Store) PutDocument(ctx context.Context, key string, doc []byte) error {
	if err := s.client.Set(ctx, key, doc, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: set %s: %w", key, err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

type subscription struct {
	pubsub *redis.PubSub
	out    chan events.Event
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) run(ctx context.Context, logger logrus.FieldLogger) {
	defer close(s.out)
	messages := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return
		case <-s.done:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			event, err := events.Decode([]byte(msg.Payload))
			if err != nil {
				logger.Warnf("redisstore: skip undecodable message on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case s.out <- event:
			case <-s.done:
				return
			case <-ctx.Done():
				_ = s.Close()
				return
			}
		}
	}
}

func (s *subscription) Events() <-chan events.Event {
	return s.out
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}
