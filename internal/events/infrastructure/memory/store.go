package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"statusboard/internal/events/application"
	events "statusboard/internal/events/domain"
)

// Store keeps events, registrations and documents in process memory.
// Events are held in wire form so callers never share payload slices with the cache.
type Store struct {
	mu            sync.RWMutex
	events        map[string][]byte
	registrations map[string]string
	documents     map[string][]byte
	broker        *Broker
}

// NewStore constructs an empty store.
func NewStore(logger logrus.FieldLogger) *Store {
	return &Store{
		events:        make(map[string][]byte),
		registrations: make(map[string]string),
		documents:     make(map[string][]byte),
		broker:        NewBroker(0, logger),
	}
}

// Get returns the cached event for id.
func (s *Store) Get(_ context.Context, id string) (events.Event, bool, error) {
	s.mu.RLock()
	raw, ok := s.events[id]
	s.mu.RUnlock()
	if !ok {
		return events.Event{}, false, nil
	}
	event, err := events.Decode(raw)
	if err != nil {
		return events.Event{}, false, err
	}
	return event, true, nil
}

// Put overwrites the cached event for event.ID.
func (s *Store) Put(_ context.Context, event events.Event) error {
	raw, err := events.Encode(event)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.events[event.ID] = raw
	s.mu.Unlock()
	return nil
}

// Delete removes the cached event for id.
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return false, nil
	}
	delete(s.events, id)
	return true, nil
}

// HasKey reports whether id is cached.
func (s *Store) HasKey(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.events[id]
	return ok, nil
}

// List returns every cached event ordered by id.
func (s *Store) List(_ context.Context) ([]events.Event, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.events))
	for id := range s.events {
		ids = append(ids, id)
	}
	raws := make([][]byte, 0, len(ids))
	sort.Strings(ids)
	for _, id := range ids {
		raws = append(raws, s.events[id])
	}
	s.mu.RUnlock()

	list := make([]events.Event, 0, len(raws))
	for _, raw := range raws {
		event, err := events.Decode(raw)
		if err != nil {
			return nil, err
		}
		list = append(list, event)
	}
	return list, nil
}

// Publish broadcasts event on topic.
func (s *Store) Publish(_ context.Context, topic string, event events.Event) error {
	s.broker.Publish(topic, event)
	return nil
}

// Subscribe attaches a live subscriber for pattern.
func (s *Store) Subscribe(ctx context.Context, pattern string) (application.Subscription, error) {
	return s.broker.Subscribe(ctx, pattern), nil
}

// Subscribers returns the number of attached live subscribers.
func (s *Store) Subscribers() int {
	return s.broker.Subscribers()
}

// GetKey returns the registration secret for id.
func (s *Store) GetKey(_ context.Context, id string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.registrations[id]
	return key, ok, nil
}

// PutKeyIfAbsent stores key for id unless one exists.
func (s *Store) PutKeyIfAbsent(_ context.Context, id, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registrations[id]; ok {
		return false, nil
	}
	s.registrations[id] = key
	return true, nil
}

// GetDocument returns the raw document stored under key.
func (s *Store) GetDocument(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), doc...), true, nil
}

// PutDocument stores a raw document under key.
func (s *Store) PutDocument(_ context.Context, key string, doc []byte) error {
	s.mu.Lock()
	s.documents[key] = append([]byte(nil), doc...)
	s.mu.Unlock()
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
