package bolt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	bbolt "go.etcd.io/bbolt"

	"statusboard/internal/events/application"
	events "statusboard/internal/events/domain"
	"statusboard/internal/events/infrastructure/memory"
)

var (
	eventsBucket        = []byte("event")
	registrationsBucket = []byte("registeredEvents")
	documentsBucket     = []byte("documents")
)

// Store persists the cache, registrations and documents in a local bbolt file.
// Broadcasts stay in process.
type Store struct {
	db     *bbolt.DB
	broker *memory.Broker
	logger logrus.FieldLogger
}

// Open opens or creates the database file at path.
func Open(path string, logger logrus.FieldLogger) (*Store, error) {
	if path == "" {
		return nil, errors.New("bolt store: empty path")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{eventsBucket, registrationsBucket, documentsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt store: init buckets: %w", err)
	}
	return &Store{db: db, broker: memory.NewBroker(0, logger), logger: logger}, nil
}

func (s *Store) get(bucket []byte, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if raw := tx.Bucket(bucket).Get([]byte(key)); raw != nil {
			value = append([]byte(nil), raw...)
		}
		return nil
	})
	return value, value != nil, err
}

// Get returns the cached event for id.
func (s *Store) Get(_ context.Context, id string) (events.Event, bool, error) {
	raw, ok, err := s.get(eventsBucket, id)
	if err != nil || !ok {
		return events.Event{}, false, err
	}
	event, err := events.Decode(raw)
	if err != nil {
		return events.Event{}, false, err
	}
	return event, true, nil
}

// Put overwrites the cached event.
func (s *Store) Put(_ context.Context, event events.Event) error {
	raw, err := events.Encode(event)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(eventsBucket).Put([]byte(event.ID), raw)
	})
}

// Delete removes the cached event for id.
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	deleted := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(eventsBucket)
		if bucket.Get([]byte(id)) == nil {
			return nil
		}
		deleted = true
		return bucket.Delete([]byte(id))
	})
	return deleted, err
}

// HasKey reports whether id is cached.
func (s *Store) HasKey(_ context.Context, id string) (bool, error) {
	_, ok, err := s.get(eventsBucket, id)
	return ok, err
}

// List returns every cached event in key order.
func (s *Store) List(_ context.Context) ([]events.Event, error) {
	var list []events.Event
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(eventsBucket).ForEach(func(k, v []byte) error {
			event, err := events.Decode(v)
			if err != nil {
				s.logger.Warnf("bolt store: skip undecodable entry %s: %v", k, err)
				return nil
			}
			list = append(list, event)
			return nil
		})
	})
	return list, err
}

// Publish broadcasts event to local subscribers.
func (s *Store) Publish(_ context.Context, topic string, event events.Event) error {
	s.broker.Publish(topic, event)
	return nil
}

// Subscribe attaches a local subscriber for pattern.
func (s *Store) Subscribe(ctx context.Context, pattern string) (application.Subscription, error) {
	return s.broker.Subscribe(ctx, pattern), nil
}

// GetKey returns the registration secret for id.
func (s *Store) GetKey(_ context.Context, id string) (string, bool, error) {
	raw, ok, err := s.get(registrationsBucket, id)
	return string(raw), ok, err
}

// PutKeyIfAbsent stores key for id unless one exists, inside one transaction.
func (s *Store) PutKeyIfAbsent(_ context.Context, id, key string) (bool, error) {
	stored := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(registrationsBucket)
		if bucket.Get([]byte(id)) != nil {
			return nil
		}
		stored = true
		return bucket.Put([]byte(id), []byte(key))
	})
	return stored, err
}

// GetDocument returns the raw document stored under key.
func (s *Store) GetDocument(_ context.Context, key string) ([]byte, bool, error) {
	return s.get(documentsBucket, key)
}

// PutDocument stores a raw document under key.
func (s *Store) PutDocument(_ context.Context, key string, doc []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(documentsBucket).Put([]byte(key), doc)
	})
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}
