package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"statusboard/internal/events/application"
	events "statusboard/internal/events/domain"
	"statusboard/internal/events/infrastructure/memory"
)

const (
	defaultEventsTable        = "cached_events"
	defaultRegistrationsTable = "event_registrations"
	defaultDocumentsTable     = "documents"
	// DefaultChannel is the LISTEN/NOTIFY channel carrying broadcasts.
	DefaultChannel = "statusboard_events"
)

// Schema creates the tables used by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS cached_events (
	id TEXT PRIMARY KEY,
	payload JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS event_registrations (
	id TEXT PRIMARY KEY,
	secret TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS documents (
	key TEXT PRIMARY KEY,
	body JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Store keeps events, registrations and documents in Postgres and broadcasts
// through NOTIFY. Live subscribers are served from an in-process broker fed by a Listener.
type Store struct {
	db            *sql.DB
	eventsTable   string
	registrations string
	documents     string
	channel       string
	broker        *memory.Broker
	logger        logrus.FieldLogger
}

// Option configures the store.
type Option func(*Store)

// WithEventsTable overrides the cache table name.
func WithEventsTable(table string) Option {
	return func(s *Store) {
		if table != "" {
			s.eventsTable = table
		}
	}
}

// WithChannel overrides the notification channel.
func WithChannel(channel string) Option {
	return func(s *Store) {
		if channel != "" {
			s.channel = channel
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore constructs a store.
func NewStore(db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("postgres store: nil db")
	}
	s := &Store{
		db:            db,
		eventsTable:   defaultEventsTable,
		registrations: defaultRegistrationsTable,
		documents:     defaultDocumentsTable,
		channel:       DefaultChannel,
		logger:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.broker = memory.NewBroker(0, s.logger)
	return s, nil
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

// Get returns the cached event for id.
func (s *Store) Get(ctx context.Context, id string) (events.Event, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT payload FROM %s WHERE id = $1`, s.eventsTable), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return events.Event{}, false, nil
	}
	if err != nil {
		return events.Event{}, false, err
	}
	event, err := events.Decode(payload)
	if err != nil {
		return events.Event{}, false, err
	}
	return event, true, nil
}

// Put upserts the cached event.
func (s *Store) Put(ctx context.Context, event events.Event) error {
	payload, err := events.Encode(event)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, payload, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (id)
DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`, s.eventsTable)
	_, err = s.db.ExecContext(ctx, query, event.ID, payload)
	return err
}

// Delete removes the cached event for id.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.eventsTable), id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// HasKey reports whether id is cached.
func (s *Store) HasKey(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, s.eventsTable), id).Scan(&exists)
	return exists, err
}

// List returns every cached event ordered by id.
func (s *Store) List(ctx context.Context) ([]events.Event, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT payload FROM %s ORDER BY id`, s.eventsTable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []events.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		event, err := events.Decode(payload)
		if err != nil {
			s.logger.Warnf("postgres store: skip undecodable cache row: %v", err)
			continue
		}
		list = append(list, event)
	}
	return list, rows.Err()
}

// maxInlineNotify keeps NOTIFY payloads under the server's 8000 byte limit.
const maxInlineNotify = 7900

// notification is the NOTIFY payload. Events too large to inline travel by id
// and are read back from the cache on delivery.
type notification struct {
	Topic string          `json:"topic"`
	ID    string          `json:"id,omitempty"`
	Event json.RawMessage `json:"event,omitempty"`
}

// Publish sends event on the notification channel.
func (s *Store) Publish(ctx context.Context, topic string, event events.Event) error {
	raw, err := events.Encode(event)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(notification{Topic: topic, Event: raw})
	if err != nil {
		return err
	}
	if len(payload) > maxInlineNotify {
		payload, err = json.Marshal(notification{Topic: topic, ID: event.ID})
		if err != nil {
			return err
		}
		if len(payload) > maxInlineNotify {
			return fmt.Errorf("postgres store: notification for %s exceeds %d bytes", event.ID, maxInlineNotify)
		}
	}
	_, err = s.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, s.channel, string(payload))
	return err
}

// Subscribe attaches an in-process subscriber; a running Listener feeds it.
func (s *Store) Subscribe(ctx context.Context, pattern string) (application.Subscription, error) {
	return s.broker.Subscribe(ctx, pattern), nil
}

// Deliver hands one raw notification to local subscribers.
func (s *Store) Deliver(ctx context.Context, payload string) error {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return err
	}
	if len(n.Event) > 0 {
		event, err := events.Decode(n.Event)
		if err != nil {
			return err
		}
		s.broker.Publish(n.Topic, event)
		return nil
	}
	if n.ID == "" {
		return errors.New("postgres store: notification carries neither event nor id")
	}
	event, ok, err := s.Get(ctx, n.ID)
	if err != nil {
		return fmt.Errorf("postgres store: read back %s: %w", n.ID, err)
	}
	if !ok {
		s.logger.Debugf("postgres store: %s deleted before delivery", n.ID)
		return nil
	}
	s.broker.Publish(n.Topic, event)
	return nil
}

// Channel returns the notification channel name.
func (s *Store) Channel() string {
	return s.channel
}

// GetKey returns the registration secret for id.
func (s *Store) GetKey(ctx context.Context, id string) (string, bool, error) {
	var key string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT secret FROM %s WHERE id = $1`, s.registrations), id).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return key, true, nil
}

// PutKeyIfAbsent inserts the registration unless one exists.
func (s *Store) PutKeyIfAbsent(ctx context.Context, id, key string) (bool, error) {
	query := fmt.Sprintf(`
INSERT INTO %s (id, secret)
VALUES ($1, $2)
ON CONFLICT (id)
DO NOTHING`, s.registrations)
	result, err := s.db.ExecContext(ctx, query, id, key)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// GetDocument returns the raw document stored under key.
func (s *Store) GetDocument(ctx context.Context, key string) ([]byte, bool, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT body FROM %s WHERE key = $1`, s.documents), key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

// PutDocument upserts a raw document under key.
func (s *Store) PutDocument(ctx context.Context, key string, doc []byte) error {
	query := fmt.Sprintf(`
INSERT INTO %s (key, body, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key)
DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`, s.documents)
	_, err := s.db.ExecContext(ctx, query, key, doc)
	return err
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
