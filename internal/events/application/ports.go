package application

import (
	"context"
	"errors"

	events "statusboard/internal/events/domain"
)

var (
	// ErrStoreUnavailable wraps any I/O failure talking to the event or registration store.
	ErrStoreUnavailable = errors.New("events: store unavailable")
	// ErrAlreadyRegistered is returned when an identifier already holds a secret.
	ErrAlreadyRegistered = errors.New("events: already registered")
	// ErrIncorrectKey is returned when the provided key does not match the registered secret.
	ErrIncorrectKey = errors.New("events: incorrect key")
	// ErrNotRegistered is returned when a secret is looked up for an unregistered identifier.
	ErrNotRegistered = errors.New("events: not registered")
	// ErrEmptyID rejects operations on a blank identifier.
	ErrEmptyID = errors.New("events: empty id")
)

// EventStore holds the latest event per identifier and broadcasts by topic.
type EventStore interface {
	Get(ctx context.Context, id string) (events.Event, bool, error)
	Put(ctx context.Context, event events.Event) error
	Delete(ctx context.Context, id string) (bool, error)
	HasKey(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]events.Event, error)
	Publish(ctx context.Context, topic string, event events.Event) error
	Subscribe(ctx context.Context, pattern string) (Subscription, error)
}

// Subscription is a live feed of broadcasts matching one pattern.
// Events is closed once the subscription ends.
type Subscription interface {
	Events() <-chan events.Event
	Close() error
}

// RegistrationStore maps identifiers to their secrets.
type RegistrationStore interface {
	GetKey(ctx context.Context, id string) (string, bool, error)
	// PutKeyIfAbsent stores key unless id already has one and reports whether it stored.
	PutKeyIfAbsent(ctx context.Context, id, key string) (bool, error)
}

// KeyIssuer mints registration secrets.
type KeyIssuer interface {
	Issue(id string) (string, error)
}
