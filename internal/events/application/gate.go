package application

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"statusboard/internal/auth"
	events "statusboard/internal/events/domain"
	"statusboard/internal/observability/metrics"
	"statusboard/internal/observability/tracing"
)

// Gate enforces per-identifier ownership in front of the publisher.
//
// An identifier is either unregistered, in which case anyone may publish or
// delete it, or registered with a secret that every mutation must present.
// Deleting the cached event leaves the registration in place.
type Gate struct {
	registrations RegistrationStore
	publisher     *Publisher
	issuer        KeyIssuer
	logger        logrus.FieldLogger
}

// GateOption customizes the gate.
type GateOption func(*Gate)

// WithKeyIssuer replaces the default random secret issuer.
func WithKeyIssuer(issuer KeyIssuer) GateOption {
	return func(g *Gate) {
		if issuer != nil {
			g.issuer = issuer
		}
	}
}

// WithGateLogger assigns a logger.
func WithGateLogger(logger logrus.FieldLogger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGate constructs a gate.
func NewGate(registrations RegistrationStore, publisher *Publisher, opts ...GateOption) (*Gate, error) {
	if registrations == nil {
		return nil, errors.New("events gate: nil registration store")
	}
	if publisher == nil {
		return nil, errors.New("events gate: nil publisher")
	}
	g := &Gate{
		registrations: registrations,
		publisher:     publisher,
		issuer:        auth.UUIDIssuer{},
		logger:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Register claims id and returns its new secret.
func (g *Gate) Register(ctx context.Context, id string) (key string, err error) {
	if id == "" {
		return "", ErrEmptyID
	}
	ctx, span := tracing.StartEventSpan(ctx, "register", id)
	defer func() {
		tracing.End(span, err)
		switch {
		case err == nil:
			metrics.IncRegistration(metrics.ResultSuccess)
		case errors.Is(err, ErrAlreadyRegistered):
			metrics.IncRegistration("conflict")
		default:
			metrics.IncRegistration(metrics.ResultError)
		}
	}()

	key, err = g.issuer.Issue(id)
	if err != nil {
		return "", fmt.Errorf("events gate: issue key: %w", err)
	}
	stored, err := g.registrations.PutKeyIfAbsent(ctx, id, key)
	if err != nil {
		metrics.IncStoreError("register")
		return "", fmt.Errorf("%w: register %s: %w", ErrStoreUnavailable, id, err)
	}
	if !stored {
		return "", ErrAlreadyRegistered
	}
	g.logger.WithField("event_id", id).Info("event registered")
	return key, nil
}

// Publish authorizes providedKey for the event's identifier and publishes it.
func (g *Gate) Publish(ctx context.Context, event events.Event, providedKey string) (bool, error) {
	if err := g.authorize(ctx, "published", event.ID, providedKey); err != nil {
		if errors.Is(err, ErrIncorrectKey) {
			metrics.ObservePublish(metrics.PublishRejected, 0)
		}
		return false, err
	}
	return g.publisher.Publish(ctx, event)
}

// Delete authorizes providedKey for id and removes its cached event.
func (g *Gate) Delete(ctx context.Context, id, providedKey string) (bool, error) {
	if err := g.authorize(ctx, "deleted", id, providedKey); err != nil {
		return false, err
	}
	return g.publisher.Delete(ctx, id)
}

// KeyOrError returns the registered secret for id.
func (g *Gate) KeyOrError(ctx context.Context, id string) (string, error) {
	key, ok, err := g.registrations.GetKey(ctx, id)
	if err != nil {
		metrics.IncStoreError("get_key")
		return "", fmt.Errorf("%w: get key %s: %w", ErrStoreUnavailable, id, err)
	}
	if !ok {
		return "", ErrNotRegistered
	}
	return key, nil
}

// IsRegistered reports whether id holds a secret.
func (g *Gate) IsRegistered(ctx context.Context, id string) (bool, error) {
	_, err := g.KeyOrError(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotRegistered):
		return false, nil
	default:
		return false, err
	}
}

// authorize checks providedKey against the registration for id. action names
// the operation in the warning logged for unregistered identifiers.
func (g *Gate) authorize(ctx context.Context, action, id, providedKey string) error {
	if id == "" {
		return ErrEmptyID
	}
	registered, err := g.IsRegistered(ctx, id)
	if err != nil {
		return err
	}
	if !registered {
		g.logger.Warnf("Event [%s] has been %s without registration.", id, action)
		return nil
	}
	key, err := g.KeyOrError(ctx, id)
	if err != nil {
		return err
	}
	if providedKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(providedKey)) != 1 {
		return ErrIncorrectKey
	}
	return nil
}
