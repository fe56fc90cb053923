// Package producers polls external systems and publishes their state as events.
package producers

import (
	"context"
	"time"

	events "statusboard/internal/events/domain"
)

// Source is one producer run on its own schedule.
type Source interface {
	Name() string
	Poll(ctx context.Context) error
}

// Publisher accepts events into the cache.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) (bool, error)
}

// Cache reads previously published events.
type Cache interface {
	GetCachedOrEmpty(ctx context.Context, id string) (events.Event, bool, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
