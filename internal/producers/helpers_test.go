package producers

import (
	"context"
	"errors"
	"sync"
	"time"

	events "statusboard/internal/events/domain"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []events.Event
	err       error
}

func (r *recordingPublisher) Publish(_ context.Context, event events.Event) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	r.published = append(r.published, event)
	return true, nil
}

func (r *recordingPublisher) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.published...)
}

type mapCache map[string]events.Event

func (m mapCache) GetCachedOrEmpty(_ context.Context, id string) (events.Event, bool, error) {
	event, ok := m[id]
	return event, ok, nil
}

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time { return f.now }

var errPublish = errors.New("store down")
