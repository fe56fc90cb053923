package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statusboard/internal/events/application"
	events "statusboard/internal/events/domain"
	"statusboard/internal/events/infrastructure/memory"
)

func jobEvent(id string, status events.JobStatus) events.Event {
	return events.New(id, "Job "+id, events.LevelOK, events.StringPtr("2024-03-01T10:00:00Z"), events.Job{
		Status: status,
		URL:    events.StringPtr("http://ci/" + id),
	})
}

func newPublisher(t *testing.T) (*application.Publisher, *memory.Store) {
	t.Helper()
	store := memory.NewStore(nil)
	publisher, err := application.NewPublisher(store)
	require.NoError(t, err)
	return publisher, store
}

func TestPublisher_FirstPublishNotifies(t *testing.T) {
	ctx := context.Background()
	publisher, store := newPublisher(t)
	sub, err := store.Subscribe(ctx, "event*")
	require.NoError(t, err)
	defer sub.Close()

	notified, err := publisher.Publish(ctx, jobEvent("job.a", events.JobFailure))
	require.NoError(t, err)
	assert.True(t, notified)

	cached, ok, err := publisher.GetCachedOrEmpty(ctx, "job.a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, events.LevelError, cached.Level)

	select {
	case event := <-sub.Events():
		assert.Equal(t, "job.a", event.ID)
	case <-time.After(time.Second):
		t.Fatal("expected broadcast")
	}
}

func TestPublisher_UnchangedEventIsSkipped(t *testing.T) {
	ctx := context.Background()
	publisher, store := newPublisher(t)

	_, err := publisher.Publish(ctx, jobEvent("job.a", events.JobSuccess))
	require.NoError(t, err)

	sub, err := store.Subscribe(ctx, "event*")
	require.NoError(t, err)
	defer sub.Close()

	notified, err := publisher.Publish(ctx, jobEvent("job.a", events.JobSuccess))
	require.NoError(t, err)
	assert.False(t, notified)

	select {
	case event := <-sub.Events():
		t.Fatalf("unexpected broadcast of %s", event.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublisher_ChangedEventNotifies(t *testing.T) {
	ctx := context.Background()
	publisher, _ := newPublisher(t)

	_, err := publisher.Publish(ctx, jobEvent("job.a", events.JobSuccess))
	require.NoError(t, err)

	notified, err := publisher.Publish(ctx, jobEvent("job.a", events.JobFailure))
	require.NoError(t, err)
	assert.True(t, notified)

	cached, _, err := publisher.GetCachedOrEmpty(ctx, "job.a")
	require.NoError(t, err)
	assert.Equal(t, events.JobFailure, cached.Payload.(events.Job).Status)
}

func TestPublisher_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	publisher, _ := newPublisher(t)

	deleted, err := publisher.Delete(ctx, "job.a")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = publisher.Publish(ctx, jobEvent("job.a", events.JobSuccess))
	require.NoError(t, err)

	deleted, err = publisher.Delete(ctx, "job.a")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = publisher.Delete(ctx, "job.a")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, ok, err := publisher.GetCachedOrEmpty(ctx, "job.a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPublisher_StoreFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	publisher, err := application.NewPublisher(failingStore{err: errors.New("connection refused")})
	require.NoError(t, err)

	_, err = publisher.Publish(ctx, jobEvent("job.a", events.JobSuccess))
	require.Error(t, err)
	assert.True(t, errors.Is(err, application.ErrStoreUnavailable))

	_, err = publisher.Delete(ctx, "job.a")
	assert.True(t, errors.Is(err, application.ErrStoreUnavailable))

	_, _, err = publisher.GetCachedOrEmpty(ctx, "job.a")
	assert.True(t, errors.Is(err, application.ErrStoreUnavailable))
}

func TestPublisher_RejectsEmptyID(t *testing.T) {
	publisher, _ := newPublisher(t)
	_, err := publisher.Publish(context.Background(), events.Event{})
	assert.ErrorIs(t, err, application.ErrEmptyID)
}

func TestNewPublisher_NilStore(t *testing.T) {
	_, err := application.NewPublisher(nil)
	assert.Error(t, err)
}

type failingStore struct {
	err error
}

func (s failingStore) Get(context.Context, string) (events.Event, bool, error) {
	return events.Event{}, false, s.err
}
func (s failingStore) Put(context.Context, events.Event) error      { return s.err }
func (s failingStore) Delete(context.Context, string) (bool, error) { return false, s.err }
func (s failingStore) HasKey(context.Context, string) (bool, error) { return false, s.err }
func (s failingStore) List(context.Context) ([]events.Event, error) { return nil, s.err }
func (s failingStore) Publish(context.Context, string, events.Event) error {
	return s.err
}
func (s failingStore) Subscribe(context.Context, string) (application.Subscription, error) {
	return nil, s.err
}
func (s failingStore) GetKey(context.Context, string) (string, bool, error) {
	return "", false, s.err
}
func (s failingStore) PutKeyIfAbsent(context.Context, string, string) (bool, error) {
	return false, s.err
}
