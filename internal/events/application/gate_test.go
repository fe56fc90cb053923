package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statusboard/internal/auth"
	"statusboard/internal/events/application"
	events "statusboard/internal/events/domain"
	"statusboard/internal/events/infrastructure/memory"
)

type gateFixture struct {
	gate      *application.Gate
	publisher *application.Publisher
	hook      *logtest.Hook
}

func newGate(t *testing.T, opts ...application.GateOption) gateFixture {
	t.Helper()
	store := memory.NewStore(nil)
	publisher, err := application.NewPublisher(store)
	require.NoError(t, err)
	logger, hook := logtest.NewNullLogger()
	opts = append([]application.GateOption{application.WithGateLogger(logger)}, opts...)
	gate, err := application.NewGate(store, publisher, opts...)
	require.NoError(t, err)
	return gateFixture{gate: gate, publisher: publisher, hook: hook}
}

func TestGate_RegisterIsSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newGate(t)

	key, err := f.gate.Register(ctx, "job.a")
	require.NoError(t, err)
	require.NotEmpty(t, key)

	_, err = f.gate.Register(ctx, "job.a")
	assert.ErrorIs(t, err, application.ErrAlreadyRegistered)

	stored, err := f.gate.KeyOrError(ctx, "job.a")
	require.NoError(t, err)
	assert.Equal(t, key, stored)
}

func TestGate_PublishRegisteredRequiresKey(t *testing.T) {
	ctx := context.Background()
	f := newGate(t)
	key, err := f.gate.Register(ctx, "job.a")
	require.NoError(t, err)

	_, err = f.gate.Publish(ctx, jobEvent("job.a", events.JobFailure), "wrong")
	assert.ErrorIs(t, err, application.ErrIncorrectKey)
	_, err = f.gate.Publish(ctx, jobEvent("job.a", events.JobFailure), "")
	assert.ErrorIs(t, err, application.ErrIncorrectKey)

	_, ok, err := f.publisher.GetCachedOrEmpty(ctx, "job.a")
	require.NoError(t, err)
	assert.False(t, ok, "rejected publish must not mutate the cache")

	notified, err := f.gate.Publish(ctx, jobEvent("job.a", events.JobFailure), key)
	require.NoError(t, err)
	assert.True(t, notified)
}

func TestGate_DeleteRegisteredRequiresKey(t *testing.T) {
	ctx := context.Background()
	f := newGate(t)
	key, err := f.gate.Register(ctx, "job.a")
	require.NoError(t, err)
	_, err = f.gate.Publish(ctx, jobEvent("job.a", events.JobSuccess), key)
	require.NoError(t, err)

	_, err = f.gate.Delete(ctx, "job.a", "wrong")
	assert.ErrorIs(t, err, application.ErrIncorrectKey)
	_, ok, _ := f.publisher.GetCachedOrEmpty(ctx, "job.a")
	assert.True(t, ok)

	deleted, err := f.gate.Delete(ctx, "job.a", key)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestGate_UnregisteredAcceptsAnyKey(t *testing.T) {
	ctx := context.Background()
	f := newGate(t)

	notified, err := f.gate.Publish(ctx, jobEvent("job.free", events.JobSuccess), "whatever")
	require.NoError(t, err)
	assert.True(t, notified)

	require.NotEmpty(t, f.hook.Entries)
	entry := f.hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "Event [job.free] has been published without registration.", entry.Message)

	deleted, err := f.gate.Delete(ctx, "job.free", "")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, []string{
		"Event [job.free] has been published without registration.",
		"Event [job.free] has been deleted without registration.",
	}, warnings(f.hook))
}

func warnings(hook *logtest.Hook) []string {
	var out []string
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			out = append(out, entry.Message)
		}
	}
	return out
}

// Deleting the cached event keeps the registration: the original key is still required afterwards.
func TestGate_DeleteDoesNotDeregister(t *testing.T) {
	ctx := context.Background()
	f := newGate(t)
	key, err := f.gate.Register(ctx, "job.a")
	require.NoError(t, err)
	_, err = f.gate.Publish(ctx, jobEvent("job.a", events.JobFailure), key)
	require.NoError(t, err)

	_, err = f.gate.Delete(ctx, "job.a", key)
	require.NoError(t, err)

	_, err = f.gate.Publish(ctx, jobEvent("job.a", events.JobFailure), "other")
	assert.ErrorIs(t, err, application.ErrIncorrectKey)

	notified, err := f.gate.Publish(ctx, jobEvent("job.a", events.JobFailure), key)
	require.NoError(t, err)
	assert.True(t, notified)

	_, err = f.gate.Register(ctx, "job.a")
	assert.ErrorIs(t, err, application.ErrAlreadyRegistered)
}

func TestGate_KeyOrErrorNotRegistered(t *testing.T) {
	f := newGate(t)
	_, err := f.gate.KeyOrError(context.Background(), "nope")
	assert.ErrorIs(t, err, application.ErrNotRegistered)
}

func TestGate_SignedKeys(t *testing.T) {
	ctx := context.Background()
	secret := []byte("signing-secret")
	issuer, err := auth.NewJWTIssuer(secret, "")
	require.NoError(t, err)
	f := newGate(t, application.WithKeyIssuer(issuer))

	key, err := f.gate.Register(ctx, "job.a")
	require.NoError(t, err)
	claims, err := auth.ParseRegistrationKey(key, secret)
	require.NoError(t, err)
	assert.Equal(t, "job.a", claims.EventID)

	_, err = f.gate.Publish(ctx, jobEvent("job.a", events.JobSuccess), key)
	require.NoError(t, err)
}

func TestGate_StoreFailure(t *testing.T) {
	ctx := context.Background()
	store := failingStore{err: errors.New("down")}
	publisher, err := application.NewPublisher(store)
	require.NoError(t, err)
	gate, err := application.NewGate(store, publisher)
	require.NoError(t, err)

	_, err = gate.Register(ctx, "job.a")
	assert.ErrorIs(t, err, application.ErrStoreUnavailable)
	_, err = gate.Publish(ctx, jobEvent("job.a", events.JobSuccess), "")
	assert.ErrorIs(t, err, application.ErrStoreUnavailable)
}

func TestNewGate_NilDependencies(t *testing.T) {
	_, err := application.NewGate(nil, nil)
	assert.Error(t, err)
}
