package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statusboard/internal/events/infrastructure/memory"
	radiator "statusboard/internal/radiator/domain"
)

type brokenStore struct{}

func (brokenStore) GetDocument(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}

func (brokenStore) PutDocument(context.Context, string, []byte) error {
	return errors.New("down")
}

func sampleLayout(name string) radiator.Configuration {
	return radiator.Configuration{Pages: []radiator.Page{{
		Name: name, Rows: 1, Columns: 2,
		Tiles: []radiator.Tile{{EventID: "job.jenkins.api"}},
	}}}
}

func TestService_SetThenGet(t *testing.T) {
	ctx := context.Background()
	service, err := NewService(memory.NewStore(nil), nil)
	require.NoError(t, err)

	_, err = service.GetConfiguration(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)

	require.NoError(t, service.SetConfiguration(ctx, sampleLayout("Main")))
	got, err := service.GetConfiguration(ctx)
	require.NoError(t, err)
	require.Len(t, got.Pages, 1)
	assert.Equal(t, "Main", got.Pages[0].Name)
	assert.Equal(t, radiator.TileEvent, got.Pages[0].Tiles[0].TileType)
}

func TestService_SetRejectsInvalid(t *testing.T) {
	service, err := NewService(memory.NewStore(nil), nil)
	require.NoError(t, err)

	err = service.SetConfiguration(context.Background(), radiator.Configuration{Pages: []radiator.Page{{}}})
	assert.ErrorIs(t, err, radiator.ErrInvalidConfiguration)
}

func TestService_EnsureDefaultOnlyWhenMissing(t *testing.T) {
	ctx := context.Background()
	service, err := NewService(memory.NewStore(nil), nil)
	require.NoError(t, err)

	written, err := service.EnsureDefault(ctx, sampleLayout("Default"))
	require.NoError(t, err)
	assert.True(t, written)

	require.NoError(t, service.SetConfiguration(ctx, sampleLayout("Edited")))
	written, err = service.EnsureDefault(ctx, sampleLayout("Default"))
	require.NoError(t, err)
	assert.False(t, written)

	got, err := service.GetConfiguration(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Edited", got.Pages[0].Name)
}

func TestService_StoreFailure(t *testing.T) {
	service, err := NewService(brokenStore{}, nil)
	require.NoError(t, err)

	_, err = service.EnsureDefault(context.Background(), sampleLayout("Default"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotConfigured))

	_, err = NewService(nil, nil)
	assert.Error(t, err)
}
