package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	events "statusboard/internal/events/domain"
)

func TestStore_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer db.Close()

	store, err := NewStore(db)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, store.EnsureSchema(ctx))
	_, _ = db.ExecContext(ctx, "DELETE FROM cached_events WHERE id LIKE 'it.%'")

	listener, err := NewListener(dsn, store, nil)
	require.NoError(t, err)
	go listener.Run(ctx)

	sub, err := store.Subscribe(ctx, "event.it*")
	require.NoError(t, err)
	// Give the listener time to issue LISTEN.
	time.Sleep(500 * time.Millisecond)

	event := events.New("it.a", "A", events.LevelOK, events.StringPtr("2024-03-01T00:00:00Z"), events.Figure{Value: "1"})
	require.NoError(t, store.Put(ctx, event))
	require.NoError(t, store.Publish(ctx, "event.it.a", event))

	got, ok, err := store.Get(ctx, "it.a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, events.Equal(event, got))

	select {
	case delivered := <-sub.Events():
		assert.Equal(t, "it.a", delivered.ID)
	case <-ctx.Done():
		t.Fatal("notification not delivered")
	}
}
