package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
)

func TestHub(t *testing.T) {
	ctx := context.Background()

	t.Run("Delivers rows only to subscribers of that room", func(t *testing.T) {
		// Given: two subscribers on different rooms
		hub := NewHub()

		var got1, got2 []*entity.Room
		_, err := hub.Subscribe(ctx, "r1", func(room *entity.Room) { got1 = append(got1, room) })
		require.NoError(t, err)
		_, err = hub.Subscribe(ctx, "r2", func(room *entity.Room) { got2 = append(got2, room) })
		require.NoError(t, err)

		// When: a change for r1 is published
		require.NoError(t, hub.Publish(ctx, &entity.Room{ID: "r1", Status: entity.StatusPlaying}))

		// Then: only the r1 subscriber sees it
		require.Len(t, got1, 1)
		assert.Equal(t, entity.StatusPlaying, got1[0].Status)
		assert.Empty(t, got2)
	})

	t.Run("Unsubscribe stops delivery and is idempotent", func(t *testing.T) {
		hub := NewHub()

		calls := 0
		sub, err := hub.Subscribe(ctx, "r1", func(*entity.Room) { calls++ })
		require.NoError(t, err)
		assert.Equal(t, 1, hub.Subscribers("r1"))

		// When: unsubscribing twice
		require.NoError(t, sub.Unsubscribe())
		require.NoError(t, sub.Unsubscribe())

		// Then: no handler is left and publishing reaches nobody
		assert.Equal(t, 0, hub.Subscribers("r1"))
		require.NoError(t, hub.Publish(ctx, &entity.Room{ID: "r1"}))
		assert.Equal(t, 0, calls)
	})

	t.Run("Handlers receive copies", func(t *testing.T) {
		hub := NewHub()
		room := &entity.Room{ID: "r1", Board: entity.NewBoard(3)}

		_, err := hub.Subscribe(ctx, "r1", func(got *entity.Room) { got.Board[0][0] = entity.PlayerX })
		require.NoError(t, err)

		require.NoError(t, hub.Publish(ctx, room))

		assert.Equal(t, entity.EmptyCell, room.Board[0][0])
	})
}

func TestSubscription_ReleasesOnce(t *testing.T) {
	released := 0
	sub := newSubscription(func() error {
		released++
		return nil
	})

	for range 3 {
		require.NoError(t, sub.Unsubscribe())
	}

	assert.Equal(t, 1, released)
}
