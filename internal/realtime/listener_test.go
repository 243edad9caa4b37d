package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
)

const deliveryTimeout = 10 * time.Second

// collect - subscribes and returns a channel with every delivered row.
func collect(ctx context.Context, t *testing.T, listener Listener, roomID string) (<-chan *entity.Room, Subscription) {
	t.Helper()

	rooms := make(chan *entity.Room, 8)
	sub, err := listener.Subscribe(ctx, roomID, func(room *entity.Room) { rooms <- room })
	require.NoError(t, err)

	t.Cleanup(func() { _ = sub.Unsubscribe() })

	return rooms, sub
}

func waitRoom(t *testing.T, rooms <-chan *entity.Room) *entity.Room {
	t.Helper()

	select {
	case room := <-rooms:
		return room
	case <-time.After(deliveryTimeout):
		t.Fatal("room change was not delivered")
		return nil
	}
}

func assertSilent(t *testing.T, rooms <-chan *entity.Room) {
	t.Helper()

	select {
	case room := <-rooms:
		t.Fatalf("unexpected room change: %+v", room)
	case <-time.After(200 * time.Millisecond):
	}

	assert.Empty(t, rooms)
}
