package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
)

type repoFactory func(t *testing.T) (context.Context, RoomRepository)

var testDefaults = entity.RoomDefaults{BoardSize: 3, TimeLimit: 5 * time.Minute}

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestRoom(id, player1ID string, age time.Duration) *entity.Room {
	return entity.NewRoom(id, "CODE"+id, player1ID, testDefaults, baseTime.Add(-age))
}

// testRoomRepository - behaviour every RoomRepository implementation shares.
func testRoomRepository(t *testing.T, newRepo repoFactory) {
	t.Helper()

	t.Run("Create then GetByID returns the stored row", func(t *testing.T) {
		ctx, repo := newRepo(t)

		// Given: a freshly created room
		room := newTestRoom("r1", "p1", 0)
		require.NoError(t, repo.Create(ctx, room))

		// When: it is fetched by id
		stored, err := repo.GetByID(ctx, "r1")

		// Then: every field round-trips
		require.NoError(t, err)
		assert.Equal(t, room.ID, stored.ID)
		assert.Equal(t, room.Code, stored.Code)
		assert.Equal(t, entity.StatusWaiting, stored.Status)
		assert.Equal(t, "p1", stored.Player1ID)
		assert.Empty(t, stored.Player2ID)
		assert.Equal(t, entity.PlayerX, stored.CurrentPlayer)
		assert.Equal(t, room.Board, stored.Board)
		assert.Equal(t, 300, stored.TimeLeftX)
		assert.Equal(t, 300, stored.TimeLeftO)
		assert.Empty(t, stored.Winner)
		assert.Nil(t, stored.LastMove)
		assert.True(t, room.CreatedAt.Equal(stored.CreatedAt))
	})

	t.Run("GetByID returns ErrRoomNotFound for unknown id", func(t *testing.T) {
		ctx, repo := newRepo(t)

		room, err := repo.GetByID(ctx, "missing")

		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
		assert.Nil(t, room)
	})

	t.Run("FindAvailable returns the oldest waiting room", func(t *testing.T) {
		ctx, repo := newRepo(t)

		// Given: three waiting rooms of different age
		require.NoError(t, repo.Create(ctx, newTestRoom("young", "p1", time.Second)))
		require.NoError(t, repo.Create(ctx, newTestRoom("old", "p2", time.Minute)))
		require.NoError(t, repo.Create(ctx, newTestRoom("middle", "p3", 10*time.Second)))

		// When: a fourth player looks for a room
		room, err := repo.FindAvailable(ctx, "p4")

		// Then: the one that waited longest is offered
		require.NoError(t, err)
		assert.Equal(t, "old", room.ID)
	})

	t.Run("FindAvailable never returns the caller's own room", func(t *testing.T) {
		ctx, repo := newRepo(t)

		// Given: the oldest room belongs to the caller
		require.NoError(t, repo.Create(ctx, newTestRoom("mine", "me", time.Minute)))
		require.NoError(t, repo.Create(ctx, newTestRoom("theirs", "other", time.Second)))

		// When: the caller looks for a room
		room, err := repo.FindAvailable(ctx, "me")

		// Then: the other player's room is returned
		require.NoError(t, err)
		assert.Equal(t, "theirs", room.ID)
		assert.NotEqual(t, "me", room.Player1ID)

		// And: with only own rooms left nothing is found
		_, err = repo.Join(ctx, "theirs", "third")
		require.NoError(t, err)

		_, err = repo.FindAvailable(ctx, "me")
		require.ErrorIs(t, err, apperror.ErrNoAvailableRoom)
	})

	t.Run("FindAvailable returns ErrNoAvailableRoom on empty store", func(t *testing.T) {
		ctx, repo := newRepo(t)

		room, err := repo.FindAvailable(ctx, "p1")

		require.ErrorIs(t, err, apperror.ErrNoAvailableRoom)
		assert.Nil(t, room)
	})

	t.Run("Join claims the second seat and starts the game", func(t *testing.T) {
		ctx, repo := newRepo(t)

		// Given: a waiting room
		require.NoError(t, repo.Create(ctx, newTestRoom("r1", "p1", 0)))

		// When: another player joins
		room, err := repo.Join(ctx, "r1", "p2")

		// Then: the updated row is returned and persisted
		require.NoError(t, err)
		assert.Equal(t, "p2", room.Player2ID)
		assert.Equal(t, entity.StatusPlaying, room.Status)

		stored, err := repo.GetByID(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "p2", stored.Player2ID)
		assert.Equal(t, entity.StatusPlaying, stored.Status)

		// And: the room is no longer offered
		_, err = repo.FindAvailable(ctx, "p3")
		require.ErrorIs(t, err, apperror.ErrNoAvailableRoom)
	})

	t.Run("Join returns ErrRoomNotJoinable when the seat is taken", func(t *testing.T) {
		ctx, repo := newRepo(t)

		// Given: a room that somebody already joined
		require.NoError(t, repo.Create(ctx, newTestRoom("r1", "p1", 0)))
		_, err := repo.Join(ctx, "r1", "p2")
		require.NoError(t, err)

		// When: a late player tries to join
		room, err := repo.Join(ctx, "r1", "p3")

		// Then: the race is reported lost and the row keeps the first joiner
		require.ErrorIs(t, err, apperror.ErrRoomNotJoinable)
		assert.Nil(t, room)

		stored, err := repo.GetByID(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "p2", stored.Player2ID)
	})

	t.Run("Join returns ErrRoomNotJoinable for unknown or own room", func(t *testing.T) {
		ctx, repo := newRepo(t)

		require.NoError(t, repo.Create(ctx, newTestRoom("r1", "p1", 0)))

		_, err := repo.Join(ctx, "missing", "p2")
		require.ErrorIs(t, err, apperror.ErrRoomNotJoinable)

		_, err = repo.Join(ctx, "r1", "p1")
		require.ErrorIs(t, err, apperror.ErrRoomNotJoinable)
	})

	t.Run("Concurrent joins on one room have exactly one winner", func(t *testing.T) {
		ctx, repo := newRepo(t)

		// Given: one waiting room and many players racing for it
		require.NoError(t, repo.Create(ctx, newTestRoom("r1", "host", 0)))

		const racers = 16

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners []string
			others  []error
		)

		// When: they all join at once
		for i := range racers {
			wg.Add(1)
			go func(playerID string) {
				defer wg.Done()

				room, err := repo.Join(ctx, "r1", playerID)

				mu.Lock()
				defer mu.Unlock()

				switch {
				case err == nil:
					winners = append(winners, room.Player2ID)
				case !errors.Is(err, apperror.ErrRoomNotJoinable):
					others = append(others, err)
				}
			}(fmt.Sprintf("racer-%d", i))
		}
		wg.Wait()

		// Then: a single racer holds the seat and everybody else lost cleanly
		require.Empty(t, others)
		require.Len(t, winners, 1)

		stored, err := repo.GetByID(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, winners[0], stored.Player2ID)
	})
}
