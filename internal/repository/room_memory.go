package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
)

type memoryRoom struct {
	mu    sync.Mutex
	rooms map[string]*entity.Room
	// insertion order breaks created_at ties
	order []string
}

// NewMemoryRoomRepository - process-local room table. Join holds the lock across check and write,
// so of any number of concurrent joins on one room exactly one wins.
func NewMemoryRoomRepository() RoomRepository {
	return &memoryRoom{
		rooms: make(map[string]*entity.Room),
	}
}

func (that *memoryRoom) Create(_ context.Context, room *entity.Room) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.rooms[room.ID]; !ok {
		that.order = append(that.order, room.ID)
	}

	that.rooms[room.ID] = room.Clone()

	return nil
}

func (that *memoryRoom) Join(_ context.Context, roomID, playerID string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[roomID]
	if !ok || !room.IsJoinable() || room.Player1ID == playerID {
		return nil, apperror.ErrRoomNotJoinable
	}

	room.Player2ID = playerID
	room.Status = entity.StatusPlaying

	return room.Clone(), nil
}

func (that *memoryRoom) FindAvailable(_ context.Context, excludingPlayerID string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	candidates := make([]*entity.Room, 0, len(that.order))
	for _, id := range that.order {
		room := that.rooms[id]
		if room.IsJoinable() && room.Player1ID != excludingPlayerID {
			candidates = append(candidates, room)
		}
	}

	if len(candidates) == 0 {
		return nil, apperror.ErrNoAvailableRoom
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	return candidates[0].Clone(), nil
}

func (that *memoryRoom) GetByID(_ context.Context, id string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[id]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	return room.Clone(), nil
}
