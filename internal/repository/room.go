package repository

import (
	"context"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
)

// RoomRepository - the room table. Join is the only mutation that decides a race and every
// implementation performs it as a single conditional write.
type RoomRepository interface {
	Create(ctx context.Context, room *entity.Room) error
	// Join sets player2_id and status=playing only when the room is waiting and has no second player.
	// Returns apperror.ErrRoomNotJoinable when no row matched.
	Join(ctx context.Context, roomID, playerID string) (*entity.Room, error)
	// FindAvailable returns the oldest joinable room not created by excludingPlayerID,
	// or apperror.ErrNoAvailableRoom.
	FindAvailable(ctx context.Context, excludingPlayerID string) (*entity.Room, error)
	GetByID(ctx context.Context, id string) (*entity.Room, error)
}
