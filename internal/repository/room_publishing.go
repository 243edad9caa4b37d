package repository

import (
	"context"
	"log/slog"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
)

type roomPublisher interface {
	Publish(ctx context.Context, room *entity.Room) error
}

type publishingRoom struct {
	RoomRepository

	logger    *slog.Logger
	publisher roomPublisher
}

// NewPublishingRoomRepository - wraps a store that has no change feed of its own and publishes
// every created or joined row. The row is already written when publishing fails, so the failure
// is logged and the write still counts.
func NewPublishingRoomRepository(logger *slog.Logger, repo RoomRepository, publisher roomPublisher) RoomRepository {
	return &publishingRoom{
		RoomRepository: repo,
		logger:         logger.With("component", "publishingRoomRepository"),
		publisher:      publisher,
	}
}

func (that *publishingRoom) Create(ctx context.Context, room *entity.Room) error {
	if err := that.RoomRepository.Create(ctx, room); err != nil {
		return err
	}

	that.publish(ctx, room)

	return nil
}

func (that *publishingRoom) Join(ctx context.Context, roomID, playerID string) (*entity.Room, error) {
	room, err := that.RoomRepository.Join(ctx, roomID, playerID)
	if err != nil {
		return nil, err
	}

	that.publish(ctx, room)

	return room, nil
}

func (that *publishingRoom) publish(ctx context.Context, room *entity.Room) {
	if err := that.publisher.Publish(ctx, room); err != nil {
		that.logger.Error("failed to publish room change", "roomID", room.ID, "error", err)
	}
}
