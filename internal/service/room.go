package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/pkg"
)

type RoomService interface {
	CreateRoom(ctx context.Context, initiatorID string) (*entity.Room, error)
	JoinRoom(ctx context.Context, roomID, joinerID string) (*entity.Room, error)
	FindAvailableRoom(ctx context.Context, excludingPlayerID string) (*entity.Room, error)
	GetRoom(ctx context.Context, roomID string) (*entity.Room, error)
}

type roomRepo interface {
	Create(ctx context.Context, room *entity.Room) error
	Join(ctx context.Context, roomID, playerID string) (*entity.Room, error)
	FindAvailable(ctx context.Context, excludingPlayerID string) (*entity.Room, error)
	GetByID(ctx context.Context, id string) (*entity.Room, error)
}

type roomService struct {
	logger   *slog.Logger
	roomRepo roomRepo
	defaults entity.RoomDefaults
	clock    clockwork.Clock
}

func NewRoomService(logger *slog.Logger, roomRepo roomRepo, defaults entity.RoomDefaults, clock clockwork.Clock) RoomService {
	return &roomService{
		logger:   logger.With("component", "roomService"),
		roomRepo: roomRepo,
		defaults: defaults,
		clock:    clock,
	}
}

// CreateRoom - inserts a waiting room owned by the initiator. Store errors are returned as is, nothing is retried.
func (that *roomService) CreateRoom(ctx context.Context, initiatorID string) (*entity.Room, error) {
	if initiatorID == "" {
		return nil, apperror.ErrInvalidPlayer
	}

	code, err := pkg.GenerateRoomCode()
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	room := entity.NewRoom(pkg.GenerateRoomID(), code, initiatorID, that.defaults, that.clock.Now().UTC())

	if err = that.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room in storage: %w", err)
	}

	that.logger.Debug("room created", "roomID", room.ID, "playerID", initiatorID)

	return room, nil
}

// JoinRoom - claims the second seat. apperror.ErrRoomNotJoinable means another player won the race.
func (that *roomService) JoinRoom(ctx context.Context, roomID, joinerID string) (*entity.Room, error) {
	if joinerID == "" {
		return nil, apperror.ErrInvalidPlayer
	}

	room, err := that.roomRepo.Join(ctx, roomID, joinerID)
	if err != nil {
		return nil, fmt.Errorf("failed to join room %s: %w", roomID, err)
	}

	that.logger.Debug("room joined", "roomID", room.ID, "playerID", joinerID)

	return room, nil
}

// FindAvailableRoom - oldest waiting room not created by excludingPlayerID.
// Returns apperror.ErrNoAvailableRoom when there is none.
func (that *roomService) FindAvailableRoom(ctx context.Context, excludingPlayerID string) (*entity.Room, error) {
	room, err := that.roomRepo.FindAvailable(ctx, excludingPlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find available room: %w", err)
	}

	return room, nil
}

func (that *roomService) GetRoom(ctx context.Context, roomID string) (*entity.Room, error) {
	room, err := that.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room %s: %w", roomID, err)
	}

	return room, nil
}
