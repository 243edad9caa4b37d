package service

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/stretchr/testify/mock"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
)

var (
	errRedisDown   = errors.New("redis down")
	errSpeakerGone = errors.New("speaker gone")
	errDiskFull    = errors.New("disk full")
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type mockRoomRepo struct {
	mock.Mock
}

func (that *mockRoomRepo) Create(ctx context.Context, room *entity.Room) error {
	args := that.Called(ctx, room)
	return args.Error(0)
}

func (that *mockRoomRepo) Join(ctx context.Context, roomID, playerID string) (*entity.Room, error) {
	args := that.Called(ctx, roomID, playerID)
	return args.Get(0).(*entity.Room), args.Error(1)
}

func (that *mockRoomRepo) FindAvailable(ctx context.Context, excludingPlayerID string) (*entity.Room, error) {
	args := that.Called(ctx, excludingPlayerID)
	return args.Get(0).(*entity.Room), args.Error(1)
}

func (that *mockRoomRepo) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	args := that.Called(ctx, id)
	return args.Get(0).(*entity.Room), args.Error(1)
}

type mockCueSink struct {
	mock.Mock
}

func (that *mockCueSink) PlayCue(ctx context.Context, cue Cue) error {
	args := that.Called(ctx, cue)
	return args.Error(0)
}

type mockFavoritesRepo struct {
	mock.Mock
}

func (that *mockFavoritesRepo) Load(ctx context.Context) ([]string, error) {
	args := that.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (that *mockFavoritesRepo) Save(ctx context.Context, ids []string) error {
	args := that.Called(ctx, ids)
	return args.Error(0)
}
