package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/realtime"
)

const (
	waitingRoomsKey = "rooms:waiting"

	maxJoinAttempts = 5
	findBatchSize   = 50
)

type dbRedisRoom struct {
	client *redis.Client
}

// NewRedisRoomRepository - rooms live as JSON under room:<id>, joinable rooms are indexed in a
// sorted set scored by creation time. Every write publishes the row on the room's change channel.
func NewRedisRoomRepository(client *redis.Client) RoomRepository {
	return &dbRedisRoom{
		client: client,
	}
}

func roomKey(id string) string {
	return "room:" + id
}

func (that *dbRedisRoom) Create(ctx context.Context, room *entity.Room) error {
	roomJSON, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("could not marshal room: %w", err)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, roomKey(room.ID), roomJSON, 0)
		pipe.ZAdd(ctx, waitingRoomsKey, redis.Z{Score: float64(room.CreatedAt.UnixMilli()), Member: room.ID})
		pipe.Publish(ctx, realtime.ChannelName(room.ID), roomJSON)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set room: %w", err)
	}

	return nil
}

func (that *dbRedisRoom) Join(ctx context.Context, roomID, playerID string) (*entity.Room, error) {
	key := roomKey(roomID)

	var joined *entity.Room

	// the room key is watched, so EXEC fails if anybody else wrote it between the read and the write.
	join := func(tx *redis.Tx) error {
		room, err := getRoom(ctx, tx, key)
		if errors.Is(err, apperror.ErrRoomNotFound) {
			return apperror.ErrRoomNotJoinable
		}
		if err != nil {
			return err
		}

		if !room.IsJoinable() || room.Player1ID == playerID {
			return apperror.ErrRoomNotJoinable
		}

		room.Player2ID = playerID
		room.Status = entity.StatusPlaying

		roomJSON, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("could not marshal room: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, roomJSON, 0)
			pipe.ZRem(ctx, waitingRoomsKey, roomID)
			pipe.Publish(ctx, realtime.ChannelName(roomID), roomJSON)
			return nil
		})
		if err != nil {
			return err
		}

		joined = room

		return nil
	}

	for range maxJoinAttempts {
		err := that.client.Watch(ctx, join, key)
		switch {
		case err == nil:
			return joined, nil
		case errors.Is(err, redis.TxFailedErr):
			// somebody touched the room, read it again
			continue
		case errors.Is(err, apperror.ErrRoomNotJoinable):
			return nil, apperror.ErrRoomNotJoinable
		default:
			return nil, fmt.Errorf("failed to join room: %w", err)
		}
	}

	return nil, apperror.ErrRoomNotJoinable
}

func (that *dbRedisRoom) FindAvailable(ctx context.Context, excludingPlayerID string) (*entity.Room, error) {
	for offset := int64(0); ; offset += findBatchSize {
		ids, err := that.client.ZRange(ctx, waitingRoomsKey, offset, offset+findBatchSize-1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list waiting rooms: %w", err)
		}

		if len(ids) == 0 {
			return nil, apperror.ErrNoAvailableRoom
		}

		for _, id := range ids {
			room, err := getRoom(ctx, that.client, roomKey(id))
			if errors.Is(err, apperror.ErrRoomNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}

			if room.IsJoinable() && room.Player1ID != excludingPlayerID {
				return room, nil
			}
		}
	}
}

func (that *dbRedisRoom) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	return getRoom(ctx, that.client, roomKey(id))
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getRoom(ctx context.Context, client stringGetter, key string) (*entity.Room, error) {
	response, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrRoomNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	var room entity.Room
	if err = json.Unmarshal([]byte(response), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &room, nil
}
