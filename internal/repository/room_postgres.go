package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
)

const roomColumns = `id, code, status, player1_id, player2_id, current_player, board,
	time_left_x, time_left_o, winner, last_move, created_at`

type dbPostgresRoom struct {
	pool *pgxpool.Pool
}

// NewPostgresRoomRepository - change events come from the rooms table trigger, see storage.PostgresStorage.
func NewPostgresRoomRepository(pool *pgxpool.Pool) RoomRepository {
	return &dbPostgresRoom{
		pool: pool,
	}
}

func (that *dbPostgresRoom) Create(ctx context.Context, room *entity.Room) error {
	query := `INSERT INTO rooms (` + roomColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	board, err := json.Marshal(room.Board)
	if err != nil {
		return fmt.Errorf("could not marshal board: %w", err)
	}

	lastMove, err := marshalLastMove(room.LastMove)
	if err != nil {
		return err
	}

	_, err = that.pool.Exec(ctx, query,
		room.ID, room.Code, room.Status, room.Player1ID, nullString(room.Player2ID), room.CurrentPlayer, string(board),
		room.TimeLeftX, room.TimeLeftO, nullString(room.Winner), lastMove, room.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("can't insert room: %w", err)
	}

	return nil
}

func (that *dbPostgresRoom) Join(ctx context.Context, roomID, playerID string) (*entity.Room, error) {
	query := `UPDATE rooms SET player2_id = $2, status = $3
		WHERE id = $1 AND status = $4 AND player2_id IS NULL AND player1_id <> $2
		RETURNING ` + roomColumns

	room, err := scanRoom(that.pool.QueryRow(ctx, query, roomID, playerID, entity.StatusPlaying, entity.StatusWaiting))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.ErrRoomNotJoinable
	}
	if err != nil {
		return nil, fmt.Errorf("can't join room: %w", err)
	}

	return room, nil
}

func (that *dbPostgresRoom) FindAvailable(ctx context.Context, excludingPlayerID string) (*entity.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms
		WHERE status = $1 AND player2_id IS NULL AND player1_id <> $2
		ORDER BY created_at ASC
		LIMIT 1`

	room, err := scanRoom(that.pool.QueryRow(ctx, query, entity.StatusWaiting, excludingPlayerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.ErrNoAvailableRoom
	}
	if err != nil {
		return nil, fmt.Errorf("can't find available room: %w", err)
	}

	return room, nil
}

func (that *dbPostgresRoom) GetByID(ctx context.Context, id string) (*entity.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`

	room, err := scanRoom(that.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("can't get room: %w", err)
	}

	return room, nil
}

func scanRoom(row pgx.Row) (*entity.Room, error) {
	var (
		room      entity.Room
		player2ID *string
		winner    *string
	)

	err := row.Scan(
		&room.ID, &room.Code, &room.Status, &room.Player1ID, &player2ID, &room.CurrentPlayer, &room.Board,
		&room.TimeLeftX, &room.TimeLeftO, &winner, &room.LastMove, &room.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if player2ID != nil {
		room.Player2ID = *player2ID
	}

	if winner != nil {
		room.Winner = *winner
	}

	return &room, nil
}

func nullString(value string) *string {
	if value == "" {
		return nil
	}

	return &value
}

func marshalLastMove(move *entity.Move) (*string, error) {
	if move == nil {
		return nil, nil
	}

	data, err := json.Marshal(move)
	if err != nil {
		return nil, fmt.Errorf("could not marshal last move: %w", err)
	}

	encoded := string(data)

	return &encoded, nil
}
