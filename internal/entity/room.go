package entity

import (
	"fmt"
	"time"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/apperror"
)

const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"

	PlayerX   = "X"
	PlayerO   = "O"
	PlayerTie = "-"

	EmptyCell = ""
)

// Move - coordinate of a placed mark.
type Move struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type Room struct {
	ID            string     `json:"id"`
	Code          string     `json:"code"`
	Status        string     `json:"status"`
	Player1ID     string     `json:"player1_id"`
	Player2ID     string     `json:"player2_id"`
	CurrentPlayer string     `json:"current_player"`
	Board         [][]string `json:"board"`
	TimeLeftX     int        `json:"time_left_x"`
	TimeLeftO     int        `json:"time_left_o"`
	Winner        string     `json:"winner"`
	LastMove      *Move      `json:"last_move"`
	CreatedAt     time.Time  `json:"created_at"`
}

// RoomDefaults - values every freshly created room starts with.
type RoomDefaults struct {
	BoardSize int
	TimeLimit time.Duration
}

func NewRoom(id, code, player1ID string, defaults RoomDefaults, createdAt time.Time) *Room {
	seconds := int(defaults.TimeLimit / time.Second)

	return &Room{
		ID:            id,
		Code:          code,
		Status:        StatusWaiting,
		Player1ID:     player1ID,
		CurrentPlayer: PlayerX,
		Board:         NewBoard(defaults.BoardSize),
		TimeLeftX:     seconds,
		TimeLeftO:     seconds,
		CreatedAt:     createdAt,
	}
}

func NewBoard(size int) [][]string {
	board := make([][]string, size)
	for i := range board {
		board[i] = make([]string, size)
	}

	return board
}

func (that *Room) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Room) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that *Room) IsFinished() bool {
	return that.Status == StatusFinished
}

// IsJoinable - the same predicate the stores apply in their conditional update.
func (that *Room) IsJoinable() bool {
	return that.IsWaiting() && that.Player2ID == ""
}

func (that *Room) HasPlayer(playerID string) bool {
	return playerID != "" && (that.Player1ID == playerID || that.Player2ID == playerID)
}

// MarkOf - the mark a participant plays with. Room creator plays X.
func (that *Room) MarkOf(playerID string) string {
	switch playerID {
	case "":
		return ""
	case that.Player1ID:
		return PlayerX
	case that.Player2ID:
		return PlayerO
	default:
		return ""
	}
}

// Validate - checks that a fetched row carries the fields a started game needs.
func (that *Room) Validate() error {
	switch {
	case that.Status == "":
		return fmt.Errorf("%w: status is missing", apperror.ErrInvalidRoomShape)
	case that.Player1ID == "":
		return fmt.Errorf("%w: player1_id is missing", apperror.ErrInvalidRoomShape)
	case that.Player2ID == "":
		return fmt.Errorf("%w: player2_id is missing", apperror.ErrInvalidRoomShape)
	default:
		return nil
	}
}

// Clone - deep copy, used by stores that hand out rows they keep in memory.
func (that *Room) Clone() *Room {
	clone := *that

	if that.Board != nil {
		clone.Board = make([][]string, len(that.Board))
		for i, row := range that.Board {
			clone.Board[i] = append([]string(nil), row...)
		}
	}

	if that.LastMove != nil {
		move := *that.LastMove
		clone.LastMove = &move
	}

	return &clone
}
