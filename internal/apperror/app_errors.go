package apperror

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomNotJoinable  = errors.New("room not joinable")
	ErrNoAvailableRoom  = errors.New("no available room")
	ErrInvalidRoomShape = errors.New("invalid room shape")
	ErrInvalidPlayer    = errors.New("invalid player id")
	ErrInvalidFavorite  = errors.New("invalid favorite id")
)
