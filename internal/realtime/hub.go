package realtime

import (
	"context"
	"sync"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
)

// Hub - in-process fan-out of room rows to per-room handlers.
type Hub struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string]map[uint64]Handler
}

func NewHub() *Hub {
	return &Hub{
		handlers: make(map[string]map[uint64]Handler),
	}
}

func (that *Hub) Subscribe(_ context.Context, roomID string, handler Handler) (Subscription, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.nextID++
	id := that.nextID

	if that.handlers[roomID] == nil {
		that.handlers[roomID] = make(map[uint64]Handler)
	}
	that.handlers[roomID][id] = handler

	return newSubscription(func() error {
		that.remove(roomID, id)
		return nil
	}), nil
}

// Publish - delivers a copy of the row to every handler of the room, on the caller's goroutine.
func (that *Hub) Publish(_ context.Context, room *entity.Room) error {
	that.mu.RLock()
	handlers := make([]Handler, 0, len(that.handlers[room.ID]))
	for _, handler := range that.handlers[room.ID] {
		handlers = append(handlers, handler)
	}
	that.mu.RUnlock()

	for _, handler := range handlers {
		handler(room.Clone())
	}

	return nil
}

// Subscribers - number of live handlers for the room.
func (that *Hub) Subscribers(roomID string) int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.handlers[roomID])
}

func (that *Hub) remove(roomID string, id uint64) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.handlers[roomID], id)
	if len(that.handlers[roomID]) == 0 {
		delete(that.handlers, roomID)
	}
}
