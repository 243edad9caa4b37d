package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
)

// Handler receives the full row after every change of the subscribed room.
type Handler func(room *entity.Room)

type Subscription interface {
	// Unsubscribe releases the subscription. Calling it more than once is a no-op.
	Unsubscribe() error
}

type Listener interface {
	Subscribe(ctx context.Context, roomID string, handler Handler) (Subscription, error)
}

// ChannelName - redis pub/sub channel for one room.
func ChannelName(roomID string) string {
	return "room:" + roomID + ":changes"
}

// SubjectName - NATS subject for one room.
func SubjectName(roomID string) string {
	return "rooms." + roomID + ".changes"
}

func decodeRoom(payload []byte) (*entity.Room, error) {
	var room entity.Room
	if err := json.Unmarshal(payload, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room change: %w", err)
	}

	return &room, nil
}

type subscription struct {
	once    sync.Once
	release func() error
	err     error
}

func newSubscription(release func() error) *subscription {
	return &subscription{release: release}
}

func (that *subscription) Unsubscribe() error {
	that.once.Do(func() {
		that.err = that.release()
	})

	return that.err
}
