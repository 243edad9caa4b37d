package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
)

const (
	natsMaxReconnects = -1
	natsReconnectWait = 2 * time.Second
)

// NATSBroker - publishes room rows on a per-room subject and subscribes to them.
type NATSBroker struct {
	logger *slog.Logger
	conn   *nats.Conn
}

func NewNATSBroker(logger *slog.Logger, url string) (*NATSBroker, error) {
	log := logger.With("component", "natsBroker")

	opts := []nats.Option{
		nats.Name("tictactoe-matchmaker"),
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Error("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error("NATS error", "error", err)
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSBroker{
		logger: log,
		conn:   conn,
	}, nil
}

func (that *NATSBroker) Publish(_ context.Context, room *entity.Room) error {
	payload, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("could not marshal room: %w", err)
	}

	if err = that.conn.Publish(SubjectName(room.ID), payload); err != nil {
		return fmt.Errorf("failed to publish room change: %w", err)
	}

	return nil
}

func (that *NATSBroker) Subscribe(ctx context.Context, roomID string, handler Handler) (Subscription, error) {
	log := that.logger.With("method", "Subscribe", "roomID", roomID)

	sub, err := that.conn.Subscribe(SubjectName(roomID), func(msg *nats.Msg) {
		room, err := decodeRoom(msg.Data)
		if err != nil {
			log.Error("failed to decode room change", "error", err)
			return
		}

		handler(room)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to room changes: %w", err)
	}

	// the server has the interest registered once the flush round-trips
	if err = that.conn.FlushWithContext(ctx); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("failed to flush subscription: %w", err)
	}

	return newSubscription(sub.Unsubscribe), nil
}

func (that *NATSBroker) Close() {
	that.conn.Close()
}
