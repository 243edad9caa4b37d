package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresListener - holds one connection in LISTEN on the rooms change channel and fans the
// notified rows out to per-room handlers.
type PostgresListener struct {
	logger  *slog.Logger
	pool    *pgxpool.Pool
	channel string
	hub     *Hub
	ready   chan struct{}
}

func NewPostgresListener(logger *slog.Logger, pool *pgxpool.Pool, channel string) *PostgresListener {
	return &PostgresListener{
		logger:  logger.With("component", "postgresListener"),
		pool:    pool,
		channel: channel,
		hub:     NewHub(),
		ready:   make(chan struct{}),
	}
}

// Start - blocks until ctx is done or the connection fails.
func (that *PostgresListener) Start(ctx context.Context) error {
	log := that.logger.With("method", "Start", "channel", that.channel)

	conn, err := that.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, "LISTEN "+pgx.Identifier{that.channel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen to channel: %w", err)
	}

	close(that.ready)
	log.Info("listening for room changes")

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				log.Info("listener shutting down")
				return nil
			}

			return fmt.Errorf("failed to wait for notification: %w", err)
		}

		room, err := decodeRoom([]byte(notification.Payload))
		if err != nil {
			log.Error("failed to decode room change", "error", err)
			continue
		}

		_ = that.hub.Publish(ctx, room)
	}
}

// Ready - closed once the LISTEN statement went through.
func (that *PostgresListener) Ready() <-chan struct{} {
	return that.ready
}

func (that *PostgresListener) Subscribe(ctx context.Context, roomID string, handler Handler) (Subscription, error) {
	return that.hub.Subscribe(ctx, roomID, handler)
}
