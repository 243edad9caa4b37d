package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RoomChangesChannel - NOTIFY channel the rooms trigger publishes full rows on.
const RoomChangesChannel = "room_changes"

type PostgresStorage struct {
	Connection *pgxpool.Pool
}

func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("can't open database: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("can't connect to database: %w", err)
	}

	return &PostgresStorage{Connection: pool}, nil
}

// Init - creates the rooms table and the trigger that pushes every inserted or updated row to
// RoomChangesChannel.
func (that *PostgresStorage) Init(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id             TEXT PRIMARY KEY,
			code           TEXT NOT NULL,
			status         TEXT NOT NULL DEFAULT 'waiting',
			player1_id     TEXT NOT NULL,
			player2_id     TEXT,
			current_player TEXT NOT NULL DEFAULT 'X',
			board          JSONB NOT NULL,
			time_left_x    INTEGER NOT NULL,
			time_left_o    INTEGER NOT NULL,
			winner         TEXT,
			last_move      JSONB,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS rooms_waiting_idx ON rooms (created_at)
			WHERE status = 'waiting' AND player2_id IS NULL`,
		`CREATE OR REPLACE FUNCTION notify_room_change() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('` + RoomChangesChannel + `', row_to_json(NEW)::text);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS rooms_notify_change ON rooms`,
		`CREATE TRIGGER rooms_notify_change AFTER INSERT OR UPDATE ON rooms
			FOR EACH ROW EXECUTE FUNCTION notify_room_change()`,
	}

	for _, query := range queries {
		if _, err := that.Connection.Exec(ctx, query); err != nil {
			return fmt.Errorf("can't init schema: %w", err)
		}
	}

	return nil
}

func (that *PostgresStorage) Close() {
	that.Connection.Close()
}
