package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/apperror"
)

func (that *Server) handleMatchmakingStart(ctx context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleMatchmakingStart")

	var payload StartPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		that.sendError(conn, msg.Action, "malformed payload")
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()

	if conn.attempt != nil && !conn.attempt.State().IsTerminal() {
		that.sendError(conn, msg.Action, "matchmaking already running")
		return nil
	}

	attempt, err := that.matcher.Start(ctx, payload.PlayerID, conn, conn.feedback)
	if err != nil {
		if errors.Is(err, apperror.ErrInvalidPlayer) {
			that.sendError(conn, msg.Action, "player_id is required")
			return nil
		}

		that.sendError(conn, msg.Action, "failed to start matchmaking")

		return fmt.Errorf("failed to start matchmaking: %w", err)
	}

	conn.attempt = attempt

	log.Info("matchmaking started", "playerID", payload.PlayerID)

	return nil
}

// handleMatchmakingCancel - the client left the matchmaking screen. The overlay is gone, nothing is sent back.
func (that *Server) handleMatchmakingCancel(_ context.Context, conn *connection, _ *Message) error {
	conn.mu.Lock()
	attempt := conn.attempt
	conn.attempt = nil
	conn.mu.Unlock()

	if attempt != nil {
		attempt.Cancel()
	}

	return nil
}

func (that *Server) handleGameWatch(ctx context.Context, conn *connection, msg *Message) error {
	var payload WatchPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		that.sendError(conn, msg.Action, "malformed payload")
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payload.RoomID == "" {
		that.sendError(conn, msg.Action, "room_id is required")
		return nil
	}

	session, err := that.watcher.Watch(ctx, payload.RoomID, payload.PlayerID, conn, conn.feedback)
	if err != nil {
		if errors.Is(err, apperror.ErrRoomNotFound) {
			that.sendError(conn, msg.Action, "room not found")
			return nil
		}

		that.sendError(conn, msg.Action, "failed to watch the game")

		return fmt.Errorf("failed to watch room: %w", err)
	}

	conn.mu.Lock()
	previous := conn.session
	conn.session = session
	conn.mu.Unlock()

	if previous != nil {
		previous.Close()
	}

	return nil
}

func (that *Server) handleGameUnwatch(_ context.Context, conn *connection, _ *Message) error {
	conn.mu.Lock()
	session := conn.session
	conn.session = nil
	conn.mu.Unlock()

	if session != nil {
		session.Close()
	}

	return nil
}

func (that *Server) handleFavoritesList(_ context.Context, conn *connection, msg *Message) error {
	return conn.queue(msg.Action, FavoritesPayload{IDs: that.favorites.List()})
}

func (that *Server) handleFavoritesToggle(ctx context.Context, conn *connection, msg *Message) error {
	var payload TogglePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		that.sendError(conn, msg.Action, "malformed payload")
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	favorite, err := that.favorites.Toggle(ctx, payload.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrInvalidFavorite) {
			that.sendError(conn, msg.Action, "id is required")
			return nil
		}

		that.sendError(conn, msg.Action, "failed to update favorites")

		return fmt.Errorf("failed to toggle favorite: %w", err)
	}

	return conn.queue(actionFavoritesList, FavoritesPayload{
		IDs:      that.favorites.List(),
		ID:       payload.ID,
		Favorite: favorite,
	})
}
