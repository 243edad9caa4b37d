package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/realtime"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/service"
)

// SessionHost - game view of a watched room.
type SessionHost interface {
	RoomChanged(room *entity.Room)
	ClockChanged(timeLeftX, timeLeftO int)
}

type roomGetter interface {
	GetRoom(ctx context.Context, roomID string) (*entity.Room, error)
}

type GameWatcher struct {
	logger           *slog.Logger
	rooms            roomGetter
	listener         realtime.Listener
	clock            clockwork.Clock
	warningThreshold time.Duration
}

func NewGameWatcher(logger *slog.Logger, rooms roomGetter, listener realtime.Listener, clock clockwork.Clock, warningThreshold time.Duration) *GameWatcher {
	return &GameWatcher{
		logger:           logger.With("component", "gameWatcher"),
		rooms:            rooms,
		listener:         listener,
		clock:            clock,
		warningThreshold: warningThreshold,
	}
}

// Watch - follows a room after the hand-off: mirrored clocks, move and win cues.
func (that *GameWatcher) Watch(ctx context.Context, roomID, playerID string, host SessionHost, feedback *service.Feedback) (*GameSession, error) {
	session := &GameSession{
		logger:   that.logger.With("roomID", roomID, "playerID", playerID),
		ctx:      ctx,
		host:     host,
		feedback: feedback,
	}

	sub, err := that.listener.Subscribe(ctx, roomID, session.apply)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to room %s: %w", roomID, err)
	}

	session.sub = sub

	room, err := that.rooms.GetRoom(ctx, roomID)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to get watched room: %w", err)
	}

	session.mu.Lock()
	session.timer = service.NewTurnTimer(that.clock, that.warningThreshold, room.MarkOf(playerID), session)
	pending := session.pending
	session.pending = nil
	session.mu.Unlock()

	session.apply(room)

	for _, change := range pending {
		session.apply(change)
	}

	return session, nil
}

type GameSession struct {
	logger   *slog.Logger
	ctx      context.Context
	host     SessionHost
	feedback *service.Feedback
	sub      realtime.Subscription

	mu      sync.Mutex
	timer   *service.TurnTimer
	last    *entity.Room
	pending []*entity.Room
	closed  bool
}

func (that *GameSession) apply(room *entity.Room) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return
	}

	// changes delivered before the initial fetch are replayed after it
	if that.timer == nil {
		that.pending = append(that.pending, room)
		return
	}

	previous := that.last
	that.last = room

	if previous != nil {
		if moveChanged(previous.LastMove, room.LastMove) {
			that.feedback.Play(that.ctx, service.CueMove)
		}

		if previous.Winner == "" && room.Winner != "" {
			that.feedback.Play(that.ctx, service.CueWin)
		}
	}

	that.host.RoomChanged(room)
	that.timer.Sync(room)
}

// ClockChanged - forwards the mirrored clocks of the turn timer.
func (that *GameSession) ClockChanged(timeLeftX, timeLeftO int) {
	that.mu.Lock()
	closed := that.closed
	that.mu.Unlock()

	if !closed {
		that.host.ClockChanged(timeLeftX, timeLeftO)
	}
}

func (that *GameSession) TimeRunningOut(mark string) {
	that.logger.Debug("time running out", "mark", mark)
	that.feedback.Play(that.ctx, service.CueWarning)
}

// Room - latest row seen by the session.
func (that *GameSession) Room() *entity.Room {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.last == nil {
		return nil
	}

	return that.last.Clone()
}

func (that *GameSession) Close() {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return
	}

	that.closed = true
	timer := that.timer
	that.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}

	if err := that.sub.Unsubscribe(); err != nil {
		that.logger.Warn("failed to unsubscribe from room changes", "error", err)
	}
}

func moveChanged(previous, current *entity.Move) bool {
	switch {
	case current == nil:
		return false
	case previous == nil:
		return true
	default:
		return *previous != *current
	}
}
