package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/service"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/usecase"
)

const (
	writeTimeout   = 10 * time.Second
	readTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 64
)

var errConnectionClosed = errors.New("connection closed")

// connection - one client. It is the host of the client's matchmaking attempt and game session.
type connection struct {
	id     string
	logger *slog.Logger
	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once

	mu       sync.Mutex
	attempt  *usecase.Attempt
	session  *usecase.GameSession
	feedback *service.Feedback
}

func newConnection(logger *slog.Logger, id string, conn *websocket.Conn) *connection {
	c := &connection{
		id:     id,
		logger: logger.With("connectionID", id),
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
	}

	c.feedback = service.NewFeedback(logger, c)

	return c
}

// queue - hands a message to the write pump. Drops it once the connection is closed.
func (that *connection) queue(action string, payload any) error {
	data, err := encodeMessage(action, payload)
	if err != nil {
		return err
	}

	select {
	case that.send <- data:
		return nil
	case <-that.closed:
		return errConnectionClosed
	}
}

func (that *connection) notify(action string, payload any) {
	if err := that.queue(action, payload); err != nil && !errors.Is(err, errConnectionClosed) {
		that.logger.Error("failed to queue message", "action", action, "error", err)
	}
}

// teardown - cancels what the client left running. Safe to call more than once.
func (that *connection) teardown() {
	that.once.Do(func() {
		close(that.closed)

		that.mu.Lock()
		attempt, session := that.attempt, that.session
		that.attempt, that.session = nil, nil
		that.mu.Unlock()

		if attempt != nil {
			attempt.Cancel()
		}

		if session != nil {
			session.Close()
		}

		_ = that.conn.Close()
	})
}

func (that *connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		that.teardown()
	}()

	for {
		select {
		case <-that.closed:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = that.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-that.send:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := that.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				that.logger.Error("failed to write message", "error", err)
				return
			}
		case <-ticker.C:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := that.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				that.logger.Error("failed to send ping", "error", err)
				return
			}
		}
	}
}

// matchmaking host

func (that *connection) StateChanged(state usecase.State) {
	that.notify(actionMatchmakingState, StatePayload{State: string(state)})
}

func (that *connection) Elapsed(seconds int) {
	that.notify(actionMatchmakingElapsed, ElapsedPayload{Seconds: seconds})
}

func (that *connection) Close() {
	that.notify(actionMatchmakingClose, struct{}{})
}

func (that *connection) Navigate(destination usecase.Destination) {
	that.notify(actionNavigate, NavigatePayload{
		Destination: destination.String(),
		RoomID:      destination.RoomID,
		Mode:        destination.Mode,
	})
}

// Fail - the client only gets a generic toast, details stay in the log.
func (that *connection) Fail(err error) {
	that.logger.Error("matchmaking attempt failed", "error", err)
	that.notify(actionMatchmakingError, ErrorPayload{Error: "failed to find a match, please try again"})
}

// game session host

func (that *connection) RoomChanged(room *entity.Room) {
	that.notify(actionGameRoom, RoomPayload{Room: room})
}

func (that *connection) ClockChanged(timeLeftX, timeLeftO int) {
	that.notify(actionGameClock, ClockPayload{TimeLeftX: timeLeftX, TimeLeftO: timeLeftO})
}

// PlayCue - cues are played by the client.
func (that *connection) PlayCue(_ context.Context, cue service.Cue) error {
	return that.queue(actionFeedbackCue, CuePayload{Cue: string(cue)})
}
