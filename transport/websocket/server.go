package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/service"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/usecase"
)

type matchmaker interface {
	Start(ctx context.Context, playerID string, host usecase.Host, feedback *service.Feedback) (*usecase.Attempt, error)
}

type gameWatcher interface {
	Watch(ctx context.Context, roomID, playerID string, host usecase.SessionHost, feedback *service.Feedback) (*usecase.GameSession, error)
}

type favoritesService interface {
	List() []string
	Toggle(ctx context.Context, id string) (bool, error)
}

type handlerFunc func(ctx context.Context, conn *connection, msg *Message) error

type Server struct {
	logger    *slog.Logger
	matcher   matchmaker
	watcher   gameWatcher
	favorites favoritesService
	upgrader  websocket.Upgrader

	handlers map[string]handlerFunc
}

func New(logger *slog.Logger, matcher matchmaker, watcher gameWatcher, favorites favoritesService) *Server {
	server := &Server{
		logger:    logger.With("component", "websocketServer"),
		matcher:   matcher,
		watcher:   watcher,
		favorites: favorites,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},

		handlers: make(map[string]handlerFunc),
	}

	server.handlers[actionMatchmakingStart] = server.handleMatchmakingStart
	server.handlers[actionMatchmakingCancel] = server.handleMatchmakingCancel
	server.handlers[actionGameWatch] = server.handleGameWatch
	server.handlers[actionGameUnwatch] = server.handleGameUnwatch
	server.handlers[actionFavoritesList] = server.handleFavoritesList
	server.handlers[actionFavoritesToggle] = server.handleFavoritesToggle

	return server
}

// Handler - serves the WebSocket endpoint at /ws. Connections live until the client leaves or ctx is done.
func (that *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	return mux
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     that.Handler(ctx),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	wsConn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	conn := newConnection(that.logger, pkg.GenerateNewSessionID(), wsConn)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-connCtx.Done():
			conn.teardown()
		case <-conn.closed:
		}
	}()

	go conn.writePump()

	log.Info("WebSocket connection established", "connectionID", conn.id)

	that.handleMessages(connCtx, conn)
	conn.teardown()

	log.Info("WebSocket connection closed", "connectionID", conn.id)
}

// handleMessages - processes messages from the client until the connection drops.
func (that *Server) handleMessages(ctx context.Context, conn *connection) {
	log := that.logger.With("method", "handleMessages", "connectionID", conn.id)

	conn.conn.SetReadLimit(maxMessageSize)
	_ = conn.conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("unexpected close", "error", err)
			}

			return
		}

		_ = conn.conn.SetReadDeadline(time.Now().Add(readTimeout))

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			that.sendError(conn, "", "malformed message")

			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Error("unknown action", "action", message.Action)
			that.sendError(conn, message.Action, "unknown action")

			continue
		}

		if err = handler(ctx, conn, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

func (that *Server) sendError(conn *connection, action, errorMsg string) {
	conn.notify(actionError, ErrorPayload{Action: action, Error: errorMsg})
}
