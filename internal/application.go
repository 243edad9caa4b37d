package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/config"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/realtime"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/repository"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/service"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-matchmaker/transport/rest"
	"github.com/rocketscienceinc/tictactoe-matchmaker/transport/websocket"
)

var (
	ErrAddrNotFound   = errors.New("redis address string is empty")
	ErrUnknownBackend = errors.New("unknown room backend")
)

// backend - room store plus the change feed that matches it.
type backend struct {
	rooms    repository.RoomRepository
	listener realtime.Listener
	closers  []func()
}

func (that *backend) close() {
	for i := len(that.closers) - 1; i >= 0; i-- {
		that.closers[i]()
	}
}

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	// listener goroutines report here, like the servers below
	bgErrCh := make(chan error, 1)

	store, err := openBackend(ctx, logger, conf, bgErrCh)
	if err != nil {
		return err
	}
	defer store.close()

	clock := clockwork.NewRealClock()
	defaults := entity.RoomDefaults{BoardSize: conf.Room.BoardSize, TimeLimit: conf.Room.TimeLimit}

	roomService := service.NewRoomService(logger, store.rooms, defaults, clock)
	matchmaker := usecase.NewMatchmaker(logger, roomService, store.listener, clock, usecase.Timings{
		FoundDelay:      conf.Matchmaking.FoundDelay,
		ConnectDelay:    conf.Matchmaking.ConnectDelay,
		ElapsedInterval: conf.Matchmaking.ElapsedInterval,
	})
	gameWatcher := usecase.NewGameWatcher(logger, roomService, store.listener, clock, conf.Game.WarningThreshold)

	favoritesService := service.NewFavoritesService(logger, repository.NewFavoritesRepository(conf.Favorites.Path))
	if err = favoritesService.Load(ctx); err != nil {
		log.Error("could not load favorites, starting with an empty list", "error", err)
	}

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(ctx, conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, matchmaker, gameWatcher, favoritesService)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case err = <-bgErrCh:
		return fmt.Errorf("room change listener error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

func openBackend(ctx context.Context, logger *slog.Logger, conf *config.Config, errCh chan<- error) (*backend, error) {
	log := logger.With("component", "app", "backend", conf.Backend)

	store := &backend{}

	switch conf.Backend {
	case config.BackendRedis:
		redisAddrString := conf.Redis.GetRedisAddr()
		if redisAddrString == "" {
			return nil, ErrAddrNotFound
		}

		redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString)
		if err != nil {
			return nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		store.closers = append(store.closers, func() {
			if err := redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		})

		store.rooms = repository.NewRedisRoomRepository(redisStorage.Connection)
		store.listener = realtime.NewRedisListener(logger, redisStorage.Connection)

	case config.BackendPostgres:
		pgStorage, err := storage.NewPostgresStorage(ctx, conf.Postgres.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("could not connect to postgres storage: %w", err)
		}

		store.closers = append(store.closers, pgStorage.Close)

		if err = pgStorage.Init(ctx); err != nil {
			store.close()
			return nil, fmt.Errorf("could not init postgres storage: %w", err)
		}

		listener := realtime.NewPostgresListener(logger, pgStorage.Connection, storage.RoomChangesChannel)
		go func() {
			if listenErr := listener.Start(ctx); listenErr != nil {
				log.Error("postgres listener stopped", "error", listenErr)
				errCh <- listenErr
			}
		}()

		store.rooms = repository.NewPostgresRoomRepository(pgStorage.Connection)
		store.listener = listener

	case config.BackendMemory:
		hub := realtime.NewHub()

		store.rooms = repository.NewPublishingRoomRepository(logger, repository.NewMemoryRoomRepository(), hub)
		store.listener = hub

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, conf.Backend)
	}

	if conf.NATS.URL != "" {
		broker, err := realtime.NewNATSBroker(logger, conf.NATS.URL)
		if err != nil {
			store.close()
			return nil, fmt.Errorf("could not connect to nats: %w", err)
		}

		store.closers = append(store.closers, broker.Close)

		store.rooms = repository.NewPublishingRoomRepository(logger, store.rooms, broker)
		store.listener = broker
	}

	log.Info("room backend ready", "nats", conf.NATS.URL != "")

	return store, nil
}
