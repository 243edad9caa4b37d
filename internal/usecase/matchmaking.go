package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/realtime"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/service"
)

type State string

const (
	StateSearching  State = "searching"
	StateFound      State = "found"
	StateConnecting State = "connecting"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
	StateFailed     State = "failed"
)

func (that State) IsTerminal() bool {
	return that == StateCompleted || that == StateCancelled || that == StateFailed
}

const ModeOnline = "online"

// Destination - game view the host is sent to once the match is made.
type Destination struct {
	RoomID string
	Mode   string
}

func (that Destination) String() string {
	return "/game/" + url.PathEscape(that.RoomID) + "?" + url.Values{"mode": {that.Mode}}.Encode()
}

// Host - the caller's side of an attempt: matchmaking overlay, toasts and navigation.
// Methods are called from the attempt goroutines and must not call Attempt.Cancel synchronously.
type Host interface {
	StateChanged(state State)
	Elapsed(seconds int)
	// Close - the overlay is done, called exactly once on completion or failure.
	Close()
	Navigate(destination Destination)
	Fail(err error)
}

type roomService interface {
	CreateRoom(ctx context.Context, initiatorID string) (*entity.Room, error)
	JoinRoom(ctx context.Context, roomID, joinerID string) (*entity.Room, error)
	FindAvailableRoom(ctx context.Context, excludingPlayerID string) (*entity.Room, error)
	GetRoom(ctx context.Context, roomID string) (*entity.Room, error)
}

// Timings - pacing of the hand-off. None of them affect who gets matched.
type Timings struct {
	FoundDelay      time.Duration
	ConnectDelay    time.Duration
	ElapsedInterval time.Duration
}

type Matchmaker struct {
	logger   *slog.Logger
	rooms    roomService
	listener realtime.Listener
	clock    clockwork.Clock
	timings  Timings
}

func NewMatchmaker(logger *slog.Logger, rooms roomService, listener realtime.Listener, clock clockwork.Clock, timings Timings) *Matchmaker {
	return &Matchmaker{
		logger:   logger.With("component", "matchmaker"),
		rooms:    rooms,
		listener: listener,
		clock:    clock,
		timings:  timings,
	}
}

// Start - begins one matchmaking attempt for playerID in its own goroutine.
func (that *Matchmaker) Start(ctx context.Context, playerID string, host Host, feedback *service.Feedback) (*Attempt, error) {
	if playerID == "" {
		return nil, apperror.ErrInvalidPlayer
	}

	attemptCtx, cancel := context.WithCancel(ctx)

	attempt := &Attempt{
		logger:   that.logger.With("playerID", playerID),
		m:        that,
		playerID: playerID,
		host:     host,
		feedback: feedback,
		ctx:      attemptCtx,
		cancel:   cancel,
		alive:    true,
		state:    StateSearching,
		changes:  make(chan *entity.Room, 1),
		done:     make(chan struct{}),
	}

	go attempt.run()

	return attempt, nil
}

// Attempt - one run of the matchmaking state machine.
type Attempt struct {
	logger   *slog.Logger
	m        *Matchmaker
	playerID string
	host     Host
	feedback *service.Feedback

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards the liveness flag and serializes host callbacks with Cancel
	mu     sync.Mutex
	alive  bool
	state  State
	roomID string

	subMu sync.Mutex
	sub   realtime.Subscription

	changes chan *entity.Room
	done    chan struct{}
}

// Cancel - abandons the attempt. Once it returns no host callback runs for this attempt.
func (that *Attempt) Cancel() {
	that.mu.Lock()
	if that.alive {
		that.alive = false
		if !that.state.IsTerminal() {
			that.state = StateCancelled
		}
	}
	that.mu.Unlock()

	that.cancel()
}

// Done - closed when the attempt goroutine has exited and its subscription is released.
func (that *Attempt) Done() <-chan struct{} {
	return that.done
}

func (that *Attempt) State() State {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.state
}

// RoomID - room the attempt created or joined, empty while still looking.
func (that *Attempt) RoomID() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.roomID
}

func (that *Attempt) run() {
	log := that.logger.With("method", "run")

	defer close(that.done)
	defer that.cancel()
	defer that.unsubscribe()
	defer that.settle()

	if !that.transition(StateSearching) {
		return
	}

	stopElapsed := that.startElapsed()
	defer stopElapsed()

	room, err := that.acquire()

	stopElapsed()
	that.unsubscribe()

	if err != nil {
		that.fail(err)
		return
	}

	if room == nil {
		log.Debug("attempt cancelled while searching")
		return
	}

	if !that.transition(StateFound) {
		return
	}

	that.emit(func() { that.feedback.Play(that.ctx, service.CueMatchFound) })

	room, err = that.m.rooms.GetRoom(that.ctx, room.ID)
	if !that.live() {
		return
	}

	if err != nil {
		that.fail(fmt.Errorf("failed to fetch matched room: %w", err))
		return
	}

	if err = room.Validate(); err != nil {
		that.fail(err)
		return
	}

	if !that.sleep(that.m.timings.FoundDelay) || !that.transition(StateConnecting) {
		return
	}

	if !that.sleep(that.m.timings.ConnectDelay) {
		return
	}

	destination := Destination{RoomID: room.ID, Mode: ModeOnline}

	that.emit(func() {
		that.state = StateCompleted
		that.host.Close()
		that.host.Navigate(destination)
	})

	log.Info("match made", "roomID", room.ID, "destination", destination.String())
}

// acquire - joins the oldest waiting room or creates one and waits for an opponent.
// Returns the playing row, or nil when the attempt was cancelled.
func (that *Attempt) acquire() (*entity.Room, error) {
	log := that.logger.With("method", "acquire")

	candidate, err := that.m.rooms.FindAvailableRoom(that.ctx, that.playerID)
	if !that.live() {
		return nil, nil
	}

	switch {
	case errors.Is(err, apperror.ErrNoAvailableRoom):
		return that.createAndWait()
	case err != nil:
		return nil, fmt.Errorf("failed to find available room: %w", err)
	}

	joined, err := that.m.rooms.JoinRoom(that.ctx, candidate.ID, that.playerID)
	if !that.live() {
		return nil, nil
	}

	switch {
	case errors.Is(err, apperror.ErrRoomNotJoinable):
		log.Info("lost join race, creating a room", "roomID", candidate.ID)
		return that.createAndWait()
	case err != nil:
		return nil, fmt.Errorf("failed to join room: %w", err)
	}

	that.setRoomID(joined.ID)

	return joined, nil
}

func (that *Attempt) createAndWait() (*entity.Room, error) {
	room, err := that.m.rooms.CreateRoom(that.ctx, that.playerID)
	if !that.live() {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	that.setRoomID(room.ID)

	if err = that.subscribe(room.ID); err != nil {
		if !that.live() {
			return nil, nil
		}

		return nil, err
	}

	// a join may have landed before the subscription was live
	current, err := that.m.rooms.GetRoom(that.ctx, room.ID)
	if !that.live() {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to fetch created room: %w", err)
	}

	if current.IsPlaying() {
		return current, nil
	}

	select {
	case playing := <-that.changes:
		if !that.live() {
			return nil, nil
		}

		return playing, nil
	case <-that.ctx.Done():
		return nil, nil
	}
}

func (that *Attempt) subscribe(roomID string) error {
	sub, err := that.m.listener.Subscribe(that.ctx, roomID, func(room *entity.Room) {
		if !room.IsPlaying() {
			return
		}

		// one playing row is enough to wake the attempt
		select {
		case that.changes <- room:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to room %s: %w", roomID, err)
	}

	that.subMu.Lock()
	that.sub = sub
	that.subMu.Unlock()

	return nil
}

// unsubscribe - safe on every exit path, the subscription is released at most once.
func (that *Attempt) unsubscribe() {
	that.subMu.Lock()
	sub := that.sub
	that.sub = nil
	that.subMu.Unlock()

	if sub == nil {
		return
	}

	if err := sub.Unsubscribe(); err != nil {
		that.logger.Warn("failed to unsubscribe from room changes", "error", err)
	}
}

func (that *Attempt) startElapsed() func() {
	if that.m.timings.ElapsedInterval <= 0 {
		return func() {}
	}

	ticker := that.m.clock.NewTicker(that.m.timings.ElapsedInterval)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)

		var elapsed time.Duration

		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				elapsed += that.m.timings.ElapsedInterval
				seconds := int(elapsed / time.Second)

				that.emit(func() { that.host.Elapsed(seconds) })
			}
		}
	}()

	var once sync.Once

	return func() {
		once.Do(func() {
			ticker.Stop()
			close(stop)
			<-done
		})
	}
}

// sleep - pacing delay. Reports false when the attempt is no longer live afterwards.
func (that *Attempt) sleep(d time.Duration) bool {
	select {
	case <-that.m.clock.After(d):
		return that.live()
	case <-that.ctx.Done():
		return false
	}
}

func (that *Attempt) live() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.alive && that.ctx.Err() == nil
}

// emit - runs fn under the liveness lock, skipped after cancellation.
func (that *Attempt) emit(fn func()) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.alive || that.ctx.Err() != nil {
		if !that.state.IsTerminal() {
			that.state = StateCancelled
		}

		return false
	}

	fn()

	return true
}

func (that *Attempt) transition(state State) bool {
	return that.emit(func() {
		that.state = state
		that.host.StateChanged(state)
	})
}

// settle - an attempt that ends without reaching a terminal state was cancelled.
func (that *Attempt) settle() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.state.IsTerminal() {
		that.state = StateCancelled
	}
}

func (that *Attempt) setRoomID(roomID string) {
	that.mu.Lock()
	that.roomID = roomID
	that.mu.Unlock()
}

// fail - toast and close, the attempt is not retried.
func (that *Attempt) fail(err error) {
	that.logger.Error("matchmaking failed", "error", err)

	that.emit(func() {
		that.state = StateFailed
		that.host.Fail(err)
		that.host.Close()
	})
}
