package usecase

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/realtime"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/repository"
	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/service"
)

const eventTimeout = 5 * time.Second

var (
	errRedisDown = errors.New("redis down")

	testDefaults = entity.RoomDefaults{BoardSize: 3, TimeLimit: 300 * time.Second}
	testTimings  = Timings{FoundDelay: time.Second, ConnectDelay: time.Second, ElapsedInterval: time.Second}
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// matchEnv - memory store publishing into an in-process hub, driven by a fake clock.
type matchEnv struct {
	ctx   context.Context
	clock *clockwork.FakeClock
	hub   *realtime.Hub
	rooms service.RoomService
}

func newMatchEnv(t *testing.T) *matchEnv {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := realtime.NewHub()
	clock := clockwork.NewFakeClock()
	repo := repository.NewPublishingRoomRepository(testLogger(), repository.NewMemoryRoomRepository(), hub)

	return &matchEnv{
		ctx:   ctx,
		clock: clock,
		hub:   hub,
		rooms: service.NewRoomService(testLogger(), repo, testDefaults, clock),
	}
}

func (that *matchEnv) matchmaker(rooms roomService, listener realtime.Listener) *Matchmaker {
	if rooms == nil {
		rooms = that.rooms
	}

	if listener == nil {
		listener = that.hub
	}

	return NewMatchmaker(testLogger(), rooms, listener, that.clock, testTimings)
}

func (that *matchEnv) start(t *testing.T, m *Matchmaker, playerID string) (*Attempt, *recordingHost) {
	t.Helper()

	host := newRecordingHost()
	attempt, err := m.Start(that.ctx, playerID, host, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		attempt.Cancel()
		<-attempt.Done()
	})

	return attempt, host
}

// advance - waits until n timers are pending and fires them.
func (that *matchEnv) advance(t *testing.T, n int, d time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(that.ctx, eventTimeout)
	defer cancel()

	require.NoError(t, that.clock.BlockUntilContext(ctx, n))
	that.clock.Advance(d)
}

// waitSubscribed - waits until the attempt created its room and listens on it.
func (that *matchEnv) waitSubscribed(t *testing.T, attempt *Attempt) string {
	t.Helper()

	require.Eventually(t, func() bool {
		roomID := attempt.RoomID()
		return roomID != "" && that.hub.Subscribers(roomID) == 1
	}, eventTimeout, 5*time.Millisecond)

	return attempt.RoomID()
}

const (
	eventState    = "state"
	eventElapsed  = "elapsed"
	eventClose    = "close"
	eventNavigate = "navigate"
	eventFail     = "fail"
)

type hostEvent struct {
	kind        string
	state       State
	seconds     int
	destination Destination
	err         error
}

type recordingHost struct {
	events chan hostEvent
}

func newRecordingHost() *recordingHost {
	return &recordingHost{events: make(chan hostEvent, 64)}
}

func (that *recordingHost) StateChanged(state State) {
	that.events <- hostEvent{kind: eventState, state: state}
}

func (that *recordingHost) Elapsed(seconds int) {
	that.events <- hostEvent{kind: eventElapsed, seconds: seconds}
}

func (that *recordingHost) Close() {
	that.events <- hostEvent{kind: eventClose}
}

func (that *recordingHost) Navigate(destination Destination) {
	that.events <- hostEvent{kind: eventNavigate, destination: destination}
}

func (that *recordingHost) Fail(err error) {
	that.events <- hostEvent{kind: eventFail, err: err}
}

func (that *recordingHost) next(t *testing.T) hostEvent {
	t.Helper()

	select {
	case event := <-that.events:
		return event
	case <-time.After(eventTimeout):
		t.Fatal("host event was not received")
		return hostEvent{}
	}
}

func (that *recordingHost) expectState(t *testing.T, state State) {
	t.Helper()

	event := that.next(t)
	require.Equal(t, eventState, event.kind, "unexpected event %+v", event)
	require.Equal(t, state, event.state)
}

func (that *recordingHost) expectKind(t *testing.T, kind string) hostEvent {
	t.Helper()

	event := that.next(t)
	require.Equal(t, kind, event.kind, "unexpected event %+v", event)

	return event
}

func (that *recordingHost) expectSilent(t *testing.T) {
	t.Helper()

	select {
	case event := <-that.events:
		t.Fatalf("unexpected host event: %+v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

// expectHandOff - found, then connecting and completion after the two pacing delays.
func (that *recordingHost) expectHandOff(t *testing.T, env *matchEnv, roomID string) {
	t.Helper()

	that.expectState(t, StateFound)
	that.expectCompletion(t, env, roomID)
}

// expectCompletion - connecting and completion after the two pacing delays.
func (that *recordingHost) expectCompletion(t *testing.T, env *matchEnv, roomID string) {
	t.Helper()

	env.advance(t, 1, testTimings.FoundDelay)
	that.expectState(t, StateConnecting)

	env.advance(t, 1, testTimings.ConnectDelay)
	that.expectKind(t, eventClose)

	navigate := that.expectKind(t, eventNavigate)
	require.Equal(t, Destination{RoomID: roomID, Mode: ModeOnline}, navigate.destination)
}

// stealingRooms - another player claims the candidate between find and join.
type stealingRooms struct {
	roomService
	thiefID string
}

func (that *stealingRooms) FindAvailableRoom(ctx context.Context, excludingPlayerID string) (*entity.Room, error) {
	room, err := that.roomService.FindAvailableRoom(ctx, excludingPlayerID)
	if err != nil {
		return nil, err
	}

	if _, err = that.roomService.JoinRoom(ctx, room.ID, that.thiefID); err != nil {
		return nil, err
	}

	return room, nil
}

// gatedRooms - GetRoom stays in flight until released, regardless of cancellation.
type gatedRooms struct {
	roomService
	entered chan struct{}
	release chan struct{}
}

func newGatedRooms(inner roomService) *gatedRooms {
	return &gatedRooms{
		roomService: inner,
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
}

func (that *gatedRooms) GetRoom(_ context.Context, roomID string) (*entity.Room, error) {
	that.entered <- struct{}{}
	<-that.release

	return that.roomService.GetRoom(context.Background(), roomID)
}

// rewritingRooms - GetRoom returns whatever rewrite makes of the stored row.
type rewritingRooms struct {
	roomService
	rewrite func(room *entity.Room) (*entity.Room, error)
}

func (that *rewritingRooms) GetRoom(ctx context.Context, roomID string) (*entity.Room, error) {
	room, err := that.roomService.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if !room.IsPlaying() {
		return room, nil
	}

	return that.rewrite(room)
}

type failingFind struct {
	roomService
	calls int
}

func (that *failingFind) FindAvailableRoom(context.Context, string) (*entity.Room, error) {
	that.calls++
	return nil, errRedisDown
}

// countingListener - counts how often subscriptions are released.
type countingListener struct {
	realtime.Listener
	released chan struct{}
}

func (that *countingListener) Subscribe(ctx context.Context, roomID string, handler realtime.Handler) (realtime.Subscription, error) {
	sub, err := that.Listener.Subscribe(ctx, roomID, handler)
	if err != nil {
		return nil, err
	}

	return &countingSubscription{Subscription: sub, released: that.released}, nil
}

type countingSubscription struct {
	realtime.Subscription
	released chan struct{}
}

func (that *countingSubscription) Unsubscribe() error {
	that.released <- struct{}{}
	return that.Subscription.Unsubscribe()
}

// joinOnCreate - the opponent joins right after creation, before the creator subscribes.
type joinOnCreate struct {
	roomService
	joinerID string
}

func (that *joinOnCreate) CreateRoom(ctx context.Context, initiatorID string) (*entity.Room, error) {
	room, err := that.roomService.CreateRoom(ctx, initiatorID)
	if err != nil {
		return nil, err
	}

	if _, err = that.roomService.JoinRoom(ctx, room.ID, that.joinerID); err != nil {
		return nil, err
	}

	return room, nil
}
