package service

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
)

const tickInterval = time.Second

// ClockObserver - receives the mirrored clocks. Called from the timer goroutine.
type ClockObserver interface {
	ClockChanged(timeLeftX, timeLeftO int)
	TimeRunningOut(mark string)
}

// turn - identifies one turn so the running-out warning fires once per turn.
type turn struct {
	player  string
	hasMove bool
	move    entity.Move
}

// TurnTimer - local display copy of the room clocks. The room row stays authoritative:
// every synced row overwrites the mirrored values.
type TurnTimer struct {
	clock     clockwork.Clock
	threshold int
	mark      string
	observer  ClockObserver

	mu        sync.Mutex
	timeLeftX int
	timeLeftO int
	current   turn
	warned    bool
	stop      chan struct{}
	done      chan struct{}
}

// NewTurnTimer - mark limits the running-out warning to the watcher's own turns; empty mark warns on every turn.
func NewTurnTimer(clock clockwork.Clock, threshold time.Duration, mark string, observer ClockObserver) *TurnTimer {
	return &TurnTimer{
		clock:     clock,
		threshold: int(threshold / time.Second),
		mark:      mark,
		observer:  observer,
	}
}

// Sync - adopts the clocks of the latest row. Ticking runs only while the room is playing.
func (that *TurnTimer) Sync(room *entity.Room) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.timeLeftX = room.TimeLeftX
	that.timeLeftO = room.TimeLeftO

	next := turn{player: room.CurrentPlayer}
	if room.LastMove != nil {
		next.hasMove = true
		next.move = *room.LastMove
	}

	if next != that.current {
		that.current = next
		that.warned = false
	}

	if !room.IsPlaying() {
		that.stopLocked()
		return
	}

	if that.stop == nil {
		that.stop = make(chan struct{})
		that.done = make(chan struct{})

		go that.run(that.clock.NewTicker(tickInterval), that.stop, that.done)
	}
}

// Stop - halts ticking and waits for the timer goroutine to exit.
func (that *TurnTimer) Stop() {
	that.mu.Lock()
	done := that.done
	that.stopLocked()
	that.mu.Unlock()

	if done != nil {
		<-done
	}
}

// TimeLeft - current mirrored clocks in seconds.
func (that *TurnTimer) TimeLeft() (int, int) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.timeLeftX, that.timeLeftO
}

func (that *TurnTimer) stopLocked() {
	if that.stop == nil {
		return
	}

	close(that.stop)
	that.stop = nil
	that.done = nil
}

func (that *TurnTimer) run(ticker clockwork.Ticker, stop chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			that.tick(stop)
		}
	}
}

func (that *TurnTimer) tick(stop chan struct{}) {
	that.mu.Lock()

	// stopped or restarted since the ticker fired
	if that.stop != stop {
		that.mu.Unlock()
		return
	}

	var left *int

	switch that.current.player {
	case entity.PlayerX:
		left = &that.timeLeftX
	case entity.PlayerO:
		left = &that.timeLeftO
	default:
		that.mu.Unlock()
		return
	}

	if *left > 0 {
		*left--
	}

	warn := !that.warned && *left <= that.threshold && (that.mark == "" || that.mark == that.current.player)
	if warn {
		that.warned = true
	}

	timeLeftX, timeLeftO, player := that.timeLeftX, that.timeLeftO, that.current.player
	that.mu.Unlock()

	that.observer.ClockChanged(timeLeftX, timeLeftO)

	if warn {
		that.observer.TimeRunningOut(player)
	}
}
