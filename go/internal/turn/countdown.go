package turn

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// IntervalDuration is the transitional countdown shown before every turn.
const IntervalDuration = 3 * time.Second

// Phase is the client-local sub-state of a playing room.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseColorPick Phase = "color_pick"
	PhaseInterval  Phase = "interval"
	PhaseDrawing   Phase = "drawing"
	PhaseExpired   Phase = "expired"
	PhaseFinished  Phase = "finished"
)

// Event is reported by Fire when the active timer elapses.
type Event struct {
	Turn  int
	Phase Phase
}

// Countdown drives the per-turn timers of one client: a fixed interval,
// then the drawing countdown. While a color pick is pending no timer runs.
//
// A Countdown is owned by a single loop and is not safe for concurrent use.
type Countdown struct {
	clock    clockwork.Clock
	interval time.Duration

	turn      int
	phase     Phase
	timeLimit time.Duration
	timer     clockwork.Timer
	deadline  time.Time
}

// NewCountdown creates an idle countdown. A nil clock means the real clock.
func NewCountdown(clock clockwork.Clock, interval time.Duration) *Countdown {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = IntervalDuration
	}
	return &Countdown{
		clock:    clock,
		interval: interval,
		turn:     -1,
		phase:    PhaseIdle,
	}
}

// BeginTurn resets the countdown for a newly observed turn. When needsColor
// is set the countdown parks in PhaseColorPick until ColorPicked is called.
func (c *Countdown) BeginTurn(turn int, timeLimit time.Duration, needsColor bool) {
	c.stop()
	c.turn = turn
	c.timeLimit = timeLimit
	if needsColor {
		c.phase = PhaseColorPick
		return
	}
	c.start(PhaseInterval, c.interval)
}

// ColorPicked releases a parked countdown into the interval phase.
func (c *Countdown) ColorPicked() bool {
	if c.phase != PhaseColorPick {
		return false
	}
	c.start(PhaseInterval, c.interval)
	return true
}

// Finish stops all timers for good.
func (c *Countdown) Finish() {
	c.stop()
	c.phase = PhaseFinished
}

// C is the channel of the running timer, or nil when nothing is running.
func (c *Countdown) C() <-chan time.Time {
	if c.timer == nil {
		return nil
	}
	return c.timer.Chan()
}

// Fire advances the phase after the running timer elapsed.
func (c *Countdown) Fire() Event {
	c.timer = nil
	switch c.phase {
	case PhaseInterval:
		c.start(PhaseDrawing, c.timeLimit)
		return Event{Turn: c.turn, Phase: PhaseDrawing}
	case PhaseDrawing:
		c.phase = PhaseExpired
		return Event{Turn: c.turn, Phase: PhaseExpired}
	default:
		return Event{Turn: c.turn, Phase: c.phase}
	}
}

// Phase returns the current phase.
func (c *Countdown) Phase() Phase {
	return c.phase
}

// Turn returns the turn the countdown is running for.
func (c *Countdown) Turn() int {
	return c.turn
}

// Remaining is the time left in the running phase, rounded up to seconds
// the way the countdown is displayed.
func (c *Countdown) Remaining() time.Duration {
	if c.timer == nil {
		return 0
	}
	left := c.deadline.Sub(c.clock.Now())
	if left <= 0 {
		return 0
	}
	whole := left.Truncate(time.Second)
	if whole < left {
		whole += time.Second
	}
	return whole
}

func (c *Countdown) start(phase Phase, d time.Duration) {
	c.stop()
	c.phase = phase
	c.deadline = c.clock.Now().Add(d)
	c.timer = c.clock.NewTimer(d)
}

func (c *Countdown) stop() {
	if c.timer != nil {
		stopAndDrainTimer(c.timer)
		c.timer = nil
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
