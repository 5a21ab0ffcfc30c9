package tools

import (
	"fmt"
	"time"
)

// Timer actions.
const (
	ActionStartPause = "start_pause"
	ActionMode       = "mode"
	ActionLonger     = "longer"
	ActionShorter    = "shorter"
)

// TimerMode selects countdown or stopwatch.
type TimerMode string

const (
	Countdown TimerMode = "countdown"
	Stopwatch TimerMode = "stopwatch"
)

const (
	adjustStep  = time.Minute
	minDuration = time.Second
	maxDuration = 24 * time.Hour
)

// TimerOptions are the timer settings.
type TimerOptions struct {
	Mode     TimerMode
	Duration time.Duration
	Sound    bool
}

// Timer is a countdown or stopwatch. Elapsed time is the sum of closed run
// intervals plus the open one, so pausing never drifts.
type Timer struct {
	clock Clock
	opts  TimerOptions

	host   Host
	active bool

	mode     TimerMode
	duration time.Duration
	elapsed  time.Duration
	since    time.Time
	running  bool
	fired    bool
}

func NewTimer(clock Clock, opts TimerOptions) *Timer {
	if clock == nil {
		clock = SystemClock
	}
	if opts.Mode != Stopwatch {
		opts.Mode = Countdown
	}
	if opts.Duration < minDuration {
		opts.Duration = 5 * time.Minute
	}
	return &Timer{clock: clock, opts: opts, mode: opts.Mode, duration: opts.Duration}
}

func (t *Timer) ID() ID { return TimerID }

// SetOptions applies changed settings. Mode and duration only change while
// the timer is stopped at zero.
func (t *Timer) SetOptions(opts TimerOptions) {
	t.opts.Sound = opts.Sound
	if t.running || t.elapsed > 0 {
		return
	}
	if opts.Mode == Countdown || opts.Mode == Stopwatch {
		t.mode = opts.Mode
	}
	if opts.Duration >= minDuration {
		t.duration = opts.Duration
	}
}

func (t *Timer) Activate(h Host) error {
	t.host = h
	t.active = true
	return nil
}

// Deactivate pauses the timer; the value is kept for the next activation.
func (t *Timer) Deactivate(DeactivateOptions) error {
	t.Pause()
	t.active = false
	t.host = nil
	return nil
}

func (t *Timer) State() ToolState {
	if !t.active {
		return Idle{}
	}
	return TimerActive{Mode: t.mode, Remaining: t.Remaining(), Elapsed: t.Elapsed(), Running: t.running}
}

func (t *Timer) HandleEvent(ev Event) error {
	if !t.active {
		return ErrNotActive
	}
	switch e := ev.(type) {
	case TickEvent:
		t.Tick(e.Now)
	case ActionEvent:
		switch e.Action {
		case ActionStartPause:
			if t.running {
				t.Pause()
			} else {
				t.Start()
			}
		case ActionReset:
			t.Reset()
		case ActionMode:
			return t.ToggleMode()
		case ActionLonger:
			return t.Adjust(adjustStep)
		case ActionShorter:
			return t.Adjust(-adjustStep)
		default:
			return fmt.Errorf("timer: unknown action %q", e.Action)
		}
	}
	return nil
}

// Start runs the timer. An expired countdown restarts from the full duration.
func (t *Timer) Start() {
	if t.running {
		return
	}
	if t.mode == Countdown && t.fired {
		t.elapsed = 0
		t.fired = false
	}
	t.since = t.clock.Now()
	t.running = true
}

// Pause freezes the timer at its current value.
func (t *Timer) Pause() {
	if !t.running {
		return
	}
	t.elapsed += t.clock.Now().Sub(t.since)
	t.running = false
	if t.mode == Countdown && t.elapsed > t.duration {
		t.elapsed = t.duration
	}
}

// Reset stops the timer and returns it to zero elapsed.
func (t *Timer) Reset() {
	t.running = false
	t.elapsed = 0
	t.fired = false
}

// ToggleMode switches between countdown and stopwatch. Only allowed while
// stopped.
func (t *Timer) ToggleMode() error {
	if t.running {
		return fmt.Errorf("timer: pause before switching mode")
	}
	if t.mode == Countdown {
		t.mode = Stopwatch
	} else {
		t.mode = Countdown
	}
	t.Reset()
	return nil
}

// Adjust changes the countdown duration while stopped, clamped to
// [1s, 24h]. Adjusting re-arms an expired countdown.
func (t *Timer) Adjust(delta time.Duration) error {
	if t.mode != Countdown {
		return fmt.Errorf("timer: duration only applies to countdown")
	}
	if t.running {
		return fmt.Errorf("timer: pause before changing duration")
	}
	t.duration = min(max(t.duration+delta, minDuration), maxDuration)
	if t.elapsed >= t.duration {
		t.elapsed = 0
	}
	t.fired = false
	return nil
}

// Tick advances the timer to now and reports whether a countdown expired on
// this tick. Expiry is reported exactly once per run.
func (t *Timer) Tick(now time.Time) bool {
	if !t.running || t.mode != Countdown || t.fired {
		return false
	}
	if t.elapsed+now.Sub(t.since) < t.duration {
		return false
	}
	t.elapsed = t.duration
	t.running = false
	t.fired = true
	if t.host != nil {
		t.host.Notify(Notice{Text: "time's up", Bell: t.opts.Sound})
	}
	return true
}

// Elapsed returns the time run so far.
func (t *Timer) Elapsed() time.Duration {
	d := t.elapsed
	if t.running {
		d += t.clock.Now().Sub(t.since)
	}
	if t.mode == Countdown && d > t.duration {
		d = t.duration
	}
	return d
}

// Remaining returns the countdown time left, zero for a stopwatch.
func (t *Timer) Remaining() time.Duration {
	if t.mode != Countdown {
		return 0
	}
	return t.duration - t.Elapsed()
}

func (t *Timer) Mode() TimerMode         { return t.mode }
func (t *Timer) Duration() time.Duration { return t.duration }
func (t *Timer) Running() bool           { return t.running }
func (t *Timer) Expired() bool           { return t.fired }
