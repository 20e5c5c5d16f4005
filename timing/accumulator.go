package timing

import (
	"math"
	"time"
)

// State tells whether an Accumulator is advancing.
type State int

// The two states of an Accumulator. Running is the initial state.
const (
	Running State = iota
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// An Accumulator sums scaled frame deltas into a non-negative number of
// seconds. When stopOnPause is false it ignores pause requests.
type Accumulator struct {
	elapsed     float64
	stopOnPause bool
	state       State
}

// NewAccumulator creates a running accumulator at zero.
func NewAccumulator(stopOnPause bool) *Accumulator {
	return &Accumulator{stopOnPause: stopOnPause}
}

// State returns the current state.
func (a *Accumulator) State() State {
	return a.state
}

// StopOnPause reports whether Pause stops the accumulator.
func (a *Accumulator) StopOnPause() bool {
	return a.stopOnPause
}

// Pause stops accumulation if the accumulator stops on pause.
func (a *Accumulator) Pause() {
	if !a.stopOnPause {
		return
	}

	a.state = Paused
}

// Resume restarts accumulation.
func (a *Accumulator) Resume() {
	a.state = Running
}

// Advance adds delta*rate while running. It returns whether the elapsed time
// changed.
func (a *Accumulator) Advance(delta, rate float64) bool {
	if a.state != Running {
		return false
	}

	step := delta * rate
	if math.IsNaN(step) || math.IsInf(step, 0) || step <= 0 {
		return false
	}

	a.elapsed += step

	return true
}

// Elapsed returns the accumulated seconds.
func (a *Accumulator) Elapsed() float64 {
	return a.elapsed
}

// Set overwrites the accumulated seconds. Negative and NaN values clamp to 0.
func (a *Accumulator) Set(seconds float64) {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}

	a.elapsed = seconds
}

// maxWholeSeconds is the largest second count a time.Duration can hold.
const maxWholeSeconds = math.MaxInt64 / int64(time.Second)

// wholeSeconds truncates elapsed seconds to a duration of whole seconds.
func wholeSeconds(elapsed float64) time.Duration {
	if elapsed >= float64(maxWholeSeconds) {
		return time.Duration(maxWholeSeconds) * time.Second
	}

	return time.Duration(int64(elapsed)) * time.Second
}
