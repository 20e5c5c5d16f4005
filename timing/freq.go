// Package timing provides the time-accumulating contributors: a game clock
// and a play-time counter. Both advance only while running and persist their
// elapsed time as a fragment.
package timing

import (
	"log"
	"math"
)

// Freq defines the type of frequency
type Freq float64

// Defines the unit of frequency
const (
	Hz  Freq = 1
	KHz Freq = 1e3
)

// Period returns the time in seconds between two consecutive frames.
func (f Freq) Period() float64 {
	if f <= 0 {
		log.Panic("frequency must be positive")
	}

	return 1.0 / float64(f)
}

// Frames converts a duration in seconds to the number of whole frames it
// spans.
func (f Freq) Frames(seconds float64) uint64 {
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}

	return uint64(math.Round(seconds * float64(f)))
}

// A Ticker is an object that updates states with ticks. Tick returns true if
// the state changed.
type Ticker interface {
	Tick(delta float64) bool
}
