// Package simulation wires one game session: exactly one save manager, one
// pause controller, one game clock and one play-time counter, with every
// subscription set up at build time.
package simulation

import (
	"io"
	"log/slog"

	"github.com/sarchlab/savestate/control"
	"github.com/sarchlab/savestate/hooking"
	"github.com/sarchlab/savestate/monitoring"
	"github.com/sarchlab/savestate/persistence"
	"github.com/sarchlab/savestate/timing"
)

// A Simulation is a running game session driven frame by frame.
type Simulation struct {
	id     string
	logger *slog.Logger
	freq   timing.Freq
	frames uint64

	storage    persistence.Storage
	manager    *persistence.Manager
	controller *control.Controller
	clock      *timing.GameClock
	playTime   *timing.PlayTimeCounter
	signals    *hooking.SignalCounter
	monitor    *monitoring.Monitor
	metrics    *monitoring.Metrics

	tickers       []timing.Ticker
	components    []hooking.Named
	compNameIndex map[string]int
}

// ID returns the unique id of the session.
func (s *Simulation) ID() string {
	return s.id
}

// Logger returns the session logger.
func (s *Simulation) Logger() *slog.Logger {
	return s.logger
}

// Freq returns the frame rate.
func (s *Simulation) Freq() timing.Freq {
	return s.freq
}

// Manager returns the save manager.
func (s *Simulation) Manager() *persistence.Manager {
	return s.manager
}

// Controller returns the pause controller.
func (s *Simulation) Controller() *control.Controller {
	return s.controller
}

// Clock returns the game clock.
func (s *Simulation) Clock() *timing.GameClock {
	return s.clock
}

// PlayTime returns the play-time counter.
func (s *Simulation) PlayTime() *timing.PlayTimeCounter {
	return s.playTime
}

// Signals returns the counter of every dispatched signal.
func (s *Simulation) Signals() *hooking.SignalCounter {
	return s.signals
}

// GetMonitor returns the monitor, or nil if monitoring is disabled.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// RegisterTicker adds a ticker that advances every frame.
func (s *Simulation) RegisterTicker(t timing.Ticker) {
	s.tickers = append(s.tickers, t)
}

// RegisterComponent registers a component with the session.
func (s *Simulation) RegisterComponent(c hooking.Named) {
	compName := c.Name()
	if _, ok := s.compNameIndex[compName]; ok {
		panic("component " + compName + " already registered")
	}

	s.components = append(s.components, c)
	s.compNameIndex[compName] = len(s.components) - 1

	if s.monitor != nil {
		s.monitor.RegisterComponent(c)
	}
}

// GetComponentByName returns the component with the given name.
func (s *Simulation) GetComponentByName(name string) hooking.Named {
	i, ok := s.compNameIndex[name]
	if !ok {
		return nil
	}

	return s.components[i]
}

// Components returns all registered components.
func (s *Simulation) Components() []hooking.Named {
	return s.components
}

// Frames returns how many frames have been played.
func (s *Simulation) Frames() uint64 {
	return s.frames
}

// Tick plays one frame. It returns true if any ticker made progress.
func (s *Simulation) Tick() bool {
	s.frames++

	delta := s.freq.Period()
	progress := false

	for _, t := range s.tickers {
		if t.Tick(delta) {
			progress = true
		}
	}

	return progress
}

// Step plays a number of frames.
func (s *Simulation) Step(frames int) {
	for i := 0; i < frames; i++ {
		s.Tick()
	}
}

// Run plays the given number of frames, reporting the progress on the
// monitor if there is one.
func (s *Simulation) Run(frames uint64) {
	var bar *monitoring.ProgressBar
	if s.monitor != nil {
		bar = s.monitor.CreateProgressBar("play", frames)
		defer s.monitor.CompleteProgressBar(bar)
	}

	for i := uint64(0); i < frames; i++ {
		if s.monitor != nil {
			s.monitor.Do(func() { s.Tick() })
			bar.Advance(1)

			continue
		}

		s.Tick()
	}

	s.logger.Debug("frames played", "frames", frames, "total", s.frames)
}

// Terminate stops the monitor and releases the storage.
func (s *Simulation) Terminate() {
	if s.monitor != nil {
		s.monitor.StopServer()
	}

	if c, ok := s.storage.(io.Closer); ok {
		err := c.Close()
		if err != nil {
			s.logger.Warn("closing storage", "error", err)
		}
	}
}
