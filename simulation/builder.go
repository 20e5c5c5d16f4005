package simulation

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/rs/xid"

	"github.com/sarchlab/savestate/config"
	"github.com/sarchlab/savestate/control"
	"github.com/sarchlab/savestate/hooking"
	"github.com/sarchlab/savestate/monitoring"
	"github.com/sarchlab/savestate/persistence"
	"github.com/sarchlab/savestate/timing"
)

// Builder can be used to build a simulation.
type Builder struct {
	cfg          *config.Config
	storage      persistence.Storage
	logger       *slog.Logger
	monitorOn    bool
	startMonitor bool
	contributors []persistence.Contributor
}

// MakeBuilder creates a new builder with the default configuration and
// monitoring disabled.
func MakeBuilder() Builder {
	return Builder{
		cfg: config.Default(),
	}
}

// WithConfig sets the configuration.
func (b Builder) WithConfig(cfg *config.Config) Builder {
	b.cfg = cfg
	return b
}

// WithStorage overrides the storage selected by the configuration.
func (b Builder) WithStorage(s persistence.Storage) Builder {
	b.storage = s
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// WithMonitoring creates a monitor and, if start is true, starts its server
// as part of Build.
func (b Builder) WithMonitoring(start bool) Builder {
	b.monitorOn = true
	b.startMonitor = start

	return b
}

// WithContributor registers an additional contributor with the save manager.
func (b Builder) WithContributor(c persistence.Contributor) Builder {
	b.contributors = append(b.contributors, c)
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.cfg == nil {
		panic("config must be set")
	}
}

// Build builds the simulation and loads the stored saves into its registry.
func (b Builder) Build() (*Simulation, error) {
	b.parametersMustBeValid()

	err := b.cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Simulation{
		id:            xid.New().String(),
		freq:          timing.Freq(b.cfg.FrameRate) * timing.Hz,
		compNameIndex: make(map[string]int),
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger.With("session", s.id)

	s.storage, err = b.buildStorage()
	if err != nil {
		return nil, err
	}

	err = b.buildComponents(s)
	if err != nil {
		return nil, err
	}

	if b.monitorOn {
		b.buildMonitor(s)
	}

	s.wire(b.contributors)

	err = s.manager.Open()
	if err != nil {
		s.Terminate()
		return nil, err
	}

	if b.monitorOn && b.startMonitor {
		s.monitor.StartServer()
	}

	return s, nil
}

func (b Builder) buildStorage() (persistence.Storage, error) {
	if b.storage != nil {
		return b.storage, nil
	}

	switch b.cfg.StorageBackend {
	case config.BackendSQLite:
		err := os.MkdirAll(b.cfg.DataDir, 0o755)
		if err != nil {
			return nil, err
		}

		return persistence.NewSQLiteStorage(b.cfg.SavePath())
	default:
		return persistence.NewFileStorage(b.cfg.SavePath()), nil
	}
}

func (b Builder) buildComponents(s *Simulation) error {
	start, err := b.cfg.Clock.Start()
	if err != nil {
		return err
	}

	s.manager = persistence.MakeBuilder().
		WithStorage(s.storage).
		WithLogger(s.logger).
		Build()

	s.controller = control.NewController(s.logger)

	s.clock = timing.MakeClockBuilder().
		WithStopOnPause(b.cfg.Clock.StopOnPause).
		WithBaseMultiplier(b.cfg.Clock.BaseMultiplier).
		WithSpeedMultipliers(b.cfg.Clock.SpeedMultipliers).
		WithSpeedIndex(b.cfg.Clock.SpeedIndex).
		WithStartDate(start).
		WithLogger(s.logger).
		Build()

	s.playTime = timing.NewPlayTimeCounter(b.cfg.PlayTime.StopOnPause, s.logger)
	s.signals = hooking.NewSignalCounter()

	return nil
}

func (b Builder) buildMonitor(s *Simulation) {
	s.metrics = monitoring.NewMetrics()
	s.metrics.RegisterGauge("saves", "Saves in the registry",
		func() float64 { return float64(len(s.manager.List())) })
	s.metrics.RegisterGauge("game_clock_seconds", "In-game seconds since the start date",
		func() float64 { return s.clock.Elapsed() })
	s.metrics.RegisterGauge("play_time_seconds", "Real seconds played",
		func() float64 { return s.playTime.Elapsed() })

	s.monitor = monitoring.NewMonitor(s.logger).
		WithPortNumber(b.cfg.Monitor.Port)
	if b.cfg.Monitor.OpenBrowser {
		s.monitor.WithBrowser()
	}

	s.monitor.RegisterManager(s.manager)
	s.monitor.RegisterController(s.controller)
	s.monitor.RegisterClock(s.clock)
	s.monitor.RegisterPlayTime(s.playTime)
	s.monitor.RegisterStepper(s)
	s.monitor.RegisterSignalCounter(s.signals)
	s.monitor.RegisterMetrics(s.metrics)
}

func (s *Simulation) wire(extra []persistence.Contributor) {
	logHook := hooking.NewLogHook(s.logger)

	s.manager.RegisterContributor(s.clock)
	s.manager.RegisterContributor(s.playTime)

	for _, c := range extra {
		s.manager.RegisterContributor(c)
	}

	s.manager.AcceptHook(logHook)
	s.manager.AcceptHook(s.signals)

	s.controller.AcceptHook(s.clock)
	s.controller.AcceptHook(s.playTime)
	s.controller.AcceptHook(logHook)
	s.controller.AcceptHook(s.signals)

	if s.metrics != nil {
		s.manager.AcceptHook(s.metrics)
		s.controller.AcceptHook(s.metrics)
	}

	s.RegisterTicker(s.clock)
	s.RegisterTicker(s.playTime)

	s.RegisterComponent(s.manager)
	s.RegisterComponent(s.controller)
	s.RegisterComponent(s.clock)
	s.RegisterComponent(s.playTime)
}
