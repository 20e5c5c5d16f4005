package timing

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sarchlab/savestate/fragment"
	"github.com/sarchlab/savestate/hooking"
	"github.com/sarchlab/savestate/persistence"
)

// GameClockKey is the fragment key owned by the GameClock.
const GameClockKey = "timing.game_clock"

const gameClockVersion = 1

// DefaultStartDate is the in-game date at which a new clock starts.
var DefaultStartDate = time.Date(2010, time.January, 1, 9, 0, 0, 0, time.UTC)

// DefaultSpeedMultipliers are the selectable game speeds. Index 0 stops the
// clock without pausing it.
var DefaultSpeedMultipliers = []float64{0, 1, 2, 3, 5}

// ErrSpeedIndex is returned when selecting a game speed that does not exist.
var ErrSpeedIndex = errors.New("speed index out of range")

// GameClock is an in-game calendar that runs baseMultiplier times faster than
// real time, scaled by the selected game speed.
type GameClock struct {
	acc    *Accumulator
	logger *slog.Logger

	baseMultiplier   float64
	speedMultipliers []float64
	speedIndex       int

	startDate        time.Time
	defaultStartDate time.Time
}

// ClockBuilder builds GameClocks.
type ClockBuilder struct {
	stopOnPause      bool
	baseMultiplier   float64
	speedMultipliers []float64
	speedIndex       int
	startDate        time.Time
	logger           *slog.Logger
}

// MakeClockBuilder creates a ClockBuilder with the default settings.
func MakeClockBuilder() ClockBuilder {
	return ClockBuilder{
		stopOnPause:      true,
		baseMultiplier:   10,
		speedMultipliers: DefaultSpeedMultipliers,
		speedIndex:       1,
		startDate:        DefaultStartDate,
	}
}

// WithStopOnPause sets whether the clock stops while the game is paused.
func (b ClockBuilder) WithStopOnPause(stop bool) ClockBuilder {
	b.stopOnPause = stop
	return b
}

// WithBaseMultiplier sets how much faster than real time the clock runs.
func (b ClockBuilder) WithBaseMultiplier(m float64) ClockBuilder {
	b.baseMultiplier = m
	return b
}

// WithSpeedMultipliers sets the selectable game speeds.
func (b ClockBuilder) WithSpeedMultipliers(speeds []float64) ClockBuilder {
	b.speedMultipliers = speeds
	return b
}

// WithSpeedIndex selects the initial game speed.
func (b ClockBuilder) WithSpeedIndex(i int) ClockBuilder {
	b.speedIndex = i
	return b
}

// WithStartDate sets the in-game date at elapsed time zero.
func (b ClockBuilder) WithStartDate(t time.Time) ClockBuilder {
	b.startDate = t
	return b
}

// WithLogger sets the logger.
func (b ClockBuilder) WithLogger(logger *slog.Logger) ClockBuilder {
	b.logger = logger
	return b
}

// Build creates the GameClock. It panics if the speed index does not select
// one of the speed multipliers.
func (b ClockBuilder) Build() *GameClock {
	if b.speedIndex < 0 || b.speedIndex >= len(b.speedMultipliers) {
		panic(fmt.Sprintf("speed index %d out of range [0, %d)",
			b.speedIndex, len(b.speedMultipliers)))
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &GameClock{
		acc:              NewAccumulator(b.stopOnPause),
		logger:           logger.With("contributor", GameClockKey),
		baseMultiplier:   b.baseMultiplier,
		speedMultipliers: append([]float64(nil), b.speedMultipliers...),
		speedIndex:       b.speedIndex,
		startDate:        b.startDate.UTC(),
		defaultStartDate: b.startDate.UTC(),
	}
}

// Name returns the name of the clock.
func (c *GameClock) Name() string {
	return "GameClock"
}

// FragmentKey returns GameClockKey.
func (c *GameClock) FragmentKey() string {
	return GameClockKey
}

// State returns whether the clock is running or paused.
func (c *GameClock) State() State {
	return c.acc.State()
}

// Rate returns the in-game seconds that pass per real second.
func (c *GameClock) Rate() float64 {
	return c.baseMultiplier * c.speedMultipliers[c.speedIndex]
}

// SpeedIndex returns the selected game speed.
func (c *GameClock) SpeedIndex() int {
	return c.speedIndex
}

// NumSpeeds returns how many game speeds can be selected.
func (c *GameClock) NumSpeeds() int {
	return len(c.speedMultipliers)
}

// SetSpeed selects a game speed.
func (c *GameClock) SetSpeed(index int) error {
	if index < 0 || index >= len(c.speedMultipliers) {
		return fmt.Errorf("%w: %d not in [0, %d)",
			ErrSpeedIndex, index, len(c.speedMultipliers))
	}

	c.speedIndex = index

	return nil
}

// Tick advances the clock by a real-time delta in seconds.
func (c *GameClock) Tick(delta float64) bool {
	return c.acc.Advance(delta, c.Rate())
}

// Elapsed returns the in-game seconds since the start date.
func (c *GameClock) Elapsed() float64 {
	return c.acc.Elapsed()
}

// Epoch returns the elapsed in-game time truncated to whole seconds.
func (c *GameClock) Epoch() time.Duration {
	return wholeSeconds(c.acc.Elapsed())
}

// StartDate returns the in-game date at elapsed time zero.
func (c *GameClock) StartDate() time.Time {
	return c.startDate
}

// DateTime returns the current in-game date.
func (c *GameClock) DateTime() time.Time {
	return c.startDate.Add(c.Epoch())
}

// String renders the in-game date, for example "Friday 1/1/2010 9:0:0".
func (c *GameClock) String() string {
	t := c.DateTime()

	return fmt.Sprintf("%s %d/%d/%d %d:%d:%d",
		t.Weekday(), t.Day(), int(t.Month()), t.Year(),
		t.Hour(), t.Minute(), t.Second())
}

// Func handles collect, restore, pause and resume signals.
func (c *GameClock) Func(ctx hooking.HookCtx) error {
	switch ctx.Pos {
	case hooking.HookPosPause:
		c.acc.Pause()
	case hooking.HookPosResume:
		c.acc.Resume()
	case hooking.HookPosCollect:
		return collectInto(ctx, GameClockKey, c.encode())
	case hooking.HookPosRestore:
		return c.restore(ctx)
	}

	return nil
}

func (c *GameClock) encode() []byte {
	d := c.startDate

	return fragment.NewEncoder(gameClockVersion).
		Float64(c.acc.Elapsed()).
		Int32(int32(d.Year())).
		Int32(int32(d.Month())).
		Int32(int32(d.Day())).
		Int32(int32(d.Hour())).
		Int32(int32(d.Minute())).
		Int32(int32(d.Second())).
		Bytes()
}

func (c *GameClock) restore(ctx hooking.HookCtx) error {
	data, found, err := fragmentOf(ctx, GameClockKey)
	if err != nil {
		return err
	}

	if !found {
		c.logger.Info("fragment missing, keeping current time",
			"save", ctx.Detail, "elapsed", c.acc.Elapsed())
		return nil
	}

	elapsed, start, err := decodeGameClock(data)
	if err != nil {
		c.acc.Set(0)
		c.startDate = c.defaultStartDate
		c.logger.Warn("corrupt fragment, clock reset",
			"save", ctx.Detail, "error", err)

		return fmt.Errorf("%s: %w", GameClockKey, err)
	}

	c.acc.Set(elapsed)
	c.startDate = start

	return nil
}

func decodeGameClock(data []byte) (float64, time.Time, error) {
	d, err := fragment.NewDecoder(data)
	if err != nil {
		return 0, time.Time{}, err
	}

	err = d.ExpectVersion(gameClockVersion)
	if err != nil {
		return 0, time.Time{}, err
	}

	elapsed := d.Float64()
	year, month, day := d.Int32(), d.Int32(), d.Int32()
	hour, minute, second := d.Int32(), d.Int32(), d.Int32()

	err = d.Finish()
	if err != nil {
		return 0, time.Time{}, err
	}

	if elapsed < 0 || math.IsNaN(elapsed) || math.IsInf(elapsed, 0) {
		return 0, time.Time{}, fmt.Errorf("%w: elapsed time %v",
			fragment.ErrCorrupt, elapsed)
	}

	start := time.Date(int(year), time.Month(month), int(day),
		int(hour), int(minute), int(second), 0, time.UTC)
	if start.Year() != int(year) || int32(start.Month()) != month ||
		start.Day() != int(day) || start.Hour() != int(hour) ||
		start.Minute() != int(minute) || start.Second() != int(second) {
		return 0, time.Time{}, fmt.Errorf("%w: invalid start date %d-%d-%d %d:%d:%d",
			fragment.ErrCorrupt, year, month, day, hour, minute, second)
	}

	return elapsed, start, nil
}

func fragmentOf(
	ctx hooking.HookCtx,
	key string,
) (data []byte, found bool, err error) {
	fragments, ok := ctx.Item.(persistence.FragmentMap)
	if !ok {
		return nil, false, fmt.Errorf("%s: unexpected item %T", key, ctx.Item)
	}

	data, found = fragments.Get(key)

	return data, found, nil
}

func collectInto(ctx hooking.HookCtx, key string, data []byte) error {
	fragments, ok := ctx.Item.(persistence.FragmentMap)
	if !ok {
		return fmt.Errorf("%s: unexpected item %T", key, ctx.Item)
	}

	fragments.Put(key, data)

	return nil
}
