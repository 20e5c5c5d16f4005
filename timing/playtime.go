package timing

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sarchlab/savestate/fragment"
	"github.com/sarchlab/savestate/hooking"
)

// PlayTimeKey is the fragment key owned by the PlayTimeCounter.
const PlayTimeKey = "timing.play_time"

const playTimeVersion = 1

// PlayTimeCounter measures real time spent playing.
type PlayTimeCounter struct {
	acc    *Accumulator
	logger *slog.Logger
}

// NewPlayTimeCounter creates a counter at zero. A nil logger uses the default
// logger.
func NewPlayTimeCounter(stopOnPause bool, logger *slog.Logger) *PlayTimeCounter {
	if logger == nil {
		logger = slog.Default()
	}

	return &PlayTimeCounter{
		acc:    NewAccumulator(stopOnPause),
		logger: logger.With("contributor", PlayTimeKey),
	}
}

// Name returns the name of the counter.
func (p *PlayTimeCounter) Name() string {
	return "PlayTimeCounter"
}

// FragmentKey returns PlayTimeKey.
func (p *PlayTimeCounter) FragmentKey() string {
	return PlayTimeKey
}

// State returns whether the counter is running or paused.
func (p *PlayTimeCounter) State() State {
	return p.acc.State()
}

// Tick advances the counter by a real-time delta in seconds.
func (p *PlayTimeCounter) Tick(delta float64) bool {
	return p.acc.Advance(delta, 1)
}

// Elapsed returns the play time in seconds.
func (p *PlayTimeCounter) Elapsed() float64 {
	return p.acc.Elapsed()
}

// PlayTime returns the play time truncated to whole seconds.
func (p *PlayTimeCounter) PlayTime() time.Duration {
	return wholeSeconds(p.acc.Elapsed())
}

// String renders the play time as hh:mm:ss, prefixed with the number of days
// once it exceeds one day.
func (p *PlayTimeCounter) String() string {
	return formatSpan(p.PlayTime())
}

func formatSpan(d time.Duration) string {
	total := int64(d / time.Second)
	days := total / 86400
	h := total / 3600 % 24
	m := total / 60 % 60
	s := total % 60

	if days > 0 {
		return fmt.Sprintf("%d.%02d:%02d:%02d", days, h, m, s)
	}

	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Func handles collect, restore, pause and resume signals.
func (p *PlayTimeCounter) Func(ctx hooking.HookCtx) error {
	switch ctx.Pos {
	case hooking.HookPosPause:
		p.acc.Pause()
	case hooking.HookPosResume:
		p.acc.Resume()
	case hooking.HookPosCollect:
		data := fragment.NewEncoder(playTimeVersion).
			Float64(p.acc.Elapsed()).
			Bytes()

		return collectInto(ctx, PlayTimeKey, data)
	case hooking.HookPosRestore:
		return p.restore(ctx)
	}

	return nil
}

func (p *PlayTimeCounter) restore(ctx hooking.HookCtx) error {
	data, found, err := fragmentOf(ctx, PlayTimeKey)
	if err != nil {
		return err
	}

	if !found {
		p.logger.Info("fragment missing, keeping current play time",
			"save", ctx.Detail, "elapsed", p.acc.Elapsed())
		return nil
	}

	elapsed, err := decodePlayTime(data)
	if err != nil {
		p.acc.Set(0)
		p.logger.Warn("corrupt fragment, play time reset",
			"save", ctx.Detail, "error", err)

		return fmt.Errorf("%s: %w", PlayTimeKey, err)
	}

	p.acc.Set(elapsed)

	return nil
}

func decodePlayTime(data []byte) (float64, error) {
	d, err := fragment.NewDecoder(data)
	if err != nil {
		return 0, err
	}

	if err := d.ExpectVersion(playTimeVersion); err != nil {
		return 0, err
	}

	elapsed := d.Float64()

	if err := d.Finish(); err != nil {
		return 0, err
	}

	if elapsed < 0 || math.IsNaN(elapsed) || math.IsInf(elapsed, 0) {
		return 0, fmt.Errorf("%w: elapsed time %v", fragment.ErrCorrupt, elapsed)
	}

	return elapsed, nil
}
