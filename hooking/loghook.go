package hooking

import (
	"context"
	"log/slog"
	"sort"
)

// LogHook is a hook that writes every signal it observes into a logger.
type LogHook struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogHook returns a new LogHook which will write into the logger at debug
// level. A nil logger falls back to slog.Default().
func NewLogHook(logger *slog.Logger) *LogHook {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogHook{logger: logger, level: slog.LevelDebug}
}

// WithLevel changes the level at which signals are logged.
func (h *LogHook) WithLevel(level slog.Level) *LogHook {
	h.level = level
	return h
}

// Name returns the name of the hook.
func (h *LogHook) Name() string {
	return "LogHook"
}

// Func writes the signal information into the logger.
func (h *LogHook) Func(ctx HookCtx) error {
	attrs := []any{slog.String("signal", posName(ctx.Pos))}

	if save, ok := ctx.Detail.(string); ok {
		attrs = append(attrs, slog.String("save", save))
	}

	if keys := fragmentKeys(ctx.Item); keys != nil {
		attrs = append(attrs, slog.Any("fragments", keys))
	}

	h.logger.Log(context.Background(), h.level, "signal dispatched", attrs...)

	return nil
}

func fragmentKeys(item interface{}) []string {
	m, ok := item.(interface{ Keys() []string })
	if !ok {
		return nil
	}

	keys := m.Keys()
	sort.Strings(keys)

	return keys
}
