// Package control provides the game-wide pause and resume surface.
package control

import (
	"errors"
	"log/slog"

	"github.com/sarchlab/savestate/hooking"
)

// Controller owns the paused flag and raises HookPosPause and HookPosResume on
// its hooks, once per transition.
type Controller struct {
	hooking.HookableBase

	isPaused bool
	logger   *slog.Logger
}

// NewController creates a running Controller. A nil logger uses the default
// logger.
func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{logger: logger}
}

// Name returns the name of the controller.
func (c *Controller) Name() string {
	return "Controller"
}

// IsPaused reports whether the game is paused.
func (c *Controller) IsPaused() bool {
	return c.isPaused
}

// Pause pauses the game. It returns false, without notifying anyone, if the
// game is already paused. The error aggregates the hooks that failed.
func (c *Controller) Pause() (bool, error) {
	if c.isPaused {
		return false, nil
	}

	c.isPaused = true

	return true, c.notify(hooking.HookPosPause)
}

// Resume resumes the game. It returns false, without notifying anyone, if the
// game is not paused.
func (c *Controller) Resume() (bool, error) {
	if !c.isPaused {
		return false, nil
	}

	c.isPaused = false

	return true, c.notify(hooking.HookPosResume)
}

// Toggle pauses a running game and resumes a paused one.
func (c *Controller) Toggle() error {
	var err error
	if c.isPaused {
		_, err = c.Resume()
	} else {
		_, err = c.Pause()
	}

	return err
}

func (c *Controller) notify(pos *hooking.HookPos) error {
	err := c.InvokeHook(hooking.HookCtx{Domain: c, Pos: pos})

	var dispatchErr *hooking.DispatchError
	if errors.As(err, &dispatchErr) {
		for _, f := range dispatchErr.Failures {
			c.logger.Warn("subscriber failed",
				"signal", pos.Name, "subscriber", f.HookName(), "error", f.Err)
		}
	}

	c.logger.Info("game "+stateName(c.isPaused), "subscribers", c.NumHooks())

	return err
}

func stateName(paused bool) string {
	if paused {
		return "paused"
	}

	return "resumed"
}
