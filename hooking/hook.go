// Package hooking is the notification bus shared by the save manager and the
// pause controller. A Hookable owns an ordered list of hooks and invokes them
// synchronously, one after another, each time it raises a signal.
package hooking

// HookPos defines the enum of possible hooking positions.
type HookPos struct {
	Name string
}

// HookPosCollect asks every hook to write its state into the fragment map
// carried by HookCtx.Item.
var HookPosCollect = &HookPos{Name: "Collect"}

// HookPosRestore asks every hook to read its state back from the fragment
// map carried by HookCtx.Item.
var HookPosRestore = &HookPos{Name: "Restore"}

// HookPosPause is raised once when the game transitions into the paused state.
var HookPosPause = &HookPos{Name: "Pause"}

// HookPosResume is raised once when the game leaves the paused state.
var HookPosResume = &HookPos{Name: "Resume"}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable defines an object that accept Hooks.
type Hookable interface {
	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks registered.
	NumHooks() int

	// Hooks returns all the hooks registered.
	Hooks() []Hook
}

// Hook is a short piece of program that can be invoked by a hookable object.
// Hooks must be comparable (typically pointers) so that duplicated
// registrations can be detected.
type Hook interface {
	// Func determines what to do if hook is invoked. A returned error does not
	// stop the hooks registered after this one.
	Func(ctx HookCtx) error
}

// Named is implemented by hooks that can report a human readable name. It is
// used to identify hooks in errors and logs.
type Named interface {
	Name() string
}

type hookFunc struct {
	name string
	f    func(ctx HookCtx) error
}

// NewHookFunc wraps a plain function into a Hook.
func NewHookFunc(name string, f func(ctx HookCtx) error) Hook {
	return &hookFunc{name: name, f: f}
}

func (h *hookFunc) Name() string {
	return h.name
}

func (h *hookFunc) Func(ctx HookCtx) error {
	return h.f(ctx)
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface.
type HookableBase struct {
	hookList []Hook
}

// NumHooks returns the number of hooks registered.
func (h *HookableBase) NumHooks() int {
	return len(h.hookList)
}

// Hooks returns all the hooks registered.
func (h *HookableBase) Hooks() []Hook {
	return h.hookList
}

// AcceptHook register a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.mustNotHaveDuplicatedHook(hook)
	h.hookList = append(h.hookList, hook)
}

func (h *HookableBase) mustNotHaveDuplicatedHook(hook Hook) {
	for _, h := range h.hookList {
		if h == hook {
			panic("duplicated hook")
		}
	}
}

// InvokeHook triggers the registered hooks in registration order. Every hook
// runs even if an earlier one fails or panics. The failures are returned as a
// *DispatchError; the result is nil if all hooks succeeded.
func (h *HookableBase) InvokeHook(ctx HookCtx) error {
	var failures []*HookError

	for _, hook := range h.hookList {
		if hookErr := invokeIsolated(hook, ctx); hookErr != nil {
			failures = append(failures, hookErr)
		}
	}

	if len(failures) == 0 {
		return nil
	}

	return &DispatchError{Pos: ctx.Pos, Failures: failures}
}

func invokeIsolated(hook Hook, ctx HookCtx) (hookErr *HookError) {
	defer func() {
		if r := recover(); r != nil {
			hookErr = &HookError{
				Pos:      ctx.Pos,
				Hook:     hook,
				Err:      panicError{value: r},
				Panicked: true,
			}
		}
	}()

	if err := hook.Func(ctx); err != nil {
		return &HookError{Pos: ctx.Pos, Hook: hook, Err: err}
	}

	return nil
}
