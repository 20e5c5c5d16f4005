package hooking

import (
	"fmt"
	"reflect"
	"strings"
)

// HookError records the failure of a single hook during one dispatch.
type HookError struct {
	Pos      *HookPos
	Hook     Hook
	Err      error
	Panicked bool
}

// HookName returns the name of the failing hook, falling back to its type.
func (e *HookError) HookName() string {
	return NameOf(e.Hook)
}

func (e *HookError) Error() string {
	verb := "failed"
	if e.Panicked {
		verb = "panicked"
	}

	return fmt.Sprintf("hook %s %s on %s: %v",
		e.HookName(), verb, posName(e.Pos), e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// DispatchError aggregates every hook failure of one InvokeHook call.
type DispatchError struct {
	Pos      *HookPos
	Failures []*HookError
}

func (e *DispatchError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}

	return fmt.Sprintf("%d hook(s) failed on %s: %s",
		len(e.Failures), posName(e.Pos), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *DispatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}

	return errs
}

type panicError struct {
	value any
}

func (e panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// NameOf returns the name of a hook if it implements Named, or its type name.
func NameOf(hook Hook) string {
	if n, ok := hook.(Named); ok {
		return n.Name()
	}

	return reflect.TypeOf(hook).String()
}

func posName(pos *HookPos) string {
	if pos == nil {
		return "<nil>"
	}

	return pos.Name
}
