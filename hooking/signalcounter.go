package hooking

// SignalCounter is a hook that counts how many times each signal has been
// raised on the hookables it is attached to.
type SignalCounter struct {
	names []string
	count map[string]uint64
}

// NewSignalCounter creates a new SignalCounter.
func NewSignalCounter() *SignalCounter {
	return &SignalCounter{
		count: make(map[string]uint64),
	}
}

// Name returns the name of the hook.
func (c *SignalCounter) Name() string {
	return "SignalCounter"
}

// Func counts the signal.
func (c *SignalCounter) Func(ctx HookCtx) error {
	name := posName(ctx.Pos)

	if _, ok := c.count[name]; !ok {
		c.names = append(c.names, name)
	}

	c.count[name]++

	return nil
}

// SignalNames returns the names of all the signals observed, in the order
// they were first seen.
func (c *SignalCounter) SignalNames() []string {
	return c.names
}

// Count returns the number of times the signal at the given position has been
// observed.
func (c *SignalCounter) Count(pos *HookPos) uint64 {
	return c.count[posName(pos)]
}
