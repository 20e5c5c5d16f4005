package monitoring

import (
	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sarchlab/savestate/hooking"
)

// Metrics exports signal and operation counters in the Prometheus format. It
// is also a hook, so it can be attached to the save manager and the pause
// controller to count their signals.
type Metrics struct {
	registry   *prom.Registry
	signals    *prom.CounterVec
	operations *prom.CounterVec
	failures   *prom.CounterVec
}

// NewMetrics creates the metrics and registers them, together with the Go
// runtime and process collectors, into a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prom.NewRegistry(),
		signals: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "savestate",
			Name:      "signals_total",
			Help:      "Signals dispatched to subscribers",
		}, []string{"signal"}),
		operations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "savestate",
			Name:      "operations_total",
			Help:      "Save manager operations by outcome",
		}, []string{"operation", "result"}),
		failures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "savestate",
			Name:      "contributor_failures_total",
			Help:      "Contributors that failed to collect or restore",
		}, []string{"contributor"}),
	}

	m.registry.MustRegister(m.signals, m.operations, m.failures)
	m.registry.MustRegister(
		promcollect.NewGoCollector(),
		promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry holding all the metrics.
func (m *Metrics) Registry() *prom.Registry {
	return m.registry
}

// RegisterGauge exports a value that is read at scrape time.
func (m *Metrics) RegisterGauge(name, help string, f func() float64) {
	m.registry.MustRegister(prom.NewGaugeFunc(prom.GaugeOpts{
		Namespace: "savestate",
		Name:      name,
		Help:      help,
	}, f))
}

// Name returns the name of the hook.
func (m *Metrics) Name() string {
	return "Metrics"
}

// Func counts the signal.
func (m *Metrics) Func(ctx hooking.HookCtx) error {
	name := "unknown"
	if ctx.Pos != nil {
		name = ctx.Pos.Name
	}

	m.signals.WithLabelValues(name).Inc()

	return nil
}

// ObserveOperation records the outcome of a save manager operation and the
// contributors that failed during it.
func (m *Metrics) ObserveOperation(
	operation string,
	err error,
	failures []*hooking.HookError,
) {
	result := "success"
	switch {
	case err != nil:
		result = "error"
	case len(failures) > 0:
		result = "partial"
	}

	m.operations.WithLabelValues(operation, result).Inc()

	for _, f := range failures {
		m.failures.WithLabelValues(f.HookName()).Inc()
	}
}
