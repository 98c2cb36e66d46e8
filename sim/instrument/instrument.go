// Package instrument exports Prometheus metrics for a simulation run: the
// wall-clock cost of every component callback and gauges over the kernel's
// bookkeeping.
package instrument

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/inference-sim/popsim/sim"
	"github.com/inference-sim/popsim/sim/model"
)

const namespace = "popsim"

// Callback names used as the "callback" label.
const (
	CallbackInit    = "init"
	CallbackPlan    = "plan"
	CallbackObserve = "observe"
	CallbackClose   = "close"
)

// Metrics holds the collectors of one run. Create one per registry.
type Metrics struct {
	factory promauto.Factory

	// callbacks counts component callbacks.
	// Labels: component, callback
	callbacks *prometheus.CounterVec

	// failures counts callbacks that returned an error.
	// Labels: component, callback, reason (access_denied, no_focus, other)
	failures *prometheus.CounterVec

	// duration measures callback wall-clock time.
	// Labels: component, callback
	duration *prometheus.HistogramVec
}

// New registers the callback collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		factory: f,
		callbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "component",
			Name:      "callbacks_total",
			Help:      "Component callbacks executed",
		}, []string{"component", "callback"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "component",
			Name:      "callback_errors_total",
			Help:      "Component callbacks that returned an error",
		}, []string{"component", "callback", "reason"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "component",
			Name:      "callback_duration_seconds",
			Help:      "Wall-clock time spent in component callbacks",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"component", "callback"}),
	}
}

// Watch registers gauges that read env's kernel state at scrape time.
func (m *Metrics) Watch(env *sim.Environment) {
	gauge := func(name, help string, fn func() float64) {
		m.factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "kernel",
			Name:        name,
			Help:        help,
			ConstLabels: prometheus.Labels{"run_id": env.RunID()},
		}, fn)
	}
	gauge("sim_time", "Current simulated time", env.Time)
	gauge("population", "Live people", func() float64 { return float64(env.PopulationCount()) })
	gauge("pending_plans", "Plans queued and not canceled", func() float64 { return float64(env.PendingPlans()) })
	gauge("pending_observations", "Observations buffered for delivery", func() float64 { return float64(env.PendingObservations()) })
	gauge("indexes", "Live indexes", func() float64 { return float64(env.IndexCount()) })
	gauge("partitions", "Live partitions", func() float64 { return float64(env.PartitionCount()) })
	m.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "kernel",
		Name:        "plans_executed_total",
		Help:        "Plans executed so far",
		ConstLabels: prometheus.Labels{"run_id": env.RunID()},
	}, func() float64 { return float64(env.ExecutedPlans()) })
}

// Wrap is a sim.Decorator that times every callback of c. The result
// implements sim.Observer exactly when c does.
func (m *Metrics) Wrap(id model.ComponentID, c sim.Component) sim.Component {
	t := &timed{m: m, name: id.String(), inner: c}
	if obs, ok := c.(sim.Observer); ok {
		return &timedObserver{timed: t, obs: obs}
	}
	return t
}

func (m *Metrics) record(component, callback string, start time.Time, err error) {
	m.callbacks.WithLabelValues(component, callback).Inc()
	m.duration.WithLabelValues(component, callback).Observe(time.Since(start).Seconds())
	if err != nil {
		m.failures.WithLabelValues(component, callback, reason(err)).Inc()
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, sim.ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, sim.ErrNoFocus):
		return "no_focus"
	}
	return "other"
}

type timed struct {
	m     *Metrics
	name  string
	inner sim.Component
}

func (t *timed) Init(ctx *sim.Context) error {
	start := time.Now()
	err := t.inner.Init(ctx)
	t.m.record(t.name, CallbackInit, start, err)
	return err
}

func (t *timed) ExecutePlan(ctx *sim.Context, payload any) error {
	start := time.Now()
	err := t.inner.ExecutePlan(ctx, payload)
	t.m.record(t.name, CallbackPlan, start, err)
	return err
}

func (t *timed) Close(ctx *sim.Context) error {
	start := time.Now()
	err := t.inner.Close(ctx)
	t.m.record(t.name, CallbackClose, start, err)
	return err
}

type timedObserver struct {
	*timed
	obs sim.Observer
}

func (t *timedObserver) Observe(ctx *sim.Context, o sim.Observation) error {
	start := time.Now()
	err := t.obs.Observe(ctx, o)
	t.m.record(t.name, CallbackObserve, start, err)
	return err
}
