package instrument

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/popsim/sim"
	"github.com/inference-sim/popsim/sim/model"
	"github.com/inference-sim/popsim/sim/store"
)

const status model.AttributeID = "status"

// sample returns the value of the series name{labels}: the counter or gauge
// value, or the sample count of a histogram.
func sample(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !hasLabels(m.GetLabel(), labels) {
				continue
			}
			switch {
			case m.Counter != nil:
				return m.GetCounter().GetValue()
			case m.Gauge != nil:
				return m.GetGauge().GetValue()
			case m.Histogram != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("no series %s%v", name, labels)
	return 0
}

func hasLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	found := 0
	for _, lp := range pairs {
		if v, ok := want[lp.GetName()]; ok {
			if v != lp.GetValue() {
				return false
			}
			found++
		}
	}
	return found == len(want)
}

// instrumentedScenario has a driver that flips one person's status at
// t=1,2,3 and a watcher observing the status attribute.
func instrumentedScenario(m *Metrics, planErr error) *sim.Scenario {
	var person model.PersonID
	driver := &sim.FuncComponent{
		OnInit: func(ctx *sim.Context) error {
			p, err := ctx.AddPerson("r", "c", nil)
			if err != nil {
				return err
			}
			person = p
			for i := 1; i <= 3; i++ {
				if err := ctx.SchedulePlan(float64(i), "", i); err != nil {
					return err
				}
			}
			return nil
		},
		OnPlan: func(ctx *sim.Context, payload any) error {
			if planErr != nil && payload.(int) == 2 {
				return planErr
			}
			return ctx.SetAttributeValue(person, status, model.Int(int64(payload.(int))))
		},
	}
	watcher := &sim.FuncComponent{
		OnInit: func(ctx *sim.Context) error {
			return ctx.Observe(sim.ObserveAttribute, string(status))
		},
		OnObserve: func(*sim.Context, sim.Observation) error { return nil },
	}
	return sim.NewScenario().
		AddRegion("r", nil).
		AddCompartment("c", nil).
		DefineAttribute(store.AttributeDef{ID: status, Kind: model.KindInt}).
		AddGlobal("driver", driver).
		AddGlobal("watcher", watcher).
		Decorate(m.Wrap)
}

func TestWrap_CountsEveryCallback(t *testing.T) {
	// GIVEN a scenario decorated with the metrics wrapper
	reg := prometheus.NewRegistry()
	m := New(reg)
	env, err := sim.NewEnvironment(sim.DefaultConfig(), instrumentedScenario(m, nil))
	require.NoError(t, err)
	m.Watch(env)

	// WHEN it runs to completion
	require.NoError(t, env.Run())

	// THEN every callback is counted under its component and callback
	const calls = "popsim_component_callbacks_total"
	driver := "global:driver"
	assert.Equal(t, 1.0, sample(t, reg, calls, map[string]string{"component": driver, "callback": CallbackInit}))
	assert.Equal(t, 3.0, sample(t, reg, calls, map[string]string{"component": driver, "callback": CallbackPlan}))
	assert.Equal(t, 1.0, sample(t, reg, calls, map[string]string{"component": driver, "callback": CallbackClose}))
	assert.Equal(t, 3.0, sample(t, reg, calls, map[string]string{"component": "global:watcher", "callback": CallbackObserve}))
	assert.Equal(t, 3.0, sample(t, reg, "popsim_component_callback_duration_seconds",
		map[string]string{"component": driver, "callback": CallbackPlan}))

	// AND the kernel gauges read the finished environment
	assert.Equal(t, 3.0, sample(t, reg, "popsim_kernel_plans_executed_total", nil))
	assert.Equal(t, 1.0, sample(t, reg, "popsim_kernel_population", nil))
	assert.Equal(t, 3.0, sample(t, reg, "popsim_kernel_sim_time", nil))
	assert.Equal(t, 0.0, sample(t, reg, "popsim_kernel_pending_plans", nil))
}

func TestWrap_PreservesObserver(t *testing.T) {
	m := New(prometheus.NewRegistry())
	plain := m.Wrap(model.Global("a"), &struct{ sim.Component }{&sim.FuncComponent{}})
	_, isObserver := plain.(sim.Observer)
	assert.False(t, isObserver, "a component without Observe must not gain one")

	observing := m.Wrap(model.Global("b"), &sim.FuncComponent{})
	_, isObserver = observing.(sim.Observer)
	assert.True(t, isObserver)
}

func TestWrap_CountsFailuresByReason(t *testing.T) {
	boom := errors.New("boom")
	reg := prometheus.NewRegistry()
	m := New(reg)
	env, err := sim.NewEnvironment(sim.DefaultConfig(), instrumentedScenario(m, boom))
	require.NoError(t, err)

	err = env.Run()
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 1.0, sample(t, reg, "popsim_component_callback_errors_total",
		map[string]string{"component": "global:driver", "callback": CallbackPlan, "reason": "other"}))
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{sim.ErrAccessDenied, "access_denied"},
		{errors.Join(errors.New("x"), sim.ErrNoFocus), "no_focus"},
		{errors.New("x"), "other"},
	}
	for _, tc := range tests {
		if got := reason(tc.err); got != tc.want {
			t.Errorf("reason(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
