package sim

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/popsim/sim/model"
)

// recorder is a component that logs every callback it receives.
type recorder struct {
	id  model.ComponentID
	log *[]string
}

func (r *recorder) Init(*Context) error {
	*r.log = append(*r.log, "init "+r.id.Name)
	return nil
}

func (r *recorder) ExecutePlan(_ *Context, payload any) error {
	*r.log = append(*r.log, payload.(string))
	return nil
}

func (r *recorder) Close(*Context) error {
	*r.log = append(*r.log, "close "+r.id.Name)
	return nil
}

func newTestScheduler(t *testing.T, horizon float64, ids ...model.ComponentID) (*Scheduler, *[]string) {
	t.Helper()
	log := &[]string{}
	focus := NewFocusRegistry()
	for _, id := range ids {
		require.NoError(t, focus.Register(id, &recorder{id: id, log: log}))
	}
	return NewScheduler(focus, NewObservationSink(), horizon), log
}

// plansOnly strips lifecycle entries from a recorder log.
func plansOnly(log []string) []string {
	var out []string
	for _, s := range log {
		if !strings.HasPrefix(s, "init ") && !strings.HasPrefix(s, "close ") {
			out = append(out, s)
		}
	}
	return out
}

func TestScheduler_OrdersByTimeThenSchedulingOrder(t *testing.T) {
	x, y := model.Global("X"), model.Global("Y")
	s, log := newTestScheduler(t, 0, x, y)

	// GIVEN plans a@5 and b@5 for X, then c@2 for Y
	require.NoError(t, s.Schedule(x, 5.0, "a", "a"))
	require.NoError(t, s.Schedule(x, 5.0, "b", "b"))
	require.NoError(t, s.Schedule(y, 2.0, "c", "c"))

	// WHEN the run completes
	require.NoError(t, s.Run())

	// THEN c runs first, and a and b keep their scheduling order
	assert.Equal(t, []string{"c", "a", "b"}, plansOnly(*log))
	assert.Equal(t, 5.0, s.Time())
	assert.Equal(t, 3, s.Executed())
}

func TestScheduler_CancelRemovesPlan(t *testing.T) {
	x, y := model.Global("X"), model.Global("Y")
	s, log := newTestScheduler(t, 0, x, y)
	require.NoError(t, s.Schedule(x, 5.0, "a", "a"))
	require.NoError(t, s.Schedule(x, 5.0, "b", "b"))
	require.NoError(t, s.Schedule(y, 2.0, "c", "c"))

	// WHEN a is canceled before anything runs
	payload, ok := s.Cancel(x, "a")
	require.True(t, ok)
	assert.Equal(t, "a", payload)

	// THEN a second cancel reports not found, as does the wrong owner
	_, ok = s.Cancel(x, "a")
	assert.False(t, ok)
	_, ok = s.Cancel(y, "b")
	assert.False(t, ok)
	assert.Equal(t, 2, s.Pending())

	require.NoError(t, s.Run())
	assert.Equal(t, []string{"c", "b"}, plansOnly(*log))
}

func TestScheduler_RandomPlansRunInTimeThenSeqOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	ids := []model.ComponentID{model.Global("a"), model.Producer("b"), model.RegionComponent("c")}
	s, log := newTestScheduler(t, 0, ids...)

	type entry struct {
		time float64
		seq  int
		name string
	}
	var want []entry
	for i := 0; i < 500; i++ {
		tm := float64(rng.Intn(50))
		name := string(rune('A'+i%26)) + string(rune('0'+i%10)) + string(rune('a'+i/26%26))
		require.NoError(t, s.Schedule(ids[rng.Intn(len(ids))], tm, "", name))
		want = append(want, entry{tm, i, name})
	}
	sort.SliceStable(want, func(i, j int) bool { return want[i].time < want[j].time })

	require.NoError(t, s.Run())
	got := plansOnly(*log)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].name, got[i], "position %d", i)
	}
}

func TestScheduler_RandomScheduleCancelInterleavings(t *testing.T) {
	ids := []model.ComponentID{model.Global("a"), model.Producer("b"), model.RegionComponent("c")}
	type entry struct {
		time  float64
		seq   int
		owner model.ComponentID
		name  string
		live  bool
	}
	for seed := int64(1); seed <= 30; seed++ {
		rng := rand.New(rand.NewSource(seed))
		s, log := newTestScheduler(t, 0, ids...)

		// GIVEN a random mix of schedules and cancels, including repeats
		var issued []*entry
		for i := 0; i < 200; i++ {
			if len(issued) == 0 || rng.Float64() < 0.6 {
				e := &entry{
					time:  float64(rng.Intn(40)),
					seq:   i,
					owner: ids[rng.Intn(len(ids))],
					name:  "p" + strconv.Itoa(i),
					live:  true,
				}
				require.NoError(t, s.Schedule(e.owner, e.time, e.name, e.name))
				issued = append(issued, e)
				continue
			}
			e := issued[rng.Intn(len(issued))]
			payload, ok := s.Cancel(e.owner, e.name)
			require.Equal(t, e.live, ok, "seed %d: cancel %s", seed, e.name)
			if ok {
				assert.Equal(t, e.name, payload)
			}
			e.live = false
		}

		var want []*entry
		last := 0.0
		for _, e := range issued {
			if e.live {
				want = append(want, e)
				last = math.Max(last, e.time)
			}
		}
		sort.SliceStable(want, func(i, j int) bool { return want[i].time < want[j].time })
		require.Equal(t, len(want), s.Pending(), "seed %d", seed)

		// WHEN the run completes
		require.NoError(t, s.Run())

		// THEN the live plans ran in (time, seq) order and tombstones left no trace
		got := plansOnly(*log)
		require.Len(t, got, len(want), "seed %d", seed)
		for i := range want {
			assert.Equal(t, want[i].name, got[i], "seed %d position %d", seed, i)
		}
		assert.Equal(t, last, s.Time(), "seed %d: clock must stop at the last live plan", seed)
		assert.Equal(t, len(want), s.Executed())
	}
}

func TestScheduler_CanceledPlansDoNotMoveTheClock(t *testing.T) {
	x := model.Global("X")

	// GIVEN a@1, b@3, c@9 with the latest plan canceled
	s, log := newTestScheduler(t, 0, x)
	require.NoError(t, s.Schedule(x, 1, "a", "a"))
	require.NoError(t, s.Schedule(x, 3, "b", "b"))
	require.NoError(t, s.Schedule(x, 9, "c", "c"))
	_, ok := s.Cancel(x, "c")
	require.True(t, ok)

	// WHEN the run drains the queue
	require.NoError(t, s.Run())

	// THEN the tombstone at the head is dropped without advancing time
	assert.Equal(t, []string{"a", "b"}, plansOnly(*log))
	assert.Equal(t, 3.0, s.Time())

	// AND a queue holding only tombstones leaves the clock at zero
	s, log = newTestScheduler(t, 0, x)
	require.NoError(t, s.Schedule(x, 4, "d", "d"))
	_, ok = s.Cancel(x, "d")
	require.True(t, ok)
	require.NoError(t, s.Run())
	assert.Empty(t, plansOnly(*log))
	assert.Equal(t, 0.0, s.Time())
	assert.Equal(t, 0, s.Executed())
}

func TestScheduler_RejectsInvalidPlans(t *testing.T) {
	x := model.Global("X")
	s, _ := newTestScheduler(t, 0, x)

	require.NoError(t, s.Schedule(x, 1, "k", "k"))
	assert.True(t, errors.Is(s.Schedule(x, 2, "k", "k"), ErrDuplicatePlanKey))
	assert.True(t, errors.Is(s.Schedule(model.Global("nobody"), 1, "", nil), ErrUnknownComponent))
	assert.True(t, errors.Is(s.Schedule(x, math.NaN(), "", nil), ErrInvalidArgument))
	// anonymous plans never collide
	require.NoError(t, s.Schedule(x, 1, "", "anon1"))
	require.NoError(t, s.Schedule(x, 1, "", "anon2"))

	tm, ok := s.PlanTime(x, "k")
	assert.True(t, ok)
	assert.Equal(t, 1.0, tm)
	payload, ok := s.Plan(x, "k")
	assert.True(t, ok)
	assert.Equal(t, "k", payload)
	assert.Equal(t, []string{"k"}, s.PlanKeys(x))
	_, ok = s.Cancel(x, "")
	assert.False(t, ok)
}

func TestScheduler_PlanInPastIsRejectedDuringRun(t *testing.T) {
	x := model.Global("X")
	focus := NewFocusRegistry()
	var s *Scheduler
	var pastErr error
	require.NoError(t, focus.Register(x, &FuncComponent{
		OnPlan: func(_ *Context, payload any) error {
			if payload == "first" {
				pastErr = s.Schedule(x, 1, "", "late")
			}
			return nil
		},
	}))
	s = NewScheduler(focus, NewObservationSink(), 0)
	require.NoError(t, s.Schedule(x, 3, "", "first"))
	require.NoError(t, s.Run())
	assert.True(t, errors.Is(pastErr, ErrPlanInPast))
}

func TestScheduler_HorizonStopsBeforeLatePlans(t *testing.T) {
	x := model.Global("X")
	s, log := newTestScheduler(t, 10, x)
	require.NoError(t, s.Schedule(x, 10, "", "on-horizon"))
	require.NoError(t, s.Schedule(x, 10.5, "late", "late"))

	require.NoError(t, s.Run())
	assert.Equal(t, []string{"init X", "on-horizon", "close X"}, *log)
	assert.Equal(t, 10.0, s.Time())
	assert.Equal(t, 1, s.Pending())
}

func TestScheduler_HaltFinishesCurrentTurn(t *testing.T) {
	x := model.Global("X")
	focus := NewFocusRegistry()
	var s *Scheduler
	var ran []string
	require.NoError(t, focus.Register(x, &FuncComponent{
		OnPlan: func(_ *Context, payload any) error {
			ran = append(ran, payload.(string))
			if payload == "stop" {
				s.Halt()
			}
			return nil
		},
	}))
	s = NewScheduler(focus, NewObservationSink(), 0)
	for i, name := range []string{"go", "stop", "never"} {
		require.NoError(t, s.Schedule(x, float64(i), "", name))
	}
	require.NoError(t, s.Run())
	assert.Equal(t, []string{"go", "stop"}, ran)
	assert.True(t, s.Halted())
	assert.Equal(t, PhaseDone, s.Phase())
}

func TestScheduler_LifecycleOrderAndSingleRun(t *testing.T) {
	// GIVEN components registered out of kind order
	ids := []model.ComponentID{
		model.Producer("p"), model.CompartmentComponent("c"),
		model.Global("g1"), model.RegionComponent("r"), model.Global("g2"),
	}
	s, log := newTestScheduler(t, 0, ids...)
	var phases []Phase
	s.SetHooks(SchedulerHooks{Phase: func(p Phase) error {
		phases = append(phases, p)
		return nil
	}})

	require.NoError(t, s.Run())

	// THEN init and close follow kind order, stable within a kind
	assert.Equal(t, []string{
		"init g1", "init g2", "init r", "init c", "init p",
		"close g1", "close g2", "close r", "close c", "close p",
	}, *log)
	assert.Equal(t, []Phase{PhaseInit, PhaseRunning, PhaseClosing, PhaseDone}, phases)

	// THEN a second run is refused
	assert.True(t, errors.Is(s.Run(), ErrAlreadyRan))
}

func TestScheduler_CallbackErrorAbortsRun(t *testing.T) {
	x := model.Global("X")
	boom := errors.New("boom")
	focus := NewFocusRegistry()
	require.NoError(t, focus.Register(x, &FuncComponent{
		OnPlan: func(*Context, any) error { return boom },
	}))
	s := NewScheduler(focus, NewObservationSink(), 0)
	require.NoError(t, s.Schedule(x, 1, "k", nil))
	err := s.Run()
	assert.True(t, errors.Is(err, boom))
	_, held := focus.Focal()
	assert.False(t, held, "focus must be released after a failed turn")
}

func TestScheduler_DrainsObservationsAfterEachTurn(t *testing.T) {
	// GIVEN an observer subscribed to a target and a producer that emits twice
	obsID, prodID := model.Global("obs"), model.Producer("prod")
	focus := NewFocusRegistry()
	sink := NewObservationSink()
	var s *Scheduler
	var events []string
	require.NoError(t, focus.Register(obsID, &FuncComponent{
		OnObserve: func(_ *Context, o Observation) error {
			events = append(events, "observe "+o.Target)
			return nil
		},
	}))
	require.NoError(t, focus.Register(prodID, &FuncComponent{
		OnPlan: func(_ *Context, payload any) error {
			sink.Emit(Observation{Kind: ObserveAttribute, Target: "status"})
			sink.Emit(Observation{Kind: ObserveAttribute, Target: "status"})
			events = append(events, "plan "+payload.(string))
			return nil
		},
	}))
	sink.Subscribe(obsID, ObserveAttribute, "status")
	s = NewScheduler(focus, sink, 0)
	var delivered int
	s.SetHooks(SchedulerHooks{Delivery: func(model.ComponentID, Observation) { delivered++ }})
	require.NoError(t, s.Schedule(prodID, 1, "", "one"))
	require.NoError(t, s.Schedule(prodID, 2, "", "two"))

	require.NoError(t, s.Run())

	// THEN each turn's observations are delivered before the next plan
	assert.Equal(t, []string{
		"plan one", "observe status", "observe status",
		"plan two", "observe status", "observe status",
	}, events)
	assert.Equal(t, 4, delivered)
	assert.Equal(t, 0, sink.Pending())
}
