package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/popsim/sim/model"
)

// Phase is the lifecycle stage of a Scheduler.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseInit
	PhaseRunning
	PhaseClosing
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseInit:
		return "init"
	case PhaseRunning:
		return "running"
	case PhaseClosing:
		return "closing"
	case PhaseDone:
		return "done"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// PlanInfo describes a plan about to execute.
type PlanInfo struct {
	Owner model.ComponentID
	Key   string
	Time  float64
	Seq   uint64
}

// SchedulerHooks lets the owner of a Scheduler observe and extend a run.
// Every field is optional.
type SchedulerHooks struct {
	// Context builds the context handed to a component for its turn.
	Context func(id model.ComponentID) *Context
	// Phase runs on entry to every phase; an error aborts the run.
	Phase func(p Phase) error
	// Plan runs before a live plan executes, after the clock advanced.
	Plan func(info PlanInfo)
	// Delivery runs before an observation is handed to its recipient.
	Delivery func(recipient model.ComponentID, obs Observation)
}

type planRef struct {
	owner model.ComponentID
	key   string
}

// Scheduler owns simulated time and the queue of pending plans. It hands
// focus to one component per turn and drains the observation sink after
// every turn, before time can move again.
type Scheduler struct {
	clock    float64
	horizon  float64
	queue    *PlanQueue
	keyed    map[planRef]*plan
	nextSeq  uint64
	live     int
	executed int
	halted   bool
	started  bool
	phase    Phase

	focus *FocusRegistry
	sink  *ObservationSink
	hooks SchedulerHooks
}

// NewScheduler creates a scheduler at time 0. Plans due after horizon are
// never executed; horizon <= 0 means no horizon.
func NewScheduler(focus *FocusRegistry, sink *ObservationSink, horizon float64) *Scheduler {
	if horizon <= 0 {
		horizon = math.Inf(1)
	}
	return &Scheduler{
		horizon: horizon,
		queue:   NewPlanQueue(),
		keyed:   make(map[planRef]*plan),
		focus:   focus,
		sink:    sink,
	}
}

// SetHooks installs the environment callbacks. Call it before Run.
func (s *Scheduler) SetHooks(h SchedulerHooks) { s.hooks = h }

// Time returns the current simulated time.
func (s *Scheduler) Time() float64 { return s.clock }

func (s *Scheduler) Horizon() float64 { return s.horizon }
func (s *Scheduler) Phase() Phase     { return s.phase }

// Pending returns the number of live (not canceled) queued plans.
func (s *Scheduler) Pending() int { return s.live }

// Executed returns the number of plans executed so far.
func (s *Scheduler) Executed() int { return s.executed }

// Halted reports whether Halt was called.
func (s *Scheduler) Halted() bool { return s.halted }

// Schedule queues payload for owner at time t. A non-empty key makes the
// plan retrievable and cancelable and must be unique among owner's pending
// plans.
func (s *Scheduler) Schedule(owner model.ComponentID, t float64, key string, payload any) error {
	if _, ok := s.focus.Component(owner); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownComponent, owner)
	}
	if math.IsNaN(t) {
		return fmt.Errorf("%w: plan time is NaN", ErrInvalidArgument)
	}
	if t < s.clock {
		return fmt.Errorf("%w: %g < current time %g", ErrPlanInPast, t, s.clock)
	}
	ref := planRef{owner, key}
	if key != "" {
		if _, dup := s.keyed[ref]; dup {
			return fmt.Errorf("%w: %s already has a plan keyed %q", ErrDuplicatePlanKey, owner, key)
		}
	}
	p := &plan{owner: owner, key: key, time: t, seq: s.nextSeq, payload: payload}
	s.nextSeq++
	if key != "" {
		s.keyed[ref] = p
	}
	s.queue.schedule(p)
	s.live++
	return nil
}

// Cancel tombstones owner's plan keyed key and returns its payload. An
// unknown key reports false.
func (s *Scheduler) Cancel(owner model.ComponentID, key string) (any, bool) {
	if key == "" {
		return nil, false
	}
	ref := planRef{owner, key}
	p, ok := s.keyed[ref]
	if !ok {
		return nil, false
	}
	delete(s.keyed, ref)
	payload := p.payload
	p.payload = nil
	p.canceled = true
	s.live--
	return payload, true
}

// PlanTime returns when owner's plan keyed key is due.
func (s *Scheduler) PlanTime(owner model.ComponentID, key string) (float64, bool) {
	p, ok := s.keyed[planRef{owner, key}]
	if !ok {
		return 0, false
	}
	return p.time, true
}

// Plan returns the payload of owner's pending plan keyed key.
func (s *Scheduler) Plan(owner model.ComponentID, key string) (any, bool) {
	p, ok := s.keyed[planRef{owner, key}]
	if !ok {
		return nil, false
	}
	return p.payload, true
}

// PlanKeys returns the keys of owner's pending keyed plans, sorted.
func (s *Scheduler) PlanKeys(owner model.ComponentID) []string {
	var keys []string
	for ref := range s.keyed {
		if ref.owner == owner {
			keys = append(keys, ref.key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Halt stops the run before the next plan. The current turn and the
// observations it produced still complete.
func (s *Scheduler) Halt() { s.halted = true }

// Run initializes every component, executes plans in (time, sequence)
// order until the queue empties, the horizon passes or Halt is called, and
// then closes every component. The first callback error aborts the run.
// Run may be called only once.
func (s *Scheduler) Run() error {
	if s.started {
		return fmt.Errorf("%w", ErrAlreadyRan)
	}
	s.started = true
	order := s.focus.Ordered()
	logrus.Infof("[t=%g] Simulation starting with %d components, %d plans queued", s.clock, len(order), s.live)

	if err := s.enter(PhaseInit); err != nil {
		return err
	}
	for _, id := range order {
		c, _ := s.focus.Component(id)
		if err := s.turn(id, func(ctx *Context) error { return c.Init(ctx) }); err != nil {
			return fmt.Errorf("initializing %s: %w", id, err)
		}
		if err := s.drain(); err != nil {
			return err
		}
	}

	if err := s.enter(PhaseRunning); err != nil {
		return err
	}
	for !s.halted {
		p := s.queue.peek()
		if p == nil {
			break
		}
		if p.canceled {
			s.queue.popNext()
			continue
		}
		if p.time > s.horizon {
			logrus.Infof("[t=%g] Horizon %g reached with %d plans pending", s.clock, s.horizon, s.live)
			break
		}
		s.queue.popNext()
		if p.time < s.clock {
			panic(fmt.Sprintf("Clock went backwards: %g < %g", p.time, s.clock))
		}
		s.clock = p.time
		if p.key != "" {
			delete(s.keyed, planRef{p.owner, p.key})
		}
		s.live--
		s.executed++
		payload := p.payload
		p.payload = nil

		logrus.Debugf("[t=%g] Executing plan %q of %s", s.clock, p.key, p.owner)
		if s.hooks.Plan != nil {
			s.hooks.Plan(PlanInfo{Owner: p.owner, Key: p.key, Time: p.time, Seq: p.seq})
		}
		c, _ := s.focus.Component(p.owner)
		if err := s.turn(p.owner, func(ctx *Context) error { return c.ExecutePlan(ctx, payload) }); err != nil {
			return fmt.Errorf("[t=%g] plan %q of %s: %w", s.clock, p.key, p.owner, err)
		}
		if err := s.drain(); err != nil {
			return err
		}
	}
	if s.halted {
		logrus.Infof("[t=%g] Simulation halted with %d plans pending", s.clock, s.live)
	}

	if err := s.enter(PhaseClosing); err != nil {
		return err
	}
	for _, id := range order {
		c, _ := s.focus.Component(id)
		if err := s.turn(id, func(ctx *Context) error { return c.Close(ctx) }); err != nil {
			return fmt.Errorf("closing %s: %w", id, err)
		}
		if err := s.drain(); err != nil {
			return err
		}
	}
	if err := s.enter(PhaseDone); err != nil {
		return err
	}
	logrus.Infof("[t=%g] Simulation ended after %d plans", s.clock, s.executed)
	return nil
}

func (s *Scheduler) enter(p Phase) error {
	s.phase = p
	if s.hooks.Phase != nil {
		return s.hooks.Phase(p)
	}
	return nil
}

// turn gives id focus for the duration of fn.
func (s *Scheduler) turn(id model.ComponentID, fn func(ctx *Context) error) error {
	if err := s.focus.Focus(id); err != nil {
		return err
	}
	var ctx *Context
	if s.hooks.Context != nil {
		ctx = s.hooks.Context(id)
	}
	err := fn(ctx)
	if rerr := s.focus.Release(id); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// drain delivers buffered observations until none remain. Deliveries made
// during a delivery join the back of the queue.
func (s *Scheduler) drain() error {
	for {
		d, ok := s.sink.next()
		if !ok {
			return nil
		}
		c, _ := s.focus.Component(d.recipient)
		obs, ok := c.(Observer)
		if !ok {
			continue
		}
		if s.hooks.Delivery != nil {
			s.hooks.Delivery(d.recipient, d.obs)
		}
		if err := s.turn(d.recipient, func(ctx *Context) error { return obs.Observe(ctx, d.obs) }); err != nil {
			return fmt.Errorf("[t=%g] %s observing %s: %w", s.clock, d.recipient, d.obs.Kind, err)
		}
	}
}
