package sim

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/popsim/sim/model"
	"github.com/inference-sim/popsim/sim/population"
	"github.com/inference-sim/popsim/sim/store"
	"github.com/inference-sim/popsim/sim/trace"
)

type componentEntry struct {
	id model.ComponentID
	c  Component
}

// Scenario declares the components and the state schema an Environment is
// built from. Regions and compartments are components themselves.
type Scenario struct {
	components   []componentEntry
	regions      []model.RegionID
	compartments []model.CompartmentID
	attributes   []store.AttributeDef
	resources    []model.ResourceID
	groupTypes   []model.GroupTypeID
	decorators   []Decorator
}

// Decorator wraps a component before it is registered, for example to time
// its callbacks. The returned component replaces c.
type Decorator func(id model.ComponentID, c Component) Component

func NewScenario() *Scenario {
	return &Scenario{}
}

func (s *Scenario) AddGlobal(name string, c Component) *Scenario {
	s.components = append(s.components, componentEntry{model.Global(name), c})
	return s
}

// AddRegion declares region r. c may be nil for a region without behavior.
func (s *Scenario) AddRegion(r model.RegionID, c Component) *Scenario {
	if c == nil {
		c = &FuncComponent{}
	}
	s.regions = append(s.regions, r)
	s.components = append(s.components, componentEntry{model.RegionComponent(r), c})
	return s
}

// AddCompartment declares compartment id. c may be nil for a compartment
// without behavior.
func (s *Scenario) AddCompartment(id model.CompartmentID, c Component) *Scenario {
	if c == nil {
		c = &FuncComponent{}
	}
	s.compartments = append(s.compartments, id)
	s.components = append(s.components, componentEntry{model.CompartmentComponent(id), c})
	return s
}

func (s *Scenario) AddProducer(name string, c Component) *Scenario {
	s.components = append(s.components, componentEntry{model.Producer(name), c})
	return s
}

func (s *Scenario) DefineAttribute(def store.AttributeDef) *Scenario {
	s.attributes = append(s.attributes, def)
	return s
}

func (s *Scenario) DefineResource(r model.ResourceID) *Scenario {
	s.resources = append(s.resources, r)
	return s
}

func (s *Scenario) DefineGroupType(t model.GroupTypeID) *Scenario {
	s.groupTypes = append(s.groupTypes, t)
	return s
}

// Decorate applies d to every component when the environment is built.
// Decorators run in the order they were added.
func (s *Scenario) Decorate(d Decorator) *Scenario {
	s.decorators = append(s.decorators, d)
	return s
}

// Environment is one simulation: the kernel (scheduler, focus, access
// guard, observation sink, index registry) wired to the state stores.
// Components reach it only through the Context handed to each turn.
type Environment struct {
	cfg   Config
	runID string

	guard *AccessGuard
	focus *FocusRegistry
	sched *Scheduler
	sink  *ObservationSink
	rng   *PartitionedRNG
	trace *trace.SimulationTrace

	alive      []bool
	population int
	attrs      *store.Attributes
	locs       *store.Locations
	groups     *store.Groups
	res        *store.Resources
	src        kernelSource
	registry   *indexRegistry
	contexts   map[model.ComponentID]*Context
}

// NewEnvironment validates cfg and builds an environment for sc. The
// environment is locked until Run starts.
func NewEnvironment(cfg Config, sc *Scenario) (*Environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if sc == nil {
		return nil, fmt.Errorf("%w: scenario is nil", ErrInvalidArgument)
	}
	env := &Environment{
		cfg:      cfg,
		runID:    uuid.NewString(),
		guard:    NewAccessGuard(),
		focus:    NewFocusRegistry(),
		sink:     NewObservationSink(),
		rng:      NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
		attrs:    store.NewAttributes(),
		locs:     store.NewLocations(),
		groups:   store.NewGroups(),
		res:      store.NewResources(),
		registry: newIndexRegistry(),
		contexts: make(map[model.ComponentID]*Context),
	}
	env.src = kernelSource{env}
	env.trace = trace.NewSimulationTrace(trace.TraceConfig{Level: cfg.Trace, RunID: env.runID})

	for _, e := range sc.components {
		c := e.c
		for _, d := range sc.decorators {
			c = d(e.id, c)
		}
		if err := env.focus.Register(e.id, c); err != nil {
			return nil, err
		}
	}
	for _, r := range sc.regions {
		if err := env.locs.DefineRegion(r); err != nil {
			return nil, err
		}
	}
	for _, c := range sc.compartments {
		if err := env.locs.DefineCompartment(c); err != nil {
			return nil, err
		}
	}
	for _, def := range sc.attributes {
		if err := env.attrs.Define(def); err != nil {
			return nil, err
		}
	}
	for _, r := range sc.resources {
		if err := env.res.Define(r); err != nil {
			return nil, err
		}
	}
	for _, t := range sc.groupTypes {
		if err := env.groups.DefineType(t); err != nil {
			return nil, err
		}
	}

	env.sched = NewScheduler(env.focus, env.sink, cfg.Horizon)
	env.sched.SetHooks(SchedulerHooks{
		Context:  env.contextFor,
		Phase:    env.enterPhase,
		Plan:     env.recordPlan,
		Delivery: env.recordDelivery,
	})
	if err := env.guard.LockGlobalRead(); err != nil {
		return nil, err
	}
	if err := env.guard.LockGlobalWrite(); err != nil {
		return nil, err
	}
	logrus.Debugf("environment %s built with %d components", env.runID, len(sc.components))
	return env, nil
}

// Run executes the simulation. It may be called only once.
func (env *Environment) Run() error {
	logrus.Infof("run %s (seed=%d)", env.runID, env.cfg.Seed)
	return env.sched.Run()
}

// enterPhase opens the environment for the lifecycle callbacks, bars writes
// while components close, and bars everything once the run is over.
func (env *Environment) enterPhase(p Phase) error {
	switch p {
	case PhaseInit:
		if err := env.guard.UnlockGlobalWrite(); err != nil {
			return err
		}
		return env.guard.UnlockGlobalRead()
	case PhaseClosing:
		return env.guard.LockGlobalWrite()
	case PhaseDone:
		return env.guard.LockGlobalRead()
	}
	return nil
}

func (env *Environment) contextFor(id model.ComponentID) *Context {
	ctx, ok := env.contexts[id]
	if !ok {
		ctx = &Context{env: env, self: id}
		env.contexts[id] = ctx
	}
	return ctx
}

func (env *Environment) recordPlan(info PlanInfo) {
	env.trace.RecordPlan(trace.PlanRecord{
		Time:  info.Time,
		Owner: info.Owner.String(),
		Key:   info.Key,
		Seq:   info.Seq,
	})
}

func (env *Environment) recordDelivery(recipient model.ComponentID, obs Observation) {
	env.trace.RecordDelivery(trace.DeliveryRecord{
		Time:      obs.Time,
		Recipient: recipient.String(),
		Kind:      obs.Kind.String(),
		Target:    obs.Target,
		Person:    int(obs.Person),
	})
}

func (env *Environment) recordSwitch(key string, partition bool) population.SwitchFunc {
	return func(to population.Representation, size, n int) {
		env.trace.RecordSwitch(trace.SwitchRecord{
			Time:           env.sched.Time(),
			Index:          key,
			Partition:      partition,
			Representation: string(to),
			Size:           size,
			Population:     n,
		})
	}
}

// The accessors below read kernel bookkeeping without going through the
// access guard; they are for drivers and instrumentation, not components.

func (env *Environment) RunID() string                 { return env.runID }
func (env *Environment) Config() Config                { return env.cfg }
func (env *Environment) Time() float64                 { return env.sched.Time() }
func (env *Environment) Phase() Phase                  { return env.sched.Phase() }
func (env *Environment) PopulationCount() int          { return env.population }
func (env *Environment) PendingPlans() int             { return env.sched.Pending() }
func (env *Environment) ExecutedPlans() int            { return env.sched.Executed() }
func (env *Environment) PendingObservations() int      { return env.sink.Pending() }
func (env *Environment) IndexCount() int               { return env.registry.indexCount() }
func (env *Environment) PartitionCount() int           { return env.registry.partitionCount() }
func (env *Environment) Trace() *trace.SimulationTrace { return env.trace }
