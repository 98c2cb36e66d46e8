package sim

import (
	"fmt"
	"math/rand"

	"github.com/inference-sim/popsim/sim/filter"
	"github.com/inference-sim/popsim/sim/model"
	"github.com/inference-sim/popsim/sim/population"
)

// Context is a component's handle on the environment, bound to the
// component's identity. Every operation goes through the access guard;
// mutations additionally require the bound component to hold focus.
//
// A Context is only valid inside the callback it was passed to.
type Context struct {
	env  *Environment
	self model.ComponentID
}

// Self returns the component this context is bound to.
func (c *Context) Self() model.ComponentID { return c.self }

// Time returns the current simulated time.
func (c *Context) Time() float64 { return c.env.sched.Time() }

// Random returns the calling component's own random stream.
func (c *Context) Random() *rand.Rand { return c.env.rng.ForComponent(c.self) }

func (c *Context) read(fn func() error) error {
	if err := c.env.guard.AcquireRead(); err != nil {
		return err
	}
	defer func() { _ = c.env.guard.ReleaseRead() }()
	return fn()
}

func (c *Context) write(fn func() error) error {
	if err := c.env.focus.Require(c.self); err != nil {
		return err
	}
	if err := c.env.guard.AcquireWrite(); err != nil {
		return err
	}
	defer func() { _ = c.env.guard.ReleaseWrite() }()
	return fn()
}

// === Plans ===

// SchedulePlan queues payload for this component at time t. An empty key
// makes the plan anonymous: it cannot be looked up or canceled.
func (c *Context) SchedulePlan(t float64, key string, payload any) error {
	return c.write(func() error {
		return c.env.sched.Schedule(c.self, t, key, payload)
	})
}

// CancelPlan cancels this component's plan keyed key and returns its
// payload. Canceling an unknown key reports false, not an error.
func (c *Context) CancelPlan(key string) (any, bool, error) {
	var payload any
	var found bool
	err := c.write(func() error {
		payload, found = c.env.sched.Cancel(c.self, key)
		return nil
	})
	return payload, found, err
}

// PlanTime returns when this component's plan keyed key is due.
func (c *Context) PlanTime(key string) (float64, bool, error) {
	var t float64
	var found bool
	err := c.read(func() error {
		t, found = c.env.sched.PlanTime(c.self, key)
		return nil
	})
	return t, found, err
}

// PlanKeys returns this component's pending plan keys, sorted.
func (c *Context) PlanKeys() ([]string, error) {
	var keys []string
	err := c.read(func() error {
		keys = c.env.sched.PlanKeys(c.self)
		return nil
	})
	return keys, err
}

// Halt stops the simulation once the current turn and its observations
// have been processed.
func (c *Context) Halt() error {
	return c.write(func() error {
		c.env.sched.Halt()
		return nil
	})
}

// === People ===

// AddPerson creates a person in region r and compartment cmp. Attributes
// not listed in initial start at their defaults.
func (c *Context) AddPerson(r model.RegionID, cmp model.CompartmentID, initial map[model.AttributeID]model.Value) (model.PersonID, error) {
	p := model.NoPerson
	err := c.write(func() error {
		var err error
		p, err = c.env.addPerson(r, cmp, initial)
		return err
	})
	return p, err
}

func (c *Context) RemovePerson(p model.PersonID) error {
	return c.write(func() error { return c.env.removePerson(p) })
}

func (c *Context) PersonExists(p model.PersonID) (bool, error) {
	var ok bool
	err := c.read(func() error {
		ok = c.env.src.PersonExists(p)
		return nil
	})
	return ok, err
}

func (c *Context) PopulationCount() (int, error) {
	var n int
	err := c.read(func() error {
		n = c.env.population
		return nil
	})
	return n, err
}

// === Attributes ===

func (c *Context) AttributeValue(p model.PersonID, a model.AttributeID) (model.Value, error) {
	var v model.Value
	err := c.read(func() error {
		if err := c.env.requirePerson(p); err != nil {
			return err
		}
		var err error
		v, err = c.env.attrs.Value(p, a)
		return storeErr(err)
	})
	return v, err
}

func (c *Context) SetAttributeValue(p model.PersonID, a model.AttributeID, v model.Value) error {
	return c.write(func() error { return c.env.setAttribute(p, a, v) })
}

// AttributeTime returns when p's attribute a was last assigned. The
// attribute must be defined with TrackTimes.
func (c *Context) AttributeTime(p model.PersonID, a model.AttributeID) (float64, error) {
	var t float64
	err := c.read(func() error {
		if err := c.env.requirePerson(p); err != nil {
			return err
		}
		var err error
		t, err = c.env.attrs.AssignmentTime(p, a)
		return storeErr(err)
	})
	return t, err
}

// === Locations ===

func (c *Context) PersonRegion(p model.PersonID) (model.RegionID, error) {
	var r model.RegionID
	err := c.read(func() error {
		if err := c.env.requirePerson(p); err != nil {
			return err
		}
		r = c.env.locs.RegionOf(p)
		return nil
	})
	return r, err
}

// RegionArrivalTime returns when p entered its current region.
func (c *Context) RegionArrivalTime(p model.PersonID) (float64, error) {
	var t float64
	err := c.read(func() error {
		if err := c.env.requirePerson(p); err != nil {
			return err
		}
		t = c.env.locs.RegionArrivalTime(p)
		return nil
	})
	return t, err
}

func (c *Context) SetPersonRegion(p model.PersonID, r model.RegionID) error {
	return c.write(func() error { return c.env.moveRegion(p, r) })
}

func (c *Context) RegionPopulation(r model.RegionID) (int, error) {
	var n int
	err := c.read(func() error {
		if !c.env.locs.KnownRegion(r) {
			return fmt.Errorf("%w: region %q", ErrUnknownIdentifier, r)
		}
		n = c.env.locs.CountInRegion(r)
		return nil
	})
	return n, err
}

func (c *Context) PersonCompartment(p model.PersonID) (model.CompartmentID, error) {
	var cmp model.CompartmentID
	err := c.read(func() error {
		if err := c.env.requirePerson(p); err != nil {
			return err
		}
		cmp = c.env.locs.CompartmentOf(p)
		return nil
	})
	return cmp, err
}

func (c *Context) SetPersonCompartment(p model.PersonID, cmp model.CompartmentID) error {
	return c.write(func() error { return c.env.moveCompartment(p, cmp) })
}

func (c *Context) CompartmentPopulation(cmp model.CompartmentID) (int, error) {
	var n int
	err := c.read(func() error {
		if !c.env.locs.KnownCompartment(cmp) {
			return fmt.Errorf("%w: compartment %q", ErrUnknownIdentifier, cmp)
		}
		n = c.env.locs.CountInCompartment(cmp)
		return nil
	})
	return n, err
}

// === Resources ===

func (c *Context) ResourceLevel(p model.PersonID, r model.ResourceID) (int64, error) {
	var level int64
	err := c.read(func() error {
		if err := c.env.requirePerson(p); err != nil {
			return err
		}
		if !c.env.res.Known(r) {
			return fmt.Errorf("%w: resource %q", ErrUnknownIdentifier, r)
		}
		level = c.env.res.Level(p, r)
		return nil
	})
	return level, err
}

// AddResource gives p amount (> 0) more of r.
func (c *Context) AddResource(p model.PersonID, r model.ResourceID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: resource amount must be > 0, got %d", ErrInvalidArgument, amount)
	}
	return c.write(func() error { return c.env.changeResource(p, r, amount) })
}

// RemoveResource takes amount (> 0) of r from p. Taking more than p holds
// is an error.
func (c *Context) RemoveResource(p model.PersonID, r model.ResourceID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: resource amount must be > 0, got %d", ErrInvalidArgument, amount)
	}
	return c.write(func() error { return c.env.changeResource(p, r, -amount) })
}

// === Groups ===

func (c *Context) AddGroup(t model.GroupTypeID) (model.GroupID, error) {
	var g model.GroupID
	err := c.write(func() error {
		var err error
		g, err = c.env.addGroup(t)
		return err
	})
	return g, err
}

// RemoveGroup deletes g; each former member is re-routed as if removed
// from the group.
func (c *Context) RemoveGroup(g model.GroupID) error {
	return c.write(func() error { return c.env.removeGroup(g) })
}

func (c *Context) AddPersonToGroup(p model.PersonID, g model.GroupID) error {
	return c.write(func() error { return c.env.addToGroup(p, g) })
}

func (c *Context) RemovePersonFromGroup(p model.PersonID, g model.GroupID) error {
	return c.write(func() error { return c.env.removeFromGroup(p, g) })
}

func (c *Context) GroupMembers(g model.GroupID) ([]model.PersonID, error) {
	var out []model.PersonID
	err := c.read(func() error {
		if !c.env.groups.Known(g) {
			return fmt.Errorf("%w: group %d", ErrUnknownIdentifier, g)
		}
		out = c.env.groups.Members(g)
		return nil
	})
	return out, err
}

func (c *Context) GroupsForPerson(p model.PersonID) ([]model.GroupID, error) {
	var out []model.GroupID
	err := c.read(func() error {
		if err := c.env.requirePerson(p); err != nil {
			return err
		}
		out = c.env.groups.GroupsFor(p)
		return nil
	})
	return out, err
}

// === Queries ===

// Select returns the people matching f in id order, using the planner.
func (c *Context) Select(f *filter.Filter) ([]model.PersonID, error) {
	var out []model.PersonID
	err := c.read(func() error {
		if err := c.validateFilter(f); err != nil {
			return err
		}
		out = filter.NewPlanner(c.env.src).Materialize(f)
		return nil
	})
	return out, err
}

// Matches reports whether p currently satisfies f.
func (c *Context) Matches(p model.PersonID, f *filter.Filter) (bool, error) {
	var ok bool
	err := c.read(func() error {
		if err := c.env.requirePerson(p); err != nil {
			return err
		}
		if err := c.validateFilter(f); err != nil {
			return err
		}
		ok = filter.Evaluate(f, c.env.src, p)
		return nil
	})
	return ok, err
}

func (c *Context) validateFilter(f *filter.Filter) error {
	if f == nil {
		return fmt.Errorf("%w: filter is nil", ErrInvalidFilter)
	}
	if err := filter.Validate(f, c.env.src); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	return nil
}

// === Indexes ===

// AddIndex creates a live index of the people matching f under key, owned
// by this component. The index is seeded immediately.
func (c *Context) AddIndex(key string, f *filter.Filter) error {
	return c.write(func() error {
		if f == nil {
			return fmt.Errorf("%w: index %q has no filter", ErrInvalidFilter, key)
		}
		if err := filter.Validate(f, c.env.src); err != nil {
			return fmt.Errorf("%w: index %q: %w", ErrInvalidFilter, key, err)
		}
		ix := population.NewIndex(c.self, f, c.env.src, c.env.cfg.Index)
		ix.OnSwitch(c.env.recordSwitch(key, false))
		if _, err := c.env.registry.addIndex(key, ix); err != nil {
			return err
		}
		ix.Initialize()
		return nil
	})
}

// RemoveIndex deletes an index this component owns.
func (c *Context) RemoveIndex(key string) error {
	return c.write(func() error { return c.env.registry.removeIndex(key, c.self) })
}

func (c *Context) index(key string) (*population.Index, error) {
	e, err := c.env.registry.index(key)
	if err != nil {
		return nil, err
	}
	return e.index, nil
}

func (c *Context) IndexSize(key string) (int, error) {
	var n int
	err := c.read(func() error {
		ix, err := c.index(key)
		if err != nil {
			return err
		}
		n = ix.Size()
		return nil
	})
	return n, err
}

func (c *Context) IndexContains(key string, p model.PersonID) (bool, error) {
	var ok bool
	err := c.read(func() error {
		ix, err := c.index(key)
		if err != nil {
			return err
		}
		ok = ix.Contains(p)
		return nil
	})
	return ok, err
}

// IndexMembers returns the index members in id order.
func (c *Context) IndexMembers(key string) ([]model.PersonID, error) {
	var out []model.PersonID
	err := c.read(func() error {
		ix, err := c.index(key)
		if err != nil {
			return err
		}
		out = sortedPeople(ix.Members())
		return nil
	})
	return out, err
}

// RandomIndexMember draws a uniform member other than exclude (pass
// model.NoPerson to exclude nobody). ok is false when no member qualifies.
func (c *Context) RandomIndexMember(key string, exclude model.PersonID) (model.PersonID, bool, error) {
	p, found := model.NoPerson, false
	err := c.read(func() error {
		ix, err := c.index(key)
		if err != nil {
			return err
		}
		p, found = ix.Random(c.env.rng.ForSubsystem(SubsystemIndexes), exclude)
		return nil
	})
	return p, found, err
}

// === Partitions ===

// AddPartition creates a partition under key, owned by this component.
func (c *Context) AddPartition(key string, def population.Definition) error {
	return c.write(func() error {
		if err := def.Validate(c.env.src); err != nil {
			return fmt.Errorf("%w: partition %q: %w", ErrInvalidPartition, key, err)
		}
		pt := population.NewPartition(c.self, def, c.env.src, c.env.cfg.Index)
		pt.OnSwitch(c.env.recordSwitch(key, true))
		if err := pt.Initialize(); err != nil {
			return fmt.Errorf("%w: partition %q: %w", ErrInvalidPartition, key, err)
		}
		_, err := c.env.registry.addPartition(key, pt)
		return err
	})
}

// RemovePartition deletes a partition this component owns.
func (c *Context) RemovePartition(key string) error {
	return c.write(func() error { return c.env.registry.removePartition(key, c.self) })
}

func (c *Context) partition(key string) (*population.Partition, error) {
	e, err := c.env.registry.partition(key)
	if err != nil {
		return nil, err
	}
	return e.partition, nil
}

// PartitionSize counts the people in buckets selected by q (nil selects all).
func (c *Context) PartitionSize(key string, q *population.Query) (int, error) {
	var n int
	err := c.read(func() error {
		pt, err := c.partition(key)
		if err != nil {
			return err
		}
		n, err = pt.QuerySize(q)
		return partitionQueryErr(key, err)
	})
	return n, err
}

func (c *Context) PartitionContains(key string, p model.PersonID, q *population.Query) (bool, error) {
	var ok bool
	err := c.read(func() error {
		pt, err := c.partition(key)
		if err != nil {
			return err
		}
		ok, err = pt.QueryContains(p, q)
		return partitionQueryErr(key, err)
	})
	return ok, err
}

// PartitionMembers returns the people in buckets selected by q, in id order.
func (c *Context) PartitionMembers(key string, q *population.Query) ([]model.PersonID, error) {
	var out []model.PersonID
	err := c.read(func() error {
		pt, err := c.partition(key)
		if err != nil {
			return err
		}
		out, err = pt.QueryMembers(q)
		out = sortedPeople(out)
		return partitionQueryErr(key, err)
	})
	return out, err
}

// RandomPartitionMember draws uniformly from the people selected by q other
// than exclude.
func (c *Context) RandomPartitionMember(key string, q *population.Query, exclude model.PersonID) (model.PersonID, bool, error) {
	p, found := model.NoPerson, false
	err := c.read(func() error {
		pt, err := c.partition(key)
		if err != nil {
			return err
		}
		p, found, err = pt.QueryRandom(c.env.rng.ForSubsystem(SubsystemPartitions), q, exclude)
		return partitionQueryErr(key, err)
	})
	return p, found, err
}

// PartitionLabels returns p's labels in dimension order (region,
// compartment, attributes, resources, group types, as defined).
func (c *Context) PartitionLabels(key string, p model.PersonID) ([]any, bool, error) {
	var labels []any
	var found bool
	err := c.read(func() error {
		pt, err := c.partition(key)
		if err != nil {
			return err
		}
		labels, found = pt.Labels(p)
		return nil
	})
	return labels, found, err
}

func partitionQueryErr(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: partition %q: %w", ErrInvalidPartition, key, err)
}

// === Observations ===

// Observe subscribes this component to kind at target; an empty target
// matches every target. The component must implement Observer.
func (c *Context) Observe(kind ObservationKind, target string) error {
	return c.write(func() error {
		comp, _ := c.env.focus.Component(c.self)
		if _, ok := comp.(Observer); !ok {
			return fmt.Errorf("%w: %s does not implement Observer", ErrInvalidArgument, c.self)
		}
		c.env.sink.Subscribe(c.self, kind, target)
		return nil
	})
}

// StopObserving cancels a subscription made with Observe.
func (c *Context) StopObserving(kind ObservationKind, target string) error {
	return c.write(func() error {
		c.env.sink.Unsubscribe(c.self, kind, target)
		return nil
	})
}
