package sim

import (
	"errors"
	"fmt"

	"github.com/inference-sim/popsim/sim/model"
	"github.com/inference-sim/popsim/sim/population"
	"github.com/inference-sim/popsim/sim/store"
)

// This file holds the unguarded state mutations. Each one updates a store,
// re-routes the person to exactly the indexes and partitions the change can
// affect, and buffers the matching observations. Context wraps them with
// focus and access checks.

// storeErr maps store errors onto the kernel's error taxonomy.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrUnknown) {
		return fmt.Errorf("%w: %w", ErrUnknownIdentifier, err)
	}
	return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
}

func (env *Environment) requirePerson(p model.PersonID) error {
	if !env.src.PersonExists(p) {
		return fmt.Errorf("%w: %d", ErrUnknownPerson, p)
	}
	return nil
}

// emit stamps obs with the current time and buffers it.
func (env *Environment) emit(obs Observation, targets ...string) {
	if len(targets) == 0 {
		targets = []string{obs.Target}
	}
	if !env.sink.Observed(obs.Kind, targets...) {
		return
	}
	obs.Time = env.sched.Time()
	env.sink.Emit(obs, targets...)
}

// route re-evaluates p against entries. update applies the change to a
// partition; nil means the person entered the simulation.
func (env *Environment) route(entries []*registryEntry, p model.PersonID, update func(*population.Partition) (bool, error)) error {
	for _, e := range entries {
		if e.removed {
			continue
		}
		if e.index != nil {
			if ch := e.index.Evaluate(p); ch != population.Unchanged {
				env.emit(Observation{Kind: ObserveIndex, Target: e.key, Person: p, Change: ch})
			}
			continue
		}
		before := e.partition.Contains(p)
		var moved bool
		var err error
		if update == nil {
			err = e.partition.Add(p)
			moved = e.partition.Contains(p)
		} else {
			moved, err = update(e.partition)
		}
		if err != nil {
			return fmt.Errorf("%w: partition %q: %w", ErrInvalidPartition, e.key, err)
		}
		if moved {
			env.emit(Observation{Kind: ObservePartition, Target: e.key, Person: p, Change: membershipChange(before, e.partition.Contains(p))})
		}
	}
	return nil
}

// membershipChange classifies a partition update; Unchanged is a move
// between buckets.
func membershipChange(before, after bool) population.Change {
	switch {
	case !before && after:
		return population.Added
	case before && !after:
		return population.Removed
	}
	return population.Unchanged
}

func (env *Environment) addPerson(r model.RegionID, c model.CompartmentID, initial map[model.AttributeID]model.Value) (model.PersonID, error) {
	if !env.locs.KnownRegion(r) {
		return model.NoPerson, fmt.Errorf("%w: region %q", ErrUnknownIdentifier, r)
	}
	if !env.locs.KnownCompartment(c) {
		return model.NoPerson, fmt.Errorf("%w: compartment %q", ErrUnknownIdentifier, c)
	}
	for a, v := range initial {
		kind, ok := env.attrs.Kind(a)
		if !ok {
			return model.NoPerson, fmt.Errorf("%w: attribute %q", ErrUnknownIdentifier, a)
		}
		if _, err := store.Assignable(kind, v); err != nil {
			return model.NoPerson, fmt.Errorf("%w: attribute %q: %w", ErrInvalidArgument, a, err)
		}
	}

	now := env.sched.Time()
	p := model.PersonID(len(env.alive))
	env.alive = append(env.alive, true)
	env.population++
	if err := env.attrs.AddPerson(p, initial, now); err != nil {
		return model.NoPerson, storeErr(err)
	}
	if err := env.locs.Place(p, r, c, now); err != nil {
		return model.NoPerson, storeErr(err)
	}
	if err := env.route(env.registry.everything(), p, nil); err != nil {
		return p, err
	}
	env.emit(Observation{Kind: ObservePersonAddition, Person: p})
	return p, nil
}

func (env *Environment) removePerson(p model.PersonID) error {
	if err := env.requirePerson(p); err != nil {
		return err
	}
	env.alive[p] = false
	env.population--
	for _, e := range env.registry.everything() {
		if e.index != nil {
			if e.index.Drop(p) == population.Removed {
				env.emit(Observation{Kind: ObserveIndex, Target: e.key, Person: p, Change: population.Removed})
			}
			continue
		}
		if e.partition.Remove(p) {
			env.emit(Observation{Kind: ObservePartition, Target: e.key, Person: p, Change: population.Removed})
		}
	}
	env.groups.RemovePerson(p)
	env.attrs.RemovePerson(p)
	env.locs.Remove(p)
	env.res.RemovePerson(p)
	env.emit(Observation{Kind: ObservePersonRemoval, Person: p})
	return nil
}

func (env *Environment) setAttribute(p model.PersonID, a model.AttributeID, v model.Value) error {
	if err := env.requirePerson(p); err != nil {
		return err
	}
	prev, err := env.attrs.SetValue(p, a, v, env.sched.Time())
	if err != nil {
		return storeErr(err)
	}
	cur, _ := env.attrs.Value(p, a)
	env.emit(Observation{Kind: ObserveAttribute, Target: string(a), Person: p, Previous: prev, Current: cur})
	if prev == cur {
		return nil
	}
	return env.route(env.registry.forAttribute(a), p, func(pt *population.Partition) (bool, error) {
		return pt.UpdateAttribute(p, a)
	})
}

func (env *Environment) moveRegion(p model.PersonID, r model.RegionID) error {
	if err := env.requirePerson(p); err != nil {
		return err
	}
	prev, err := env.locs.MoveRegion(p, r, env.sched.Time())
	if err != nil {
		return storeErr(err)
	}
	if prev == r {
		return nil
	}
	env.emit(Observation{Kind: ObserveRegion, Person: p, Previous: model.String(string(prev)), Current: model.String(string(r))},
		string(prev), string(r))
	return env.route(env.registry.forRegions(), p, func(pt *population.Partition) (bool, error) {
		return pt.UpdateRegion(p)
	})
}

func (env *Environment) moveCompartment(p model.PersonID, c model.CompartmentID) error {
	if err := env.requirePerson(p); err != nil {
		return err
	}
	prev, err := env.locs.MoveCompartment(p, c)
	if err != nil {
		return storeErr(err)
	}
	if prev == c {
		return nil
	}
	env.emit(Observation{Kind: ObserveCompartment, Person: p, Previous: model.String(string(prev)), Current: model.String(string(c))},
		string(prev), string(c))
	return env.route(env.registry.forCompartments(), p, func(pt *population.Partition) (bool, error) {
		return pt.UpdateCompartment(p)
	})
}

// changeResource adds delta (either sign) to p's level of r.
func (env *Environment) changeResource(p model.PersonID, r model.ResourceID, delta int64) error {
	if err := env.requirePerson(p); err != nil {
		return err
	}
	prev := env.res.Level(p, r)
	var err error
	if delta >= 0 {
		_, err = env.res.Add(p, r, delta)
	} else {
		_, err = env.res.Remove(p, r, -delta)
	}
	if err != nil {
		return storeErr(err)
	}
	cur := env.res.Level(p, r)
	env.emit(Observation{Kind: ObserveResource, Target: string(r), Person: p, Previous: model.Int(prev), Current: model.Int(cur)})
	return env.route(env.registry.forResource(r), p, func(pt *population.Partition) (bool, error) {
		return pt.UpdateResource(p, r)
	})
}

func (env *Environment) addGroup(t model.GroupTypeID) (model.GroupID, error) {
	g, err := env.groups.Add(t)
	return g, storeErr(err)
}

func (env *Environment) removeGroup(g model.GroupID) error {
	t, err := env.groups.Type(g)
	if err != nil {
		return storeErr(err)
	}
	members, err := env.groups.Remove(g)
	if err != nil {
		return storeErr(err)
	}
	for _, p := range members {
		if err := env.groupChanged(p, g, t, population.Removed); err != nil {
			return err
		}
	}
	return nil
}

func (env *Environment) addToGroup(p model.PersonID, g model.GroupID) error {
	if err := env.requirePerson(p); err != nil {
		return err
	}
	t, err := env.groups.Type(g)
	if err != nil {
		return storeErr(err)
	}
	if err := env.groups.AddMember(p, g); err != nil {
		return storeErr(err)
	}
	return env.groupChanged(p, g, t, population.Added)
}

func (env *Environment) removeFromGroup(p model.PersonID, g model.GroupID) error {
	if err := env.requirePerson(p); err != nil {
		return err
	}
	t, err := env.groups.Type(g)
	if err != nil {
		return storeErr(err)
	}
	if err := env.groups.RemoveMember(p, g); err != nil {
		return storeErr(err)
	}
	return env.groupChanged(p, g, t, population.Removed)
}

func (env *Environment) groupChanged(p model.PersonID, g model.GroupID, t model.GroupTypeID, ch population.Change) error {
	env.emit(Observation{Kind: ObserveGroupMembership, Target: string(t), Person: p, Group: g, Change: ch})
	return env.route(env.registry.forGroups(), p, func(pt *population.Partition) (bool, error) {
		return pt.UpdateGroups(p)
	})
}
