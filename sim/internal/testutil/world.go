// Package testutil provides shared test infrastructure for the simulator:
// an in-memory filter.Source and statistical assertion helpers used across
// the sim/ sub-package tests.
package testutil

import (
	"sort"

	"github.com/inference-sim/popsim/sim/model"
)

type group struct {
	typ     model.GroupTypeID
	members map[model.PersonID]bool
}

// World is a small, obviously-correct filter.Source for tests. Attributes
// marked indexed answer the reverse-index methods by scanning; the rest
// report ok=false like an unindexed store.
type World struct {
	next         model.PersonID
	alive        map[model.PersonID]bool
	kinds        map[model.AttributeID]model.ValueKind
	indexed      map[model.AttributeID]bool
	values       map[model.AttributeID]map[model.PersonID]model.Value
	knownRegions map[model.RegionID]bool
	knownComps   map[model.CompartmentID]bool
	regions      map[model.PersonID]model.RegionID
	compartments map[model.PersonID]model.CompartmentID
	resources    map[model.ResourceID]map[model.PersonID]int64
	groupTypes   map[model.GroupTypeID]bool
	groups       []*group
}

func NewWorld() *World {
	return &World{
		alive:        make(map[model.PersonID]bool),
		kinds:        make(map[model.AttributeID]model.ValueKind),
		indexed:      make(map[model.AttributeID]bool),
		values:       make(map[model.AttributeID]map[model.PersonID]model.Value),
		knownRegions: make(map[model.RegionID]bool),
		knownComps:   make(map[model.CompartmentID]bool),
		regions:      make(map[model.PersonID]model.RegionID),
		compartments: make(map[model.PersonID]model.CompartmentID),
		resources:    make(map[model.ResourceID]map[model.PersonID]int64),
		groupTypes:   make(map[model.GroupTypeID]bool),
	}
}

// === Setup ===

func (w *World) DefineAttribute(a model.AttributeID, kind model.ValueKind, indexed bool) *World {
	w.kinds[a] = kind
	w.indexed[a] = indexed
	w.values[a] = make(map[model.PersonID]model.Value)
	return w
}

func (w *World) DefineRegions(rs ...model.RegionID) *World {
	for _, r := range rs {
		w.knownRegions[r] = true
	}
	return w
}

func (w *World) DefineCompartments(cs ...model.CompartmentID) *World {
	for _, c := range cs {
		w.knownComps[c] = true
	}
	return w
}

func (w *World) DefineResource(r model.ResourceID) *World {
	w.resources[r] = make(map[model.PersonID]int64)
	return w
}

func (w *World) DefineGroupType(t model.GroupTypeID) *World {
	w.groupTypes[t] = true
	return w
}

// AddPerson creates a live person with default attribute values.
func (w *World) AddPerson() model.PersonID {
	p := w.next
	w.next++
	w.alive[p] = true
	return p
}

// AddPeople creates n people and returns their ids.
func (w *World) AddPeople(n int) []model.PersonID {
	out := make([]model.PersonID, n)
	for i := range out {
		out[i] = w.AddPerson()
	}
	return out
}

func (w *World) RemovePerson(p model.PersonID) {
	delete(w.alive, p)
	for _, vals := range w.values {
		delete(vals, p)
	}
	delete(w.regions, p)
	delete(w.compartments, p)
	for _, lv := range w.resources {
		delete(lv, p)
	}
	for _, g := range w.groups {
		delete(g.members, p)
	}
}

func (w *World) Set(p model.PersonID, a model.AttributeID, v model.Value) {
	w.values[a][p] = v
}

func (w *World) SetRegion(p model.PersonID, r model.RegionID)           { w.regions[p] = r }
func (w *World) SetCompartment(p model.PersonID, c model.CompartmentID) { w.compartments[p] = c }

func (w *World) SetResource(p model.PersonID, r model.ResourceID, level int64) {
	w.resources[r][p] = level
}

func (w *World) AddGroup(t model.GroupTypeID) model.GroupID {
	w.groups = append(w.groups, &group{typ: t, members: make(map[model.PersonID]bool)})
	return model.GroupID(len(w.groups) - 1)
}

func (w *World) Join(p model.PersonID, g model.GroupID)  { w.groups[g].members[p] = true }
func (w *World) Leave(p model.PersonID, g model.GroupID) { delete(w.groups[g].members, p) }

// === filter.Source ===

func (w *World) PopulationCount() int { return len(w.alive) }

func (w *World) People() []model.PersonID {
	return w.sorted(func(p model.PersonID) bool { return true })
}

func (w *World) PersonExists(p model.PersonID) bool { return w.alive[p] }

func (w *World) AttributeKind(a model.AttributeID) (model.ValueKind, bool) {
	k, ok := w.kinds[a]
	return k, ok
}

func (w *World) AttributeValue(p model.PersonID, a model.AttributeID) model.Value {
	if v, ok := w.values[a][p]; ok {
		return v
	}
	return model.Zero(w.kinds[a])
}

func (w *World) AttributeValueCount(a model.AttributeID, v model.Value) (int, bool) {
	people, ok := w.PeopleWithAttributeValue(a, v)
	return len(people), ok
}

func (w *World) PeopleWithAttributeValue(a model.AttributeID, v model.Value) ([]model.PersonID, bool) {
	if !w.indexed[a] {
		return nil, false
	}
	return w.sorted(func(p model.PersonID) bool { return w.AttributeValue(p, a) == v }), true
}

func (w *World) KnownRegion(r model.RegionID) bool            { return w.knownRegions[r] }
func (w *World) PersonRegion(p model.PersonID) model.RegionID { return w.regions[p] }

func (w *World) RegionPopulationCount(r model.RegionID) int { return len(w.PeopleInRegion(r)) }

func (w *World) PeopleInRegion(r model.RegionID) []model.PersonID {
	return w.sorted(func(p model.PersonID) bool { return w.regions[p] == r })
}

func (w *World) KnownCompartment(c model.CompartmentID) bool { return w.knownComps[c] }

func (w *World) PersonCompartment(p model.PersonID) model.CompartmentID {
	return w.compartments[p]
}

func (w *World) CompartmentPopulationCount(c model.CompartmentID) int {
	return len(w.PeopleInCompartment(c))
}

func (w *World) PeopleInCompartment(c model.CompartmentID) []model.PersonID {
	return w.sorted(func(p model.PersonID) bool { return w.compartments[p] == c })
}

func (w *World) KnownResource(r model.ResourceID) bool {
	_, ok := w.resources[r]
	return ok
}

func (w *World) ResourceLevel(p model.PersonID, r model.ResourceID) int64 {
	return w.resources[r][p]
}

func (w *World) KnownGroup(g model.GroupID) bool {
	return g >= 0 && int(g) < len(w.groups)
}

func (w *World) KnownGroupType(t model.GroupTypeID) bool { return w.groupTypes[t] }

func (w *World) IsGroupMember(p model.PersonID, g model.GroupID) bool {
	return w.KnownGroup(g) && w.groups[g].members[p]
}

func (w *World) GroupMemberCount(g model.GroupID) int { return len(w.GroupMembers(g)) }

func (w *World) GroupMembers(g model.GroupID) []model.PersonID {
	if !w.KnownGroup(g) {
		return nil
	}
	return w.sorted(func(p model.PersonID) bool { return w.groups[g].members[p] })
}

func (w *World) GroupCountForPerson(p model.PersonID, t model.GroupTypeID) int {
	n := 0
	for _, g := range w.groups {
		if g.typ == t && g.members[p] {
			n++
		}
	}
	return n
}

func (w *World) sorted(keep func(model.PersonID) bool) []model.PersonID {
	var out []model.PersonID
	for p := range w.alive {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
