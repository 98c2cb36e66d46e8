package sim

import (
	"sort"

	"github.com/inference-sim/popsim/sim/model"
)

// kernelSource is the filter.Source view of an Environment's stores. It
// bypasses the access guard: it is only used on kernel paths that already
// hold read or write access.
type kernelSource struct {
	env *Environment
}

func (s kernelSource) PopulationCount() int { return s.env.population }

// People returns every live person in id order.
func (s kernelSource) People() []model.PersonID {
	out := make([]model.PersonID, 0, s.env.population)
	for i, alive := range s.env.alive {
		if alive {
			out = append(out, model.PersonID(i))
		}
	}
	return out
}

func (s kernelSource) PersonExists(p model.PersonID) bool {
	return p.Valid() && int(p) < len(s.env.alive) && s.env.alive[p]
}

func (s kernelSource) AttributeKind(a model.AttributeID) (model.ValueKind, bool) {
	return s.env.attrs.Kind(a)
}

func (s kernelSource) AttributeValue(p model.PersonID, a model.AttributeID) model.Value {
	v, _ := s.env.attrs.Value(p, a)
	return v
}

func (s kernelSource) AttributeValueCount(a model.AttributeID, v model.Value) (int, bool) {
	return s.env.attrs.Count(a, v)
}

func (s kernelSource) PeopleWithAttributeValue(a model.AttributeID, v model.Value) ([]model.PersonID, bool) {
	return s.env.attrs.People(a, v)
}

func (s kernelSource) KnownRegion(r model.RegionID) bool { return s.env.locs.KnownRegion(r) }

func (s kernelSource) PersonRegion(p model.PersonID) model.RegionID { return s.env.locs.RegionOf(p) }

func (s kernelSource) RegionPopulationCount(r model.RegionID) int {
	return s.env.locs.CountInRegion(r)
}

func (s kernelSource) PeopleInRegion(r model.RegionID) []model.PersonID {
	return s.env.locs.PeopleInRegion(r)
}

func (s kernelSource) KnownCompartment(c model.CompartmentID) bool {
	return s.env.locs.KnownCompartment(c)
}

func (s kernelSource) PersonCompartment(p model.PersonID) model.CompartmentID {
	return s.env.locs.CompartmentOf(p)
}

func (s kernelSource) CompartmentPopulationCount(c model.CompartmentID) int {
	return s.env.locs.CountInCompartment(c)
}

func (s kernelSource) PeopleInCompartment(c model.CompartmentID) []model.PersonID {
	return s.env.locs.PeopleInCompartment(c)
}

func (s kernelSource) KnownResource(r model.ResourceID) bool { return s.env.res.Known(r) }

func (s kernelSource) ResourceLevel(p model.PersonID, r model.ResourceID) int64 {
	return s.env.res.Level(p, r)
}

func (s kernelSource) KnownGroup(g model.GroupID) bool { return s.env.groups.Known(g) }

func (s kernelSource) KnownGroupType(t model.GroupTypeID) bool { return s.env.groups.KnownType(t) }

func (s kernelSource) IsGroupMember(p model.PersonID, g model.GroupID) bool {
	return s.env.groups.IsMember(p, g)
}

func (s kernelSource) GroupMemberCount(g model.GroupID) int { return s.env.groups.MemberCount(g) }

func (s kernelSource) GroupMembers(g model.GroupID) []model.PersonID {
	return s.env.groups.Members(g)
}

func (s kernelSource) GroupCountForPerson(p model.PersonID, t model.GroupTypeID) int {
	return s.env.groups.CountForPerson(p, t)
}

func sortedPeople(ps []model.PersonID) []model.PersonID {
	sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
	return ps
}
