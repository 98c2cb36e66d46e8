package store

import (
	"fmt"
	"sort"

	"github.com/inference-sim/popsim/sim/model"
)

// groupRecord lives in the Groups arena at index GroupID. Removing a group
// flips removed; ids are never reused.
type groupRecord struct {
	typ     model.GroupTypeID
	members personSet
	removed bool
}

// Groups tracks typed groups and their members.
type Groups struct {
	types    map[model.GroupTypeID]bool
	records  []groupRecord
	byPerson map[model.PersonID]map[model.GroupID]struct{}
}

func NewGroups() *Groups {
	return &Groups{
		types:    make(map[model.GroupTypeID]bool),
		byPerson: make(map[model.PersonID]map[model.GroupID]struct{}),
	}
}

func (g *Groups) DefineType(t model.GroupTypeID) error {
	if g.types[t] {
		return fmt.Errorf("group type %q defined twice", t)
	}
	g.types[t] = true
	return nil
}

func (g *Groups) KnownType(t model.GroupTypeID) bool { return g.types[t] }

// Known reports whether id names a group that has not been removed.
func (g *Groups) Known(id model.GroupID) bool {
	return id >= 0 && int(id) < len(g.records) && !g.records[id].removed
}

func (g *Groups) record(id model.GroupID) (*groupRecord, error) {
	if !g.Known(id) {
		return nil, fmt.Errorf("%w: group %d", ErrUnknown, id)
	}
	return &g.records[id], nil
}

// Add creates an empty group of type t.
func (g *Groups) Add(t model.GroupTypeID) (model.GroupID, error) {
	if !g.types[t] {
		return 0, fmt.Errorf("%w: group type %q", ErrUnknown, t)
	}
	g.records = append(g.records, groupRecord{typ: t, members: make(personSet)})
	return model.GroupID(len(g.records) - 1), nil
}

// Remove deletes group id and returns its former members in id order.
func (g *Groups) Remove(id model.GroupID) ([]model.PersonID, error) {
	rec, err := g.record(id)
	if err != nil {
		return nil, err
	}
	members := rec.members.sorted()
	for _, p := range members {
		delete(g.byPerson[p], id)
	}
	rec.members = nil
	rec.removed = true
	return members, nil
}

func (g *Groups) Type(id model.GroupID) (model.GroupTypeID, error) {
	rec, err := g.record(id)
	if err != nil {
		return "", err
	}
	return rec.typ, nil
}

// AddMember puts p in group id. Adding an existing member is an error.
func (g *Groups) AddMember(p model.PersonID, id model.GroupID) error {
	rec, err := g.record(id)
	if err != nil {
		return err
	}
	if _, dup := rec.members[p]; dup {
		return fmt.Errorf("person %d is already in group %d", p, id)
	}
	rec.members[p] = struct{}{}
	set, ok := g.byPerson[p]
	if !ok {
		set = make(map[model.GroupID]struct{})
		g.byPerson[p] = set
	}
	set[id] = struct{}{}
	return nil
}

// RemoveMember takes p out of group id.
func (g *Groups) RemoveMember(p model.PersonID, id model.GroupID) error {
	rec, err := g.record(id)
	if err != nil {
		return err
	}
	if _, ok := rec.members[p]; !ok {
		return fmt.Errorf("person %d is not in group %d", p, id)
	}
	delete(rec.members, p)
	delete(g.byPerson[p], id)
	return nil
}

// RemovePerson takes p out of every group and returns those groups.
func (g *Groups) RemovePerson(p model.PersonID) []model.GroupID {
	ids := g.GroupsFor(p)
	for _, id := range ids {
		delete(g.records[id].members, p)
	}
	delete(g.byPerson, p)
	return ids
}

func (g *Groups) IsMember(p model.PersonID, id model.GroupID) bool {
	if !g.Known(id) {
		return false
	}
	_, ok := g.records[id].members[p]
	return ok
}

func (g *Groups) MemberCount(id model.GroupID) int {
	if !g.Known(id) {
		return 0
	}
	return len(g.records[id].members)
}

// Members returns the members of id in ascending order.
func (g *Groups) Members(id model.GroupID) []model.PersonID {
	if !g.Known(id) {
		return nil
	}
	return g.records[id].members.sorted()
}

// GroupsFor returns p's groups in ascending order.
func (g *Groups) GroupsFor(p model.PersonID) []model.GroupID {
	set := g.byPerson[p]
	out := make([]model.GroupID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CountForPerson returns how many groups of type t contain p.
func (g *Groups) CountForPerson(p model.PersonID, t model.GroupTypeID) int {
	n := 0
	for id := range g.byPerson[p] {
		if g.records[id].typ == t {
			n++
		}
	}
	return n
}
