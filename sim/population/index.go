package population

import (
	"math/rand"

	"github.com/inference-sim/popsim/sim/filter"
	"github.com/inference-sim/popsim/sim/model"
)

// Change is the outcome of re-evaluating one person against an index.
type Change int

const (
	Unchanged Change = iota
	Added
	Removed
)

func (c Change) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	}
	return "unchanged"
}

// Index is a live set of the people matching a filter. The kernel calls
// Evaluate for every person whose routed state changed, so the set never
// needs a rescan after Initialize.
type Index struct {
	owner   model.ComponentID
	filter  *filter.Filter
	deps    filter.Dependencies
	src     filter.Source
	members *Adaptive
}

// NewIndex creates an empty index owned by owner. Call Initialize to seed it.
func NewIndex(owner model.ComponentID, f *filter.Filter, src filter.Source, thresholds Thresholds) *Index {
	return &Index{
		owner:   owner,
		filter:  f,
		deps:    f.Dependencies(),
		src:     src,
		members: NewAdaptive(src.PopulationCount, thresholds),
	}
}

func (ix *Index) Owner() model.ComponentID          { return ix.owner }
func (ix *Index) Filter() *filter.Filter            { return ix.filter }
func (ix *Index) Dependencies() filter.Dependencies { return ix.deps }
func (ix *Index) Representation() Representation    { return ix.members.Representation() }

// OnSwitch forwards representation changes of the backing container.
func (ix *Index) OnSwitch(fn SwitchFunc) { ix.members.OnSwitch(fn) }

// Initialize seeds the index from the planner instead of testing every
// person, and returns the number of members.
func (ix *Index) Initialize() int {
	for _, p := range filter.NewPlanner(ix.src).Materialize(ix.filter) {
		ix.members.Add(p)
	}
	return ix.members.Size()
}

// Evaluate re-tests p and updates membership. It is idempotent.
func (ix *Index) Evaluate(p model.PersonID) Change {
	matches := filter.Evaluate(ix.filter, ix.src, p)
	switch {
	case matches && ix.members.Add(p):
		return Added
	case !matches && ix.members.Remove(p):
		return Removed
	}
	return Unchanged
}

// Drop removes p unconditionally, used when a person leaves the simulation.
func (ix *Index) Drop(p model.PersonID) Change {
	if ix.members.Remove(p) {
		return Removed
	}
	return Unchanged
}

func (ix *Index) Contains(p model.PersonID) bool { return ix.members.Contains(p) }
func (ix *Index) Size() int                      { return ix.members.Size() }
func (ix *Index) Members() []model.PersonID      { return ix.members.Members() }

// Random draws a uniform member other than exclude.
func (ix *Index) Random(rng *rand.Rand, exclude model.PersonID) (model.PersonID, bool) {
	return ix.members.Random(rng, exclude)
}
