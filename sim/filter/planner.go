package filter

import (
	"sort"

	"github.com/inference-sim/popsim/sim/model"
)

// Solution is the planner's answer for one node: a lazy supplier of
// candidate people, the number of candidates it will produce, and whether
// those candidates may include people that do not actually match.
type Solution struct {
	Supply         func() []model.PersonID
	Size           int
	FalsePositives bool
}

// Planner chooses, per node, the cheapest candidate supplier from the
// cardinality and reverse-lookup capabilities of a Source. It never mutates
// state and may run under read access.
type Planner struct {
	src Source
}

func NewPlanner(src Source) *Planner {
	return &Planner{src: src}
}

// Plan solves the whole tree.
func (pl *Planner) Plan(f *Filter) Solution {
	return pl.solve(f, false)
}

// Materialize returns the people matching f in ascending id order. When the
// winning supplier may contain false positives, every candidate is re-tested
// with Evaluate.
func (pl *Planner) Materialize(f *Filter) []model.PersonID {
	sol := pl.Plan(f)
	candidates := sol.Supply()
	out := make([]model.PersonID, 0, len(candidates))
	for _, p := range candidates {
		if !sol.FalsePositives || Evaluate(f, pl.src, p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (pl *Planner) solve(f *Filter, negated bool) Solution {
	switch f.kind {
	case KindAll:
		if negated {
			return emptySolution()
		}
		return pl.everyone(false)
	case KindEmpty:
		if negated {
			return pl.everyone(false)
		}
		return emptySolution()
	case KindNot:
		return pl.solve(f.left, !negated)
	case KindAnd:
		if negated {
			return pl.union(pl.solve(f.left, true), pl.solve(f.right, true))
		}
		return cheaper(pl.solve(f.left, false), pl.solve(f.right, false))
	case KindOr:
		if negated {
			return cheaper(pl.solve(f.left, true), pl.solve(f.right, true))
		}
		return pl.union(pl.solve(f.left, false), pl.solve(f.right, false))
	case KindRegion:
		return pl.solveRegion(f, negated)
	case KindCompartment:
		if negated {
			return pl.everyone(true)
		}
		c := f.compartment
		return Solution{
			Supply: func() []model.PersonID { return pl.src.PeopleInCompartment(c) },
			Size:   pl.src.CompartmentPopulationCount(c),
		}
	case KindGroupMember:
		if negated {
			return pl.everyone(true)
		}
		g := f.group
		return Solution{
			Supply: func() []model.PersonID { return pl.src.GroupMembers(g) },
			Size:   pl.src.GroupMemberCount(g),
		}
	case KindAttribute:
		return pl.solveAttribute(f, negated)
	}
	// resource levels and group-type counts have no reverse index
	return pl.everyone(true)
}

func (pl *Planner) solveRegion(f *Filter, negated bool) Solution {
	if len(f.regions) == 0 {
		if negated {
			return pl.everyone(false)
		}
		return emptySolution()
	}
	if negated {
		return pl.everyone(true)
	}
	regions := f.regions
	size := 0
	for _, r := range regions {
		size += pl.src.RegionPopulationCount(r)
	}
	return Solution{
		Supply: func() []model.PersonID {
			out := make([]model.PersonID, 0, size)
			for _, r := range regions {
				out = append(out, pl.src.PeopleInRegion(r)...)
			}
			return out
		},
		Size: size,
	}
}

func (pl *Planner) solveAttribute(f *Filter, negated bool) Solution {
	kind, ok := pl.src.AttributeKind(f.attribute)
	if !ok {
		return pl.everyone(true)
	}
	target, err := f.value.Coerce(kind)
	if err != nil {
		return pl.everyone(true)
	}
	if kind == model.KindBool {
		return pl.solveBoolean(f.attribute, f.op, negated, target.AsBool())
	}
	op := f.op
	if negated {
		op = op.Negate()
	}
	if op != model.Equal {
		return pl.everyone(true)
	}
	return pl.lookup(f.attribute, target)
}

// boolOutcome is what a comparison against a boolean attribute reduces to.
type boolOutcome int

const (
	boolNobody boolOutcome = iota
	boolEverybody
	boolOnlyTrue
	boolOnlyFalse
)

// booleanOutcome enumerates every (operator, negation, target) combination.
// With false < true, each ordering comparison collapses to one of four
// outcomes.
func booleanOutcome(op model.Operator, negated, target bool) boolOutcome {
	if negated {
		op = op.Negate()
	}
	switch op {
	case model.Equal:
		if target {
			return boolOnlyTrue
		}
		return boolOnlyFalse
	case model.NotEqual:
		if target {
			return boolOnlyFalse
		}
		return boolOnlyTrue
	case model.LessThan:
		// x < true  <=> x == false; nothing is below false
		if target {
			return boolOnlyFalse
		}
		return boolNobody
	case model.LessThanOrEqual:
		if target {
			return boolEverybody
		}
		return boolOnlyFalse
	case model.GreaterThan:
		// nothing is above true
		if target {
			return boolNobody
		}
		return boolOnlyTrue
	case model.GreaterThanOrEqual:
		if target {
			return boolOnlyTrue
		}
		return boolEverybody
	}
	return boolEverybody
}

func (pl *Planner) solveBoolean(a model.AttributeID, op model.Operator, negated, target bool) Solution {
	switch booleanOutcome(op, negated, target) {
	case boolNobody:
		return emptySolution()
	case boolEverybody:
		return pl.everyone(false)
	case boolOnlyTrue:
		return pl.lookup(a, model.Bool(true))
	default:
		return pl.lookup(a, model.Bool(false))
	}
}

func (pl *Planner) lookup(a model.AttributeID, v model.Value) Solution {
	count, ok := pl.src.AttributeValueCount(a, v)
	if !ok {
		return pl.everyone(true)
	}
	return Solution{
		Supply: func() []model.PersonID {
			people, _ := pl.src.PeopleWithAttributeValue(a, v)
			return people
		},
		Size: count,
	}
}

func (pl *Planner) everyone(falsePositives bool) Solution {
	return Solution{
		Supply:         pl.src.People,
		Size:           pl.src.PopulationCount(),
		FalsePositives: falsePositives,
	}
}

func emptySolution() Solution {
	return Solution{Supply: func() []model.PersonID { return nil }}
}

// cheaper keeps the smaller supplier. The other branch's constraint is not
// applied, so the result always needs the final exact check.
func cheaper(a, b Solution) Solution {
	best := a
	if b.Size < a.Size {
		best = b
	}
	best.FalsePositives = true
	return best
}

// union merges two suppliers, short-circuiting to the full population when
// the two together would be at least as large.
func (pl *Planner) union(a, b Solution) Solution {
	if a.Size+b.Size >= pl.src.PopulationCount() {
		return pl.everyone(true)
	}
	return Solution{
		Supply: func() []model.PersonID {
			left, right := a.Supply(), b.Supply()
			seen := make(map[model.PersonID]struct{}, len(left)+len(right))
			out := make([]model.PersonID, 0, len(left)+len(right))
			for _, group := range [2][]model.PersonID{left, right} {
				for _, p := range group {
					if _, dup := seen[p]; !dup {
						seen[p] = struct{}{}
						out = append(out, p)
					}
				}
			}
			return out
		},
		Size:           a.Size + b.Size,
		FalsePositives: a.FalsePositives || b.FalsePositives,
	}
}
