package filter

import "github.com/inference-sim/popsim/sim/model"

// Evaluate tests one person against f directly. It is independent of the
// Planner and is the reference every planned result is checked against.
// Removed or unknown people match nothing.
func Evaluate(f *Filter, src Source, p model.PersonID) bool {
	if !src.PersonExists(p) {
		return false
	}
	return evaluate(f, src, p)
}

func evaluate(f *Filter, src Source, p model.PersonID) bool {
	switch f.kind {
	case KindAll:
		return true
	case KindEmpty:
		return false
	case KindAnd:
		return evaluate(f.left, src, p) && evaluate(f.right, src, p)
	case KindOr:
		return evaluate(f.left, src, p) || evaluate(f.right, src, p)
	case KindNot:
		return !evaluate(f.left, src, p)
	case KindRegion:
		r := src.PersonRegion(p)
		for _, want := range f.regions {
			if r == want {
				return true
			}
		}
		return false
	case KindCompartment:
		return src.PersonCompartment(p) == f.compartment
	case KindAttribute:
		return f.op.Apply(src.AttributeValue(p, f.attribute), f.value)
	case KindResource:
		return f.op.ApplyInt(src.ResourceLevel(p, f.resource), f.amount)
	case KindGroupMember:
		return src.IsGroupMember(p, f.group)
	case KindGroupTypeCount:
		return f.op.ApplyInt(int64(src.GroupCountForPerson(p, f.groupType)), f.amount)
	}
	return false
}

// Scan evaluates f against every live person. It is the O(population)
// fallback the Planner exists to avoid, kept for verification.
func Scan(f *Filter, src Source) []model.PersonID {
	var out []model.PersonID
	for _, p := range src.People() {
		if evaluate(f, src, p) {
			out = append(out, p)
		}
	}
	return out
}
