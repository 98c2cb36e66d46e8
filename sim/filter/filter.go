// Package filter defines the immutable predicate trees that describe
// sub-populations, a direct evaluator for them, and the Planner that picks the
// cheapest way to materialize the people a tree matches.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/inference-sim/popsim/sim/model"
)

// Kind tags a Filter node.
type Kind uint8

const (
	KindAll Kind = iota
	KindEmpty
	KindAnd
	KindOr
	KindNot
	KindRegion
	KindCompartment
	KindAttribute
	KindResource
	KindGroupMember
	KindGroupTypeCount
)

// Filter is one node of a predicate tree. Trees are built once through the
// constructors below and never mutated.
type Filter struct {
	kind        Kind
	left, right *Filter
	regions     []model.RegionID
	compartment model.CompartmentID
	attribute   model.AttributeID
	resource    model.ResourceID
	group       model.GroupID
	groupType   model.GroupTypeID
	op          model.Operator
	value       model.Value
	amount      int64
}

var (
	all   = &Filter{kind: KindAll}
	empty = &Filter{kind: KindEmpty}
)

// All matches every live person.
func All() *Filter { return all }

// None matches nobody.
func None() *Filter { return empty }

// And matches people matching both a and b.
func And(a, b *Filter) *Filter { return &Filter{kind: KindAnd, left: a, right: b} }

// Or matches people matching a or b.
func Or(a, b *Filter) *Filter { return &Filter{kind: KindOr, left: a, right: b} }

// Not matches people not matching f.
func Not(f *Filter) *Filter { return &Filter{kind: KindNot, left: f} }

// AllOf folds fs with And. With no arguments it returns All.
func AllOf(fs ...*Filter) *Filter {
	if len(fs) == 0 {
		return All()
	}
	out := fs[0]
	for _, f := range fs[1:] {
		out = And(out, f)
	}
	return out
}

// AnyOf folds fs with Or. With no arguments it returns None.
func AnyOf(fs ...*Filter) *Filter {
	if len(fs) == 0 {
		return None()
	}
	out := fs[0]
	for _, f := range fs[1:] {
		out = Or(out, f)
	}
	return out
}

// InRegion matches people located in any of the given regions.
func InRegion(regions ...model.RegionID) *Filter {
	set := make(map[model.RegionID]bool, len(regions))
	uniq := make([]model.RegionID, 0, len(regions))
	for _, r := range regions {
		if !set[r] {
			set[r] = true
			uniq = append(uniq, r)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })
	return &Filter{kind: KindRegion, regions: uniq}
}

// InCompartment matches people in compartment c.
func InCompartment(c model.CompartmentID) *Filter {
	return &Filter{kind: KindCompartment, compartment: c}
}

// Attribute matches people whose attribute a compares to v under op.
func Attribute(a model.AttributeID, op model.Operator, v model.Value) *Filter {
	return &Filter{kind: KindAttribute, attribute: a, op: op, value: v}
}

// Resource matches people whose level of resource r compares to amount under op.
func Resource(r model.ResourceID, op model.Operator, amount int64) *Filter {
	return &Filter{kind: KindResource, resource: r, op: op, amount: amount}
}

// Member matches people belonging to group g.
func Member(g model.GroupID) *Filter {
	return &Filter{kind: KindGroupMember, group: g}
}

// GroupTypeCount matches people whose number of groups of type t compares to
// count under op.
func GroupTypeCount(t model.GroupTypeID, op model.Operator, count int64) *Filter {
	return &Filter{kind: KindGroupTypeCount, groupType: t, op: op, amount: count}
}

func (f *Filter) Kind() Kind { return f.kind }

func (f *Filter) String() string {
	var sb strings.Builder
	f.write(&sb)
	return sb.String()
}

func (f *Filter) write(sb *strings.Builder) {
	switch f.kind {
	case KindAll:
		sb.WriteString("ALL")
	case KindEmpty:
		sb.WriteString("EMPTY")
	case KindAnd, KindOr:
		sb.WriteString("(")
		f.left.write(sb)
		if f.kind == KindAnd {
			sb.WriteString(" AND ")
		} else {
			sb.WriteString(" OR ")
		}
		f.right.write(sb)
		sb.WriteString(")")
	case KindNot:
		sb.WriteString("NOT ")
		f.left.write(sb)
	case KindRegion:
		fmt.Fprintf(sb, "region in %v", f.regions)
	case KindCompartment:
		fmt.Fprintf(sb, "compartment == %s", f.compartment)
	case KindAttribute:
		fmt.Fprintf(sb, "%s %s %s", f.attribute, f.op, f.value)
	case KindResource:
		fmt.Fprintf(sb, "resource %s %s %d", f.resource, f.op, f.amount)
	case KindGroupMember:
		fmt.Fprintf(sb, "member of group %d", f.group)
	case KindGroupTypeCount:
		fmt.Fprintf(sb, "count(%s groups) %s %d", f.groupType, f.op, f.amount)
	}
}

// Dependencies lists the kinds of state change that can alter whether a
// person matches a filter. The kernel uses it to route updates.
type Dependencies struct {
	Attributes   map[model.AttributeID]bool
	Resources    map[model.ResourceID]bool
	Regions      bool
	Compartments bool
	Groups       bool
}

// DependsOnAttribute reports whether a change to a can alter membership.
func (d Dependencies) DependsOnAttribute(a model.AttributeID) bool { return d.Attributes[a] }

// DependsOnResource reports whether a change to r can alter membership.
func (d Dependencies) DependsOnResource(r model.ResourceID) bool { return d.Resources[r] }

// Dependencies walks the tree once.
func (f *Filter) Dependencies() Dependencies {
	d := Dependencies{
		Attributes: make(map[model.AttributeID]bool),
		Resources:  make(map[model.ResourceID]bool),
	}
	f.collect(&d)
	return d
}

func (f *Filter) collect(d *Dependencies) {
	if f == nil {
		return
	}
	switch f.kind {
	case KindAnd, KindOr:
		f.left.collect(d)
		f.right.collect(d)
	case KindNot:
		f.left.collect(d)
	case KindRegion:
		d.Regions = true
	case KindCompartment:
		d.Compartments = true
	case KindAttribute:
		d.Attributes[f.attribute] = true
	case KindResource:
		d.Resources[f.resource] = true
	case KindGroupMember, KindGroupTypeCount:
		d.Groups = true
	}
}

// Validate checks that the tree has no nil nodes, that every leaf refers to
// something the source knows about and that attribute comparisons use
// assignable values.
func Validate(f *Filter, src Source) error {
	if f == nil {
		return fmt.Errorf("filter has a nil node")
	}
	switch f.kind {
	case KindAll, KindEmpty:
		return nil
	case KindAnd, KindOr:
		if err := Validate(f.left, src); err != nil {
			return err
		}
		return Validate(f.right, src)
	case KindNot:
		return Validate(f.left, src)
	case KindRegion:
		for _, r := range f.regions {
			if !src.KnownRegion(r) {
				return fmt.Errorf("filter references unknown region %q", r)
			}
		}
	case KindCompartment:
		if !src.KnownCompartment(f.compartment) {
			return fmt.Errorf("filter references unknown compartment %q", f.compartment)
		}
	case KindAttribute:
		kind, ok := src.AttributeKind(f.attribute)
		if !ok {
			return fmt.Errorf("filter references unknown attribute %q", f.attribute)
		}
		if !f.value.Convertible(kind) {
			return fmt.Errorf("filter compares %s attribute %q with %s value %s",
				kind, f.attribute, f.value.Kind(), f.value)
		}
	case KindResource:
		if !src.KnownResource(f.resource) {
			return fmt.Errorf("filter references unknown resource %q", f.resource)
		}
	case KindGroupMember:
		if !src.KnownGroup(f.group) {
			return fmt.Errorf("filter references unknown group %d", f.group)
		}
	case KindGroupTypeCount:
		if !src.KnownGroupType(f.groupType) {
			return fmt.Errorf("filter references unknown group type %q", f.groupType)
		}
	default:
		return fmt.Errorf("unknown filter kind %d", f.kind)
	}
	return nil
}
