// Package model holds the identifier and value types shared by every layer of
// the simulation kernel. It has no dependencies on sim/ or its sub-packages, so
// filter/, population/ and store/ can import it without cycles.
package model

import "fmt"

// PersonID is a dense, non-negative handle assigned monotonically by the
// kernel. It is never reused; liveness is tracked separately.
type PersonID int

// NoPerson is the sentinel used where an optional person is expected
// (for example the excluded person of a random draw).
const NoPerson PersonID = -1

// Valid reports whether id could name a person.
func (id PersonID) Valid() bool { return id >= 0 }

type (
	RegionID      string
	CompartmentID string
	GroupID       int
	GroupTypeID   string
	AttributeID   string
	ResourceID    string
)

// ComponentKind is the class of a component. The kernel initializes and
// closes components in the declared order of these kinds.
type ComponentKind int

const (
	KindGlobal ComponentKind = iota
	KindRegion
	KindCompartment
	KindProducer
)

var componentKindNames = map[ComponentKind]string{
	KindGlobal:      "global",
	KindRegion:      "region",
	KindCompartment: "compartment",
	KindProducer:    "producer",
}

func (k ComponentKind) String() string {
	if name, ok := componentKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ComponentID identifies a component. Regions and compartments are themselves
// components, so a RegionID "north" is owned by ComponentID{KindRegion, "north"}.
type ComponentID struct {
	Kind ComponentKind
	Name string
}

func (c ComponentID) String() string {
	return c.Kind.String() + ":" + c.Name
}

// Global returns the id of a global component.
func Global(name string) ComponentID { return ComponentID{Kind: KindGlobal, Name: name} }

// Producer returns the id of a producer component.
func Producer(name string) ComponentID { return ComponentID{Kind: KindProducer, Name: name} }

// RegionComponent returns the component that owns region r.
func RegionComponent(r RegionID) ComponentID {
	return ComponentID{Kind: KindRegion, Name: string(r)}
}

// CompartmentComponent returns the component that owns compartment c.
func CompartmentComponent(c CompartmentID) ComponentID {
	return ComponentID{Kind: KindCompartment, Name: string(c)}
}
