package filter

import "github.com/inference-sim/popsim/sim/model"

// Source is the read-only view of population state that filters are
// evaluated and planned against. The kernel implements it over its stores.
//
// The attribute reverse-index methods return ok=false when no reverse index
// was configured for the attribute; the Planner then falls back to a full
// scan with a final exact check.
type Source interface {
	PopulationCount() int
	People() []model.PersonID
	PersonExists(p model.PersonID) bool

	AttributeKind(a model.AttributeID) (model.ValueKind, bool)
	AttributeValue(p model.PersonID, a model.AttributeID) model.Value
	AttributeValueCount(a model.AttributeID, v model.Value) (int, bool)
	PeopleWithAttributeValue(a model.AttributeID, v model.Value) ([]model.PersonID, bool)

	KnownRegion(r model.RegionID) bool
	PersonRegion(p model.PersonID) model.RegionID
	RegionPopulationCount(r model.RegionID) int
	PeopleInRegion(r model.RegionID) []model.PersonID

	KnownCompartment(c model.CompartmentID) bool
	PersonCompartment(p model.PersonID) model.CompartmentID
	CompartmentPopulationCount(c model.CompartmentID) int
	PeopleInCompartment(c model.CompartmentID) []model.PersonID

	KnownResource(r model.ResourceID) bool
	ResourceLevel(p model.PersonID, r model.ResourceID) int64

	KnownGroup(g model.GroupID) bool
	KnownGroupType(t model.GroupTypeID) bool
	IsGroupMember(p model.PersonID, g model.GroupID) bool
	GroupMemberCount(g model.GroupID) int
	GroupMembers(g model.GroupID) []model.PersonID
	GroupCountForPerson(p model.PersonID, t model.GroupTypeID) int
}
