package store

import (
	"fmt"
	"sort"

	"github.com/inference-sim/popsim/sim/model"
)

type personSet map[model.PersonID]struct{}

func (s personSet) sorted() []model.PersonID {
	out := make([]model.PersonID, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Locations tracks the region and compartment of every person.
type Locations struct {
	regions       map[model.RegionID]personSet
	compartments  map[model.CompartmentID]personSet
	regionOf      map[model.PersonID]model.RegionID
	compartmentOf map[model.PersonID]model.CompartmentID
	arrivals      map[model.PersonID]float64
}

func NewLocations() *Locations {
	return &Locations{
		regions:       make(map[model.RegionID]personSet),
		compartments:  make(map[model.CompartmentID]personSet),
		regionOf:      make(map[model.PersonID]model.RegionID),
		compartmentOf: make(map[model.PersonID]model.CompartmentID),
		arrivals:      make(map[model.PersonID]float64),
	}
}

func (l *Locations) DefineRegion(r model.RegionID) error {
	if _, dup := l.regions[r]; dup {
		return fmt.Errorf("region %q defined twice", r)
	}
	l.regions[r] = make(personSet)
	return nil
}

func (l *Locations) DefineCompartment(c model.CompartmentID) error {
	if _, dup := l.compartments[c]; dup {
		return fmt.Errorf("compartment %q defined twice", c)
	}
	l.compartments[c] = make(personSet)
	return nil
}

func (l *Locations) KnownRegion(r model.RegionID) bool {
	_, ok := l.regions[r]
	return ok
}

func (l *Locations) KnownCompartment(c model.CompartmentID) bool {
	_, ok := l.compartments[c]
	return ok
}

// Place puts a new person in region r and compartment c at time now.
func (l *Locations) Place(p model.PersonID, r model.RegionID, c model.CompartmentID, now float64) error {
	rs, ok := l.regions[r]
	if !ok {
		return fmt.Errorf("%w: region %q", ErrUnknown, r)
	}
	cs, ok := l.compartments[c]
	if !ok {
		return fmt.Errorf("%w: compartment %q", ErrUnknown, c)
	}
	rs[p] = struct{}{}
	cs[p] = struct{}{}
	l.regionOf[p] = r
	l.compartmentOf[p] = c
	l.arrivals[p] = now
	return nil
}

// Remove forgets p entirely.
func (l *Locations) Remove(p model.PersonID) {
	if r, ok := l.regionOf[p]; ok {
		delete(l.regions[r], p)
		delete(l.regionOf, p)
	}
	if c, ok := l.compartmentOf[p]; ok {
		delete(l.compartments[c], p)
		delete(l.compartmentOf, p)
	}
	delete(l.arrivals, p)
}

// MoveRegion relocates p to r at time now and returns the previous region.
func (l *Locations) MoveRegion(p model.PersonID, r model.RegionID, now float64) (model.RegionID, error) {
	rs, ok := l.regions[r]
	if !ok {
		return "", fmt.Errorf("%w: region %q", ErrUnknown, r)
	}
	prev, ok := l.regionOf[p]
	if !ok {
		return "", fmt.Errorf("%w: person %d has no region", ErrUnknown, p)
	}
	delete(l.regions[prev], p)
	rs[p] = struct{}{}
	l.regionOf[p] = r
	l.arrivals[p] = now
	return prev, nil
}

// MoveCompartment relocates p to c and returns the previous compartment.
func (l *Locations) MoveCompartment(p model.PersonID, c model.CompartmentID) (model.CompartmentID, error) {
	cs, ok := l.compartments[c]
	if !ok {
		return "", fmt.Errorf("%w: compartment %q", ErrUnknown, c)
	}
	prev, ok := l.compartmentOf[p]
	if !ok {
		return "", fmt.Errorf("%w: person %d has no compartment", ErrUnknown, p)
	}
	delete(l.compartments[prev], p)
	cs[p] = struct{}{}
	l.compartmentOf[p] = c
	return prev, nil
}

func (l *Locations) RegionOf(p model.PersonID) model.RegionID           { return l.regionOf[p] }
func (l *Locations) CompartmentOf(p model.PersonID) model.CompartmentID { return l.compartmentOf[p] }

// RegionArrivalTime returns when p last entered its current region.
func (l *Locations) RegionArrivalTime(p model.PersonID) float64 { return l.arrivals[p] }

func (l *Locations) CountInRegion(r model.RegionID) int { return len(l.regions[r]) }

func (l *Locations) CountInCompartment(c model.CompartmentID) int { return len(l.compartments[c]) }

// PeopleInRegion returns the people in r in ascending id order.
func (l *Locations) PeopleInRegion(r model.RegionID) []model.PersonID {
	return l.regions[r].sorted()
}

// PeopleInCompartment returns the people in c in ascending id order.
func (l *Locations) PeopleInCompartment(c model.CompartmentID) []model.PersonID {
	return l.compartments[c].sorted()
}
