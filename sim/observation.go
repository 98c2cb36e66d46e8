package sim

import (
	"fmt"

	"github.com/inference-sim/popsim/sim/model"
	"github.com/inference-sim/popsim/sim/population"
)

// ObservationKind names a family of state changes a component can observe.
type ObservationKind int

const (
	ObserveAttribute ObservationKind = iota
	ObserveRegion
	ObserveCompartment
	ObserveResource
	ObservePersonAddition
	ObservePersonRemoval
	ObserveGroupMembership
	ObserveIndex
	ObservePartition
)

var observationKindNames = map[ObservationKind]string{
	ObserveAttribute:       "attribute",
	ObserveRegion:          "region",
	ObserveCompartment:     "compartment",
	ObserveResource:        "resource",
	ObservePersonAddition:  "person-addition",
	ObservePersonRemoval:   "person-removal",
	ObserveGroupMembership: "group-membership",
	ObserveIndex:           "index",
	ObservePartition:       "partition",
}

func (k ObservationKind) String() string {
	if name, ok := observationKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("observation(%d)", int(k))
}

// Observation describes one state change. Which fields are set depends on
// Kind:
//
//	attribute         Target=attribute id, Previous/Current values
//	region            Previous/Current region ids as strings
//	compartment       Previous/Current compartment ids as strings
//	resource          Target=resource id, Previous/Current levels as ints
//	group-membership  Target=group type, Group, Change (added/removed)
//	index             Target=index key, Change (added/removed)
//	partition         Target=partition key, Change (added/removed/unchanged for a bucket move)
type Observation struct {
	Kind     ObservationKind
	Target   string
	Person   model.PersonID
	Previous model.Value
	Current  model.Value
	Group    model.GroupID
	Change   population.Change
	Time     float64
}

type subscription struct {
	kind   ObservationKind
	target string
}

type delivery struct {
	recipient model.ComponentID
	obs       Observation
}

// ObservationSink buffers observations produced during a turn until the
// scheduler drains them, one recipient per turn, in FIFO order.
//
// A subscription with an empty target matches every target of its kind.
type ObservationSink struct {
	subs  map[subscription][]model.ComponentID
	queue []delivery
	head  int
}

// NewObservationSink returns a sink with no subscriptions and nothing pending.
func NewObservationSink() *ObservationSink {
	return &ObservationSink{subs: make(map[subscription][]model.ComponentID)}
}

// Subscribe registers id for (kind, target). It reports false if id was
// already subscribed.
func (s *ObservationSink) Subscribe(id model.ComponentID, kind ObservationKind, target string) bool {
	key := subscription{kind, target}
	for _, existing := range s.subs[key] {
		if existing == id {
			return false
		}
	}
	s.subs[key] = append(s.subs[key], id)
	return true
}

// Unsubscribe removes a subscription and reports whether it existed.
// Observations already buffered for id are still delivered.
func (s *ObservationSink) Unsubscribe(id model.ComponentID, kind ObservationKind, target string) bool {
	key := subscription{kind, target}
	ids := s.subs[key]
	for i, existing := range ids {
		if existing == id {
			s.subs[key] = append(ids[:i:i], ids[i+1:]...)
			if len(s.subs[key]) == 0 {
				delete(s.subs, key)
			}
			return true
		}
	}
	return false
}

// Observed reports whether anybody could receive obs of kind at any of
// targets, so callers can skip building observations nobody wants.
func (s *ObservationSink) Observed(kind ObservationKind, targets ...string) bool {
	if len(s.subs[subscription{kind, ""}]) > 0 {
		return true
	}
	for _, t := range targets {
		if len(s.subs[subscription{kind, t}]) > 0 {
			return true
		}
	}
	return false
}

// Emit buffers obs for every subscriber of its kind at any of targets (or at
// obs.Target when none are given). Each recipient gets obs once. It returns
// the number of recipients.
func (s *ObservationSink) Emit(obs Observation, targets ...string) int {
	if len(targets) == 0 {
		targets = []string{obs.Target}
	}
	seen := make(map[model.ComponentID]bool)
	n := 0
	add := func(key subscription) {
		for _, id := range s.subs[key] {
			if seen[id] {
				continue
			}
			seen[id] = true
			s.queue = append(s.queue, delivery{recipient: id, obs: obs})
			n++
		}
	}
	for _, t := range targets {
		if t != "" {
			add(subscription{obs.Kind, t})
		}
	}
	add(subscription{obs.Kind, ""})
	return n
}

// next pops the oldest buffered delivery.
func (s *ObservationSink) next() (delivery, bool) {
	if s.head == len(s.queue) {
		return delivery{}, false
	}
	d := s.queue[s.head]
	s.queue[s.head] = delivery{}
	s.head++
	if s.head == len(s.queue) {
		s.queue = s.queue[:0]
		s.head = 0
	}
	return d, true
}

// Pending returns the number of buffered deliveries.
func (s *ObservationSink) Pending() int {
	return len(s.queue) - s.head
}
