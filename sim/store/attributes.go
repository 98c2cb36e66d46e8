// Package store holds the in-memory keyed records the kernel reads and writes
// through narrow contracts: per-person attribute values, locations, group
// memberships and resource levels. None of them know about filters, indexes
// or scheduling.
package store

import (
	"errors"
	"fmt"
	"math"

	"github.com/inference-sim/popsim/sim/model"
)

// ErrUnknown is wrapped by every error about an identifier the store was not
// configured with.
var ErrUnknown = errors.New("unknown identifier")

// AttributeDef configures one person attribute.
type AttributeDef struct {
	ID      model.AttributeID
	Kind    model.ValueKind
	Default model.Value
	// Indexed keeps a value -> people reverse index so the filter planner can
	// answer equality leaves from it.
	Indexed bool
	// TrackTimes records the simulated time of every assignment.
	TrackTimes bool
}

// column is the backing storage of one attribute. The concrete column is
// chosen once, from the attribute kind, when the attribute is defined.
type column interface {
	get(p model.PersonID) model.Value
	set(p model.PersonID, v model.Value)
}

// packedColumn stores bool and int attributes as raw int64s.
type packedColumn struct {
	kind model.ValueKind
	def  int64
	vals []int64
}

func (c *packedColumn) get(p model.PersonID) model.Value {
	raw := c.def
	if int(p) < len(c.vals) {
		raw = c.vals[p]
	}
	if c.kind == model.KindBool {
		return model.Bool(raw != 0)
	}
	return model.Int(raw)
}

func (c *packedColumn) set(p model.PersonID, v model.Value) {
	for int(p) >= len(c.vals) {
		c.vals = append(c.vals, c.def)
	}
	c.vals[p] = v.AsInt()
}

type floatColumn struct {
	def  float64
	vals []float64
}

func (c *floatColumn) get(p model.PersonID) model.Value {
	if int(p) < len(c.vals) {
		return model.Float(c.vals[p])
	}
	return model.Float(c.def)
}

func (c *floatColumn) set(p model.PersonID, v model.Value) {
	for int(p) >= len(c.vals) {
		c.vals = append(c.vals, c.def)
	}
	c.vals[p] = v.AsFloat()
}

// slotColumn stores any Value; used for strings.
type slotColumn struct {
	def  model.Value
	vals []model.Value
}

func (c *slotColumn) get(p model.PersonID) model.Value {
	if int(p) < len(c.vals) {
		return c.vals[p]
	}
	return c.def
}

func (c *slotColumn) set(p model.PersonID, v model.Value) {
	for int(p) >= len(c.vals) {
		c.vals = append(c.vals, c.def)
	}
	c.vals[p] = v
}

type attribute struct {
	def     AttributeDef
	col     column
	reverse map[model.Value]map[model.PersonID]struct{}
	times   map[model.PersonID]float64
}

// Attributes stores every person attribute value.
type Attributes struct {
	attrs map[model.AttributeID]*attribute
	order []model.AttributeID
}

func NewAttributes() *Attributes {
	return &Attributes{attrs: make(map[model.AttributeID]*attribute)}
}

// Define adds an attribute. The default value must be assignable to Kind.
// Assignable converts v for storage in an attribute of kind k. NaN is
// rejected because it never equals itself, so it could not be found again in
// a reverse index or compared for change.
func Assignable(k model.ValueKind, v model.Value) (model.Value, error) {
	cv, err := v.Coerce(k)
	if err != nil {
		return model.Value{}, err
	}
	if cv.Kind() == model.KindFloat && math.IsNaN(cv.AsFloat()) {
		return model.Value{}, fmt.Errorf("NaN is not a storable %s value", k)
	}
	return cv, nil
}

func (s *Attributes) Define(def AttributeDef) error {
	if def.ID == "" {
		return fmt.Errorf("attribute id must not be empty")
	}
	if _, dup := s.attrs[def.ID]; dup {
		return fmt.Errorf("attribute %q defined twice", def.ID)
	}
	if def.Kind == model.KindNone {
		return fmt.Errorf("attribute %q has no kind", def.ID)
	}
	if def.Default.IsNone() {
		def.Default = model.Zero(def.Kind)
	}
	dflt, err := Assignable(def.Kind, def.Default)
	if err != nil {
		return fmt.Errorf("attribute %q default: %w", def.ID, err)
	}
	def.Default = dflt
	a := &attribute{def: def}
	switch def.Kind {
	case model.KindBool, model.KindInt:
		a.col = &packedColumn{kind: def.Kind, def: dflt.AsInt()}
	case model.KindFloat:
		a.col = &floatColumn{def: dflt.AsFloat()}
	default:
		a.col = &slotColumn{def: dflt}
	}
	if def.Indexed {
		a.reverse = make(map[model.Value]map[model.PersonID]struct{})
	}
	if def.TrackTimes {
		a.times = make(map[model.PersonID]float64)
	}
	s.attrs[def.ID] = a
	s.order = append(s.order, def.ID)
	return nil
}

// IDs returns attribute ids in definition order.
func (s *Attributes) IDs() []model.AttributeID {
	return append([]model.AttributeID(nil), s.order...)
}

func (s *Attributes) get(id model.AttributeID) (*attribute, error) {
	a, ok := s.attrs[id]
	if !ok {
		return nil, fmt.Errorf("%w: attribute %q", ErrUnknown, id)
	}
	return a, nil
}

// Kind returns the kind of attribute id.
func (s *Attributes) Kind(id model.AttributeID) (model.ValueKind, bool) {
	a, ok := s.attrs[id]
	if !ok {
		return model.KindNone, false
	}
	return a.def.Kind, true
}

// Def returns the definition of attribute id.
func (s *Attributes) Def(id model.AttributeID) (AttributeDef, bool) {
	a, ok := s.attrs[id]
	if !ok {
		return AttributeDef{}, false
	}
	return a.def, true
}

// AddPerson records a new person with every attribute at its default (or at
// the value given in initial) as of time now.
func (s *Attributes) AddPerson(p model.PersonID, initial map[model.AttributeID]model.Value, now float64) error {
	values := make(map[model.AttributeID]model.Value, len(initial))
	for id, iv := range initial {
		a, err := s.get(id)
		if err != nil {
			return err
		}
		if values[id], err = Assignable(a.def.Kind, iv); err != nil {
			return fmt.Errorf("attribute %q: %w", id, err)
		}
	}
	for _, id := range s.order {
		a := s.attrs[id]
		v, ok := values[id]
		if !ok {
			v = a.def.Default
		}
		a.col.set(p, v)
		a.index(p, v)
		if a.times != nil {
			a.times[p] = now
		}
	}
	return nil
}

// RemovePerson drops p from every reverse index and timing table.
func (s *Attributes) RemovePerson(p model.PersonID) {
	for _, a := range s.attrs {
		a.unindex(p, a.col.get(p))
		if a.times != nil {
			delete(a.times, p)
		}
	}
}

func (a *attribute) index(p model.PersonID, v model.Value) {
	if a.reverse == nil {
		return
	}
	set, ok := a.reverse[v]
	if !ok {
		set = make(map[model.PersonID]struct{})
		a.reverse[v] = set
	}
	set[p] = struct{}{}
}

func (a *attribute) unindex(p model.PersonID, v model.Value) {
	if a.reverse == nil {
		return
	}
	if set, ok := a.reverse[v]; ok {
		delete(set, p)
		if len(set) == 0 {
			delete(a.reverse, v)
		}
	}
}

// Value returns p's value of attribute id.
func (s *Attributes) Value(p model.PersonID, id model.AttributeID) (model.Value, error) {
	a, err := s.get(id)
	if err != nil {
		return model.Value{}, err
	}
	return a.col.get(p), nil
}

// SetValue assigns v at time now and returns the previous value.
func (s *Attributes) SetValue(p model.PersonID, id model.AttributeID, v model.Value, now float64) (model.Value, error) {
	a, err := s.get(id)
	if err != nil {
		return model.Value{}, err
	}
	cv, err := Assignable(a.def.Kind, v)
	if err != nil {
		return model.Value{}, fmt.Errorf("attribute %q: %w", id, err)
	}
	prev := a.col.get(p)
	if prev != cv {
		a.unindex(p, prev)
		a.col.set(p, cv)
		a.index(p, cv)
	}
	if a.times != nil {
		a.times[p] = now
	}
	return prev, nil
}

// AssignmentTime returns when p's attribute id was last assigned. It fails
// for attributes that do not track times.
func (s *Attributes) AssignmentTime(p model.PersonID, id model.AttributeID) (float64, error) {
	a, err := s.get(id)
	if err != nil {
		return 0, err
	}
	if a.times == nil {
		return 0, fmt.Errorf("attribute %q does not track assignment times", id)
	}
	return a.times[p], nil
}

// Count returns how many people hold v. ok is false when attribute id has
// no reverse index.
func (s *Attributes) Count(id model.AttributeID, v model.Value) (int, bool) {
	a, found := s.attrs[id]
	if !found || a.reverse == nil {
		return 0, false
	}
	return len(a.reverse[v]), true
}

// People returns the people holding v, in no particular order. ok is false
// when attribute id has no reverse index.
func (s *Attributes) People(id model.AttributeID, v model.Value) ([]model.PersonID, bool) {
	a, found := s.attrs[id]
	if !found || a.reverse == nil {
		return nil, false
	}
	set := a.reverse[v]
	out := make([]model.PersonID, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out, true
}
