package population

import (
	"fmt"
	"math/rand"

	"github.com/inference-sim/popsim/sim/filter"
	"github.com/inference-sim/popsim/sim/model"
)

// DimensionKind identifies the state a partition dimension is derived from.
type DimensionKind int

const (
	DimRegion DimensionKind = iota
	DimCompartment
	DimAttribute
	DimResource
	DimGroupTypes
)

// RegionDimension labels people by region. A nil Label uses the RegionID.
type RegionDimension struct {
	Label func(model.RegionID) any
}

// CompartmentDimension labels people by compartment. A nil Label uses the
// CompartmentID.
type CompartmentDimension struct {
	Label func(model.CompartmentID) any
}

// AttributeDimension labels people by an attribute value. A nil Label uses
// the value itself.
type AttributeDimension struct {
	Attribute model.AttributeID
	Label     func(model.Value) any
}

// ResourceDimension labels people by a resource level. A nil Label uses the
// level itself.
type ResourceDimension struct {
	Resource model.ResourceID
	Label    func(int64) any
}

// GroupTypeDimension labels people by how many groups of each listed type
// they belong to. Label must not be nil.
type GroupTypeDimension struct {
	Types []model.GroupTypeID
	Label func(counts map[model.GroupTypeID]int) any
}

// Definition configures a Partition. At least one dimension is required.
// Filter restricts which people are partitioned; nil means everybody.
type Definition struct {
	Region      *RegionDimension
	Compartment *CompartmentDimension
	Attributes  []AttributeDimension
	Resources   []ResourceDimension
	GroupTypes  *GroupTypeDimension
	Filter      *filter.Filter
}

// Validate rejects definitions that name no dimension, repeat a dimension,
// or reference state the source does not know about.
func (d Definition) Validate(src filter.Source) error {
	if d.Region == nil && d.Compartment == nil && len(d.Attributes) == 0 &&
		len(d.Resources) == 0 && d.GroupTypes == nil {
		return fmt.Errorf("partition definition has no dimensions")
	}
	seenAttr := make(map[model.AttributeID]bool)
	for _, a := range d.Attributes {
		if seenAttr[a.Attribute] {
			return fmt.Errorf("partition definition repeats attribute %q", a.Attribute)
		}
		seenAttr[a.Attribute] = true
		if _, ok := src.AttributeKind(a.Attribute); !ok {
			return fmt.Errorf("partition definition references unknown attribute %q", a.Attribute)
		}
	}
	seenRes := make(map[model.ResourceID]bool)
	for _, r := range d.Resources {
		if seenRes[r.Resource] {
			return fmt.Errorf("partition definition repeats resource %q", r.Resource)
		}
		seenRes[r.Resource] = true
		if !src.KnownResource(r.Resource) {
			return fmt.Errorf("partition definition references unknown resource %q", r.Resource)
		}
	}
	if d.GroupTypes != nil {
		if d.GroupTypes.Label == nil {
			return fmt.Errorf("partition group-type dimension needs a label function")
		}
		if len(d.GroupTypes.Types) == 0 {
			return fmt.Errorf("partition group-type dimension lists no group types")
		}
		for _, t := range d.GroupTypes.Types {
			if !src.KnownGroupType(t) {
				return fmt.Errorf("partition definition references unknown group type %q", t)
			}
		}
	}
	if d.Filter != nil {
		return filter.Validate(d.Filter, src)
	}
	return nil
}

type dimension struct {
	kind      DimensionKind
	attribute model.AttributeID
	resource  model.ResourceID
	label     func(p model.PersonID) any
	labels    *labelTable
}

type bucket struct {
	key     []uint32
	members *Adaptive
}

// Partition keeps every person that passes its filter in exactly one bucket,
// keyed by the tuple of that person's labels across all dimensions.
type Partition struct {
	owner      model.ComponentID
	dims       []*dimension
	filter     *filter.Filter
	deps       filter.Dependencies
	src        filter.Source
	thresholds Thresholds

	buckets  []*bucket
	byKey    map[string]int
	personAt map[model.PersonID]*bucket
	keyOf    map[model.PersonID][]uint32
	onSwitch SwitchFunc
}

// NewPartition builds an empty partition from a validated definition.
func NewPartition(owner model.ComponentID, def Definition, src filter.Source, thresholds Thresholds) *Partition {
	f := def.Filter
	if f == nil {
		f = filter.All()
	}
	pt := &Partition{
		owner:      owner,
		filter:     f,
		deps:       f.Dependencies(),
		src:        src,
		thresholds: thresholds,
		byKey:      make(map[string]int),
		personAt:   make(map[model.PersonID]*bucket),
		keyOf:      make(map[model.PersonID][]uint32),
	}
	if d := def.Region; d != nil {
		label := d.Label
		pt.addDim(&dimension{kind: DimRegion, label: func(p model.PersonID) any {
			r := src.PersonRegion(p)
			if label == nil {
				return r
			}
			return label(r)
		}})
	}
	if d := def.Compartment; d != nil {
		label := d.Label
		pt.addDim(&dimension{kind: DimCompartment, label: func(p model.PersonID) any {
			c := src.PersonCompartment(p)
			if label == nil {
				return c
			}
			return label(c)
		}})
	}
	for _, d := range def.Attributes {
		a, label := d.Attribute, d.Label
		pt.addDim(&dimension{kind: DimAttribute, attribute: a, label: func(p model.PersonID) any {
			v := src.AttributeValue(p, a)
			if label == nil {
				return v
			}
			return label(v)
		}})
	}
	for _, d := range def.Resources {
		r, label := d.Resource, d.Label
		pt.addDim(&dimension{kind: DimResource, resource: r, label: func(p model.PersonID) any {
			level := src.ResourceLevel(p, r)
			if label == nil {
				return level
			}
			return label(level)
		}})
	}
	if d := def.GroupTypes; d != nil {
		types, label := append([]model.GroupTypeID(nil), d.Types...), d.Label
		pt.addDim(&dimension{kind: DimGroupTypes, label: func(p model.PersonID) any {
			counts := make(map[model.GroupTypeID]int, len(types))
			for _, t := range types {
				counts[t] = src.GroupCountForPerson(p, t)
			}
			return label(counts)
		}})
	}
	return pt
}

func (pt *Partition) addDim(d *dimension) {
	d.labels = newLabelTable()
	pt.dims = append(pt.dims, d)
}

func (pt *Partition) Owner() model.ComponentID { return pt.owner }

// Dependencies merges what the filter depends on with the state every
// dimension is derived from.
func (pt *Partition) Dependencies() filter.Dependencies {
	d := pt.filter.Dependencies()
	for _, dim := range pt.dims {
		switch dim.kind {
		case DimRegion:
			d.Regions = true
		case DimCompartment:
			d.Compartments = true
		case DimAttribute:
			d.Attributes[dim.attribute] = true
		case DimResource:
			d.Resources[dim.resource] = true
		case DimGroupTypes:
			d.Groups = true
		}
	}
	return d
}

// OnSwitch forwards representation changes of every bucket container.
func (pt *Partition) OnSwitch(fn SwitchFunc) {
	pt.onSwitch = fn
	for _, b := range pt.buckets {
		b.members.OnSwitch(fn)
	}
}

// Initialize places every person the planner finds for the filter.
func (pt *Partition) Initialize() error {
	for _, p := range filter.NewPlanner(pt.src).Materialize(pt.filter) {
		if err := pt.place(p); err != nil {
			return err
		}
	}
	return nil
}

// Contains reports whether p is in any bucket.
func (pt *Partition) Contains(p model.PersonID) bool {
	_, ok := pt.personAt[p]
	return ok
}

// Size returns the number of partitioned people.
func (pt *Partition) Size() int { return len(pt.personAt) }

// BucketCount returns the number of non-empty buckets.
func (pt *Partition) BucketCount() int {
	n := 0
	for _, b := range pt.buckets {
		if b.members.Size() > 0 {
			n++
		}
	}
	return n
}

func (pt *Partition) computeKey(p model.PersonID) ([]uint32, error) {
	key := make([]uint32, len(pt.dims))
	for i, d := range pt.dims {
		id, err := d.labels.intern(d.label(p))
		if err != nil {
			return nil, err
		}
		key[i] = id
	}
	return key, nil
}

// bucketFor returns the bucket for key, creating it if needed. An existing
// bucket that emptied out is replaced with a fresh container here, which is
// the only place empty buckets are pruned.
func (pt *Partition) bucketFor(key []uint32) *bucket {
	k := encodeKey(key)
	if i, ok := pt.byKey[k]; ok {
		b := pt.buckets[i]
		if b.members.Size() == 0 {
			b.members = pt.newContainer()
		}
		return b
	}
	b := &bucket{key: key, members: pt.newContainer()}
	pt.byKey[k] = len(pt.buckets)
	pt.buckets = append(pt.buckets, b)
	return b
}

func (pt *Partition) newContainer() *Adaptive {
	c := NewAdaptive(pt.src.PopulationCount, pt.thresholds)
	c.OnSwitch(pt.onSwitch)
	return c
}

func (pt *Partition) place(p model.PersonID) error {
	key, err := pt.computeKey(p)
	if err != nil {
		return err
	}
	b := pt.bucketFor(key)
	b.members.Add(p)
	pt.personAt[p] = b
	pt.keyOf[p] = key
	return nil
}

// Remove takes p out of the partition and reports whether it was present.
func (pt *Partition) Remove(p model.PersonID) bool {
	b, ok := pt.personAt[p]
	if !ok {
		return false
	}
	b.members.Remove(p)
	delete(pt.personAt, p)
	delete(pt.keyOf, p)
	return true
}

// Add re-tests p against the filter and places it if it matches. Used for
// people entering the simulation.
func (pt *Partition) Add(p model.PersonID) error {
	if _, ok := pt.personAt[p]; ok {
		return nil
	}
	if !filter.Evaluate(pt.filter, pt.src, p) {
		return nil
	}
	return pt.place(p)
}

// update reacts to one state change of p. filterAffected says whether the
// change can alter filter membership; affects selects the dimensions whose
// label must be recomputed. Only a changed label moves p between buckets.
// It reports whether p changed bucket, entered or left.
func (pt *Partition) update(p model.PersonID, filterAffected bool, affects func(*dimension) bool) (bool, error) {
	_, present := pt.personAt[p]
	if filterAffected {
		matches := filter.Evaluate(pt.filter, pt.src, p)
		switch {
		case matches && !present:
			return true, pt.place(p)
		case !matches && present:
			return pt.Remove(p), nil
		}
	}
	if !present {
		return false, nil
	}
	key := pt.keyOf[p]
	var next []uint32
	for i, d := range pt.dims {
		if !affects(d) {
			continue
		}
		id, err := d.labels.intern(d.label(p))
		if err != nil {
			return false, err
		}
		if id != key[i] {
			if next == nil {
				next = append([]uint32(nil), key...)
			}
			next[i] = id
		}
	}
	if next == nil {
		return false, nil
	}
	pt.personAt[p].members.Remove(p)
	b := pt.bucketFor(next)
	b.members.Add(p)
	pt.personAt[p] = b
	pt.keyOf[p] = next
	return true, nil
}

func (pt *Partition) UpdateRegion(p model.PersonID) (bool, error) {
	return pt.update(p, pt.deps.Regions, func(d *dimension) bool { return d.kind == DimRegion })
}

func (pt *Partition) UpdateCompartment(p model.PersonID) (bool, error) {
	return pt.update(p, pt.deps.Compartments, func(d *dimension) bool { return d.kind == DimCompartment })
}

func (pt *Partition) UpdateAttribute(p model.PersonID, a model.AttributeID) (bool, error) {
	return pt.update(p, pt.deps.DependsOnAttribute(a), func(d *dimension) bool {
		return d.kind == DimAttribute && d.attribute == a
	})
}

func (pt *Partition) UpdateResource(p model.PersonID, r model.ResourceID) (bool, error) {
	return pt.update(p, pt.deps.DependsOnResource(r), func(d *dimension) bool {
		return d.kind == DimResource && d.resource == r
	})
}

func (pt *Partition) UpdateGroups(p model.PersonID) (bool, error) {
	return pt.update(p, pt.deps.Groups, func(d *dimension) bool { return d.kind == DimGroupTypes })
}

// Query selects buckets by label. Dimensions left unset match any label.
type Query struct {
	region      *any
	compartment *any
	attributes  map[model.AttributeID]any
	resources   map[model.ResourceID]any
	groupTypes  *any
}

func NewQuery() *Query {
	return &Query{
		attributes: make(map[model.AttributeID]any),
		resources:  make(map[model.ResourceID]any),
	}
}

func (q *Query) Region(label any) *Query      { q.region = &label; return q }
func (q *Query) Compartment(label any) *Query { q.compartment = &label; return q }
func (q *Query) GroupTypes(label any) *Query  { q.groupTypes = &label; return q }

func (q *Query) Attribute(a model.AttributeID, label any) *Query {
	q.attributes[a] = label
	return q
}

func (q *Query) Resource(r model.ResourceID, label any) *Query {
	q.resources[r] = label
	return q
}

// constraint is a resolved query slot: the wanted label handle, or any.
type constraint struct {
	set bool
	id  uint32
}

// resolve maps q onto the partition's dimensions. matchable is false when a
// requested label was never seen, in which case no bucket can match.
func (pt *Partition) resolve(q *Query) (cs []constraint, matchable bool, err error) {
	if q == nil {
		q = NewQuery()
	}
	cs = make([]constraint, len(pt.dims))
	matchable = true
	used := 0
	want := func(i int, label any) {
		used++
		id, ok := pt.dims[i].labels.lookup(label)
		if !ok {
			matchable = false
			return
		}
		cs[i] = constraint{set: true, id: id}
	}
	for i, d := range pt.dims {
		switch d.kind {
		case DimRegion:
			if q.region != nil {
				want(i, *q.region)
			}
		case DimCompartment:
			if q.compartment != nil {
				want(i, *q.compartment)
			}
		case DimAttribute:
			if label, ok := q.attributes[d.attribute]; ok {
				want(i, label)
			}
		case DimResource:
			if label, ok := q.resources[d.resource]; ok {
				want(i, label)
			}
		case DimGroupTypes:
			if q.groupTypes != nil {
				want(i, *q.groupTypes)
			}
		}
	}
	requested := len(q.attributes) + len(q.resources)
	for _, ptr := range []*any{q.region, q.compartment, q.groupTypes} {
		if ptr != nil {
			requested++
		}
	}
	if used != requested {
		return nil, false, fmt.Errorf("partition query references a dimension the partition does not define")
	}
	return cs, matchable, nil
}

// matching returns the buckets selected by q, in creation order.
func (pt *Partition) matching(q *Query) ([]*bucket, error) {
	cs, matchable, err := pt.resolve(q)
	if err != nil || !matchable {
		return nil, err
	}
	full := true
	key := make([]uint32, len(cs))
	for i, c := range cs {
		full = full && c.set
		key[i] = c.id
	}
	if full {
		if i, ok := pt.byKey[encodeKey(key)]; ok {
			return []*bucket{pt.buckets[i]}, nil
		}
		return nil, nil
	}
	var out []*bucket
	for _, b := range pt.buckets {
		ok := true
		for i, c := range cs {
			if c.set && b.key[i] != c.id {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// QuerySize returns how many people fall in buckets selected by q.
func (pt *Partition) QuerySize(q *Query) (int, error) {
	bs, err := pt.matching(q)
	n := 0
	for _, b := range bs {
		n += b.members.Size()
	}
	return n, err
}

// QueryContains reports whether p is in a bucket selected by q.
func (pt *Partition) QueryContains(p model.PersonID, q *Query) (bool, error) {
	bs, err := pt.matching(q)
	if err != nil {
		return false, err
	}
	at, ok := pt.personAt[p]
	if !ok {
		return false, nil
	}
	for _, b := range bs {
		if b == at {
			return true, nil
		}
	}
	return false, nil
}

// QueryMembers returns the people in buckets selected by q.
func (pt *Partition) QueryMembers(q *Query) ([]model.PersonID, error) {
	bs, err := pt.matching(q)
	var out []model.PersonID
	for _, b := range bs {
		out = append(out, b.members.Members()...)
	}
	return out, err
}

// QueryRandom draws uniformly from the people selected by q other than
// exclude, weighting each bucket by its eligible size.
func (pt *Partition) QueryRandom(rng *rand.Rand, q *Query, exclude model.PersonID) (model.PersonID, bool, error) {
	bs, err := pt.matching(q)
	if err != nil {
		return model.NoPerson, false, err
	}
	if len(bs) == 1 {
		p, ok := bs[0].members.Random(rng, exclude)
		return p, ok, nil
	}
	weights := make([]int, len(bs))
	total := 0
	for i, b := range bs {
		weights[i] = candidateCount(b.members, exclude)
		total += weights[i]
	}
	if total == 0 {
		return model.NoPerson, false, nil
	}
	r := rng.Intn(total)
	for i, b := range bs {
		if r < weights[i] {
			p, ok := b.members.Random(rng, exclude)
			return p, ok, nil
		}
		r -= weights[i]
	}
	return model.NoPerson, false, nil
}

// Labels returns p's label tuple in dimension order, or ok=false if p is not
// partitioned.
func (pt *Partition) Labels(p model.PersonID) ([]any, bool) {
	key, ok := pt.keyOf[p]
	if !ok {
		return nil, false
	}
	out := make([]any, len(key))
	for i, id := range key {
		out[i] = pt.dims[i].labels.value(id)
	}
	return out, true
}
