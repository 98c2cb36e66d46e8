package sim

import (
	"fmt"

	"github.com/inference-sim/popsim/sim/filter"
	"github.com/inference-sim/popsim/sim/model"
	"github.com/inference-sim/popsim/sim/population"
)

// indexHandle is the position of an entry in the registry arena. Handles are
// never reused, so a key removed and added again gets a fresh handle.
type indexHandle int

type registryEntry struct {
	key       string
	index     *population.Index
	partition *population.Partition
	deps      filter.Dependencies
	removed   bool
}

func (e *registryEntry) owner() model.ComponentID {
	if e.index != nil {
		return e.index.Owner()
	}
	return e.partition.Owner()
}

// indexRegistry holds every live index and partition and the routing tables
// that map a kind of state change to the entries it can affect. Caller keys
// are resolved to handles once, at the public boundary.
type indexRegistry struct {
	entries       []*registryEntry
	indexKeys     map[string]indexHandle
	partitionKeys map[string]indexHandle

	byAttribute   map[model.AttributeID][]indexHandle
	byResource    map[model.ResourceID][]indexHandle
	byRegion      []indexHandle
	byCompartment []indexHandle
	byGroup       []indexHandle
	all           []indexHandle
}

func newIndexRegistry() *indexRegistry {
	return &indexRegistry{
		indexKeys:     make(map[string]indexHandle),
		partitionKeys: make(map[string]indexHandle),
		byAttribute:   make(map[model.AttributeID][]indexHandle),
		byResource:    make(map[model.ResourceID][]indexHandle),
	}
}

func (r *indexRegistry) addIndex(key string, ix *population.Index) (indexHandle, error) {
	if _, dup := r.indexKeys[key]; dup {
		return 0, fmt.Errorf("%w: index %q", ErrDuplicateIndex, key)
	}
	h := r.add(&registryEntry{key: key, index: ix, deps: ix.Dependencies()})
	r.indexKeys[key] = h
	return h, nil
}

func (r *indexRegistry) addPartition(key string, pt *population.Partition) (indexHandle, error) {
	if _, dup := r.partitionKeys[key]; dup {
		return 0, fmt.Errorf("%w: partition %q", ErrDuplicateIndex, key)
	}
	h := r.add(&registryEntry{key: key, partition: pt, deps: pt.Dependencies()})
	r.partitionKeys[key] = h
	return h, nil
}

func (r *indexRegistry) add(e *registryEntry) indexHandle {
	h := indexHandle(len(r.entries))
	r.entries = append(r.entries, e)
	for a := range e.deps.Attributes {
		r.byAttribute[a] = append(r.byAttribute[a], h)
	}
	for res := range e.deps.Resources {
		r.byResource[res] = append(r.byResource[res], h)
	}
	if e.deps.Regions {
		r.byRegion = append(r.byRegion, h)
	}
	if e.deps.Compartments {
		r.byCompartment = append(r.byCompartment, h)
	}
	if e.deps.Groups {
		r.byGroup = append(r.byGroup, h)
	}
	r.all = append(r.all, h)
	return h
}

// index resolves a live index key.
func (r *indexRegistry) index(key string) (*registryEntry, error) {
	h, ok := r.indexKeys[key]
	if !ok {
		return nil, fmt.Errorf("%w: index %q", ErrUnknownIndex, key)
	}
	return r.entries[h], nil
}

// partition resolves a live partition key.
func (r *indexRegistry) partition(key string) (*registryEntry, error) {
	h, ok := r.partitionKeys[key]
	if !ok {
		return nil, fmt.Errorf("%w: partition %q", ErrUnknownIndex, key)
	}
	return r.entries[h], nil
}

// removeIndex drops an index owned by caller from every routing table.
func (r *indexRegistry) removeIndex(key string, caller model.ComponentID) error {
	return r.remove(r.indexKeys, "index", key, caller)
}

func (r *indexRegistry) removePartition(key string, caller model.ComponentID) error {
	return r.remove(r.partitionKeys, "partition", key, caller)
}

func (r *indexRegistry) remove(keys map[string]indexHandle, what, key string, caller model.ComponentID) error {
	h, ok := keys[key]
	if !ok {
		return fmt.Errorf("%w: %s %q", ErrUnknownIndex, what, key)
	}
	e := r.entries[h]
	if e.owner() != caller {
		return fmt.Errorf("%w: %s %q belongs to %s, not %s", ErrNotOwner, what, key, e.owner(), caller)
	}
	delete(keys, key)
	e.removed = true
	for a := range e.deps.Attributes {
		r.byAttribute[a] = without(r.byAttribute[a], h)
		if len(r.byAttribute[a]) == 0 {
			delete(r.byAttribute, a)
		}
	}
	for res := range e.deps.Resources {
		r.byResource[res] = without(r.byResource[res], h)
		if len(r.byResource[res]) == 0 {
			delete(r.byResource, res)
		}
	}
	r.byRegion = without(r.byRegion, h)
	r.byCompartment = without(r.byCompartment, h)
	r.byGroup = without(r.byGroup, h)
	r.all = without(r.all, h)
	return nil
}

func without(hs []indexHandle, h indexHandle) []indexHandle {
	for i, x := range hs {
		if x == h {
			return append(hs[:i:i], hs[i+1:]...)
		}
	}
	return hs
}

// resolve returns the entries behind hs. The slice is copied first so that
// routing stays stable if an entry is removed while the result is in use.
func (r *indexRegistry) resolve(hs []indexHandle) []*registryEntry {
	out := make([]*registryEntry, 0, len(hs))
	for _, h := range hs {
		out = append(out, r.entries[h])
	}
	return out
}

func (r *indexRegistry) forAttribute(a model.AttributeID) []*registryEntry {
	return r.resolve(r.byAttribute[a])
}

func (r *indexRegistry) forResource(res model.ResourceID) []*registryEntry {
	return r.resolve(r.byResource[res])
}

func (r *indexRegistry) forRegions() []*registryEntry      { return r.resolve(r.byRegion) }
func (r *indexRegistry) forCompartments() []*registryEntry { return r.resolve(r.byCompartment) }
func (r *indexRegistry) forGroups() []*registryEntry       { return r.resolve(r.byGroup) }
func (r *indexRegistry) everything() []*registryEntry      { return r.resolve(r.all) }

// Counts of live entries, for metrics.
func (r *indexRegistry) indexCount() int     { return len(r.indexKeys) }
func (r *indexRegistry) partitionCount() int { return len(r.partitionKeys) }
