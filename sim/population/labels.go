package population

import (
	"encoding/binary"
	"fmt"
	"reflect"
)

// labelTable interns the opaque labels of one partition dimension. Labels are
// stored once in an arena and referred to by dense handles everywhere else,
// so no caller-supplied value is hashed on the hot path after interning.
type labelTable struct {
	ids    map[any]uint32
	values []any
}

func newLabelTable() *labelTable {
	return &labelTable{ids: make(map[any]uint32)}
}

// hashable reports whether label can be a map key. The check looks at the
// stored values, so an interface field holding a slice is rejected too.
func hashable(label any) bool {
	return label == nil || reflect.ValueOf(label).Comparable()
}

func (lt *labelTable) intern(label any) (uint32, error) {
	if !hashable(label) {
		return 0, fmt.Errorf("partition label of type %T is not comparable", label)
	}
	if id, ok := lt.ids[label]; ok {
		return id, nil
	}
	id := uint32(len(lt.values))
	lt.ids[label] = id
	lt.values = append(lt.values, label)
	return id, nil
}

func (lt *labelTable) lookup(label any) (uint32, bool) {
	if !hashable(label) {
		return 0, false
	}
	id, ok := lt.ids[label]
	return id, ok
}

func (lt *labelTable) value(id uint32) any { return lt.values[id] }

// encodeKey packs a tuple of label handles into a map key.
func encodeKey(key []uint32) string {
	buf := make([]byte, 4*len(key))
	for i, id := range key {
		binary.LittleEndian.PutUint32(buf[4*i:], id)
	}
	return string(buf)
}
