package model

import (
	"fmt"
	"strconv"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	KindNone ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
)

var valueKindNames = map[ValueKind]string{
	KindNone:   "none",
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
}

func (k ValueKind) String() string {
	if name, ok := valueKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("valuekind(%d)", uint8(k))
}

// ParseValueKind maps a configuration name to a ValueKind.
func ParseValueKind(s string) (ValueKind, error) {
	for k, name := range valueKindNames {
		if name == s && k != KindNone {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("unknown value kind %q", s)
}

// Value is a closed tagged union over the attribute types the kernel
// understands. It is comparable, so it can key a Go map directly.
// Booleans are stored in the integer slot (0 or 1).
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	s    string
}

func Bool(b bool) Value {
	if b {
		return Value{kind: KindBool, i: 1}
	}
	return Value{kind: KindBool}
}

func Int(i int64) Value     { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNone() bool    { return v.kind == KindNone }

// AsBool returns the boolean payload. It is false for every non-bool kind.
func (v Value) AsBool() bool { return v.kind == KindBool && v.i != 0 }

// AsInt returns the integer payload; floats are truncated.
func (v Value) AsInt() int64 {
	switch v.kind {
	case KindInt, KindBool:
		return v.i
	case KindFloat:
		return int64(v.f)
	}
	return 0
}

// AsFloat returns the numeric payload as a float64.
func (v Value) AsFloat() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt, KindBool:
		return float64(v.i)
	}
	return 0
}

func (v Value) AsString() string { return v.s }

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.AsBool())
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	}
	return "<none>"
}

func (v Value) numeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// Compare orders v against o. Ints and floats compare numerically with each
// other; every other pairing must share a kind.
func (v Value) Compare(o Value) (int, error) {
	switch {
	case v.numeric() && o.numeric():
		if v.kind == KindInt && o.kind == KindInt {
			return cmpOrdered(v.i, o.i), nil
		}
		return cmpOrdered(v.AsFloat(), o.AsFloat()), nil
	case v.kind != o.kind:
		return 0, fmt.Errorf("cannot compare %s with %s", v.kind, o.kind)
	case v.kind == KindBool:
		return cmpOrdered(v.i, o.i), nil
	case v.kind == KindString:
		return cmpOrdered(v.s, o.s), nil
	}
	return 0, nil
}

// Convertible reports whether v may be stored in an attribute of kind k.
func (v Value) Convertible(k ValueKind) bool {
	if v.kind == k {
		return true
	}
	return k == KindFloat && v.kind == KindInt
}

// Coerce converts v to kind k where Convertible allows it.
func (v Value) Coerce(k ValueKind) (Value, error) {
	if v.kind == k {
		return v, nil
	}
	if k == KindFloat && v.kind == KindInt {
		return Float(float64(v.i)), nil
	}
	return Value{}, fmt.Errorf("value %s is not assignable to %s", v, k)
}

type ordered interface {
	~int64 | ~float64 | ~string
}

func cmpOrdered[T ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Zero returns the zero value of kind k.
func Zero(k ValueKind) Value {
	switch k {
	case KindBool:
		return Bool(false)
	case KindInt:
		return Int(0)
	case KindFloat:
		return Float(0)
	case KindString:
		return String("")
	}
	return Value{}
}
