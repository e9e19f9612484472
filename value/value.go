// Package value implements the dynamic variant that flows through the
// compiler and renderer: Null | Bool | Int | Float | String | List | Map |
// Object, plus the capability-based accessor chain used to walk
// `base.k1.k2…` access expressions against caller-supplied data.
package value

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the active alternative of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
	KindObject
)

// Object is the capability contract for structured values that are
// neither a built-in list nor a built-in map: field/method access by
// name, first-overload-wins.
type Object interface {
	FieldByName(name string) (Value, bool)
	MethodByName(name string, args []Value) (Value, bool, error)
}

// Value is the variant used for every value flowing through the engine.
// The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	// m preserves insertion order via keys, mirroring ValueMap's contract.
	m    map[string]Value
	keys []string
	obj  Object
}

// Null is the absent/unset value.
var Null = Value{kind: KindNull}

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func List(items []Value) Value { return Value{kind: KindList, list: items} }

// NewObject wraps an Object implementation as a Value.
func NewObject(o Object) Value { return Value{kind: KindObject, obj: o} }

// NewMap builds a Map value preserving the given key order.
func NewMap(keys []string, m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, keys: append([]string(nil), keys...), m: cp}
}

// EmptyMap returns a Map value with no entries.
func EmptyMap() Value { return Value{kind: KindMap, m: map[string]Value{}} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// BoolValue returns the boolean payload; only meaningful when Kind()==KindBool.
func (v Value) BoolValue() bool { return v.b }

// IntValue returns the integer payload; only meaningful when Kind()==KindInt.
func (v Value) IntValue() int64 { return v.i }

// FloatValue returns the float payload; only meaningful when Kind()==KindFloat.
func (v Value) FloatValue() float64 { return v.f }

// StringValue returns the raw string payload; only meaningful when Kind()==KindString.
func (v Value) StringValue() string { return v.s }

// ListValue returns the element slice; only meaningful when Kind()==KindList.
func (v Value) ListValue() []Value { return v.list }

// Keys returns the insertion-ordered key list; only meaningful when Kind()==KindMap.
func (v Value) Keys() []string { return v.keys }

// ObjectValue returns the wrapped Object; only meaningful when Kind()==KindObject.
func (v Value) ObjectValue() Object { return v.obj }

// Get looks up a map key, returning Null if absent or not a Map.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Null, false
	}
	val, ok := v.m[key]
	return val, ok
}

// Index returns the i-th list element, bounds-checked.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindList || i < 0 || i >= len(v.list) {
		return Null, false
	}
	return v.list[i], true
}

// Len reports the natural length of strings, lists and maps; 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindString:
		return len([]rune(v.s))
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.keys)
	default:
		return 0
	}
}

// Truthy implements the truthiness rule: absent is false, boolean is
// itself, anything else is true.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != ""
	case KindList:
		return len(v.list) > 0
	case KindMap:
		return len(v.keys) > 0
	default:
		return true
	}
}

// Number coerces v to a float64 for arithmetic/comparison; non-numeric
// operands produce 0.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	case KindString:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64); err == nil {
			return f, true
		}
		return 0, false
	case KindBool:
		if v.b {
			return 1, false
		}
		return 0, false
	default:
		return 0, false
	}
}

// IsIntegral reports whether v is an Int (a Float holding a whole number
// does not count), used to decide Int-vs-Float arithmetic results.
func (v Value) IsIntegral() bool {
	return v.kind == KindInt
}

// String renders v to its natural string projection. Absent
// values render to the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		if v.b {
			return "1"
		}
		return ""
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		if math.Trunc(v.f) == v.f && !math.IsInf(v.f, 0) {
			return strconv.FormatFloat(v.f, 'f', 1, 64)
		}
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return strings.Join(parts, "")
	case KindMap:
		parts := make([]string, len(v.keys))
		for i, k := range v.keys {
			parts[i] = v.m[k].String()
		}
		return strings.Join(parts, "")
	case KindObject:
		if s, ok := v.obj.(fmt.Stringer); ok {
			return s.String()
		}
		return ""
	default:
		return ""
	}
}

// Equal implements the structural equality used by == and !=.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		// allow cross Int/Float numeric equality, matching "==" on numbers
		if (a.kind == KindInt || a.kind == KindFloat) && (b.kind == KindInt || b.kind == KindFloat) {
			af, _ := a.Number()
			bf, _ := b.Number()
			return af == bf
		}
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.keys) != len(b.keys) {
			return false
		}
		for _, k := range a.keys {
			bv, ok := b.m[k]
			if !ok || !Equal(a.m[k], bv) {
				return false
			}
		}
		return true
	case KindObject:
		return a.obj == b.obj
	default:
		return false
	}
}

// Contains implements the `in` operator: element equality on a
// list, substring-key equality on a map, substring containment on a string.
func Contains(needle, haystack Value) bool {
	switch haystack.kind {
	case KindList:
		for _, e := range haystack.list {
			if Equal(needle, e) {
				return true
			}
		}
		return false
	case KindMap, KindString:
		// an empty left operand never matches, regardless of what the
		// right operand holds.
		if needle.String() == "" {
			return false
		}
		if haystack.kind == KindMap {
			_, ok := haystack.m[needle.String()]
			return ok
		}
		return strings.Contains(haystack.s, needle.String())
	default:
		return false
	}
}

// Less implements the ordering comparisons (<, <=, >, >=); non-numeric
// operands compare false.
func Less(a, b Value) bool {
	af, aok := a.Number()
	bf, bok := b.Number()
	if !aok || !bok {
		return false
	}
	return af < bf
}

// SortKeys returns the map's keys sorted lexicographically, for callers
// that need a deterministic order other than insertion order.
func (v Value) SortKeys() []string {
	ks := append([]string(nil), v.keys...)
	sort.Strings(ks)
	return ks
}

// Walk walks an access chain base.k1.k2… against a caller-supplied
// Value, the variable-accessor capability every render-time lookup
// funnels through. Each
// step may be a string (map/object key) or int (list index). A failed
// step returns (Null, false) rather than an error.
func Walk(base Value, chain []Value) (Value, bool) {
	cur := base
	for _, step := range chain {
		next, ok := walkStep(cur, step)
		if !ok {
			return Null, false
		}
		cur = next
	}
	return cur, true
}

func walkStep(cur Value, step Value) (Value, bool) {
	switch cur.kind {
	case KindList:
		idx, ok := step.Number()
		if !ok {
			return Null, false
		}
		return cur.Index(int(idx))
	case KindMap:
		return cur.Get(step.String())
	case KindObject:
		name := step.String()
		if v, ok := cur.obj.FieldByName(name); ok {
			return v, true
		}
		if v, ok, err := cur.obj.MethodByName(name, nil); ok && err == nil {
			return v, true
		}
		return Null, false
	default:
		return Null, false
	}
}
