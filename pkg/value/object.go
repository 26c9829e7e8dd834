package value

import "sort"

// Object is a nested key/value container with stable sorted-key iteration
// and clone-on-write sharing. The zero Object is an empty, writable object.
//
// Sharing is explicit: Clone returns a handle backed by the same store and
// marks it shared; the next write through either handle copies the store
// first, so a handle obtained before a write never observes it. Clone and
// writes on handles backed by the same store must not race.
type Object struct {
	s *store
}

type store struct {
	keys   []string // sorted ascending
	vals   []Value
	shared bool
}

// NewObject returns an empty object.
func NewObject() Object {
	return Object{}
}

// ObjectOf builds an object from a plain map.
func ObjectOf(m map[string]Value) Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make([]Value, len(keys))
	for i, k := range keys {
		vals[i] = m[k]
	}
	return Object{s: &store{keys: keys, vals: vals}}
}

// Len returns the number of entries.
func (o Object) Len() int {
	if o.s == nil {
		return 0
	}
	return len(o.s.keys)
}

// IsEmpty reports whether the object has no entries.
func (o Object) IsEmpty() bool {
	return o.Len() == 0
}

// Get returns the value stored under key.
func (o Object) Get(key string) (Value, bool) {
	if o.s == nil {
		return Undefined(), false
	}
	i := sort.SearchStrings(o.s.keys, key)
	if i < len(o.s.keys) && o.s.keys[i] == key {
		return o.s.vals[i], true
	}
	return Undefined(), false
}

// Keys returns the keys in iteration (sorted) order.
// The returned slice must not be modified.
func (o Object) Keys() []string {
	if o.s == nil {
		return nil
	}
	return o.s.keys
}

// At returns the i-th key and value in iteration order.
func (o Object) At(i int) (string, Value) {
	return o.s.keys[i], o.s.vals[i]
}

// Clone returns a handle to the same entries. Both handles stay valid and
// immutable with respect to each other: the first write through either one
// copies the backing store.
func (o *Object) Clone() Object {
	if o.s == nil {
		return Object{}
	}
	o.s.shared = true
	return Object{s: o.s}
}

// Set stores value under key, replacing any previous entry.
func (o *Object) Set(key string, v Value) {
	s := o.mutable(1)
	i := sort.SearchStrings(s.keys, key)
	if i < len(s.keys) && s.keys[i] == key {
		s.vals[i] = v
		return
	}
	s.keys = append(s.keys, "")
	s.vals = append(s.vals, Value{})
	copy(s.keys[i+1:], s.keys[i:])
	copy(s.vals[i+1:], s.vals[i:])
	s.keys[i] = key
	s.vals[i] = v
}

// Expand copies every entry of other into o.
func (o *Object) Expand(other Object) {
	for i := 0; i < other.Len(); i++ {
		k, v := other.At(i)
		o.Set(k, v)
	}
}

// mutable returns a store safe to write, copying it first when it is shared.
func (o *Object) mutable(grow int) *store {
	switch {
	case o.s == nil:
		o.s = &store{
			keys: make([]string, 0, grow),
			vals: make([]Value, 0, grow),
		}
	case o.s.shared:
		s := &store{
			keys: make([]string, len(o.s.keys), len(o.s.keys)+grow),
			vals: make([]Value, len(o.s.vals), len(o.s.vals)+grow),
		}
		copy(s.keys, o.s.keys)
		copy(s.vals, o.s.vals)
		o.s = s
	}
	return o.s
}

// Equal reports entry-wise equality in iteration order.
func (o Object) Equal(other Object) bool {
	if o.Len() != other.Len() {
		return false
	}
	for i := 0; i < o.Len(); i++ {
		ka, va := o.At(i)
		kb, vb := other.At(i)
		if ka != kb || !va.Equal(vb) {
			return false
		}
	}
	return true
}
