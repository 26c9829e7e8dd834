// Package value provides the engine-agnostic dynamic value representation:
// a compact, clone-cheap tagged value (Value) over scalars, strings, bytes
// and nested key/value objects, with sensible cross-kind equality for
// numbers and explicit, fallible coercions to concrete Go types.
package value

import (
	"fmt"
	"math"
	"math/big"
	"strings"
)

// Kind is the coarse classification of values.
type Kind int

const (
	KindUndefined Kind = iota
	KindNone
	KindBool
	KindNumber
	KindString
	KindBytes
	KindObject
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindObject:
		return "object"
	case KindInvalid:
		return "invalid value"
	default:
		return "unknown"
	}
}

type tag uint8

const (
	tagUndefined tag = iota
	tagNone
	tagBool
	tagI64
	tagU64
	tagF64
	tagI128
	tagU128
	tagSmallStr // stored in str, length <= smallStrLen
	tagStr      // stored in str
	tagBytes
	tagObject
	tagInvalid
)

// Strings up to this length use the small-string representation.
const smallStrLen = 24

// Value is a closed tagged union. The zero Value is undefined.
type Value struct {
	tag tag
	b   bool
	i   int64
	u   uint64
	f   float64
	big *big.Int // i128/u128
	str string
	byt []byte
	obj Object
	err error
}

// Undefined returns the absent value.
func Undefined() Value { return Value{tag: tagUndefined} }

// None returns the null value. None and Undefined are distinct.
func None() Value { return Value{tag: tagNone} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{tag: tagBool, b: b} }

// I64 returns a signed 64-bit integer value.
func I64(i int64) Value { return Value{tag: tagI64, i: i} }

// U64 returns an unsigned 64-bit integer value.
func U64(u uint64) Value { return Value{tag: tagU64, u: u} }

// F64 returns a float value.
func F64(f float64) Value { return Value{tag: tagF64, f: f} }

// I128 returns a signed 128-bit integer value. The argument is copied.
func I128(v *big.Int) Value { return Value{tag: tagI128, big: new(big.Int).Set(v)} }

// U128 returns an unsigned 128-bit integer value. The argument is copied.
func U128(v *big.Int) Value { return Value{tag: tagU128, big: new(big.Int).Set(v)} }

// String returns a string value. Short strings use the inline small-string
// form, longer ones the shared form; the two compare and render identically.
func String(s string) Value {
	if len(s) <= smallStrLen {
		return Value{tag: tagSmallStr, str: s}
	}
	return Value{tag: tagStr, str: s}
}

// Bytes returns a byte-string value. The slice is not copied.
func Bytes(b []byte) Value { return Value{tag: tagBytes, byt: b} }

// FromObject wraps an object container.
func FromObject(o Object) Value { return Value{tag: tagObject, obj: o} }

// Invalid returns an error-carrying value. Invalid values are equal only to
// the identical instance.
func Invalid(err error) Value { return Value{tag: tagInvalid, err: err} }

// Kind classifies the value. It is total.
func (v Value) Kind() Kind {
	switch v.tag {
	case tagUndefined:
		return KindUndefined
	case tagNone:
		return KindNone
	case tagBool:
		return KindBool
	case tagI64, tagU64, tagF64, tagI128, tagU128:
		return KindNumber
	case tagSmallStr, tagStr:
		return KindString
	case tagBytes:
		return KindBytes
	case tagObject:
		return KindObject
	default:
		return KindInvalid
	}
}

func (v Value) IsUndefined() bool { return v.tag == tagUndefined }
func (v Value) IsNone() bool      { return v.tag == tagNone }

// IsSome reports whether the value is neither none nor undefined.
func (v Value) IsSome() bool { return v.tag != tagNone && v.tag != tagUndefined }

func (v Value) IsNumber() bool { return v.Kind() == KindNumber }

func (v Value) IsInteger() bool {
	switch v.tag {
	case tagI64, tagU64, tagI128, tagU128:
		return true
	}
	return false
}

// Err returns the carried error for invalid values.
func (v Value) Err() error {
	if v.tag == tagInvalid {
		return v.err
	}
	return nil
}

// AsStr returns the string form for string and bytes kinds.
func (v Value) AsStr() (string, bool) {
	switch v.tag {
	case tagSmallStr, tagStr:
		return v.str, true
	case tagBytes:
		return string(v.byt), true
	}
	return "", false
}

// AsBytes returns the raw bytes for string and bytes kinds.
func (v Value) AsBytes() ([]byte, bool) {
	switch v.tag {
	case tagSmallStr, tagStr:
		return []byte(v.str), true
	case tagBytes:
		return v.byt, true
	}
	return nil, false
}

// AsBool reports the truthiness of scalar kinds.
func (v Value) AsBool() (bool, bool) {
	switch v.tag {
	case tagBool:
		return v.b, true
	case tagI64:
		return v.i != 0, true
	case tagU64:
		return v.u != 0, true
	case tagF64:
		return v.f != 0, true
	case tagI128, tagU128:
		return v.big.Sign() != 0, true
	case tagSmallStr, tagStr:
		return v.str != "", true
	case tagBytes:
		return len(v.byt) != 0, true
	}
	return false, false
}

// AsI64 returns the value as a signed 64-bit integer when it fits.
func (v Value) AsI64() (int64, bool) {
	switch v.tag {
	case tagI64:
		return v.i, true
	case tagU64:
		if v.u <= math.MaxInt64 {
			return int64(v.u), true
		}
	case tagF64:
		if !math.IsNaN(v.f) && !math.IsInf(v.f, 0) {
			return int64(v.f), true
		}
	case tagI128, tagU128:
		if v.big.IsInt64() {
			return v.big.Int64(), true
		}
	case tagBool:
		if v.b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// AsU64 returns the value as an unsigned 64-bit integer when it fits.
func (v Value) AsU64() (uint64, bool) {
	switch v.tag {
	case tagU64:
		return v.u, true
	case tagI64:
		if v.i >= 0 {
			return uint64(v.i), true
		}
	case tagF64:
		if !math.IsNaN(v.f) && !math.IsInf(v.f, 0) && v.f >= 0 {
			return uint64(v.f), true
		}
	case tagI128, tagU128:
		if v.big.IsUint64() {
			return v.big.Uint64(), true
		}
	case tagBool:
		if v.b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// AsF64 returns the value as a float.
func (v Value) AsF64() (float64, bool) {
	switch v.tag {
	case tagF64:
		return v.f, true
	case tagI64:
		return float64(v.i), true
	case tagU64:
		return float64(v.u), true
	case tagI128, tagU128:
		f, _ := new(big.Float).SetInt(v.big).Float64()
		return f, true
	case tagBool:
		if v.b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// AsObject returns the nested object container.
func (v Value) AsObject() (Object, bool) {
	if v.tag == tagObject {
		return v.obj, true
	}
	return Object{}, false
}

// Len returns the length of strings (in runes), bytes and objects.
func (v Value) Len() (int, bool) {
	switch v.tag {
	case tagSmallStr, tagStr:
		n := 0
		for range v.str {
			n++
		}
		return n, true
	case tagBytes:
		return len(v.byt), true
	case tagObject:
		return v.obj.Len(), true
	}
	return 0, false
}

// GetAttr looks up key on object-kind values. Missing keys and non-object
// values yield undefined, never an error.
func (v Value) GetAttr(key string) Value {
	if v.tag == tagObject {
		if got, ok := v.obj.Get(key); ok {
			return got
		}
	}
	return Undefined()
}

// String renders the value the way it would appear in diagnostics and
// lossy string conversions. Undefined renders empty.
func (v Value) String() string {
	switch v.tag {
	case tagUndefined:
		return ""
	case tagNone:
		return "none"
	case tagBool:
		if v.b {
			return "true"
		}
		return "false"
	case tagI64:
		return fmt.Sprintf("%d", v.i)
	case tagU64:
		return fmt.Sprintf("%d", v.u)
	case tagF64:
		if math.IsNaN(v.f) {
			return "NaN"
		}
		if math.IsInf(v.f, 1) {
			return "inf"
		}
		if math.IsInf(v.f, -1) {
			return "-inf"
		}
		s := fmt.Sprintf("%v", v.f)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case tagI128, tagU128:
		return v.big.String()
	case tagSmallStr, tagStr:
		return v.str
	case tagBytes:
		return string(v.byt)
	case tagObject:
		var sb strings.Builder
		sb.WriteByte('{')
		for i := 0; i < v.obj.Len(); i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			k, val := v.obj.At(i)
			fmt.Fprintf(&sb, "%q: %s", k, val.String())
		}
		sb.WriteByte('}')
		return sb.String()
	default:
		return fmt.Sprintf("<invalid value: %v>", v.err)
	}
}

/* ------------------------- cross-kind equality ------------------------- */

// Equal compares values. Numbers compare by mathematical value regardless of
// width, signedness or float/int representation; a float equals an integer
// only when it corresponds to it exactly. None and undefined each equal only
// themselves. Objects compare pairwise in iteration order. Invalid values
// compare equal only to the identical instance.
func (v Value) Equal(other Value) bool {
	switch {
	case v.tag == tagNone || v.tag == tagUndefined ||
		other.tag == tagNone || other.tag == tagUndefined:
		return v.tag == other.tag
	case v.tag == tagBool && other.tag == tagBool:
		return v.b == other.b
	case v.Kind() == KindString && other.Kind() == KindString:
		return v.str == other.str
	case v.tag == tagBytes && other.tag == tagBytes:
		return string(v.byt) == string(other.byt)
	case v.tag == tagObject && other.tag == tagObject:
		return v.obj.Equal(other.obj)
	case v.tag == tagInvalid || other.tag == tagInvalid:
		return v.tag == tagInvalid && other.tag == tagInvalid && v.err == other.err
	case v.IsNumber() && other.IsNumber():
		return numEqual(v, other)
	}
	return false
}

func numEqual(a, b Value) bool {
	// Float against float keeps IEEE semantics (NaN != NaN).
	if a.tag == tagF64 && b.tag == tagF64 {
		return a.f == b.f
	}
	if a.tag == tagF64 {
		a, b = b, a
	}
	if b.tag == tagF64 {
		f := b.f
		if math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f {
			return false
		}
		bi, _ := new(big.Float).SetFloat64(f).Int(nil)
		return a.bigInt().Cmp(bi) == 0
	}
	return a.bigInt().Cmp(b.bigInt()) == 0
}

// Big returns the wide-integer payload of 128-bit values. Callers must not
// modify the result. It is nil for every other kind.
func (v Value) Big() *big.Int {
	if v.tag == tagI128 || v.tag == tagU128 {
		return v.big
	}
	return nil
}

// bigInt widens any integer representation for comparison.
func (v Value) bigInt() *big.Int {
	switch v.tag {
	case tagI64:
		return big.NewInt(v.i)
	case tagU64:
		return new(big.Int).SetUint64(v.u)
	default:
		return v.big
	}
}
