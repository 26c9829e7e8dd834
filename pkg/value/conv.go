package value

import (
	"fmt"
	"math"
	"math/big"
)

// CoercionError reports a failed conversion to a concrete scalar type.
// It embeds the rendered form of the offending value.
type CoercionError struct {
	Type  string
	Value Value
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot convert %s to %s: %s", e.Value.Kind(), e.Type, e.Value)
}

// ToBool coerces to bool.
func (v Value) ToBool() (bool, error) {
	if b, ok := v.AsBool(); ok {
		return b, nil
	}
	return false, &CoercionError{Type: "bool", Value: v}
}

// ToInt64 coerces to int64.
func (v Value) ToInt64() (int64, error) {
	if i, ok := v.AsI64(); ok {
		return i, nil
	}
	return 0, &CoercionError{Type: "int64", Value: v}
}

// ToInt32 coerces to int32.
func (v Value) ToInt32() (int32, error) {
	if i, ok := v.AsI64(); ok && i >= math.MinInt32 && i <= math.MaxInt32 {
		return int32(i), nil
	}
	return 0, &CoercionError{Type: "int32", Value: v}
}

// ToUint64 coerces to uint64.
func (v Value) ToUint64() (uint64, error) {
	if u, ok := v.AsU64(); ok {
		return u, nil
	}
	return 0, &CoercionError{Type: "uint64", Value: v}
}

// ToUint32 coerces to uint32.
func (v Value) ToUint32() (uint32, error) {
	if u, ok := v.AsU64(); ok && u <= math.MaxUint32 {
		return uint32(u), nil
	}
	return 0, &CoercionError{Type: "uint32", Value: v}
}

// ToFloat64 coerces to float64.
func (v Value) ToFloat64() (float64, error) {
	if f, ok := v.AsF64(); ok {
		return f, nil
	}
	return 0, &CoercionError{Type: "float64", Value: v}
}

// ToString coerces string and bytes kinds to a string.
func (v Value) ToString() (string, error) {
	if s, ok := v.AsStr(); ok {
		return s, nil
	}
	return "", &CoercionError{Type: "string", Value: v}
}

// FromAny converts a plain Go value (as produced by database/sql scanning
// or expression evaluation) into a Value.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return None()
	case Value:
		return x
	case Object:
		return FromObject(x)
	case bool:
		return Bool(x)
	case int:
		return I64(int64(x))
	case int16:
		return I64(int64(x))
	case int32:
		return I64(int64(x))
	case int64:
		return I64(x)
	case uint:
		return U64(uint64(x))
	case uint16:
		return U64(uint64(x))
	case uint32:
		return U64(uint64(x))
	case uint64:
		return U64(x)
	case float32:
		return F64(float64(x))
	case float64:
		return F64(x)
	case *big.Int:
		if x.Sign() < 0 {
			return I128(x)
		}
		return U128(x)
	case string:
		return String(x)
	case []byte:
		return Bytes(x)
	default:
		return Invalid(fmt.Errorf("unsupported Go type %T", v))
	}
}

// Bind converts a Value to the plain Go form accepted by database/sql
// statement parameters.
func (v Value) Bind() (any, error) {
	switch v.tag {
	case tagNone, tagUndefined:
		return nil, nil
	case tagBool:
		return v.b, nil
	case tagI64:
		return v.i, nil
	case tagU64:
		if v.u <= math.MaxInt64 {
			return int64(v.u), nil
		}
		return new(big.Int).SetUint64(v.u).String(), nil
	case tagF64:
		return v.f, nil
	case tagI128, tagU128:
		if v.big.IsInt64() {
			return v.big.Int64(), nil
		}
		return v.big.String(), nil
	case tagSmallStr, tagStr:
		return v.str, nil
	case tagBytes:
		return v.byt, nil
	case tagObject:
		return v.String(), nil
	default:
		return nil, fmt.Errorf("cannot bind %s as statement parameter", v.Kind())
	}
}
