package expr

import (
	"fmt"
	"math"

	"go.starlark.net/starlark"

	"github.com/rubeniskov/ripel/pkg/value"
)

// toStarlark converts a dynamic value into its Starlark form. Undefined and
// none both map to None; the distinction does not survive a round trip.
func toStarlark(v value.Value) starlark.Value {
	switch v.Kind() {
	case value.KindUndefined, value.KindNone:
		return starlark.None
	case value.KindBool:
		b, _ := v.AsBool()
		return starlark.Bool(b)
	case value.KindNumber:
		if !v.IsInteger() {
			f, _ := v.AsF64()
			return starlark.Float(f)
		}
		if i, ok := v.AsI64(); ok {
			return starlark.MakeInt64(i)
		}
		if u, ok := v.AsU64(); ok {
			return starlark.MakeUint64(u)
		}
		return starlark.MakeBigInt(v.Big())
	case value.KindString:
		s, _ := v.AsStr()
		return starlark.String(s)
	case value.KindBytes:
		b, _ := v.AsBytes()
		return starlark.Bytes(b)
	case value.KindObject:
		obj, _ := v.AsObject()
		return objectValue{obj: obj}
	default:
		return starlark.None
	}
}

// fromStarlark converts an evaluation result back into a dynamic value.
// Sequence types have no dynamic-value representation and are rejected.
func fromStarlark(v starlark.Value) (value.Value, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return value.None(), nil
	case starlark.Bool:
		return value.Bool(bool(x)), nil
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return value.I64(i), nil
		}
		if u, ok := x.Uint64(); ok {
			return value.U64(u), nil
		}
		bi := x.BigInt()
		if bi.Sign() < 0 {
			return value.I128(bi), nil
		}
		return value.U128(bi), nil
	case starlark.Float:
		return value.F64(float64(x)), nil
	case starlark.String:
		return value.String(string(x)), nil
	case starlark.Bytes:
		return value.Bytes([]byte(x)), nil
	case objectValue:
		return value.FromObject(x.obj), nil
	case *starlark.Dict:
		obj := value.NewObject()
		for _, kv := range x.Items() {
			key, ok := kv[0].(starlark.String)
			if !ok {
				return value.Value{}, fmt.Errorf("dict key %s is not a string", kv[0].Type())
			}
			fv, err := fromStarlark(kv[1])
			if err != nil {
				return value.Value{}, err
			}
			obj.Set(string(key), fv)
		}
		return value.FromObject(obj), nil
	case *queryValue:
		return value.Value{}, fmt.Errorf("expression evaluated to a query, not a value")
	default:
		return value.Value{}, fmt.Errorf("cannot represent %s result", v.Type())
	}
}

// objectValue exposes a dynamic object to Starlark with both attribute
// access (parent.created_at) and mapping access (parent["created_at"]).
type objectValue struct {
	obj value.Object
}

var (
	_ starlark.Value    = objectValue{}
	_ starlark.HasAttrs = objectValue{}
	_ starlark.Mapping  = objectValue{}
)

func (o objectValue) String() string        { return value.FromObject(o.obj).String() }
func (o objectValue) Type() string          { return "object" }
func (o objectValue) Freeze()               {}
func (o objectValue) Truth() starlark.Bool  { return starlark.Bool(!o.obj.IsEmpty()) }
func (o objectValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: object") }

// Attr resolves missing fields to None rather than failing, matching
// attribute lookup on dynamic values.
func (o objectValue) Attr(name string) (starlark.Value, error) {
	if v, ok := o.obj.Get(name); ok {
		return toStarlark(v), nil
	}
	return starlark.None, nil
}

func (o objectValue) AttrNames() []string {
	return append([]string(nil), o.obj.Keys()...)
}

func (o objectValue) Get(k starlark.Value) (starlark.Value, bool, error) {
	key, ok := k.(starlark.String)
	if !ok {
		return nil, false, fmt.Errorf("object key must be a string, got %s", k.Type())
	}
	v, ok := o.obj.Get(string(key))
	if !ok {
		return starlark.None, false, nil
	}
	return toStarlark(v), true, nil
}

func (o objectValue) Len() int { return o.obj.Len() }

// intArg narrows a Starlark value to a non-negative int for limit/offset.
func intArg(name string, v starlark.Value) (int, error) {
	i, ok := v.(starlark.Int)
	if !ok {
		return 0, fmt.Errorf("%s must be an int, got %s", name, v.Type())
	}
	n, ok := i.Int64()
	if !ok || n < 0 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%s out of range: %s", name, i.String())
	}
	return int(n), nil
}
