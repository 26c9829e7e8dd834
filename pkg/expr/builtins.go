package expr

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"go.starlark.net/starlark"

	"github.com/rubeniskov/ripel/pkg/query"
	"github.com/rubeniskov/ripel/pkg/value"
)

func defaultGlobals() starlark.StringDict {
	return starlark.StringDict{
		"query":  starlark.NewBuiltin("query", builtinQuery),
		"filter": starlark.NewBuiltin("filter", builtinFilter),
		"limit":  starlark.NewBuiltin("limit", builtinLimit),
		"offset": starlark.NewBuiltin("offset", builtinOffset),
		"ulid":   starlark.NewBuiltin("ulid", builtinULID),
	}
}

// queryValue exposes a query snapshot to Starlark. Every method returns a
// new snapshot, matching the forking behavior of the Go side.
type queryValue struct {
	q query.Query
}

var (
	_ starlark.Value    = (*queryValue)(nil)
	_ starlark.HasAttrs = (*queryValue)(nil)
)

func (qv *queryValue) String() string        { return qv.q.String() }
func (qv *queryValue) Type() string          { return "query" }
func (qv *queryValue) Freeze()               {}
func (qv *queryValue) Truth() starlark.Bool  { return starlark.True }
func (qv *queryValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: query") }

var queryMethods = map[string]func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error){
	"filter":   queryFilter,
	"limit":    queryLimit,
	"offset":   queryOffset,
	"select":   querySelect,
	"order_by": queryOrderBy,
}

func (qv *queryValue) Attr(name string) (starlark.Value, error) {
	fn, ok := queryMethods[name]
	if !ok {
		return nil, nil // no such attribute
	}
	return starlark.NewBuiltin(name, fn).BindReceiver(qv), nil
}

func (qv *queryValue) AttrNames() []string {
	return []string{"filter", "limit", "offset", "order_by", "select"}
}

func recvQuery(b *starlark.Builtin) *queryValue {
	return b.Receiver().(*queryValue)
}

func builtinQuery(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var table string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &table); err != nil {
		return nil, err
	}
	return &queryValue{q: query.New(table)}, nil
}

func queryFilter(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("%s: filters are keyword arguments", b.Name())
	}
	qv := recvQuery(b)
	filters, err := kwargFilters(b.Name(), kwargs)
	if err != nil {
		return nil, err
	}
	return &queryValue{q: qv.q.Filter(filters)}, nil
}

func queryLimit(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var nv starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &nv); err != nil {
		return nil, err
	}
	n, err := intArg("limit", nv)
	if err != nil {
		return nil, err
	}
	return &queryValue{q: recvQuery(b).q.Limit(n)}, nil
}

func queryOffset(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var nv starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &nv); err != nil {
		return nil, err
	}
	n, err := intArg("offset", nv)
	if err != nil {
		return nil, err
	}
	return &queryValue{q: recvQuery(b).q.Offset(n)}, nil
}

func querySelect(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	cols := make([]string, 0, len(args))
	for _, a := range args {
		s, ok := a.(starlark.String)
		if !ok {
			return nil, fmt.Errorf("%s: selector must be a string, got %s", b.Name(), a.Type())
		}
		cols = append(cols, string(s))
	}
	q, err := recvQuery(b).q.Select(cols...)
	if err != nil {
		return nil, err
	}
	return &queryValue{q: q}, nil
}

func queryOrderBy(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var col string
	asc := true
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "col", &col, "asc?", &asc); err != nil {
		return nil, err
	}
	return &queryValue{q: recvQuery(b).q.OrderBy(col, asc)}, nil
}

// builtinFilter is the free-function form: filter(q, **kwargs).
func builtinFilter(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s: want a query and keyword filters", b.Name())
	}
	qv, ok := args[0].(*queryValue)
	if !ok {
		return nil, fmt.Errorf("%s: first argument must be a query, got %s", b.Name(), args[0].Type())
	}
	filters, err := kwargFilters(b.Name(), kwargs)
	if err != nil {
		return nil, err
	}
	return &queryValue{q: qv.q.Filter(filters)}, nil
}

func builtinLimit(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var qa, nv starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &qa, &nv); err != nil {
		return nil, err
	}
	qv, ok := qa.(*queryValue)
	if !ok {
		return nil, fmt.Errorf("%s: first argument must be a query, got %s", b.Name(), qa.Type())
	}
	n, err := intArg("limit", nv)
	if err != nil {
		return nil, err
	}
	return &queryValue{q: qv.q.Limit(n)}, nil
}

func builtinOffset(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var qa, nv starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &qa, &nv); err != nil {
		return nil, err
	}
	qv, ok := qa.(*queryValue)
	if !ok {
		return nil, fmt.Errorf("%s: first argument must be a query, got %s", b.Name(), qa.Type())
	}
	n, err := intArg("offset", nv)
	if err != nil {
		return nil, err
	}
	return &queryValue{q: qv.q.Offset(n)}, nil
}

func kwargFilters(name string, kwargs []starlark.Tuple) (map[string]value.Value, error) {
	filters := make(map[string]value.Value, len(kwargs))
	for _, kv := range kwargs {
		key := string(kv[0].(starlark.String))
		fv, err := fromStarlark(kv[1])
		if err != nil {
			return nil, fmt.Errorf("%s: filter %s: %w", name, key, err)
		}
		filters[key] = fv
	}
	return filters, nil
}

/* ------------------------------- ulid ---------------------------------- */

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// builtinULID derives a deterministic ULID: the time component comes from
// created_at and the randomness component from a hash of the seed, so the
// same inputs always produce the same identifier.
func builtinULID(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var seed, createdAt starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "seed", &seed, "created_at", &createdAt); err != nil {
		return nil, err
	}
	ms, err := timestampMillis(createdAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	sum := sha256.Sum256([]byte(seed.String()))

	var raw [16]byte
	raw[0] = byte(ms >> 40)
	raw[1] = byte(ms >> 32)
	raw[2] = byte(ms >> 24)
	raw[3] = byte(ms >> 16)
	raw[4] = byte(ms >> 8)
	raw[5] = byte(ms)
	copy(raw[6:], sum[:10])
	return starlark.String(encodeULID(raw)), nil
}

// timestampMillis accepts epoch seconds or milliseconds (ints, possibly as
// strings) and RFC 3339 or "2006-01-02 15:04:05" timestamps.
func timestampMillis(v starlark.Value) (uint64, error) {
	switch x := v.(type) {
	case starlark.Int:
		n, ok := x.Int64()
		if !ok || n < 0 {
			return 0, fmt.Errorf("created_at out of range: %s", x.String())
		}
		return epochMillis(n), nil
	case starlark.Float:
		f := float64(x)
		if f < 0 {
			return 0, fmt.Errorf("created_at out of range: %v", f)
		}
		return epochMillis(int64(f)), nil
	case starlark.String:
		s := string(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n >= 0 {
			return epochMillis(n), nil
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return uint64(t.UnixMilli()), nil
			}
		}
		return 0, fmt.Errorf("cannot parse created_at %q", s)
	default:
		return 0, fmt.Errorf("created_at must be an int or timestamp string, got %s", v.Type())
	}
}

// epochMillis treats magnitudes below 1e12 as seconds.
func epochMillis(n int64) uint64 {
	if n < 1_000_000_000_000 {
		return uint64(n) * 1000
	}
	return uint64(n)
}

// encodeULID renders 16 bytes as 26 Crockford base32 characters.
func encodeULID(raw [16]byte) string {
	n := new(big.Int).SetBytes(raw[:])
	base := big.NewInt(32)
	rem := new(big.Int)
	out := make([]byte, 26)
	for i := 25; i >= 0; i-- {
		n.DivMod(n, base, rem)
		out[i] = crockford[rem.Int64()]
	}
	return string(out)
}
