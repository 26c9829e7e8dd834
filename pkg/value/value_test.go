package value

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindClassification(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want Kind
	}{
		{"undefined", Undefined(), KindUndefined},
		{"zero value", Value{}, KindUndefined},
		{"none", None(), KindNone},
		{"bool", Bool(true), KindBool},
		{"i64", I64(-3), KindNumber},
		{"u64", U64(3), KindNumber},
		{"f64", F64(1.5), KindNumber},
		{"i128", I128(big.NewInt(-1)), KindNumber},
		{"small string", String("abc"), KindString},
		{"large string", String("this string is long enough to not be small"), KindString},
		{"bytes", Bytes([]byte{1, 2}), KindBytes},
		{"object", FromObject(NewObject()), KindObject},
		{"invalid", Invalid(errors.New("boom")), KindInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Kind())
		})
	}
}

func TestNumericEqualityAcrossKinds(t *testing.T) {
	assert.True(t, I64(1).Equal(U64(1)))
	assert.True(t, U64(1).Equal(F64(1.0)))
	assert.True(t, I64(1).Equal(F64(1.0)))
	assert.True(t, I128(big.NewInt(42)).Equal(I64(42)))
	assert.True(t, U128(new(big.Int).SetUint64(7)).Equal(U64(7)))

	assert.False(t, I64(1).Equal(F64(1.5)))
	assert.False(t, I64(-1).Equal(U64(1<<63)))
	assert.False(t, F64(0).Equal(None()))

	// IEEE float semantics are kept for float/float.
	nan := F64(0)
	nan.f = nanFloat()
	assert.False(t, nan.Equal(nan))
}

func nanFloat() float64 {
	z := 0.0
	return z / z
}

func TestNoneUndefinedDistinct(t *testing.T) {
	assert.True(t, None().Equal(None()))
	assert.True(t, Undefined().Equal(Undefined()))
	assert.False(t, None().Equal(Undefined()))
	assert.False(t, Undefined().Equal(None()))
}

func TestStringEqualityIgnoresRepresentation(t *testing.T) {
	long := "a string that exceeds the inline threshold easily"
	assert.True(t, String(long).Equal(Value{tag: tagStr, str: long}))
	assert.True(t, String("x").Equal(String("x")))
	assert.False(t, String("x").Equal(String("y")))
}

func TestInvalidEqualsOnlyIdenticalInstance(t *testing.T) {
	err := errors.New("boom")
	a := Invalid(err)
	b := Invalid(err)
	c := Invalid(errors.New("boom"))

	assert.True(t, a.Equal(b), "same error instance")
	assert.False(t, a.Equal(c), "distinct instances with equal text")
	assert.False(t, a.Equal(I64(1)))
}

func TestGetAttrMissingKeyIsUndefined(t *testing.T) {
	obj := NewObject()
	obj.Set("x", I64(1))
	v := FromObject(obj)

	assert.True(t, v.GetAttr("x").Equal(I64(1)))
	assert.True(t, v.GetAttr("missing").IsUndefined())
	assert.True(t, I64(1).GetAttr("x").IsUndefined())
}

func TestCoercions(t *testing.T) {
	i, err := U64(7).ToInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(7), i)

	s, err := Bytes([]byte("hi")).ToString()
	require.NoError(t, err)
	assert.Equal(t, "hi", s)

	_, err = None().ToInt64()
	var cerr *CoercionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "int64", cerr.Type)
	assert.Contains(t, err.Error(), "none")

	_, err = String("nope").ToFloat64()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope", "error embeds the rendered value")
}

func TestDisplay(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Undefined(), ""},
		{None(), "none"},
		{Bool(true), "true"},
		{I64(-5), "-5"},
		{F64(2), "2.0"},
		{F64(2.5), "2.5"},
		{String("hey"), "hey"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.v.String())
	}

	obj := NewObject()
	obj.Set("b", I64(2))
	obj.Set("a", I64(1))
	assert.Equal(t, `{"a": 1, "b": 2}`, FromObject(obj).String())
}

func TestFromAnyRoundTrip(t *testing.T) {
	assert.True(t, FromAny(nil).IsNone())
	assert.True(t, FromAny(int32(5)).Equal(I64(5)))
	assert.True(t, FromAny(uint64(5)).Equal(U64(5)))
	assert.True(t, FromAny("s").Equal(String("s")))
	assert.True(t, FromAny([]byte("b")).Equal(Bytes([]byte("b"))))
	assert.Equal(t, KindInvalid, FromAny(struct{}{}).Kind())
}

func TestBind(t *testing.T) {
	got, err := I64(3).Bind()
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)

	got, err = None().Bind()
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = String("x").Bind()
	require.NoError(t, err)
	assert.Equal(t, "x", got)
}
