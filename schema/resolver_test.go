package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func castChainCatalog() (*MemCatalog, *ScalarType, *ScalarType, *ScalarType, *ScalarType) {
	int64T := scalar("std::int64", nil)
	float64T := scalar("std::float64", nil)
	decimalT := scalar("std::decimal", nil)
	strT := scalar("std::str", nil)
	cat := NewMemCatalog().
		AddType(int64T).AddType(float64T).AddType(decimalT).AddType(strT).
		AddCast(&Cast{From: int64T, To: float64T, AllowImplicit: true, Impl: "int_to_float"}).
		AddCast(&Cast{From: float64T, To: decimalT, AllowImplicit: true, Impl: "float_to_decimal"}).
		AddCast(&Cast{From: strT, To: int64T, AllowAssignment: true, Impl: "str_to_int"})
	return cat, int64T, float64T, decimalT, strT
}

func TestImplicitCastDistance(t *testing.T) {
	cat, int64T, float64T, decimalT, strT := castChainCatalog()
	r := NewResolver(cat)

	assert.Equal(t, 0, r.ImplicitCastDistance(int64T, int64T))
	assert.Equal(t, 1, r.ImplicitCastDistance(int64T, float64T))
	assert.Equal(t, 2, r.ImplicitCastDistance(int64T, decimalT), "chained casts accumulate hops")
	assert.Equal(t, -1, r.ImplicitCastDistance(float64T, int64T))
	assert.Equal(t, -1, r.ImplicitCastDistance(strT, int64T),
		"assignment-only casts do not participate in implicit conversion")

	// Second lookup hits the cache and must agree.
	assert.Equal(t, 2, r.ImplicitCastDistance(int64T, decimalT))
}

func TestImplicitCastDistanceSubtype(t *testing.T) {
	anyreal := scalar("std::anyreal", nil)
	int64T := scalar("std::int64", anyreal)
	r := NewResolver(NewMemCatalog().AddType(anyreal).AddType(int64T))
	assert.Equal(t, 0, r.ImplicitCastDistance(int64T, anyreal))
}

func TestFindCast(t *testing.T) {
	cat, int64T, float64T, _, strT := castChainCatalog()
	r := NewResolver(cat)

	cast := r.FindCast(int64T, float64T)
	require.NotNil(t, cast)
	assert.Equal(t, "int_to_float", cast.Impl)
	assert.Nil(t, r.FindCast(float64T, strT))
}

func TestAssignmentCastable(t *testing.T) {
	cat, int64T, float64T, _, strT := castChainCatalog()
	r := NewResolver(cat)

	assert.True(t, r.AssignmentCastable(int64T, float64T), "implicit implies assignment")
	assert.True(t, r.AssignmentCastable(strT, int64T))
	assert.False(t, r.AssignmentCastable(float64T, strT))
}

func TestCanonicalParams(t *testing.T) {
	int64T := scalar("std::int64", nil)
	f := &Callable{
		Name: ParseName("std::f"),
		Params: []*Param{
			{Name: "a", Type: int64T, Kind: Positional},
			{Name: "rest", Type: int64T, Kind: Variadic},
			{Name: "zeta", Type: int64T, Kind: NamedOnly},
			{Name: "alpha", Type: int64T, Kind: NamedOnly},
			{Name: "b", Type: int64T, Kind: Positional},
		},
	}
	var order []string
	for _, p := range f.CanonicalParams() {
		order = append(order, p.Name)
	}
	assert.Equal(t, []string{"alpha", "zeta", "a", "b", "rest"}, order)
	// The declared list is untouched.
	assert.Equal(t, "a", f.Params[0].Name)
}

func TestCastAsCallable(t *testing.T) {
	int64T := scalar("std::int64", nil)
	strT := scalar("std::str", nil)
	cast := &Cast{From: strT, To: int64T, Impl: "str_to_int"}
	c := cast.AsCallable()
	require.Len(t, c.Params, 2)
	assert.Equal(t, Type(strT), c.Params[0].Type)
	assert.Equal(t, Type(int64T), c.Params[1].Type)
	assert.Equal(t, Type(int64T), c.Return)
	assert.Equal(t, "str_to_int", c.Impl)
}
