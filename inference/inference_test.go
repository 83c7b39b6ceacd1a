package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quarreldb/quarrel/compiler/ir"
	"github.com/quarreldb/quarrel/schema"
)

func TestStructuralAggregateCardinality(t *testing.T) {
	intT := &schema.ScalarType{Name: schema.ParseName("std::int64")}
	anyT := &schema.PseudoType{Name: schema.ParseName("std::anytype")}

	agg := &schema.Callable{
		Name:   schema.ParseName("std::count"),
		Params: []*schema.Param{{Name: "s", Type: anyT, Modifier: schema.SetOf}},
		Return: intT,
	}
	assert.Equal(t, schema.One, Structural{}.InferCardinality(&ir.FunctionCall{Callable: agg}, nil),
		"aggregates collapse their set-of arguments")

	// A set-returning callable does not collapse even with SET OF input.
	expand := &schema.Callable{
		Name:      schema.ParseName("std::distinct"),
		Params:    []*schema.Param{{Name: "s", Type: anyT, Modifier: schema.SetOf}},
		Return:    anyT,
		ReturnMod: schema.SetOf,
	}
	assert.Equal(t, schema.Many, Structural{}.InferCardinality(&ir.FunctionCall{Callable: expand}, nil))

	plain := &schema.Callable{
		Name:   schema.ParseName("std::len"),
		Params: []*schema.Param{{Name: "s", Type: intT}},
		Return: intT,
	}
	assert.Equal(t, schema.Many, Structural{}.InferCardinality(&ir.FunctionCall{Callable: plain}, nil))
}
