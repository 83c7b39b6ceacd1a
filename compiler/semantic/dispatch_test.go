package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarreldb/quarrel/compiler/ast"
	"github.com/quarreldb/quarrel/compiler/ir"
	"github.com/quarreldb/quarrel/compiler/qerror"
)

func TestConstantFolding(t *testing.T) {
	out := mustCompile(t, tBin("+", tInt("1"), tInt("2")))
	lit := out.Set.Expr.(*ir.Literal)
	assert.Equal(t, "3", lit.Value)
	assert.Equal(t, "std::int64", out.Set.Type.TypeName())

	out = mustCompile(t, tBin("++", tStr("ab"), tStr("cd")))
	lit = out.Set.Expr.(*ir.Literal)
	assert.Equal(t, "abcd", lit.Value)
}

func TestFoldingSuppressedOnFailure(t *testing.T) {
	// Division-style failures suppress the fold; the call compiles
	// normally and any error is the runtime's to raise.
	out := mustCompile(t, tBin("%", tInt("7"), tInt("0")))
	call := out.Set.Expr.(*ir.OperatorCall)
	assert.Equal(t, "int_mod", call.Callable.Impl)
}

func TestOperatorImplicitCastResolution(t *testing.T) {
	// Mixed int/float operands bind the float overload through the
	// implicit cast; no fold applies across distinct literal types.
	out := mustCompile(t, tBin("+", tInt("1"), tFloat("1.5")))
	call := out.Set.Expr.(*ir.OperatorCall)
	assert.Equal(t, "float_plus", call.Callable.Impl)
	assert.Equal(t, "std::float64", out.Set.Type.TypeName())
}

func TestUnaryOp(t *testing.T) {
	out := mustCompile(t, &ast.UnaryOp{Op: "-", Operand: tInt("1")})
	call := out.Set.Expr.(*ir.OperatorCall)
	assert.Equal(t, "int_neg", call.Callable.Impl)
}

func TestOperatorUndefined(t *testing.T) {
	_, err := compile(t, tBin("@@", tInt("1"), tInt("2")))
	qe := qerrOf(t, err)
	assert.Equal(t, qerror.Reference, qe.Class)
	assert.Contains(t, qe.Msg, "not defined")
}

func TestOperatorNoOverload(t *testing.T) {
	_, err := compile(t, tBin("%", tStr("a"), tStr("b")))
	qe := qerrOf(t, err)
	assert.Equal(t, qerror.Type, qe.Class)
	assert.Contains(t, qe.Msg, "cannot be applied")
}

func TestIfElse(t *testing.T) {
	out := mustCompile(t, &ast.IfElse{
		Cond:    tBin(">", tInt("1"), tInt("0")),
		IfTrue:  tInt("1"),
		IfFalse: tFloat("2.5"),
	})
	assert.IsType(t, &ir.ConditionalExpr{}, out.Set.Expr)
	assert.Equal(t, "std::anyreal", out.Set.Type.TypeName(),
		"branch types unify at their common supertype")
}

func TestIfElseCondMustBeBool(t *testing.T) {
	_, err := compile(t, &ast.IfElse{
		Cond:    tInt("1"),
		IfTrue:  tInt("1"),
		IfFalse: tInt("2"),
	})
	qe := qerrOf(t, err)
	assert.Equal(t, qerror.Type, qe.Class)
	assert.Contains(t, qe.Msg, "std::bool")
}

func TestSetLiteral(t *testing.T) {
	out := mustCompile(t, &ast.SetLiteral{Elems: []ast.Expr{tInt("1"), tFloat("1.5")}})
	ctor := out.Set.Expr.(*ir.SetConstructor)
	require.Len(t, ctor.Elems, 2)
	assert.Equal(t, "std::anyreal", out.Set.Type.TypeName())

	_, err := compile(t, &ast.SetLiteral{Elems: []ast.Expr{tInt("1"), tStr("a")}})
	qe := qerrOf(t, err)
	assert.Equal(t, qerror.Type, qe.Class)
	assert.Contains(t, qe.Msg, "incompatible")
}

func TestArrayLiteral(t *testing.T) {
	out := mustCompile(t, &ast.ArrayLiteral{Elems: []ast.Expr{tInt("1"), tInt("2")}})
	assert.Equal(t, "array<std::int64>", out.Set.Type.TypeName())

	_, err := compile(t, &ast.ArrayLiteral{Elems: []ast.Expr{tInt("1"), tStr("a")}})
	qe := qerrOf(t, err)
	assert.Equal(t, qerror.Type, qe.Class)
}

func TestTupleLiteralNamed(t *testing.T) {
	out := mustCompile(t, &ast.TupleLiteral{Elems: []ast.TupleElem{
		{Name: "a", Val: tInt("1")},
		{Name: "b", Val: tStr("x")},
	}})
	tup := out.Set.Expr.(*ir.TupleExpr)
	assert.True(t, tup.Named)
	assert.Equal(t, "tuple<a: std::int64, b: std::str>", out.Set.Type.TypeName())
}

func TestBareParameter(t *testing.T) {
	out := mustCompile(t, &ast.Parameter{Name: "x"})
	require.Contains(t, out.Params, "x")
	assert.Nil(t, out.Params["x"], "an uncast parameter's type stays unknown")
	assert.Nil(t, out.Set.Type)
}
