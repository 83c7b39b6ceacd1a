package semantic

import (
	"github.com/quarreldb/quarrel/compiler/ast"
	"github.com/quarreldb/quarrel/compiler/ir"
	"github.com/quarreldb/quarrel/compiler/qerror"
	"github.com/quarreldb/quarrel/schema"
)

// compileCast compiles a <Type>expr cast.
func (t *translator) compileCast(ctx *context, e *ast.TypeCast) (*ir.Set, error) {
	to, err := t.resolveTypeExpr(ctx, e.Type)
	if err != nil {
		return nil, err
	}
	operand, err := t.semExpr(ctx, e.Expr)
	if err != nil {
		return nil, err
	}
	// Casting an untyped fragment assigns it the target type: an empty
	// set or a fresh parameter takes its type from the first cast.
	if empty, ok := operand.Expr.(*ir.EmptySet); ok && empty.Type == nil {
		empty.Type = to
		operand.Type = to
		return operand, nil
	}
	if param, ok := operand.Expr.(*ir.Parameter); ok && param.Type == nil {
		param.Type = to
		operand.Type = to
		t.env.params[param.Name] = to
		return operand, nil
	}
	from := t.typeOf(operand)
	return t.castSet(ctx, operand, from, to, e)
}

func (t *translator) castSet(ctx *context, operand *ir.Set, from, to schema.Type, n ast.Node) (*ir.Set, error) {
	// Identity short-circuits.
	if from.Equal(to) {
		return operand, nil
	}
	// Objects are constructed, never cast.
	_, fromObj := schema.Material(from).(*schema.ObjectType)
	_, toObj := schema.Material(to).(*schema.ObjectType)
	if fromObj && toObj {
		return nil, qerror.Typef(n, "cannot cast object type %s to %s; objects are constructed, not cast",
			from.TypeName(), to.TypeName())
	}
	if fromArr, ok := from.(*schema.ArrayType); ok {
		if toArr, ok := to.(*schema.ArrayType); ok {
			return t.castArray(ctx, operand, fromArr, toArr, n)
		}
	}
	if fromTup, ok := from.(*schema.TupleType); ok {
		if toTup, ok := to.(*schema.TupleType); ok {
			return t.castTuple(ctx, operand, fromTup, toTup, n)
		}
	}
	// Supertype/subtype relationships relabel without a cast lookup.
	if schema.SubtypeOf(from, to) || schema.SubtypeOf(to, from) {
		return t.ensureSet(ctx, &ir.TypeCastExpr{Expr: operand, From: from, To: to}, to, n)
	}
	return t.registeredCast(ctx, operand, from, to, n)
}

// castArray recurses element-wise, re-synthesizing an array literal on
// the target side.  Only literal arrays support element-wise casting;
// anything else is explicitly unimplemented.
func (t *translator) castArray(ctx *context, operand *ir.Set, from, to *schema.ArrayType, n ast.Node) (*ir.Set, error) {
	if from.Elem.Equal(to.Elem) {
		return operand, nil
	}
	arr, ok := operand.Expr.(*ir.ArrayExpr)
	if !ok {
		return nil, qerror.Unsupportedf(n, "non-trivial element-wise array cast from %s to %s is not supported",
			from.TypeName(), to.TypeName())
	}
	elems := make([]*ir.Set, 0, len(arr.Elems))
	for _, elem := range arr.Elems {
		cast, err := t.castSet(ctx, elem, t.typeOf(elem), to.Elem, n)
		if err != nil {
			return nil, err
		}
		elems = append(elems, cast)
	}
	return t.ensureSet(ctx, &ir.ArrayExpr{Type: to, Elems: elems}, to, n)
}

// castTuple reconciles element names and arity, casting element-wise
// and rebuilding a tuple literal on the target side.
func (t *translator) castTuple(ctx *context, operand *ir.Set, from, to *schema.TupleType, n ast.Node) (*ir.Set, error) {
	if len(from.Elems) != len(to.Elems) {
		return nil, qerror.Typef(n, "cannot cast %s to %s: tuple arity mismatch",
			from.TypeName(), to.TypeName())
	}
	tup, ok := operand.Expr.(*ir.TupleExpr)
	if !ok {
		return nil, qerror.Unsupportedf(n, "non-trivial element-wise tuple cast from %s to %s is not supported",
			from.TypeName(), to.TypeName())
	}
	elems := make([]ir.TupleElemExpr, 0, len(to.Elems))
	for i, target := range to.Elems {
		cast, err := t.castSet(ctx, tup.Elems[i].Val, from.Elems[i].Type, target.Type, n)
		if err != nil {
			return nil, err
		}
		name := target.Name
		if !to.Named {
			name = tup.Elems[i].Name
		}
		elems = append(elems, ir.TupleElemExpr{Name: name, Val: cast})
	}
	return t.ensureSet(ctx, &ir.TupleExpr{Elems: elems, Named: to.Named}, to, n)
}

// registeredCast performs the registered-cast lookup through the
// overload machinery, treating a cast as a 2-parameter (from-type,
// to-type) pseudo-callable.
func (t *translator) registeredCast(ctx *context, operand *ir.Set, from, to schema.Type, n ast.Node) (*ir.Set, error) {
	casts := t.env.resolver.CastsTo(to)
	if len(casts) == 0 {
		return nil, qerror.Typef(n, "cannot cast %s to %s: no cast rule exists",
			from.TypeName(), to.TypeName())
	}
	candidates := make([]*schema.Callable, 0, len(casts))
	byCallable := make(map[*schema.Callable]*schema.Cast, len(casts))
	for _, cast := range casts {
		c := cast.AsCallable()
		candidates = append(candidates, c)
		byCallable[c] = cast
	}
	toMarker := t.newSet(ctx, ir.Set{
		PathID: ir.NewExprPathID(t.env.aliases.get("cast"), ctx.pathIDNamespace),
		Type:   to,
		AST:    n,
	})
	args := []callArg{
		{val: operand, typ: from, ast: n},
		{val: toMarker, typ: to, ast: n},
	}
	matched := t.findCallable(candidates, args, nil)
	switch len(matched) {
	case 0:
		return nil, qerror.Typef(n, "cannot cast %s to %s: no cast rule exists",
			from.TypeName(), to.TypeName())
	case 1:
	default:
		return nil, qerror.Ambiguityf(n, "cast from %s to %s is ambiguous",
			from.TypeName(), to.TypeName())
	}
	cast := byCallable[matched[0].callable]
	return t.ensureSet(ctx, &ir.TypeCastExpr{
		Expr:     operand,
		From:     from,
		To:       to,
		CastName: cast.Impl,
	}, to, n)
}
