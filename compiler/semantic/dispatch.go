package semantic

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quarreldb/quarrel/compiler/ast"
	"github.com/quarreldb/quarrel/compiler/ir"
	"github.com/quarreldb/quarrel/compiler/qerror"
	"github.com/quarreldb/quarrel/schema"
)

// semExpr is the single dispatch point from AST node kind to compile
// function.  Exactly one handler exists per concrete kind; an unhandled
// kind fails loudly.
func (t *translator) semExpr(ctx *context, e ast.Expr) (*ir.Set, error) {
	switch e := e.(type) {
	case *ast.Path:
		return t.compilePath(ctx, e)
	case *ast.Constant:
		return t.semConstant(ctx, e)
	case *ast.Parameter:
		return t.semParameter(ctx, e)
	case *ast.BinaryOp:
		return t.semBinaryOp(ctx, e)
	case *ast.UnaryOp:
		return t.semUnaryOp(ctx, e)
	case *ast.IfElse:
		return t.semIfElse(ctx, e)
	case *ast.FunctionCall:
		return t.semFunctionCall(ctx, e)
	case *ast.TypeCast:
		return t.compileCast(ctx, e)
	case *ast.Shape:
		return t.semShape(ctx, e)
	case *ast.SetLiteral:
		return t.semSetLiteral(ctx, e)
	case *ast.TupleLiteral:
		return t.semTupleLiteral(ctx, e)
	case *ast.ArrayLiteral:
		return t.semArrayLiteral(ctx, e)
	case *ast.DetachedExpr:
		sub, release := ctx.fork(modeDetached)
		defer release()
		return t.semExpr(sub, e.Expr)
	case *ast.SelectQuery, *ast.InsertQuery, *ast.UpdateQuery,
		*ast.DeleteQuery, *ast.ForQuery, *ast.GroupQuery:
		return t.semStatement(ctx, e.(ast.Statement))
	case nil:
		panic("semantic analysis: illegal null value encountered in AST")
	}
	panic(fmt.Sprintf("semantic analysis: unhandled AST node %T", e))
}

func (t *translator) semConstant(ctx *context, e *ast.Constant) (*ir.Set, error) {
	var typ schema.Type
	switch e.Type {
	case "int":
		typ = ctx.stdType("int64")
	case "float":
		typ = ctx.stdType("float64")
	case "str":
		typ = ctx.stdType("str")
	case "bool":
		typ = ctx.stdType("bool")
	case "decimal":
		typ = ctx.stdType("decimal")
	default:
		return nil, qerror.Typef(e, "unknown literal kind %q", e.Type)
	}
	return t.ensureSet(ctx, &ir.Literal{Type: typ, Value: e.Text}, typ, e)
}

func (t *translator) semParameter(ctx *context, e *ast.Parameter) (*ir.Set, error) {
	// The parameter's type is fixed by the first cast applied to it; a
	// bare first use stays unknown until then.
	typ, ok := t.env.params[e.Name]
	if !ok {
		t.env.params[e.Name] = nil
	}
	return t.ensureSet(ctx, &ir.Parameter{Name: e.Name, Type: typ}, typ, e)
}

func (t *translator) semBinaryOp(ctx *context, e *ast.BinaryOp) (*ir.Set, error) {
	candidates := t.env.catalog.Operators(e.Op)
	if len(candidates) == 0 {
		return nil, qerror.Referencef(e, "operator %q is not defined", e.Op)
	}
	args, err := t.compileCallArgs(ctx, candidates, []ast.Expr{e.LHS, e.RHS}, nil)
	if err != nil {
		return nil, err
	}
	// Arithmetic over constants folds at compile time; a folding
	// failure suppresses the optimization and never surfaces.
	if lit, ok := t.foldConstant(ctx, e.Op, args); ok {
		return t.ensureSet(ctx, lit, lit.Type, e)
	}
	matched := t.findCallable(candidates, args, nil)
	switch len(matched) {
	case 0:
		return nil, qerror.Typef(e, "operator %q cannot be applied to operands of type %s and %s",
			e.Op, args[0].typ.TypeName(), args[1].typ.TypeName())
	case 1:
		return t.finalizeCall(ctx, matched[0], e, e.Op)
	}
	return nil, qerror.Ambiguityf(e, "operator %q is ambiguous for operands of type %s and %s",
		e.Op, args[0].typ.TypeName(), args[1].typ.TypeName())
}

func (t *translator) semUnaryOp(ctx *context, e *ast.UnaryOp) (*ir.Set, error) {
	candidates := t.env.catalog.Operators("u" + e.Op)
	if len(candidates) == 0 {
		return nil, qerror.Referencef(e, "operator %q is not defined", e.Op)
	}
	args, err := t.compileCallArgs(ctx, candidates, []ast.Expr{e.Operand}, nil)
	if err != nil {
		return nil, err
	}
	matched := t.findCallable(candidates, args, nil)
	switch len(matched) {
	case 0:
		return nil, qerror.Typef(e, "operator %q cannot be applied to operand of type %s",
			e.Op, args[0].typ.TypeName())
	case 1:
		return t.finalizeCall(ctx, matched[0], e, e.Op)
	}
	return nil, qerror.Ambiguityf(e, "operator %q is ambiguous for operand of type %s",
		e.Op, args[0].typ.TypeName())
}

func (t *translator) semFunctionCall(ctx *context, e *ast.FunctionCall) (*ir.Set, error) {
	name := schema.Name{Module: e.Func.Module, Local: e.Func.Name}
	candidates := t.env.catalog.Functions(name)
	if len(candidates) == 0 {
		err := qerror.Referencef(e, "function %s does not exist", name)
		err.Hint = t.suggestName(name)
		return nil, err
	}
	var kwargASTs map[string]ast.Expr
	if len(e.Kwargs) > 0 {
		kwargASTs = e.Kwargs
	}
	args, kwargs, err := t.compileCallArgsKw(ctx, candidates, e.Args, kwargASTs)
	if err != nil {
		return nil, err
	}
	matched := t.findCallable(candidates, args, kwargs)
	switch len(matched) {
	case 0:
		return nil, qerror.Typef(e, "function %s does not accept the given arguments", name)
	case 1:
		return t.finalizeCall(ctx, matched[0], e, "")
	}
	if len(e.Args) == 0 && len(e.Kwargs) == 0 {
		// Zero-arg overloads cannot be disambiguated by type.
		return nil, qerror.Ambiguityf(e, "function %s is ambiguous: multiple zero-argument overloads", name)
	}
	return nil, qerror.Ambiguityf(e, "function %s is ambiguous for the given arguments", name)
}

// compileCallArgs compiles positional arguments with the scope
// treatment their eventual SET OF-ness demands.
func (t *translator) compileCallArgs(ctx *context, candidates []*schema.Callable, argASTs []ast.Expr, kwargNames map[string]bool) ([]callArg, error) {
	byPos, _ := argTypemods(candidates, len(argASTs), kwargNames)
	args := make([]callArg, 0, len(argASTs))
	for i, argAST := range argASTs {
		arg, err := t.compileArg(ctx, argAST, byPos[i])
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

func (t *translator) compileCallArgsKw(ctx *context, candidates []*schema.Callable, argASTs []ast.Expr, kwargASTs map[string]ast.Expr) ([]callArg, map[string]callArg, error) {
	kwargNames := make(map[string]bool, len(kwargASTs))
	for name := range kwargASTs {
		kwargNames[name] = true
	}
	byPos, byName := argTypemods(candidates, len(argASTs), kwargNames)
	args := make([]callArg, 0, len(argASTs))
	for i, argAST := range argASTs {
		arg, err := t.compileArg(ctx, argAST, byPos[i])
		if err != nil {
			return nil, nil, err
		}
		args = append(args, arg)
	}
	kwargs := make(map[string]callArg, len(kwargASTs))
	for name, argAST := range kwargASTs {
		arg, err := t.compileArg(ctx, argAST, byName[name])
		if err != nil {
			return nil, nil, err
		}
		kwargs[name] = arg
	}
	return args, kwargs, nil
}

// compileArg compiles one argument.  SET OF parameters get their own
// fence; when the candidates disagree on SET OF-ness the argument is
// compiled speculatively under a throwaway fence which is then either
// kept or merged back once the binding is known.
func (t *translator) compileArg(ctx *context, e ast.Expr, tm argTypemod) (callArg, error) {
	switch {
	case tm.conflicted:
		sub, release := ctx.fork(modeNewFenceTemp)
		s, err := t.semExpr(sub, e)
		if err != nil {
			release()
			return callArg{}, err
		}
		// The argument's SET OF-ness is not knowable before overload
		// resolution completes; keep the speculative fence, which is
		// correct for both treatments.
		sub.keepScope()
		release()
		return callArg{val: s, typ: t.typeOf(s), ast: e}, nil
	case tm.mod == schema.SetOf:
		sub, release := ctx.fork(modeNewFence)
		defer release()
		s, err := t.semExpr(sub, e)
		if err != nil {
			return callArg{}, err
		}
		return callArg{val: s, typ: t.typeOf(s), ast: e}, nil
	default:
		s, err := t.semExpr(ctx, e)
		if err != nil {
			return callArg{}, err
		}
		return callArg{val: s, typ: t.typeOf(s), ast: e}, nil
	}
}

func (t *translator) semIfElse(ctx *context, e *ast.IfElse) (*ir.Set, error) {
	cond, err := t.semExpr(ctx, e.Cond)
	if err != nil {
		return nil, err
	}
	if boolType := ctx.stdType("bool"); boolType != nil {
		if ct := t.typeOf(cond); !ct.Equal(boolType) && !schema.SubtypeOf(ct, boolType) {
			return nil, qerror.Typef(e.Cond, "if/else condition must be of type std::bool, got %s", ct.TypeName())
		}
	}
	// Both branches compile under their own fences; only one runs per
	// element.
	subTrue, releaseTrue := ctx.fork(modeNewFence)
	ifTrue, err := t.semExpr(subTrue, e.IfTrue)
	releaseTrue()
	if err != nil {
		return nil, err
	}
	subFalse, releaseFalse := ctx.fork(modeNewFence)
	ifFalse, err := t.semExpr(subFalse, e.IfFalse)
	releaseFalse()
	if err != nil {
		return nil, err
	}
	common := schema.CommonSupertype(t.typeOf(ifTrue), t.typeOf(ifFalse))
	if common == nil {
		return nil, qerror.Typef(e, "if/else branches have incompatible types %s and %s",
			t.typeOf(ifTrue).TypeName(), t.typeOf(ifFalse).TypeName())
	}
	return t.ensureSet(ctx, &ir.ConditionalExpr{Cond: cond, IfTrue: ifTrue, IfFalse: ifFalse}, common, e)
}

func (t *translator) semSetLiteral(ctx *context, e *ast.SetLiteral) (*ir.Set, error) {
	if len(e.Elems) == 0 {
		// An empty set in shape-element position takes the element
		// pointer's type; elsewhere its type stays unresolved, which is
		// not an error for isolated fragments.
		if vr := ctx.viewRptr; vr != nil && vr.ptr != nil {
			ctx.logDebug("typing empty set from enclosing shape element",
				zap.String("pointer", vr.name))
			typ := vr.ptr.Target
			return t.ensureSet(ctx, &ir.EmptySet{Type: typ}, typ, e)
		}
		return t.ensureSet(ctx, &ir.EmptySet{}, nil, e)
	}
	elems := make([]*ir.Set, 0, len(e.Elems))
	var common schema.Type
	for _, elemAST := range e.Elems {
		sub, release := ctx.fork(modeNewScope)
		s, err := t.semExpr(sub, elemAST)
		release()
		if err != nil {
			return nil, err
		}
		elems = append(elems, s)
		st := t.typeOf(s)
		if common == nil {
			common = st
		} else if next := schema.CommonSupertype(common, st); next != nil {
			common = next
		} else {
			return nil, qerror.Typef(elemAST, "set constructor has elements of incompatible types %s and %s",
				common.TypeName(), st.TypeName())
		}
	}
	return t.ensureSet(ctx, &ir.SetConstructor{Type: common, Elems: elems}, common, e)
}

func (t *translator) semTupleLiteral(ctx *context, e *ast.TupleLiteral) (*ir.Set, error) {
	named := false
	elems := make([]ir.TupleElemExpr, 0, len(e.Elems))
	typeElems := make([]schema.TupleElem, 0, len(e.Elems))
	for i, elemAST := range e.Elems {
		s, err := t.semExpr(ctx, elemAST.Val)
		if err != nil {
			return nil, err
		}
		name := elemAST.Name
		if name != "" {
			named = true
		} else {
			name = fmt.Sprintf("%d", i)
		}
		elems = append(elems, ir.TupleElemExpr{Name: name, Val: s})
		typeElems = append(typeElems, schema.TupleElem{Name: name, Type: t.typeOf(s)})
	}
	typ := &schema.TupleType{Elems: typeElems, Named: named}
	return t.ensureSet(ctx, &ir.TupleExpr{Elems: elems, Named: named}, typ, e)
}

func (t *translator) semArrayLiteral(ctx *context, e *ast.ArrayLiteral) (*ir.Set, error) {
	elems := make([]*ir.Set, 0, len(e.Elems))
	var common schema.Type
	for _, elemAST := range e.Elems {
		s, err := t.semExpr(ctx, elemAST)
		if err != nil {
			return nil, err
		}
		elems = append(elems, s)
		st := t.typeOf(s)
		if common == nil {
			common = st
		} else if next := schema.CommonSupertype(common, st); next != nil {
			common = next
		} else {
			return nil, qerror.Typef(elemAST, "array has elements of incompatible types %s and %s",
				common.TypeName(), st.TypeName())
		}
	}
	var typ schema.Type
	if common != nil {
		typ = &schema.ArrayType{Elem: common}
	}
	return t.ensureSet(ctx, &ir.ArrayExpr{Type: typ, Elems: elems}, typ, e)
}
