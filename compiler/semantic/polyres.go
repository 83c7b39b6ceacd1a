package semantic

import (
	"strconv"

	"github.com/quarreldb/quarrel/compiler/ast"
	"github.com/quarreldb/quarrel/compiler/ir"
	"github.com/quarreldb/quarrel/schema"
)

// callArg is a compiled call-site argument awaiting binding.
type callArg struct {
	val *ir.Set
	typ schema.Type
	ast ast.Node
}

// boundArg is one argument bound to a parameter with its cast score.
type boundArg struct {
	// param is nil for the injected defaults bitmask argument.
	param        *schema.Param
	paramType    schema.Type
	val          *ir.Set
	valType      schema.Type
	castDistance int
	isDefault    bool
}

// boundCall is a candidate that survived argument binding.
type boundCall struct {
	callable   *schema.Callable
	args       []boundArg
	missing    []*schema.Param
	returnType schema.Type
	polyBase   schema.Type
}

// findCallable binds the call site against every candidate and keeps
// the best-scoring ones.  A candidate with any failed binding is
// discarded entirely, never partially scored.  Resolution is a pure
// function of the candidate set and arguments: permuting candidate
// order never changes the winning set.
func (t *translator) findCallable(candidates []*schema.Callable, args []callArg, kwargs map[string]callArg) []boundCall {
	var matched []boundCall
	bestDistance := -1
	for _, cand := range candidates {
		call, ok := t.tryBindCallArgs(cand, args, kwargs)
		if !ok {
			continue
		}
		total := 0
		for _, barg := range call.args {
			total += barg.castDistance
		}
		switch {
		case bestDistance < 0 || total < bestDistance:
			bestDistance = total
			matched = []boundCall{call}
		case total == bestDistance:
			matched = append(matched, call)
		}
	}
	if len(matched) <= 1 {
		return matched
	}
	// Still ambiguous: break ties by total type-hierarchy distance over
	// non-injected parameters.
	var remaining []boundCall
	bestTypeDist := -1
	for _, call := range matched {
		dist := 0
		for _, barg := range call.args {
			if barg.param == nil {
				continue
			}
			if d, ok := schema.TypeHierarchyDistance(barg.valType, barg.paramType); ok {
				dist += d
			}
		}
		switch {
		case bestTypeDist < 0 || dist < bestTypeDist:
			bestTypeDist = dist
			remaining = []boundCall{call}
		case dist == bestTypeDist:
			remaining = append(remaining, call)
		}
	}
	return remaining
}

// tryBindCallArgs binds positional, named, and variadic arguments
// left-to-right against the candidate's canonical parameter list.
func (t *translator) tryBindCallArgs(cand *schema.Callable, args []callArg, kwargs map[string]callArg) (boundCall, bool) {
	call := boundCall{callable: cand}
	params := cand.CanonicalParams()
	pos := 0
	var variadic *schema.Param
	for _, p := range params {
		switch p.Kind {
		case schema.NamedOnly:
			arg, supplied := kwargs[p.Name]
			if !supplied {
				if p.Default == nil {
					return boundCall{}, false
				}
				call.missing = append(call.missing, p)
				continue
			}
			if !t.bindOne(&call, p, arg) {
				return boundCall{}, false
			}
		case schema.Variadic:
			variadic = p
		case schema.Positional:
			if pos >= len(args) {
				if p.Default == nil {
					return boundCall{}, false
				}
				call.missing = append(call.missing, p)
				continue
			}
			if !t.bindOne(&call, p, args[pos]) {
				return boundCall{}, false
			}
			pos++
		}
	}
	if pos < len(args) {
		if variadic == nil {
			return boundCall{}, false
		}
		for ; pos < len(args); pos++ {
			if !t.bindOne(&call, variadic, args[pos]) {
				return boundCall{}, false
			}
		}
	}
	// Unknown keyword arguments fail the candidate.
	for name := range kwargs {
		found := false
		for _, p := range params {
			if p.Kind == schema.NamedOnly && p.Name == name {
				found = true
				break
			}
		}
		if !found {
			return boundCall{}, false
		}
	}
	if !t.resolveReturn(&call) {
		return boundCall{}, false
	}
	return call, true
}

// bindOne scores one argument/parameter pair: 0 for exact or subtype
// match, a positive distance for an allowed implicit cast, failure
// otherwise.  Polymorphic parameters resolve the anytype placeholder.
func (t *translator) bindOne(call *boundCall, p *schema.Param, arg callArg) bool {
	paramType := p.Type
	if schema.IsPolymorphic(paramType) {
		resolved, ok := resolvePoly(paramType, arg.typ)
		if !ok {
			return false
		}
		if call.polyBase == nil {
			call.polyBase = resolved
		} else if !call.polyBase.Equal(resolved) {
			// Every use of the placeholder must resolve to the same
			// concrete type; refine to the common supertype when one
			// exists, reject otherwise.
			common := schema.CommonSupertype(call.polyBase, resolved)
			if common == nil {
				return false
			}
			call.polyBase = common
		}
		paramType = substPoly(p.Type, call.polyBase)
	}
	dist := t.env.resolver.ImplicitCastDistance(arg.typ, paramType)
	if dist < 0 {
		return false
	}
	call.args = append(call.args, boundArg{
		param:        p,
		paramType:    paramType,
		val:          arg.val,
		valType:      arg.typ,
		castDistance: dist,
	})
	return true
}

func (t *translator) resolveReturn(call *boundCall) bool {
	ret := call.callable.Return
	if schema.IsPolymorphic(ret) {
		// A generic return type with no resolved placeholder use cannot
		// be typed.
		if call.polyBase == nil {
			return false
		}
		ret = substPoly(ret, call.polyBase)
	}
	call.returnType = ret
	return true
}

// resolvePoly matches a polymorphic parameter type against a concrete
// argument type and extracts the placeholder binding.
func resolvePoly(param, arg schema.Type) (schema.Type, bool) {
	switch p := param.(type) {
	case *schema.PseudoType:
		return arg, true
	case *schema.ArrayType:
		a, ok := arg.(*schema.ArrayType)
		if !ok {
			return nil, false
		}
		return resolvePoly(p.Elem, a.Elem)
	case *schema.TupleType:
		a, ok := arg.(*schema.TupleType)
		if !ok || len(a.Elems) != len(p.Elems) {
			return nil, false
		}
		var resolved schema.Type
		for i := range p.Elems {
			if !schema.IsPolymorphic(p.Elems[i].Type) {
				continue
			}
			r, ok := resolvePoly(p.Elems[i].Type, a.Elems[i].Type)
			if !ok {
				return nil, false
			}
			if resolved != nil && !resolved.Equal(r) {
				return nil, false
			}
			resolved = r
		}
		return resolved, resolved != nil
	}
	return nil, false
}

// substPoly replaces the anytype placeholder with the resolved concrete
// type.
func substPoly(param, concrete schema.Type) schema.Type {
	switch p := param.(type) {
	case *schema.PseudoType:
		return concrete
	case *schema.ArrayType:
		return &schema.ArrayType{Elem: substPoly(p.Elem, concrete)}
	case *schema.TupleType:
		elems := make([]schema.TupleElem, len(p.Elems))
		for i, e := range p.Elems {
			elems[i] = schema.TupleElem{Name: e.Name, Type: substPoly(e.Type, concrete)}
		}
		return &schema.TupleType{Elems: elems, Named: p.Named}
	}
	return param
}

// argTypemods determines, per argument position, the SET OF treatment
// required before the arguments are compiled, by basic-matching the
// call shape against the candidates with placeholder types.  A position
// is conflicted when candidates disagree.
type argTypemod struct {
	mod        schema.TypeModifier
	conflicted bool
}

func argTypemods(candidates []*schema.Callable, nargs int, kwargNames map[string]bool) (byPos []argTypemod, byName map[string]argTypemod) {
	byPos = make([]argTypemod, nargs)
	byName = make(map[string]argTypemod, len(kwargNames))
	seenPos := make([]bool, nargs)
	for _, cand := range candidates {
		params := cand.CanonicalParams()
		pos := 0
		var variadic *schema.Param
		for _, p := range params {
			switch p.Kind {
			case schema.NamedOnly:
				if !kwargNames[p.Name] {
					continue
				}
				if prev, ok := byName[p.Name]; ok && prev.mod != p.Modifier {
					byName[p.Name] = argTypemod{mod: prev.mod, conflicted: true}
				} else if !ok {
					byName[p.Name] = argTypemod{mod: p.Modifier}
				}
			case schema.Variadic:
				variadic = p
			case schema.Positional:
				if pos < nargs {
					noteTypemod(byPos, seenPos, pos, p.Modifier)
					pos++
				}
			}
		}
		if variadic != nil {
			for ; pos < nargs; pos++ {
				noteTypemod(byPos, seenPos, pos, variadic.Modifier)
			}
		}
	}
	return byPos, byName
}

func noteTypemod(byPos []argTypemod, seen []bool, pos int, mod schema.TypeModifier) {
	if !seen[pos] {
		seen[pos] = true
		byPos[pos] = argTypemod{mod: mod}
	} else if byPos[pos].mod != mod {
		byPos[pos] = argTypemod{mod: byPos[pos].mod, conflicted: true}
	}
}

// finalizeCall materializes the winner: compiles defaults for missing
// defaultable arguments, or synthesizes the single bitmask argument for
// natively backed callables with inlined defaults.  A non-empty op
// yields an OperatorCall node, otherwise a FunctionCall.
func (t *translator) finalizeCall(ctx *context, call boundCall, n ast.Node, op string) (*ir.Set, error) {
	args := make([]ir.CallArg, 0, len(call.args)+len(call.missing))
	for _, barg := range call.args {
		args = append(args, ir.CallArg{Param: barg.param, Value: barg.val})
	}
	if len(call.missing) > 0 {
		if call.callable.InlinedDefaults {
			// One bitmask argument consumed by the runtime identifies
			// which defaults apply.
			var mask uint64
			for i, p := range call.callable.CanonicalParams() {
				for _, missing := range call.missing {
					if p == missing {
						mask |= 1 << uint(i)
					}
				}
			}
			lit := &ir.Literal{Type: ctx.stdType("int64"), Value: strconv.FormatUint(mask, 10)}
			maskSet, err := t.ensureSet(ctx, lit, lit.Type, n)
			if err != nil {
				return nil, err
			}
			args = append(args, ir.CallArg{Param: nil, Value: maskSet})
		} else {
			for _, p := range call.missing {
				sub, release := ctx.fork(modeNewFence)
				val, err := t.semExpr(sub, p.Default)
				release()
				if err != nil {
					return nil, err
				}
				args = append(args, ir.CallArg{Param: p, Value: val})
			}
		}
	}
	var expr ir.Expr
	if op != "" {
		expr = &ir.OperatorCall{Operator: op, Callable: call.callable, Args: args}
	} else {
		expr = &ir.FunctionCall{Callable: call.callable, Args: args}
	}
	return t.ensureSet(ctx, expr, call.returnType, n)
}
