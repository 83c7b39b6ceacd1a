package semantic

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/quarreldb/quarrel/compiler/ast"
	"github.com/quarreldb/quarrel/compiler/ir"
	"github.com/quarreldb/quarrel/compiler/qerror"
	"github.com/quarreldb/quarrel/schema"
)

// newSet is the sole constructor of ir.Set nodes.  Routing every
// construction through here guarantees that the all-sets registration
// bookkeeping is never bypassed.
func (t *translator) newSet(ctx *context, s ir.Set) *ir.Set {
	out := &s
	if out.ScopeID == 0 {
		out.ScopeID = ir.NoScope
	}
	t.env.allSets = append(t.env.allSets, out)
	return out
}

// newTypeRootSet builds the Set anchoring a path at a schema type.
func (t *translator) newTypeRootSet(ctx *context, typ schema.Type, n ast.Node) *ir.Set {
	return t.newSet(ctx, ir.Set{
		PathID: ir.NewTypePathID(schema.Material(typ), ctx.pathIDNamespace),
		Type:   typ,
		AST:    n,
	})
}

// compilePath walks the path steps left to right, producing the Set for
// the far endpoint.
func (t *translator) compilePath(ctx *context, p *ast.Path) (*ir.Set, error) {
	if len(p.Steps) == 0 {
		return nil, qerror.Scopef(p, "empty path")
	}
	var cur *ir.Set
	start := 0
	switch step := p.Steps[0].(type) {
	case *ast.Anchor:
		anchor, ok := ctx.anchors[step.Name]
		if !ok {
			var names []string
			for name := range ctx.anchors {
				names = append(names, name)
			}
			e := qerror.Referencef(step, "anchor %q is not bound", step.Name)
			e.Hint = qerror.Suggest(step.Name, names)
			return nil, e
		}
		cur = anchor
		start = 1
	case *ast.TypeRoot:
		s, err := t.resolvePathRoot(ctx, step)
		if err != nil {
			return nil, err
		}
		cur = s
		start = 1
	case *ast.ExprStep:
		s, err := t.compileExprStep(ctx, step)
		if err != nil {
			return nil, err
		}
		cur = s
		start = 1
	case *ast.Ptr:
		// Partial path: resolve against the partial-path prefix.
		if ctx.partialPathPrefix == nil {
			return nil, qerror.Referencef(step, "could not resolve partial path")
		}
		cur = ctx.partialPathPrefix
	default:
		return nil, qerror.Scopef(p.Steps[0], "invalid path root")
	}
	for i := start; i < len(p.Steps); i++ {
		var err error
		switch step := p.Steps[i].(type) {
		case *ast.Ptr:
			var filter schema.Type
			if j := i + 1; j < len(p.Steps) {
				if is, ok := p.Steps[j].(*ast.TypeIntersection); ok && step.Direction == ast.Inbound {
					// The [is Type] filter participates in inbound
					// pointer resolution.
					if filter, err = t.resolveTypeExpr(ctx, is.Type); err != nil {
						return nil, err
					}
				}
			}
			cur, err = t.ptrStep(ctx, cur, step, filter)
		case *ast.TupleIndex:
			cur, err = t.tupleIndexStep(ctx, cur, step)
		case *ast.TypeIntersection:
			var target schema.Type
			if target, err = t.resolveTypeExpr(ctx, step.Type); err != nil {
				return nil, err
			}
			cur, err = t.classIndirectionSet(ctx, cur, target, step)
		default:
			return nil, qerror.Scopef(p.Steps[i], "invalid path step")
		}
		if err != nil {
			return nil, err
		}
	}
	return t.scopedSet(ctx, cur)
}

// resolvePathRoot resolves a name in path-root position: a WITH-bound
// view alias if one is visible, otherwise a schema type.
func (t *translator) resolvePathRoot(ctx *context, step *ast.TypeRoot) (*ir.Set, error) {
	if step.Ref.Module == "" {
		if bound := ctx.viewAliases.lookup(step.Ref.Name); bound != nil {
			return bound, nil
		}
	}
	name := schema.Name{Module: step.Ref.Module, Local: step.Ref.Name}
	obj, err := ctx.env.catalog.Get(name, ctx.modAliases)
	if err != nil {
		e := qerror.Referencef(step, "%s", err)
		e.Hint = t.suggestName(name)
		return nil, e
	}
	typ, ok := obj.(schema.Type)
	if !ok {
		return nil, qerror.Typef(step, "%q is not a type", name)
	}
	// Inside a computable, a root naming the computable's own source
	// resolves to the source set rather than a fresh root.
	if bound, ok := ctx.viewMap[ir.NewTypePathID(schema.Material(typ), "").Key()]; ok {
		return bound, nil
	}
	return t.newTypeRootSet(ctx, typ, step), nil
}

func (t *translator) suggestName(name schema.Name) string {
	mem, ok := t.baseCatalog.(*schema.MemCatalog)
	if !ok {
		return ""
	}
	var locals []string
	for _, n := range mem.Names() {
		locals = append(locals, n.Local)
	}
	return qerror.Suggest(name.Local, locals)
}

// compileExprStep compiles an arbitrary expression in path-root
// position under a fenced temporary sub-scope and merges the resulting
// bindings back into the surroundings.
func (t *translator) compileExprStep(ctx *context, step *ast.ExprStep) (*ir.Set, error) {
	sub, release := ctx.fork(modeNewFenceTemp)
	defer release()
	s, err := t.semExpr(sub, step.Expr)
	if err != nil {
		return nil, err
	}
	sub.mergeScopeInto(ctx.scope)
	return s, nil
}

// ptrStep resolves the named pointer on the current near endpoint and
// extends the path with a new Set and rptr edge.
func (t *translator) ptrStep(ctx *context, src *ir.Set, step *ast.Ptr, filter schema.Type) (*ir.Set, error) {
	if step.LinkProp {
		return t.linkPropStep(ctx, src, step)
	}
	if step.Direction == ast.Inbound {
		return t.inboundStep(ctx, src, step, filter)
	}
	srcType := schema.Material(t.typeOf(src))
	obj, ok := srcType.(*schema.ObjectType)
	if !ok {
		return nil, qerror.Referencef(step, "cannot follow pointer %q on expression of type %s",
			step.Name, srcType.TypeName())
	}
	ptr := obj.PointerByName(step.Name)
	if ptr == nil {
		e := qerror.Referencef(step, "object type %s has no link or property %q",
			obj.TypeName(), step.Name)
		e.Hint = qerror.Suggest(step.Name, obj.PointerNames())
		return nil, e
	}
	out := t.extendPath(ctx, src, ptr, ast.Outbound, step)
	if ptr.Computable() {
		if err := t.compileComputable(ctx, out, ptr); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// extendPath builds the Set for one pointer hop.
func (t *translator) extendPath(ctx *context, src *ir.Set, ptr *schema.Pointer, dir ast.Direction, n ast.Node) *ir.Set {
	target := ptr.Target
	if dir == ast.Inbound {
		target = ptr.Source
	}
	pid := src.PathID.Ptr(ptr.Root().Name, dir, schema.Material(target).TypeName())
	return t.newSet(ctx, ir.Set{
		PathID: pid,
		Type:   target,
		Rptr:   &ir.PointerRef{Source: src, Ptr: ptr, Direction: dir},
		AST:    n,
	})
}

// inboundStep resolves a backlink step.  With an [is Type] filter the
// pointer is resolved on the filter type; without one the result is the
// abstract object root, narrowed later if at all.
func (t *translator) inboundStep(ctx *context, src *ir.Set, step *ast.Ptr, filter schema.Type) (*ir.Set, error) {
	srcType := schema.Material(t.typeOf(src))
	if _, ok := srcType.(*schema.ObjectType); !ok {
		return nil, qerror.Referencef(step, "cannot follow backlink %q on expression of type %s",
			step.Name, srcType.TypeName())
	}
	if filter != nil {
		obj, ok := schema.Material(filter).(*schema.ObjectType)
		if !ok {
			return nil, qerror.Typef(step, "backlink filter %s is not an object type", filter.TypeName())
		}
		ptr := obj.PointerByName(step.Name)
		if ptr == nil {
			e := qerror.Referencef(step, "object type %s has no link or property %q",
				obj.TypeName(), step.Name)
			e.Hint = qerror.Suggest(step.Name, obj.PointerNames())
			return nil, e
		}
		if !schema.SubtypeOf(srcType, schema.Material(ptr.Target)) {
			return nil, qerror.Typef(step, "backlink %q of %s does not target %s",
				step.Name, obj.TypeName(), srcType.TypeName())
		}
		return t.extendPath(ctx, src, ptr, ast.Inbound, step), nil
	}
	base := ctx.stdType("BaseObject")
	if base == nil {
		return nil, qerror.Referencef(step, "untyped backlink %q requires std::BaseObject in the schema", step.Name)
	}
	// Pseudo-pointer for the untyped backlink; always many-to-many.
	ptr := &schema.Pointer{
		Name:        step.Name,
		Kind:        schema.Link,
		Source:      base,
		Target:      srcType,
		Cardinality: schema.Many,
	}
	return t.extendPath(ctx, src, ptr, ast.Inbound, step), nil
}

// linkPropStep resolves an @-prefixed link property on the incoming
// link of the current set.
func (t *translator) linkPropStep(ctx *context, src *ir.Set, step *ast.Ptr) (*ir.Set, error) {
	if src.Rptr == nil || src.Rptr.Ptr.Kind != schema.Link {
		return nil, qerror.Referencef(step, "link property %q may only be accessed through a link", step.Name)
	}
	prop := src.Rptr.Ptr.PropByName(step.Name)
	if prop == nil {
		var names []string
		for _, p := range src.Rptr.Ptr.Root().Props {
			names = append(names, p.Name)
		}
		e := qerror.Referencef(step, "link %q has no property %q", src.Rptr.Ptr.Name, step.Name)
		e.Hint = qerror.Suggest(step.Name, names)
		return nil, e
	}
	pid := src.PathID.Ptr("@"+prop.Name, ast.Outbound, schema.Material(prop.Target).TypeName())
	return t.newSet(ctx, ir.Set{
		PathID: pid,
		Type:   prop.Target,
		Rptr:   &ir.PointerRef{Source: src, Ptr: prop, Direction: ast.Outbound},
		AST:    step,
	}), nil
}

// tupleIndexStep is structural tuple element access; no schema pointer
// is involved.
func (t *translator) tupleIndexStep(ctx *context, src *ir.Set, step *ast.TupleIndex) (*ir.Set, error) {
	tup, ok := t.typeOf(src).(*schema.TupleType)
	if !ok {
		return nil, qerror.Typef(step, "cannot index into expression of non-tuple type %s",
			t.typeOf(src).TypeName())
	}
	var elemType schema.Type
	for i, elem := range tup.Elems {
		if elem.Name == step.Name || (!tup.Named && step.Name == strconv.Itoa(i)) {
			elemType = elem.Type
			break
		}
	}
	if elemType == nil {
		return nil, qerror.Referencef(step, "tuple %s has no element %q", tup.TypeName(), step.Name)
	}
	return t.newSet(ctx, ir.Set{
		PathID: src.PathID.TupleIndex(step.Name),
		Type:   elemType,
		Expr:   &ir.TupleIndirectionExpr{Expr: src, Name: step.Name},
		AST:    step,
	}), nil
}

// classIndirectionSet builds the [is Type] polymorphic-narrowing
// pseudo-edge.  The narrowed edge is downgraded to many-to-many or
// many-to-one based on the source edge's multiplicity.
func (t *translator) classIndirectionSet(ctx *context, src *ir.Set, target schema.Type, n ast.Node) (*ir.Set, error) {
	srcType := schema.Material(t.typeOf(src))
	if _, ok := srcType.(*schema.ObjectType); !ok {
		return nil, qerror.Typef(n, "cannot apply type intersection to expression of type %s",
			srcType.TypeName())
	}
	targetObj, ok := schema.Material(target).(*schema.ObjectType)
	if !ok {
		return nil, qerror.Typef(n, "type intersection target %s is not an object type", target.TypeName())
	}
	if !schema.SubtypeOf(targetObj, srcType) && !schema.SubtypeOf(srcType, targetObj) {
		return nil, qerror.Typef(n, "%s is not a subtype or supertype of %s",
			targetObj.TypeName(), srcType.TypeName())
	}
	card := schema.Many
	if src.Rptr != nil && src.Rptr.Direction == ast.Outbound && src.Rptr.Ptr.Cardinality == schema.One {
		card = schema.One
	}
	// The intersection edge is a derived pseudo-pointer carrying the
	// downgraded multiplicity.
	ptr := &schema.Pointer{
		Name:        "__type_intersection__",
		Kind:        schema.Link,
		Source:      srcType,
		Target:      targetObj,
		Cardinality: card,
	}
	return t.newSet(ctx, ir.Set{
		PathID: src.PathID.TypeIntersection(targetObj.TypeName()),
		Type:   targetObj,
		Rptr:   &ir.PointerRef{Source: src, Ptr: ptr, Direction: ast.Outbound},
		Expr:   &ir.TypeIntersectionExpr{Expr: src, To: targetObj},
		AST:    n,
	}), nil
}

// compileComputable lazily compiles a computable pointer's defining
// expression the first time the step enters scope.  The compilation
// runs under a private detached sub-context whose only externally
// visible anchor is the computable's own source, so it cannot observe
// unrelated outer bindings.
func (t *translator) compileComputable(ctx *context, s *ir.Set, ptr *schema.Pointer) error {
	root := ptr.Root()
	if _, done := t.env.computed[root]; done {
		s.Expr = &ir.SubqueryExpr{Body: t.env.computed[root].Expr}
		return nil
	}
	sub, release := ctx.fork(modeDetached)
	defer release()
	source := s.Rptr.Source
	sub.anchors = map[string]*ir.Set{"__source__": source}
	sub.partialPathPrefix = source
	sub.viewMap[source.PathID.StripNamespace().Key()] = source
	ctx.logDebug("compiling computable pointer",
		zap.String("pointer", ptr.Name),
		zap.String("source", source.PathID.Key()))
	body, err := t.semExpr(sub, ptr.Expr)
	if err != nil {
		return err
	}
	t.env.computed[root] = &ir.ComputedPtrInfo{Ptr: root, Expr: body}
	s.Expr = &ir.SubqueryExpr{Body: body}
	return nil
}

// ensureSet idempotently wraps a raw IR expression as a Set and assigns
// it to the current scope.
func (t *translator) ensureSet(ctx *context, e ir.Expr, typ schema.Type, n ast.Node) (*ir.Set, error) {
	if s, ok := e.(*ir.Set); ok {
		return t.scopedSet(ctx, s)
	}
	s := t.newSet(ctx, ir.Set{
		PathID: ir.NewExprPathID(t.env.aliases.get("expr"), ctx.pathIDNamespace),
		Type:   typ,
		Expr:   e,
		AST:    n,
	})
	return t.scopedSet(ctx, s)
}

// scopedSet assigns the set's path id to the current scope.  If
// attaching the path id would re-enter an ancestor scope node already
// holding it (self-correlation), the expression is wrapped in a
// subquery to break the cycle.
func (t *translator) scopedSet(ctx *context, s *ir.Set) (*ir.Set, error) {
	if node, ok := t.env.scope.FindVisible(ctx.scope, s.PathID); ok {
		if node == ctx.scope || t.env.scope.IsAncestor(node, ctx.scope) {
			sub, release := ctx.fork(modeNewFence)
			defer release()
			inner := t.newSet(ctx, ir.Set{
				PathID:  s.PathID,
				Type:    s.Type,
				Rptr:    s.Rptr,
				Expr:    s.Expr,
				AST:     s.AST,
				ScopeID: ir.NoScope,
			})
			if err := sub.registerSetInScope(inner, false); err != nil {
				return nil, err
			}
			wrapped := t.newSet(ctx, ir.Set{
				PathID: ir.NewExprPathID(t.env.aliases.get("expr"), ctx.pathIDNamespace),
				Type:   s.Type,
				Expr:   &ir.SubqueryExpr{Body: inner},
				AST:    s.AST,
			})
			if err := ctx.registerSetInScope(wrapped, false); err != nil {
				return nil, err
			}
			return wrapped, nil
		}
	}
	if err := ctx.registerSetInScope(s, false); err != nil {
		return nil, err
	}
	return s, nil
}

// typeOf resolves the static type of a set, falling back to the
// external inferencer when it was not resolvable at construction.
func (t *translator) typeOf(s *ir.Set) schema.Type {
	if s.Type != nil {
		return s.Type
	}
	if typ := t.env.inferrer.InferType(s); typ != nil {
		s.Type = typ
		return typ
	}
	// Type unknown is not an error for isolated fragments.
	return &schema.PseudoType{Name: schema.Name{Module: "std", Local: "anytype"}}
}
