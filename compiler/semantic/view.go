package semantic

import (
	"github.com/segmentio/ksuid"

	"github.com/quarreldb/quarrel/compiler/ast"
	"github.com/quarreldb/quarrel/compiler/ir"
	"github.com/quarreldb/quarrel/compiler/qerror"
	"github.com/quarreldb/quarrel/schema"
)

// shapeKind selects the compilation rules for a shape: projection
// shapes derive pointers over an existing set, mutation shapes assign
// values to storage pointers.
type shapeKind int

const (
	shapeSelect shapeKind = iota
	shapeInsert
	shapeUpdate
)

// semShape compiles expr { elems } by deriving an ephemeral view type
// over the subject's type and projecting one element Set per shape
// element.
func (t *translator) semShape(ctx *context, e *ast.Shape) (*ir.Set, error) {
	var subject *ir.Set
	var err error
	if e.Expr == nil {
		free := ctx.stdType("FreeObject")
		if free == nil {
			return nil, qerror.Referencef(e, "free shapes require std::FreeObject in the schema")
		}
		subject, err = t.scopedSet(ctx, t.newTypeRootSet(ctx, free, e))
	} else {
		subject, err = t.semExpr(ctx, e.Expr)
	}
	if err != nil {
		return nil, err
	}
	source, ok := schema.Material(t.typeOf(subject)).(*schema.ObjectType)
	if !ok {
		return nil, qerror.Typef(e, "shapes cannot be applied to expressions of type %s",
			t.typeOf(subject).TypeName())
	}
	view, err := t.compileShape(ctx, subject, source, e, e.Elems, shapeSelect)
	if err != nil {
		return nil, err
	}
	subject.Type = view
	return subject, nil
}

// compileShape derives (or, on a repeated visit of the same shape node,
// reuses) the view type for a shape and instantiates its element Sets
// over the subject.  View types are memoized per shape node so that
// every occurrence of one source-level shape shares a single derived
// type.
func (t *translator) compileShape(ctx *context, subject *ir.Set, source *schema.ObjectType, key ast.Node, elems []*ast.ShapeElement, kind shapeKind) (*schema.ObjectType, error) {
	if view, ok := ctx.viewCache[key]; ok {
		if err := t.reinstantiateShape(ctx, subject, view, key); err != nil {
			return nil, err
		}
		return view, nil
	}
	name := schema.Name{Module: "__derived__", Local: source.Name.Local + "@" + ksuid.New().String()}
	if kind == shapeSelect && ctx.exposed && ctx.resultViewName != (schema.Name{}) {
		// The exposed result view takes the caller-requested name; only
		// the outermost shape consumes it.
		name = ctx.resultViewName
		ctx.resultViewName = schema.Name{}
	}
	view := &schema.ObjectType{
		Name: name,
		View: &schema.ViewInfo{
			Origin:   source,
			ID:       ksuid.New().String(),
			Mutation: kind != shapeSelect,
		},
	}
	ctx.viewCache[key] = view
	t.env.catalog.Add(view)
	t.env.views[view.Name] = view

	mentioned := make(map[string]bool, len(elems))
	var shape []*ir.Set
	for _, elem := range elems {
		ptr, set, err := t.compileShapeElement(ctx, subject, source, view, elem, kind)
		if err != nil {
			return nil, err
		}
		view.Pointers = append(view.Pointers, ptr)
		mentioned[ptr.Name] = true
		shape = append(shape, set)
	}
	if kind == shapeInsert {
		defaulted, err := t.synthesizeDefaults(ctx, subject, source, view, mentioned, key)
		if err != nil {
			return nil, err
		}
		shape = append(shape, defaulted...)
	}
	if kind == shapeSelect && ctx.exposed && t.env.opts.ImplicitIDInShapes && !mentioned["id"] {
		if idPtr := source.PointerByName("id"); idPtr != nil {
			derived := idPtr.Derive(view, idPtr.Target)
			view.Pointers = append([]*schema.Pointer{derived}, view.Pointers...)
			set, err := t.shapeElemSet(ctx, subject, derived, key)
			if err != nil {
				return nil, err
			}
			shape = append([]*ir.Set{set}, shape...)
		}
	}
	subject.Shape = shape
	return view, nil
}

// reinstantiateShape rebuilds the element Sets of an already derived
// view over a new subject occurrence.  The pointers, their computed
// expressions, and any nested views are reused as-is.
func (t *translator) reinstantiateShape(ctx *context, subject *ir.Set, view *schema.ObjectType, key ast.Node) error {
	var shape []*ir.Set
	for _, ptr := range view.Pointers {
		set, err := t.shapeElemSet(ctx, subject, ptr, key)
		if err != nil {
			return err
		}
		if nested, ok := ptr.Target.(*schema.ObjectType); ok && nested.View != nil {
			if err := t.reinstantiateShape(ctx, set, nested, key); err != nil {
				return err
			}
			set.Type = nested
		}
		shape = append(shape, set)
	}
	subject.Shape = shape
	return nil
}

// shapeElemSet builds and scopes the Set for one view pointer projected
// off the subject.  Each element lives under its own fence.
func (t *translator) shapeElemSet(ctx *context, subject *ir.Set, ptr *schema.Pointer, n ast.Node) (*ir.Set, error) {
	set := t.extendPath(ctx, subject, ptr, ast.Outbound, n)
	if info, ok := t.env.computed[ptr]; ok {
		set.Expr = &ir.SubqueryExpr{Body: info.Expr}
	} else if root := ptr.Root(); root.Computable() {
		// A plain reference projecting a schema computable carries the
		// computable's defining expression.
		if err := t.compileComputable(ctx, set, root); err != nil {
			return nil, err
		}
	}
	sub, release := ctx.fork(modeNewFence)
	err := sub.registerSetInScope(set, !ptr.Required)
	release()
	if err != nil {
		return nil, err
	}
	return set, nil
}

// compileShapeElement derives the view pointer for one shape element
// and builds its Set.
func (t *translator) compileShapeElement(ctx *context, subject *ir.Set, source *schema.ObjectType, view *schema.ObjectType, elem *ast.ShapeElement, kind shapeKind) (*schema.Pointer, *ir.Set, error) {
	narrow, ptrStep, err := shapeElemPtr(elem)
	if err != nil {
		return nil, nil, err
	}
	if elem.Operation != "" && elem.Operation != ast.Assign && kind != shapeUpdate {
		return nil, nil, qerror.Typef(elem, "%q is only valid in an update shape", elem.Operation)
	}

	lookup := source
	if narrow != nil {
		narrowType, err := t.resolveTypeExpr(ctx, narrow.Type)
		if err != nil {
			return nil, nil, err
		}
		obj, ok := schema.Material(narrowType).(*schema.ObjectType)
		if !ok {
			return nil, nil, qerror.Typef(narrow, "polymorphic shape qualifier %s is not an object type",
				narrowType.TypeName())
		}
		if !schema.SubtypeOf(obj, source) {
			return nil, nil, qerror.Typef(narrow, "%s is not a subtype of %s",
				obj.TypeName(), source.TypeName())
		}
		lookup = obj
	}

	switch {
	case ptrStep.LinkProp:
		return t.linkPropShapeElem(ctx, subject, view, elem, ptrStep)
	case elem.Compexpr != nil:
		return t.computedShapeElem(ctx, subject, lookup, view, elem, ptrStep, kind)
	}

	// Plain reference: project the existing pointer through the view.
	if kind == shapeInsert {
		return nil, nil, qerror.Typef(elem, "missing value for %q in insert shape", ptrStep.Name)
	}
	base := lookup.PointerByName(ptrStep.Name)
	if base == nil {
		e := qerror.Referencef(ptrStep, "object type %s has no link or property %q",
			lookup.TypeName(), ptrStep.Name)
		e.Hint = qerror.Suggest(ptrStep.Name, lookup.PointerNames())
		return nil, nil, e
	}
	target := base.Target
	derived := base.Derive(view, target)
	if narrow != nil {
		// Elements outside the narrowed subtype yield no value.
		derived.Required = false
	}
	set, err := t.shapeElemSet(ctx, subject, derived, elem)
	if err != nil {
		return nil, nil, err
	}
	if len(elem.Elems) > 0 {
		obj, ok := schema.Material(target).(*schema.ObjectType)
		if !ok {
			return nil, nil, qerror.Typef(elem, "nested shapes cannot be applied to %s", target.TypeName())
		}
		nested, err := t.compileShape(ctx, set, obj, elem, elem.Elems, shapeSelect)
		if err != nil {
			return nil, nil, err
		}
		derived.Target = nested
		set.Type = nested
	}
	if elem.Where != nil {
		if set, err = t.filterShapeElem(ctx, set, elem.Where); err != nil {
			return nil, nil, err
		}
	}
	return derived, set, nil
}

// linkPropShapeElem resolves an @-prefixed element against the link the
// enclosing nested shape was reached through.
func (t *translator) linkPropShapeElem(ctx *context, subject *ir.Set, view *schema.ObjectType, elem *ast.ShapeElement, ptrStep *ast.Ptr) (*schema.Pointer, *ir.Set, error) {
	if subject.Rptr == nil || subject.Rptr.Ptr.Kind != schema.Link {
		return nil, nil, qerror.Referencef(ptrStep,
			"link property %q may only appear in a shape on a link", ptrStep.Name)
	}
	link := subject.Rptr.Ptr
	prop := link.PropByName(ptrStep.Name)
	if prop == nil && elem.Compexpr == nil {
		var names []string
		for _, p := range link.Root().Props {
			names = append(names, p.Name)
		}
		e := qerror.Referencef(ptrStep, "link %q has no property %q", link.Name, ptrStep.Name)
		e.Hint = qerror.Suggest(ptrStep.Name, names)
		return nil, nil, e
	}
	if elem.Compexpr != nil {
		return t.computedLinkProp(ctx, subject, view, elem, ptrStep, prop)
	}
	derived := prop.Derive(view, prop.Target)
	set, err := t.shapeElemSet(ctx, subject, derived, elem)
	if err != nil {
		return nil, nil, err
	}
	return derived, set, nil
}

func (t *translator) computedLinkProp(ctx *context, subject *ir.Set, view *schema.ObjectType, elem *ast.ShapeElement, ptrStep *ast.Ptr, prop *schema.Pointer) (*schema.Pointer, *ir.Set, error) {
	val, err := t.compileShapeExpr(ctx, subject, elem, prop, ptrStep.Name)
	if err != nil {
		return nil, nil, err
	}
	var derived *schema.Pointer
	if prop != nil {
		derived = prop.Derive(view, t.typeOf(val))
	} else {
		derived = &schema.Pointer{
			Name:        ptrStep.Name,
			Kind:        schema.Property,
			Source:      view,
			Target:      t.typeOf(val),
			Cardinality: schema.CardUnknown,
		}
	}
	t.recordComputed(derived, val)
	set, err := t.shapeElemSet(ctx, subject, derived, elem)
	if err != nil {
		return nil, nil, err
	}
	return derived, set, nil
}

// computedShapeElem compiles a := element: the defining expression is
// compiled under a sub-context whose subject anchor and partial-path
// prefix point at the shaped set, then captured as a derived computed
// pointer.
func (t *translator) computedShapeElem(ctx *context, subject *ir.Set, lookup *schema.ObjectType, view *schema.ObjectType, elem *ast.ShapeElement, ptrStep *ast.Ptr, kind shapeKind) (*schema.Pointer, *ir.Set, error) {
	base := lookup.PointerByName(ptrStep.Name)
	if kind != shapeSelect && base == nil {
		e := qerror.Referencef(ptrStep, "object type %s has no link or property %q",
			lookup.TypeName(), ptrStep.Name)
		e.Hint = qerror.Suggest(ptrStep.Name, lookup.PointerNames())
		return nil, nil, e
	}
	if kind != shapeSelect && base != nil && base.Computable() {
		return nil, nil, qerror.Typef(elem, "cannot assign to computed %q", ptrStep.Name)
	}
	if elem.Operation == ast.Append || elem.Operation == ast.Subtract {
		if base == nil || base.Kind != schema.Link {
			return nil, nil, qerror.Typef(elem, "%q may only be applied to links", elem.Operation)
		}
	}
	val, err := t.compileShapeExpr(ctx, subject, elem, base, ptrStep.Name)
	if err != nil {
		return nil, nil, err
	}
	valType := t.typeOf(val)
	var derived *schema.Pointer
	if base != nil {
		if kind != shapeSelect && !t.assignable(valType, base.Target) {
			return nil, nil, qerror.Typef(elem, "invalid target for %q: %s (expecting %s)",
				ptrStep.Name, valType.TypeName(), base.Target.TypeName())
		}
		derived = base.Derive(view, valType)
		if kind != shapeSelect {
			// Mutation values keep the declared storage type.
			derived.Target = base.Target
		}
	} else {
		pkind := schema.Property
		if _, ok := schema.Material(valType).(*schema.ObjectType); ok {
			pkind = schema.Link
		}
		derived = &schema.Pointer{
			Name:        ptrStep.Name,
			Kind:        pkind,
			Source:      view,
			Target:      valType,
			Cardinality: schema.CardUnknown,
		}
	}
	if elem.Required != nil {
		derived.Required = *elem.Required
	}
	t.recordComputed(derived, val)
	set, err := t.shapeElemSet(ctx, subject, derived, elem)
	if err != nil {
		return nil, nil, err
	}
	return derived, set, nil
}

// compileShapeExpr compiles a computed element's defining expression in
// a subquery context.  Leading-dot paths resolve against the shaped
// subject and the expression sits behind its own fence.
func (t *translator) compileShapeExpr(ctx *context, subject *ir.Set, elem *ast.ShapeElement, basePtr *schema.Pointer, name string) (*ir.Set, error) {
	sub, release := ctx.fork(modeSubquery)
	defer release()
	sub.viewRptr = &viewRptr{ptr: basePtr, name: name}
	sub.partialPathPrefix = subject
	sub.anchors["__subject__"] = subject
	fenced, frelease := sub.fork(modeNewFence)
	defer frelease()
	return t.semExpr(fenced, elem.Compexpr)
}

// recordComputed captures the provenance of a derived computed pointer
// and defers its cardinality inference until the enclosing statement
// has been fully compiled.
func (t *translator) recordComputed(derived *schema.Pointer, val *ir.Set) {
	t.env.computed[derived] = &ir.ComputedPtrInfo{Ptr: derived, Expr: val}
	if derived.Cardinality == schema.CardUnknown {
		t.env.pending = append(t.env.pending, func() error {
			if derived.Cardinality == schema.CardUnknown {
				derived.Cardinality = t.env.inferrer.InferCardinality(val, nil)
			}
			return nil
		})
	}
}

// filterShapeElem wraps a shape element in a subquery select applying
// its inline filter.
func (t *translator) filterShapeElem(ctx *context, set *ir.Set, where ast.Expr) (*ir.Set, error) {
	sub, release := ctx.fork(modeSubquery)
	defer release()
	sub.partialPathPrefix = set
	sub.clause = "filter"
	fenced, frelease := sub.fork(modeNewFence)
	cond, err := t.semExpr(fenced, where)
	frelease()
	if err != nil {
		return nil, err
	}
	return t.newSet(ctx, ir.Set{
		PathID: set.PathID,
		Type:   set.Type,
		Rptr:   set.Rptr,
		Expr:   &ir.SelectStmt{Result: set, Where: cond, Cardinality: schema.Many},
		AST:    set.AST,
	}), nil
}

// synthesizeDefaults fills in the unmentioned storage pointers of an
// insert shape from their declared defaults, rejecting required
// pointers that have neither a value nor a default.
func (t *translator) synthesizeDefaults(ctx *context, subject *ir.Set, source *schema.ObjectType, view *schema.ObjectType, mentioned map[string]bool, n ast.Node) ([]*ir.Set, error) {
	var out []*ir.Set
	for _, name := range source.PointerNames() {
		if mentioned[name] || name == "id" {
			continue
		}
		base := source.PointerByName(name)
		if base.Computable() {
			continue
		}
		if base.Default == nil {
			if base.Required {
				return nil, qerror.Typef(n, "missing value for required %s.%s",
					source.TypeName(), name)
			}
			continue
		}
		sub, release := ctx.fork(modeNewFence)
		val, err := t.semExpr(sub, base.Default)
		release()
		if err != nil {
			return nil, err
		}
		derived := base.Derive(view, base.Target)
		t.recordComputed(derived, val)
		view.Pointers = append(view.Pointers, derived)
		set, err := t.shapeElemSet(ctx, subject, derived, n)
		if err != nil {
			return nil, err
		}
		out = append(out, set)
	}
	return out, nil
}

// assignable reports whether a value of type val may be assigned to
// storage of type target, directly or through an assignment cast.
func (t *translator) assignable(val, target schema.Type) bool {
	if schema.SubtypeOf(val, target) {
		return true
	}
	return t.env.resolver.AssignmentCastable(val, target)
}

// shapeElemPtr extracts the optional polymorphic qualifier and the
// pointer step from a shape element's path.
func shapeElemPtr(elem *ast.ShapeElement) (*ast.TypeIntersection, *ast.Ptr, error) {
	if elem.Expr == nil || len(elem.Expr.Steps) == 0 {
		return nil, nil, qerror.Scopef(elem, "invalid shape element")
	}
	steps := elem.Expr.Steps
	var narrow *ast.TypeIntersection
	if is, ok := steps[0].(*ast.TypeIntersection); ok {
		narrow = is
		steps = steps[1:]
	}
	if len(steps) != 1 {
		return nil, nil, qerror.Scopef(elem, "invalid shape element")
	}
	ptr, ok := steps[0].(*ast.Ptr)
	if !ok {
		return nil, nil, qerror.Scopef(elem, "invalid shape element")
	}
	return narrow, ptr, nil
}
