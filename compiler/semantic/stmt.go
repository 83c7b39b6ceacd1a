package semantic

import (
	"fmt"

	"github.com/quarreldb/quarrel/compiler/ast"
	"github.com/quarreldb/quarrel/compiler/ir"
	"github.com/quarreldb/quarrel/compiler/qerror"
	"github.com/quarreldb/quarrel/schema"
)

// semStatement orchestrates one query statement: push a subquery
// context with the statement's fence, compile the WITH block, compile
// each clause under its own fence, then attach the whole statement as a
// single Set in the enclosing scope.
func (t *translator) semStatement(ctx *context, s ast.Statement) (*ir.Set, error) {
	switch s := s.(type) {
	case *ast.SelectQuery:
		return t.semSelect(ctx, s)
	case *ast.InsertQuery:
		return t.semInsert(ctx, s)
	case *ast.UpdateQuery:
		return t.semUpdate(ctx, s)
	case *ast.DeleteQuery:
		return t.semDelete(ctx, s)
	case *ast.ForQuery:
		return t.semFor(ctx, s)
	case *ast.GroupQuery:
		return t.semGroup(ctx, s)
	}
	panic(fmt.Sprintf("semantic analysis: unhandled statement %T", s))
}

// stmtInit pushes the statement's subquery context and fence and binds
// its WITH block.  The caller must invoke the returned release.
func (t *translator) stmtInit(ctx *context, s ast.Statement) (*context, func(), error) {
	sub, release := ctx.fork(modeSubquery)
	sub.scope = t.env.scope.AttachFence(sub.scope)
	sub.stmt = &stmtState{ast: s, fence: sub.scope}
	if sub.toplevelStmt == nil {
		sub.toplevelStmt = sub.stmt
	}
	sub.exposed = false
	if err := t.compileWithBlock(sub, s.WithBlock()); err != nil {
		release()
		return nil, nil, err
	}
	return sub, release, nil
}

func (t *translator) compileWithBlock(ctx *context, block []ast.Alias) error {
	for _, alias := range block {
		switch a := alias.(type) {
		case *ast.ModuleAlias:
			ctx.modAliases[a.Alias] = a.Module
		case *ast.AliasedExpr:
			// A WITH binding is factored out of the statement body: it
			// compiles under its own fence and is correlated only through
			// explicit uses of the alias.
			sub, release := ctx.fork(modeNewFence)
			s, err := t.semExpr(sub, a.Expr)
			release()
			if err != nil {
				return err
			}
			ctx.viewAliases.bind(a.Alias, s)
		default:
			panic(fmt.Sprintf("semantic analysis: unhandled WITH alias %T", alias))
		}
	}
	return nil
}

// degenerateSelect reports whether a SELECT is a bare path projection
// with no clauses, which compiles as the path itself with no statement
// wrapper.
func degenerateSelect(q *ast.SelectQuery) bool {
	if len(q.Aliases) > 0 || q.ResultAlias != "" || q.Where != nil ||
		len(q.OrderBy) > 0 || q.Offset != nil || q.Limit != nil {
		return false
	}
	_, isPath := q.Result.(*ast.Path)
	return isPath
}

func (t *translator) semSelect(ctx *context, q *ast.SelectQuery) (*ir.Set, error) {
	if degenerateSelect(q) {
		return t.semExpr(ctx, q.Result)
	}
	sub, release, err := t.stmtInit(ctx, q)
	if err != nil {
		return nil, err
	}
	defer release()

	// Whether the result needs the extra fence isolating it from the
	// LIMIT/OFFSET clauses is decided once per statement node; repeated
	// visits reuse the decision.
	extra := t.extraFenceFor(sub.stmt.ast, q.Offset != nil || q.Limit != nil)

	rctx, rrelease := sub.fork(modeNew)
	rctx.clause = "result"
	// Only the outermost statement's result clause is exposed; a select
	// nested inside a shape element or WITH binding is not.
	rctx.exposed = sub.stmt == sub.toplevelStmt
	rctx.resultViewName = ctx.resultViewName
	if extra {
		rctx.scope = t.env.scope.AttachFence(sub.stmt.fence)
	}
	result, err := t.semExpr(rctx, q.Result)
	rrelease()
	if err != nil {
		return nil, err
	}
	if q.ResultAlias != "" {
		sub.viewAliases.bind(q.ResultAlias, result)
	}

	stmt := &ir.SelectStmt{Result: result, Cardinality: schema.Many}
	if q.Where != nil {
		if stmt.Where, err = t.semFilterClause(sub, result, q.Where); err != nil {
			return nil, err
		}
	}
	for _, sort := range q.OrderBy {
		octx, orelease := sub.fork(modeNewFence)
		octx.clause = "order by"
		octx.partialPathPrefix = result
		key, err := t.semExpr(octx, sort.Expr)
		if err == nil {
			// Sort keys must be provably singleton per result element.
			err = octx.enforceSingleton(sort, key)
		}
		orelease()
		if err != nil {
			return nil, err
		}
		stmt.OrderBy = append(stmt.OrderBy, ir.SortInfo{
			Expr:       key,
			Descending: sort.Descending,
			EmptyLast:  sort.EmptyLast,
		})
	}
	if q.Offset != nil {
		if stmt.Offset, err = t.semLimitClause(sub, q.Offset, "offset"); err != nil {
			return nil, err
		}
	}
	if q.Limit != nil {
		if stmt.Limit, err = t.semLimitClause(sub, q.Limit, "limit"); err != nil {
			return nil, err
		}
		if lit, ok := stmt.Limit.Expr.(*ir.Literal); ok && (lit.Value == "0" || lit.Value == "1") {
			stmt.Cardinality = schema.One
		}
	}
	return t.stmtFini(ctx, stmt, t.typeOf(result), q)
}

// semFilterClause compiles a FILTER-style boolean clause under its own
// fence with leading-dot paths resolving against the subject.
func (t *translator) semFilterClause(ctx *context, subject *ir.Set, where ast.Expr) (*ir.Set, error) {
	sub, release := ctx.fork(modeNewFence)
	defer release()
	sub.clause = "filter"
	sub.partialPathPrefix = subject
	cond, err := t.semExpr(sub, where)
	if err != nil {
		return nil, err
	}
	if err := t.checkBool(sub, where, cond); err != nil {
		return nil, err
	}
	return cond, nil
}

// semLimitClause compiles an OFFSET or LIMIT operand.  The operand is a
// fenced singleton that cannot reference the statement result.
func (t *translator) semLimitClause(ctx *context, e ast.Expr, clause string) (*ir.Set, error) {
	sub, release := ctx.fork(modeNewFence)
	defer release()
	sub.clause = clause
	sub.partialPathPrefix = nil
	s, err := t.semExpr(sub, e)
	if err != nil {
		return nil, err
	}
	if err := sub.enforceSingleton(e, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (t *translator) checkBool(ctx *context, n ast.Node, s *ir.Set) error {
	boolType := ctx.stdType("bool")
	if boolType == nil {
		return nil
	}
	if st := t.typeOf(s); !st.Equal(boolType) && !schema.SubtypeOf(st, boolType) {
		return qerror.Typef(n, "%s must be of type std::bool, got %s",
			ctx.describeClause(), st.TypeName())
	}
	return nil
}

// extraFenceFor records the LIMIT/OFFSET fence decision the first time
// a statement node is seen and replays it on every later visit.
func (t *translator) extraFenceFor(q ast.Node, has bool) bool {
	if v, ok := t.env.extraFence[q]; ok {
		return v
	}
	t.env.extraFence[q] = has
	return has
}

// stmtFini wraps the finished statement IR as a Set in the enclosing
// scope.
func (t *translator) stmtFini(parent *context, stmt ir.Expr, typ schema.Type, n ast.Node) (*ir.Set, error) {
	return t.ensureSet(parent, stmt, typ, n)
}

func (t *translator) semInsert(ctx *context, q *ast.InsertQuery) (*ir.Set, error) {
	sub, release, err := t.stmtInit(ctx, q)
	if err != nil {
		return nil, err
	}
	defer release()

	name := schema.Name{Module: q.Subject.Module, Local: q.Subject.Name}
	obj, err := t.env.catalog.Get(name, sub.modAliases)
	if err != nil {
		e := qerror.Referencef(q, "%s", err)
		e.Hint = t.suggestName(name)
		return nil, e
	}
	typ, ok := obj.(*schema.ObjectType)
	if !ok {
		return nil, qerror.Typef(q, "cannot insert into %s: not an object type", name)
	}
	if typ.Abstract {
		return nil, qerror.Typef(q, "cannot insert into abstract type %s", name)
	}
	if typ.View != nil {
		return nil, qerror.Typef(q, "cannot insert into view %s", name)
	}

	subject, err := t.scopedSet(sub, t.newTypeRootSet(sub, typ, q))
	if err != nil {
		return nil, err
	}
	view, err := t.compileShape(sub, subject, typ, q, q.Shape, shapeInsert)
	if err != nil {
		return nil, err
	}
	subject.Type = view
	stmt := &ir.InsertStmt{Subject: subject}
	return t.stmtFini(ctx, stmt, view, q)
}

func (t *translator) semUpdate(ctx *context, q *ast.UpdateQuery) (*ir.Set, error) {
	sub, release, err := t.stmtInit(ctx, q)
	if err != nil {
		return nil, err
	}
	defer release()

	subject, err := t.semExpr(sub, q.Subject)
	if err != nil {
		return nil, err
	}
	typ, ok := schema.Material(t.typeOf(subject)).(*schema.ObjectType)
	if !ok {
		return nil, qerror.Typef(q, "cannot update expression of type %s",
			t.typeOf(subject).TypeName())
	}
	stmt := &ir.UpdateStmt{Subject: subject}
	if q.Where != nil {
		if stmt.Where, err = t.semFilterClause(sub, subject, q.Where); err != nil {
			return nil, err
		}
	}
	view, err := t.compileShape(sub, subject, typ, q, q.Shape, shapeUpdate)
	if err != nil {
		return nil, err
	}
	subject.Type = view
	return t.stmtFini(ctx, stmt, view, q)
}

func (t *translator) semDelete(ctx *context, q *ast.DeleteQuery) (*ir.Set, error) {
	sub, release, err := t.stmtInit(ctx, q)
	if err != nil {
		return nil, err
	}
	defer release()

	subject, err := t.semExpr(sub, q.Subject)
	if err != nil {
		return nil, err
	}
	if _, ok := schema.Material(t.typeOf(subject)).(*schema.ObjectType); !ok {
		return nil, qerror.Typef(q, "cannot delete expression of type %s",
			t.typeOf(subject).TypeName())
	}
	stmt := &ir.DeleteStmt{Subject: subject}
	if q.Where != nil {
		if stmt.Where, err = t.semFilterClause(sub, subject, q.Where); err != nil {
			return nil, err
		}
	}
	return t.stmtFini(ctx, stmt, t.typeOf(subject), q)
}

func (t *translator) semFor(ctx *context, q *ast.ForQuery) (*ir.Set, error) {
	sub, release, err := t.stmtInit(ctx, q)
	if err != nil {
		return nil, err
	}
	defer release()

	ictx, irelease := sub.fork(modeNewFence)
	ictx.clause = "for iterator"
	iterator, err := t.semExpr(ictx, q.Iterator)
	irelease()
	if err != nil {
		return nil, err
	}

	// The iteration variable is a fresh singleton path bound in the
	// statement scope; body references to the alias correlate with it.
	iterSet := t.newSet(sub, ir.Set{
		PathID: ir.NewExprPathID(t.env.aliases.get("for"), sub.pathIDNamespace),
		Type:   t.typeOf(iterator),
		AST:    q,
	})
	if err := sub.registerSetInScope(iterSet, false); err != nil {
		return nil, err
	}
	sub.viewAliases.bind(q.IteratorAlias, iterSet)

	bctx, brelease := sub.fork(modeNew)
	bctx.clause = "for body"
	body, err := t.semExpr(bctx, q.Body)
	brelease()
	if err != nil {
		return nil, err
	}
	stmt := &ir.ForStmt{Iterator: iterator, IteratorSet: iterSet, Body: body}
	return t.stmtFini(ctx, stmt, t.typeOf(body), q)
}

func (t *translator) semGroup(ctx *context, q *ast.GroupQuery) (*ir.Set, error) {
	sub, release, err := t.stmtInit(ctx, q)
	if err != nil {
		return nil, err
	}
	defer release()

	subject, err := t.semExpr(sub, q.Subject)
	if err != nil {
		return nil, err
	}
	if _, ok := schema.Material(t.typeOf(subject)).(*schema.ObjectType); !ok {
		return nil, qerror.Typef(q, "cannot group expression of type %s",
			t.typeOf(subject).TypeName())
	}
	stmt := &ir.GroupStmt{Subject: subject}
	for _, alias := range q.Using {
		a, ok := alias.(*ast.AliasedExpr)
		if !ok {
			return nil, qerror.Scopef(alias, "invalid USING binding")
		}
		uctx, urelease := sub.fork(modeNewFence)
		uctx.clause = "using"
		uctx.partialPathPrefix = subject
		s, err := t.semExpr(uctx, a.Expr)
		if err == nil {
			err = uctx.enforceSingleton(a, s)
		}
		urelease()
		if err != nil {
			return nil, err
		}
		sub.viewAliases.bind(a.Alias, s)
		stmt.Using = append(stmt.Using, ir.GroupBinding{Name: a.Alias, Set: s})
	}
	for _, by := range q.By {
		bctx, brelease := sub.fork(modeNew)
		bctx.clause = "by"
		bctx.partialPathPrefix = subject
		key, err := t.semExpr(bctx, by)
		brelease()
		if err != nil {
			return nil, err
		}
		stmt.By = append(stmt.By, key)
	}
	return t.stmtFini(ctx, stmt, t.typeOf(subject), q)
}
