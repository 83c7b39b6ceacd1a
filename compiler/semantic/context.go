// Package semantic implements the AST to IR compiler: path and scope
// resolution, set generation, overload and cast resolution, shape
// compilation, and statement orchestration.
package semantic

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/quarreldb/quarrel/compiler/ast"
	"github.com/quarreldb/quarrel/compiler/ir"
	"github.com/quarreldb/quarrel/compiler/qerror"
	"github.com/quarreldb/quarrel/inference"
	"github.com/quarreldb/quarrel/schema"
)

// environment is the compilation state shared by every context level of
// one top-level compile call.  It is owned exclusively by that call and
// is never shared across compilations.
type environment struct {
	catalog  *schema.Overlay
	resolver *schema.Resolver
	inferrer inference.Inferrer
	scope    *ir.ScopeTree
	// allSets registers every Set constructed during the compilation;
	// the set generator is its sole writer.
	allSets []*ir.Set
	aliases aliasGenerator
	params  map[string]schema.Type
	views   map[schema.Name]schema.Type
	// computed maps computed pointers to their provenance.
	computed map[*schema.Pointer]*ir.ComputedPtrInfo
	// pending holds deferred completion callbacks for derived pointers
	// whose cardinality was unknown at derivation time; they run once
	// the whole enclosing statement has been seen.
	pending []func() error
	// extraFence records, once per AST statement node, whether the
	// statement body needed the extra LIMIT/OFFSET fence.  Repeated
	// visits reuse the recorded decision.
	extraFence map[ast.Node]bool
	logger     *zap.Logger
	opts       Options
}

// aliasGenerator produces compilation-unique alias strings.
type aliasGenerator struct {
	counters map[string]int
}

func (g *aliasGenerator) get(prefix string) string {
	if g.counters == nil {
		g.counters = make(map[string]int)
	}
	n := g.counters[prefix]
	g.counters[prefix]++
	return prefix + "~" + strconv.Itoa(n)
}

// switchMode selects, per state field, whether a forked context level
// copies, shares, or resets the parent's value.
type switchMode int

const (
	// modeNew shares almost everything; clause-local bookkeeping that
	// must still see sibling state.
	modeNew switchMode = iota
	// modeSubquery copies anchors, module aliases, and the view-alias
	// layer; resets the current statement, view-pointer context, and
	// partial-path prefix.
	modeSubquery
	// modeNewScope attaches a branch child to the current scope node.
	modeNewScope
	modeNewScopeTemp
	// modeNewFence attaches a fence child to the current scope node.
	modeNewFence
	modeNewFenceTemp
	// modeDetached is modeSubquery plus a reset of the view and
	// derived-type caches and a fresh path-id namespace, severing
	// correlation entirely.
	modeDetached
)

// aliasLayer is one layer of WITH-bound view aliases; lookups fall
// through to the parent layer.
type aliasLayer struct {
	parent *aliasLayer
	m      map[string]*ir.Set
}

func (l *aliasLayer) lookup(name string) *ir.Set {
	for ; l != nil; l = l.parent {
		if s, ok := l.m[name]; ok {
			return s
		}
	}
	return nil
}

func (l *aliasLayer) bind(name string, s *ir.Set) {
	l.m[name] = s
}

func newAliasLayer(parent *aliasLayer) *aliasLayer {
	return &aliasLayer{parent: parent, m: make(map[string]*ir.Set)}
}

// stmtState is the per-statement bookkeeping of the orchestrator.
type stmtState struct {
	ast   ast.Statement
	fence ir.ScopeID
}

// viewRptr carries the pointer the shape element currently being
// compiled will bind to; contextless expressions in element position
// (an empty set) take their type from it.
type viewRptr struct {
	ptr  *schema.Pointer
	name string
}

// context is one stack frame of compilation state.  Frames are created
// and destroyed in strict push/pop order via fork and the returned
// release function.
type context struct {
	env *environment

	anchors     map[string]*ir.Set
	modAliases  map[string]string
	viewAliases *aliasLayer
	// viewMap binds namespace-stripped path keys to already compiled
	// sets, so a path root inside a computable resolves to the
	// computable's own source rather than a fresh root.
	viewMap           map[string]*ir.Set
	viewCache         map[ast.Node]*schema.ObjectType
	stmt              *stmtState
	toplevelStmt      *stmtState
	viewRptr          *viewRptr
	partialPathPrefix *ir.Set
	pathIDNamespace   string
	clause            string
	exposed           bool
	resultViewName    schema.Name

	// scope is the current scope-tree node.
	scope ir.ScopeID
	// tempScope is the node attached by a _TEMP fork, removed from the
	// parent on release.
	tempScope ir.ScopeID
}

func rootContext(env *environment) *context {
	return &context{
		env:         env,
		anchors:     make(map[string]*ir.Set),
		modAliases:  make(map[string]string),
		viewAliases: newAliasLayer(nil),
		viewMap:     make(map[string]*ir.Set),
		viewCache:   make(map[ast.Node]*schema.ObjectType),
		scope:       env.scope.Root(),
		tempScope:   ir.NoScope,
	}
}

// fork pushes a new context level.  The returned release function pops
// it; for the _TEMP modes this removes the attached scope subtree from
// its parent.  Callers must release levels in LIFO order.
func (c *context) fork(mode switchMode) (*context, func()) {
	n := *c
	n.tempScope = ir.NoScope

	switch mode {
	case modeSubquery, modeDetached:
		n.anchors = copyMap(c.anchors)
		n.modAliases = copyMap(c.modAliases)
		n.viewAliases = newAliasLayer(c.viewAliases)
		n.stmt = nil
		n.viewRptr = nil
		n.partialPathPrefix = nil
		n.resultViewName = schema.Name{}
		if mode == modeDetached {
			n.viewAliases = newAliasLayer(nil)
			n.viewMap = make(map[string]*ir.Set)
			n.viewCache = make(map[ast.Node]*schema.ObjectType)
			n.pathIDNamespace = c.env.aliases.get("ns")
		}
	case modeNewScope, modeNewScopeTemp:
		n.scope = c.env.scope.AttachBranch(c.scope)
	case modeNewFence, modeNewFenceTemp:
		n.scope = c.env.scope.AttachFence(c.scope)
	}

	switch mode {
	case modeNewScopeTemp, modeNewFenceTemp:
		n.tempScope = n.scope
		np := &n
		return np, func() {
			if np.tempScope != ir.NoScope {
				c.env.scope.RemoveSubtree(np.tempScope)
				np.tempScope = ir.NoScope
			}
		}
	}
	return &n, func() {}
}

// keepScope converts a _TEMP level's scope subtree into a permanent
// one; the release function becomes a no-op.
func (c *context) keepScope() {
	c.tempScope = ir.NoScope
}

// mergeScopeInto reparents the children of a _TEMP level's subtree
// under dst, so the release function removes only the empty husk.
func (c *context) mergeScopeInto(dst ir.ScopeID) {
	if c.tempScope != ir.NoScope {
		c.env.scope.Reparent(c.tempScope, dst)
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// registerSetInScope attaches the set's path id under the current scope
// node.  A structurally inconsistent attachment (e.g. conflicting
// optionality for the same path) is a scope-configuration error,
// surfaced as a syntax error.
func (c *context) registerSetInScope(s *ir.Set, optional bool) error {
	id, err := c.env.scope.AttachPath(c.scope, s.PathID, optional)
	if err != nil {
		return qerror.Scopef(s.AST, "invalid path reference: %s", err)
	}
	s.ScopeID = id
	return nil
}

// enforceSingleton verifies that the expression is provably of
// cardinality exactly one relative to the paths bound in the nearest
// enclosing fence.  The expression's own binding is not a witness for
// itself; the clause subject, when set, iterates element-wise and so
// counts as a singleton.
func (c *context) enforceSingleton(n ast.Node, s *ir.Set) error {
	var singletons []ir.PathID
	for _, pid := range c.env.scope.VisibleBoundPaths(c.scope) {
		if !pid.Equal(s.PathID) {
			singletons = append(singletons, pid)
		}
	}
	if c.partialPathPrefix != nil {
		singletons = append(singletons, c.partialPathPrefix.PathID)
	}
	if card := c.env.inferrer.InferCardinality(s, singletons); card != schema.One {
		return qerror.Typef(n, "possibly more than one element returned by an expression where only singletons are allowed")
	}
	return nil
}

func (c *context) logDebug(msg string, fields ...zap.Field) {
	if ce := c.env.logger.Check(zap.DebugLevel, msg); ce != nil {
		ce.Write(fields...)
	}
}

// stdType fetches a well-known std type, or nil if the catalog does not
// define it (minimal schemas in isolated-fragment compilation).
func (c *context) stdType(local string) schema.Type {
	obj, err := c.env.catalog.Get(schema.Name{Module: "std", Local: local}, nil)
	if err != nil {
		return nil
	}
	t, _ := obj.(schema.Type)
	return t
}

func (c *context) describeClause() string {
	if c.clause == "" {
		return "expression"
	}
	return fmt.Sprintf("%s clause", c.clause)
}
