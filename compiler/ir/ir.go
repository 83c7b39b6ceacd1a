package ir

import (
	"github.com/quarreldb/quarrel/compiler/ast"
	"github.com/quarreldb/quarrel/schema"
)

type Node interface {
	irNode()
}

// Expr is a defining expression attached to a Set.
type Expr interface {
	Node
	exprNode()
}

// Set represents a possibly multi-valued expression result.  Every Set
// is created through the semantic package's set generator and is
// registered in the compilation's all-sets list; nothing constructs one
// directly.
type Set struct {
	PathID PathID
	// Type is the static type when resolvable at construction; the
	// external inferencer resolves it lazily otherwise.
	Type schema.Type
	// Expr is the defining expression, nil for pure path sets.
	Expr Expr
	// Rptr is the incoming pointer edge that produced this Set via
	// navigation; at most one per Set.
	Rptr *PointerRef
	// Shape is the ordered list of element Sets projected over this
	// Set.
	Shape []*Set
	// ScopeID is the scope-tree node this Set's path is bound under.
	ScopeID ScopeID
	// Anchor is the anchor name for anchor-rooted sets.
	Anchor string
	// AST is the source node for error reporting.
	AST ast.Node
}

// PointerRef is the edge (source, schema pointer, direction) that
// produced a Set.
type PointerRef struct {
	Source    *Set
	Ptr       *schema.Pointer
	Direction ast.Direction
}

type (
	// Literal is a constant value with a resolved type.
	Literal struct {
		Type  schema.Type
		Value string
	}
	// EmptySet is the {} constructor; its type may stay unknown when no
	// context demands one.
	EmptySet struct {
		Type schema.Type
	}
	// Parameter is a query parameter reference.
	Parameter struct {
		Name string
		Type schema.Type
	}
	// CallArg is one bound argument of a resolved call.
	CallArg struct {
		Param *schema.Param
		Value *Set
	}
	// FunctionCall is a fully resolved function call.
	FunctionCall struct {
		Callable *schema.Callable
		Args     []CallArg
	}
	// OperatorCall is a fully resolved operator application.
	OperatorCall struct {
		Operator string
		Callable *schema.Callable
		Args     []CallArg
	}
	// TypeCastExpr converts Expr to the target type via the named
	// registered cast, or structurally when CastName is empty.
	TypeCastExpr struct {
		Expr     *Set
		From, To schema.Type
		CastName string
	}
	// TypeIntersectionExpr is the [is Type] polymorphic-narrowing
	// pseudo-edge.
	TypeIntersectionExpr struct {
		Expr *Set
		To   schema.Type
	}
	TupleExpr struct {
		Elems []TupleElemExpr
		Named bool
	}
	ArrayExpr struct {
		Type  schema.Type
		Elems []*Set
	}
	ConditionalExpr struct {
		Cond    *Set
		IfTrue  *Set
		IfFalse *Set
	}
	// SubqueryExpr wraps a Set in its own fenced subquery, inserted to
	// break self-correlation cycles.
	SubqueryExpr struct {
		Body *Set
	}
	// TupleIndirectionExpr is structural access to a tuple element; it
	// never involves a schema pointer.
	TupleIndirectionExpr struct {
		Expr *Set
		Name string
	}
	// SetConstructor is the {a, b, ...} literal; the empty constructor
	// is EmptySet instead.
	SetConstructor struct {
		Type  schema.Type
		Elems []*Set
	}
)

type TupleElemExpr struct {
	Name string
	Val  *Set
}

// Statement IR nodes.  Statements implement Expr so a statement can be
// the defining expression of a Set (subquery position).

type (
	SelectStmt struct {
		Result      *Set
		Where       *Set
		OrderBy     []SortInfo
		Offset      *Set
		Limit       *Set
		Cardinality schema.Cardinality
	}
	InsertStmt struct {
		Subject *Set
	}
	UpdateStmt struct {
		Subject *Set
		Where   *Set
	}
	DeleteStmt struct {
		Subject *Set
		Where   *Set
	}
	ForStmt struct {
		Iterator    *Set
		IteratorSet *Set
		Body        *Set
	}
	GroupStmt struct {
		Subject *Set
		Using   []GroupBinding
		By      []*Set
	}
)

type SortInfo struct {
	Expr       *Set
	Descending bool
	EmptyLast  bool
}

type GroupBinding struct {
	Name string
	Set  *Set
}

// ComputedPtrInfo records the provenance of a computed pointer: its
// defining expression compiled under its private context.
type ComputedPtrInfo struct {
	Ptr  *schema.Pointer
	Expr *Set
}

// Statement is the root output of one compile call.
type Statement struct {
	Set          *Set
	Params       map[string]schema.Type
	Views        map[schema.Name]schema.Type
	ComputedPtrs map[*schema.Pointer]*ComputedPtrInfo
	ScopeTree    *ScopeTree
	Cardinality  schema.Cardinality
}

func (*Set) irNode()          {}
func (*PointerRef) irNode()   {}
func (*Statement) irNode()    {}
func (*Literal) irNode()      {}
func (*EmptySet) irNode()     {}
func (*Parameter) irNode()    {}
func (*FunctionCall) irNode() {}
func (*OperatorCall) irNode() {}
func (*TypeCastExpr) irNode() {}
func (*TypeIntersectionExpr) irNode() {}
func (*TupleExpr) irNode()       {}
func (*ArrayExpr) irNode()       {}
func (*ConditionalExpr) irNode() {}
func (*SubqueryExpr) irNode()         {}
func (*TupleIndirectionExpr) irNode() {}
func (*SetConstructor) irNode()       {}
func (*SelectStmt) irNode()      {}
func (*InsertStmt) irNode()      {}
func (*UpdateStmt) irNode()      {}
func (*DeleteStmt) irNode()      {}
func (*ForStmt) irNode()         {}
func (*GroupStmt) irNode()       {}

func (*Set) exprNode()          {}
func (*Literal) exprNode()      {}
func (*EmptySet) exprNode()     {}
func (*Parameter) exprNode()    {}
func (*FunctionCall) exprNode() {}
func (*OperatorCall) exprNode() {}
func (*TypeCastExpr) exprNode() {}
func (*TypeIntersectionExpr) exprNode() {}
func (*TupleExpr) exprNode()       {}
func (*ArrayExpr) exprNode()       {}
func (*ConditionalExpr) exprNode() {}
func (*SubqueryExpr) exprNode()         {}
func (*TupleIndirectionExpr) exprNode() {}
func (*SetConstructor) exprNode()       {}
func (*SelectStmt) exprNode()      {}
func (*InsertStmt) exprNode()      {}
func (*UpdateStmt) exprNode()      {}
func (*DeleteStmt) exprNode()      {}
func (*ForStmt) exprNode()         {}
func (*GroupStmt) exprNode()       {}
