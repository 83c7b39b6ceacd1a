// Package inference declares the interface to the static type and
// cardinality inferencer.  The inference algorithms themselves live
// outside this repository; the compiler consumes them through Inferrer.
package inference

import (
	"github.com/quarreldb/quarrel/compiler/ast"
	"github.com/quarreldb/quarrel/compiler/ir"
	"github.com/quarreldb/quarrel/schema"
)

// Inferrer resolves static types and cardinalities of IR nodes on
// demand.
type Inferrer interface {
	// InferType returns the static type of the node, or nil when the
	// type cannot be statically resolved (e.g. a contextless empty-set
	// literal).  A nil result is not an error for isolated fragments.
	InferType(n ir.Node) schema.Type

	// InferCardinality classifies the multiplicity of the node given
	// the set of paths provably bound as singletons in the enclosing
	// scope.
	InferCardinality(n ir.Node, visibleSingletons []ir.PathID) schema.Cardinality
}

// Structural is a minimal structural inferrer sufficient for compiling
// isolated fragments and for tests.  Embedders supply the full
// inference engine in production.
type Structural struct{}

func (Structural) InferType(n ir.Node) schema.Type {
	switch n := n.(type) {
	case *ir.Set:
		if n.Type != nil {
			return n.Type
		}
		if n.Expr != nil {
			return Structural{}.InferType(n.Expr)
		}
		if n.Rptr != nil {
			return n.Rptr.Ptr.Target
		}
	case *ir.Literal:
		return n.Type
	case *ir.EmptySet:
		return n.Type
	case *ir.Parameter:
		return n.Type
	case *ir.FunctionCall:
		return n.Callable.Return
	case *ir.OperatorCall:
		return n.Callable.Return
	case *ir.TypeCastExpr:
		return n.To
	case *ir.TypeIntersectionExpr:
		return n.To
	case *ir.ArrayExpr:
		return n.Type
	case *ir.SelectStmt:
		return Structural{}.InferType(n.Result)
	case *ir.SubqueryExpr:
		return Structural{}.InferType(n.Body)
	}
	return nil
}

func (Structural) InferCardinality(n ir.Node, visibleSingletons []ir.PathID) schema.Cardinality {
	switch n := n.(type) {
	case *ir.Set:
		for _, pid := range visibleSingletons {
			if n.PathID.Equal(pid) {
				return schema.One
			}
		}
		if n.Rptr != nil {
			src := Structural{}.InferCardinality(n.Rptr.Source, visibleSingletons)
			if src == schema.One && n.Rptr.Direction == ast.Outbound && n.Rptr.Ptr.Cardinality == schema.One {
				return schema.One
			}
			return schema.Many
		}
		if n.Expr != nil {
			return Structural{}.InferCardinality(n.Expr, visibleSingletons)
		}
		return schema.Many
	case *ir.Literal, *ir.Parameter:
		return schema.One
	case *ir.EmptySet:
		return schema.One
	case *ir.TypeCastExpr:
		return Structural{}.InferCardinality(n.Expr, visibleSingletons)
	case *ir.FunctionCall:
		// An aggregate collapses its SET OF arguments to one result.
		if n.Callable.HasSetOfParam() && n.Callable.ReturnMod != schema.SetOf {
			return schema.One
		}
	case *ir.TupleExpr:
		return schema.One
	case *ir.ArrayExpr:
		return schema.One
	}
	return schema.Many
}
