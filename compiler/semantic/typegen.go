package semantic

import (
	"fmt"

	"github.com/quarreldb/quarrel/compiler/ast"
	"github.com/quarreldb/quarrel/compiler/qerror"
	"github.com/quarreldb/quarrel/schema"
)

// resolveTypeExpr resolves surface type syntax to a schema type.
// Collection types are constructed on demand and never registered.
func (t *translator) resolveTypeExpr(ctx *context, e ast.TypeExpr) (schema.Type, error) {
	switch e := e.(type) {
	case *ast.TypeName:
		name := schema.Name{Module: e.Ref.Module, Local: e.Ref.Name}
		obj, err := ctx.env.catalog.Get(name, ctx.modAliases)
		if err != nil {
			qe := qerror.Referencef(e, "%s", err)
			qe.Hint = t.suggestName(name)
			return nil, qe
		}
		typ, ok := obj.(schema.Type)
		if !ok {
			return nil, qerror.Typef(e, "%q is not a type", name)
		}
		return typ, nil
	case *ast.ArrayType:
		elem, err := t.resolveTypeExpr(ctx, e.Elem)
		if err != nil {
			return nil, err
		}
		return &schema.ArrayType{Elem: elem}, nil
	case *ast.TupleType:
		named := false
		elems := make([]schema.TupleElem, 0, len(e.Elems))
		for i, te := range e.Elems {
			typ, err := t.resolveTypeExpr(ctx, te.Type)
			if err != nil {
				return nil, err
			}
			name := te.Name
			if name != "" {
				named = true
			} else {
				name = fmt.Sprintf("%d", i)
			}
			elems = append(elems, schema.TupleElem{Name: name, Type: typ})
		}
		return &schema.TupleType{Elems: elems, Named: named}, nil
	case *ast.AnyType:
		return &schema.PseudoType{Name: schema.Name{Module: "std", Local: "anytype"}}, nil
	case nil:
		panic("semantic analysis: illegal null value encountered in AST")
	}
	panic(fmt.Sprintf("semantic analysis: unhandled type expression %T", e))
}
