package ast

// TypeExpr is the surface syntax of a type: a (possibly qualified) name,
// a collection constructor over element types, or the anytype
// placeholder.
type TypeExpr interface {
	Node
	typeNode()
}

type (
	TypeName struct {
		Kind string    `json:"kind" unpack:""`
		Ref  ObjectRef `json:"ref"`
		Loc  `json:"loc"`
	}
	ArrayType struct {
		Kind string   `json:"kind" unpack:""`
		Elem TypeExpr `json:"elem"`
		Loc  `json:"loc"`
	}
	TupleType struct {
		Kind  string          `json:"kind" unpack:""`
		Elems []TupleTypeElem `json:"elems"`
		Loc   `json:"loc"`
	}
	AnyType struct {
		Kind string `json:"kind" unpack:""`
		Loc  `json:"loc"`
	}
)

type TupleTypeElem struct {
	Name string   `json:"name"`
	Type TypeExpr `json:"type"`
	Loc  `json:"loc"`
}

func (*TypeName) typeNode()  {}
func (*ArrayType) typeNode() {}
func (*TupleType) typeNode() {}
func (*AnyType) typeNode()   {}
