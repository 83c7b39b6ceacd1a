package ast

type Expr interface {
	Node
	exprNode()
}

type (
	ArrayLiteral struct {
		Kind  string `json:"kind" unpack:""`
		Elems []Expr `json:"elems"`
		Loc   `json:"loc"`
	}
	// A BinaryOp is any expression of the form "lhs op rhs" including
	// arithmetic (+, -, *, /), logical operators (and, or), comparisons
	// (=, !=, <, <=, >, >=), set operators (union, ??), and membership (in).
	BinaryOp struct {
		Kind string `json:"kind" unpack:""`
		Op   string `json:"op"`
		LHS  Expr   `json:"lhs"`
		RHS  Expr   `json:"rhs"`
		Loc  `json:"loc"`
	}
	Constant struct {
		Kind string `json:"kind" unpack:""`
		Type string `json:"type"` // "int", "float", "str", "bool", "decimal"
		Text string `json:"text"`
		Loc  `json:"loc"`
	}
	// DetachedExpr severs all path correlation between the wrapped
	// expression and the enclosing query.
	DetachedExpr struct {
		Kind string `json:"kind" unpack:""`
		Expr Expr   `json:"expr"`
		Loc  `json:"loc"`
	}
	FunctionCall struct {
		Kind   string          `json:"kind" unpack:""`
		Func   ObjectRef       `json:"func"`
		Args   []Expr          `json:"args"`
		Kwargs map[string]Expr `json:"kwargs"`
		Loc    `json:"loc"`
	}
	IfElse struct {
		Kind    string `json:"kind" unpack:""`
		Cond    Expr   `json:"cond"`
		IfTrue  Expr   `json:"if_true"`
		IfFalse Expr   `json:"if_false"`
		Loc     `json:"loc"`
	}
	Parameter struct {
		Kind string `json:"kind" unpack:""`
		Name string `json:"name"`
		Loc  `json:"loc"`
	}
	// A Path is dotted navigation over object/pointer steps.  The first
	// step is an ObjectRef, an Anchor, or an arbitrary expression; all
	// subsequent steps are Ptr, TypeIntersection, or TupleIndex steps.
	Path struct {
		Kind  string `json:"kind" unpack:""`
		Steps []Step `json:"steps"`
		Loc   `json:"loc"`
	}
	SetLiteral struct {
		Kind  string `json:"kind" unpack:""`
		Elems []Expr `json:"elems"`
		Loc   `json:"loc"`
	}
	// A Shape projects or redefines a subset of pointers from an
	// expression, e.g. Foo { bar, baz := .n + 1 }.  A nil Expr denotes a
	// free shape.
	Shape struct {
		Kind  string          `json:"kind" unpack:""`
		Expr  Expr            `json:"expr"`
		Elems []*ShapeElement `json:"elems"`
		Loc   `json:"loc"`
	}
	TupleLiteral struct {
		Kind  string      `json:"kind" unpack:""`
		Elems []TupleElem `json:"elems"`
		Loc   `json:"loc"`
	}
	TypeCast struct {
		Kind string   `json:"kind" unpack:""`
		Type TypeExpr `json:"type"`
		Expr Expr     `json:"expr"`
		Loc  `json:"loc"`
	}
	UnaryOp struct {
		Kind    string `json:"kind" unpack:""`
		Op      string `json:"op"`
		Operand Expr   `json:"operand"`
		Loc     `json:"loc"`
	}
)

// Support structures embedded in Expr nodes

// ObjectRef names a schema object, optionally module-qualified.
type ObjectRef struct {
	Module string `json:"module"`
	Name   string `json:"name"`
	Loc    `json:"loc"`
}

type TupleElem struct {
	Name string `json:"name"`
	Val  Expr   `json:"val"`
	Loc  `json:"loc"`
}

// Step is one component of a Path.
type Step interface {
	Node
	stepNode()
}

type (
	// Anchor refers to a pre-bound path such as __subject__ or a
	// caller-supplied binding.
	Anchor struct {
		Kind string `json:"kind" unpack:""`
		Name string `json:"name"`
		Loc  `json:"loc"`
	}
	// Ptr is a pointer traversal step.  Direction is Outbound for "." and
	// Inbound for ".<"; LinkProp marks an @-prefixed link property step.
	Ptr struct {
		Kind      string    `json:"kind" unpack:""`
		Name      string    `json:"name"`
		Direction Direction `json:"direction"`
		LinkProp  bool      `json:"link_prop"`
		Loc       `json:"loc"`
	}
	// TupleIndex is structural access to a tuple element, either by
	// position ("0") or by name; it never resolves a schema pointer.
	TupleIndex struct {
		Kind string `json:"kind" unpack:""`
		Name string `json:"name"`
		Loc  `json:"loc"`
	}
	// TypeIntersection is an [is Type] step narrowing the preceding set
	// polymorphically.
	TypeIntersection struct {
		Kind string   `json:"kind" unpack:""`
		Type TypeExpr `json:"type"`
		Loc  `json:"loc"`
	}
	// TypeRoot is an ObjectRef in step position: the type (or view alias)
	// anchoring a path.
	TypeRoot struct {
		Kind string    `json:"kind" unpack:""`
		Ref  ObjectRef `json:"ref"`
		Loc  `json:"loc"`
	}
	// ExprStep wraps an arbitrary expression as the first step of a path.
	ExprStep struct {
		Kind string `json:"kind" unpack:""`
		Expr Expr   `json:"expr"`
		Loc  `json:"loc"`
	}
)

type Direction string

const (
	Outbound Direction = ">"
	Inbound  Direction = "<"
)

// ShapeElement is one element of a Shape.  Expr names the pointer being
// projected or defined (a one- or two-step path: optionally a leading
// TypeIntersection for polymorphic references, then a Ptr).  Compexpr, if
// non-nil, makes this a computed element.  Operation distinguishes
// mutation assignment forms.
type ShapeElement struct {
	Kind      string          `json:"kind" unpack:""`
	Expr      *Path           `json:"expr"`
	Elems     []*ShapeElement `json:"elems"`
	Compexpr  Expr            `json:"compexpr"`
	Where     Expr            `json:"where"`
	Operation ShapeOp         `json:"operation"`
	Required  *bool           `json:"required"`
	Loc       `json:"loc"`
}

type ShapeOp string

const (
	Assign   ShapeOp = ":="
	Append   ShapeOp = "+="
	Subtract ShapeOp = "-="
)

func (*ArrayLiteral) exprNode() {}
func (*BinaryOp) exprNode()     {}
func (*Constant) exprNode()     {}
func (*DetachedExpr) exprNode() {}
func (*FunctionCall) exprNode() {}
func (*IfElse) exprNode()       {}
func (*Parameter) exprNode()    {}
func (*Path) exprNode()         {}
func (*SetLiteral) exprNode()   {}
func (*Shape) exprNode()        {}
func (*TupleLiteral) exprNode() {}
func (*TypeCast) exprNode()     {}
func (*UnaryOp) exprNode()      {}

func (*Anchor) stepNode()           {}
func (*ExprStep) stepNode()         {}
func (*Ptr) stepNode()              {}
func (*TupleIndex) stepNode()       {}
func (*TypeIntersection) stepNode() {}
func (*TypeRoot) stepNode()         {}
