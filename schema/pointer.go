package schema

import "github.com/quarreldb/quarrel/compiler/ast"

type PointerKind int

const (
	Property PointerKind = iota
	Link
)

// Cardinality is the static multiplicity classification of an
// expression or pointer.
type Cardinality int

const (
	// CardUnknown marks a freshly derived pointer whose cardinality has
	// not been inferred yet (pending completion).
	CardUnknown Cardinality = iota
	One
	Many
)

func (c Cardinality) String() string {
	switch c {
	case One:
		return "ONE"
	case Many:
		return "MANY"
	}
	return "UNKNOWN"
}

// Pointer describes a link or property on a source type.  A Pointer with
// a non-nil Expr is computable: its value is defined by an expression
// rather than storage.
type Pointer struct {
	Name        string
	Kind        PointerKind
	Source      Type
	Target      Type
	Cardinality Cardinality
	Required    bool
	Expr        ast.Expr
	Default     ast.Expr
	// Props are the link properties carried on a link.
	Props []*Pointer
	// origin tracks the pointer this one was derived from; nil for
	// schema-declared pointers.
	origin *Pointer
}

func (p *Pointer) SchemaName() Name {
	return Name{Module: "__derived__", Local: p.Name}
}

func (p *Pointer) Computable() bool { return p.Expr != nil }

// Root returns the original schema pointer identity at the bottom of a
// derivation chain.  Path ids of plain shape references use the root so
// that Foo.ptr and Foo { ptr } remain path-equal.
func (p *Pointer) Root() *Pointer {
	for p.origin != nil {
		p = p.origin
	}
	return p
}

// Derive creates a new pointer derived from p with the given source and
// target.  The derived pointer keeps p as its identity root.
func (p *Pointer) Derive(source, target Type) *Pointer {
	d := *p
	d.Source = source
	d.Target = target
	d.origin = p.Root()
	return &d
}

func (p *Pointer) PropByName(name string) *Pointer {
	for _, prop := range p.Props {
		if prop.Name == name {
			return prop
		}
	}
	if p.origin != nil {
		return p.origin.PropByName(name)
	}
	return nil
}
