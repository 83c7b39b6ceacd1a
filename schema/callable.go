package schema

import (
	"slices"

	"github.com/quarreldb/quarrel/compiler/ast"
)

type ParamKind int

const (
	Positional ParamKind = iota
	NamedOnly
	Variadic
)

// TypeModifier classifies how a callable treats the multiplicity of a
// parameter or return.
type TypeModifier int

const (
	Singleton TypeModifier = iota
	Optional
	SetOf
)

type Param struct {
	Name     string
	Type     Type
	Kind     ParamKind
	Modifier TypeModifier
	Default  ast.Expr
}

// Callable is the normalized descriptor used uniformly for functions,
// operators, and casts (casts are wrapped as 2-parameter
// pseudo-callables).
type Callable struct {
	Name      Name
	Params    []*Param
	Return    Type
	ReturnMod TypeModifier
	// Body is the defining expression of a language-defined callable;
	// nil for natively backed callables.
	Body ast.Expr
	// InlinedDefaults marks a natively backed callable whose missing
	// defaultable arguments are passed as a single bitmask argument
	// consumed by the runtime.
	InlinedDefaults bool
	// Impl names the native implementation for natively backed
	// callables.
	Impl string
}

func (c *Callable) SchemaName() Name { return c.Name }

// CanonicalParams returns the parameter list in binding order:
// named-only parameters sorted by name first, then positional
// parameters, then the variadic parameter last.
func (c *Callable) CanonicalParams() []*Param {
	out := slices.Clone(c.Params)
	slices.SortStableFunc(out, func(a, b *Param) int {
		return paramOrder(a) - paramOrder(b)
	})
	named := out[:0]
	for _, p := range out {
		if p.Kind != NamedOnly {
			break
		}
		named = append(named, p)
	}
	slices.SortFunc(named, func(a, b *Param) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out
}

func paramOrder(p *Param) int {
	switch p.Kind {
	case NamedOnly:
		return 0
	case Variadic:
		return 2
	}
	return 1
}

// HasSetOfParam reports whether any parameter is SET OF, which requires
// argument compilation under a fenced scope.
func (c *Callable) HasSetOfParam() bool {
	for _, p := range c.Params {
		if p.Modifier == SetOf {
			return true
		}
	}
	return false
}

// Cast is a registered type conversion.  Implicit casts participate in
// overload scoring; assignment casts are additionally legal in
// assignment position only.
type Cast struct {
	From, To        Type
	AllowImplicit   bool
	AllowAssignment bool
	// Impl names the native conversion; empty if the cast is defined by
	// a callable body.
	Impl string
	Body ast.Expr
}

func (c *Cast) SchemaName() Name {
	return Name{Module: "std", Local: "cast::" + c.From.TypeName() + "::" + c.To.TypeName()}
}

// AsCallable wraps the cast as a 2-parameter pseudo-callable so that
// cast lookup can reuse the overload machinery.
func (c *Cast) AsCallable() *Callable {
	return &Callable{
		Name: c.SchemaName(),
		Params: []*Param{
			{Name: "from", Type: c.From},
			{Name: "to", Type: c.To},
		},
		Return: c.To,
		Impl:   c.Impl,
		Body:   c.Body,
	}
}
