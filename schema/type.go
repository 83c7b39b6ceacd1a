package schema

import "strings"

// Object is implemented by every schema entity a catalog lookup can
// return.
type Object interface {
	SchemaName() Name
}

// Type is the interface over all schema types.  Material types are
// scalars and object types; arrays and tuples are collection types
// constructed on demand; PseudoType represents the anytype placeholder.
type Type interface {
	Object
	// TypeName returns the display name of the type.
	TypeName() string
	// Equal reports strict type identity.
	Equal(Type) bool
	typeNode()
}

type (
	ScalarType struct {
		Name Name
		// Base is the scalar this type extends, or nil for an abstract
		// root scalar.
		Base     *ScalarType
		Abstract bool
	}
	ObjectType struct {
		Name     Name
		Bases    []*ObjectType
		Pointers []*Pointer
		Abstract bool
		// View links an ephemeral derived type back to the material type
		// it was derived from; nil for material types.
		View *ViewInfo
	}
	ArrayType struct {
		Elem Type
	}
	TupleType struct {
		Elems []TupleElem
		Named bool
	}
	// PseudoType is the "anytype" generic placeholder resolved at
	// call-binding time.
	PseudoType struct {
		Name Name
	}
)

type TupleElem struct {
	Name string
	Type Type
}

// ViewInfo records the provenance of a derived view type.
type ViewInfo struct {
	// Origin is the material (or view) type the view was derived from.
	Origin *ObjectType
	// ID is a unique identifier distinguishing view types derived from
	// the same origin.
	ID string
	// Mutation is set for INSERT/UPDATE shapes.
	Mutation bool
}

func (t *ScalarType) SchemaName() Name { return t.Name }
func (t *ObjectType) SchemaName() Name { return t.Name }
func (t *ArrayType) SchemaName() Name  { return Name{Module: "std", Local: t.TypeName()} }
func (t *TupleType) SchemaName() Name  { return Name{Module: "std", Local: t.TypeName()} }
func (t *PseudoType) SchemaName() Name { return t.Name }

func (t *ScalarType) TypeName() string { return t.Name.String() }
func (t *ObjectType) TypeName() string { return t.Name.String() }
func (t *PseudoType) TypeName() string { return t.Name.String() }

func (t *ArrayType) TypeName() string {
	return "array<" + t.Elem.TypeName() + ">"
}

func (t *TupleType) TypeName() string {
	var b strings.Builder
	b.WriteString("tuple<")
	for i, elem := range t.Elems {
		if i > 0 {
			b.WriteString(", ")
		}
		if t.Named {
			b.WriteString(elem.Name)
			b.WriteString(": ")
		}
		b.WriteString(elem.Type.TypeName())
	}
	b.WriteString(">")
	return b.String()
}

func (t *ScalarType) Equal(other Type) bool { return t == other }
func (t *ObjectType) Equal(other Type) bool { return t == other }
func (t *PseudoType) Equal(other Type) bool {
	o, ok := other.(*PseudoType)
	return ok && t.Name == o.Name
}

func (t *ArrayType) Equal(other Type) bool {
	o, ok := other.(*ArrayType)
	return ok && t.Elem.Equal(o.Elem)
}

func (t *TupleType) Equal(other Type) bool {
	o, ok := other.(*TupleType)
	if !ok || t.Named != o.Named || len(t.Elems) != len(o.Elems) {
		return false
	}
	for i := range t.Elems {
		if t.Named && t.Elems[i].Name != o.Elems[i].Name {
			return false
		}
		if !t.Elems[i].Type.Equal(o.Elems[i].Type) {
			return false
		}
	}
	return true
}

func (*ScalarType) typeNode() {}
func (*ObjectType) typeNode() {}
func (*ArrayType) typeNode()  {}
func (*TupleType) typeNode()  {}
func (*PseudoType) typeNode() {}

// IsPolymorphic reports whether t is or contains the anytype
// placeholder.
func IsPolymorphic(t Type) bool {
	switch t := t.(type) {
	case *PseudoType:
		return true
	case *ArrayType:
		return IsPolymorphic(t.Elem)
	case *TupleType:
		for _, elem := range t.Elems {
			if IsPolymorphic(elem.Type) {
				return true
			}
		}
	}
	return false
}

// Material unwraps view types back to the material type they were
// derived from.
func Material(t Type) Type {
	if obj, ok := t.(*ObjectType); ok {
		for obj.View != nil {
			obj = obj.View.Origin
		}
		return obj
	}
	return t
}

// SubtypeOf reports whether t is b or a descendant of b in the type
// hierarchy.  Views are transparent to subtyping.
func SubtypeOf(t, b Type) bool {
	_, ok := TypeHierarchyDistance(t, b)
	return ok
}

// TypeHierarchyDistance returns the number of hierarchy steps separating
// t from its ancestor b, and false when b is not an ancestor of t.
// Identical types are at distance zero.
func TypeHierarchyDistance(t, b Type) (int, bool) {
	t, b = Material(t), Material(b)
	if t.Equal(b) {
		return 0, true
	}
	switch t := t.(type) {
	case *ScalarType:
		d := 0
		for s := t; s != nil; s = s.Base {
			if s.Equal(b) {
				return d, true
			}
			d++
		}
	case *ObjectType:
		return objectDistance(t, b, 0)
	case *ArrayType:
		if o, ok := b.(*ArrayType); ok {
			return TypeHierarchyDistance(t.Elem, o.Elem)
		}
	case *TupleType:
		o, ok := b.(*TupleType)
		if !ok || len(t.Elems) != len(o.Elems) {
			return 0, false
		}
		total := 0
		for i := range t.Elems {
			d, ok := TypeHierarchyDistance(t.Elems[i].Type, o.Elems[i].Type)
			if !ok {
				return 0, false
			}
			total += d
		}
		return total, true
	}
	return 0, false
}

func objectDistance(t *ObjectType, b Type, depth int) (int, bool) {
	if Type(t).Equal(Material(b)) {
		return depth, true
	}
	best, found := 0, false
	for _, base := range t.Bases {
		if d, ok := objectDistance(base, b, depth+1); ok && (!found || d < best) {
			best, found = d, true
		}
	}
	return best, found
}

// CommonSupertype finds the nearest common ancestor of a and b, or nil
// if the types are unrelated.
func CommonSupertype(a, b Type) Type {
	a, b = Material(a), Material(b)
	if SubtypeOf(a, b) {
		return b
	}
	if SubtypeOf(b, a) {
		return a
	}
	switch a := a.(type) {
	case *ScalarType:
		for s := a.Base; s != nil; s = s.Base {
			if SubtypeOf(b, s) {
				return s
			}
		}
	case *ObjectType:
		for _, base := range a.Bases {
			if t := CommonSupertype(base, b); t != nil {
				return t
			}
		}
	case *ArrayType:
		if o, ok := b.(*ArrayType); ok {
			if elem := CommonSupertype(a.Elem, o.Elem); elem != nil {
				return &ArrayType{Elem: elem}
			}
		}
	}
	return nil
}

// PointerByName finds a pointer on an object type, searching bases in
// declaration order.  Views inherit the pointers of their origin unless
// shadowed.
func (t *ObjectType) PointerByName(name string) *Pointer {
	for _, p := range t.Pointers {
		if p.Name == name {
			return p
		}
	}
	for _, base := range t.Bases {
		if p := base.PointerByName(name); p != nil {
			return p
		}
	}
	if t.View != nil {
		return t.View.Origin.PointerByName(name)
	}
	return nil
}

// PointerNames returns the names of all pointers reachable on t, nearest
// definition first.
func (t *ObjectType) PointerNames() []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(*ObjectType)
	walk = func(o *ObjectType) {
		for _, p := range o.Pointers {
			if !seen[p.Name] {
				seen[p.Name] = true
				out = append(out, p.Name)
			}
		}
		for _, base := range o.Bases {
			walk(base)
		}
		if o.View != nil {
			walk(o.View.Origin)
		}
	}
	walk(t)
	return out
}
