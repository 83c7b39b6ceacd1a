package schema

import (
	"fmt"
	"slices"
)

// Catalog is the read-only lookup interface over the schema backing
// store.
type Catalog interface {
	// Get resolves a possibly unqualified name against the catalog,
	// applying module aliases.  It returns a *NotFoundError when the
	// name does not resolve.
	Get(name Name, aliases map[string]string) (Object, error)
	// Functions returns all overloads registered under name.
	Functions(name Name) []*Callable
	// Operators returns all overloads of the named operator.
	Operators(name string) []*Callable
	// CastsTo returns all registered casts with the given target type.
	CastsTo(to Type) []*Cast
	// CastsFrom returns all registered casts with the given source type.
	CastsFrom(from Type) []*Cast
	// HasModule reports whether the named module exists.
	HasModule(name string) bool
}

type NotFoundError struct {
	Name Name
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("object %q does not exist", e.Name)
}

// Overlay is a layered catalog: a small compile-local mutable map
// checked before the immutable base.  Derived view types are added here
// so they are never visible to other compilations.
type Overlay struct {
	base Catalog
	objs map[Name]Object
}

func NewOverlay(base Catalog) *Overlay {
	return &Overlay{base: base, objs: make(map[Name]Object)}
}

func (o *Overlay) Add(obj Object) {
	o.objs[obj.SchemaName()] = obj
}

func (o *Overlay) Get(name Name, aliases map[string]string) (Object, error) {
	for _, qual := range name.Resolve(aliases) {
		if obj, ok := o.objs[qual]; ok {
			return obj, nil
		}
	}
	if obj, ok := o.objs[name]; ok {
		return obj, nil
	}
	return o.base.Get(name, aliases)
}

func (o *Overlay) Functions(name Name) []*Callable { return o.base.Functions(name) }
func (o *Overlay) Operators(name string) []*Callable {
	return o.base.Operators(name)
}
func (o *Overlay) CastsTo(to Type) []*Cast       { return o.base.CastsTo(to) }
func (o *Overlay) CastsFrom(from Type) []*Cast   { return o.base.CastsFrom(from) }
func (o *Overlay) HasModule(name string) bool    { return o.base.HasModule(name) }

// MemCatalog is a map-backed Catalog used by embedders and tests to
// describe a schema programmatically.
type MemCatalog struct {
	objs      map[Name]Object
	funcs     map[Name][]*Callable
	operators map[string][]*Callable
	casts     []*Cast
	modules   map[string]bool
}

func NewMemCatalog() *MemCatalog {
	return &MemCatalog{
		objs:      make(map[Name]Object),
		funcs:     make(map[Name][]*Callable),
		operators: make(map[string][]*Callable),
		modules:   map[string]bool{"std": true, "default": true},
	}
}

func (c *MemCatalog) AddType(t Type) *MemCatalog {
	c.objs[t.SchemaName()] = t
	c.modules[t.SchemaName().Module] = true
	return c
}

func (c *MemCatalog) AddFunction(f *Callable) *MemCatalog {
	c.funcs[f.Name] = append(c.funcs[f.Name], f)
	return c
}

func (c *MemCatalog) AddOperator(op string, f *Callable) *MemCatalog {
	c.operators[op] = append(c.operators[op], f)
	return c
}

func (c *MemCatalog) AddCast(cast *Cast) *MemCatalog {
	c.casts = append(c.casts, cast)
	return c
}

func (c *MemCatalog) Get(name Name, aliases map[string]string) (Object, error) {
	for _, qual := range name.Resolve(aliases) {
		if obj, ok := c.objs[qual]; ok {
			return obj, nil
		}
	}
	if obj, ok := c.objs[name]; ok {
		return obj, nil
	}
	return nil, &NotFoundError{Name: name}
}

func (c *MemCatalog) Functions(name Name) []*Callable {
	if fns, ok := c.funcs[name]; ok {
		return fns
	}
	if !name.IsQualified() {
		for _, qual := range name.Resolve(nil) {
			if fns, ok := c.funcs[qual]; ok {
				return fns
			}
		}
	}
	return nil
}

func (c *MemCatalog) Operators(name string) []*Callable {
	return c.operators[name]
}

func (c *MemCatalog) CastsTo(to Type) []*Cast {
	var out []*Cast
	for _, cast := range c.casts {
		if cast.To.Equal(to) {
			out = append(out, cast)
		}
	}
	return out
}

func (c *MemCatalog) CastsFrom(from Type) []*Cast {
	var out []*Cast
	for _, cast := range c.casts {
		if cast.From.Equal(from) {
			out = append(out, cast)
		}
	}
	return out
}

func (c *MemCatalog) HasModule(name string) bool { return c.modules[name] }

// Names returns all object names in the catalog; used for "did you
// mean" suggestions on unresolved references.
func (c *MemCatalog) Names() []Name {
	names := make([]Name, 0, len(c.objs))
	for name := range c.objs {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b Name) int {
		switch s, o := a.String(), b.String(); {
		case s < o:
			return -1
		case s > o:
			return 1
		}
		return 0
	})
	return names
}
