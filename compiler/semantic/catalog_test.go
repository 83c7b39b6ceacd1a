package semantic

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/quarreldb/quarrel/compiler/ast"
	"github.com/quarreldb/quarrel/compiler/ir"
	"github.com/quarreldb/quarrel/inference"
	"github.com/quarreldb/quarrel/schema"
)

// The test schema is described in testdata/schema.yaml; callables are
// attached programmatically since they carry AST bodies.

type fixtureSchema struct {
	Scalars []fixtureScalar `yaml:"scalars"`
	Objects []fixtureObject `yaml:"objects"`
	Casts   []fixtureCast   `yaml:"casts"`
}

type fixtureScalar struct {
	Name     string `yaml:"name"`
	Base     string `yaml:"base"`
	Abstract bool   `yaml:"abstract"`
}

type fixtureObject struct {
	Name     string           `yaml:"name"`
	Bases    []string         `yaml:"bases"`
	Abstract bool             `yaml:"abstract"`
	Pointers []fixturePointer `yaml:"pointers"`
}

type fixturePointer struct {
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"`
	Target      string `yaml:"target"`
	Cardinality string `yaml:"cardinality"`
	Required    bool   `yaml:"required"`
}

type fixtureCast struct {
	From       string `yaml:"from"`
	To         string `yaml:"to"`
	Implicit   bool   `yaml:"implicit"`
	Assignment bool   `yaml:"assignment"`
	Impl       string `yaml:"impl"`
}

func loadFixtureCatalog(t *testing.T) *schema.MemCatalog {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "schema.yaml"))
	require.NoError(t, err)
	var fix fixtureSchema
	require.NoError(t, yaml.Unmarshal(data, &fix))

	cat := schema.NewMemCatalog()
	types := make(map[string]schema.Type)
	scalars := make(map[string]*schema.ScalarType)
	for _, s := range fix.Scalars {
		st := &schema.ScalarType{Name: schema.ParseName(s.Name), Abstract: s.Abstract}
		if s.Base != "" {
			st.Base = scalars[s.Base]
			require.NotNil(t, st.Base, "scalar base %s must be declared first", s.Base)
		}
		scalars[s.Name] = st
		types[s.Name] = st
		cat.AddType(st)
	}
	// Objects resolve in two passes so self-referential links work.
	objects := make(map[string]*schema.ObjectType)
	for _, o := range fix.Objects {
		obj := &schema.ObjectType{Name: schema.ParseName(o.Name), Abstract: o.Abstract}
		objects[o.Name] = obj
		types[o.Name] = obj
		cat.AddType(obj)
	}
	for _, o := range fix.Objects {
		obj := objects[o.Name]
		for _, b := range o.Bases {
			require.Contains(t, objects, b)
			obj.Bases = append(obj.Bases, objects[b])
		}
		for _, p := range o.Pointers {
			target := types[p.Target]
			require.NotNil(t, target, "unknown pointer target %s", p.Target)
			kind := schema.Property
			if p.Kind == "link" {
				kind = schema.Link
			}
			card := schema.Many
			if p.Cardinality == "one" {
				card = schema.One
			}
			obj.Pointers = append(obj.Pointers, &schema.Pointer{
				Name:        p.Name,
				Kind:        kind,
				Source:      obj,
				Target:      target,
				Cardinality: card,
				Required:    p.Required,
			})
		}
	}
	for _, c := range fix.Casts {
		cat.AddCast(&schema.Cast{
			From:            types[c.From],
			To:              types[c.To],
			AllowImplicit:   c.Implicit,
			AllowAssignment: c.Assignment,
			Impl:            c.Impl,
		})
	}
	return cat
}

// testCatalog loads the fixture schema and attaches the callables the
// tests exercise.
func testCatalog(t *testing.T) *schema.MemCatalog {
	t.Helper()
	cat := loadFixtureCatalog(t)
	intT := fixtureType(t, cat, "std::int64")
	floatT := fixtureType(t, cat, "std::float64")
	strT := fixtureType(t, cat, "std::str")
	boolT := fixtureType(t, cat, "std::bool")
	anyT := &schema.PseudoType{Name: schema.ParseName("std::anytype")}

	binop := func(op string, typ, ret schema.Type, impl string) {
		cat.AddOperator(op, &schema.Callable{
			Name: schema.ParseName("std::" + impl),
			Params: []*schema.Param{
				{Name: "l", Type: typ},
				{Name: "r", Type: typ},
			},
			Return: ret,
			Impl:   impl,
		})
	}
	binop("+", intT, intT, "int_plus")
	binop("+", floatT, floatT, "float_plus")
	binop("%", intT, intT, "int_mod")
	binop("++", strT, strT, "str_concat")
	binop(">", intT, boolT, "int_gt")
	binop("=", strT, boolT, "str_eq")
	cat.AddOperator("u-", &schema.Callable{
		Name:   schema.ParseName("std::int_neg"),
		Params: []*schema.Param{{Name: "v", Type: intT}},
		Return: intT,
		Impl:   "int_neg",
	})

	cat.AddFunction(&schema.Callable{
		Name:   schema.ParseName("std::len"),
		Params: []*schema.Param{{Name: "s", Type: strT}},
		Return: intT,
		Impl:   "str_len",
	})
	cat.AddFunction(&schema.Callable{
		Name:   schema.ParseName("std::count"),
		Params: []*schema.Param{{Name: "s", Type: anyT, Modifier: schema.SetOf}},
		Return: intT,
		Impl:   "count",
	})
	cat.AddFunction(&schema.Callable{
		Name:   schema.ParseName("std::first"),
		Params: []*schema.Param{{Name: "s", Type: anyT, Modifier: schema.SetOf}},
		Return: anyT,
		Impl:   "first",
	})
	cat.AddFunction(&schema.Callable{
		Name: schema.ParseName("std::pad"),
		Params: []*schema.Param{
			{Name: "s", Type: strT},
			{Name: "width", Type: intT, Default: tInt("0")},
		},
		Return: strT,
		Impl:   "pad",
	})
	cat.AddFunction(&schema.Callable{
		Name: schema.ParseName("std::trunc"),
		Params: []*schema.Param{
			{Name: "x", Type: floatT},
			{Name: "digits", Type: intT, Default: tInt("0")},
		},
		Return:          floatT,
		InlinedDefaults: true,
		Impl:            "trunc",
	})
	// Two indistinguishable zero-argument overloads.
	for i := 0; i < 2; i++ {
		cat.AddFunction(&schema.Callable{
			Name:   schema.ParseName("std::now"),
			Return: strT,
			Impl:   "now",
		})
	}

	// Computable pointers on User defined by expressions; handle names
	// its own source type instead of a leading-dot path.
	user := fixtureType(t, cat, "default::User").(*schema.ObjectType)
	user.Pointers = append(user.Pointers, &schema.Pointer{
		Name:        "greeting",
		Kind:        schema.Property,
		Source:      user,
		Target:      strT,
		Cardinality: schema.One,
		Expr: &ast.BinaryOp{
			Op:  "++",
			LHS: tPath(tPtr("name")),
			RHS: tStr("!"),
		},
	}, &schema.Pointer{
		Name:        "handle",
		Kind:        schema.Property,
		Source:      user,
		Target:      strT,
		Cardinality: schema.One,
		Expr:        tPath(tRoot("User"), tPtr("name")),
	})
	return cat
}

func fixtureType(t *testing.T, cat schema.Catalog, name string) schema.Type {
	t.Helper()
	obj, err := cat.Get(schema.ParseName(name), nil)
	require.NoError(t, err)
	typ, ok := obj.(schema.Type)
	require.True(t, ok)
	return typ
}

func compile(t *testing.T, e ast.Expr) (*ir.Statement, error) {
	t.Helper()
	return Analyze(testCatalog(t), e, Options{})
}

func mustCompile(t *testing.T, e ast.Expr) *ir.Statement {
	t.Helper()
	out, err := compile(t, e)
	require.NoError(t, err)
	return out
}

// newTestTranslator wires a translator directly for tests that poke at
// internals not reachable through Analyze alone.
func newTestTranslator(t *testing.T) (*translator, *context) {
	t.Helper()
	cat := testCatalog(t)
	overlay := schema.NewOverlay(cat)
	env := &environment{
		catalog:    overlay,
		resolver:   schema.NewResolver(overlay),
		inferrer:   inference.Structural{},
		scope:      ir.NewScopeTree(),
		params:     make(map[string]schema.Type),
		views:      make(map[schema.Name]schema.Type),
		computed:   make(map[*schema.Pointer]*ir.ComputedPtrInfo),
		extraFence: make(map[ast.Node]bool),
		logger:     zap.NewNop(),
	}
	return &translator{env: env, baseCatalog: cat}, rootContext(env)
}

// AST shorthands.

func tPath(steps ...ast.Step) *ast.Path { return &ast.Path{Steps: steps} }

func tRoot(name string) ast.Step {
	n := schema.ParseName(name)
	return &ast.TypeRoot{Ref: ast.ObjectRef{Module: n.Module, Name: n.Local}}
}

func tPtr(name string) *ast.Ptr {
	return &ast.Ptr{Name: name, Direction: ast.Outbound}
}

func tBack(name string) *ast.Ptr {
	return &ast.Ptr{Name: name, Direction: ast.Inbound}
}

func tIs(name string) *ast.TypeIntersection {
	return &ast.TypeIntersection{Type: tType(name)}
}

func tType(name string) *ast.TypeName {
	n := schema.ParseName(name)
	return &ast.TypeName{Ref: ast.ObjectRef{Module: n.Module, Name: n.Local}}
}

func tInt(text string) *ast.Constant   { return &ast.Constant{Type: "int", Text: text} }
func tStr(text string) *ast.Constant   { return &ast.Constant{Type: "str", Text: text} }
func tFloat(text string) *ast.Constant { return &ast.Constant{Type: "float", Text: text} }

func tCall(name string, args ...ast.Expr) *ast.FunctionCall {
	n := schema.ParseName(name)
	return &ast.FunctionCall{Func: ast.ObjectRef{Module: n.Module, Name: n.Local}, Args: args}
}

func tBin(op string, lhs, rhs ast.Expr) *ast.BinaryOp {
	return &ast.BinaryOp{Op: op, LHS: lhs, RHS: rhs}
}

func tShapeElem(name string, compexpr ast.Expr) *ast.ShapeElement {
	return &ast.ShapeElement{
		Expr:     tPath(tPtr(name)),
		Compexpr: compexpr,
	}
}
