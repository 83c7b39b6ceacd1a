package semantic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarreldb/quarrel/compiler/ast"
	"github.com/quarreldb/quarrel/compiler/ir"
	"github.com/quarreldb/quarrel/compiler/qerror"
	"github.com/quarreldb/quarrel/schema"
)

func qerrOf(t *testing.T, err error) *qerror.Error {
	t.Helper()
	var qe *qerror.Error
	require.True(t, errors.As(err, &qe), "expected a compile error, got %v", err)
	return qe
}

func TestCompilePath(t *testing.T) {
	out := mustCompile(t, tPath(tRoot("User"), tPtr("name")))
	assert.Equal(t, "default::User.>name[std::str]", out.Set.PathID.Key())
	assert.Equal(t, "std::str", out.Set.Type.TypeName())
	require.NotNil(t, out.Set.Rptr)
	assert.Equal(t, "name", out.Set.Rptr.Ptr.Name)
	assert.Equal(t, "default::User", out.Set.Rptr.Source.PathID.Key())
}

func TestCompilePathUnknownPointer(t *testing.T) {
	_, err := compile(t, tPath(tRoot("User"), tPtr("nmae")))
	qe := qerrOf(t, err)
	assert.Equal(t, qerror.Reference, qe.Class)
	assert.Equal(t, `did you mean "name"?`, qe.Hint)
}

func TestCompilePathUnknownRoot(t *testing.T) {
	_, err := compile(t, tPath(tRoot("Usr")))
	qe := qerrOf(t, err)
	assert.Equal(t, qerror.Reference, qe.Class)
	assert.Equal(t, `did you mean "User"?`, qe.Hint)
}

func TestBacklinkWithTypeFilter(t *testing.T) {
	out := mustCompile(t, tPath(tRoot("User"), tBack("author"), tIs("default::Post")))
	assert.Equal(t, "default::Post", schema.Material(out.Set.Type).TypeName())
}

func TestBacklinkUntyped(t *testing.T) {
	out := mustCompile(t, tPath(tRoot("User"), tBack("friends")))
	assert.Equal(t, "std::BaseObject", out.Set.Type.TypeName())
	require.NotNil(t, out.Set.Rptr)
	assert.Equal(t, schema.Many, out.Set.Rptr.Ptr.Cardinality,
		"untyped backlinks are always many-to-many")
}

func TestBacklinkTargetMismatch(t *testing.T) {
	// Post.title is a property of Post, not a link targeting User.
	_, err := compile(t, tPath(tRoot("User"), tBack("title"), tIs("default::Post")))
	qe := qerrOf(t, err)
	assert.Equal(t, qerror.Type, qe.Class)
}

func TestTypeIntersectionCardinality(t *testing.T) {
	out := mustCompile(t, tPath(tRoot("Post"), tPtr("author"), tIs("default::User")))
	require.NotNil(t, out.Set.Rptr)
	assert.Equal(t, "__type_intersection__", out.Set.Rptr.Ptr.Name)
	assert.Equal(t, schema.One, out.Set.Rptr.Ptr.Cardinality,
		"narrowing a to-one link stays to-one")

	out = mustCompile(t, tPath(tRoot("User"), tPtr("friends"), tIs("default::User")))
	assert.Equal(t, schema.Many, out.Set.Rptr.Ptr.Cardinality)
}

func TestTypeIntersectionUnrelated(t *testing.T) {
	_, err := compile(t, tPath(tRoot("Post"), tIs("default::User")))
	qe := qerrOf(t, err)
	assert.Equal(t, qerror.Type, qe.Class)
}

func TestComputablePointer(t *testing.T) {
	out := mustCompile(t, tPath(tRoot("User"), tPtr("greeting")))
	assert.Equal(t, "std::str", out.Set.Type.TypeName())
	assert.IsType(t, &ir.SubqueryExpr{}, out.Set.Expr)
	assert.Len(t, out.ComputedPtrs, 1)
}

func TestComputableSourceReference(t *testing.T) {
	// A computable whose expression names its own source type resolves
	// that root to the traversal's source set, not a fresh detached root.
	out := mustCompile(t, tPath(tRoot("User"), tPtr("handle")))
	assert.Equal(t, "std::str", out.Set.Type.TypeName())
	require.Len(t, out.ComputedPtrs, 1)
	for _, info := range out.ComputedPtrs {
		require.NotNil(t, info.Expr.Rptr)
		assert.Same(t, out.Set.Rptr.Source, info.Expr.Rptr.Source)
		assert.Equal(t, "default::User", info.Expr.Rptr.Source.PathID.Key())
	}
}

func TestComputablePointerMemoized(t *testing.T) {
	out := mustCompile(t, tBin("=",
		tPath(tRoot("User"), tPtr("greeting")),
		tPath(tRoot("User"), tPtr("greeting")),
	))
	call := out.Set.Expr.(*ir.OperatorCall)
	lhs := call.Args[0].Value.Expr.(*ir.SubqueryExpr)
	rhs := call.Args[1].Value.Expr.(*ir.SubqueryExpr)
	assert.Same(t, lhs.Body, rhs.Body, "one compilation per computable pointer")
	assert.Len(t, out.ComputedPtrs, 1)
}

func TestSamePathMergesInScope(t *testing.T) {
	out := mustCompile(t, tBin("=",
		tPath(tRoot("User"), tPtr("name")),
		tPath(tRoot("User"), tPtr("name")),
	))
	call := out.Set.Expr.(*ir.OperatorCall)
	assert.Equal(t, call.Args[0].Value.ScopeID, call.Args[1].Value.ScopeID,
		"the same path binds once per scope")
}

func TestDetachedNamespace(t *testing.T) {
	out := mustCompile(t, &ast.DetachedExpr{Expr: tPath(tRoot("User"))})
	assert.Equal(t, "ns~0@default::User", out.Set.PathID.Key())
}

func TestTupleIndexStep(t *testing.T) {
	tup := &ast.TupleLiteral{Elems: []ast.TupleElem{
		{Val: tInt("1")},
		{Val: tStr("a")},
	}}
	out := mustCompile(t, tPath(&ast.ExprStep{Expr: tup}, &ast.TupleIndex{Name: "0"}))
	assert.Equal(t, "std::int64", out.Set.Type.TypeName())
	assert.IsType(t, &ir.TupleIndirectionExpr{}, out.Set.Expr)
}

func TestTupleIndexUnknownElement(t *testing.T) {
	tup := &ast.TupleLiteral{Elems: []ast.TupleElem{{Val: tInt("1")}}}
	_, err := compile(t, tPath(&ast.ExprStep{Expr: tup}, &ast.TupleIndex{Name: "5"}))
	qe := qerrOf(t, err)
	assert.Equal(t, qerror.Reference, qe.Class)
}

func TestAnchors(t *testing.T) {
	cat := testCatalog(t)
	user := fixtureType(t, cat, "default::User")
	out, err := Analyze(cat, tPath(&ast.Anchor{Name: "__subject__"}, tPtr("name")), Options{
		Anchors: map[string]schema.Type{"__subject__": user},
	})
	require.NoError(t, err)
	assert.Equal(t, "std::str", out.Set.Type.TypeName())
}

func TestUnboundAnchor(t *testing.T) {
	_, err := compile(t, tPath(&ast.Anchor{Name: "__subject__"}))
	qe := qerrOf(t, err)
	assert.Equal(t, qerror.Reference, qe.Class)
	assert.Contains(t, qe.Msg, "__subject__")
}

func TestLinkProperty(t *testing.T) {
	// Link properties only make sense through a link hop.
	_, err := compile(t, tPath(tRoot("User"), &ast.Ptr{Name: "weight", Direction: ast.Outbound, LinkProp: true}))
	qe := qerrOf(t, err)
	assert.Equal(t, qerror.Reference, qe.Class)
	assert.Contains(t, qe.Msg, "link")
}
