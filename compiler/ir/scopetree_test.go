package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarreldb/quarrel/compiler/ast"
)

func TestScopeTreeAttachPathMerges(t *testing.T) {
	tree := NewScopeTree()
	pid := NewTypePathID(userType(), "")

	a, err := tree.AttachPath(tree.Root(), pid, false)
	require.NoError(t, err)
	b, err := tree.AttachPath(tree.Root(), pid, false)
	require.NoError(t, err)
	assert.Equal(t, a, b, "rebinding a visible path merges with the existing node")

	_, err = tree.AttachPath(tree.Root(), pid, true)
	assert.ErrorContains(t, err, "conflicting optionality")
}

func TestScopeTreeFenceBlocksVisibility(t *testing.T) {
	tree := NewScopeTree()
	pid := NewTypePathID(userType(), "")
	outer, err := tree.AttachPath(tree.Root(), pid, false)
	require.NoError(t, err)

	branch := tree.AttachBranch(tree.Root())
	if found, ok := tree.FindVisible(branch, pid); assert.True(t, ok) {
		assert.Equal(t, outer, found)
	}

	fence := tree.AttachFence(tree.Root())
	_, ok := tree.FindVisible(fence, pid)
	assert.False(t, ok, "paths bound outside a fence are not visible inside it")

	inner, err := tree.AttachPath(fence, pid, false)
	require.NoError(t, err)
	assert.NotEqual(t, outer, inner)
}

func TestScopeTreeRemoveSubtree(t *testing.T) {
	tree := NewScopeTree()
	fence := tree.AttachFence(tree.Root())
	pid := NewTypePathID(userType(), "")
	_, err := tree.AttachPath(fence, pid, false)
	require.NoError(t, err)

	tree.RemoveSubtree(fence)
	_, ok := tree.FindVisible(tree.Root(), pid)
	assert.False(t, ok)
	assert.NotContains(t, tree.Dump(), "default::User")
}

func TestScopeTreeReparent(t *testing.T) {
	tree := NewScopeTree()
	tmp := tree.AttachFence(tree.Root())
	pid := NewTypePathID(userType(), "")
	bound, err := tree.AttachPath(tmp, pid, false)
	require.NoError(t, err)

	tree.Reparent(tmp, tree.Root())
	tree.RemoveSubtree(tmp)

	found, ok := tree.FindVisible(tree.Root(), pid)
	require.True(t, ok, "reparented binding survives removal of the husk")
	assert.Equal(t, bound, found)
	assert.Equal(t, tree.Root(), tree.Parent(bound))
}

func TestVisibleBoundPaths(t *testing.T) {
	tree := NewScopeTree()
	user := NewTypePathID(userType(), "")
	name := user.Ptr("name", ast.Outbound, "std::str")

	_, err := tree.AttachPath(tree.Root(), user, false)
	require.NoError(t, err)
	_, err = tree.AttachPath(tree.Root(), name, true)
	require.NoError(t, err)

	// Optional bindings are not provably singleton.
	paths := tree.VisibleBoundPaths(tree.Root())
	require.Len(t, paths, 1)
	assert.True(t, paths[0].Equal(user))

	// Bindings behind an inner fence stay invisible to the outer fence.
	fence := tree.AttachFence(tree.Root())
	_, err = tree.AttachPath(fence, name, false)
	require.NoError(t, err)
	assert.Len(t, tree.VisibleBoundPaths(tree.Root()), 1)
	assert.Len(t, tree.VisibleBoundPaths(fence), 1)
}

func TestScopeTreeDump(t *testing.T) {
	tree := NewScopeTree()
	pid := NewTypePathID(userType(), "")
	_, err := tree.AttachPath(tree.Root(), pid, false)
	require.NoError(t, err)
	fence := tree.AttachFence(tree.Root())
	_, err = tree.AttachPath(fence, pid, true)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(tree.Dump(), "\n"), "\n")
	assert.Equal(t, []string{
		"FENCE",
		"  default::User",
		"  FENCE",
		"    default::User [opt]",
	}, lines)
}
