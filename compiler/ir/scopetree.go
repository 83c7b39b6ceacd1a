package ir

import (
	"fmt"
	"strings"
)

// ScopeID is an opaque index into a ScopeTree's node arena.
type ScopeID int

const NoScope ScopeID = -1

// ScopeTree tracks path visibility and correlation fences.  Nodes live
// in a flat arena keyed by ScopeID; parent and children are stored as
// indices so reparenting and subtree removal are O(1) with no dangling
// back-references.
//
// A node either carries a path id (a bound path) or is a structural
// grouping node.  Two boundary kinds exist: a branch groups OR-like
// alternatives whose children remain mutually visible, and a fence is a
// hard boundary blocking path visibility across itself.
type ScopeTree struct {
	nodes []scopeNode
}

type scopeNode struct {
	parent   ScopeID
	children []ScopeID
	pathID   PathID
	hasPath  bool
	fence    bool
	optional bool
	removed  bool
}

// NewScopeTree creates a tree whose root is a fence.
func NewScopeTree() *ScopeTree {
	t := &ScopeTree{}
	t.nodes = append(t.nodes, scopeNode{parent: NoScope, fence: true})
	return t
}

func (t *ScopeTree) Root() ScopeID { return 0 }

func (t *ScopeTree) node(id ScopeID) *scopeNode {
	if id < 0 || int(id) >= len(t.nodes) {
		panic(fmt.Sprintf("scope tree: bad node id %d", id))
	}
	return &t.nodes[id]
}

func (t *ScopeTree) newChild(parent ScopeID, n scopeNode) ScopeID {
	id := ScopeID(len(t.nodes))
	n.parent = parent
	t.nodes = append(t.nodes, n)
	p := t.node(parent)
	p.children = append(p.children, id)
	return id
}

// AttachFence attaches a new fence child under parent.
func (t *ScopeTree) AttachFence(parent ScopeID) ScopeID {
	return t.newChild(parent, scopeNode{fence: true})
}

// AttachBranch attaches a new branch child under parent.
func (t *ScopeTree) AttachBranch(parent ScopeID) ScopeID {
	return t.newChild(parent, scopeNode{})
}

// AttachPath binds a path id under parent.  If the path is already
// bound at a visible node, the binding merges with it and the existing
// node id is returned; a conflicting optionality on the merged node is
// a structural inconsistency reported as an error.
func (t *ScopeTree) AttachPath(parent ScopeID, pid PathID, optional bool) (ScopeID, error) {
	if existing, ok := t.FindVisible(parent, pid); ok {
		n := t.node(existing)
		if n.optional != optional {
			return NoScope, fmt.Errorf("conflicting optionality for path %s", pid)
		}
		return existing, nil
	}
	return t.newChild(parent, scopeNode{pathID: pid, hasPath: true, optional: optional}), nil
}

// RemoveSubtree detaches id from its parent, marking the whole subtree
// removed.  The arena slots are retired, never reused.
func (t *ScopeTree) RemoveSubtree(id ScopeID) {
	n := t.node(id)
	if n.parent != NoScope {
		p := t.node(n.parent)
		for i, c := range p.children {
			if c == id {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}
	var mark func(ScopeID)
	mark = func(id ScopeID) {
		n := t.node(id)
		n.removed = true
		for _, c := range n.children {
			mark(c)
		}
	}
	mark(id)
}

// Reparent moves the children of src under dst, preserving order.  Used
// when merging a speculative sub-scope back into its surroundings.
func (t *ScopeTree) Reparent(src, dst ScopeID) {
	s := t.node(src)
	children := s.children
	s.children = nil
	for _, c := range children {
		t.node(c).parent = dst
	}
	d := t.node(dst)
	d.children = append(d.children, children...)
}

// FindVisible searches for a binding of pid visible from the given
// node: the node itself, its non-removed children, and then upward
// through ancestors.  The search does not ascend past a fence; paths
// bound outside a fence are not visible as already-bound inside it.
func (t *ScopeTree) FindVisible(from ScopeID, pid PathID) (ScopeID, bool) {
	for id := from; id != NoScope; {
		n := t.node(id)
		if n.hasPath && n.pathID.Equal(pid) {
			return id, true
		}
		for _, c := range n.children {
			cn := t.node(c)
			if !cn.removed && cn.hasPath && cn.pathID.Equal(pid) {
				return c, true
			}
		}
		if n.fence {
			break
		}
		id = n.parent
	}
	return NoScope, false
}

// FindDescendant searches the subtree rooted at id for any binding of
// pid, fences included.
func (t *ScopeTree) FindDescendant(id ScopeID, pid PathID) (ScopeID, bool) {
	n := t.node(id)
	if n.removed {
		return NoScope, false
	}
	if n.hasPath && n.pathID.Equal(pid) {
		return id, true
	}
	for _, c := range n.children {
		if found, ok := t.FindDescendant(c, pid); ok {
			return found, true
		}
	}
	return NoScope, false
}

// NearestFence returns the closest enclosing fence of id (id itself if
// it is a fence).
func (t *ScopeTree) NearestFence(id ScopeID) ScopeID {
	for ; id != NoScope; id = t.node(id).parent {
		if t.node(id).fence {
			return id
		}
	}
	return t.Root()
}

// VisibleBoundPaths collects the path ids provably bound within the
// nearest enclosing fence of id, in attachment order.  Optional
// bindings are excluded since they are not provably singleton.
func (t *ScopeTree) VisibleBoundPaths(id ScopeID) []PathID {
	fence := t.NearestFence(id)
	var out []PathID
	var walk func(ScopeID)
	walk = func(id ScopeID) {
		n := t.node(id)
		if n.removed || (id != fence && n.fence) {
			return
		}
		if n.hasPath && !n.optional {
			out = append(out, n.pathID)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(fence)
	return out
}

// IsAncestor reports whether anc lies on the parent chain of id.
func (t *ScopeTree) IsAncestor(anc, id ScopeID) bool {
	for cur := t.node(id).parent; cur != NoScope; cur = t.node(cur).parent {
		if cur == anc {
			return true
		}
	}
	return false
}

func (t *ScopeTree) Parent(id ScopeID) ScopeID { return t.node(id).parent }

func (t *ScopeTree) PathOf(id ScopeID) (PathID, bool) {
	n := t.node(id)
	return n.pathID, n.hasPath
}

// Dump renders the tree in a stable textual form used by tests to
// compare scope-tree shapes.
func (t *ScopeTree) Dump() string {
	var b strings.Builder
	var walk func(ScopeID, int)
	walk = func(id ScopeID, depth int) {
		n := t.node(id)
		if n.removed {
			return
		}
		b.WriteString(strings.Repeat("  ", depth))
		switch {
		case n.hasPath:
			b.WriteString(n.pathID.Key())
			if n.optional {
				b.WriteString(" [opt]")
			}
		case n.fence:
			b.WriteString("FENCE")
		default:
			b.WriteString("BRANCH")
		}
		b.WriteByte('\n')
		for _, c := range n.children {
			walk(c, depth+1)
		}
	}
	walk(t.Root(), 0)
	return b.String()
}
