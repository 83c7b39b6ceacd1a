// Package ir declares the typed intermediate representation produced by
// the semantic compiler: Set nodes, path identities, the correlation
// scope tree, and the root Statement.
package ir

import (
	"strings"

	"github.com/quarreldb/quarrel/compiler/ast"
	"github.com/quarreldb/quarrel/schema"
)

// PathID is the canonical structural identity of a path expression: an
// anchor plus ordered pointer steps, each with direction and target.  It
// keys the scope tree and deduplicates "the same path seen twice."
// PathIDs are immutable; extension returns a new value.
type PathID struct {
	steps []pathStep
	key   string
}

type pathStep struct {
	kind   stepKind
	name   string
	dir    ast.Direction
	target string
	ns     string
}

type stepKind int

const (
	rootStep stepKind = iota
	ptrStep
	intersectStep
	tupleStep
)

// NewTypePathID builds the path id for a type-rooted path.  The
// namespace ns severs identity across DETACHED boundaries; it is empty
// for the default namespace.
func NewTypePathID(t schema.Type, ns string) PathID {
	step := pathStep{kind: rootStep, name: t.TypeName(), ns: ns}
	return PathID{steps: []pathStep{step}, key: formatKey([]pathStep{step})}
}

// NewExprPathID builds the path id for an expression-rooted set.  The
// alias must be unique within the compilation so that distinct
// expressions never collide.
func NewExprPathID(alias, ns string) PathID {
	step := pathStep{kind: rootStep, name: "expr~" + alias, ns: ns}
	return PathID{steps: []pathStep{step}, key: formatKey([]pathStep{step})}
}

func (p PathID) extend(step pathStep) PathID {
	steps := append(p.steps[:len(p.steps):len(p.steps)], step)
	return PathID{steps: steps, key: formatKey(steps)}
}

// Ptr extends the path with a pointer traversal step.
func (p PathID) Ptr(name string, dir ast.Direction, target string) PathID {
	return p.extend(pathStep{kind: ptrStep, name: name, dir: dir, target: target})
}

// TypeIntersection extends the path with an [is Type] narrowing step.
func (p PathID) TypeIntersection(target string) PathID {
	return p.extend(pathStep{kind: intersectStep, target: target})
}

// TupleIndex extends the path with a structural tuple element step.
func (p PathID) TupleIndex(name string) PathID {
	return p.extend(pathStep{kind: tupleStep, name: name})
}

// Src returns the path id one step shorter, i.e. the near endpoint of
// the last pointer step.  Src of a root path id is the zero PathID.
func (p PathID) Src() PathID {
	if len(p.steps) <= 1 {
		return PathID{}
	}
	steps := p.steps[: len(p.steps)-1 : len(p.steps)-1]
	return PathID{steps: steps, key: formatKey(steps)}
}

func (p PathID) IsZero() bool   { return len(p.steps) == 0 }
func (p PathID) Key() string    { return p.key }
func (p PathID) String() string { return p.key }

func (p PathID) Equal(other PathID) bool { return p.key == other.key }

// WithNamespace rebases the path id root into the given namespace,
// preserving all steps.
func (p PathID) WithNamespace(ns string) PathID {
	if p.IsZero() || p.steps[0].ns == ns {
		return p
	}
	steps := append([]pathStep(nil), p.steps...)
	steps[0].ns = ns
	return PathID{steps: steps, key: formatKey(steps)}
}

// StripNamespace drops the root namespace, used when matching computable
// source references across binding namespaces.
func (p PathID) StripNamespace() PathID { return p.WithNamespace("") }

func formatKey(steps []pathStep) string {
	var b strings.Builder
	for i, s := range steps {
		if i > 0 {
			b.WriteByte('.')
		}
		switch s.kind {
		case rootStep:
			if s.ns != "" {
				b.WriteString(s.ns)
				b.WriteByte('@')
			}
			b.WriteString(s.name)
		case ptrStep:
			b.WriteString(string(s.dir))
			b.WriteString(s.name)
			b.WriteByte('[')
			b.WriteString(s.target)
			b.WriteByte(']')
		case intersectStep:
			b.WriteString("[is ")
			b.WriteString(s.target)
			b.WriteByte(']')
		case tupleStep:
			b.WriteByte('~')
			b.WriteString(s.name)
		}
	}
	return b.String()
}
