// Package qerror defines the compile-error taxonomy.  Every error
// carries the source span of the offending node and unwinds the whole
// compile call; there is no local recovery.
package qerror

import (
	"fmt"
	"sort"

	"github.com/agnivade/levenshtein"
	"github.com/quarreldb/quarrel/compiler/ast"
)

type Class int

const (
	// Reference errors: unresolved name or pointer.
	Reference Class = iota
	// Ambiguity errors: overload or cast cannot be disambiguated.
	Ambiguity
	// Type errors: illegal cast, type mismatch, wrong arity.
	Type
	// Scope errors: illegal path correlation.  These are internal
	// invariant violations surfaced as user-facing syntax errors.
	Scope
	// Unsupported: explicitly unimplemented constructs.
	Unsupported
)

func (c Class) String() string {
	switch c {
	case Reference:
		return "reference error"
	case Ambiguity:
		return "ambiguity error"
	case Type:
		return "type error"
	case Scope:
		return "syntax error"
	case Unsupported:
		return "unsupported"
	}
	return "error"
}

type Error struct {
	Class Class
	Msg   string
	Pos   int
	End   int
	// Hint carries an optional "did you mean" style suggestion.
	Hint string
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Class, e.Msg)
	if e.Pos >= 0 {
		s = fmt.Sprintf("%s (at offset %d)", s, e.Pos)
	}
	if e.Hint != "" {
		s += "\nhint: " + e.Hint
	}
	return s
}

func New(class Class, n ast.Node, format string, args ...any) *Error {
	e := &Error{Class: class, Msg: fmt.Sprintf(format, args...), Pos: -1, End: -1}
	if n != nil {
		e.Pos, e.End = n.Pos(), n.End()
	}
	return e
}

func Referencef(n ast.Node, format string, args ...any) *Error {
	return New(Reference, n, format, args...)
}

func Ambiguityf(n ast.Node, format string, args ...any) *Error {
	return New(Ambiguity, n, format, args...)
}

func Typef(n ast.Node, format string, args ...any) *Error {
	return New(Type, n, format, args...)
}

func Scopef(n ast.Node, format string, args ...any) *Error {
	return New(Scope, n, format, args...)
}

func Unsupportedf(n ast.Node, format string, args ...any) *Error {
	return New(Unsupported, n, format, args...)
}

// Suggestion threshold: candidates further than this edit distance are
// not worth offering.
const maxSuggestDistance = 3

// Suggest picks the closest candidate to name by edit distance and
// formats it as a hint, or returns the empty string when nothing is
// close enough.
func Suggest(name string, candidates []string) string {
	best, bestDist := "", maxSuggestDistance+1
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)
	for _, c := range sorted {
		if d := levenshtein.ComputeDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	if best == "" {
		return ""
	}
	return fmt.Sprintf("did you mean %q?", best)
}
