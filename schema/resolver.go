package schema

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Resolver wraps a Catalog with bounded caches for the hot lookup paths
// of overload and cast resolution.  A Resolver is owned by a single
// compilation and is not safe for concurrent use.
type Resolver struct {
	Catalog
	castDist *lru.Cache[castKey, int]
}

type castKey struct {
	from, to string
}

const castCacheSize = 512

func NewResolver(cat Catalog) *Resolver {
	cache, _ := lru.New[castKey, int](castCacheSize)
	return &Resolver{Catalog: cat, castDist: cache}
}

// ImplicitCastDistance returns the cast distance from one type to
// another: 0 for identity or subtype widening, a positive hop count
// through the implicit-cast graph, or -1 when no implicit conversion
// exists.
func (r *Resolver) ImplicitCastDistance(from, to Type) int {
	if from.Equal(to) || SubtypeOf(from, to) {
		return 0
	}
	key := castKey{from.TypeName(), to.TypeName()}
	if d, ok := r.castDist.Get(key); ok {
		return d
	}
	d := r.searchCastPath(from, to, make(map[string]bool))
	r.castDist.Add(key, d)
	return d
}

// searchCastPath walks the implicit-cast graph breadth-first so the
// shortest conversion chain wins.
func (r *Resolver) searchCastPath(from, to Type, seen map[string]bool) int {
	type hop struct {
		t    Type
		dist int
	}
	queue := []hop{{from, 0}}
	seen[from.TypeName()] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, cast := range r.CastsFrom(cur.t) {
			if !cast.AllowImplicit {
				continue
			}
			d := cur.dist + 1
			if cast.To.Equal(to) || SubtypeOf(cast.To, to) {
				return d
			}
			if name := cast.To.TypeName(); !seen[name] {
				seen[name] = true
				queue = append(queue, hop{cast.To, d})
			}
		}
	}
	return -1
}

// FindCast locates the registered cast from one type to another, or nil.
func (r *Resolver) FindCast(from, to Type) *Cast {
	for _, cast := range r.CastsTo(to) {
		if cast.From.Equal(from) {
			return cast
		}
	}
	return nil
}

// AssignmentCastable reports whether from can be converted to to in
// assignment position (implicit or assignment-only casts).
func (r *Resolver) AssignmentCastable(from, to Type) bool {
	if r.ImplicitCastDistance(from, to) >= 0 {
		return true
	}
	if cast := r.FindCast(from, to); cast != nil {
		return cast.AllowAssignment
	}
	return false
}
