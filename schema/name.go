// Package schema models the type, pointer, and callable catalog consumed
// by the semantic compiler.  The catalog backing store is external; this
// package defines the object model, the lookup interface, and a layered
// overlay for compile-local derived types.
package schema

import "strings"

// Name is a qualified schema name of the form "module::local".
type Name struct {
	Module string
	Local  string
}

func ParseName(s string) Name {
	if i := strings.Index(s, "::"); i >= 0 {
		return Name{Module: s[:i], Local: s[i+2:]}
	}
	return Name{Local: s}
}

func (n Name) String() string {
	if n.Module == "" {
		return n.Local
	}
	return n.Module + "::" + n.Local
}

func (n Name) IsQualified() bool { return n.Module != "" }

// Resolve applies module aliases to an unqualified or aliased name,
// returning the candidate fully qualified names to try in order.  The
// empty alias names the default module.
func (n Name) Resolve(aliases map[string]string) []Name {
	if n.IsQualified() {
		if mod, ok := aliases[n.Module]; ok {
			return []Name{{Module: mod, Local: n.Local}}
		}
		return []Name{n}
	}
	var out []Name
	if mod, ok := aliases[""]; ok {
		out = append(out, Name{Module: mod, Local: n.Local})
	} else {
		out = append(out, Name{Module: "default", Local: n.Local})
	}
	// Built-ins are visible unqualified.
	out = append(out, Name{Module: "std", Local: n.Local})
	return out
}
