package datalog

import (
	"maps"
	"slices"
	"strings"

	"semkb/internal/store"
)

// Substitution maps variable names to bound element IDs. Extending a
// substitution never mutates the receiver.
type Substitution map[Variable]store.ID

// Lookup returns the binding of v.
func (s Substitution) Lookup(v Variable) (store.ID, bool) {
	id, ok := s[v]
	return id, ok
}

// resolve returns the bound ID of t, or 0 when t is an unbound variable.
func (s Substitution) resolve(t Term) store.ID {
	switch v := t.(type) {
	case Resource:
		return v.ID
	case Variable:
		return s[v]
	}
	return 0
}

// unify extends s so that pattern p matches fact t. Repeated variables must
// bind consistently. The second result is false when p does not match.
func (s Substitution) unify(p TriplePattern, t store.Triple) (Substitution, bool) {
	var out Substitution
	bind := func(term Term, id store.ID) bool {
		switch v := term.(type) {
		case Resource:
			return v.ID == id
		case Variable:
			if cur, ok := s[v]; ok {
				return cur == id
			}
			if out != nil {
				if cur, ok := out[v]; ok {
					return cur == id
				}
			} else {
				out = maps.Clone(s)
				if out == nil {
					out = make(Substitution, 3)
				}
			}
			out[v] = id
			return true
		}
		return false
	}
	if !bind(p.Subject, t.Subject) || !bind(p.Predicate, t.Predicate) || !bind(p.Object, t.Object) {
		return nil, false
	}
	if out == nil {
		return s, true
	}
	return out, true
}

// instantiate grounds p. It reports false if some variable is unbound.
func (s Substitution) instantiate(p TriplePattern) (store.Triple, bool) {
	sub, pred, obj := s.resolve(p.Subject), s.resolve(p.Predicate), s.resolve(p.Object)
	if sub == 0 || pred == 0 || obj == 0 {
		return store.Triple{}, false
	}
	return store.T(sub, pred, obj), true
}

// Format renders the bindings sorted by variable name.
func (s Substitution) Format(st *store.Store) string {
	names := slices.Sorted(maps.Keys(s))
	parts := make([]string, len(names))
	for i, v := range names {
		parts[i] = v.String() + "=" + st.Format(s[v])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
