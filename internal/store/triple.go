package store

import "fmt"

// ID is the dense handle of an interned Element. IDs start at 1; the zero
// value is never allocated and stands for "no element".
type ID uint32

// Triple is a (subject, predicate, object) fact.
type Triple struct {
	Subject   ID
	Predicate ID
	Object    ID
}

// T is shorthand for building a Triple.
func T(s, p, o ID) Triple {
	return Triple{Subject: s, Predicate: p, Object: o}
}

func (t Triple) String() string {
	return fmt.Sprintf("(%d %d %d)", t.Subject, t.Predicate, t.Object)
}

// Quad is a Triple scoped to a named graph.
type Quad struct {
	Graph ID
	Triple
}

func (q Quad) String() string {
	return fmt.Sprintf("(%d %d %d %d)", q.Subject, q.Predicate, q.Object, q.Graph)
}

type pair [2]ID
