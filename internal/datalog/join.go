package datalog

import (
	"iter"

	"semkb/internal/store"
)

// factSource answers pattern lookups with some positions bound (0 = free).
type factSource interface {
	Match(subject, predicate, object store.ID) iter.Seq[store.Triple]
}

// delta holds the facts inserted by the previous round, indexed by predicate.
type delta struct {
	all         []store.Triple
	byPredicate map[store.ID][]store.Triple
}

func newDelta(facts []store.Triple) *delta {
	d := &delta{all: facts, byPredicate: make(map[store.ID][]store.Triple)}
	for _, t := range facts {
		d.byPredicate[t.Predicate] = append(d.byPredicate[t.Predicate], t)
	}
	return d
}

func (d *delta) Match(subject, predicate, object store.ID) iter.Seq[store.Triple] {
	bucket := d.all
	if predicate != 0 {
		bucket = d.byPredicate[predicate]
	}
	return func(yield func(store.Triple) bool) {
		for _, t := range bucket {
			if subject != 0 && t.Subject != subject {
				continue
			}
			if object != 0 && t.Object != object {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// mayMatch reports whether some delta fact can have the predicate of p.
func (d *delta) mayMatch(p TriplePattern) bool {
	if r, ok := p.Predicate.(Resource); ok {
		return len(d.byPredicate[r.ID]) > 0
	}
	return len(d.all) > 0
}

// step is one position of a join plan.
type step struct {
	atom   int
	source factSource
}

// plan orders the body of a rule for evaluation. The positive atom at
// first (if >= 0) is matched against src first. Every negated atom is
// placed right after the earliest positive atom that completes its
// bindings.
func plan(body []BodyAtom, first int, full, src factSource) []step {
	steps := make([]step, 0, len(body))
	bound := make(map[Variable]struct{})
	placedNeg := make([]bool, len(body))

	flushNegated := func() {
		for i, a := range body {
			if !a.Negated || placedNeg[i] {
				continue
			}
			ready := true
			for _, v := range a.Pattern.Variables() {
				if _, ok := bound[v]; !ok {
					ready = false
					break
				}
			}
			if ready {
				placedNeg[i] = true
				steps = append(steps, step{atom: i, source: full})
			}
		}
	}
	addPositive := func(i int, s factSource) {
		steps = append(steps, step{atom: i, source: s})
		for _, v := range body[i].Pattern.Variables() {
			bound[v] = struct{}{}
		}
		flushNegated()
	}

	flushNegated()
	if first >= 0 {
		addPositive(first, src)
	}
	for i, a := range body {
		if a.Negated || i == first {
			continue
		}
		addPositive(i, full)
	}
	// Unsafe negated atoms never become ready; safety checks reject them
	// before evaluation, so they are not expected here.
	return steps
}

// match is one satisfying substitution together with the positive facts
// that produced it, in body order.
type match struct {
	sub      Substitution
	premises []store.Triple
}

// join enumerates the substitutions satisfying body under plan. full is
// consulted for negated atoms.
func join(body []BodyAtom, steps []step, full factSource, yield func(match) bool) {
	premises := make([]store.Triple, len(body))
	var walk func(k int, sub Substitution) bool
	walk = func(k int, sub Substitution) bool {
		if k == len(steps) {
			var ps []store.Triple
			for i, a := range body {
				if !a.Negated {
					ps = append(ps, premises[i])
				}
			}
			return yield(match{sub: sub, premises: ps})
		}
		st := steps[k]
		p := body[st.atom].Pattern
		s, pr, o := sub.resolve(p.Subject), sub.resolve(p.Predicate), sub.resolve(p.Object)

		if body[st.atom].Negated {
			for t := range full.Match(s, pr, o) {
				if _, ok := sub.unify(p, t); ok {
					return true
				}
			}
			return walk(k+1, sub)
		}

		for t := range st.source.Match(s, pr, o) {
			next, ok := sub.unify(p, t)
			if !ok {
				continue
			}
			premises[st.atom] = t
			if !walk(k+1, next) {
				return false
			}
		}
		return true
	}
	walk(0, Substitution{})
}

// Match yields every substitution that satisfies the conjunction of patterns
// over the default graph of st. It never mutates st.
func Match(st *store.Store, patterns []TriplePattern) iter.Seq[Substitution] {
	body := make([]BodyAtom, len(patterns))
	for i, p := range patterns {
		body[i] = Positive(p)
	}
	return func(yield func(Substitution) bool) {
		if len(body) == 0 {
			return
		}
		steps := plan(body, -1, st, st)
		join(body, steps, st, func(m match) bool {
			return yield(m.sub)
		})
	}
}
