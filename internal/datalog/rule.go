// Package datalog is the stratified Datalog rule engine that materialises
// derived facts into a store.Store.
//
// Rules are Horn clauses over triple patterns with optional negated body
// atoms. Evaluate checks rule safety, stratifies the program over its
// predicate dependency graph, then runs a semi-naive fixpoint per stratum.
package datalog

import (
	"fmt"
	"strings"

	"semkb/internal/store"
)

// Term is one position of a TriplePattern: a Resource or a Variable.
type Term interface {
	isTerm()
	String() string
}

// Resource is a constant term referring to an interned element.
type Resource struct {
	ID store.ID
}

func (Resource) isTerm() {}

func (r Resource) String() string { return fmt.Sprintf("#%d", r.ID) }

// Variable is a named placeholder bound while a rule body is matched.
type Variable string

func (Variable) isTerm() {}

func (v Variable) String() string { return "?" + string(v) }

// Const is shorthand for Resource{ID: id}.
func Const(id store.ID) Term { return Resource{ID: id} }

// Var is shorthand for Variable(name).
func Var(name string) Term { return Variable(name) }

// TriplePattern is a triple whose positions may be variables.
type TriplePattern struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// Pattern builds a TriplePattern.
func Pattern(s, p, o Term) TriplePattern {
	return TriplePattern{Subject: s, Predicate: p, Object: o}
}

func (p TriplePattern) terms() [3]Term {
	return [3]Term{p.Subject, p.Predicate, p.Object}
}

// Variables returns the distinct variables of p in position order.
func (p TriplePattern) Variables() []Variable {
	var out []Variable
	for _, t := range p.terms() {
		if v, ok := t.(Variable); ok && !containsVar(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func (p TriplePattern) String() string {
	return fmt.Sprintf("(%s %s %s)", p.Subject, p.Predicate, p.Object)
}

// Format renders p with constants resolved through st.
func (p TriplePattern) Format(st *store.Store) string {
	parts := make([]string, 0, 3)
	for _, t := range p.terms() {
		switch v := t.(type) {
		case Resource:
			parts = append(parts, st.Format(v.ID))
		case Variable:
			parts = append(parts, v.String())
		}
	}
	return strings.Join(parts, " ")
}

// BodyAtom is a positive or negated triple pattern of a rule body.
type BodyAtom struct {
	Pattern TriplePattern
	Negated bool
}

// Positive builds a positive body atom.
func Positive(p TriplePattern) BodyAtom { return BodyAtom{Pattern: p} }

// Negated builds a negated body atom (negation as failure).
func Negated(p TriplePattern) BodyAtom { return BodyAtom{Pattern: p, Negated: true} }

func (a BodyAtom) String() string {
	if a.Negated {
		return "not " + a.Pattern.String()
	}
	return a.Pattern.String()
}

// Head is either a normal head pattern or a contradiction marker.
type Head struct {
	pattern       TriplePattern
	contradiction bool
}

// NormalHead builds a head deriving facts of pattern p.
func NormalHead(p TriplePattern) Head { return Head{pattern: p} }

// Contradiction builds the head of an integrity constraint.
func Contradiction() Head { return Head{contradiction: true} }

// IsContradiction reports whether h is an integrity-constraint head.
func (h Head) IsContradiction() bool { return h.contradiction }

// Pattern returns the head pattern. It is the zero pattern for
// contradiction heads.
func (h Head) Pattern() TriplePattern { return h.pattern }

func (h Head) String() string {
	if h.contradiction {
		return "false"
	}
	return h.pattern.String()
}

// Rule is a Horn clause with optional negated body atoms.
type Rule struct {
	Name string
	Head Head
	Body []BodyAtom
}

// Label returns the rule name, or a positional label when it has none.
func (r Rule) Label(index int) string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("rule#%d", index)
}

func (r Rule) String() string {
	parts := make([]string, len(r.Body))
	for i, a := range r.Body {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s :- %s.", r.Head, strings.Join(parts, ", "))
}

func containsVar(vs []Variable, v Variable) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}
