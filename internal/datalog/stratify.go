package datalog

import (
	"maps"
	"slices"

	"semkb/internal/graph"
	"semkb/internal/store"
)

// symbol abstracts the facts an atom can match: a predicate, or any predicate
// when pred is 0. For rdf:type atoms with a constant object, class narrows the
// symbol to that class.
type symbol struct {
	pred  store.ID
	class store.ID
}

func (s symbol) compatible(o symbol) bool {
	if s.pred != 0 && o.pred != 0 && s.pred != o.pred {
		return false
	}
	if s.class != 0 && o.class != 0 && s.class != o.class {
		return false
	}
	return true
}

func symbolOf(p TriplePattern, typeID store.ID) symbol {
	var sym symbol
	if r, ok := p.Predicate.(Resource); ok {
		sym.pred = r.ID
	}
	if typeID != 0 && sym.pred == typeID {
		if r, ok := p.Object.(Resource); ok {
			sym.class = r.ID
		}
	}
	return sym
}

// Stratum is one group of rules evaluated to fixpoint together.
type Stratum struct {
	Level int
	// Rules are indices into the program, in program order.
	Rules []int
}

// Stratification is an evaluation plan for a safe, stratifiable program.
type Stratification struct {
	Strata []Stratum
	// Constraints are the indices of contradiction rules, evaluated after
	// every stratum.
	Constraints []int
}

// Stratify orders rules into strata so that a rule only negates facts
// produced by strictly lower strata. st supplies the rdf:type ID used to
// refine class atoms; it may be nil.
func Stratify(rules []Rule, st *store.Store) (*Stratification, error) {
	var typeID store.ID
	if st != nil {
		typeID, _ = st.Lookup(store.IRI(store.RDFType))
	}

	type edge struct {
		from, to symbol
		negative bool
	}

	g := graph.NewDirected[symbol]()
	heads := make([]symbol, len(rules))
	var plan Stratification

	for i, r := range rules {
		if r.Head.IsContradiction() {
			plan.Constraints = append(plan.Constraints, i)
			continue
		}
		heads[i] = symbolOf(r.Head.Pattern(), typeID)
		g.AddNode(heads[i])
	}

	var edges []edge
	for i, r := range rules {
		if r.Head.IsContradiction() {
			continue
		}
		for _, a := range r.Body {
			body := symbolOf(a.Pattern, typeID)
			for _, h := range g.Nodes() {
				if !h.compatible(body) {
					continue
				}
				edges = append(edges, edge{from: h, to: heads[i], negative: a.Negated})
			}
		}
	}
	for _, e := range edges {
		g.AddEdge(e.from, e.to)
	}

	comps := graph.StronglyConnected(g)
	level := make([]int, len(comps.Members))
	for _, e := range edges {
		if e.negative && comps.Of[e.from] == comps.Of[e.to] {
			return nil, &UnstratifiableProgramError{Cycle: rulesIn(rules, heads, comps.Members[comps.Of[e.to]])}
		}
	}
	// Components are topologically ordered, so one pass over edges sorted by
	// source component settles every level.
	slices.SortStableFunc(edges, func(a, b edge) int {
		return comps.Of[a.from] - comps.Of[b.from]
	})
	for _, e := range edges {
		from, to := comps.Of[e.from], comps.Of[e.to]
		if from == to {
			continue
		}
		l := level[from]
		if e.negative {
			l++
		}
		level[to] = max(level[to], l)
	}

	byLevel := make(map[int][]int)
	for i, r := range rules {
		if r.Head.IsContradiction() {
			continue
		}
		l := level[comps.Of[heads[i]]]
		byLevel[l] = append(byLevel[l], i)
	}
	for _, l := range slices.Sorted(maps.Keys(byLevel)) {
		plan.Strata = append(plan.Strata, Stratum{Level: l, Rules: byLevel[l]})
	}
	return &plan, nil
}

func rulesIn(rules []Rule, heads []symbol, comp []symbol) []string {
	var out []string
	for i, r := range rules {
		if r.Head.IsContradiction() {
			continue
		}
		if slices.Contains(comp, heads[i]) {
			out = append(out, r.Label(i))
		}
	}
	return out
}
