package store

import (
	"fmt"
	"iter"
	"sync"

	"github.com/google/uuid"

	"semkb/internal/logging"
)

// Config sizes the initial allocations of a Store. Zero values are fine.
type Config struct {
	ExpectedElements int `yaml:"expected_elements" json:"expected_elements"`
	ExpectedTriples  int `yaml:"expected_triples" json:"expected_triples"`
}

// Stats summarises the store contents.
type Stats struct {
	Elements       int            `json:"elements"`
	DefaultGraph   int            `json:"default_graph_triples"`
	NamedGraphs    int            `json:"named_graphs"`
	NamedTriples   int            `json:"named_graph_triples"`
	Reifications   int            `json:"reifications"`
	ElementsByKind map[string]int `json:"elements_by_kind"`
}

// Store owns every interned element and every fact of a session. It only
// grows: elements and facts are never removed.
//
// Reads may run concurrently. Mutations serialise on the store lock; the rule
// engine additionally assumes it is the only writer while a pass runs.
type Store struct {
	mu sync.RWMutex

	elements []Element
	ids      map[elementKey]ID

	defaultGraph *tripleTable
	named        map[ID]*tripleTable
	graphOrder   []ID

	reified  map[ID]Triple
	reifiers map[Triple][]ID
}

// New creates an empty store.
func New() *Store {
	return NewWithConfig(Config{})
}

// NewWithConfig creates an empty store with preallocated capacity.
func NewWithConfig(cfg Config) *Store {
	s := &Store{
		elements:     make([]Element, 0, cfg.ExpectedElements),
		ids:          make(map[elementKey]ID, cfg.ExpectedElements),
		defaultGraph: newTripleTable(),
		named:        make(map[ID]*tripleTable),
		reified:      make(map[ID]Triple),
		reifiers:     make(map[Triple][]ID),
	}
	if cfg.ExpectedTriples > 0 {
		s.defaultGraph.facts = make([]Triple, 0, cfg.ExpectedTriples)
		s.defaultGraph.exists = make(map[Triple]struct{}, cfg.ExpectedTriples)
	}
	return s
}

// =============================================================================
// INTERNING
// =============================================================================

// Intern returns the ID of e, allocating the next ID if e is new.
func (s *Store) Intern(e Element) ID {
	k := e.key()

	s.mu.RLock()
	id, ok := s.ids[k]
	s.mu.RUnlock()
	if ok {
		return id
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Double-check after acquiring write lock
	if id, ok := s.ids[k]; ok {
		return id
	}
	s.elements = append(s.elements, e)
	id = ID(len(s.elements))
	s.ids[k] = id
	return id
}

// InternIRI is shorthand for Intern(IRI(iri)).
func (s *Store) InternIRI(iri string) ID {
	return s.Intern(IRI(iri))
}

// Lookup returns the ID of e without interning it.
func (s *Store) Lookup(e Element) (ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ids[e.key()]
	return id, ok
}

// NewBlankNode interns a fresh blank node that is distinct from every other
// element in the store.
func (s *Store) NewBlankNode() ID {
	return s.Intern(BlankNode{Label: "b" + uuid.NewString()})
}

// Resolve returns the element behind id.
func (s *Store) Resolve(id ID) (Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id == 0 || int(id) > len(s.elements) {
		return nil, &UnknownIDError{ID: id}
	}
	return s.elements[id-1], nil
}

// MustResolve is Resolve for callers holding IDs obtained from this store.
// An unknown id is an invariant violation and panics with *UnknownIDError.
func (s *Store) MustResolve(id ID) Element {
	e, err := s.Resolve(id)
	if err != nil {
		panic(err)
	}
	return e
}

// Format renders id in N-Triples form, or "?<id>" when it is unknown.
func (s *Store) Format(id ID) string {
	e, err := s.Resolve(id)
	if err != nil {
		return fmt.Sprintf("?%d", id)
	}
	return e.String()
}

// FormatTriple renders t as an N-Triples statement without the final dot.
func (s *Store) FormatTriple(t Triple) string {
	return s.Format(t.Subject) + " " + s.Format(t.Predicate) + " " + s.Format(t.Object)
}

// ElementCount returns the number of interned elements.
func (s *Store) ElementCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elements)
}

// =============================================================================
// INSERTION
// =============================================================================

// AddTriple inserts a fact into the default graph and reports whether it was
// new.
func (s *Store) AddTriple(subject, predicate, object ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultGraph.insert(T(subject, predicate, object))
}

// Add inserts t into the default graph.
func (s *Store) Add(t Triple) bool {
	return s.AddTriple(t.Subject, t.Predicate, t.Object)
}

// AddNamedGraphTriple inserts t into the named graph partition of graph.
func (s *Store) AddNamedGraphTriple(graph ID, t Triple) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.namedTableLocked(graph).insert(t)
}

// AddQuad inserts q into its named graph.
func (s *Store) AddQuad(q Quad) bool {
	return s.AddNamedGraphTriple(q.Graph, q.Triple)
}

// AddReifiedTriple inserts t into the default graph and binds reifier to it.
// A reifier names exactly one triple: rebinding it to a different triple
// fails and leaves the store unchanged.
func (s *Store) AddReifiedTriple(t Triple, reifier ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.reified[reifier]; ok && prev != t {
		return false, fmt.Errorf("reifier %d already names triple %v", reifier, prev)
	}
	added := s.defaultGraph.insert(t)
	if _, ok := s.reified[reifier]; !ok {
		s.reified[reifier] = t
		s.reifiers[t] = append(s.reifiers[t], reifier)
	}
	return added, nil
}

// AddNamedGraphReifiedTriple is not supported: reifiers are tracked for the
// default graph only.
func (s *Store) AddNamedGraphReifiedTriple(graph ID, t Triple, reifier ID) (bool, error) {
	return false, &NotSupportedError{
		Operation: "AddNamedGraphReifiedTriple",
		Reason:    "reification is tracked for the default graph only",
	}
}

func (s *Store) namedTableLocked(graph ID) *tripleTable {
	tbl, ok := s.named[graph]
	if !ok {
		tbl = newTripleTable()
		s.named[graph] = tbl
		s.graphOrder = append(s.graphOrder, graph)
		logging.StoreDebug("Created named graph partition %d", graph)
	}
	return tbl
}

// =============================================================================
// LOOKUP
// =============================================================================

// Contains reports whether t is in the default graph.
func (s *Store) Contains(t Triple) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultGraph.contains(t)
}

// ContainsQuad reports whether q is in its named graph.
func (s *Store) ContainsQuad(q Quad) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tbl, ok := s.named[q.Graph]
	return ok && tbl.contains(q.Triple)
}

// Match yields the default-graph triples agreeing with every non-zero
// position, using the narrowest index available.
func (s *Store) Match(subject, predicate, object ID) iter.Seq[Triple] {
	s.mu.RLock()
	bucket := s.defaultGraph.bucket(subject, predicate, object)
	s.mu.RUnlock()
	return seq(bucket, subject, predicate, object)
}

// GraphMatch is Match scoped to a named graph.
func (s *Store) GraphMatch(graph, subject, predicate, object ID) iter.Seq[Triple] {
	s.mu.RLock()
	tbl, ok := s.named[graph]
	if !ok {
		s.mu.RUnlock()
		return emptySeq[Triple]()
	}
	bucket := tbl.bucket(subject, predicate, object)
	s.mu.RUnlock()
	return seq(bucket, subject, predicate, object)
}

func (s *Store) Triples() iter.Seq[Triple] { return s.Match(0, 0, 0) }

func (s *Store) TriplesWithSubject(subject ID) iter.Seq[Triple] {
	return s.Match(subject, 0, 0)
}

func (s *Store) TriplesWithPredicate(predicate ID) iter.Seq[Triple] {
	return s.Match(0, predicate, 0)
}

func (s *Store) TriplesWithObject(object ID) iter.Seq[Triple] {
	return s.Match(0, 0, object)
}

func (s *Store) TriplesWithSubjectPredicate(subject, predicate ID) iter.Seq[Triple] {
	return s.Match(subject, predicate, 0)
}

func (s *Store) TriplesWithPredicateObject(predicate, object ID) iter.Seq[Triple] {
	return s.Match(0, predicate, object)
}

func (s *Store) GraphTriples(graph ID) iter.Seq[Triple] { return s.GraphMatch(graph, 0, 0, 0) }

func (s *Store) GraphTriplesWithSubject(graph, subject ID) iter.Seq[Triple] {
	return s.GraphMatch(graph, subject, 0, 0)
}

func (s *Store) GraphTriplesWithPredicate(graph, predicate ID) iter.Seq[Triple] {
	return s.GraphMatch(graph, 0, predicate, 0)
}

func (s *Store) GraphTriplesWithObject(graph, object ID) iter.Seq[Triple] {
	return s.GraphMatch(graph, 0, 0, object)
}

func (s *Store) GraphTriplesWithSubjectPredicate(graph, subject, predicate ID) iter.Seq[Triple] {
	return s.GraphMatch(graph, subject, predicate, 0)
}

func (s *Store) GraphTriplesWithPredicateObject(graph, predicate, object ID) iter.Seq[Triple] {
	return s.GraphMatch(graph, 0, predicate, object)
}

// Graphs yields the named graph IDs in creation order.
func (s *Store) Graphs() iter.Seq[ID] {
	s.mu.RLock()
	order := s.graphOrder
	s.mu.RUnlock()
	return func(yield func(ID) bool) {
		for _, g := range order {
			if !yield(g) {
				return
			}
		}
	}
}

// Quads yields every named-graph fact, graph by graph.
func (s *Store) Quads() iter.Seq[Quad] {
	return func(yield func(Quad) bool) {
		for g := range s.Graphs() {
			for t := range s.GraphTriples(g) {
				if !yield(Quad{Graph: g, Triple: t}) {
					return
				}
			}
		}
	}
}

// Reified returns the triple bound to reifier.
func (s *Store) Reified(reifier ID) (Triple, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.reified[reifier]
	return t, ok
}

// ReifiersOf yields every reifier bound to t.
func (s *Store) ReifiersOf(t Triple) iter.Seq[ID] {
	s.mu.RLock()
	ids := s.reifiers[t]
	s.mu.RUnlock()
	return func(yield func(ID) bool) {
		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}

// Len returns the number of default-graph facts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.defaultGraph.facts)
}

// GraphLen returns the number of facts in a named graph.
func (s *Store) GraphLen(graph ID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tbl, ok := s.named[graph]; ok {
		return len(tbl.facts)
	}
	return 0
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Elements:       len(s.elements),
		DefaultGraph:   len(s.defaultGraph.facts),
		NamedGraphs:    len(s.named),
		Reifications:   len(s.reified),
		ElementsByKind: make(map[string]int, 3),
	}
	for _, tbl := range s.named {
		st.NamedTriples += len(tbl.facts)
	}
	for _, e := range s.elements {
		st.ElementsByKind[e.Kind().String()]++
	}
	return st
}
