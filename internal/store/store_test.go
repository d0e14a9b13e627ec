package store

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ex = "http://example.org/"

func TestInternDedup(t *testing.T) {
	s := New()

	cases := []struct {
		name string
		a, b Element
	}{
		{"iri", IRI(ex + "a"), IRI(ex + "a")},
		{"blank", BlankNode{Label: "b0"}, BlankNode{Label: "b0"}},
		{"string literal", NewString("hi"), Literal{Lexical: "hi", Datatype: XSDString}},
		{"typed literal", NewTyped("42", XSDInteger), NewTyped("42", XSDInteger)},
		{"lang literal", NewLangString("chat", "fr"), NewLangString("chat", "fr")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, s.Intern(tc.a), s.Intern(tc.b))
		})
	}
}

func TestInternDistinguishesKinds(t *testing.T) {
	s := New()
	ids := []ID{
		s.Intern(IRI(ex + "x")),
		s.Intern(BlankNode{Label: ex + "x"}),
		s.Intern(NewString(ex + "x")),
		s.Intern(NewTyped(ex+"x", XSDInteger)),
		s.Intern(NewLangString(ex+"x", "en")),
		s.Intern(NewLangString(ex+"x", "EN")),
	}
	seen := make(map[ID]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "id %d assigned twice", id)
		seen[id] = true
	}
}

func TestIDsAreDense(t *testing.T) {
	s := New()
	for i := 1; i <= 50; i++ {
		id := s.InternIRI(ex + string(rune('A'+i)))
		require.Equal(t, ID(i), id)
	}
	// Re-interning allocates nothing.
	s.InternIRI(ex + "B")
	assert.Equal(t, 50, s.ElementCount())
}

func TestResolve(t *testing.T) {
	s := New()
	lit := NewLangString("hello", "en")
	id := s.Intern(lit)

	got, err := s.Resolve(id)
	require.NoError(t, err)
	assert.Equal(t, lit, got)

	_, err = s.Resolve(0)
	var unknown *UnknownIDError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, ID(0), unknown.ID)

	_, err = s.Resolve(id + 1)
	assert.Error(t, err)
	assert.Panics(t, func() { s.MustResolve(99) })
}

func TestLookupDoesNotIntern(t *testing.T) {
	s := New()
	_, ok := s.Lookup(IRI(ex + "nope"))
	assert.False(t, ok)
	assert.Equal(t, 0, s.ElementCount())
}

func TestNewBlankNodeIsFresh(t *testing.T) {
	s := New()
	a, b := s.NewBlankNode(), s.NewBlankNode()
	assert.NotEqual(t, a, b)
	e := s.MustResolve(a)
	assert.Equal(t, KindBlankNode, e.Kind())
}

func TestAddTripleDedup(t *testing.T) {
	s := New()
	a, p, b := s.InternIRI(ex+"a"), s.InternIRI(ex+"p"), s.InternIRI(ex+"b")

	before := s.Len()
	assert.True(t, s.AddTriple(a, p, b))
	assert.False(t, s.AddTriple(a, p, b))
	assert.Equal(t, before+1, s.Len())
	assert.True(t, s.Contains(T(a, p, b)))
}

func TestIndexedLookups(t *testing.T) {
	s := New()
	a, b, c := s.InternIRI(ex+"a"), s.InternIRI(ex+"b"), s.InternIRI(ex+"c")
	p, q := s.InternIRI(ex+"p"), s.InternIRI(ex+"q")

	facts := []Triple{T(a, p, b), T(a, q, c), T(b, p, c), T(c, q, a), T(a, p, c)}
	for _, f := range facts {
		s.Add(f)
	}

	tests := []struct {
		name string
		got  []Triple
		want []Triple
	}{
		{"subject", slices.Collect(s.TriplesWithSubject(a)), []Triple{T(a, p, b), T(a, q, c), T(a, p, c)}},
		{"predicate", slices.Collect(s.TriplesWithPredicate(q)), []Triple{T(a, q, c), T(c, q, a)}},
		{"object", slices.Collect(s.TriplesWithObject(c)), []Triple{T(a, q, c), T(b, p, c), T(a, p, c)}},
		{"subject predicate", slices.Collect(s.TriplesWithSubjectPredicate(a, p)), []Triple{T(a, p, b), T(a, p, c)}},
		{"predicate object", slices.Collect(s.TriplesWithPredicateObject(p, c)), []Triple{T(b, p, c), T(a, p, c)}},
		{"subject object", slices.Collect(s.Match(a, 0, c)), []Triple{T(a, q, c), T(a, p, c)}},
		{"all", slices.Collect(s.Triples()), facts},
		{"miss", slices.Collect(s.TriplesWithSubjectPredicate(b, q)), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, tc.got); diff != "" {
				t.Errorf("lookup mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSequencesAreRestartable(t *testing.T) {
	s := New()
	a, p := s.InternIRI(ex+"a"), s.InternIRI(ex+"p")
	s.AddTriple(a, p, a)
	seq := s.TriplesWithSubject(a)
	assert.Equal(t, slices.Collect(seq), slices.Collect(seq))
}

func TestSequenceIsStableUnderInsertion(t *testing.T) {
	s := New()
	a, p := s.InternIRI(ex+"a"), s.InternIRI(ex+"p")
	s.AddTriple(a, p, a)
	seq := s.TriplesWithSubject(a)
	n := 0
	for range seq {
		s.AddTriple(a, p, s.InternIRI(ex+"new"))
		n++
	}
	assert.Equal(t, 1, n)
}

func TestNamedGraphIsolation(t *testing.T) {
	s := New()
	g1, g2 := s.InternIRI(ex+"g1"), s.InternIRI(ex+"g2")
	a, p, b := s.InternIRI(ex+"a"), s.InternIRI(ex+"p"), s.InternIRI(ex+"b")
	tr := T(a, p, b)

	require.True(t, s.AddNamedGraphTriple(g1, tr))

	assert.False(t, s.Contains(tr))
	assert.Empty(t, slices.Collect(s.TriplesWithSubject(a)))
	assert.Equal(t, []Triple{tr}, slices.Collect(s.GraphTriplesWithSubject(g1, a)))
	assert.Equal(t, []Triple{tr}, slices.Collect(s.GraphTriplesWithPredicateObject(g1, p, b)))
	assert.Empty(t, slices.Collect(s.GraphTriples(g2)))
	assert.True(t, s.ContainsQuad(Quad{Graph: g1, Triple: tr}))
	assert.False(t, s.ContainsQuad(Quad{Graph: g2, Triple: tr}))

	s.AddQuad(Quad{Graph: g2, Triple: tr})
	assert.Equal(t, []ID{g1, g2}, slices.Collect(s.Graphs()))
	assert.Len(t, slices.Collect(s.Quads()), 2)
	assert.Equal(t, 1, s.GraphLen(g1))
	assert.Equal(t, 0, s.Len())
}

func TestReification(t *testing.T) {
	s := New()
	a, p, b, c := s.InternIRI(ex+"a"), s.InternIRI(ex+"p"), s.InternIRI(ex+"b"), s.InternIRI(ex+"c")
	r1, r2 := s.InternIRI(ex+"r1"), s.InternIRI(ex+"r2")
	tr := T(a, p, b)

	added, err := s.AddReifiedTriple(tr, r1)
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, s.Contains(tr))

	added, err = s.AddReifiedTriple(tr, r2)
	require.NoError(t, err)
	assert.False(t, added)

	got, ok := s.Reified(r1)
	require.True(t, ok)
	assert.Equal(t, tr, got)
	assert.Equal(t, []ID{r1, r2}, slices.Collect(s.ReifiersOf(tr)))

	_, err = s.AddReifiedTriple(T(a, p, c), r1)
	assert.Error(t, err)
	assert.False(t, s.Contains(T(a, p, c)))

	_, err = s.AddNamedGraphReifiedTriple(s.InternIRI(ex+"g"), tr, r1)
	var ns *NotSupportedError
	assert.ErrorAs(t, err, &ns)
}

func TestStats(t *testing.T) {
	s := New()
	a, p := s.InternIRI(ex+"a"), s.InternIRI(ex+"p")
	lit := s.Intern(NewString("x"))
	s.AddTriple(a, p, lit)
	s.AddNamedGraphTriple(a, T(a, p, a))

	st := s.Stats()
	assert.Equal(t, 3, st.Elements)
	assert.Equal(t, 1, st.DefaultGraph)
	assert.Equal(t, 1, st.NamedGraphs)
	assert.Equal(t, 1, st.NamedTriples)
	assert.Equal(t, map[string]int{"iri": 2, "literal": 1}, st.ElementsByKind)
}

func TestConcurrentIntern(t *testing.T) {
	s := New()
	const workers = 8
	ids := make([][]ID, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				ids[w] = append(ids[w], s.InternIRI(ex+string(rune('a'+i%26))))
			}
		}()
	}
	wg.Wait()

	for w := 1; w < workers; w++ {
		assert.Equal(t, ids[0], ids[w])
	}
	assert.Equal(t, 26, s.ElementCount())
}

func TestFormat(t *testing.T) {
	s := New()
	a := s.InternIRI(ex + "a")
	l := s.Intern(NewLangString("hi", "en"))
	assert.Equal(t, "<http://example.org/a>", s.Format(a))
	assert.Equal(t, `"hi"@en`, s.Format(l))
	assert.Equal(t, "?42", s.Format(42))
}
