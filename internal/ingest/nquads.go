// Package ingest reads N-Triples / N-Quads into a store.Store and writes the
// store back out. Parsing is delegated to cayley's nquads package one
// statement per line, so a bad line is reported and skipped instead of
// aborting the document.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/nquads"
	"go.uber.org/multierr"

	"semkb/internal/logging"
	"semkb/internal/metrics"
	"semkb/internal/store"
)

const maxLineBytes = 16 * 1024 * 1024

func init() {
	// Typed literals keep their lexical form. Native conversion would merge
	// "01" and "1" as xsd:integer and rewrite doubles and timestamps on export.
	nquads.AutoConvertTypedString = false
}

// Diagnostic is a rejected statement.
type Diagnostic struct {
	Source string
	Line   int
	Reason string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s:%d: %s", d.Source, d.Line, d.Reason)
}

// Report counts what one load did.
type Report struct {
	Source      string
	Statements  int
	Added       int
	AddedNamed  int
	Duplicates  int
	Diagnostics int
}

// Loader ingests statements into a store.
type Loader struct {
	st      *store.Store
	metrics *metrics.Metrics
}

// NewLoader creates a loader for st. m may be nil.
func NewLoader(st *store.Store, m *metrics.Metrics) *Loader {
	return &Loader{st: st, metrics: m}
}

// LoadFile ingests the N-Quads file at path.
func (l *Loader) LoadFile(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{Source: path}, fmt.Errorf("failed to open facts: %w", err)
	}
	defer f.Close()
	return l.Load(f, path)
}

// Load ingests r. Invalid statements become *Diagnostic values combined with
// multierr; valid statements are still added. Blank node labels are scoped to
// this call: each label maps to one fresh store blank node.
func (l *Loader) Load(r io.Reader, source string) (Report, error) {
	timer := logging.StartTimer(logging.CategoryIngest, "Load "+source)
	defer timer.Stop()

	rep := Report{Source: source}
	blanks := make(map[quad.BNode]store.ID)
	var diags error

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		rep.Statements++

		q, err := nquads.Parse(text)
		if err == nil {
			err = l.add(q, blanks, &rep)
		}
		if err != nil {
			rep.Diagnostics++
			diags = multierr.Append(diags, &Diagnostic{Source: source, Line: line, Reason: err.Error()})
		}
	}
	if err := sc.Err(); err != nil {
		return rep, multierr.Append(diags, fmt.Errorf("failed to read %s: %w", source, err))
	}

	l.metrics.RecordIngest(rep.Added, rep.AddedNamed)
	l.metrics.RecordDiagnostics("facts", rep.Diagnostics)
	logging.Ingest("Loaded %s: %d statements, %d new, %d new in named graphs, %d duplicates, %d diagnostics",
		source, rep.Statements, rep.Added, rep.AddedNamed, rep.Duplicates, rep.Diagnostics)
	return rep, diags
}

func (l *Loader) add(q quad.Quad, blanks map[quad.BNode]store.ID, rep *Report) error {
	switch q.Subject.(type) {
	case quad.IRI, quad.BNode:
	default:
		return fmt.Errorf("subject %s must be an IRI or blank node", quad.StringOf(q.Subject))
	}
	if _, ok := q.Predicate.(quad.IRI); !ok {
		return fmt.Errorf("predicate %s must be an IRI", quad.StringOf(q.Predicate))
	}
	switch q.Label.(type) {
	case nil, quad.IRI, quad.BNode:
	default:
		return fmt.Errorf("graph name %s must be an IRI or blank node", quad.StringOf(q.Label))
	}
	obj, err := toElement(q.Object)
	if err != nil {
		return err
	}

	intern := func(v quad.Value, e store.Element) store.ID {
		if b, ok := v.(quad.BNode); ok {
			id, seen := blanks[b]
			if !seen {
				id = l.st.NewBlankNode()
				blanks[b] = id
			}
			return id
		}
		return l.st.Intern(e)
	}
	subjEl, _ := toElement(q.Subject)
	predEl, _ := toElement(q.Predicate)
	t := store.T(intern(q.Subject, subjEl), intern(q.Predicate, predEl), intern(q.Object, obj))

	if q.Label == nil {
		if l.st.Add(t) {
			rep.Added++
		} else {
			rep.Duplicates++
		}
		return nil
	}
	graphEl, _ := toElement(q.Label)
	if l.st.AddNamedGraphTriple(intern(q.Label, graphEl), t) {
		rep.AddedNamed++
	} else {
		rep.Duplicates++
	}
	return nil
}

// toElement converts a cayley value. Blank nodes convert to their document
// label; callers scope them.
func toElement(v quad.Value) (store.Element, error) {
	switch v := v.(type) {
	case quad.IRI:
		return store.IRI(string(v)), nil
	case quad.BNode:
		return store.BlankNode{Label: string(v)}, nil
	case quad.String:
		return store.NewString(string(v)), nil
	case quad.LangString:
		return store.NewLangString(string(v.Value), v.Lang), nil
	case quad.TypedString:
		return store.NewTyped(string(v.Value), string(v.Type)), nil
	case nil:
		return nil, fmt.Errorf("missing term")
	default:
		return nil, fmt.Errorf("unsupported term %s", quad.StringOf(v))
	}
}

// fromElement converts back to a cayley value. Base directions have no
// cayley representation and are dropped.
func fromElement(e store.Element) quad.Value {
	switch e := e.(type) {
	case store.IRI:
		return quad.IRI(string(e))
	case store.BlankNode:
		return quad.BNode(e.Label)
	case store.Literal:
		switch {
		case e.Lang != "":
			return quad.LangString{Value: quad.String(e.Lexical), Lang: e.Lang}
		case e.Datatype == "" || e.Datatype == store.XSDString:
			return quad.String(e.Lexical)
		default:
			return quad.TypedString{Value: quad.String(e.Lexical), Type: quad.IRI(e.Datatype)}
		}
	}
	return nil
}

// WriteNQuads writes the default graph followed by every named graph.
func WriteNQuads(w io.Writer, st *store.Store) error {
	nw := nquads.NewWriter(w)
	value := func(id store.ID) (quad.Value, error) {
		e, err := st.Resolve(id)
		if err != nil {
			return nil, err
		}
		return fromElement(e), nil
	}
	write := func(graph store.ID, t store.Triple) error {
		var q quad.Quad
		var err error
		if q.Subject, err = value(t.Subject); err != nil {
			return err
		}
		if q.Predicate, err = value(t.Predicate); err != nil {
			return err
		}
		if q.Object, err = value(t.Object); err != nil {
			return err
		}
		if graph != 0 {
			if q.Label, err = value(graph); err != nil {
				return err
			}
		}
		return nw.WriteQuad(q)
	}

	n := 0
	for t := range st.Triples() {
		if err := write(0, t); err != nil {
			return fmt.Errorf("failed to write triple: %w", err)
		}
		n++
	}
	for q := range st.Quads() {
		if err := write(q.Graph, q.Triple); err != nil {
			return fmt.Errorf("failed to write quad: %w", err)
		}
		n++
	}
	if err := nw.Close(); err != nil {
		return err
	}
	logging.IngestDebug("Wrote %d statements", n)
	return nil
}
