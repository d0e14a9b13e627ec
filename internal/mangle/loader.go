// Package mangle loads Datalog rules written in Mangle syntax and converts
// them into datalog.Rule values over a store.Store.
//
// Atoms map onto triple patterns by arity:
//
//	student(X).            X rdf:type <base>student
//	advisor(X, Y).         X <base>advisor Y
//	triple(S, P, O).       S P O
//	contradiction() :- ... integrity constraint
//
// Name constants such as /ex/alice resolve through the configured prefixes.
//
// The wildcard _ may appear in positive atoms only. Negated atoms must name
// every variable and bind it in a positive atom; a clause such as
// !knows(X, _) is reported as a Diagnostic and skipped.
package mangle

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/google/mangle/ast"
	"github.com/google/mangle/parse"
	"go.uber.org/multierr"

	"semkb/internal/datalog"
	"semkb/internal/logging"
	"semkb/internal/store"
)

const (
	// ContradictionPredicate heads integrity constraints.
	ContradictionPredicate = "contradiction"
	// TriplePredicate matches raw triples: triple(S, P, O).
	TriplePredicate = "triple"
)

// Config controls how Mangle symbols become IRIs.
type Config struct {
	// BaseIRI prefixes predicate and class symbols without an alias.
	BaseIRI string `yaml:"base_iri" json:"base_iri"`
	// Prefixes maps the first segment of a name constant to a namespace:
	// /ex/alice with ex -> http://example.org/ is http://example.org/alice.
	Prefixes map[string]string `yaml:"prefixes" json:"prefixes"`
	// Aliases maps predicate symbols to full IRIs.
	Aliases map[string]string `yaml:"aliases" json:"aliases"`
}

// DefaultConfig returns the standard RDF namespaces and aliases.
func DefaultConfig() Config {
	base := "http://example.org/"
	return Config{
		BaseIRI: base,
		Prefixes: map[string]string{
			"rdf":  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
			"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
			"owl":  "http://www.w3.org/2002/07/owl#",
			"xsd":  "http://www.w3.org/2001/XMLSchema#",
			"ex":   base,
		},
		Aliases: map[string]string{
			"type":          store.RDFType,
			"subClassOf":    store.RDFSSubClassOf,
			"subPropertyOf": store.RDFSSubPropOf,
			"sameAs":        store.OWLSameAs,
		},
	}
}

// Diagnostic is a problem with one clause. The clause is skipped; the rest of
// the source still loads.
type Diagnostic struct {
	Source string
	Clause int
	Text   string
	Reason string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: clause %d (%s): %s", d.Source, d.Clause, d.Text, d.Reason)
}

// Loader converts Mangle clauses. Constants are interned into its store.
type Loader struct {
	config Config
	st     *store.Store
	anon   int
}

// NewLoader creates a loader interning into st.
func NewLoader(cfg Config, st *store.Store) *Loader {
	return &Loader{config: cfg, st: st}
}

// LoadFile reads and converts the rules in path.
func (l *Loader) LoadFile(path string) ([]datalog.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	return l.Load(bytes.NewReader(data), path)
}

// LoadString converts the rules in src.
func (l *Loader) LoadString(src, source string) ([]datalog.Rule, error) {
	return l.Load(strings.NewReader(src), source)
}

// Load parses r and converts every clause. A syntax error fails the whole
// source. Clauses that parse but cannot be expressed as triple rules are
// reported as *Diagnostic values combined with multierr, next to the rules
// that did convert.
func (l *Loader) Load(r io.Reader, source string) ([]datalog.Rule, error) {
	timer := logging.StartTimer(logging.CategoryRules, "Load "+source)
	defer timer.Stop()

	unit, err := parse.Unit(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}

	var (
		rules []datalog.Rule
		diags error
	)
	for i, clause := range unit.Clauses {
		rule, err := l.convertClause(clause)
		if err != nil {
			diags = multierr.Append(diags, &Diagnostic{
				Source: source,
				Clause: i,
				Text:   clause.String(),
				Reason: err.Error(),
			})
			continue
		}
		rule.Name = fmt.Sprintf("%s:%d", clause.Head.Predicate.Symbol, i)
		logging.RulesDebug("Converted clause %d as %s: %d body atoms", i, rule.Name, len(rule.Body))
		rules = append(rules, rule)
	}

	n := len(multierr.Errors(diags))
	logging.Rules("Loaded %d rules from %s (%d diagnostics, %d decls ignored)", len(rules), source, n, len(unit.Decls))
	return rules, diags
}

// Atom converts a single Mangle atom such as `advisor(X, /ex/bob)` into a
// triple pattern. Used for queries.
func (l *Loader) Atom(text string) (datalog.TriplePattern, error) {
	clean := strings.TrimSpace(text)
	clean = strings.TrimSpace(strings.TrimPrefix(clean, "?"))
	clean = strings.TrimSpace(strings.TrimSuffix(clean, "."))

	atom, err := parse.Atom(clean)
	if err != nil {
		return datalog.TriplePattern{}, fmt.Errorf("failed to parse atom %q: %w", text, err)
	}
	return l.convertAtom(atom)
}

func (l *Loader) convertClause(c ast.Clause) (datalog.Rule, error) {
	if c.Transform != nil {
		return datalog.Rule{}, fmt.Errorf("transforms are not supported")
	}

	var rule datalog.Rule
	if c.Head.Predicate.Symbol == ContradictionPredicate {
		rule.Head = datalog.Contradiction()
	} else {
		p, err := l.convertAtom(c.Head)
		if err != nil {
			return datalog.Rule{}, fmt.Errorf("head: %w", err)
		}
		rule.Head = datalog.NormalHead(p)
	}

	for _, premise := range c.Premises {
		switch t := premise.(type) {
		case ast.Atom:
			p, err := l.convertAtom(t)
			if err != nil {
				return datalog.Rule{}, err
			}
			rule.Body = append(rule.Body, datalog.Positive(p))
		case ast.NegAtom:
			if hasWildcard(t.Atom) {
				return datalog.Rule{}, fmt.Errorf("wildcard _ is not allowed in negated atom %s", t.Atom)
			}
			p, err := l.convertAtom(t.Atom)
			if err != nil {
				return datalog.Rule{}, err
			}
			rule.Body = append(rule.Body, datalog.Negated(p))
		default:
			return datalog.Rule{}, fmt.Errorf("unsupported premise %s", premise)
		}
	}
	return rule, nil
}

func hasWildcard(a ast.Atom) bool {
	for _, arg := range a.Args {
		if v, ok := arg.(ast.Variable); ok && v.Symbol == "_" {
			return true
		}
	}
	return false
}

func (l *Loader) convertAtom(a ast.Atom) (datalog.TriplePattern, error) {
	sym := a.Predicate.Symbol
	args := make([]datalog.Term, len(a.Args))
	for i, arg := range a.Args {
		t, err := l.convertTerm(arg)
		if err != nil {
			return datalog.TriplePattern{}, fmt.Errorf("%s argument %d: %w", sym, i, err)
		}
		args[i] = t
	}

	switch {
	case sym == TriplePredicate && len(args) == 3:
		return datalog.Pattern(args[0], args[1], args[2]), nil
	case len(args) == 1:
		return datalog.Pattern(args[0], datalog.Const(l.st.InternIRI(store.RDFType)), datalog.Const(l.symbolID(sym))), nil
	case len(args) == 2:
		return datalog.Pattern(args[0], datalog.Const(l.symbolID(sym)), args[1]), nil
	default:
		return datalog.TriplePattern{}, fmt.Errorf("%s/%d has no triple form (use arity 1, 2 or triple/3)", sym, len(args))
	}
}

func (l *Loader) convertTerm(bt ast.BaseTerm) (datalog.Term, error) {
	switch t := bt.(type) {
	case ast.Variable:
		if t.Symbol == "_" {
			l.anon++
			return datalog.Var(fmt.Sprintf("_%d", l.anon)), nil
		}
		return datalog.Var(t.Symbol), nil
	case ast.Constant:
		e, err := l.constantElement(t)
		if err != nil {
			return nil, err
		}
		return datalog.Const(l.st.Intern(e)), nil
	default:
		return nil, fmt.Errorf("unsupported term %s", bt)
	}
}

func (l *Loader) constantElement(c ast.Constant) (store.Element, error) {
	switch c.Type {
	case ast.NameType:
		return store.IRI(l.ResolveName(c.Symbol)), nil
	case ast.StringType:
		return store.NewString(c.Symbol), nil
	case ast.NumberType:
		return store.NewTyped(strconv.FormatInt(c.NumValue, 10), store.XSDInteger), nil
	case ast.Float64Type:
		f := math.Float64frombits(uint64(c.NumValue))
		return store.NewTyped(strconv.FormatFloat(f, 'g', -1, 64), store.XSDDouble), nil
	default:
		return nil, fmt.Errorf("unsupported constant %s", c)
	}
}

// ResolveName maps a name constant to an IRI: /prefix/local uses the prefix
// namespace, anything else is relative to BaseIRI.
func (l *Loader) ResolveName(name string) string {
	trimmed := strings.TrimPrefix(name, "/")
	if prefix, local, ok := strings.Cut(trimmed, "/"); ok {
		if ns, known := l.config.Prefixes[prefix]; known {
			return ns + local
		}
	}
	return l.config.BaseIRI + trimmed
}

// SymbolIRI maps a predicate or class symbol to its IRI.
func (l *Loader) SymbolIRI(sym string) string {
	if iri, ok := l.config.Aliases[sym]; ok {
		return iri
	}
	return l.config.BaseIRI + sym
}

func (l *Loader) symbolID(sym string) store.ID {
	return l.st.InternIRI(l.SymbolIRI(sym))
}
