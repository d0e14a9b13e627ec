// Package store implements the graph element store: term interning plus
// indexed, append-only storage of triples and quads.
//
// Every term is interned once and referred to by a dense ID afterwards. Facts
// live in one authoritative list per graph partition; the secondary indices
// (by subject, predicate, object, subject+predicate, predicate+object and the
// full-tuple set) are only ever updated by the single insertion routine.
package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the variant of an Element.
type Kind uint8

const (
	KindIRI Kind = iota + 1
	KindBlankNode
	KindLiteral
)

func (k Kind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindBlankNode:
		return "blank"
	case KindLiteral:
		return "literal"
	default:
		return "unknown"
	}
}

// Element is a graph term: an IRI, a blank node or a literal.
type Element interface {
	Kind() Kind
	String() string
	key() elementKey
}

// elementKey is the structural identity of an Element, used as the
// forward-interning map key.
type elementKey struct {
	kind      Kind
	value     string
	datatype  string
	lang      string
	direction string
}

// IRI is an absolute resource identifier.
type IRI string

func (IRI) Kind() Kind { return KindIRI }

// String renders the IRI in N-Triples form.
func (i IRI) String() string { return "<" + string(i) + ">" }

func (i IRI) key() elementKey { return elementKey{kind: KindIRI, value: string(i)} }

// BlankNode is a resource without a global name. Two blank nodes are equal
// iff their labels are equal; labels are scoped to one store.
type BlankNode struct {
	Label string
}

func (BlankNode) Kind() Kind { return KindBlankNode }

func (b BlankNode) String() string { return "_:" + b.Label }

func (b BlankNode) key() elementKey { return elementKey{kind: KindBlankNode, value: b.Label} }

// Literal is an RDF value. Datatype is an IRI string; Lang and Direction are
// only meaningful for rdf:langString / rdf:dirLangString literals.
type Literal struct {
	Lexical   string
	Datatype  string
	Lang      string
	Direction string
}

func (Literal) Kind() Kind { return KindLiteral }

// String renders the literal in N-Triples form.
func (l Literal) String() string {
	var b strings.Builder
	b.WriteString(strconv.Quote(l.Lexical))
	switch {
	case l.Lang != "" && l.Direction != "":
		fmt.Fprintf(&b, "@%s--%s", l.Lang, l.Direction)
	case l.Lang != "":
		b.WriteString("@" + l.Lang)
	case l.Datatype != "" && l.Datatype != XSDString:
		b.WriteString("^^<" + l.Datatype + ">")
	}
	return b.String()
}

func (l Literal) key() elementKey {
	return elementKey{
		kind:      KindLiteral,
		value:     l.Lexical,
		datatype:  l.Datatype,
		lang:      l.Lang,
		direction: l.Direction,
	}
}

// Well-known datatype IRIs.
const (
	XSDString        = "http://www.w3.org/2001/XMLSchema#string"
	XSDInteger       = "http://www.w3.org/2001/XMLSchema#integer"
	XSDDouble        = "http://www.w3.org/2001/XMLSchema#double"
	XSDBoolean       = "http://www.w3.org/2001/XMLSchema#boolean"
	XSDDateTime      = "http://www.w3.org/2001/XMLSchema#dateTime"
	RDFLangString    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"
	RDFDirLangString = "http://www.w3.org/1999/02/22-rdf-syntax-ns#dirLangString"
	RDFType          = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	RDFSSubClassOf   = "http://www.w3.org/2000/01/rdf-schema#subClassOf"
	RDFSSubPropOf    = "http://www.w3.org/2000/01/rdf-schema#subPropertyOf"
	OWLSameAs        = "http://www.w3.org/2002/07/owl#sameAs"
)

// NewString builds a plain xsd:string literal.
func NewString(lexical string) Literal {
	return Literal{Lexical: lexical, Datatype: XSDString}
}

// NewTyped builds a literal with an explicit datatype.
func NewTyped(lexical, datatype string) Literal {
	return Literal{Lexical: lexical, Datatype: datatype}
}

// NewLangString builds a language-tagged literal.
func NewLangString(lexical, lang string) Literal {
	return Literal{Lexical: lexical, Datatype: RDFLangString, Lang: lang}
}
