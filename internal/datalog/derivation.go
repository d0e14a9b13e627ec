package datalog

import (
	"fmt"
	"strings"

	"semkb/internal/store"
)

// Derivation records the first rule application that produced a fact.
type Derivation struct {
	Rule     string
	Premises []store.Triple
}

// DerivationSource indicates whether a fact was asserted or derived.
type DerivationSource string

const (
	SourceEDB DerivationSource = "EDB" // Extensional - asserted facts
	SourceIDB DerivationSource = "IDB" // Intensional - derived by rules
)

// DerivationNode is one node of a proof tree.
type DerivationNode struct {
	Fact     store.Triple
	RuleName string // empty for EDB facts
	Source   DerivationSource
	Children []*DerivationNode
	Depth    int
}

// Trace builds the proof tree of fact from the recorded derivations. Facts
// without a derivation are leaves. It returns nil when derivations were not
// tracked or fact is not derived.
func (r *Result) Trace(fact store.Triple) *DerivationNode {
	if r.Derivations == nil {
		return nil
	}
	if _, ok := r.Derivations[fact]; !ok {
		return nil
	}
	return r.buildNode(fact, 0)
}

// Premises of a derivation were in the store before the derived fact was
// inserted, so the recursion always reaches asserted facts.
func (r *Result) buildNode(fact store.Triple, depth int) *DerivationNode {
	d, ok := r.Derivations[fact]
	if !ok {
		return &DerivationNode{Fact: fact, Source: SourceEDB, Depth: depth}
	}
	node := &DerivationNode{Fact: fact, RuleName: d.Rule, Source: SourceIDB, Depth: depth}
	for _, p := range d.Premises {
		node.Children = append(node.Children, r.buildNode(p, depth+1))
	}
	return node
}

// RenderASCII renders the tree rooted at n with facts formatted through st.
func (n *DerivationNode) RenderASCII(st *store.Store) string {
	var sb strings.Builder
	renderNodeASCII(&sb, st, n, "", true)
	return sb.String()
}

func renderNodeASCII(sb *strings.Builder, st *store.Store, node *DerivationNode, prefix string, isLast bool) {
	connector := "├── "
	if isLast {
		connector = "└── "
	}

	sourceIndicator := "[EDB]"
	if node.Source == SourceIDB {
		sourceIndicator = fmt.Sprintf("[IDB:%s]", node.RuleName)
	}
	fmt.Fprintf(sb, "%s%s%s %s\n", prefix, connector, st.FormatTriple(node.Fact), sourceIndicator)

	childPrefix := prefix
	if isLast {
		childPrefix += "    "
	} else {
		childPrefix += "│   "
	}
	for i, child := range node.Children {
		renderNodeASCII(sb, st, child, childPrefix, i == len(node.Children)-1)
	}
}
