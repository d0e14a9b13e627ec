package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"semkb/internal/datalog"
	"semkb/internal/ingest"
	"semkb/internal/store"
)

const familyFacts = `<http://example.org/alice> <http://example.org/parent> <http://example.org/bob> .
<http://example.org/bob> <http://example.org/parent> <http://example.org/carol> .
<http://example.org/carol> <http://example.org/name> "Carol" <http://example.org/g1> .
`

const familyRules = `
ancestor(X, Y) :- parent(X, Y).
ancestor(X, Z) :- parent(X, Y), ancestor(Y, Z).
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

// execute runs the CLI with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("SEMKB_METRICS_ADDR", "")

	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	cfg := filepath.Join(t.TempDir(), "absent.yaml")
	root.SetArgs(append([]string{"--config", cfg}, args...))

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestReasonDerivesAndExports(t *testing.T) {
	dir := t.TempDir()
	facts := writeFile(t, dir, "family.nq", familyFacts)
	rules := writeFile(t, dir, "family.mg", familyRules)
	out := filepath.Join(dir, "closure.nq")

	stdout, _, err := execute(t, "reason", "--facts", facts, "--rules", rules, "--out", out)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Evaluated 2 rules in 1 strata: 3 facts derived")
	assert.Contains(t, stdout, "Consistent")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	closure := string(data)
	assert.Equal(t, 3, strings.Count(closure, "<http://example.org/ancestor>"))
	assert.Contains(t, closure, "<http://example.org/alice> <http://example.org/ancestor> <http://example.org/carol> .")
	assert.Contains(t, closure, "<http://example.org/g1>")
}

func TestReasonReportsContradiction(t *testing.T) {
	dir := t.TempDir()
	facts := writeFile(t, dir, "people.nt", `<http://example.org/pat> <`+store.RDFType+`> <http://example.org/man> .
<http://example.org/pat> <`+store.RDFType+`> <http://example.org/woman> .
<http://example.org/sam> <`+store.RDFType+`> <http://example.org/man> .
`)
	rules := writeFile(t, dir, "people.mg", "contradiction(X) :- man(X), woman(X).\n")

	stdout, _, err := execute(t, "reason", "-f", facts, "-r", rules)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Inconsistencies: 1")
	assert.Contains(t, stdout, "contradiction:0 {?X=<http://example.org/pat>}")
}

func TestReasonExplain(t *testing.T) {
	dir := t.TempDir()
	facts := writeFile(t, dir, "family.nq", familyFacts)
	rules := writeFile(t, dir, "family.mg", familyRules)

	stdout, _, err := execute(t, "reason", "--facts", facts, "--rules", rules, "--explain")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Derivations:")
	assert.Contains(t, stdout, "[IDB:ancestor:1]")
	assert.Contains(t, stdout, "[IDB:ancestor:0]")
	assert.Contains(t, stdout, "[EDB]")
}

func TestReasonRuleDirectory(t *testing.T) {
	dir := t.TempDir()
	facts := writeFile(t, dir, "family.nq", familyFacts)
	rulesDir := filepath.Join(dir, "rules")
	require.NoError(t, os.Mkdir(rulesDir, 0755))
	writeFile(t, rulesDir, "base.mg", "ancestor(X, Y) :- parent(X, Y).\n")
	writeFile(t, rulesDir, "step.mg", "ancestor(X, Z) :- parent(X, Y), ancestor(Y, Z).\n")
	writeFile(t, rulesDir, "README.txt", "not rules")

	stdout, _, err := execute(t, "reason", "--facts", facts, "--rules", rulesDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "3 facts derived")
}

func TestReasonRejectsUnsafeRules(t *testing.T) {
	dir := t.TempDir()
	facts := writeFile(t, dir, "family.nq", familyFacts)
	rules := writeFile(t, dir, "bad.mg", "related(X, Y) :- parent(X, Z).\n")

	_, _, err := execute(t, "reason", "--facts", facts, "--rules", rules)
	require.Error(t, err)
	assert.ErrorIs(t, err, datalog.ErrUnsafeRule)
}

func TestQueryBindings(t *testing.T) {
	dir := t.TempDir()
	facts := writeFile(t, dir, "family.nq", familyFacts)
	rules := writeFile(t, dir, "family.mg", familyRules)

	stdout, _, err := execute(t, "query", "--facts", facts, "--rules", rules,
		"--atom", "ancestor(/ex/alice, X)")
	require.NoError(t, err)

	assert.Contains(t, stdout, "{?X=<http://example.org/bob>}")
	assert.Contains(t, stdout, "{?X=<http://example.org/carol>}")
	assert.Contains(t, stdout, "2 results")
}

func TestQueryConjunction(t *testing.T) {
	dir := t.TempDir()
	facts := writeFile(t, dir, "family.nq", familyFacts)
	rules := writeFile(t, dir, "family.mg", familyRules)

	stdout, _, err := execute(t, "query", "--facts", facts, "--rules", rules,
		"--atom", "ancestor(X, Y)", "--atom", "parent(Y, Z)")
	require.NoError(t, err)

	// Only bob has children, so Y must be bob.
	assert.Contains(t, stdout, "{?X=<http://example.org/alice>, ?Y=<http://example.org/bob>, ?Z=<http://example.org/carol>}")
	assert.Contains(t, stdout, "1 results")
}

func TestQueryRequiresAtom(t *testing.T) {
	_, _, err := execute(t, "query")
	assert.Error(t, err)
}

func TestCheckPrintsStrata(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "neg.mg", `
b(X) :- a(X).
c(X) :- a(X), !b(X).
contradiction(X) :- b(X), c(X).
`)

	stdout, _, err := execute(t, "check", "--rules", rules)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Stratum 0: b:0")
	assert.Contains(t, stdout, "Stratum 1: c:1")
	assert.Contains(t, stdout, "Constraints: contradiction:2")
	assert.Contains(t, stdout, "OK: 3 rules in 2 strata, 1 contradiction rules")
}

func TestCheckRejectsUnstratifiable(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "loop.mg", "p(X) :- q(X), !p(X).\n")

	stdout, _, err := execute(t, "check", "--rules", rules)
	require.Error(t, err)
	assert.ErrorIs(t, err, datalog.ErrUnstratifiable)
	assert.Contains(t, stdout, "FAIL")
}

func TestCheckNoRules(t *testing.T) {
	_, _, err := execute(t, "check")
	assert.EqualError(t, err, "no rules loaded")
}

func TestStatsJSON(t *testing.T) {
	dir := t.TempDir()
	facts := writeFile(t, dir, "family.nq", familyFacts)

	stdout, _, err := execute(t, "stats", "--facts", facts, "--json")
	require.NoError(t, err)

	var s store.Stats
	require.NoError(t, json.Unmarshal([]byte(stdout), &s))
	assert.Equal(t, 2, s.DefaultGraph)
	assert.Equal(t, 1, s.NamedGraphs)
	assert.Equal(t, 1, s.NamedTriples)
	assert.Equal(t, 1, s.ElementsByKind["literal"])
}

func TestStatsWarnsOnBadStatements(t *testing.T) {
	dir := t.TempDir()
	facts := writeFile(t, dir, "mixed.nt", familyFacts+"\"lit\" <http://example.org/p> <http://example.org/o> .\n")

	stdout, stderr, err := execute(t, "stats", "--facts", facts)
	require.NoError(t, err)
	assert.Contains(t, stderr, "warning:")
	assert.Contains(t, stderr, "mixed.nt:4")
	assert.Contains(t, stdout, "Default graph triples: 2")
}

func TestMissingFactFileFails(t *testing.T) {
	_, _, err := execute(t, "stats", "--facts", filepath.Join(t.TempDir(), "nope.nq"))
	assert.Error(t, err)
}

func TestReportDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("disk on fire")
	err := multierr.Combine(
		&ingest.Diagnostic{Source: "a.nq", Line: 3, Reason: "literal subject"},
		boom,
	)

	rest := reportDiagnostics(&buf, err)
	assert.ErrorIs(t, rest, boom)
	assert.Equal(t, "warning: a.nq:3: literal subject\n", buf.String())

	assert.NoError(t, reportDiagnostics(&buf, nil))
}
