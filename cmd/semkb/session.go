package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"semkb/internal/datalog"
	"semkb/internal/ingest"
	"semkb/internal/mangle"
	"semkb/internal/store"
)

// liveStore points the store gauges at whichever store the command is
// currently working on. Watch mode swaps in a fresh store on every reload.
type liveStore struct {
	p atomic.Pointer[store.Store]
}

func (l *liveStore) Stats() store.Stats {
	if st := l.p.Load(); st != nil {
		return st.Stats()
	}
	return store.Stats{}
}

// knowledgeBase is one loaded store plus the rules read into it.
type knowledgeBase struct {
	st     *store.Store
	loader *mangle.Loader
	rules  []datalog.Rule
}

// sources lists the fact and rule files of an invocation: configured paths
// first, then flags.
type sources struct {
	facts []string
	rules []string
}

func (r *app) sources(facts, rules []string) sources {
	return sources{
		facts: append(slices.Clone(r.cfg.Ingest.FactPaths), facts...),
		rules: append(slices.Clone(r.cfg.Mangle.RulePaths), rules...),
	}
}

// load builds a fresh store from src. Per-statement and per-clause
// diagnostics are written to warn; anything else aborts the load.
func (r *app) load(src sources, warn io.Writer) (*knowledgeBase, error) {
	st := store.NewWithConfig(r.cfg.Store)
	kb := &knowledgeBase{
		st:     st,
		loader: mangle.NewLoader(r.cfg.RuleConfig(), st),
	}

	facts := ingest.NewLoader(st, r.metrics)
	for _, path := range src.facts {
		rep, err := facts.LoadFile(path)
		r.audit.Ingest(path, rep.Added+rep.AddedNamed, rep.Diagnostics)
		if err := reportDiagnostics(warn, err); err != nil {
			return nil, err
		}
		logger.Debug("Loaded facts",
			zap.String("path", path),
			zap.Int("statements", rep.Statements),
			zap.Int("added", rep.Added),
			zap.Int("named", rep.AddedNamed))
	}

	rulePaths, err := expandRulePaths(src.rules)
	if err != nil {
		return nil, err
	}
	for _, path := range rulePaths {
		rules, err := kb.loader.LoadFile(path)
		n := len(multierr.Errors(err))
		r.metrics.RecordDiagnostics("rules", n)
		r.audit.RulesLoaded(path, len(rules), n)
		if err := reportDiagnostics(warn, err); err != nil {
			return nil, err
		}
		kb.rules = append(kb.rules, rules...)
	}

	r.live.p.Store(st)
	return kb, nil
}

// expandRulePaths replaces every directory in paths by the .mg files it
// contains, in lexical order.
func expandRulePaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read rules: %w", err)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "*.mg"))
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	return out, nil
}

// evaluate runs the engine configured for this invocation over kb.
func (r *app) evaluate(kb *knowledgeBase, trackDerivations bool) (*datalog.Result, error) {
	cfg := r.cfg.EngineConfig()
	cfg.TrackDerivations = cfg.TrackDerivations || trackDerivations
	engine := datalog.NewEngine(cfg, datalog.WithMetrics(r.metrics), datalog.WithAudit(r.audit))
	return engine.Evaluate(kb.rules, kb.st)
}

// reportDiagnostics prints loader diagnostics contained in err and returns
// whatever is left.
func reportDiagnostics(w io.Writer, err error) error {
	var fatal error
	for _, e := range multierr.Errors(err) {
		var factDiag *ingest.Diagnostic
		var ruleDiag *mangle.Diagnostic
		if errors.As(e, &factDiag) || errors.As(e, &ruleDiag) {
			fmt.Fprintf(w, "warning: %v\n", e)
			continue
		}
		fatal = multierr.Append(fatal, e)
	}
	return fatal
}
