package datalog

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"semkb/internal/logging"
	"semkb/internal/metrics"
	"semkb/internal/store"
)

// Config holds evaluation tuning.
type Config struct {
	// SemiNaive restricts every round after the first to rule instances
	// that use at least one fact from the previous round. Naive
	// evaluation produces identical results.
	SemiNaive bool `yaml:"semi_naive" json:"semi_naive"`
	// Parallelism bounds how many rules of a round are matched
	// concurrently. Values below 2 evaluate sequentially.
	Parallelism int `yaml:"parallelism" json:"parallelism"`
	// FactLimit caps the default graph size during a pass; 0 disables it.
	FactLimit int `yaml:"fact_limit" json:"fact_limit"`
	// TrackDerivations records the first derivation of every new fact.
	TrackDerivations bool `yaml:"track_derivations" json:"track_derivations"`
	// SlowThreshold logs a warning for passes that take longer; 0 disables it.
	SlowThreshold time.Duration `yaml:"slow_threshold" json:"slow_threshold"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SemiNaive:   true,
		Parallelism: 1,
	}
}

// Stats summarises one evaluation pass.
type Stats struct {
	Rules    int           `json:"rules"`
	Strata   int           `json:"strata"`
	Rounds   int           `json:"rounds"`
	Derived  int           `json:"derived"`
	Duration time.Duration `json:"duration"`
}

// Result is the outcome of Evaluate.
type Result struct {
	Plan            *Stratification
	Inconsistencies []InconsistencyDetected
	Stats           Stats
	// Derivations is nil unless Config.TrackDerivations is set.
	Derivations map[store.Triple]Derivation
}

// Consistent reports whether no contradiction rule fired.
func (r *Result) Consistent() bool { return len(r.Inconsistencies) == 0 }

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records every pass into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithAudit writes audit events for every pass to a.
func WithAudit(a *logging.AuditLogger) Option {
	return func(e *Engine) { e.audit = a }
}

// Engine materialises rule consequences into a store. An Engine holds no
// per-pass state and may be reused; the store must not be written by anyone
// else while Evaluate runs.
type Engine struct {
	config  Config
	metrics *metrics.Metrics
	audit   *logging.AuditLogger
}

// NewEngine creates an engine.
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{config: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate evaluates rules over st with the default configuration.
func Evaluate(rules []Rule, st *store.Store) (*Result, error) {
	return NewEngine(DefaultConfig()).Evaluate(rules, st)
}

// Evaluate checks, stratifies and runs rules over the default graph of st
// until no stratum derives anything new, then evaluates the contradiction
// rules.
//
// Unsafe or unstratifiable programs are rejected before st is touched. When
// the fact limit is hit the partial Result is returned together with an
// error wrapping ErrFactLimitExceeded; facts inserted so far stay in st.
func (e *Engine) Evaluate(rules []Rule, st *store.Store) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryEngine, "Evaluate")
	defer e.stopTimer(timer)
	start := time.Now()
	e.audit.EvalStart(len(rules), st.Len())

	if err := CheckSafety(rules); err != nil {
		e.reject(err, start)
		return nil, err
	}
	plan, err := Stratify(rules, st)
	if err != nil {
		e.reject(err, start)
		return nil, err
	}

	res := &Result{Plan: plan}
	res.Stats.Rules = len(rules)
	res.Stats.Strata = len(plan.Strata)
	if e.config.TrackDerivations {
		res.Derivations = make(map[store.Triple]Derivation)
	}

	ev := &evaluation{engine: e, rules: rules, st: st, res: res}
	for _, s := range plan.Strata {
		if err := ev.stratum(s); err != nil {
			res.Stats.Duration = time.Since(start)
			outcome := "error"
			if errors.Is(err, ErrFactLimitExceeded) {
				outcome = "limit"
			}
			e.metrics.RecordEvaluation(outcome, res.Stats.Duration, res.Stats.Derived, res.Stats.Rounds, 0)
			e.audit.EvalAborted(s.Level, outcome, err.Error())
			logging.Get(logging.CategoryEngine).Error("Evaluation stopped in stratum %d: %v", s.Level, err)
			return res, err
		}
	}
	ev.constraints(plan.Constraints)

	res.Stats.Duration = time.Since(start)
	e.metrics.RecordEvaluation("ok", res.Stats.Duration, res.Stats.Derived, res.Stats.Rounds, len(res.Inconsistencies))
	e.audit.EvalComplete(res.Stats.Derived, res.Stats.Strata, res.Stats.Rounds, res.Stats.Duration)
	logging.Engine("Evaluated %d rules in %d strata: %d facts derived in %d rounds, %d inconsistencies",
		res.Stats.Rules, res.Stats.Strata, res.Stats.Derived, res.Stats.Rounds, len(res.Inconsistencies))
	return res, nil
}

func (e *Engine) stopTimer(t *logging.Timer) {
	if e.config.SlowThreshold > 0 {
		t.StopWithThreshold(e.config.SlowThreshold)
		return
	}
	t.Stop()
}

func (e *Engine) reject(err error, start time.Time) {
	e.metrics.RecordEvaluation("rejected", time.Since(start), 0, 0, 0)
	e.audit.EvalRejected(err.Error())
	logging.Get(logging.CategoryEngine).Warn("Program rejected: %v", err)
}

// evaluation is the state of one Evaluate call.
type evaluation struct {
	engine *Engine
	rules  []Rule
	st     *store.Store
	res    *Result
}

type candidate struct {
	fact     store.Triple
	rule     string
	premises []store.Triple
}

// stratum runs the rules of s to fixpoint.
func (ev *evaluation) stratum(s Stratum) error {
	semiNaive := ev.engine.config.SemiNaive
	log := logging.Get(logging.CategoryEngine).WithContext(map[string]interface{}{"stratum": s.Level})
	var d *delta
	for round := 0; ; round++ {
		ev.res.Stats.Rounds++
		if round == 0 || !semiNaive {
			d = nil
		}
		cands, err := ev.round(s.Rules, d)
		if err != nil {
			return err
		}
		inserted, err := ev.insert(cands)
		log.Debug("Round %d: %d candidates, %d new facts", round, len(cands), len(inserted))
		if err != nil {
			return err
		}
		if len(inserted) == 0 {
			return nil
		}
		d = newDelta(inserted)
	}
}

// round matches every rule against the store (d == nil) or against the
// previous round's delta, without writing. Candidates come back in rule
// order regardless of parallelism.
func (ev *evaluation) round(rules []int, d *delta) ([]candidate, error) {
	perRule := make([][]candidate, len(rules))
	workers := ev.engine.config.Parallelism
	if workers < 2 || len(rules) < 2 {
		for k, idx := range rules {
			perRule[k] = ev.fire(idx, d)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(workers)
		for k, idx := range rules {
			g.Go(func() error {
				perRule[k] = ev.fire(idx, d)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("parallel round failed: %w", err)
		}
	}

	var out []candidate
	for _, cs := range perRule {
		out = append(out, cs...)
	}
	return out, nil
}

// fire returns the head instances of rule idx that are not in the store yet.
func (ev *evaluation) fire(idx int, d *delta) []candidate {
	r := ev.rules[idx]
	label := r.Label(idx)
	head := r.Head.Pattern()
	seen := make(map[store.Triple]struct{})
	var out []candidate

	collect := func(m match) bool {
		t, ok := m.sub.instantiate(head)
		if !ok {
			return true
		}
		if _, dup := seen[t]; dup || ev.st.Contains(t) {
			return true
		}
		seen[t] = struct{}{}
		out = append(out, candidate{fact: t, rule: label, premises: m.premises})
		return true
	}

	if d == nil {
		join(r.Body, plan(r.Body, -1, ev.st, ev.st), ev.st, collect)
		return out
	}
	for i, a := range r.Body {
		if a.Negated || !d.mayMatch(a.Pattern) {
			continue
		}
		join(r.Body, plan(r.Body, i, ev.st, d), ev.st, collect)
	}
	return out
}

// insert writes candidates in order, skipping duplicates, and returns the
// facts that were new.
func (ev *evaluation) insert(cands []candidate) ([]store.Triple, error) {
	limit := ev.engine.config.FactLimit
	var inserted []store.Triple
	for _, c := range cands {
		if ev.st.Contains(c.fact) {
			continue
		}
		if limit > 0 && ev.st.Len() >= limit {
			return inserted, fmt.Errorf("%w: default graph holds %d facts (limit %d)", ErrFactLimitExceeded, ev.st.Len(), limit)
		}
		if !ev.st.Add(c.fact) {
			continue
		}
		inserted = append(inserted, c.fact)
		ev.res.Stats.Derived++
		if ev.res.Derivations != nil {
			ev.res.Derivations[c.fact] = Derivation{Rule: c.rule, Premises: c.premises}
		}
	}
	return inserted, nil
}

// constraints evaluates contradiction rules over the final store.
func (ev *evaluation) constraints(idxs []int) {
	logging.EngineDebug("Checking %d contradiction rules", len(idxs))
	for _, idx := range idxs {
		r := ev.rules[idx]
		label := r.Label(idx)
		join(r.Body, plan(r.Body, -1, ev.st, ev.st), ev.st, func(m match) bool {
			ev.res.Inconsistencies = append(ev.res.Inconsistencies, InconsistencyDetected{Rule: label, Substitution: m.sub})
			ev.engine.audit.Inconsistency(label)
			logging.Get(logging.CategoryEngine).Warn("Contradiction rule %s fired: %s", label, m.sub.Format(ev.st))
			return true
		})
	}
}
