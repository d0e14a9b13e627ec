package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"semkb/internal/datalog"
	"semkb/internal/ingest"
	"semkb/internal/store"
	"semkb/internal/watch"
)

type reasonOptions struct {
	facts   []string
	rules   []string
	watch   bool
	explain bool
	out     string
}

func newReasonCmd() *cobra.Command {
	opts := &reasonOptions{}
	cmd := &cobra.Command{
		Use:   "reason",
		Short: "Materialise rule consequences over the loaded facts",
		Long: `Loads facts and rules, evaluates the rules stratum by stratum until
nothing new can be derived, then reports statistics and every fired
contradiction rule.

Example:
  semkb reason --facts data.nq --rules rdfs.mg --out closure.nq
  semkb reason --facts data.nq --rules rules/ --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReason(cmd, opts)
		},
	}
	cmd.Flags().StringArrayVarP(&opts.facts, "facts", "f", nil, "N-Triples/N-Quads file (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.rules, "rules", "r", nil, "Mangle rule file (repeatable)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Re-run whenever a rule file changes")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Print a proof tree for every derived fact")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the resulting store as N-Quads (- for stdout)")
	return cmd
}

func runReason(cmd *cobra.Command, opts *reasonOptions) error {
	src := rt.sources(opts.facts, opts.rules)
	if err := reasonOnce(cmd, src, opts); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}
	if len(src.rules) == 0 {
		return fmt.Errorf("--watch needs at least one rule file")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := watch.New(src.rules, func(_ context.Context, changed []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "\nRules changed: %v\n", changed)
		err := reasonOnce(cmd, src, opts)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		}
		return err
	}, watch.WithDebounce(rt.cfg.GetWatchDebounce()), watch.WithMetrics(rt.metrics))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	logger.Info("Watching rule files", zap.Strings("dirs", w.WatchedDirs()))
	fmt.Fprintln(cmd.OutOrStdout(), "Watching for rule changes (Ctrl+C to stop)")
	<-ctx.Done()
	return nil
}

// reasonOnce loads a fresh store, evaluates and prints the outcome.
func reasonOnce(cmd *cobra.Command, src sources, opts *reasonOptions) error {
	out := cmd.OutOrStdout()

	kb, err := rt.load(src, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	res, err := rt.evaluate(kb, opts.explain)
	if res == nil {
		return err
	}
	printResult(out, kb.st, res)
	if err != nil {
		return err
	}

	if opts.explain {
		explain(out, kb.st, res)
	}
	if opts.out != "" {
		if err := writeStore(out, opts.out, kb.st); err != nil {
			return err
		}
	}
	return nil
}

func printResult(w io.Writer, st *store.Store, res *datalog.Result) {
	s := res.Stats
	fmt.Fprintf(w, "Evaluated %d rules in %d strata: %d facts derived in %d rounds (%s)\n",
		s.Rules, s.Strata, s.Derived, s.Rounds, s.Duration)
	fmt.Fprintf(w, "Store: %d elements, %d triples\n", st.ElementCount(), st.Len())

	if res.Consistent() {
		fmt.Fprintln(w, "Consistent: no contradiction rule fired")
		return
	}
	fmt.Fprintf(w, "Inconsistencies: %d\n", len(res.Inconsistencies))
	for _, inc := range res.Inconsistencies {
		fmt.Fprintf(w, "  %s %s\n", inc.Rule, inc.Substitution.Format(st))
	}
}

// explain prints the proof tree of every derived fact in a stable order.
func explain(w io.Writer, st *store.Store, res *datalog.Result) {
	facts := make([]store.Triple, 0, len(res.Derivations))
	for t := range res.Derivations {
		facts = append(facts, t)
	}
	slices.SortFunc(facts, func(a, b store.Triple) int {
		return cmp.Compare(st.FormatTriple(a), st.FormatTriple(b))
	})

	fmt.Fprintln(w, "\nDerivations:")
	for _, t := range facts {
		if node := res.Trace(t); node != nil {
			fmt.Fprint(w, node.RenderASCII(st))
		}
	}
}

func writeStore(w io.Writer, path string, st *store.Store) error {
	if path == "-" {
		return ingest.WriteNQuads(w, st)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := ingest.WriteNQuads(f, st); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote %s\n", path)
	return nil
}
