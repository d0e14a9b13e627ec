package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"semkb/internal/datalog"
)

type queryOptions struct {
	facts []string
	rules []string
	atoms []string
}

func newQueryCmd() *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Evaluate rules, then answer a conjunctive query",
		Long: `Materialises the rules over the facts and prints every binding that
satisfies all query atoms at once. Atoms use the rule syntax; names
such as /ex/alice are constants, capitalised names are variables.

Example:
  semkb query --facts family.nq --rules family.mg --atom 'ancestor(/ex/alice, X)'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts)
		},
	}
	cmd.Flags().StringArrayVarP(&opts.facts, "facts", "f", nil, "N-Triples/N-Quads file (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.rules, "rules", "r", nil, "Mangle rule file (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.atoms, "atom", "a", nil, "Query atom (repeatable, conjunctive)")
	_ = cmd.MarkFlagRequired("atom")
	return cmd
}

func runQuery(cmd *cobra.Command, opts *queryOptions) error {
	out := cmd.OutOrStdout()

	kb, err := rt.load(rt.sources(opts.facts, opts.rules), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	patterns := make([]datalog.TriplePattern, 0, len(opts.atoms))
	for _, a := range opts.atoms {
		p, err := kb.loader.Atom(a)
		if err != nil {
			return err
		}
		patterns = append(patterns, p)
	}

	res, err := rt.evaluate(kb, false)
	if err != nil {
		return err
	}
	if !res.Consistent() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d contradiction rules fired\n", len(res.Inconsistencies))
	}

	var rows []string
	for sub := range datalog.Match(kb.st, patterns) {
		rows = append(rows, sub.Format(kb.st))
	}
	slices.Sort(rows)
	rows = slices.Compact(rows)

	for _, row := range rows {
		fmt.Fprintln(out, row)
	}
	fmt.Fprintf(out, "%d results\n", len(rows))
	return nil
}
