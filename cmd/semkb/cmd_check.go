package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"semkb/internal/datalog"
	"semkb/internal/store"
)

// =============================================================================
// CHECK COMMAND - rule safety and stratification without evaluating
// =============================================================================

func newCheckCmd() *cobra.Command {
	var rules []string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check rule safety and print the stratification",
		Long: `Loads rule files without any facts, rejects unsafe rules and
unstratifiable negation, and prints the strata the engine would run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, rules)
		},
	}
	cmd.Flags().StringArrayVarP(&rules, "rules", "r", nil, "Mangle rule file (repeatable)")
	return cmd
}

func runCheck(cmd *cobra.Command, rulePaths []string) error {
	out := cmd.OutOrStdout()

	kb, err := rt.load(sources{rules: rt.sources(nil, rulePaths).rules}, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if len(kb.rules) == 0 {
		return fmt.Errorf("no rules loaded")
	}

	if err := datalog.CheckSafety(kb.rules); err != nil {
		fmt.Fprintln(out, "FAIL: unsafe rules")
		return err
	}
	plan, err := datalog.Stratify(kb.rules, kb.st)
	if err != nil {
		fmt.Fprintln(out, "FAIL: negation through recursion")
		return err
	}

	printPlan(cmd, kb.st, kb.rules, plan)
	fmt.Fprintf(out, "OK: %d rules in %d strata, %d contradiction rules\n",
		len(kb.rules), len(plan.Strata), len(plan.Constraints))
	return nil
}

func printPlan(cmd *cobra.Command, st *store.Store, rules []datalog.Rule, plan *datalog.Stratification) {
	out := cmd.OutOrStdout()
	for _, s := range plan.Strata {
		fmt.Fprintf(out, "Stratum %d: %s\n", s.Level, labels(rules, s.Rules))
		if verbose {
			for _, i := range s.Rules {
				fmt.Fprintf(out, "  %s\n", ruleText(st, rules[i]))
			}
		}
	}
	if len(plan.Constraints) > 0 {
		fmt.Fprintf(out, "Constraints: %s\n", labels(rules, plan.Constraints))
	}
}

func labels(rules []datalog.Rule, idxs []int) string {
	names := make([]string, len(idxs))
	for i, idx := range idxs {
		names[i] = rules[idx].Label(idx)
	}
	return strings.Join(names, ", ")
}

func ruleText(st *store.Store, r datalog.Rule) string {
	var sb strings.Builder
	if r.Head.IsContradiction() {
		sb.WriteString("false")
	} else {
		sb.WriteString(r.Head.Pattern().Format(st))
	}
	sb.WriteString(" :- ")
	for i, a := range r.Body {
		if i > 0 {
			sb.WriteString(", ")
		}
		if a.Negated {
			sb.WriteString("!")
		}
		sb.WriteString(a.Pattern.Format(st))
	}
	return sb.String()
}
