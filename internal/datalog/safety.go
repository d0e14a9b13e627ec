package datalog

import "go.uber.org/multierr"

// CheckSafety verifies that every head variable and every variable of a
// negated atom occurs in some positive body atom. All violations are
// returned, combined with multierr; each is an *UnsafeRuleError.
func CheckSafety(rules []Rule) error {
	var errs error
	for i, r := range rules {
		errs = multierr.Append(errs, checkRule(r, i))
	}
	return errs
}

func checkRule(r Rule, index int) error {
	bound := make(map[Variable]struct{})
	for _, a := range r.Body {
		if a.Negated {
			continue
		}
		for _, v := range a.Pattern.Variables() {
			bound[v] = struct{}{}
		}
	}

	var errs error
	seen := make(map[Variable]struct{})
	check := func(vs []Variable) {
		for _, v := range vs {
			if _, ok := bound[v]; ok {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			errs = multierr.Append(errs, &UnsafeRuleError{Rule: r.Label(index), Variable: v})
		}
	}
	if !r.Head.IsContradiction() {
		check(r.Head.Pattern().Variables())
	}
	for _, a := range r.Body {
		if a.Negated {
			check(a.Pattern.Variables())
		}
	}
	return errs
}
