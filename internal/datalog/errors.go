package datalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsafeRule is wrapped by every *UnsafeRuleError.
	ErrUnsafeRule = errors.New("unsafe rule")
	// ErrUnstratifiable is wrapped by *UnstratifiableProgramError.
	ErrUnstratifiable = errors.New("program is not stratifiable")
	// ErrFactLimitExceeded stops a pass that would grow the default graph past
	// Config.FactLimit.
	ErrFactLimitExceeded = errors.New("fact limit exceeded")
)

// UnsafeRuleError names a rule and a variable that is not bound by any
// positive body atom.
type UnsafeRuleError struct {
	Rule     string
	Variable Variable
}

func (e *UnsafeRuleError) Error() string {
	return fmt.Sprintf("unsafe rule %s: variable %s does not occur in a positive body atom", e.Rule, e.Variable)
}

func (e *UnsafeRuleError) Unwrap() error { return ErrUnsafeRule }

// UnstratifiableProgramError reports a dependency cycle through negation.
// Cycle lists the rule labels of the offending component.
type UnstratifiableProgramError struct {
	Cycle []string
}

func (e *UnstratifiableProgramError) Error() string {
	return fmt.Sprintf("program is not stratifiable: negative dependency inside cycle of rules [%s]",
		strings.Join(e.Cycle, ", "))
}

func (e *UnstratifiableProgramError) Unwrap() error { return ErrUnstratifiable }

// InconsistencyDetected is one satisfied contradiction rule. It is reported
// in Result, not returned as an error.
type InconsistencyDetected struct {
	Rule         string
	Substitution Substitution
}

func (i InconsistencyDetected) String() string {
	return fmt.Sprintf("inconsistency: rule %s fired with %d bindings", i.Rule, len(i.Substitution))
}
