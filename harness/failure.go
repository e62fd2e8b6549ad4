package harness

import (
	"fmt"
	"strconv"
)

// Kind classifies how a unit failed.
type Kind int

const (
	// KindNone is the kind of a nil *Failure.
	KindNone Kind = iota
	// KindAssertion is a boolean check that came out false.
	KindAssertion
	// KindExpectation is an unmet equality, closeness, panic or assert
	// expectation, or a leak.
	KindExpectation
	// KindUnexpected is any other panic escaping a unit.
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindAssertion:
		return "assertion"
	case KindExpectation:
		return "expectation"
	case KindUnexpected:
		return "unexpected"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// UnknownPanicDetail is the detail of a failure built from an
// unrecognized panic value.
const UnknownPanicDetail = "Unknown exception occurred!"

// Failure describes why a unit failed. A nil *Failure means the unit
// succeeded and every method is safe to call on it.
//
// Check primitives raise a *Failure with panic; the runner recovers it at
// the unit boundary.
type Failure struct {
	Kind   Kind
	File   string
	Line   int
	Expr   string
	Detail string
	Leak   bool
	Cause  error
}

// AssertionFailure returns a failed boolean check raised at file:line.
func AssertionFailure(file string, line int, expr, detail string) *Failure {
	return &Failure{
		Kind:   KindAssertion,
		File:   file,
		Line:   line,
		Expr:   expr,
		Detail: detail,
	}
}

// ExpectationFailure returns an unmet expectation raised at file:line.
func ExpectationFailure(file string, line int, expr, detail string) *Failure {
	return &Failure{
		Kind:   KindExpectation,
		File:   file,
		Line:   line,
		Expr:   expr,
		Detail: detail,
	}
}

// UnexpectedFailure returns a failure for a panic nothing recognized.
func UnexpectedFailure(detail string, cause error) *Failure {
	return &Failure{
		Kind:   KindUnexpected,
		Detail: detail,
		Cause:  cause,
	}
}

// LeakFailure returns the expectation failure synthesized for a unit that
// returned with n bytes still outstanding.
func LeakFailure(n int64) *Failure {
	return &Failure{
		Kind:   KindExpectation,
		Detail: fmt.Sprintf("Memory leak: %d byte(s)", n),
		Leak:   true,
	}
}

// KindOf returns f's kind, KindNone for nil.
func (f *Failure) KindOf() Kind {
	if f == nil {
		return KindNone
	}

	return f.Kind
}

// IsLeak reports whether f was synthesized by leak detection.
func (f *Failure) IsLeak() bool {
	return f != nil && f.Leak
}

// Error implements error.
func (f *Failure) Error() string {
	if f == nil {
		return "<nil>"
	}

	if f.Line == 0 && f.Expr == "" {
		return f.Detail
	}

	return fmt.Sprintf("%s:%d: %s: %s", f.File, f.Line, f.Expr, f.Detail)
}

// Unwrap returns the underlying cause of an unexpected failure.
func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}

	return f.Cause
}
