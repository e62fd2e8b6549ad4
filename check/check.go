// Package check provides the primitives unit bodies use to signal failure.
//
// Each primitive panics with a *harness.Failure carrying the caller's line
// and the literal source text of its arguments; the harness runner
// recovers it at the unit boundary.
//
//	m.Test("Sum", func() {
//		check.Equal(3+12, 15)
//		check.Close(1.234567, 1+0.234566)
//		check.PanicsWith[runtime.Error](func() { _ = s[3] })
//	})
package check

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/weiihann/heapunit/harness"
)

// Tolerance is the relative tolerance used by Close.
const Tolerance = 1e-5

// True fails with an assertion failure when cond is false.
func True(cond bool) {
	if cond {
		return
	}

	s := callSite("True", 0)
	panic(harness.AssertionFailure(s.file, s.line, s.arg(0),
		"Expected True but was False"))
}

// False fails with an assertion failure when cond is true.
func False(cond bool) {
	if !cond {
		return
	}

	s := callSite("False", 0)
	panic(harness.AssertionFailure(s.file, s.line, s.arg(0),
		"Expected False but was True"))
}

// Equal fails when a != b. Interface values holding types that == cannot
// compare, such as slices, are compared with reflect.DeepEqual.
func Equal[T comparable](a, b T) {
	if equal(a, b) {
		return
	}

	s := callSite("Equal", 0)
	panic(harness.ExpectationFailure(s.file, s.line,
		s.arg(0)+" == "+s.arg(1),
		fmt.Sprintf("%v != %v", a, b)))
}

func equal[T comparable](a, b T) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = reflect.DeepEqual(a, b)
		}
	}()

	return a == b
}

// Close fails when a and b differ by more than Tolerance relative to the
// larger magnitude.
func Close(a, b float64) {
	if !(math.Abs(a-b) > math.Max(math.Abs(a), math.Abs(b))*Tolerance) {
		return
	}

	s := callSite("Close", 0)
	panic(harness.ExpectationFailure(s.file, s.line,
		s.arg(0)+" ~= "+s.arg(1),
		fmt.Sprintf("%f != %f", a, b)))
}

// Panics fails unless fn panics. A failure raised inside fn is passed
// through unchanged.
func Panics(fn func()) {
	v, panicked := capture(fn)
	if !panicked {
		s := callSite("Panics", 0)
		panic(harness.ExpectationFailure(s.file, s.line, s.arg(0),
			"There were no exceptions"))
	}

	if f, ok := v.(*harness.Failure); ok {
		panic(f)
	}
}

// PanicsWith fails unless fn panics with a value of type E. Error values
// match when E appears anywhere in their chain.
func PanicsWith[E any](fn func()) {
	v, panicked := capture(fn)
	if f, ok := v.(*harness.Failure); ok {
		panic(f)
	}

	if panicked && matches[E](v) {
		return
	}

	s := callSite("PanicsWith", 0)

	detail := "There were no exceptions"
	if panicked {
		detail = "There were no exceptions of type " + reflect.TypeOf((*E)(nil)).Elem().String()
	}

	panic(harness.ExpectationFailure(s.file, s.line, s.arg(0), detail))
}

// AssertSignal is the panic value raised by Assert.
type AssertSignal struct{}

// Assert is a guard for production code: it panics with AssertSignal when
// cond is false. Asserts checks that it fires.
func Assert(cond bool) {
	if !cond {
		panic(AssertSignal{})
	}
}

// Asserts fails unless fn trips an Assert. Any other panic is passed
// through.
func Asserts(fn func()) {
	v, panicked := capture(fn)
	if !panicked {
		s := callSite("Asserts", 0)
		panic(harness.ExpectationFailure(s.file, s.line, s.arg(0),
			"There were no asserts"))
	}

	if _, ok := v.(AssertSignal); ok {
		return
	}

	panic(v)
}

func capture(fn func()) (v any, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			v, panicked = r, true
		}
	}()

	fn()

	return nil, false
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func matches[E any](v any) bool {
	if _, ok := v.(E); ok {
		return true
	}

	err, ok := v.(error)
	if !ok {
		return false
	}

	t := reflect.TypeOf((*E)(nil)).Elem()
	if t.Kind() != reflect.Interface && !t.Implements(errorType) {
		return false
	}

	var target E

	return errors.As(err, &target)
}
