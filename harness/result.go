// Package harness runs modules of named units in isolation and records
// one Outcome per unit.
package harness

import (
	"fmt"
	"strconv"
	"time"
)

// Outcome is the recorded result of running one unit.
type Outcome struct {
	Name        string
	Failure     *Failure
	Elapsed     time.Duration
	LeakedBytes int64
	MeasureTime bool
}

// Succeeded reports whether the unit ended without a failure.
func (o Outcome) Succeeded() bool {
	return o.Failure == nil
}

// Printable reports whether the outcome belongs in a rendered report:
// every failure, and successes of time-measuring units.
func (o Outcome) Printable() bool {
	return !o.Succeeded() || o.MeasureTime
}

// Description is the status column of a report line.
func (o Outcome) Description() string {
	if o.Succeeded() {
		return "PASSED "
	}

	return fmt.Sprintf("FAILED Line %d: %s", o.Failure.Line, o.Failure.Expr)
}

// Extra is the trailing column of a report line: elapsed milliseconds on
// success, the failure detail otherwise.
func (o Outcome) Extra() string {
	if o.Succeeded() {
		return FormatFloat(float64(o.Elapsed.Nanoseconds())/1e6) + "ms elapsed"
	}

	return o.Failure.Detail
}

// Report is the ordered list of outcomes of one module run. Aggregates
// are always recomputed from Outcomes.
type Report struct {
	Module   string
	Outcomes []Outcome
}

// Total returns the number of units run.
func (r *Report) Total() int {
	return len(r.Outcomes)
}

// Successes returns the number of units that succeeded.
func (r *Report) Successes() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			n++
		}
	}

	return n
}

// Failures returns the number of units that failed.
func (r *Report) Failures() int {
	return r.Total() - r.Successes()
}

// Passed reports whether every unit succeeded.
func (r *Report) Passed() bool {
	return r.Failures() == 0
}

// Elapsed returns the summed elapsed time of all units.
func (r *Report) Elapsed() time.Duration {
	var total time.Duration
	for _, o := range r.Outcomes {
		total += o.Elapsed
	}

	return total
}

// LeakedBytes returns the bytes leaked by units that failed on a leak.
func (r *Report) LeakedBytes() int64 {
	var total int64
	for _, o := range r.Outcomes {
		if o.Failure.IsLeak() {
			total += o.LeakedBytes
		}
	}

	return total
}

// FormatFloat renders v with six significant digits, dropping trailing
// zeros.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
