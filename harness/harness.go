package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/weiihann/heapunit/ledger"
)

// GoexitDetail is the detail of a failure for a unit whose goroutine
// exited through runtime.Goexit instead of returning.
const GoexitDetail = "Unit exited without returning"

// Runner executes the units of a module one at a time, bracketing each
// with a ledger reset and a stopwatch restart.
//
// Units run strictly sequentially. A Runner must not be shared between
// goroutines, and modules run concurrently must each get a Runner with
// its own Ledger.
type Runner struct {
	Ledger    *ledger.Ledger
	Stopwatch *Stopwatch
	Logger    *slog.Logger

	// Progress, when set, receives "<module>: " followed by one T or F
	// per unit and a final newline.
	Progress io.Writer
}

// NewRunner creates a Runner that attributes allocations through l.
func NewRunner(l *ledger.Ledger, logger *slog.Logger) *Runner {
	return &Runner{
		Ledger:    l,
		Stopwatch: NewStopwatch(),
		Logger:    logger,
	}
}

// Run executes every unit of m in declaration order and returns one
// Outcome per unit. A failing unit never stops the run.
func (r *Runner) Run(ctx context.Context, m *Module) *Report {
	logger := r.Logger.With(slog.String("module", m.Name))
	units := m.Units()

	report := &Report{
		Module:   m.Name,
		Outcomes: make([]Outcome, 0, len(units)),
	}

	logger.DebugContext(ctx, "starting module", slog.Int("units", len(units)))

	if r.Progress != nil {
		fmt.Fprintf(r.Progress, "%s: ", m.Name)
	}

	for _, u := range units {
		outcome := r.runUnit(ctx, logger, u)
		report.Outcomes = append(report.Outcomes, outcome)

		if r.Progress != nil {
			if outcome.Succeeded() {
				fmt.Fprint(r.Progress, "T")
			} else {
				fmt.Fprint(r.Progress, "F")
			}
		}
	}

	if r.Progress != nil {
		fmt.Fprintln(r.Progress)
	}

	logger.InfoContext(ctx, "module finished",
		slog.Int("passed", report.Successes()),
		slog.Int("total", report.Total()),
		slog.Duration("elapsed", report.Elapsed()),
		slog.Int64("leaked_bytes", report.LeakedBytes()),
	)

	return report
}

// RunAll runs modules one after another.
func (r *Runner) RunAll(ctx context.Context, modules []*Module) []*Report {
	reports := make([]*Report, 0, len(modules))
	for _, m := range modules {
		reports = append(reports, r.Run(ctx, m))
	}

	return reports
}

func (r *Runner) runUnit(
	ctx context.Context,
	logger *slog.Logger,
	u Unit,
) Outcome {
	outcome := Outcome{
		Name:        u.Name,
		MeasureTime: u.MeasureTime,
	}

	r.Ledger.Reset()
	r.Stopwatch.Restart()

	outcome.Failure = invoke(u.Body)
	outcome.Elapsed = time.Duration(r.Stopwatch.ElapsedNanoseconds())

	// Leak detection only applies to units that otherwise succeeded.
	if outcome.Failure == nil {
		if leaked := r.Ledger.CurrentBytes(); leaked > 0 {
			outcome.Failure = LeakFailure(leaked)
			outcome.LeakedBytes = leaked
		}
	}

	if outcome.Failure != nil {
		stats := r.Ledger.Stats()
		attrs := []any{
			slog.String("unit", u.Name),
			slog.String("kind", outcome.Failure.Kind.String()),
			slog.String("detail", outcome.Failure.Detail),
			slog.Uint64("allocs", stats.Allocs),
			slog.Uint64("frees", stats.Frees),
		}
		if outcome.Failure.Cause != nil {
			attrs = append(attrs,
				slog.String("cause", fmt.Sprintf("%+v", outcome.Failure.Cause)),
			)
		}

		logger.DebugContext(ctx, "unit failed", attrs...)
	}

	return outcome
}

// invoke calls body on its own goroutine and waits for it, so that a
// runtime.Goexit inside body ends only that goroutine.
func invoke(body func()) (failure *Failure) {
	done := make(chan struct{})

	go func() {
		returned := false

		defer close(done)
		defer func() {
			if v := recover(); v != nil {
				failure = classify(v)

				return
			}

			if !returned {
				failure = UnexpectedFailure(GoexitDetail, nil)
			}
		}()

		body()
		returned = true
	}()

	<-done

	return failure
}

func classify(v any) *Failure {
	switch p := v.(type) {
	case *Failure:
		if p != nil {
			return p
		}
	case error:
		return UnexpectedFailure(UnknownPanicDetail,
			errors.Wrap(p, "unit panicked"))
	}

	return UnexpectedFailure(UnknownPanicDetail,
		errors.Errorf("unit panicked: %v", v))
}
