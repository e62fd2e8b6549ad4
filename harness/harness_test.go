package harness_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiihann/heapunit/check"
	"github.com/weiihann/heapunit/harness"
	"github.com/weiihann/heapunit/ledger"
)

func newTestRunner() (*harness.Runner, *ledger.Ledger) {
	l := ledger.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return harness.NewRunner(l, logger), l
}

func TestRunLeakAndBalanced(t *testing.T) {
	runner, l := newTestRunner()

	m := harness.NewModule("Example").
		Test("Ok", func() {
			b := l.Alloc(4)
			b.Free()
		}).
		Test("Leaky", func() {
			_ = l.Alloc(10)
		})

	report := runner.Run(context.Background(), m)

	require.Equal(t, 2, report.Total())
	assert.Equal(t, 1, report.Successes())

	ok := report.Outcomes[0]
	assert.True(t, ok.Succeeded())
	assert.Zero(t, ok.LeakedBytes)
	assert.False(t, ok.Printable())

	leaky := report.Outcomes[1]
	require.False(t, leaky.Succeeded())
	assert.Equal(t, harness.KindExpectation, leaky.Failure.Kind)
	assert.True(t, leaky.Failure.IsLeak())
	assert.Equal(t, int64(10), leaky.LeakedBytes)
	assert.Equal(t, "Memory leak: 10 byte(s)", leaky.Failure.Detail)
	assert.Equal(t, int64(10), report.LeakedBytes())
}

func TestRunAssertionBeatsLeak(t *testing.T) {
	runner, l := newTestRunner()

	m := harness.NewModule("M").Test("Assert", func() {
		_ = l.Alloc(100)
		check.True(1 < 0)
	})

	report := runner.Run(context.Background(), m)
	out := report.Outcomes[0]

	require.NotNil(t, out.Failure)
	assert.Equal(t, harness.KindAssertion, out.Failure.Kind)
	assert.Equal(t, "1 < 0", out.Failure.Expr)
	assert.False(t, out.Failure.IsLeak())
	assert.Zero(t, out.LeakedBytes)
	assert.Zero(t, report.LeakedBytes())
}

func TestRunUnknownPanic(t *testing.T) {
	runner, _ := newTestRunner()

	m := harness.NewModule("M").
		Test("Value", func() { panic(123) }).
		Test("Nil body", harness.Unit{}.Body)

	report := runner.Run(context.Background(), m)

	for _, out := range report.Outcomes {
		require.NotNil(t, out.Failure, out.Name)
		assert.Equal(t, harness.KindUnexpected, out.Failure.Kind)
		assert.Equal(t, harness.UnknownPanicDetail, out.Failure.Detail)
		assert.Error(t, out.Failure.Cause)
		assert.Equal(t, "FAILED Line 0: ", out.Description())
	}

	assert.Contains(t, report.Outcomes[0].Failure.Cause.Error(), "123")
}

func TestRunGoexit(t *testing.T) {
	runner, _ := newTestRunner()

	m := harness.NewModule("M").
		Test("Exit", func() { runtime.Goexit() }).
		Test("After", func() {})

	report := runner.Run(context.Background(), m)

	require.Equal(t, 2, report.Total())
	assert.Equal(t, harness.GoexitDetail, report.Outcomes[0].Failure.Detail)
	assert.True(t, report.Outcomes[1].Succeeded())
}

func TestRunDoesNotStopOnFailure(t *testing.T) {
	runner, _ := newTestRunner()

	var ran []string
	m := harness.NewModule("M")
	for _, name := range []string{"a", "b", "c", "d"} {
		name := name
		m.Test(name, func() {
			ran = append(ran, name)
			if name == "b" || name == "c" {
				check.Equal(len(name), 0)
			}
		})
	}

	report := runner.Run(context.Background(), m)

	assert.Equal(t, []string{"a", "b", "c", "d"}, ran)
	assert.Equal(t, 2, report.Successes())
	assert.Equal(t, report.Total(), report.Successes()+report.Failures())
}

func TestRunIsIdempotent(t *testing.T) {
	runner, l := newTestRunner()

	m := harness.NewModule("M").
		Test("Leak", func() { _ = l.Alloc(3) }).
		Test("Check", func() { check.False(true) }).
		Test("Ok", func() { l.Alloc(8).Free() })

	first := runner.Run(context.Background(), m)
	second := runner.Run(context.Background(), m)

	require.Equal(t, first.Total(), second.Total())
	for i := range first.Outcomes {
		a, b := first.Outcomes[i], second.Outcomes[i]
		assert.Equal(t, a.Failure.KindOf(), b.Failure.KindOf(), a.Name)
		assert.Equal(t, a.LeakedBytes, b.LeakedBytes, a.Name)
	}
}

func TestRunTimedUnits(t *testing.T) {
	runner, l := newTestRunner()

	body := func() { time.Sleep(5 * time.Millisecond) }

	m := harness.NewModule("M").
		Timed("Timed", body).
		Test("Silent", body).
		Timed("TimedLeak", func() {
			body()
			_ = l.Alloc(1)
		})

	report := runner.Run(context.Background(), m)

	timed, silent, leak := report.Outcomes[0], report.Outcomes[1], report.Outcomes[2]

	assert.True(t, timed.Printable())
	assert.GreaterOrEqual(t, timed.Elapsed, 5*time.Millisecond)
	assert.True(t, strings.HasSuffix(timed.Extra(), "ms elapsed"))

	assert.True(t, silent.Succeeded())
	assert.False(t, silent.Printable())

	// A leak fails a timed unit; its elapsed time is still kept.
	assert.True(t, leak.Failure.IsLeak())
	assert.True(t, leak.Printable())
	assert.GreaterOrEqual(t, leak.Elapsed, 5*time.Millisecond)

	var sum time.Duration
	for _, o := range report.Outcomes {
		sum += o.Elapsed
	}
	assert.Equal(t, sum, report.Elapsed())
}

func TestRunNegativeReadingIsNotALeak(t *testing.T) {
	runner, l := newTestRunner()

	early := l.Alloc(64)

	m := harness.NewModule("M").Test("FreeEarlier", func() { early.Free() })
	report := runner.Run(context.Background(), m)

	assert.True(t, report.Outcomes[0].Succeeded())
	assert.Equal(t, int64(-64), l.CurrentBytes())
}

func TestRunDoubleFreeIsUnexpected(t *testing.T) {
	runner, l := newTestRunner()

	m := harness.NewModule("M").Test("DoubleFree", func() {
		b := l.Alloc(2)
		b.Free()
		b.Free()
	})

	report := runner.Run(context.Background(), m)

	assert.Equal(t, harness.KindUnexpected, report.Outcomes[0].Failure.KindOf())
}

// The ledger has no notion of which unit allocated: work a unit leaves
// running is charged to whichever unit is running when it allocates.
func TestRunLateAllocationChargesCurrentUnit(t *testing.T) {
	runner, l := newTestRunner()

	release := make(chan struct{})
	allocated := make(chan struct{})

	m := harness.NewModule("M").
		Test("Spawner", func() {
			go func() {
				<-release
				_ = l.Alloc(5)
				close(allocated)
			}()
		}).
		Test("Bystander", func() {
			close(release)
			<-allocated
		})

	report := runner.Run(context.Background(), m)

	assert.True(t, report.Outcomes[0].Succeeded())
	assert.True(t, report.Outcomes[1].Failure.IsLeak())
	assert.Equal(t, int64(5), report.Outcomes[1].LeakedBytes)
}

func TestRunProgress(t *testing.T) {
	runner, _ := newTestRunner()

	var progress bytes.Buffer
	runner.Progress = &progress

	m := harness.NewModule("FirstModule").
		Test("a", func() {}).
		Test("b", func() { check.True(false) }).
		Test("c", func() {})

	runner.Run(context.Background(), m)

	assert.Equal(t, "FirstModule: TFT\n", progress.String())
}

func TestRunAllUsesSeparateReports(t *testing.T) {
	runner, _ := newTestRunner()

	reports := runner.RunAll(context.Background(), []*harness.Module{
		harness.NewModule("A").Test("x", func() {}),
		harness.NewModule("Empty"),
	})

	require.Len(t, reports, 2)
	assert.Equal(t, "A", reports[0].Module)
	assert.Equal(t, 1, reports[0].Total())
	assert.Equal(t, "Empty", reports[1].Module)
	assert.Zero(t, reports[1].Total())
}

func TestIndependentRunnersDoNotShareLedgers(t *testing.T) {
	runnerA, la := newTestRunner()
	runnerB, _ := newTestRunner()

	leak := harness.NewModule("A").Test("Leak", func() { _ = la.Alloc(9) })
	clean := harness.NewModule("B").Test("Clean", func() {})

	done := make(chan *harness.Report)
	go func() { done <- runnerA.Run(context.Background(), leak) }()
	b := runnerB.Run(context.Background(), clean)
	a := <-done

	assert.Equal(t, int64(9), a.LeakedBytes())
	assert.True(t, b.Passed())
}

func TestRunLogsLedgerStatsOnFailure(t *testing.T) {
	var logs bytes.Buffer

	l := ledger.New()
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	runner := harness.NewRunner(l, logger)

	m := harness.NewModule("Stats").Test("PartialFree", func() {
		a := l.Alloc(3)
		_ = l.Alloc(4)
		a.Free()
	})

	report := runner.Run(context.Background(), m)
	require.True(t, report.Outcomes[0].Failure.IsLeak())

	line := ""
	for _, entry := range strings.Split(logs.String(), "\n") {
		if strings.Contains(entry, `msg="unit failed"`) {
			line = entry
		}
	}

	require.NotEmpty(t, line, logs.String())
	assert.Contains(t, line, "unit=PartialFree")
	assert.Contains(t, line, "allocs=2")
	assert.Contains(t, line, "frees=1")
}
