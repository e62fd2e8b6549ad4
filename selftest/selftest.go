// Package selftest holds the built-in demonstration modules run by the
// heapunit command. FirstModule deliberately fails most of its units to
// show every kind of failure in a report.
package selftest

import (
	"runtime"
	"strconv"
	"time"

	"github.com/weiihann/heapunit/check"
	"github.com/weiihann/heapunit/harness"
	"github.com/weiihann/heapunit/ledger"
	"github.com/weiihann/heapunit/workload"
)

var timedSleep = 100 * time.Millisecond

// Register adds every demonstration module to r.
func Register(r *harness.Registry, l *ledger.Ledger, cfg workload.Config) error {
	for _, m := range []*harness.Module{
		FirstModule(l),
		SecondEmptyModule(),
		WorkloadModule(l, cfg),
	} {
		if err := r.Register(m); err != nil {
			return err
		}
	}

	return nil
}

// FirstModule exercises every check primitive, passing and failing, plus
// leak detection and timing.
func FirstModule(l *ledger.Ledger) *harness.Module {
	return harness.NewModule("FirstModule").
		Test("CorrectCode", func() {
			check.True(true)
			check.True(1+1 > 0)

			check.False(false)
			check.False(3 == 4)

			check.Equal(3+12, 15)

			check.Close(1.234567, 1+0.234566)

			check.Panics(func() { panic(123) })

			var vec []int
			idx := 3
			check.PanicsWith[runtime.Error](func() { _ = vec[idx] })

			check.Asserts(func() { check.Assert(1 == 2) })
		}).
		Test("TrueFails", func() {
			check.True(1 < 0)
		}).
		Test("FalseFails", func() {
			check.False(1 != 0)
		}).
		Test("EqualFails", func() {
			check.Equal(12+5, 1+len("a"))
		}).
		Test("CloseFails", func() {
			check.Close(1.1, 1.0+0.01)
		}).
		Test("PanicsFails", func() {
			check.Panics(func() { _ = 1 + 1 })
		}).
		Test("PanicsWithNoPanic", func() {
			check.PanicsWith[runtime.Error](func() { _ = 1 + 1 })
		}).
		Test("PanicsWithWrongType", func() {
			var vec []int
			idx := 0
			check.PanicsWith[*strconv.NumError](func() { _ = vec[idx] })
		}).
		Test("AssertsNothing", func() {
			check.Asserts(func() { _ = 1 + 1 })
		}).
		Test("AssertsHolds", func() {
			check.Asserts(func() { check.Assert(1 == 1) })
		}).
		Test("RandomPanic", func() {
			panic(123)
		}).
		Test("MemoryLeak", func() {
			_ = l.Alloc(10)
		}).
		Test("NoMemoryLeak", func() {
			a := l.Alloc(1)
			a.Free()

			arr := l.Alloc(13 * 4)
			arr.Free()
		}).
		Timed("Time", func() {
			time.Sleep(timedSleep)
		}).
		Timed("TimeWithFailure", func() {
			time.Sleep(timedSleep)
			check.True(false)
		}).
		Timed("TimeWithLeak", func() {
			time.Sleep(timedSleep)
			_ = l.Alloc(1)
		})
}

// SecondEmptyModule has no units.
func SecondEmptyModule() *harness.Module {
	return harness.NewModule("SecondEmptyModule")
}

// WorkloadModule replays a generated workload. Replay leaks whatever cfg
// leaks; ReplayBalanced replays the same sizes with every block freed.
func WorkloadModule(l *ledger.Ledger, cfg workload.Config) *harness.Module {
	script, _ := workload.NewGenerator(cfg).Generate()

	balancedCfg := cfg
	balancedCfg.LeakEvery = 0
	balanced, _ := workload.NewGenerator(balancedCfg).Generate()

	return harness.NewModule("WorkloadModule").
		Timed("Replay", func() {
			err := workload.Replay(l, script)
			check.Equal(err, nil)
		}).
		Timed("ReplayBalanced", func() {
			err := workload.Replay(l, balanced)
			check.Equal(err, nil)
		})
}
