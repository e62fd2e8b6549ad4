// Package main provides the CLI entry point for heapunit, a unit-testing
// engine that reports per-test heap leaks and timings.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/weiihann/heapunit/harness"
	"github.com/weiihann/heapunit/ledger"
	"github.com/weiihann/heapunit/report"
	"github.com/weiihann/heapunit/selftest"
	"github.com/weiihann/heapunit/workload"
)

func main() {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	root := newRootCmd(logger, level)
	if err := root.Execute(); err != nil {
		logger.Error("heapunit failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "heapunit",
		Short: "Unit-testing engine with per-test leak detection",
		Long: `Heapunit runs modules of named units one at a time, detects bytes
left outstanding by each unit, measures elapsed time, and prints an aligned
report per module.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose {
				level.Set(slog.LevelDebug)
			}
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	root.AddCommand(newRunCmd(logger), newListCmd())

	return root
}

type runConfig struct {
	chartPath string
	strict    bool
	workload  workload.Config
}

func newRunCmd(logger *slog.Logger) *cobra.Command {
	var cfg runConfig

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every registered module and print its report",
		Long: `Run the built-in modules and every module registered with
harness.Register, in registration order, printing a progress line and a
report for each. With --strict the command fails when any unit
failed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runModules(cmd.Context(), cmd.OutOrStdout(), logger, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.chartPath, "chart", "",
		"Write an HTML timing chart to this path")
	flags.BoolVar(&cfg.strict, "strict", false,
		"Exit non-zero when any unit fails")
	addWorkloadFlags(cmd, &cfg.workload)

	return cmd
}

func newListCmd() *cobra.Command {
	var wl workload.Config

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered modules and their units",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := newRegistry(ledger.Default, wl)
			if err != nil {
				return err
			}

			return listModules(cmd.OutOrStdout(), reg)
		},
	}

	addWorkloadFlags(cmd, &wl)

	return cmd
}

func addWorkloadFlags(cmd *cobra.Command, wl *workload.Config) {
	flags := cmd.Flags()
	flags.IntVar(&wl.NumAllocs, "allocs", 1000,
		"Number of allocations in the workload module")
	flags.IntVar(&wl.MinSize, "min-size", 1,
		"Minimum workload allocation size in bytes")
	flags.IntVar(&wl.MaxSize, "max-size", 4096,
		"Maximum workload allocation size in bytes")
	flags.StringVar(&wl.Distribution, "distribution", "power-law",
		"Allocation size distribution: power-law, uniform, exponential")
	flags.IntVar(&wl.LeakEvery, "leak-every", 0,
		"Leave every n-th workload allocation unfreed (0 = none)")
	flags.Int64Var(&wl.Seed, "seed", 1,
		"Workload random seed")
}

// newRegistry returns the built-in modules followed by every module
// registered on harness.DefaultRegistry.
func newRegistry(l *ledger.Ledger, wl workload.Config) (*harness.Registry, error) {
	reg := harness.NewRegistry()
	if err := selftest.Register(reg, l, wl); err != nil {
		return nil, fmt.Errorf("register modules: %w", err)
	}

	for _, m := range harness.DefaultRegistry.Modules() {
		if err := reg.Register(m); err != nil {
			return nil, fmt.Errorf("register modules: %w", err)
		}
	}

	return reg, nil
}

func runModules(
	ctx context.Context,
	out io.Writer,
	logger *slog.Logger,
	cfg runConfig,
) error {
	reg, err := newRegistry(ledger.Default, cfg.workload)
	if err != nil {
		return err
	}

	modules := reg.Modules()

	logger.InfoContext(ctx, "running modules",
		slog.Int("modules", len(modules)),
		slog.Int("workload_allocs", cfg.workload.NumAllocs),
		slog.String("distribution", cfg.workload.Distribution),
		slog.Int64("seed", cfg.workload.Seed),
	)

	runner := harness.NewRunner(ledger.Default, logger)
	runner.Progress = out

	reports := make([]*harness.Report, 0, len(modules))
	failed := 0
	lap := harness.NewStopwatch()

	for _, m := range modules {
		r := runner.Run(ctx, m)
		reports = append(reports, r)
		failed += r.Failures()

		if err := report.Generate(out, r); err != nil {
			return fmt.Errorf("generate report for %s: %w", m.Name, err)
		}

		logger.DebugContext(ctx, "module reported",
			slog.String("module", m.Name),
			slog.Duration("wall", lap.ElapsedAndRestart()),
		)
	}

	if cfg.chartPath != "" {
		if err := writeChart(cfg.chartPath, reports); err != nil {
			return err
		}

		logger.InfoContext(ctx, "chart written",
			slog.String("path", cfg.chartPath),
		)
	}

	logger.InfoContext(ctx, "run complete", slog.Int("failed_units", failed))

	if cfg.strict && failed > 0 {
		return fmt.Errorf("%d unit(s) failed", failed)
	}

	return nil
}

func writeChart(path string, reports []*harness.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}

	if err := report.GenerateChart(f, reports); err != nil {
		f.Close()

		return fmt.Errorf("generate chart: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close chart file: %w", err)
	}

	return nil
}

func listModules(out io.Writer, reg *harness.Registry) error {
	for _, m := range reg.Modules() {
		units := m.Units()
		if _, err := fmt.Fprintf(out, "%s (%d units)\n", m.Name, len(units)); err != nil {
			return err
		}

		for _, u := range units {
			marker := ""
			if u.MeasureTime {
				marker = " [timed]"
			}

			if _, err := fmt.Fprintf(out, "  %s%s\n", u.Name, marker); err != nil {
				return err
			}
		}
	}

	return nil
}
