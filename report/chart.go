package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/weiihann/heapunit/harness"
)

const failedColor = "#ef4444"

// GenerateChart writes an HTML page with one bar chart per non-empty
// module showing the elapsed milliseconds of each unit. Failed units are
// drawn in red.
func GenerateChart(w io.Writer, reports []*harness.Report) error {
	if len(reports) == 0 {
		return fmt.Errorf("no reports to chart")
	}

	page := components.NewPage().SetPageTitle("heapunit timings")

	for _, r := range reports {
		if r.Total() == 0 {
			continue
		}

		page.AddCharts(newTimingChart(r))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}

func newTimingChart(r *harness.Report) *charts.Bar {
	names := make([]string, 0, r.Total())
	items := make([]opts.BarData, 0, r.Total())

	for _, o := range r.Outcomes {
		names = append(names, o.Name)

		item := opts.BarData{
			Name:  o.Name,
			Value: float64(o.Elapsed.Nanoseconds()) / 1e6,
		}
		if !o.Succeeded() {
			item.ItemStyle = &opts.ItemStyle{Color: failedColor}
		}

		items = append(items, item)
	}

	subtitle := fmt.Sprintf("(%d/%d) passed, %d bytes leaked",
		r.Successes(), r.Total(), r.LeakedBytes())

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: r.Module, Subtitle: subtitle}),
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: r.Module,
			Width:     "1200px",
			Height:    "500px",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	bar.SetXAxis(names).AddSeries("elapsed", items)

	return bar
}
