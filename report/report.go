// Package report formats module outcomes into aligned text reports.
package report

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/weiihann/heapunit/harness"
)

const (
	separator = "================================================="
	arrow     = " <-- "
)

// Generate writes the text report for r to w.
func Generate(w io.Writer, r *harness.Report) error {
	if r == nil {
		return fmt.Errorf("no report to render")
	}

	_, err := io.WriteString(w, Render(r))

	return err
}

// Render returns the text report for r: a summary header, then one line
// per failed unit and per successful timed unit, bracketed by separators.
func Render(r *harness.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "( %d / %d ) in %ss with %d bytes leaked\n",
		r.Successes(),
		r.Total(),
		harness.FormatFloat(float64(r.Elapsed().Nanoseconds())/1e9),
		r.LeakedBytes(),
	)

	nameWidth, descWidth := widths(r.Outcomes)

	b.WriteString(separator + "\n")

	for _, o := range r.Outcomes {
		if !o.Printable() {
			continue
		}

		b.WriteString(formatLine(o, nameWidth, descWidth))
		b.WriteString("\n")
	}

	b.WriteString(separator + "\n\n")

	return b.String()
}

// widths returns the widest name and description among printable
// outcomes.
func widths(outcomes []harness.Outcome) (int, int) {
	var nameWidth, descWidth int

	for _, o := range outcomes {
		if !o.Printable() {
			continue
		}

		nameWidth = max(nameWidth, utf8.RuneCountInString(o.Name))
		descWidth = max(descWidth, utf8.RuneCountInString(o.Description()))
	}

	return nameWidth, descWidth
}

func formatLine(o harness.Outcome, nameWidth, descWidth int) string {
	return pad(o.Name, nameWidth+1) + pad(o.Description(), descWidth) +
		arrow + o.Extra()
}

func pad(s string, width int) string {
	n := width - utf8.RuneCountInString(s)
	if n <= 0 {
		return s
	}

	return s + strings.Repeat(" ", n)
}
