package report

import (
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/catchment/internal/catchment"
)

const none = "None"

// WriteText prints a summary block per result, separated by blank lines.
func WriteText(w io.Writer, results ...*catchment.SelectionResult) error {
	p := message.NewPrinter(language.English)
	for i, res := range results {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return eris.Wrap(err, "report: write text")
			}
		}
		if err := writeSummary(w, p, res); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(out io.Writer, p *message.Printer, res *catchment.SelectionResult) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	line := func(label, value string) {
		_, _ = p.Fprintf(tw, "%s:\t%s\n", label, value)
	}
	d := res.Demographics

	header := "Catchment (" + string(res.Role) + ")"
	if res.Stale {
		header += " [stale]"
	}
	_, _ = p.Fprintf(tw, "%s\t%s\n", header, res.ID)
	if res.Center != nil {
		line("Center", p.Sprintf("%.5f, %.5f", res.Center.Lng, res.Center.Lat))
	}
	line("Target", targetLine(p, res))
	line("Block Groups", p.Sprintf("%d of %d candidates", len(res.Units), res.Candidates))
	line("Selected Households", count(p, res.TotalHouseholds))
	line("Total Population", count(p, d.TotalPop))
	line("Living Alone", count(p, d.TotalAlone))
	line("Median Age", decimal(p, d.AvgMedianAge, "%.1f"))
	line("Population Density", decimal(p, d.AvgPopDensity, "%.1f per sq mi"))
	line("Median Income", optional(p, d.AvgMedianIncome, "$%.0f"))
	line("Bachelor's or Higher", optional(p, d.AvgEduPct, "%.1f%%"))
	line("Area", decimal(p, d.TotalAreaSqMi, "%.2f sq mi"))

	return eris.Wrap(tw.Flush(), "report: write text")
}

func targetLine(p *message.Printer, res *catchment.SelectionResult) string {
	status := "not met"
	if res.TargetMet {
		status = "met"
	}
	return p.Sprintf("%d households (%s)", res.Target, status)
}

func count(p *message.Printer, n int64) string {
	if n <= 0 {
		return none
	}
	return p.Sprintf("%d", n)
}

func decimal(p *message.Printer, v float64, format string) string {
	if v <= 0 {
		return none
	}
	return p.Sprintf(format, v)
}

// optional prints None only for a missing value; a zero average is data.
func optional(p *message.Printer, v *float64, format string) string {
	if v == nil {
		return none
	}
	return p.Sprintf(format, *v)
}
