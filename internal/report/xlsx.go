package report

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/catchment/internal/catchment"
)

// Workbook sheet names.
const (
	SheetSummary     = "Summary"
	SheetBlockGroups = "Block Groups"
)

var summaryHeader = []string{
	"Role", "ID", "Center Lng", "Center Lat", "Target", "Target Met",
	"Candidates", "Block Groups", "Households", "Population", "Living Alone",
	"Median Age", "Pop Density (sq mi)", "Median Income", "Bachelor's or Higher (%)",
	"Area (sq mi)",
}

var blockGroupHeader = []string{
	"Role", "GEOID", "Distance", "Households", "Population", "Living Alone",
	"Median Age", "Pop Density (sq mi)", "Area (sq mi)",
}

// WriteXLSX saves a workbook with one summary row per result and one row per
// selected block group.
func WriteXLSX(path string, results ...*catchment.SelectionResult) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	units, err := f.AddSheet(SheetBlockGroups)
	if err != nil {
		return eris.Wrap(err, "report: add block groups sheet")
	}

	addHeader(summary, summaryHeader)
	addHeader(units, blockGroupHeader)

	for _, res := range results {
		if res == nil {
			continue
		}
		addSummaryRow(summary.AddRow(), res)
		for i, u := range res.Units {
			var g *catchment.Graphic
			if i < len(res.Graphics) {
				g = &res.Graphics[i]
			}
			addUnitRow(units.AddRow(), res.Role, u, g)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

func addHeader(sheet *xlsx.Sheet, cols []string) {
	row := sheet.AddRow()
	for _, c := range cols {
		row.AddCell().SetString(c)
	}
}

func addSummaryRow(row *xlsx.Row, res *catchment.SelectionResult) {
	d := res.Demographics
	row.AddCell().SetString(string(res.Role))
	row.AddCell().SetString(res.ID)
	if res.Center != nil {
		row.AddCell().SetFloat(res.Center.Lng)
		row.AddCell().SetFloat(res.Center.Lat)
	} else {
		row.AddCell()
		row.AddCell()
	}
	row.AddCell().SetInt64(res.Target)
	row.AddCell().SetString(yesNo(res.TargetMet))
	row.AddCell().SetInt(res.Candidates)
	row.AddCell().SetInt(len(res.Units))
	row.AddCell().SetInt64(res.TotalHouseholds)
	row.AddCell().SetInt64(d.TotalPop)
	row.AddCell().SetInt64(d.TotalAlone)
	row.AddCell().SetFloat(d.AvgMedianAge)
	row.AddCell().SetFloat(d.AvgPopDensity)
	optionalCell(row.AddCell(), d.AvgMedianIncome)
	optionalCell(row.AddCell(), d.AvgEduPct)
	row.AddCell().SetFloat(d.TotalAreaSqMi)
}

func addUnitRow(row *xlsx.Row, role catchment.Role, u catchment.GeoUnit, g *catchment.Graphic) {
	row.AddCell().SetString(string(role))
	row.AddCell().SetString(u.ID)
	if g != nil {
		row.AddCell().SetFloat(g.Distance)
	} else {
		row.AddCell()
	}
	row.AddCell().SetInt64(u.Households)
	row.AddCell().SetInt64(u.Population)
	row.AddCell().SetInt64(u.LivingAlone)
	optionalCell(row.AddCell(), u.MedianAge)
	if d, ok := u.PopDensitySqMi(); ok {
		row.AddCell().SetFloat(d)
	} else {
		row.AddCell()
	}
	row.AddCell().SetFloat(u.AreaSqMi())
}

// optionalCell leaves the cell blank for a missing value.
func optionalCell(c *xlsx.Cell, v *float64) {
	if v != nil {
		c.SetFloat(*v)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
