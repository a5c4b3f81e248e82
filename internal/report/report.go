// Package report renders selection results as a text summary, JSON, YAML,
// a GeoJSON overlay or an XLSX workbook.
package report

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/catchment/internal/catchment"
)

// Format is an output encoding.
type Format string

// Output formats.
const (
	FormatText    Format = "text"
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatGeoJSON Format = "geojson"
)

// ParseFormat resolves a --format value. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML, FormatGeoJSON:
		return f, nil
	default:
		return "", eris.Errorf("report: unknown format %q (want text, json, yaml or geojson)", s)
	}
}

// Write encodes results to w. JSON and YAML emit a single object for one
// result and a list otherwise. GeoJSON merges every result's graphics into
// one feature collection.
func Write(w io.Writer, format Format, results ...*catchment.SelectionResult) error {
	switch format {
	case FormatText, "":
		return WriteText(w, results...)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(single(results)); err != nil {
			return eris.Wrap(err, "report: encode json")
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(single(results)); err != nil {
			return eris.Wrap(err, "report: encode yaml")
		}
		return eris.Wrap(enc.Close(), "report: close yaml")
	case FormatGeoJSON:
		if err := json.NewEncoder(w).Encode(FeatureCollection(results...)); err != nil {
			return eris.Wrap(err, "report: encode geojson")
		}
		return nil
	default:
		return eris.Errorf("report: unknown format %q", format)
	}
}

func single(results []*catchment.SelectionResult) any {
	if len(results) == 1 {
		return results[0]
	}
	return results
}
