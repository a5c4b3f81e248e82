package catchment

import (
	"github.com/twpayne/go-geom"
)

// Role distinguishes the primary catchment from a comparison run against a
// second center.
type Role string

// Selection roles.
const (
	RolePrimary    Role = "primary"
	RoleComparison Role = "comparison"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RolePrimary || r == RoleComparison
}

// Color is an RGBA color with 0-255 channels and alpha in [0,1].
type Color [4]float64

// Outline is a polygon outline style.
type Outline struct {
	Color Color   `json:"color" yaml:"color"`
	Width float64 `json:"width" yaml:"width"`
}

// Symbol is a simple-fill polygon style.
type Symbol struct {
	Type    string  `json:"type" yaml:"type"`
	Color   Color   `json:"color" yaml:"color"`
	Outline Outline `json:"outline" yaml:"outline"`
}

const outlineWidth = 2

var (
	transparent    = Color{0, 0, 0, 0}
	primaryRed     = Color{255, 0, 0, 1}
	comparisonBlue = Color{0, 102, 255, 1}
)

// SymbolFor returns the fill style for a role: transparent fill, solid
// outline, red for primary and blue for comparison.
func SymbolFor(role Role) Symbol {
	outline := primaryRed
	if role == RoleComparison {
		outline = comparisonBlue
	}
	return Symbol{
		Type:    "simple-fill",
		Color:   transparent,
		Outline: Outline{Color: outline, Width: outlineWidth},
	}
}

// Graphic is one drawable selected unit.
type Graphic struct {
	GEOID    string  `json:"geoid" yaml:"geoid"`
	Geometry geom.T  `json:"-" yaml:"-"`
	Symbol   Symbol  `json:"symbol" yaml:"symbol"`
	Distance float64 `json:"distance" yaml:"distance"`
	// Households and population are copied so the overlay stands alone.
	Households int64    `json:"households" yaml:"households"`
	Population int64    `json:"population" yaml:"population"`
	AreaSqMi   float64  `json:"area_sq_mi" yaml:"area_sq_mi"`
	PopDensity *float64 `json:"pop_density,omitempty" yaml:"pop_density,omitempty"`
}

// SelectionResult is the sole output of one invocation.
type SelectionResult struct {
	ID              string       `json:"id" yaml:"id"`
	Role            Role         `json:"role" yaml:"role"`
	Center          *Center      `json:"center,omitempty" yaml:"center,omitempty"`
	Target          int64        `json:"target" yaml:"target"`
	Candidates      int          `json:"candidates" yaml:"candidates"`
	Units           []GeoUnit    `json:"units" yaml:"units"`
	TotalHouseholds int64        `json:"total_households" yaml:"total_households"`
	TargetMet       bool         `json:"target_met" yaml:"target_met"`
	Demographics    Demographics `json:"demographics" yaml:"demographics"`
	Graphics        []Graphic    `json:"graphics" yaml:"graphics"`
	// Generation and Stale are filled in by a Session.
	Generation uint64 `json:"generation,omitempty" yaml:"generation,omitempty"`
	Stale      bool   `json:"stale,omitempty" yaml:"stale,omitempty"`
}

// Assemble packages a selection and its statistics into a result.
func Assemble(req Request, candidates int, sel Selection, demo Demographics, aux AuxiliaryStats) *SelectionResult {
	role := req.roleOrDefault()
	demo.AvgMedianIncome = aux.AvgMedianIncome
	demo.AvgEduPct = aux.AvgEduPct

	symbol := SymbolFor(role)
	graphics := make([]Graphic, 0, len(sel.Units))
	for i, u := range sel.Units {
		g := Graphic{
			GEOID:      u.ID,
			Geometry:   u.Geometry,
			Symbol:     symbol,
			Distance:   sel.Distances[i],
			Households: u.Households,
			Population: u.Population,
			AreaSqMi:   u.AreaSqMi(),
		}
		if d, ok := u.PopDensitySqMi(); ok {
			g.PopDensity = &d
		}
		graphics = append(graphics, g)
	}

	units := sel.Units
	if units == nil {
		units = []GeoUnit{}
	}
	return &SelectionResult{
		ID:              req.ID,
		Role:            role,
		Center:          req.Center,
		Target:          req.Target,
		Candidates:      candidates,
		Units:           units,
		TotalHouseholds: sel.TotalHouseholds,
		TargetMet:       sel.TargetMet(req.Target),
		Demographics:    demo,
		Graphics:        graphics,
	}
}

// EmptyResult is returned for requests that select nothing.
func EmptyResult(req Request) *SelectionResult {
	return Assemble(req, 0, Selection{}, Demographics{}, AuxiliaryStats{})
}
