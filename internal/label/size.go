// Package label holds the in-memory label model: sizes, templates, fields,
// the placeholder resolver and the portable template document format.
package label

import "math"

// Size describes the physical label stock: width and height in millimeters
// and print resolution in dots per millimeter. Immutable once referenced by
// a template; dot dimensions are a pure function of size and resolution.
type Size struct {
	ID        string  `json:"id,omitempty"`
	WidthMM   float64 `json:"width_mm"`
	HeightMM  float64 `json:"height_mm"`
	DotsPerMM int     `json:"dots_per_mm"`
}

// WidthDots returns the printable width in dots.
func (s Size) WidthDots() int {
	return int(math.Round(s.WidthMM * float64(s.DotsPerMM)))
}

// HeightDots returns the printable height in dots.
func (s Size) HeightDots() int {
	return int(math.Round(s.HeightMM * float64(s.DotsPerMM)))
}

// Valid reports whether the size has positive dimensions and resolution.
func (s Size) Valid() bool {
	return s.WidthMM > 0 && s.HeightMM > 0 && s.DotsPerMM > 0
}
