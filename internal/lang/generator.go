// Package lang serializes resolved label fields into printer command streams.
// One generator per dialect; all of them are stateless pure functions of
// (fields, size), so identical input always yields byte-identical output.
package lang

import (
	"fmt"

	"github.com/mn-ibiz/label-daemon/internal/label"
)

// Generator turns resolved fields into the byte stream one printer family
// understands.
type Generator interface {
	// Language reports the dialect this generator emits.
	Language() label.Language
	// Generate serializes the fields for the given label stock. Geometry
	// beyond the label bounds is clipped, never an error.
	Generate(fields []label.ResolvedField, size label.Size) ([]byte, error)
}

// Registry maps dialects to generators.
type Registry struct {
	generators map[label.Language]Generator
}

// NewRegistry returns a registry with all four built-in dialects.
func NewRegistry() *Registry {
	r := &Registry{generators: make(map[label.Language]Generator)}
	for _, g := range []Generator{&zplGenerator{}, &eplGenerator{}, &tsplGenerator{}, &rawGenerator{}} {
		r.generators[g.Language()] = g
	}
	return r
}

// For returns the generator for a dialect.
func (r *Registry) For(lang label.Language) (Generator, error) {
	g, ok := r.generators[lang]
	if !ok {
		return nil, fmt.Errorf("no generator for language %q", lang)
	}
	return g, nil
}

// Languages lists registered dialects.
func (r *Registry) Languages() []label.Language {
	langs := make([]label.Language, 0, len(r.generators))
	for _, l := range []label.Language{label.ZPL, label.EPL, label.TSPL, label.Raw} {
		if _, ok := r.generators[l]; ok {
			langs = append(langs, l)
		}
	}
	return langs
}

// clipped is a field geometry adjusted to the label bounds.
type clipped struct {
	x, y, w, h int
	visible    bool
}

// clip normalizes field geometry to the label's dot bounds. Origins past the
// edge leave nothing visible; extents crossing the edge are shortened. The
// model validates this softly, so the generators are where clipping actually
// happens.
func clip(f label.ResolvedField, size label.Size) clipped {
	maxW, maxH := size.WidthDots(), size.HeightDots()

	x, y, w, h := f.X, f.Y, f.Width, f.Height
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x >= maxW || y >= maxH || w <= 0 || h <= 0 {
		return clipped{visible: false}
	}
	if x+w > maxW {
		w = maxW - x
	}
	if y+h > maxH {
		h = maxH - y
	}
	return clipped{x: x, y: y, w: w, h: h, visible: true}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
