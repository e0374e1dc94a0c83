package lang

import (
	"bytes"
	"testing"

	"github.com/mn-ibiz/label-daemon/internal/label"
)

func scenarioSize() label.Size {
	return label.Size{WidthMM: 38, HeightMM: 25, DotsPerMM: 8}
}

func scenarioFields() []label.ResolvedField {
	return []label.ResolvedField{
		{
			Field: label.Field{Type: label.FieldText, Placeholder: "ProductName",
				X: 10, Y: 10, Width: 280, Height: 30, PointSize: 12},
			Value: "Coca Cola 500ml",
		},
		{
			Field: label.Field{Type: label.FieldBarcode, Placeholder: "Barcode",
				Symbology: "EAN13", X: 10, Y: 100, Width: 280, Height: 80, BarHeight: 60, ShowText: true},
			Value: "5901234123457",
		},
		{
			Field: label.Field{Type: label.FieldPrice, X: 10, Y: 50, Width: 120, Height: 40, Bold: true},
			Value: "$9.99",
		},
		{
			Field: label.Field{Type: label.FieldQRCode, X: 200, Y: 10, Width: 90, Height: 90},
			Value: "https://example.test/p/123",
		},
		{
			Field: label.Field{Type: label.FieldBox, X: 0, Y: 0, Width: 304, Height: 200, Stroke: 2},
		},
		{
			Field: label.Field{Type: label.FieldLine, X: 0, Y: 95, Width: 304, Height: 2, Stroke: 2},
		},
	}
}

func TestRegistryCoversAllDialects(t *testing.T) {
	reg := NewRegistry()
	for _, lang := range []label.Language{label.ZPL, label.EPL, label.TSPL, label.Raw} {
		g, err := reg.For(lang)
		if err != nil {
			t.Fatalf("For(%s) error: %v", lang, err)
		}
		if g.Language() != lang {
			t.Errorf("generator for %s reports language %s", lang, g.Language())
		}
	}
	if _, err := reg.For(label.Language("pcl")); err == nil {
		t.Error("For(pcl) should fail")
	}
}

// Generators are pure functions: identical input must give byte-identical
// output across repeated calls.
func TestGenerateDeterministic(t *testing.T) {
	reg := NewRegistry()
	size := scenarioSize()
	fields := scenarioFields()

	for _, lang := range reg.Languages() {
		t.Run(string(lang), func(t *testing.T) {
			g, err := reg.For(lang)
			if err != nil {
				t.Fatal(err)
			}
			first, err := g.Generate(fields, size)
			if err != nil {
				t.Fatalf("Generate error: %v", err)
			}
			if len(first) == 0 {
				t.Fatal("Generate produced no output")
			}
			for i := 0; i < 5; i++ {
				again, err := g.Generate(fields, size)
				if err != nil {
					t.Fatalf("Generate error on repeat %d: %v", i, err)
				}
				if !bytes.Equal(first, again) {
					t.Fatalf("repeat %d produced different bytes", i)
				}
			}
		})
	}
}

// A field past the label bounds is clipped, not dropped, and must not take
// sibling fields down with it.
func TestGenerateClipsOutOfBounds(t *testing.T) {
	reg := NewRegistry()
	size := scenarioSize() // 304x200 dots

	fields := []label.ResolvedField{
		{
			Field: label.Field{Type: label.FieldText, X: 10, Y: 10, Width: 200, Height: 30},
			Value: "in-bounds",
		},
		{
			// Origin inside, extent crossing the right edge: shortened.
			Field: label.Field{Type: label.FieldBox, X: 280, Y: 20, Width: 500, Height: 500, Stroke: 2},
		},
		{
			// Origin entirely past the bottom edge: nothing visible.
			Field: label.Field{Type: label.FieldText, X: 10, Y: 900, Width: 100, Height: 30},
			Value: "below-the-label",
		},
	}

	for _, lang := range reg.Languages() {
		t.Run(string(lang), func(t *testing.T) {
			g, err := reg.For(lang)
			if err != nil {
				t.Fatal(err)
			}
			out, err := g.Generate(fields, size)
			if err != nil {
				t.Fatalf("Generate error: %v", err)
			}
			if !bytes.Contains(out, []byte("in-bounds")) {
				t.Error("sibling in-bounds field missing from output")
			}
			if bytes.Contains(out, []byte("below-the-label")) {
				t.Error("fully out-of-bounds field should have nothing visible")
			}
		})
	}
}

func TestClip(t *testing.T) {
	size := scenarioSize() // 304x200

	tests := []struct {
		name string
		f    label.Field
		want clipped
	}{
		{
			name: "Fully inside",
			f:    label.Field{X: 10, Y: 10, Width: 100, Height: 50},
			want: clipped{x: 10, y: 10, w: 100, h: 50, visible: true},
		},
		{
			name: "Crosses right edge",
			f:    label.Field{X: 280, Y: 10, Width: 100, Height: 50},
			want: clipped{x: 280, y: 10, w: 24, h: 50, visible: true},
		},
		{
			name: "Crosses bottom edge",
			f:    label.Field{X: 10, Y: 180, Width: 100, Height: 50},
			want: clipped{x: 10, y: 180, w: 100, h: 20, visible: true},
		},
		{
			name: "Origin past the edge",
			f:    label.Field{X: 304, Y: 10, Width: 10, Height: 10},
			want: clipped{visible: false},
		},
		{
			name: "Negative origin shifts in",
			f:    label.Field{X: -20, Y: 10, Width: 100, Height: 50},
			want: clipped{x: 0, y: 10, w: 80, h: 50, visible: true},
		},
		{
			name: "Entirely negative",
			f:    label.Field{X: -50, Y: -50, Width: 20, Height: 20},
			want: clipped{visible: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clip(label.ResolvedField{Field: tt.f}, size)
			if got != tt.want {
				t.Errorf("clip() = %+v; want %+v", got, tt.want)
			}
		})
	}
}
