package lang

import (
	"fmt"
	"strings"

	"github.com/mn-ibiz/label-daemon/internal/barcode"
	"github.com/mn-ibiz/label-daemon/internal/label"
)

// eplGenerator emits Eltron Programming Language 2 for the older Zebra/Eltron
// desktop family. Like ZPL the origin is top-left with Y growing downward,
// but fonts are bitmap-numbered and commands are line oriented.
type eplGenerator struct{}

func (g *eplGenerator) Language() label.Language { return label.EPL }

func (g *eplGenerator) Generate(fields []label.ResolvedField, size label.Size) ([]byte, error) {
	var b strings.Builder

	b.WriteString("\nN\n") // clear image buffer
	fmt.Fprintf(&b, "q%d\n", size.WidthDots())
	fmt.Fprintf(&b, "Q%d,24\n", size.HeightDots())

	for _, f := range fields {
		c := clip(f, size)
		if !c.visible {
			continue
		}
		g.emitField(&b, f, c)
	}

	b.WriteString("P1\n")
	return []byte(b.String()), nil
}

func (g *eplGenerator) emitField(b *strings.Builder, f label.ResolvedField, c clipped) {
	rot := f.NormalRotation() / 90 // EPL rotations are quarter counts

	switch f.Type {
	case label.FieldText, label.FieldPrice:
		fmt.Fprintf(b, "A%d,%d,%d,%d,1,1,%s,\"%s\"\n",
			c.x, c.y, rot, eplFont(f.PointSize), eplReverse(f.Bold), sanitizeEPL(f.Value))

	case label.FieldBarcode:
		if f.Value == "" {
			return
		}
		narrow := clampInt(f.ModuleWidth, 1, 10)
		if f.ModuleWidth == 0 {
			narrow = 2
		}
		height := clampInt(f.BarHeight, 10, c.h)
		if f.BarHeight == 0 {
			height = c.h
		}
		hri := "N"
		if f.ShowText {
			hri = "B"
		}
		fmt.Fprintf(b, "B%d,%d,%d,%s,%d,%d,%d,%s,\"%s\"\n",
			c.x, c.y, rot, eplBarcodeType(f.Symbology), narrow, narrow*2, height, hri, sanitizeEPL(f.Value))

	case label.FieldQRCode:
		if f.Value == "" {
			return
		}
		scale := clampInt(f.ModuleWidth, 1, 10)
		if f.ModuleWidth == 0 {
			scale = 4
		}
		fmt.Fprintf(b, "b%d,%d,Q,s%d,\"%s\"\n", c.x, c.y, scale, sanitizeEPL(f.Value))

	case label.FieldImage:
		if f.Source == "" {
			return
		}
		// Prints a graphic previously stored in printer flash.
		fmt.Fprintf(b, "GG%d,%d,\"%s\"\n", c.x, c.y, sanitizeEPL(f.Source))

	case label.FieldBox:
		stroke := clampInt(f.Stroke, 1, minInt(c.w, c.h))
		fmt.Fprintf(b, "X%d,%d,%d,%d,%d\n", c.x, c.y, stroke, c.x+c.w, c.y+c.h)

	case label.FieldLine:
		fmt.Fprintf(b, "LO%d,%d,%d,%d\n", c.x, c.y, c.w, c.h)
	}
}

// eplFont picks the closest of EPL's five bitmap fonts for a point size.
func eplFont(pointSize int) int {
	switch {
	case pointSize == 0:
		return 3
	case pointSize <= 8:
		return 1
	case pointSize <= 10:
		return 2
	case pointSize <= 12:
		return 3
	case pointSize <= 16:
		return 4
	default:
		return 5
	}
}

// eplReverse renders bold as reverse video, the closest EPL primitive.
func eplReverse(bold bool) string {
	if bold {
		return "R"
	}
	return "N"
}

func eplBarcodeType(sym barcode.Symbology) string {
	switch sym {
	case barcode.EAN13:
		return "E30"
	case barcode.UPCA:
		return "UA0"
	default:
		return "1" // Code128 auto
	}
}

// sanitizeEPL keeps field data from breaking out of EPL's quoted strings.
func sanitizeEPL(v string) string {
	replacer := strings.NewReplacer(
		"\"", "'",
		"\n", " ",
		"\r", " ",
	)
	return replacer.Replace(v)
}
