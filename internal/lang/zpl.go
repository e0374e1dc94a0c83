package lang

import (
	"fmt"
	"strings"

	"github.com/mn-ibiz/label-daemon/internal/barcode"
	"github.com/mn-ibiz/label-daemon/internal/label"
)

// zplGenerator emits Zebra Programming Language II. ZPL shares this model's
// coordinate system: top-left origin, Y growing downward, units in dots.
type zplGenerator struct{}

func (g *zplGenerator) Language() label.Language { return label.ZPL }

func (g *zplGenerator) Generate(fields []label.ResolvedField, size label.Size) ([]byte, error) {
	var b strings.Builder

	b.WriteString("^XA\n")
	fmt.Fprintf(&b, "^PW%d\n", size.WidthDots())
	fmt.Fprintf(&b, "^LL%d\n", size.HeightDots())
	b.WriteString("^LH0,0\n")
	b.WriteString("^CI28\n") // UTF-8 text encoding

	for _, f := range fields {
		c := clip(f, size)
		if !c.visible {
			continue
		}
		g.emitField(&b, f, c)
	}

	b.WriteString("^PQ1\n")
	b.WriteString("^XZ\n")
	return []byte(b.String()), nil
}

func (g *zplGenerator) emitField(b *strings.Builder, f label.ResolvedField, c clipped) {
	rot := zplRotation(f.NormalRotation())

	switch f.Type {
	case label.FieldText, label.FieldPrice:
		font := f.Font
		if font == "" {
			font = "0"
		}
		height := clampInt(f.PointSize*2, 10, c.h)
		if f.PointSize == 0 {
			height = c.h
		}
		fmt.Fprintf(b, "^FO%d,%d^A%s%s,%d,%d", c.x, c.y, font, rot, height, height)
		if f.Align == label.AlignCenter || f.Align == label.AlignRight {
			just := "C"
			if f.Align == label.AlignRight {
				just = "R"
			}
			fmt.Fprintf(b, "^FB%d,1,0,%s,0", c.w, just)
		}
		fmt.Fprintf(b, "^FD%s^FS\n", sanitizeZPL(f.Value))

	case label.FieldBarcode:
		if f.Value == "" {
			return
		}
		module := clampInt(f.ModuleWidth, 1, 10)
		if f.ModuleWidth == 0 {
			module = 2
		}
		height := clampInt(f.BarHeight, 10, c.h)
		if f.BarHeight == 0 {
			height = c.h
		}
		hri := "N"
		if f.ShowText {
			hri = "Y"
		}
		fmt.Fprintf(b, "^FO%d,%d^BY%d,3,%d", c.x, c.y, module, height)
		switch f.Symbology {
		case barcode.EAN13:
			fmt.Fprintf(b, "^BE%s,%d,%s,N", rot, height, hri)
		case barcode.UPCA:
			fmt.Fprintf(b, "^BU%s,%d,%s,N,Y", rot, height, hri)
		default: // Code128 covers the free-form rest
			fmt.Fprintf(b, "^BC%s,%d,%s,N,N", rot, height, hri)
		}
		fmt.Fprintf(b, "^FD%s^FS\n", sanitizeZPL(f.Value))

	case label.FieldQRCode:
		if f.Value == "" {
			return
		}
		mag := clampInt(f.ModuleWidth, 1, 10)
		if f.ModuleWidth == 0 {
			mag = 4
		}
		fmt.Fprintf(b, "^FO%d,%d^BQ%s,2,%d^FDLA,%s^FS\n", c.x, c.y, rot, mag, sanitizeZPL(f.Value))

	case label.FieldImage:
		if f.Source == "" {
			return
		}
		// References a graphic previously stored on the printer.
		fmt.Fprintf(b, "^FO%d,%d^XGR:%s,1,1^FS\n", c.x, c.y, zplGraphicName(f.Source))

	case label.FieldBox:
		stroke := clampInt(f.Stroke, 1, minInt(c.w, c.h))
		fmt.Fprintf(b, "^FO%d,%d^GB%d,%d,%d^FS\n", c.x, c.y, c.w, c.h, stroke)

	case label.FieldLine:
		stroke := clampInt(f.Stroke, 1, minInt(c.w, c.h))
		fmt.Fprintf(b, "^FO%d,%d^GB%d,%d,%d^FS\n", c.x, c.y, c.w, c.h, stroke)
	}
}

func zplRotation(deg int) string {
	switch deg {
	case 90:
		return "R"
	case 180:
		return "I"
	case 270:
		return "B"
	default:
		return "N"
	}
}

// sanitizeZPL strips the ZPL control characters from field data so user text
// cannot break out of a ^FD block.
func sanitizeZPL(v string) string {
	replacer := strings.NewReplacer(
		"^", " ",
		"~", " ",
		"\n", " ",
		"\r", " ",
	)
	return replacer.Replace(v)
}

// zplGraphicName maps an image source reference to a stored graphic name.
func zplGraphicName(source string) string {
	name := strings.ToUpper(source)
	name = strings.NewReplacer("/", "_", "\\", "_", " ", "_", ".", "_").Replace(name)
	if len(name) > 16 {
		name = name[:16]
	}
	return name + ".GRF"
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
