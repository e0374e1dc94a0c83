package lang

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mn-ibiz/label-daemon/internal/barcode"
	"github.com/mn-ibiz/label-daemon/internal/label"
)

// tsplGenerator emits TSC Printer Language. TSPL sizes the label in
// millimeters but positions fields in dots, top-left origin; both come
// straight from the model so the conversion is explicit here.
type tsplGenerator struct{}

func (g *tsplGenerator) Language() label.Language { return label.TSPL }

func (g *tsplGenerator) Generate(fields []label.ResolvedField, size label.Size) ([]byte, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "SIZE %s mm,%s mm\r\n", tsplMM(size.WidthMM), tsplMM(size.HeightMM))
	b.WriteString("GAP 2 mm,0 mm\r\n")
	b.WriteString("DIRECTION 1\r\n")
	b.WriteString("CLS\r\n")

	for _, f := range fields {
		c := clip(f, size)
		if !c.visible {
			continue
		}
		g.emitField(&b, f, c)
	}

	b.WriteString("PRINT 1,1\r\n")
	return []byte(b.String()), nil
}

func (g *tsplGenerator) emitField(b *strings.Builder, f label.ResolvedField, c clipped) {
	rot := f.NormalRotation()

	switch f.Type {
	case label.FieldText, label.FieldPrice:
		mul := clampInt(f.PointSize/12, 1, 10)
		fmt.Fprintf(b, "TEXT %d,%d,\"0\",%d,%d,%d,\"%s\"\r\n",
			c.x, c.y, rot, mul, mul, sanitizeTSPL(f.Value))

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
		readable := 0
		if f.ShowText {
			readable = 1
		}
		fmt.Fprintf(b, "BARCODE %d,%d,\"%s\",%d,%d,%d,%d,%d,\"%s\"\r\n",
			c.x, c.y, tsplBarcodeType(f.Symbology), height, readable, rot, narrow, narrow*2, sanitizeTSPL(f.Value))

	case label.FieldQRCode:
		if f.Value == "" {
			return
		}
		cell := clampInt(f.ModuleWidth, 1, 10)
		if f.ModuleWidth == 0 {
			cell = 4
		}
		fmt.Fprintf(b, "QRCODE %d,%d,H,%d,A,%d,\"%s\"\r\n", c.x, c.y, cell, rot, sanitizeTSPL(f.Value))

	case label.FieldImage:
		if f.Source == "" {
			return
		}
		fmt.Fprintf(b, "PUTBMP %d,%d,\"%s\"\r\n", c.x, c.y, sanitizeTSPL(f.Source))

	case label.FieldBox:
		stroke := clampInt(f.Stroke, 1, minInt(c.w, c.h))
		fmt.Fprintf(b, "BOX %d,%d,%d,%d,%d\r\n", c.x, c.y, c.x+c.w, c.y+c.h, stroke)

	case label.FieldLine:
		fmt.Fprintf(b, "BAR %d,%d,%d,%d\r\n", c.x, c.y, c.w, c.h)
	}
}

func tsplBarcodeType(sym barcode.Symbology) string {
	switch sym {
	case barcode.EAN13:
		return "EAN13"
	case barcode.UPCA:
		return "UPCA"
	default:
		return "128"
	}
}

// tsplMM renders a millimeter dimension without a trailing ".0".
func tsplMM(mm float64) string {
	return strconv.FormatFloat(mm, 'f', -1, 64)
}

func sanitizeTSPL(v string) string {
	replacer := strings.NewReplacer(
		"\"", "'",
		"\n", " ",
		"\r", " ",
	)
	return replacer.Replace(v)
}
