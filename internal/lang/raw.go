package lang

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/mn-ibiz/label-daemon/internal/barcode"
	"github.com/mn-ibiz/label-daemon/internal/label"
)

// rawGenerator emits ESC-style byte commands for passthrough receipt/label
// mechanisms with no page description language. These printers are flow
// oriented rather than XY addressed, so the coordinate normalization here is
// ordering: fields print top to bottom, left to right, by their dot origin.
type rawGenerator struct{}

const rawDotsPerColumn = 12 // approximate glyph width at normal size

// ESC/POS command prefixes
var (
	escInit     = []byte{0x1b, 0x40}
	escAlign    = []byte{0x1b, 0x61}
	escBold     = []byte{0x1b, 0x45}
	escFeedN    = []byte{0x1b, 0x64}
	gsCharSize  = []byte{0x1d, 0x21}
	gsHRI       = []byte{0x1d, 0x48}
	gsBarHeight = []byte{0x1d, 0x68}
	gsBarWidth  = []byte{0x1d, 0x77}
	gsBarcode   = []byte{0x1d, 0x6b}
	gsRaster    = []byte{0x1d, 0x76, 0x30, 0x00}
	gsCut       = []byte{0x1d, 0x56, 0x00}
)

func (g *rawGenerator) Language() label.Language { return label.Raw }

func (g *rawGenerator) Generate(fields []label.ResolvedField, size label.Size) ([]byte, error) {
	// Stable flow order by origin; ties keep template order.
	ordered := make([]label.ResolvedField, len(fields))
	copy(ordered, fields)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Y != ordered[j].Y {
			return ordered[i].Y < ordered[j].Y
		}
		return ordered[i].X < ordered[j].X
	})

	var b bytes.Buffer
	b.Write(escInit)

	for _, f := range ordered {
		c := clip(f, size)
		if !c.visible {
			continue
		}
		if err := g.emitField(&b, f, c, size); err != nil {
			return nil, err
		}
	}

	b.Write(escFeedN)
	b.WriteByte(4)
	b.Write(gsCut)
	return b.Bytes(), nil
}

func (g *rawGenerator) emitField(b *bytes.Buffer, f label.ResolvedField, c clipped, size label.Size) error {
	switch f.Type {
	case label.FieldText, label.FieldPrice:
		g.writeAlign(b, f.Align)
		if f.Bold {
			b.Write(escBold)
			b.WriteByte(1)
		}
		b.Write(gsCharSize)
		b.WriteByte(rawCharSize(f.PointSize))
		b.WriteString(rawClipText(f.Value, c.w))
		b.WriteByte('\n')
		b.Write(gsCharSize)
		b.WriteByte(0)
		if f.Bold {
			b.Write(escBold)
			b.WriteByte(0)
		}
		g.writeAlign(b, label.AlignLeft)

	case label.FieldBarcode:
		if f.Value == "" {
			return nil
		}
		b.Write(gsHRI)
		if f.ShowText {
			b.WriteByte(2) // HRI below
		} else {
			b.WriteByte(0)
		}
		b.Write(gsBarHeight)
		b.WriteByte(byte(clampInt(f.BarHeight, 24, 255)))
		b.Write(gsBarWidth)
		b.WriteByte(byte(clampInt(f.ModuleWidth, 2, 6)))

		data := []byte(f.Value)
		var symbol byte
		switch f.Symbology {
		case barcode.EAN13:
			symbol = 67
		case barcode.UPCA:
			symbol = 65
		default:
			symbol = 73 // Code128
			data = append([]byte{'{', 'B'}, data...)
		}
		if len(data) > 255 {
			return fmt.Errorf("raw barcode data too long: %d bytes", len(data))
		}
		b.Write(gsBarcode)
		b.WriteByte(symbol)
		b.WriteByte(byte(len(data)))
		b.Write(data)
		b.WriteByte('\n')

	case label.FieldQRCode:
		if f.Value == "" {
			return nil
		}
		module := clampInt(f.ModuleWidth, 2, 8)
		if f.ModuleWidth == 0 {
			module = 3
		}
		raster, widthBytes, height, err := qrRaster(f.Value, module)
		if err != nil {
			return fmt.Errorf("raw qr for %q: %w", f.Value, err)
		}
		b.Write(gsRaster)
		b.WriteByte(byte(widthBytes & 0xff))
		b.WriteByte(byte(widthBytes >> 8))
		b.WriteByte(byte(height & 0xff))
		b.WriteByte(byte(height >> 8))
		b.Write(raster)
		b.WriteByte('\n')

	case label.FieldBox, label.FieldLine:
		// No drawing primitives in this dialect; a rule is the receipt idiom.
		cols := clampInt(c.w/rawDotsPerColumn, 1, size.WidthDots()/rawDotsPerColumn)
		for i := 0; i < cols; i++ {
			b.WriteByte('-')
		}
		b.WriteByte('\n')

	case label.FieldImage:
		// Passthrough printers take pre-rasterized graphics only; an image
		// source reference has nothing to resolve against here.
	}
	return nil
}

func (g *rawGenerator) writeAlign(b *bytes.Buffer, align string) {
	b.Write(escAlign)
	switch align {
	case label.AlignCenter:
		b.WriteByte(1)
	case label.AlignRight:
		b.WriteByte(2)
	default:
		b.WriteByte(0)
	}
}

// rawCharSize maps a point size onto the GS ! width/height multiplier byte.
func rawCharSize(pointSize int) byte {
	switch {
	case pointSize >= 36:
		return 0x22 // triple
	case pointSize >= 20:
		return 0x11 // double
	default:
		return 0x00
	}
}

// rawClipText shortens text to the columns available in the clipped width.
func rawClipText(s string, widthDots int) string {
	cols := widthDots / rawDotsPerColumn
	if cols < 1 {
		cols = 1
	}
	runes := []rune(s)
	if len(runes) <= cols {
		return s
	}
	return string(runes[:cols])
}
