package lang

import (
	"fmt"

	qrcode "github.com/yeqown/go-qrcode/v2"
)

// matrixWriter captures the QR module matrix instead of rendering an image
// file, so the raw dialect can emit it as a printer raster.
type matrixWriter struct {
	modules [][]bool
}

func (w *matrixWriter) Write(mat qrcode.Matrix) error {
	width, height := mat.Width(), mat.Height()
	w.modules = make([][]bool, height)
	for y := range w.modules {
		w.modules[y] = make([]bool, width)
	}
	mat.Iterate(qrcode.IterDirection_ROW, func(x, y int, v qrcode.QRValue) {
		if y < height && x < width {
			w.modules[y][x] = v.IsSet()
		}
	})
	return nil
}

func (w *matrixWriter) Close() error { return nil }

// qrRaster encodes data as a QR symbol scaled by module dots and packs it
// into the 1-bit row-major raster format of GS v 0. Returns the raster, the
// row width in bytes and the height in dots.
func qrRaster(data string, module int) ([]byte, int, int, error) {
	qrc, err := qrcode.New(data)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("encode qr: %w", err)
	}

	var w matrixWriter
	if err := qrc.Save(&w); err != nil {
		return nil, 0, 0, fmt.Errorf("render qr matrix: %w", err)
	}
	if len(w.modules) == 0 {
		return nil, 0, 0, fmt.Errorf("render qr matrix: empty output")
	}

	dim := len(w.modules)
	widthDots := dim * module
	heightDots := dim * module
	widthBytes := (widthDots + 7) / 8

	raster := make([]byte, widthBytes*heightDots)
	for my := 0; my < dim; my++ {
		for mx := 0; mx < len(w.modules[my]); mx++ {
			if !w.modules[my][mx] {
				continue
			}
			for dy := 0; dy < module; dy++ {
				row := (my*module + dy) * widthBytes
				for dx := 0; dx < module; dx++ {
					bit := mx*module + dx
					raster[row+bit/8] |= 0x80 >> (bit % 8)
				}
			}
		}
	}
	return raster, widthBytes, heightDots, nil
}
