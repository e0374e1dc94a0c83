package lang

import (
	"strings"
	"testing"

	"github.com/mn-ibiz/label-daemon/internal/label"
)

func TestEPLEnvelopeAndFields(t *testing.T) {
	size := label.Size{WidthMM: 38, HeightMM: 25, DotsPerMM: 8}
	fields := []label.ResolvedField{
		{
			Field: label.Field{Type: label.FieldText, X: 10, Y: 10, Width: 280, Height: 30, PointSize: 12},
			Value: "Coca Cola 500ml",
		},
		{
			Field: label.Field{Type: label.FieldBarcode, Symbology: "EAN13",
				X: 10, Y: 100, Width: 280, Height: 80, BarHeight: 60, ShowText: true},
			Value: "5901234123457",
		},
	}

	out, err := (&eplGenerator{}).Generate(fields, size)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	epl := string(out)

	for _, want := range []string{
		"N\n",     // buffer clear
		"q304\n",  // width in dots
		"Q200,24", // height in dots
		`A10,10,0,3,1,1,N,"Coca Cola 500ml"`,
		`,E30,`, // EAN-13 barcode selector
		`"5901234123457"`,
		"P1\n", // print command
	} {
		if !strings.Contains(epl, want) {
			t.Errorf("EPL output missing %q:\n%s", want, epl)
		}
	}
}

func TestTSPLEnvelopeAndFields(t *testing.T) {
	size := label.Size{WidthMM: 38, HeightMM: 25, DotsPerMM: 8}
	fields := []label.ResolvedField{
		{
			Field: label.Field{Type: label.FieldText, X: 10, Y: 10, Width: 280, Height: 30, PointSize: 12},
			Value: "Coca Cola 500ml",
		},
		{
			Field: label.Field{Type: label.FieldBarcode, Symbology: "UPCA",
				X: 10, Y: 100, Width: 280, Height: 80, BarHeight: 60},
			Value: "036000291452",
		},
		{
			Field: label.Field{Type: label.FieldBox, X: 0, Y: 0, Width: 304, Height: 200, Stroke: 2},
		},
	}

	out, err := (&tsplGenerator{}).Generate(fields, size)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	tspl := string(out)

	for _, want := range []string{
		"SIZE 38 mm,25 mm",
		"CLS",
		`TEXT 10,10,"0",0,1,1,"Coca Cola 500ml"`,
		`BARCODE 10,100,"UPCA",60,0,0,2,4,"036000291452"`,
		"BOX 0,0,304,200,2",
		"PRINT 1,1",
	} {
		if !strings.Contains(tspl, want) {
			t.Errorf("TSPL output missing %q:\n%s", want, tspl)
		}
	}
}
