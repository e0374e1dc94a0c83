package label

import (
	"testing"
	"time"
)

func testTemplate() Template {
	return Template{
		Name:     "shelf",
		Language: ZPL,
		Size:     Size{WidthMM: 38, HeightMM: 25, DotsPerMM: 8},
		Fields: []Field{
			{Type: FieldText, Placeholder: "ProductName", X: 10, Y: 10, Width: 280, Height: 30},
			{Type: FieldPrice, Placeholder: "Price", Currency: "$", X: 10, Y: 50, Width: 120, Height: 40},
			{Type: FieldBarcode, Placeholder: "Barcode", Symbology: "EAN13", X: 10, Y: 100, Width: 280, Height: 80},
			{Type: FieldText, Placeholder: "EffectiveDate", X: 10, Y: 185, Width: 150, Height: 12},
			{Type: FieldLine, X: 0, Y: 95, Width: 304, Height: 2, Stroke: 2},
		},
	}
}

func TestResolve(t *testing.T) {
	tmpl := testTemplate()
	rec := Record{
		"ProductName":   "Coca Cola 500ml",
		"Price":         12.345,
		"Barcode":       "5901234123457",
		"EffectiveDate": time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
	}

	got := Resolve(tmpl, rec)

	if len(got) != len(tmpl.Fields) {
		t.Fatalf("Resolve returned %d fields; want %d", len(got), len(tmpl.Fields))
	}

	wantValues := []string{"Coca Cola 500ml", "$12.35", "5901234123457", "14/03/2026", ""}
	for i, want := range wantValues {
		if got[i].Value != want {
			t.Errorf("field %d (%s): value %q; want %q", i, got[i].Type, got[i].Value, want)
		}
	}

	// Order and geometry must survive resolution untouched.
	for i := range got {
		if got[i].X != tmpl.Fields[i].X || got[i].Y != tmpl.Fields[i].Y || got[i].Type != tmpl.Fields[i].Type {
			t.Errorf("field %d geometry/order changed: %+v vs %+v", i, got[i].Field, tmpl.Fields[i])
		}
	}
}

func TestResolveMissingKeyIsEmpty(t *testing.T) {
	tmpl := Template{
		Size: Size{WidthMM: 38, HeightMM: 25, DotsPerMM: 8},
		Fields: []Field{
			{Type: FieldText, Placeholder: "NoSuchKey", X: 0, Y: 0, Width: 10, Height: 10},
		},
	}

	got := Resolve(tmpl, Record{"Other": "value"})
	if got[0].Value != "" {
		t.Errorf("missing placeholder resolved to %q; want empty string", got[0].Value)
	}

	got = Resolve(tmpl, nil)
	if got[0].Value != "" {
		t.Errorf("nil record resolved to %q; want empty string", got[0].Value)
	}
}

func TestResolveOnlyBoundFieldTypes(t *testing.T) {
	tmpl := Template{
		Size: Size{WidthMM: 38, HeightMM: 25, DotsPerMM: 8},
		Fields: []Field{
			{Type: FieldQRCode, Placeholder: "Link", X: 0, Y: 0, Width: 90, Height: 90},
			// A stray placeholder on a drawing field must not pull record data.
			{Type: FieldBox, Placeholder: "Link", X: 0, Y: 100, Width: 100, Height: 50, Stroke: 2},
			{Type: FieldImage, Placeholder: "Link", Source: "logo", X: 0, Y: 160, Width: 50, Height: 50},
		},
	}

	got := Resolve(tmpl, Record{"Link": "https://tienda.example/p/123"})
	if got[0].Value != "https://tienda.example/p/123" {
		t.Errorf("qr field resolved to %q; want the record value", got[0].Value)
	}
	for _, i := range []int{1, 2} {
		if got[i].Value != "" {
			t.Errorf("%s field resolved to %q; want empty string", got[i].Type, got[i].Value)
		}
	}
}

func TestResolveDatePattern(t *testing.T) {
	tmpl := Template{
		Size: Size{WidthMM: 38, HeightMM: 25, DotsPerMM: 8},
		Fields: []Field{
			{Type: FieldText, Placeholder: "Date", X: 0, Y: 0, Width: 10, Height: 10},
		},
	}
	rec := Record{"Date": time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)}

	got := Resolver{DatePattern: "2006-01-02"}.Resolve(tmpl, rec)
	if got[0].Value != "2026-08-31" {
		t.Errorf("custom date pattern produced %q; want 2026-08-31", got[0].Value)
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		cents  int64
		symbol string
		want   string
	}{
		{1235, "$", "$12.35"},
		{5, "$", "$0.05"},
		{0, "", "0.00"},
		{100000, "€", "€1000.00"},
		{-999, "$", "-$9.99"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.cents, tt.symbol); got != tt.want {
			t.Errorf("FormatPrice(%d, %q) = %q; want %q", tt.cents, tt.symbol, got, tt.want)
		}
	}
}

func TestPriceRoundingHalfUp(t *testing.T) {
	tmpl := Template{
		Size: Size{WidthMM: 38, HeightMM: 25, DotsPerMM: 8},
		Fields: []Field{
			{Type: FieldPrice, Placeholder: "P", Currency: "$", X: 0, Y: 0, Width: 10, Height: 10},
		},
	}

	tests := []struct {
		in   any
		want string
	}{
		{12.345, "$12.35"},
		{12.344, "$12.34"},
		{0.005, "$0.01"},
		{10, "$10.00"},
		{"3.999", "$4.00"},
		{"not-a-number", "not-a-number"},
	}
	for _, tt := range tests {
		got := Resolve(tmpl, Record{"P": tt.in})
		if got[0].Value != tt.want {
			t.Errorf("price %v resolved to %q; want %q", tt.in, got[0].Value, tt.want)
		}
	}
}
