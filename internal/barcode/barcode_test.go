package barcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		sym     Symbology
		data    string
		wantErr error
	}{
		{name: "Valid EAN-13", sym: EAN13, data: "5901234123457"},
		{name: "Valid UPC-A", sym: UPCA, data: "036000291452"},
		{name: "Valid Code128", sym: Code128, data: "ABC-1234/xy"},
		{name: "EAN-13 too short", sym: EAN13, data: "59012341234", wantErr: ErrInvalidLength},
		{name: "EAN-13 with letter", sym: EAN13, data: "59012341234X7", wantErr: ErrInvalidCharset},
		{name: "EAN-13 wrong check digit", sym: EAN13, data: "5901234123450", wantErr: ErrBadCheckDigit},
		{name: "UPC-A wrong check digit", sym: UPCA, data: "036000291453", wantErr: ErrBadCheckDigit},
		{name: "UPC-A too long", sym: UPCA, data: "0360002914521", wantErr: ErrInvalidLength},
		{name: "Code128 empty", sym: Code128, data: "", wantErr: ErrInvalidLength},
		{name: "Code128 non-ASCII", sym: Code128, data: "café", wantErr: ErrInvalidCharset},
		{name: "Unknown symbology", sym: Symbology("ITF14"), data: "123", wantErr: ErrUnknownSymbology},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.sym, tt.data)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate(%s, %q) = %v; want nil", tt.sym, tt.data, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate(%s, %q) = %v; want %v", tt.sym, tt.data, err, tt.wantErr)
			}
		})
	}
}

func TestComputeCheckDigit(t *testing.T) {
	tests := []struct {
		sym     Symbology
		payload string
		want    int
	}{
		{EAN13, "590123412345", 7},
		{EAN13, "400638133393", 1},
		{UPCA, "03600029145", 2},
		{UPCA, "20123450199", 2},
	}

	for _, tt := range tests {
		got, err := ComputeCheckDigit(tt.sym, tt.payload)
		if err != nil {
			t.Fatalf("ComputeCheckDigit(%s, %q) error: %v", tt.sym, tt.payload, err)
		}
		if got != tt.want {
			t.Errorf("ComputeCheckDigit(%s, %q) = %d; want %d", tt.sym, tt.payload, got, tt.want)
		}
	}

	if _, err := ComputeCheckDigit(Code128, "12345"); err == nil {
		t.Error("ComputeCheckDigit(Code128) should fail: no numeric check digit defined")
	}
	if _, err := ComputeCheckDigit(UPCA, "123"); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("ComputeCheckDigit(UPCA, short) = %v; want ErrInvalidLength", err)
	}
}

// Check-digit round trip: for any valid UPC-A payload, appending the computed
// digit must validate as ok.
func TestCheckDigitRoundTrip(t *testing.T) {
	payloads := []string{
		"00000000000",
		"99999999999",
		"03600029145",
		"20123450199",
		"12345678901",
	}
	// A spread of generated payloads on top of the fixed ones.
	for i := 0; i < 50; i++ {
		payloads = append(payloads, fmt.Sprintf("%011d", i*987654321%100000000000))
	}

	for _, p := range payloads {
		check, err := ComputeCheckDigit(UPCA, p)
		if err != nil {
			t.Fatalf("ComputeCheckDigit(%q) error: %v", p, err)
		}
		full := fmt.Sprintf("%s%d", p, check)
		if err := Validate(UPCA, full); err != nil {
			t.Errorf("Validate(UPCA, %q) = %v; want ok", full, err)
		}
	}
}
