// Package barcode validates barcode payloads, computes check digits and
// decodes price-embedded "random weight" barcodes for scan data coming from
// POS collaborators.
package barcode

import (
	"errors"
	"fmt"
)

// Symbology identifies a supported barcode encoding standard.
type Symbology string

const (
	EAN13   Symbology = "EAN13"
	UPCA    Symbology = "UPCA"
	Code128 Symbology = "CODE128"
)

// Validation errors. Scan data is user input; the codec reports, never panics.
var (
	ErrUnknownSymbology = errors.New("unknown symbology")
	ErrInvalidLength    = errors.New("invalid length")
	ErrInvalidCharset   = errors.New("invalid charset")
	ErrBadCheckDigit    = errors.New("bad check digit")
)

// payload lengths excluding the trailing check digit
const (
	ean13PayloadLen = 12
	upcaPayloadLen  = 11
)

// Validate enforces per-symbology length, charset and check digit rules.
func Validate(sym Symbology, data string) error {
	switch sym {
	case EAN13:
		return validateNumeric(data, ean13PayloadLen+1)
	case UPCA:
		return validateNumeric(data, upcaPayloadLen+1)
	case Code128:
		// Full ASCII, no check digit required by convention.
		if data == "" {
			return fmt.Errorf("%w: empty data", ErrInvalidLength)
		}
		for i := 0; i < len(data); i++ {
			if data[i] > 0x7f {
				return fmt.Errorf("%w: byte 0x%02x at position %d", ErrInvalidCharset, data[i], i)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSymbology, sym)
	}
}

// ComputeCheckDigit returns the weighted modulo-10 check digit for a numeric
// payload, weights alternating 3/1 starting from the rightmost digit.
func ComputeCheckDigit(sym Symbology, payload string) (int, error) {
	var want int
	switch sym {
	case EAN13:
		want = ean13PayloadLen
	case UPCA:
		want = upcaPayloadLen
	case Code128:
		return 0, fmt.Errorf("%w: %s carries no numeric check digit", ErrUnknownSymbology, Code128)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSymbology, sym)
	}

	if len(payload) != want {
		return 0, fmt.Errorf("%w: got %d digits, want %d", ErrInvalidLength, len(payload), want)
	}
	return mod10(payload)
}

func validateNumeric(data string, totalLen int) error {
	if len(data) != totalLen {
		return fmt.Errorf("%w: got %d digits, want %d", ErrInvalidLength, len(data), totalLen)
	}
	for i := 0; i < len(data); i++ {
		if data[i] < '0' || data[i] > '9' {
			return fmt.Errorf("%w: non-digit %q at position %d", ErrInvalidCharset, data[i], i)
		}
	}

	check, err := mod10(data[:totalLen-1])
	if err != nil {
		return err
	}
	if got := int(data[totalLen-1] - '0'); got != check {
		return fmt.Errorf("%w: got %d, want %d", ErrBadCheckDigit, got, check)
	}
	return nil
}

// mod10 computes the GS1 weighted modulo-10 check digit over a digit string.
func mod10(digits string) (int, error) {
	sum := 0
	weight := 3 // rightmost digit carries weight 3
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: non-digit %q at position %d", ErrInvalidCharset, c, i)
		}
		sum += int(c-'0') * weight
		if weight == 3 {
			weight = 1
		} else {
			weight = 3
		}
	}
	return (10 - sum%10) % 10, nil
}
