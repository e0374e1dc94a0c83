package barcode

import (
	"errors"
	"fmt"
)

// ErrNotWeighted is returned when a barcode does not carry the random-weight
// prefix convention.
var ErrNotWeighted = errors.New("not a random-weight barcode")

// CheckDigitMismatchError reports a decoded random-weight barcode whose
// trailing check digit does not match the computed one. The decoded fields
// are still returned alongside it so callers may warn-and-continue.
type CheckDigitMismatchError struct {
	Want int
	Got  int
}

func (e *CheckDigitMismatchError) Error() string {
	return fmt.Sprintf("check digit mismatch: got %d, want %d", e.Got, e.Want)
}

// Is lets errors.Is(err, ErrBadCheckDigit) match the mismatch error.
func (e *CheckDigitMismatchError) Is(target error) bool {
	return target == ErrBadCheckDigit
}

// Weighted is a decoded random-weight barcode: a reserved numeric prefix,
// a 5-digit item (PLU) code and a 5-digit embedded price or weight value.
// Whether ValueCents is money or grams is the caller's business rule.
type Weighted struct {
	Prefix     string
	ItemCode   string
	ValueCents int
	CheckDigit int
}

// random-weight prefixes: "2" for 12-digit UPC-A, "02" for 13-digit EAN-13
const (
	upcaWeightedPrefix  = "2"
	ean13WeightedPrefix = "02"
)

// DecodeWeighted recognizes the random-weight prefix convention and splits the
// barcode into item code and embedded value. A wrong check digit yields a
// *CheckDigitMismatchError together with the decoded fields; any other
// malformation yields ErrNotWeighted or a validation error.
func DecodeWeighted(code string) (Weighted, error) {
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return Weighted{}, fmt.Errorf("%w: non-digit %q at position %d", ErrInvalidCharset, code[i], i)
		}
	}

	var prefix string
	switch {
	case len(code) == 12 && code[:1] == upcaWeightedPrefix:
		prefix = upcaWeightedPrefix
	case len(code) == 13 && code[:2] == ean13WeightedPrefix:
		prefix = ean13WeightedPrefix
	default:
		return Weighted{}, ErrNotWeighted
	}

	body := code[len(prefix) : len(code)-1]
	// prefix + 5-digit item code + 5-digit value + check digit
	if len(body) != 10 {
		return Weighted{}, ErrNotWeighted
	}

	w := Weighted{
		Prefix:     prefix,
		ItemCode:   body[:5],
		ValueCents: atoiDigits(body[5:]),
		CheckDigit: int(code[len(code)-1] - '0'),
	}

	want, err := mod10(code[:len(code)-1])
	if err != nil {
		return Weighted{}, err
	}
	if w.CheckDigit != want {
		return w, &CheckDigitMismatchError{Want: want, Got: w.CheckDigit}
	}
	return w, nil
}

// EncodeWeighted builds a random-weight barcode for the given symbology,
// 5-digit item code and embedded value, appending the computed check digit.
func EncodeWeighted(sym Symbology, itemCode string, valueCents int) (string, error) {
	var prefix string
	switch sym {
	case UPCA:
		prefix = upcaWeightedPrefix
	case EAN13:
		prefix = ean13WeightedPrefix
	default:
		return "", fmt.Errorf("%w: %q has no random-weight form", ErrUnknownSymbology, sym)
	}

	if len(itemCode) != 5 {
		return "", fmt.Errorf("%w: item code %q, want 5 digits", ErrInvalidLength, itemCode)
	}
	for i := 0; i < len(itemCode); i++ {
		if itemCode[i] < '0' || itemCode[i] > '9' {
			return "", fmt.Errorf("%w: non-digit in item code %q", ErrInvalidCharset, itemCode)
		}
	}
	if valueCents < 0 || valueCents > 99999 {
		return "", fmt.Errorf("%w: value %d out of 5-digit range", ErrInvalidLength, valueCents)
	}

	payload := fmt.Sprintf("%s%s%05d", prefix, itemCode, valueCents)
	check, err := mod10(payload)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", payload, check), nil
}

func atoiDigits(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}
