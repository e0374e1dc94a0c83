package label

import "github.com/mn-ibiz/label-daemon/internal/barcode"

// FieldType tags the variant of a template field.
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldBarcode FieldType = "barcode"
	FieldPrice   FieldType = "price"
	FieldQRCode  FieldType = "qrcode"
	FieldImage   FieldType = "image"
	FieldBox     FieldType = "box"
	FieldLine    FieldType = "line"
)

// Alignment options for text fields.
const (
	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"
)

// Field is one positioned element of a label template. Geometry is in dots
// at the template's configured resolution; rotation is 0/90/180/270.
//
// Text, Price and Barcode fields carry a placeholder key resolved against a
// data record at render time. The remaining attributes are type-specific and
// ignored by the other variants.
type Field struct {
	Type        FieldType `json:"type"`
	Placeholder string    `json:"placeholder,omitempty"`

	X        int `json:"x"`
	Y        int `json:"y"`
	Width    int `json:"width"`
	Height   int `json:"height"`
	Rotation int `json:"rotation,omitempty"`

	// Text / Price
	Font      string `json:"font,omitempty"`
	PointSize int    `json:"point_size,omitempty"`
	Bold      bool   `json:"bold,omitempty"`
	Align     string `json:"align,omitempty"`

	// Price
	Currency string `json:"currency,omitempty"`

	// Barcode
	Symbology   barcode.Symbology `json:"symbology,omitempty"`
	ModuleWidth int               `json:"module_width,omitempty"`
	BarHeight   int               `json:"bar_height,omitempty"`
	ShowText    bool              `json:"show_text,omitempty"`

	// Image
	Source string `json:"source,omitempty"`

	// Box / Line
	Stroke int `json:"stroke,omitempty"`
}

// NormalRotation clamps the rotation to one of the four supported quarters.
func (f Field) NormalRotation() int {
	switch f.Rotation {
	case 90, 180, 270:
		return f.Rotation
	default:
		return 0
	}
}

// Bound reports whether the field resolves a placeholder at render time.
// Image, box and line fields draw from their own attributes and ignore the
// data record.
func (f Field) Bound() bool {
	switch f.Type {
	case FieldText, FieldPrice, FieldBarcode, FieldQRCode:
		return true
	default:
		return false
	}
}
