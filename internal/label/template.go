package label

import "fmt"

// Language is a printer command dialect a template targets.
type Language string

const (
	ZPL  Language = "zpl"
	EPL  Language = "epl"
	TSPL Language = "tspl"
	Raw  Language = "raw"
)

// KnownLanguage reports whether l is one of the four supported dialects.
func KnownLanguage(l Language) bool {
	switch l {
	case ZPL, EPL, TSPL, Raw:
		return true
	}
	return false
}

// Template is a label design: a target dialect, the stock size and an ordered
// list of positioned fields. Promotional marks price-change/offer layouts.
type Template struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Language    Language `json:"language"`
	Size        Size     `json:"size"`
	Fields      []Field  `json:"fields"`
	Promotional bool     `json:"promotional,omitempty"`
}

// Validate soft-checks the template geometry. Fields whose origin plus extent
// exceeds the label bounds produce warnings, never errors: generators clip at
// render time so a slightly off design still prints.
func (t Template) Validate() []string {
	var warnings []string

	if t.Name == "" {
		warnings = append(warnings, "template has no name")
	}
	if !KnownLanguage(t.Language) {
		warnings = append(warnings, fmt.Sprintf("unknown language %q", t.Language))
	}
	if !t.Size.Valid() {
		warnings = append(warnings, "label size has non-positive dimensions")
		return warnings
	}

	w, h := t.Size.WidthDots(), t.Size.HeightDots()
	for i, f := range t.Fields {
		if f.X < 0 || f.Y < 0 {
			warnings = append(warnings, fmt.Sprintf("field %d (%s): negative origin (%d,%d)", i, f.Type, f.X, f.Y))
		}
		if f.X+f.Width > w || f.Y+f.Height > h {
			warnings = append(warnings,
				fmt.Sprintf("field %d (%s): extent (%d,%d)+(%d,%d) exceeds label %dx%d dots, will be clipped",
					i, f.Type, f.X, f.Y, f.Width, f.Height, w, h))
		}
	}
	return warnings
}
