package label

import (
	"encoding/json"
	"fmt"
)

// DocumentVersion is the portable template format this build reads and writes.
const DocumentVersion = "1.0"

// FormatError rejects a portable document wholesale: unknown version,
// unparsable body or incompatible label size. Nothing is partially imported.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "template document: " + e.Reason
}

// Document is the self-describing portable form of a template, used to move
// designs between installations. The template identity is deliberately not
// part of the document; the importing side assigns its own.
type Document struct {
	FormatVersion string   `json:"formatVersion"`
	Name          string   `json:"name"`
	Language      Language `json:"language"`
	Size          Size     `json:"size"`
	Promotional   bool     `json:"promotional,omitempty"`
	Fields        []Field  `json:"fields"`
}

// Export serializes a template into its portable document. Output is
// deterministic: identical templates always yield byte-identical documents,
// and import followed by export round-trips exactly.
func Export(t Template) ([]byte, error) {
	doc := Document{
		FormatVersion: DocumentVersion,
		Name:          t.Name,
		Language:      t.Language,
		Size:          t.Size,
		Promotional:   t.Promotional,
		Fields:        t.Fields,
	}
	doc.Size.ID = "" // stock identity is installation-local
	if doc.Fields == nil {
		doc.Fields = []Field{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export template %q: %w", t.Name, err)
	}
	return append(data, '\n'), nil
}

// Import parses a portable document into a template with no ID assigned; the
// caller registers it and hands out the reference. A non-nil targetSize pins
// the imported design to local stock and rejects dimension mismatches.
func Import(data []byte, targetSize *Size) (Template, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Template{}, &FormatError{Reason: fmt.Sprintf("invalid document body: %v", err)}
	}

	if doc.FormatVersion != DocumentVersion {
		return Template{}, &FormatError{
			Reason: fmt.Sprintf("unknown formatVersion %q (supported: %s)", doc.FormatVersion, DocumentVersion),
		}
	}
	if !KnownLanguage(doc.Language) {
		return Template{}, &FormatError{Reason: fmt.Sprintf("unknown language %q", doc.Language)}
	}
	if !doc.Size.Valid() {
		return Template{}, &FormatError{Reason: "label size has non-positive dimensions"}
	}

	size := doc.Size
	if targetSize != nil {
		if targetSize.WidthMM != doc.Size.WidthMM ||
			targetSize.HeightMM != doc.Size.HeightMM ||
			targetSize.DotsPerMM != doc.Size.DotsPerMM {
			return Template{}, &FormatError{
				Reason: fmt.Sprintf("document size %gx%gmm@%d does not match target stock %gx%gmm@%d",
					doc.Size.WidthMM, doc.Size.HeightMM, doc.Size.DotsPerMM,
					targetSize.WidthMM, targetSize.HeightMM, targetSize.DotsPerMM),
			}
		}
		size = *targetSize
	}

	t := Template{
		Name:        doc.Name,
		Language:    doc.Language,
		Size:        size,
		Fields:      doc.Fields,
		Promotional: doc.Promotional,
	}
	if t.Fields == nil {
		t.Fields = []Field{}
	}
	return t, nil
}
