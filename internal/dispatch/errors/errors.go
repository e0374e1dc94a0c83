// Package dispatcherrors maps internal error chains to the short messages
// shown to collaborators over the WebSocket interface. Full detail stays in
// the daemon log; clients get a category and a hint.
package dispatcherrors

import (
	"fmt"
	"strings"
)

// ExtractUserFriendlyError creates a clean error message for the client UI.
func ExtractUserFriendlyError(err error) string {
	errStr := err.Error()

	// Common error patterns and their friendly messages
	errorMappings := []struct {
		pattern string
		message string
	}{
		{"unknown symbology", "BARCODE: Unknown symbology (use ean13, upca or code128)"},
		{"invalid length", "BARCODE: Wrong number of digits for the symbology"},
		{"invalid charset", "BARCODE: Data contains characters the symbology cannot encode"},
		{"bad check digit", "BARCODE: Check digit does not match the payload"},
		{"check digit mismatch", "BARCODE: Check digit does not match the payload"},
		{"not a random-weight barcode", "BARCODE: Code has no random-weight prefix (2 or 02)"},
		{"unknown formatVersion", "TEMPLATE: Unsupported document format version"},
		{"unknown language", "TEMPLATE: Unsupported printer language in document"},
		{"does not match target stock", "TEMPLATE: Document size does not match the selected stock"},
		{"invalid document body", "TEMPLATE: Invalid JSON document"},
		{"plantilla desconocida", "TEMPLATE: Template not found"},
		{"tamaño desconocido", "TEMPLATE: Stock size not found"},
		{"no generator for language", "TEMPLATE: No generator for the template's language"},
		{"impresora desconocida", "PRINTER: Printer not registered"},
		{"sin impresora", "PRINTER: No printer resolved - set one explicitly or configure a default"},
		{"sin plantilla", "PRINTER: Printer has no default template"},
		{"host reachable, connection refused", "TRANSPORT: Printer port closed - check the print service"},
		{"host unreachable", "TRANSPORT: Printer unreachable - check network and address"},
		{"cola de impresión llena", "QUEUE: Printer queue is full, retry shortly"},
		{"lote vacío", "BATCH: Batch contains no items"},
		{"excede el máximo", "BATCH: Batch exceeds the maximum item count"},
		{"catálogo de productos no configurado", "CATALOG: No product catalog connected"},
		{"sin cambios de precio", "CATALOG: No price changes since the given time"},
		{"job not found", "JOB: Unknown job ID"},
	}

	// Check for matching patterns
	for _, mapping := range errorMappings {
		if strings.Contains(strings.ToLower(errStr), strings.ToLower(mapping.pattern)) {
			return mapping.message
		}
	}

	// Categorize by error source
	if strings.Contains(errStr, "configuración inválida") {
		return fmt.Sprintf("CONFIG: %s", extractInnerError(errStr))
	}
	if strings.Contains(errStr, "transport ") {
		return fmt.Sprintf("TRANSPORT: %s", extractInnerError(errStr))
	}
	if strings.Contains(errStr, "generando etiqueta") {
		return fmt.Sprintf("GENERATE: %s", extractInnerError(errStr))
	}

	// Fallback: return cleaned error
	return fmt.Sprintf("ERROR: %s", cleanErrorMessage(errStr))
}

// extractInnerError gets the innermost error message
func extractInnerError(errStr string) string {
	// Find the last colon-separated segment
	parts := strings.Split(errStr, ": ")
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return errStr
}

// cleanErrorMessage removes verbose prefixes
func cleanErrorMessage(errStr string) string {
	// Remove common prefixes
	prefixes := []string{
		"configuración inválida: ",
		"generando etiqueta: ",
		"consultando producto ",
		"consultando cambios de precio: ",
	}
	result := errStr
	for _, prefix := range prefixes {
		result = strings.TrimPrefix(result, prefix)
	}
	return result
}
