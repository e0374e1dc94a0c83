package dispatch

import (
	"errors"
	"fmt"
)

// ErrJobNotFound is returned when a job ID references no known job.
var ErrJobNotFound = errors.New("job not found")

// ConfigurationError means an item cannot be dispatched at all: no printer
// could be resolved, the template is unknown, or the template language does
// not match the printer. These fail immediately; retrying cannot help.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuración inválida: %s", e.Reason)
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
