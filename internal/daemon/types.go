package daemon

import (
	"github.com/mn-ibiz/label-daemon/internal/registry"
)

// HealthResponse representa el estado de salud del servicio de etiquetas.
type HealthResponse struct {
	Status     string           `json:"status"`
	Jobs       JobsStatus       `json:"jobs"`
	Dispatcher DispatcherStatus `json:"dispatcher"`
	Printers   registry.Summary `json:"printers"`
	Clients    int              `json:"clients"`
	Build      BuildInfo        `json:"build"`
	Uptime     int              `json:"uptime_seconds"`
}

// JobsStatus representa el estado del historial de trabajos.
type JobsStatus struct {
	Active int `json:"active"`
	Total  int `json:"total"`
}

// DispatcherStatus representa el estado del despachador de impresión.
type DispatcherStatus struct {
	Running      bool  `json:"running"`
	ItemsPrinted int64 `json:"items_printed"`
	ItemsFailed  int64 `json:"items_failed"`
}

// BuildInfo contiene información sobre la compilación del servicio.
type BuildInfo struct {
	Env  string `json:"env"`
	Date string `json:"date"`
	Time string `json:"time"`
}
