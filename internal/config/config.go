// Package config defines environment-specific settings for the R2k Label Servicio.
package config

import (
	"log"
	"path/filepath"
	"strings"
	"time"
)

// Build variables, injected at compile time
var (
	BuildEnvironment = "local"
	BuildDate        = "unknown"
	BuildTime        = "unknown"
	// ServiceName is used for logging and as part of the log file path.
	ServiceName = "R2k_LabelServicio_Unknown"
	// SubmitTokenHashB64 is a base64-encoded bcrypt hash injected via ldflags.
	// If empty, print job submissions are accepted without token validation (dev mode).
	SubmitTokenHashB64 = ""
	// ServerPort is the default port for the service, can be overridden by environment config.
	ServerPort = "8767"
	// AllowedOrigins is a comma-separated list of allowed origins injected via ldflags.
	// Example: "https://pos.example.com,http://localhost:*"
	AllowedOrigins = ""
)

// Environment holds environment-specific settings
type Environment struct {
	// Identificación
	Name        string
	ServiceName string

	// Red
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Cola
	QueueCapacity int
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffCap    time.Duration

	// Registro de impresoras y plantillas
	DataDir        string
	DefaultPrinter string

	// Sondeo de salud
	ProbeInterval time.Duration

	// Retención del historial de trabajos
	JobRetention time.Duration

	// Logging
	Verbose bool

	// Security
	AllowedOrigins []string
}

// LogPath returns the full log file path for this environment.
// Uses the convention: <programData>/<ServiceName>/<ServiceName>.log
func (e Environment) LogPath(programData string) string {
	return filepath.Join(programData, e.ServiceName, e.ServiceName+".log")
}

// DataPath returns the registry data directory for this environment.
func (e Environment) DataPath(programData string) string {
	if e.DataDir != "" {
		return e.DataDir
	}
	return filepath.Join(programData, e.ServiceName, "data")
}

// environments defines available deployment configurations
var environments = map[string]Environment{
	"remote": {
		Name:          "REMOTO",
		ServiceName:   ServiceName,
		ListenAddr:    "0.0.0.0:" + ServerPort,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		QueueCapacity: 64,
		MaxRetries:    3,
		BackoffBase:   250 * time.Millisecond,
		BackoffCap:    2 * time.Second,
		ProbeInterval: 60 * time.Second,
		JobRetention:  24 * time.Hour,
		Verbose:       false,
		// By default, restrict to localhost and file (Electron) for security
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*", "file://*"},
	},
	"local": {
		Name:           "LOCAL",
		ServiceName:    ServiceName,
		ListenAddr:     "localhost:" + ServerPort,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		QueueCapacity:  64,
		MaxRetries:     3,
		BackoffBase:    250 * time.Millisecond,
		BackoffCap:     2 * time.Second,
		ProbeInterval:  30 * time.Second,
		JobRetention:   24 * time.Hour,
		DefaultPrinter: "caja-1",
		Verbose:        true,
		// Allow all in local dev mode for convenience, but can be overridden
		AllowedOrigins: []string{"*"},
	},
}

// GetEnvironment returns config for the specified environment.
func GetEnvironment(env string) Environment {
	cfg, ok := environments[env]
	if !ok {
		log.Printf("[!] Unknown environment '%s', defaulting to 'local'", env)
		cfg = environments["local"]
	}

	// Override allowed origins from ldflags if provided
	if AllowedOrigins != "" {
		cfg.AllowedOrigins = strings.Split(AllowedOrigins, ",")
	}

	return cfg
}
