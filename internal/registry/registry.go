// Package registry holds the read-mostly reference data dispatch works from:
// printer registrations, label templates, stock sizes and category routing.
// Records load from JSON files in the data directory; a couple of built-in
// templates ship embedded in the binary so a fresh install can print.
package registry

import (
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mn-ibiz/label-daemon/internal/label"
	"github.com/mn-ibiz/label-daemon/internal/transport"
)

//go:embed defaults/*.json
var defaultTemplates embed.FS

// Printer is one registered label printer.
type Printer struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Connection      transport.Descriptor `json:"connection"`
	Language        label.Language       `json:"language"`
	DefaultTemplate string               `json:"default_template,omitempty"`
}

// HealthState is the last probe result for a printer.
type HealthState struct {
	Health    transport.Health `json:"health"`
	CheckedAt time.Time        `json:"checked_at,omitempty"`
}

// Summary is the lightweight printer overview served by /health.
type Summary struct {
	Status      string `json:"status"` // "ok", "warning", "error"
	Total       int    `json:"total"`
	Online      int    `json:"online"`
	Offline     int    `json:"offline"`
	DefaultName string `json:"default_name,omitempty"`
}

// routing maps product categories to printers, with a tenant default.
type routing struct {
	CategoryPrinters map[string]string `json:"category_printers"`
	DefaultPrinter   string            `json:"default_printer"`
}

// Store is the thread-safe registry. Dispatch reads it on every job; writes
// happen at load time, on template import and on health probes.
type Store struct {
	mu        sync.RWMutex
	dataDir   string
	printers  map[string]Printer
	templates map[string]label.Template
	sizes     map[string]label.Size
	routes    routing
	health    map[string]HealthState
}

// NewStore returns an empty registry with the embedded templates loaded.
func NewStore() *Store {
	s := &Store{
		printers:  make(map[string]Printer),
		templates: make(map[string]label.Template),
		sizes:     make(map[string]label.Size),
		routes:    routing{CategoryPrinters: make(map[string]string)},
		health:    make(map[string]HealthState),
	}
	s.loadEmbeddedDefaults()
	return s
}

// Load reads printers.json, templates.json, sizes.json and routing.json from
// dataDir. Missing files are fine; a fresh install starts with defaults only.
func (s *Store) Load(dataDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataDir = dataDir

	var printers []Printer
	if err := readJSONFile(filepath.Join(dataDir, "printers.json"), &printers); err != nil {
		return fmt.Errorf("load printers: %w", err)
	}
	for _, p := range printers {
		if p.ID == "" {
			return fmt.Errorf("load printers: printer %q has no id", p.Name)
		}
		s.printers[p.ID] = p
		s.health[p.ID] = HealthState{Health: transport.HealthUnknown}
	}

	var templates []label.Template
	if err := readJSONFile(filepath.Join(dataDir, "templates.json"), &templates); err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	for _, t := range templates {
		if t.ID == "" {
			return fmt.Errorf("load templates: template %q has no id", t.Name)
		}
		s.templates[t.ID] = t
	}

	var sizes []label.Size
	if err := readJSONFile(filepath.Join(dataDir, "sizes.json"), &sizes); err != nil {
		return fmt.Errorf("load sizes: %w", err)
	}
	for _, sz := range sizes {
		s.sizes[sz.ID] = sz
	}

	var routes routing
	if err := readJSONFile(filepath.Join(dataDir, "routing.json"), &routes); err != nil {
		return fmt.Errorf("load routing: %w", err)
	}
	if routes.CategoryPrinters != nil || routes.DefaultPrinter != "" {
		if routes.CategoryPrinters == nil {
			routes.CategoryPrinters = make(map[string]string)
		}
		s.routes = routes
	}

	log.Printf("[REGISTRY] 📇 Loaded %d printer(s), %d template(s), %d size(s) from %s",
		len(s.printers), len(s.templates), len(s.sizes), dataDir)
	return nil
}

func (s *Store) loadEmbeddedDefaults() {
	entries, err := defaultTemplates.ReadDir("defaults")
	if err != nil {
		return
	}
	for _, e := range entries {
		data, err := defaultTemplates.ReadFile("defaults/" + e.Name())
		if err != nil {
			continue
		}
		t, err := label.Import(data, nil)
		if err != nil {
			log.Printf("[REGISTRY] ⚠️ Skipping embedded template %s: %v", e.Name(), err)
			continue
		}
		t.ID = "builtin-" + strings.TrimSuffix(e.Name(), ".json")
		s.templates[t.ID] = t
	}
}

// Printer looks up a registered printer.
func (s *Store) Printer(id string) (Printer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.printers[id]
	return p, ok
}

// Printers lists registrations sorted by ID.
func (s *Store) Printers() []Printer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Printer, 0, len(s.printers))
	for _, p := range s.printers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddPrinter registers or replaces a printer.
func (s *Store) AddPrinter(p Printer) error {
	if p.ID == "" {
		return fmt.Errorf("printer has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printers[p.ID] = p
	if _, ok := s.health[p.ID]; !ok {
		s.health[p.ID] = HealthState{Health: transport.HealthUnknown}
	}
	return nil
}

// Template looks up a template by reference.
func (s *Store) Template(id string) (label.Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	return t, ok
}

// Templates lists templates sorted by ID.
func (s *Store) Templates() []label.Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]label.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AddTemplate stores a template and persists the non-builtin set when a data
// directory is configured.
func (s *Store) AddTemplate(t label.Template) error {
	if t.ID == "" {
		return fmt.Errorf("template has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
	return s.persistTemplatesLocked()
}

func (s *Store) persistTemplatesLocked() error {
	if s.dataDir == "" {
		return nil
	}
	var out []label.Template
	for _, t := range s.templates {
		if strings.HasPrefix(t.ID, "builtin-") {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("persist templates: %w", err)
	}
	path := filepath.Join(s.dataDir, "templates.json")
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("persist templates: %w", err)
	}
	return nil
}

// Size looks up a stock size.
func (s *Store) Size(id string) (label.Size, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sz, ok := s.sizes[id]
	return sz, ok
}

// PrinterForCategory resolves the category → printer assignment.
func (s *Store) PrinterForCategory(category string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.routes.CategoryPrinters[category]
	return id, ok
}

// SetDefaultPrinter overrides the fallback printer, used when routing.json
// names none but the environment does.
func (s *Store) SetDefaultPrinter(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes.DefaultPrinter = id
}

// DefaultPrinterID returns the tenant's configured fallback printer.
func (s *Store) DefaultPrinterID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.routes.DefaultPrinter
}

// DefaultTemplateFor resolves a printer's default template reference.
func (s *Store) DefaultTemplateFor(printerID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.printers[printerID]
	if !ok || p.DefaultTemplate == "" {
		return "", false
	}
	return p.DefaultTemplate, true
}

// SetHealth records a probe result. Health is owned by the probe loop; the
// registry only caches the latest state per printer.
func (s *Store) SetHealth(printerID string, h transport.Health) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health[printerID] = HealthState{Health: h, CheckedAt: time.Now()}
}

// HealthOf returns the last-known health of a printer.
func (s *Store) HealthOf(printerID string) HealthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.health[printerID]
	if !ok {
		return HealthState{Health: transport.HealthUnknown}
	}
	return st
}

// Summary aggregates printer health for the health endpoint.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{Total: len(s.printers)}
	for id := range s.printers {
		switch s.health[id].Health {
		case transport.HealthOnline:
			sum.Online++
		case transport.HealthOffline:
			sum.Offline++
		}
	}
	if p, ok := s.printers[s.routes.DefaultPrinter]; ok {
		sum.DefaultName = p.Name
	}

	switch {
	case sum.Total == 0:
		sum.Status = "error"
	case sum.Offline > 0 && sum.Online == 0:
		sum.Status = "error"
	case sum.Offline > 0:
		sum.Status = "warning"
	default:
		sum.Status = "ok"
	}
	return sum
}

// readJSONFile decodes path into v; a missing file leaves v untouched.
func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}
