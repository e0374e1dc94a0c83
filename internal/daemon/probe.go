package daemon

import (
	"context"
	"log"
	"time"

	"github.com/mn-ibiz/label-daemon/internal/registry"
	"github.com/mn-ibiz/label-daemon/internal/transport"
)

// TransportFactory builds a transport for a printer descriptor. Swapped in
// tests.
type TransportFactory func(transport.Descriptor) (transport.Transport, error)

// PrinterProber periodically checks every registered printer and caches the
// result in the registry. Probes run off the dispatch path and are bounded
// by short timeouts, so a dead printer never slows down printing.
type PrinterProber struct {
	reg      *registry.Store
	interval time.Duration
	open     TransportFactory
}

// NewPrinterProber creates a prober. open may be nil to use the real
// transports.
func NewPrinterProber(reg *registry.Store, interval time.Duration, open TransportFactory) *PrinterProber {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if open == nil {
		open = transport.New
	}
	return &PrinterProber{reg: reg, interval: interval, open: open}
}

// Run probes all printers immediately, then on every tick until ctx ends.
func (pp *PrinterProber) Run(ctx context.Context) {
	pp.ProbeAll(ctx)

	ticker := time.NewTicker(pp.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("[PROBE] 📴 Probe loop stopped")
			return
		case <-ticker.C:
			pp.ProbeAll(ctx)
		}
	}
}

// ProbeAll checks every registered printer once and updates the health cache.
func (pp *PrinterProber) ProbeAll(ctx context.Context) {
	for _, p := range pp.reg.Printers() {
		health := pp.probeOne(ctx, p)
		prev := pp.reg.HealthOf(p.ID).Health
		pp.reg.SetHealth(p.ID, health)
		if health != prev {
			log.Printf("[PROBE] 🔔 Printer %s: %s -> %s", p.ID, prev, health)
		} else {
			log.Printf("[PROBE] 💓 Printer %s: %s", p.ID, health)
		}
	}
}

func (pp *PrinterProber) probeOne(ctx context.Context, p registry.Printer) transport.Health {
	tr, err := pp.open(p.Connection)
	if err != nil {
		log.Printf("[PROBE] ⚠️ Printer %s has an invalid connection: %v", p.ID, err)
		return transport.HealthUnknown
	}
	return tr.Probe(ctx)
}

// LogStartupDiagnostics logs the registered printers and their first probe
// at service start.
func (pp *PrinterProber) LogStartupDiagnostics(ctx context.Context) {
	printers := pp.reg.Printers()

	log.Println("[PRINTERS] ══════════════════════════════════════════════════")
	log.Printf("[PRINTERS] 🖨️ %d registered printer(s)", len(printers))
	if len(printers) == 0 {
		log.Println("[PRINTERS] ⚠️ No printers registered! Check printers.json in the data directory")
	}

	pp.ProbeAll(ctx)
	for _, p := range printers {
		state := pp.reg.HealthOf(p.ID)
		mark := ""
		if p.ID == pp.reg.DefaultPrinterID() {
			mark = " ⭐"
		}
		log.Printf("[PRINTERS]    • %s [%s] %s (%s)%s", p.Name, p.Connection.String(), p.Language, state.Health, mark)
	}
	log.Println("[PRINTERS] ══════════════════════════════════════════════════")
}
