package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/mn-ibiz/label-daemon/internal/registry"
	"github.com/mn-ibiz/label-daemon/internal/transport"
)

type staticTransport struct{ health transport.Health }

func (s staticTransport) Open(context.Context) (transport.Conn, error) { return nil, nil }
func (s staticTransport) Probe(context.Context) transport.Health       { return s.health }

func TestProbeAllUpdatesHealthCache(t *testing.T) {
	reg := registry.NewStore()
	healthByAddr := map[string]transport.Health{
		"10.0.0.1:9100": transport.HealthOnline,
		"10.0.0.2:9100": transport.HealthOffline,
	}
	printers := map[string]string{"viva": "10.0.0.1:9100", "muerta": "10.0.0.2:9100"}
	for id, addr := range printers {
		if err := reg.AddPrinter(registry.Printer{
			ID:         id,
			Name:       id,
			Connection: transport.Descriptor{Kind: transport.KindNetwork, Address: addr},
		}); err != nil {
			t.Fatal(err)
		}
	}

	pp := NewPrinterProber(reg, time.Minute, func(d transport.Descriptor) (transport.Transport, error) {
		return staticTransport{health: healthByAddr[d.Address]}, nil
	})
	pp.ProbeAll(context.Background())

	if got := reg.HealthOf("viva").Health; got != transport.HealthOnline {
		t.Errorf("viva health = %v, want online", got)
	}
	if got := reg.HealthOf("muerta").Health; got != transport.HealthOffline {
		t.Errorf("muerta health = %v, want offline", got)
	}
	if got := reg.Summary().Status; got != "warning" {
		t.Errorf("summary status = %q, want warning with one printer down", got)
	}
}

func TestProbeAllHandlesInvalidDescriptor(t *testing.T) {
	reg := registry.NewStore()
	if err := reg.AddPrinter(registry.Printer{
		ID:         "rota",
		Name:       "rota",
		Connection: transport.Descriptor{Kind: transport.KindNetwork},
	}); err != nil {
		t.Fatal(err)
	}

	// The real factory rejects a network descriptor without an address.
	pp := NewPrinterProber(reg, time.Minute, nil)
	pp.ProbeAll(context.Background())

	if got := reg.HealthOf("rota").Health; got != transport.HealthUnknown {
		t.Errorf("health = %v, want unknown for invalid descriptor", got)
	}
}

func TestNewPrinterProberDefaults(t *testing.T) {
	pp := NewPrinterProber(registry.NewStore(), 0, nil)
	if pp.interval != 30*time.Second {
		t.Errorf("default interval = %v, want 30s", pp.interval)
	}
	if pp.open == nil {
		t.Error("open factory should default to the real transports")
	}
}
