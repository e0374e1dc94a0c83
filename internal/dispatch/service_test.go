package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mn-ibiz/label-daemon/internal/label"
	"github.com/mn-ibiz/label-daemon/internal/registry"
	"github.com/mn-ibiz/label-daemon/internal/transport"
)

type fakeCatalog struct {
	products map[string]Product
	changed  []Product
}

func (c *fakeCatalog) GetProductLabelData(_ context.Context, sku string) (Product, error) {
	p, ok := c.products[sku]
	if !ok {
		return Product{}, errors.New("producto no encontrado")
	}
	return p, nil
}

func (c *fakeCatalog) ChangedProducts(context.Context, time.Time) ([]Product, error) {
	return c.changed, nil
}

// serviceFixture builds a registry with two printers, category routing and a
// default, plus a running dispatcher over an always-succeeding transport.
func serviceFixture(t *testing.T, catalog ProductCatalog) (*Service, *registry.Store, chan Job) {
	t.Helper()
	dir := t.TempDir()
	writeJSON(t, dir, "printers.json", []registry.Printer{
		{
			ID:              "caja-1",
			Name:            "Zebra Caja 1",
			Connection:      transport.Descriptor{Kind: transport.KindNetwork, Address: "127.0.0.1:9100"},
			Language:        label.ZPL,
			DefaultTemplate: "anaquel",
		},
		{
			ID:         "bodega",
			Name:       "Zebra Bodega",
			Connection: transport.Descriptor{Kind: transport.KindNetwork, Address: "127.0.0.1:9101"},
			Language:   label.ZPL,
		},
	})
	writeJSON(t, dir, "routing.json", map[string]any{
		"category_printers": map[string]string{"abarrotes": "bodega"},
		"default_printer":   "caja-1",
	})

	reg := registry.NewStore()
	if err := reg.Load(dir); err != nil {
		t.Fatal(err)
	}
	if err := reg.AddTemplate(label.Template{
		ID:       "anaquel",
		Name:     "Precio Anaquel",
		Language: label.ZPL,
		Size:     label.Size{WidthMM: 38, HeightMM: 25, DotsPerMM: 8},
		Fields: []label.Field{
			{Type: label.FieldText, Placeholder: "ProductName", X: 8, Y: 8, Width: 280, Height: 40, PointSize: 20},
		},
	}); err != nil {
		t.Fatal(err)
	}

	done := make(chan Job, 8)
	d := NewDispatcher(fastConfig(&fakeTransport{}), reg, func(job Job) { done <- job })
	d.Start()
	t.Cleanup(d.Stop)
	return NewService(reg, d, catalog), reg, done
}

func writeJSON(t *testing.T, dir, name string, v any) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0600); err != nil {
		t.Fatal(err)
	}
}

func TestRoutingPrecedence(t *testing.T) {
	svc, _, done := serviceFixture(t, nil)

	reqs := []PrintRequest{
		{Record: label.Record{"ProductName": "Explicit"}, PrinterID: "bodega", Category: "abarrotes", TemplateID: "anaquel"},
		{Record: label.Record{"ProductName": "ByCategory"}, Category: "abarrotes", TemplateID: "anaquel"},
		{Record: label.Record{"ProductName": "ByDefault"}},
	}
	job, err := svc.PrintBatch(context.Background(), "cliente-1", reqs)
	if err != nil {
		t.Fatalf("PrintBatch: %v", err)
	}

	wantPrinters := []string{"bodega", "bodega", "caja-1"}
	for i, want := range wantPrinters {
		if job.Items[i].PrinterID != want {
			t.Errorf("item %d printer = %q, want %q", i, job.Items[i].PrinterID, want)
		}
	}
	// Third item had no template; the printer default applies.
	if job.Items[2].TemplateID != "anaquel" {
		t.Errorf("item 2 template = %q, want printer default anaquel", job.Items[2].TemplateID)
	}

	final := waitTerminal(t, done)
	if final.Status != JobCompleted {
		t.Errorf("job status = %s, want completed", final.Status)
	}
}

func TestUnroutableItemFailsInsideTheJob(t *testing.T) {
	svc, _, done := serviceFixture(t, nil)

	// bodega has no default template; the second item cannot be routed.
	reqs := []PrintRequest{
		{Record: label.Record{"ProductName": "Bien"}},
		{Record: label.Record{"ProductName": "Mal"}, PrinterID: "bodega"},
	}
	job, err := svc.PrintBatch(context.Background(), "cliente-1", reqs)
	if err != nil {
		t.Fatalf("PrintBatch: %v", err)
	}
	if job.Items[1].Status != ItemFailed {
		t.Errorf("unroutable item status = %s, want failed at submission", job.Items[1].Status)
	}
	if !strings.Contains(job.Items[1].Error, "sin plantilla") {
		t.Errorf("unroutable item error = %q, want template configuration error", job.Items[1].Error)
	}

	final := waitTerminal(t, done)
	if final.Status != JobPartiallyFailed {
		t.Errorf("job status = %s, want partially_failed", final.Status)
	}
	if final.Items[0].Status != ItemConfirmed {
		t.Errorf("routable sibling status = %s, want confirmed", final.Items[0].Status)
	}
}

func TestBatchLimits(t *testing.T) {
	svc, _, _ := serviceFixture(t, nil)

	if _, err := svc.PrintBatch(context.Background(), "c", nil); !IsConfiguration(err) {
		t.Errorf("empty batch error = %v, want ConfigurationError", err)
	}

	big := make([]PrintRequest, MaxBatchItems+1)
	for i := range big {
		big[i] = PrintRequest{Record: label.Record{"ProductName": "x"}}
	}
	if _, err := svc.PrintBatch(context.Background(), "c", big); !IsConfiguration(err) {
		t.Errorf("oversized batch error = %v, want ConfigurationError", err)
	}
}

func TestPrintSingleResolvesSKUFromCatalog(t *testing.T) {
	catalog := &fakeCatalog{products: map[string]Product{
		"7501001": {
			SKU:      "7501001",
			Category: "abarrotes",
			Record:   label.Record{"ProductName": "Frijol Negro 1kg", "Price": 38.50},
		},
	}}
	svc, _, done := serviceFixture(t, catalog)

	_, err := svc.PrintSingle(context.Background(), "c", PrintRequest{SKU: "7501001", TemplateID: "anaquel"})
	if err != nil {
		t.Fatalf("PrintSingle: %v", err)
	}
	job := waitTerminal(t, done)

	// Category came from the catalog, so routing picked bodega.
	if job.Items[0].PrinterID != "bodega" {
		t.Errorf("printer = %q, want bodega via catalog category", job.Items[0].PrinterID)
	}
	if job.Items[0].Record["ProductName"] != "Frijol Negro 1kg" {
		t.Errorf("record not taken from catalog: %v", job.Items[0].Record)
	}
}

func TestPrintPriceChanges(t *testing.T) {
	catalog := &fakeCatalog{changed: []Product{
		{SKU: "a", Record: label.Record{"ProductName": "Uno"}},
		{SKU: "b", Category: "abarrotes", Record: label.Record{"ProductName": "Dos"}},
	}}
	svc, _, done := serviceFixture(t, catalog)

	job, err := svc.PrintPriceChanges(context.Background(), "c", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("PrintPriceChanges: %v", err)
	}
	if len(job.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(job.Items))
	}
	if job.Items[0].PrinterID != "caja-1" || job.Items[1].PrinterID != "bodega" {
		t.Errorf("routing = %q/%q, want caja-1/bodega",
			job.Items[0].PrinterID, job.Items[1].PrinterID)
	}
	waitTerminal(t, done)
}

func TestPrintPriceChangesWithoutCatalog(t *testing.T) {
	svc, _, _ := serviceFixture(t, nil)
	if _, err := svc.PrintPriceChanges(context.Background(), "c", time.Now()); !IsConfiguration(err) {
		t.Errorf("err = %v, want ConfigurationError when no catalog is wired", err)
	}
}

func TestJobStatusAndCancelUnknownJob(t *testing.T) {
	svc, _, _ := serviceFixture(t, nil)
	if _, err := svc.GetJobStatus("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("GetJobStatus err = %v, want ErrJobNotFound", err)
	}
	if _, err := svc.Cancel("nope"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Cancel err = %v, want ErrJobNotFound", err)
	}
}

func TestImportExportTemplate(t *testing.T) {
	svc, reg, _ := serviceFixture(t, nil)

	exported, err := svc.ExportTemplate("anaquel")
	if err != nil {
		t.Fatalf("ExportTemplate: %v", err)
	}

	imported, err := svc.ImportTemplate(exported, "")
	if err != nil {
		t.Fatalf("ImportTemplate: %v", err)
	}
	if imported.ID == "" || imported.ID == "anaquel" {
		t.Errorf("imported template should get a fresh ID, got %q", imported.ID)
	}
	if _, ok := reg.Template(imported.ID); !ok {
		t.Error("imported template not stored in the registry")
	}
}

func TestImportRejectionStoresNothing(t *testing.T) {
	svc, reg, _ := serviceFixture(t, nil)
	before := len(reg.Templates())

	bad := []byte(`{"formatVersion": "9.7", "name": "x", "language": "zpl",
		"size": {"width_mm": 38, "height_mm": 25, "dots_per_mm": 8}, "fields": []}`)
	_, err := svc.ImportTemplate(bad, "")
	var fe *label.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want FormatError", err)
	}
	if got := len(reg.Templates()); got != before {
		t.Errorf("registry grew from %d to %d templates on a rejected import", before, got)
	}
}

func TestExportUnknownTemplate(t *testing.T) {
	svc, _, _ := serviceFixture(t, nil)
	if _, err := svc.ExportTemplate("nope"); !IsConfiguration(err) {
		t.Errorf("err = %v, want ConfigurationError", err)
	}
}
