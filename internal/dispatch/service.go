package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mn-ibiz/label-daemon/internal/label"
	"github.com/mn-ibiz/label-daemon/internal/registry"
)

// MaxBatchItems caps one submission. Bigger pushes should be split by the
// collaborator; a runaway batch must not monopolize the queues.
const MaxBatchItems = 500

// Product is the label-relevant view of a catalog product.
type Product struct {
	SKU         string       `json:"sku"`
	Category    string       `json:"category,omitempty"`
	Promotional bool         `json:"promotional,omitempty"`
	Record      label.Record `json:"record"`
}

// ProductCatalog is the collaborator that owns product data. The daemon
// never stores prices; it asks for them at submission time.
type ProductCatalog interface {
	GetProductLabelData(ctx context.Context, sku string) (Product, error)
	ChangedProducts(ctx context.Context, since time.Time) ([]Product, error)
}

// PrintRequest is one label ask from a collaborator. Either Record carries
// the placeholder values inline or SKU names a product to look up.
type PrintRequest struct {
	SKU        string       `json:"sku,omitempty"`
	Record     label.Record `json:"record,omitempty"`
	Category   string       `json:"category,omitempty"`
	PrinterID  string       `json:"printer_id,omitempty"`
	TemplateID string       `json:"template_id,omitempty"`
	Copies     int          `json:"copies,omitempty"`
}

// Service is the external surface of the subsystem: submissions, status,
// cancellation and template exchange. The WS server is a thin shim over it.
type Service struct {
	reg     *registry.Store
	disp    *Dispatcher
	catalog ProductCatalog // may be nil when no collaborator is wired
}

// NewService wires the service over a registry and dispatcher. catalog may
// be nil; price-change runs then fail with a configuration error.
func NewService(reg *registry.Store, disp *Dispatcher, catalog ProductCatalog) *Service {
	return &Service{reg: reg, disp: disp, catalog: catalog}
}

// PrintSingle queues one label and returns the job snapshot.
func (s *Service) PrintSingle(ctx context.Context, clientID string, req PrintRequest) (Job, error) {
	return s.PrintBatch(ctx, clientID, []PrintRequest{req})
}

// PrintBatch queues a batch. Items that cannot be routed fail immediately
// inside the job; routable items still print. The returned snapshot is the
// synchronous ack; completion is pushed via the dispatcher callback.
func (s *Service) PrintBatch(ctx context.Context, clientID string, reqs []PrintRequest) (Job, error) {
	if len(reqs) == 0 {
		return Job{}, &ConfigurationError{Reason: "lote vacío"}
	}
	if len(reqs) > MaxBatchItems {
		return Job{}, &ConfigurationError{Reason: fmt.Sprintf("lote de %d excede el máximo de %d", len(reqs), MaxBatchItems)}
	}

	job := &Job{
		ID:       uuid.NewString(),
		ClientID: clientID,
		Items:    make([]Item, len(reqs)),
	}
	for i, req := range reqs {
		item := Item{Index: i, Copies: req.Copies, Status: ItemPending}
		if err := s.buildItem(ctx, req, &item); err != nil {
			item.Status = ItemFailed
			item.Error = err.Error()
		}
		job.Items[i] = item
	}

	if err := s.disp.Enqueue(job); err != nil {
		return Job{}, err
	}
	snap, _ := s.disp.JobSnapshot(job.ID)
	return snap, nil
}

// buildItem resolves the record, the target printer and the template for one
// request. Routing order: explicit printer, then the category assignment,
// then the tenant default. Template order: explicit, then printer default.
func (s *Service) buildItem(ctx context.Context, req PrintRequest, item *Item) error {
	record := req.Record
	if record == nil {
		if req.SKU == "" {
			return &ConfigurationError{Reason: "sin datos: se requiere record o sku"}
		}
		if s.catalog == nil {
			return &ConfigurationError{Reason: "catálogo de productos no configurado"}
		}
		product, err := s.catalog.GetProductLabelData(ctx, req.SKU)
		if err != nil {
			return fmt.Errorf("consultando producto %s: %w", req.SKU, err)
		}
		record = product.Record
		if req.Category == "" {
			req.Category = product.Category
		}
	}
	item.Record = record

	printerID := req.PrinterID
	if printerID == "" && req.Category != "" {
		printerID, _ = s.reg.PrinterForCategory(req.Category)
	}
	if printerID == "" {
		printerID = s.reg.DefaultPrinterID()
	}
	if printerID == "" {
		return &ConfigurationError{Reason: "sin impresora: ni explícita, ni por categoría, ni predeterminada"}
	}
	if _, ok := s.reg.Printer(printerID); !ok {
		return &ConfigurationError{Reason: fmt.Sprintf("impresora desconocida: %s", printerID)}
	}
	item.PrinterID = printerID

	templateID := req.TemplateID
	if templateID == "" {
		templateID, _ = s.reg.DefaultTemplateFor(printerID)
	}
	if templateID == "" {
		return &ConfigurationError{Reason: fmt.Sprintf("sin plantilla para impresora %s", printerID)}
	}
	if _, ok := s.reg.Template(templateID); !ok {
		return &ConfigurationError{Reason: fmt.Sprintf("plantilla desconocida: %s", templateID)}
	}
	item.TemplateID = templateID
	return nil
}

// PrintPriceChanges asks the catalog for products changed since the given
// time and queues a relabel batch for them.
func (s *Service) PrintPriceChanges(ctx context.Context, clientID string, since time.Time) (Job, error) {
	if s.catalog == nil {
		return Job{}, &ConfigurationError{Reason: "catálogo de productos no configurado"}
	}
	products, err := s.catalog.ChangedProducts(ctx, since)
	if err != nil {
		return Job{}, fmt.Errorf("consultando cambios de precio: %w", err)
	}
	if len(products) == 0 {
		return Job{}, &ConfigurationError{Reason: "sin cambios de precio desde la fecha indicada"}
	}

	reqs := make([]PrintRequest, len(products))
	for i, p := range products {
		reqs[i] = PrintRequest{Record: p.Record, Category: p.Category}
	}
	return s.PrintBatch(ctx, clientID, reqs)
}

// GetJobStatus returns the current snapshot of a job.
func (s *Service) GetJobStatus(id string) (Job, error) {
	job, ok := s.disp.JobSnapshot(id)
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return job, nil
}

// Cancel stops the still-pending items of a job.
func (s *Service) Cancel(id string) (Job, error) {
	return s.disp.Cancel(id)
}

// ExportTemplate serializes a stored template to the portable document form.
func (s *Service) ExportTemplate(id string) ([]byte, error) {
	tpl, ok := s.reg.Template(id)
	if !ok {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("plantilla desconocida: %s", id)}
	}
	return label.Export(tpl)
}

// ImportTemplate parses a portable template document, optionally pinning it
// to a registered stock size, stores it and returns it with its new ID.
// Nothing is stored when the document is rejected.
func (s *Service) ImportTemplate(data []byte, sizeID string) (label.Template, error) {
	var target *label.Size
	if sizeID != "" {
		sz, ok := s.reg.Size(sizeID)
		if !ok {
			return label.Template{}, &ConfigurationError{Reason: fmt.Sprintf("tamaño desconocido: %s", sizeID)}
		}
		target = &sz
	}

	tpl, err := label.Import(data, target)
	if err != nil {
		return label.Template{}, err
	}
	tpl.ID = uuid.NewString()
	if err := s.reg.AddTemplate(tpl); err != nil {
		return label.Template{}, err
	}
	return tpl, nil
}
