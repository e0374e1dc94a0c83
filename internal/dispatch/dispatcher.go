package dispatch

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/mn-ibiz/label-daemon/internal/label"
	"github.com/mn-ibiz/label-daemon/internal/lang"
	"github.com/mn-ibiz/label-daemon/internal/registry"
	"github.com/mn-ibiz/label-daemon/internal/transport"
)

// Directory is the registry surface the dispatcher needs: printer and
// template lookups. Satisfied by *registry.Store.
type Directory interface {
	Printer(id string) (registry.Printer, bool)
	Template(id string) (label.Template, bool)
}

// TransportFactory builds a transport for a printer's connection descriptor.
// Tests swap in an in-memory implementation.
type TransportFactory func(transport.Descriptor) (transport.Transport, error)

// Config holds dispatcher tuning.
type Config struct {
	MaxRetries    int           // extra send attempts after the first, on retryable errors
	BackoffBase   time.Duration // first retry delay, doubled per attempt
	BackoffCap    time.Duration // upper bound for the retry delay
	QueueSize     int           // per-printer task queue capacity
	SendTimeout   time.Duration // deadline for one payload write
	OpenTransport TransportFactory
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 250 * time.Millisecond
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 2 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = transport.DefaultSendTimeout
	}
	if c.OpenTransport == nil {
		c.OpenTransport = transport.New
	}
	return c
}

// task is the unit a printer worker consumes: the slice of a job's items
// that target one printer. One connection is opened per task.
type task struct {
	jobID     string
	printerID string
	indexes   []int
}

// Dispatcher fans jobs out to per-printer workers. Workers spawn lazily on
// the first job for a printer and each owns its printer exclusively, so
// items for one device print in submission order while other devices run
// in parallel.
type Dispatcher struct {
	cfg      Config
	dir      Directory
	gens     *lang.Registry
	resolver label.Resolver
	store    *jobStore
	notify   func(Job) // invoked once when a job reaches a terminal status

	mu        sync.Mutex
	isRunning bool
	queues    map[string]chan task
	stopChan  chan struct{}
	wg        sync.WaitGroup

	itemsPrinted int64
	itemsFailed  int64
	lastJobTime  time.Time
}

// NewDispatcher creates a dispatcher. notify may be nil.
func NewDispatcher(cfg Config, dir Directory, notify func(Job)) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg.withDefaults(),
		dir:      dir,
		gens:     lang.NewRegistry(),
		resolver: label.Resolver{},
		store:    newJobStore(),
		notify:   notify,
		queues:   make(map[string]chan task),
		stopChan: make(chan struct{}),
	}
}

// Start marks the dispatcher ready to accept jobs.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	if d.isRunning {
		d.mu.Unlock()
		return
	}
	d.isRunning = true
	d.mu.Unlock()

	log.Println("[DISPATCH] ✅ Dispatcher started and ready")
}

// Stop drains the workers and waits for in-flight sends to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return
	}
	d.isRunning = false
	close(d.stopChan)
	d.mu.Unlock()

	d.wg.Wait()

	log.Printf("[DISPATCH] 🛑 Dispatcher stopped (printed: %d, failed: %d)", d.itemsPrinted, d.itemsFailed)
}

// Enqueue registers the job and hands its items to the printer workers.
// The call never blocks on printing: if a printer's queue is full, that
// printer's items fail immediately with a queue-full error.
func (d *Dispatcher) Enqueue(job *Job) error {
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher is not running")
	}
	d.mu.Unlock()

	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	job.Status = deriveStatus(job.Items)
	d.store.put(job)

	// Group item indexes by printer, preserving submission order. Items
	// that already failed routing carry no printer and never reach a worker.
	byPrinter := make(map[string][]int)
	var order []string
	for i := range job.Items {
		if job.Items[i].Status != ItemPending {
			continue
		}
		pid := job.Items[i].PrinterID
		if _, seen := byPrinter[pid]; !seen {
			order = append(order, pid)
		}
		byPrinter[pid] = append(byPrinter[pid], i)
	}

	for _, pid := range order {
		t := task{jobID: job.ID, printerID: pid, indexes: byPrinter[pid]}
		select {
		case d.queueFor(pid) <- t:
		default:
			log.Printf("[DISPATCH] ⚠️ Queue full for printer %s, failing %d item(s) of job %s",
				pid, len(t.indexes), job.ID)
			d.failTask(t, "cola de impresión llena")
		}
	}

	log.Printf("[DISPATCH] 📥 Job %s queued (%d item(s), %d printer(s))", job.ID, len(job.Items), len(order))
	return nil
}

// queueFor returns the task channel for a printer, spawning its worker on
// first use.
func (d *Dispatcher) queueFor(printerID string) chan task {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.queues[printerID]
	if !ok {
		ch = make(chan task, d.cfg.QueueSize)
		d.queues[printerID] = ch
		d.wg.Add(1)
		go d.worker(printerID, ch)
		log.Printf("[DISPATCH] 👷 Worker started for printer %s", printerID)
	}
	return ch
}

func (d *Dispatcher) worker(printerID string, ch chan task) {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopChan:
			return
		case t := <-ch:
			d.processTask(t)
		}
	}
}

// processTask prints one job's items on one printer. A single connection is
// opened for the whole task and closed when done.
func (d *Dispatcher) processTask(t task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[DISPATCH] 💥 Panic printing job %s on %s: %v\nStack: %s",
				t.jobID, t.printerID, r, debug.Stack())
			d.failTask(t, fmt.Sprintf("panic: %v", r))
		}
	}()

	start := time.Now()
	log.Printf("[DISPATCH] 🔄 Job %s: %d item(s) -> printer %s", t.jobID, len(t.indexes), t.printerID)

	printer, ok := d.dir.Printer(t.printerID)
	if !ok {
		d.failTask(t, fmt.Sprintf("impresora desconocida: %s", t.printerID))
		return
	}

	var conn transport.Conn
	defer func() {
		if conn != nil {
			if err := conn.Close(); err != nil {
				log.Printf("[DISPATCH] ⚠️ Error closing connection to %s: %v", t.printerID, err)
			}
		}
	}()

	for _, idx := range t.indexes {
		status, ok := d.store.itemStatus(t.jobID, idx)
		if !ok || status != ItemPending {
			continue // cancelled between enqueue and pickup
		}

		payload, err := d.render(t.jobID, idx, printer)
		if err != nil {
			d.failItem(t.jobID, idx, 0, err.Error())
			continue
		}

		d.markSent(t.jobID, idx)

		if conn == nil {
			conn, err = d.openConn(printer)
			if err != nil {
				// Connection failures take down the rest of the task too;
				// there is no point retrying per item against a dead device.
				d.failItem(t.jobID, idx, d.cfg.MaxRetries+1, err.Error())
				d.failRemaining(t, idx, err.Error())
				return
			}
		}

		attempts, err := d.sendWithRetry(conn, payload)
		if err != nil {
			d.failItem(t.jobID, idx, attempts, err.Error())
			continue
		}
		d.confirmItem(t.jobID, idx, attempts)
	}

	log.Printf("[DISPATCH] ✅ Job %s on %s done in %v", t.jobID, t.printerID, time.Since(start).Round(time.Millisecond))
}

// render produces the printer-language payload for one item.
func (d *Dispatcher) render(jobID string, idx int, printer registry.Printer) ([]byte, error) {
	job, ok := d.store.snapshot(jobID)
	if !ok {
		return nil, &ConfigurationError{Reason: "trabajo desconocido"}
	}
	item := job.Items[idx]

	tpl, ok := d.dir.Template(item.TemplateID)
	if !ok {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("plantilla desconocida: %s", item.TemplateID)}
	}
	if printer.Language != "" && printer.Language != tpl.Language {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"plantilla %s es %s, impresora %s espera %s", tpl.ID, tpl.Language, printer.ID, printer.Language)}
	}
	gen, err := d.gens.For(tpl.Language)
	if err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}

	resolved := d.resolver.Resolve(tpl, item.Record)
	payload, err := gen.Generate(resolved, tpl.Size)
	if err != nil {
		return nil, fmt.Errorf("generando etiqueta: %w", err)
	}

	copies := item.Copies
	if copies < 1 {
		copies = 1
	}
	if copies > 1 {
		out := make([]byte, 0, len(payload)*copies)
		for i := 0; i < copies; i++ {
			out = append(out, payload...)
		}
		payload = out
	}
	return payload, nil
}

func (d *Dispatcher) openConn(printer registry.Printer) (transport.Conn, error) {
	tr, err := d.cfg.OpenTransport(printer.Connection)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(d.backoff(attempt))
		}
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
		conn, err := tr.Open(ctx)
		cancel()
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if !transport.IsRetryable(err) {
			break
		}
	}
	return nil, lastErr
}

// sendWithRetry writes the payload, retrying on retryable transport errors
// with exponential backoff. Returns the number of attempts made.
func (d *Dispatcher) sendWithRetry(conn transport.Conn, payload []byte) (int, error) {
	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(d.backoff(attempt))
		}
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
		err := conn.Send(ctx, payload)
		cancel()
		if err == nil {
			return attempt + 1, nil
		}
		lastErr = err
		if !transport.IsRetryable(err) {
			return attempt + 1, err
		}
	}
	return d.cfg.MaxRetries + 1, lastErr
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.cfg.BackoffBase << (attempt - 1)
	if delay > d.cfg.BackoffCap || delay <= 0 {
		delay = d.cfg.BackoffCap
	}
	return delay
}

func (d *Dispatcher) markSent(jobID string, idx int) {
	d.store.updateItem(jobID, idx, func(it *Item) {
		it.Status = ItemSent
	})
}

func (d *Dispatcher) confirmItem(jobID string, idx, attempts int) {
	d.mu.Lock()
	d.itemsPrinted++
	d.lastJobTime = time.Now()
	d.mu.Unlock()

	job, becameTerminal := d.store.updateItem(jobID, idx, func(it *Item) {
		it.Status = ItemConfirmed
		it.Attempts = attempts
	})
	d.finish(job, becameTerminal)
}

func (d *Dispatcher) failItem(jobID string, idx, attempts int, reason string) {
	d.mu.Lock()
	d.itemsFailed++
	d.lastJobTime = time.Now()
	d.mu.Unlock()

	log.Printf("[DISPATCH] ❌ Job %s item %d failed: %s", jobID, idx, reason)
	job, becameTerminal := d.store.updateItem(jobID, idx, func(it *Item) {
		it.Status = ItemFailed
		it.Attempts = attempts
		it.Error = reason
	})
	d.finish(job, becameTerminal)
}

// failRemaining fails the not-yet-processed items of a task after failedIdx.
func (d *Dispatcher) failRemaining(t task, failedIdx int, reason string) {
	past := false
	for _, idx := range t.indexes {
		if idx == failedIdx {
			past = true
			continue
		}
		if !past {
			continue
		}
		if status, ok := d.store.itemStatus(t.jobID, idx); ok && status == ItemPending {
			d.failItem(t.jobID, idx, 0, reason)
		}
	}
}

func (d *Dispatcher) failTask(t task, reason string) {
	for _, idx := range t.indexes {
		if status, ok := d.store.itemStatus(t.jobID, idx); ok && status == ItemPending {
			d.failItem(t.jobID, idx, 0, reason)
		}
	}
}

func (d *Dispatcher) finish(job Job, becameTerminal bool) {
	if !becameTerminal {
		return
	}
	log.Printf("[DISPATCH] 🏁 Job %s finished: %s", job.ID, job.Status)
	if d.notify != nil {
		go d.notify(job)
	}
}

// JobSnapshot returns a copy of a job's current state.
func (d *Dispatcher) JobSnapshot(id string) (Job, bool) {
	return d.store.snapshot(id)
}

// Cancel marks every still-pending item of a job cancelled. Items already
// sent keep printing; cancel only stops work that has not started.
func (d *Dispatcher) Cancel(id string) (Job, error) {
	job, n, becameTerminal := d.store.cancelPending(id)
	if job.ID == "" {
		return Job{}, ErrJobNotFound
	}
	log.Printf("[DISPATCH] 🚫 Job %s: cancelled %d pending item(s)", id, n)
	d.finish(job, becameTerminal)
	return job, nil
}

// PurgeBefore removes finished jobs last updated before the cutoff and
// returns how many were dropped.
func (d *Dispatcher) PurgeBefore(cutoff time.Time) int {
	n := d.store.purgeBefore(cutoff)
	if n > 0 {
		log.Printf("[DISPATCH] 🧹 Purged %d finished job(s)", n)
	}
	return n
}

// Statistics holds dispatcher runtime counters.
type Statistics struct {
	IsRunning    bool      `json:"is_running"`
	ItemsPrinted int64     `json:"items_printed"`
	ItemsFailed  int64     `json:"items_failed"`
	ActiveJobs   int       `json:"active_jobs"`
	TotalJobs    int       `json:"total_jobs"`
	LastJobTime  time.Time `json:"last_job_time,omitempty"`
}

// Stats returns current dispatcher statistics.
func (d *Dispatcher) Stats() Statistics {
	total, active := d.store.counts()
	d.mu.Lock()
	defer d.mu.Unlock()
	return Statistics{
		IsRunning:    d.isRunning,
		ItemsPrinted: d.itemsPrinted,
		ItemsFailed:  d.itemsFailed,
		ActiveJobs:   active,
		TotalJobs:    total,
		LastJobTime:  d.lastJobTime,
	}
}
