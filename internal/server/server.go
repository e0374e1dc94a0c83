package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/mn-ibiz/label-daemon/internal/auth"
	"github.com/mn-ibiz/label-daemon/internal/dispatch"
	dispatcherrors "github.com/mn-ibiz/label-daemon/internal/dispatch/errors"
	"github.com/mn-ibiz/label-daemon/internal/label"
	"github.com/mn-ibiz/label-daemon/internal/registry"
)

// JobService is the subsystem surface the server exposes over WebSocket.
// Satisfied by *dispatch.Service.
type JobService interface {
	PrintSingle(ctx context.Context, clientID string, req dispatch.PrintRequest) (dispatch.Job, error)
	PrintBatch(ctx context.Context, clientID string, reqs []dispatch.PrintRequest) (dispatch.Job, error)
	PrintPriceChanges(ctx context.Context, clientID string, since time.Time) (dispatch.Job, error)
	GetJobStatus(id string) (dispatch.Job, error)
	Cancel(id string) (dispatch.Job, error)
	ExportTemplate(id string) ([]byte, error)
	ImportTemplate(data []byte, sizeID string) (label.Template, error)
}

// PrinterDirectory lists registered printers and their health for clients.
// Satisfied by *registry.Store.
type PrinterDirectory interface {
	Printers() []registry.Printer
	HealthOf(id string) registry.HealthState
	Summary() registry.Summary
}

// StatsSource reports dispatcher counters for the status message.
type StatsSource interface {
	Stats() dispatch.Statistics
}

// Config holds server configuration
type Config struct {
	AllowedOrigins   []string
	MaxJobsPerMinute int
}

// Message represents incoming WebSocket message
type Message struct {
	Tipo  string          `json:"tipo"`
	ID    string          `json:"id,omitempty"`
	Token string          `json:"token,omitempty"`
	Datos json.RawMessage `json:"datos,omitempty"`
}

// Response represents outgoing WebSocket message
type Response struct {
	Tipo    string          `json:"tipo"`
	ID      string          `json:"id,omitempty"`
	Status  string          `json:"status,omitempty"`
	Mensaje string          `json:"mensaje,omitempty"`
	Datos   json.RawMessage `json:"datos,omitempty"`
}

// Server manages WebSocket connections and routes messages to the service.
type Server struct {
	cfg          Config
	clients      *ClientRegistry
	limiter      *JobRateLimiter
	authMgr      *auth.Manager
	svc          JobService
	printers     PrinterDirectory
	stats        StatsSource
	shutdownOnce sync.Once
	shutdownChan chan struct{}
}

// NewServer creates a new WebSocket server. authMgr and stats may be nil.
func NewServer(cfg Config, svc JobService, printers PrinterDirectory, stats StatsSource, authMgr *auth.Manager) *Server {
	if cfg.MaxJobsPerMinute <= 0 {
		cfg.MaxJobsPerMinute = 120
	}

	return &Server{
		cfg:          cfg,
		clients:      NewClientRegistry(),
		limiter:      NewJobRateLimiter(cfg.MaxJobsPerMinute),
		authMgr:      authMgr,
		svc:          svc,
		printers:     printers,
		stats:        stats,
		shutdownChan: make(chan struct{}),
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	return s.clients.Count()
}

// HandleWebSocket handles WebSocket connections
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(s.cfg.AllowedOrigins) > 0 {
		opts.OriginPatterns = s.cfg.AllowedOrigins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		log.Printf("[WS] ❌ Error accepting client: %v", err)
		return
	}

	addr := r.RemoteAddr
	s.clients.Add(conn, addr)
	log.Printf("[WS] ➕ Client connected (total: %d) from %s", s.clients.Count(), addr)

	ctx := r.Context()
	welcome := Response{
		Tipo:    "info",
		Status:  "connected",
		Mensaje: "✅ Servidor respondiendo desde Label Daemon",
	}
	_ = wsjson.Write(ctx, conn, welcome)

	s.handleMessages(ctx, conn, addr)

	s.clients.Remove(conn)
	s.limiter.Forget(addr)
	_ = conn.Close(websocket.StatusNormalClosure, "disconnected")
	log.Printf("[WS] ➖ Client disconnected (remaining: %d)", s.clients.Count())
}

// handleMessages processes incoming messages from a client
func (s *Server) handleMessages(ctx context.Context, conn *websocket.Conn, addr string) {
	for {
		select {
		case <-s.shutdownChan:
			return
		default:
		}

		var msg Message
		err := wsjson.Read(ctx, conn, &msg)
		if err != nil {
			// Normal closure or context cancelled
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				ctx.Err() != nil {
				return
			}
			log.Printf("[WS] ⚠️ Error reading message: %v", err)
			return
		}

		s.routeMessage(ctx, conn, addr, &msg)
	}
}

// submission message types require auth and count against the rate limit
func isSubmission(tipo string) bool {
	switch tipo {
	case "print", "print_batch", "price_changes", "cancel", "import_template":
		return true
	}
	return false
}

// routeMessage routes message to appropriate handler
func (s *Server) routeMessage(ctx context.Context, conn *websocket.Conn, addr string, msg *Message) {
	if isSubmission(msg.Tipo) && !s.authorize(ctx, conn, addr, msg) {
		return
	}

	switch msg.Tipo {
	case "print":
		s.handlePrint(ctx, conn, addr, msg, false)
	case "print_batch":
		s.handlePrint(ctx, conn, addr, msg, true)
	case "price_changes":
		s.handlePriceChanges(ctx, conn, addr, msg)
	case "job_status":
		s.handleJobStatus(ctx, conn, msg)
	case "cancel":
		s.handleCancel(ctx, conn, msg)
	case "export_template":
		s.handleExportTemplate(ctx, conn, msg)
	case "import_template":
		s.handleImportTemplate(ctx, conn, msg)
	case "get_printers":
		s.handleGetPrinters(ctx, conn)
	case "status":
		s.handleStatus(ctx, conn)
	case "ping":
		s.handlePing(ctx, conn, msg)
	default:
		log.Printf("[WS] ⚠️ Unknown message type: %s", msg.Tipo)
		s.sendError(ctx, conn, msg.ID, "Unknown message type: "+msg.Tipo)
	}
}

// authorize checks the lockout state, token and rate limit for a submission.
func (s *Server) authorize(ctx context.Context, conn *websocket.Conn, addr string, msg *Message) bool {
	if s.authMgr != nil && s.authMgr.Enabled() {
		if s.authMgr.IsLockedOut(addr) {
			s.sendError(ctx, conn, msg.ID, "Too many failed token attempts, locked out")
			return false
		}
		if !s.authMgr.ValidateToken(msg.Token) {
			s.authMgr.RecordFailedAttempt(addr)
			s.sendError(ctx, conn, msg.ID, "Invalid submission token")
			return false
		}
		s.authMgr.ClearFailedAttempts(addr)
	}
	if !s.limiter.Allow(addr) {
		log.Printf("[WS] 🚫 Rate limit exceeded for %s", addr)
		s.sendError(ctx, conn, msg.ID, "Rate limit exceeded, slow down")
		return false
	}
	return true
}

// handlePrint handles both single prints and batches.
func (s *Server) handlePrint(ctx context.Context, conn *websocket.Conn, addr string, msg *Message, batch bool) {
	if len(msg.Datos) == 0 {
		s.sendError(ctx, conn, msg.ID, "Field 'datos' is required for type '"+msg.Tipo+"'")
		return
	}

	var job dispatch.Job
	var err error
	if batch {
		var reqs []dispatch.PrintRequest
		if jsonErr := json.Unmarshal(msg.Datos, &reqs); jsonErr != nil {
			s.sendError(ctx, conn, msg.ID, "Invalid 'datos': expected an array of print requests")
			return
		}
		job, err = s.svc.PrintBatch(ctx, addr, reqs)
	} else {
		var req dispatch.PrintRequest
		if jsonErr := json.Unmarshal(msg.Datos, &req); jsonErr != nil {
			s.sendError(ctx, conn, msg.ID, "Invalid 'datos': expected a print request")
			return
		}
		job, err = s.svc.PrintSingle(ctx, addr, req)
	}
	if err != nil {
		s.sendServiceError(ctx, conn, msg.ID, err)
		return
	}

	s.ackJob(ctx, conn, msg.ID, job)
}

func (s *Server) handlePriceChanges(ctx context.Context, conn *websocket.Conn, addr string, msg *Message) {
	var datos struct {
		Since time.Time `json:"since"`
	}
	if len(msg.Datos) == 0 || json.Unmarshal(msg.Datos, &datos) != nil || datos.Since.IsZero() {
		s.sendError(ctx, conn, msg.ID, "Field 'datos.since' (RFC 3339) is required for type 'price_changes'")
		return
	}

	job, err := s.svc.PrintPriceChanges(ctx, addr, datos.Since)
	if err != nil {
		s.sendServiceError(ctx, conn, msg.ID, err)
		return
	}
	s.ackJob(ctx, conn, msg.ID, job)
}

// ackJob tracks the job for completion push and sends the synchronous ack.
func (s *Server) ackJob(ctx context.Context, conn *websocket.Conn, msgID string, job dispatch.Job) {
	if !job.Status.Terminal() {
		s.clients.TrackJob(job.ID, conn)
	}
	log.Printf("[QUEUE] 📥 Job accepted: %s (%d item(s), status %s)", job.ID, len(job.Items), job.Status)

	datos, _ := json.Marshal(job)
	_ = wsjson.Write(ctx, conn, Response{
		Tipo:    "ack",
		ID:      msgID,
		Status:  string(job.Status),
		Mensaje: "Job " + job.ID + " accepted",
		Datos:   datos,
	})
}

func (s *Server) handleJobStatus(ctx context.Context, conn *websocket.Conn, msg *Message) {
	jobID := s.jobIDFrom(msg)
	if jobID == "" {
		s.sendError(ctx, conn, msg.ID, "Field 'datos.job_id' is required for type 'job_status'")
		return
	}
	job, err := s.svc.GetJobStatus(jobID)
	if err != nil {
		s.sendServiceError(ctx, conn, msg.ID, err)
		return
	}
	datos, _ := json.Marshal(job)
	_ = wsjson.Write(ctx, conn, Response{
		Tipo:   "job_status",
		ID:     msg.ID,
		Status: string(job.Status),
		Datos:  datos,
	})
}

func (s *Server) handleCancel(ctx context.Context, conn *websocket.Conn, msg *Message) {
	jobID := s.jobIDFrom(msg)
	if jobID == "" {
		s.sendError(ctx, conn, msg.ID, "Field 'datos.job_id' is required for type 'cancel'")
		return
	}
	job, err := s.svc.Cancel(jobID)
	if err != nil {
		s.sendServiceError(ctx, conn, msg.ID, err)
		return
	}
	datos, _ := json.Marshal(job)
	_ = wsjson.Write(ctx, conn, Response{
		Tipo:    "cancelled",
		ID:      msg.ID,
		Status:  string(job.Status),
		Mensaje: "Pending items cancelled",
		Datos:   datos,
	})
}

func (s *Server) jobIDFrom(msg *Message) string {
	var datos struct {
		JobID string `json:"job_id"`
	}
	if len(msg.Datos) > 0 && json.Unmarshal(msg.Datos, &datos) == nil && datos.JobID != "" {
		return datos.JobID
	}
	return msg.ID
}

func (s *Server) handleExportTemplate(ctx context.Context, conn *websocket.Conn, msg *Message) {
	var datos struct {
		TemplateID string `json:"template_id"`
	}
	if len(msg.Datos) == 0 || json.Unmarshal(msg.Datos, &datos) != nil || datos.TemplateID == "" {
		s.sendError(ctx, conn, msg.ID, "Field 'datos.template_id' is required for type 'export_template'")
		return
	}
	doc, err := s.svc.ExportTemplate(datos.TemplateID)
	if err != nil {
		s.sendServiceError(ctx, conn, msg.ID, err)
		return
	}
	_ = wsjson.Write(ctx, conn, Response{
		Tipo:   "template",
		ID:     msg.ID,
		Status: "ok",
		Datos:  doc,
	})
}

func (s *Server) handleImportTemplate(ctx context.Context, conn *websocket.Conn, msg *Message) {
	var datos struct {
		SizeID   string          `json:"size_id,omitempty"`
		Document json.RawMessage `json:"document"`
	}
	if len(msg.Datos) == 0 || json.Unmarshal(msg.Datos, &datos) != nil || len(datos.Document) == 0 {
		s.sendError(ctx, conn, msg.ID, "Field 'datos.document' is required for type 'import_template'")
		return
	}
	tpl, err := s.svc.ImportTemplate(datos.Document, datos.SizeID)
	if err != nil {
		s.sendServiceError(ctx, conn, msg.ID, err)
		return
	}
	log.Printf("[WS] 📄 Template imported: %s (%s)", tpl.ID, tpl.Name)
	out, _ := json.Marshal(tpl)
	_ = wsjson.Write(ctx, conn, Response{
		Tipo:    "template_imported",
		ID:      msg.ID,
		Status:  "ok",
		Mensaje: "Template stored as " + tpl.ID,
		Datos:   out,
	})
}

// handleGetPrinters lists registered printers with their last-known health.
func (s *Server) handleGetPrinters(ctx context.Context, conn *websocket.Conn) {
	type printerDTO struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Language string `json:"language"`
		Target   string `json:"target"`
		Health   string `json:"health"`
	}

	printers := s.printers.Printers()
	dtos := make([]printerDTO, len(printers))
	for i, p := range printers {
		dtos[i] = printerDTO{
			ID:       p.ID,
			Name:     p.Name,
			Language: string(p.Language),
			Target:   p.Connection.String(),
			Health:   string(s.printers.HealthOf(p.ID).Health),
		}
	}

	response := struct {
		Tipo     string           `json:"tipo"`
		Status   string           `json:"status"`
		Printers []printerDTO     `json:"printers"`
		Summary  registry.Summary `json:"summary"`
	}{
		Tipo:     "printers",
		Status:   "ok",
		Printers: dtos,
		Summary:  s.printers.Summary(),
	}

	_ = wsjson.Write(ctx, conn, response)
}

// handleStatus sends dispatcher statistics
func (s *Server) handleStatus(ctx context.Context, conn *websocket.Conn) {
	response := Response{
		Tipo:   "status",
		Status: "ok",
	}
	if s.stats != nil {
		st := s.stats.Stats()
		datos, _ := json.Marshal(st)
		response.Datos = datos
		response.Mensaje = formatStatus(st.ActiveJobs, st.TotalJobs)
	}
	_ = wsjson.Write(ctx, conn, response)
}

// handlePing responds to ping
func (s *Server) handlePing(ctx context.Context, conn *websocket.Conn, msg *Message) {
	response := Response{
		Tipo:   "pong",
		ID:     msg.ID,
		Status: "ok",
	}
	_ = wsjson.Write(ctx, conn, response)
}

// sendError sends error response to client
func (s *Server) sendError(ctx context.Context, conn *websocket.Conn, id, mensaje string) {
	response := Response{
		Tipo:    "error",
		ID:      id,
		Status:  "error",
		Mensaje: mensaje,
	}
	_ = wsjson.Write(ctx, conn, response)
}

// sendServiceError maps an internal error chain to its client-facing message.
func (s *Server) sendServiceError(ctx context.Context, conn *websocket.Conn, id string, err error) {
	log.Printf("[WS] ❌ Request %s failed: %v", id, err)
	s.sendError(ctx, conn, id, dispatcherrors.ExtractUserFriendlyError(err))
}

// NotifyJobFinished pushes a job's terminal status to the submitting client.
// Wired as the dispatcher's completion callback.
func (s *Server) NotifyJobFinished(job dispatch.Job) {
	conn, ok := s.clients.OwnerOf(job.ID)
	s.clients.ReleaseJob(job.ID)
	if !ok {
		return // client disconnected before completion
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	datos, _ := json.Marshal(job)
	err := wsjson.Write(ctx, conn, Response{
		Tipo:    "result",
		ID:      job.ID,
		Status:  string(job.Status),
		Mensaje: summarize(job),
		Datos:   datos,
	})
	if err != nil {
		log.Printf("[WS] ⚠️ Failed to notify client for job %s: %v", job.ID, err)
	}
}

func summarize(job dispatch.Job) string {
	confirmed, failed, cancelled := 0, 0, 0
	for _, it := range job.Items {
		switch it.Status {
		case dispatch.ItemConfirmed:
			confirmed++
		case dispatch.ItemFailed:
			failed++
		case dispatch.ItemCancelled:
			cancelled++
		}
	}
	msg := strconv.Itoa(confirmed) + " printed"
	if failed > 0 {
		msg += ", " + strconv.Itoa(failed) + " failed"
	}
	if cancelled > 0 {
		msg += ", " + strconv.Itoa(cancelled) + " cancelled"
	}
	return msg
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)

		clientCount := s.clients.Count()
		log.Printf("[WS] 🛑 Shutting down, disconnecting %d clients", clientCount)

		// Notify all clients
		s.clients.ForEach(func(conn *websocket.Conn) {
			_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		})
	})
}

func formatStatus(active, total int) string {
	return "Jobs: " + strconv.Itoa(active) + " active / " + strconv.Itoa(total) + " total"
}
