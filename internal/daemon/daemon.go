package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/judwhite/go-svc"

	"github.com/mn-ibiz/label-daemon/internal/auth"
	"github.com/mn-ibiz/label-daemon/internal/config"
	"github.com/mn-ibiz/label-daemon/internal/dispatch"
	"github.com/mn-ibiz/label-daemon/internal/registry"
	"github.com/mn-ibiz/label-daemon/internal/server"
)

// GetEnvConfig returns the current environment configuration
func GetEnvConfig() config.Environment {
	return config.GetEnvironment(config.BuildEnvironment)
}

// Program implements svc.Service interface
type Program struct {
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	httpServer *http.Server
	wsServer   *server.Server
	reg        *registry.Store
	dispatcher *dispatch.Dispatcher
	service    *dispatch.Service
	prober     *PrinterProber
	authMgr    *auth.Manager
	startTime  time.Time

	// Catalog is the optional product-data collaborator, wired by the host
	// before Start when a POS backend is available.
	Catalog dispatch.ProductCatalog
}

// Init initializes the service
func (p *Program) Init(_ svc.Environment) error {
	envConfig := GetEnvConfig()

	if err := initLogging(envConfig); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║   🏷️ LABEL DAEMON - Servicio de Impresión de Etiquetas     ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")
	log.Printf("[INIT] 🚀 Starting service - Environment: %s", envConfig.Name)
	log.Printf("[INIT] 📅 Build: %s %s", config.BuildDate, config.BuildTime)

	return nil
}

// Start starts the service
func (p *Program) Start() error {
	p.startTime = time.Now()
	p.ctx, p.cancel = context.WithCancel(context.Background())
	cfg := GetEnvConfig()

	// Auth manager (bound to service context for clean shutdown)
	p.authMgr = auth.NewManager(p.ctx)

	// Registry: stock sizes, templates, printers, routing
	p.reg = registry.NewStore()
	dataDir := cfg.DataPath(os.Getenv("PROGRAMDATA"))
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	if err := p.reg.Load(dataDir); err != nil {
		return fmt.Errorf("loading registry: %w", err)
	}
	if cfg.DefaultPrinter != "" && p.reg.DefaultPrinterID() == "" {
		p.reg.SetDefaultPrinter(cfg.DefaultPrinter)
		log.Printf("[INIT] ⭐ No routing default configured, using %s from environment", cfg.DefaultPrinter)
	}

	// Dispatcher and service. Completion pushes go to the WS server, which
	// is created right after; the indirection avoids an init cycle.
	p.dispatcher = dispatch.NewDispatcher(dispatch.Config{
		MaxRetries:  cfg.MaxRetries,
		BackoffBase: cfg.BackoffBase,
		BackoffCap:  cfg.BackoffCap,
		QueueSize:   cfg.QueueCapacity,
	}, p.reg, func(job dispatch.Job) {
		if p.wsServer != nil {
			p.wsServer.NotifyJobFinished(job)
		}
	})
	p.dispatcher.Start()
	p.service = dispatch.NewService(p.reg, p.dispatcher, p.Catalog)

	// WebSocket server
	p.wsServer = server.NewServer(server.Config{
		AllowedOrigins: cfg.AllowedOrigins,
	}, p.service, p.reg, p.dispatcher, p.authMgr)

	// Health probe loop
	p.prober = NewPrinterProber(p.reg, cfg.ProbeInterval, nil)
	p.prober.LogStartupDiagnostics(p.ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.prober.Run(p.ctx)
	}()

	// Job history retention
	if cfg.JobRetention > 0 {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.purgeLoop(cfg.JobRetention)
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", p.wsServer.HandleWebSocket) // token validates inside per-message
	mux.HandleFunc("/health", p.healthHandler)        // public for monitoring tools

	p.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		log.Println("┌─────────────────────────────────────────────────────────────┐")
		log.Printf("│ 🏷️ LABEL DAEMON READY - Environment: %-23s│", cfg.Name)
		log.Printf("│ 🔌 WebSocket: ws://%s/ws%-25s│", cfg.ListenAddr, "")
		log.Printf("│ 💚 Health:    http://%s/health%-21s│", cfg.ListenAddr, "")
		log.Printf("│ 🔐 Auth:      %-44v│", p.authMgr.Enabled())
		log.Println("└─────────────────────────────────────────────────────────────┘")

		if err := p.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[HTTP] ❌ Error starting HTTP server: %v", err)
		}
	}()

	return nil
}

// healthHandler reports dispatcher, job and printer health as JSON.
func (p *Program) healthHandler(w http.ResponseWriter, _ *http.Request) {
	stats := p.dispatcher.Stats()

	response := HealthResponse{
		Status: "ok",
		Jobs: JobsStatus{
			Active: stats.ActiveJobs,
			Total:  stats.TotalJobs,
		},
		Dispatcher: DispatcherStatus{
			Running:      stats.IsRunning,
			ItemsPrinted: stats.ItemsPrinted,
			ItemsFailed:  stats.ItemsFailed,
		},
		Printers: p.reg.Summary(),
		Clients:  p.wsServer.ClientCount(),
		Build: BuildInfo{
			Env:  config.BuildEnvironment,
			Date: config.BuildDate,
			Time: config.BuildTime,
		},
		Uptime: int(time.Since(p.startTime).Seconds()),
	}

	if response.Printers.Status == "error" {
		response.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_ = json.NewEncoder(w).Encode(response)
}

// purgeLoop trims finished jobs past the retention window once an hour.
func (p *Program) purgeLoop(retention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.dispatcher.PurgeBefore(time.Now().Add(-retention))
		}
	}
}

// Stop stops the service gracefully
func (p *Program) Stop() error {
	log.Println("[STOP] 🛑 Service shutting down...")

	// 1. Cancel context (stops probe, purge and auth cleanup goroutines)
	p.cancel()

	// 2. Stop the dispatcher, waiting for in-flight sends
	if p.dispatcher != nil {
		p.dispatcher.Stop()
	}

	// 3. Graceful HTTP shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if p.httpServer != nil {
		if err := p.httpServer.Shutdown(ctx); err != nil {
			log.Printf("[STOP] ⚠️ HTTP shutdown error: %v", err)
		}
	}

	// 4. Shutdown WebSocket server
	if p.wsServer != nil {
		p.wsServer.Shutdown()
	}

	p.wg.Wait()

	uptime := time.Since(p.startTime)
	log.Printf("[STOP] ✅ Service stopped (uptime: %v)", uptime.Round(time.Second))
	return nil
}

func initLogging(envConfig config.Environment) error {
	logPath := envConfig.LogPath(os.Getenv("PROGRAMDATA"))
	logDir := filepath.Dir(logPath)

	if err := os.MkdirAll(logDir, 0750); err != nil {
		return err
	}

	if err := InitLogger(logPath, envConfig.Verbose); err != nil {
		return err
	}

	log.Printf("[INIT] 📁 Log file: %s", logPath)
	return nil
}
