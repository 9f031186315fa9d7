// Package main is the entry point for the console API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/appforge-ai/console-api/internal/assistant"
	"github.com/appforge-ai/console-api/internal/chat"
	"github.com/appforge-ai/console-api/internal/config"
	"github.com/appforge-ai/console-api/internal/handler"
	"github.com/appforge-ai/console-api/internal/journal"
	"github.com/appforge-ai/console-api/internal/middleware"
	"github.com/appforge-ai/console-api/internal/registry"
	"github.com/appforge-ai/console-api/internal/router"
	"github.com/appforge-ai/console-api/pkg/logger"
	"github.com/appforge-ai/console-api/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting console API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "console-api", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Optional audit journal
	var auditJournal chat.Journal
	var natsJournal *journal.Journal
	if cfg.JournalEnabled {
		natsJournal, err = journal.Connect(ctx, journal.Config{
			URL:   cfg.NATSURL,
			Token: cfg.NATSToken,
		}, log)
		if err != nil {
			log.Warn("failed to connect journal, audit trail disabled", zap.Error(err))
		} else {
			defer natsJournal.Close()
			auditJournal = natsJournal
		}
	}

	// Schema registry stores
	apps := registry.NewAppStore()
	objects := registry.NewObjectStore()
	workflows := registry.NewWorkflowStore()
	records := registry.NewRecordStore()
	users := registry.NewUserStore()
	layout := registry.NewLayoutStore()
	snapshots := registry.NewSnapshotStore()

	// Payload router: fan completed schema payloads out to the registry
	rt := router.New(log)
	rt.OnObjects(objects.ApplyGenerated)
	rt.OnWorkflows(workflows.ApplyGenerated)
	rt.OnLayout(layout.ApplyGenerated)

	// Assistant socket + chat orchestration
	conn := assistant.NewManager(cfg.AssistantURL, cfg.ReconnectDelay, log)
	store := chat.NewStore()
	chatSvc := chat.NewService(store, conn, rt, auditJournal, cfg.TurnTimeout, cfg.ParseBufferCeiling, log)

	if err := conn.Connect(); err != nil {
		// The manager schedules its own reconnect; readiness reflects state.
		log.Warn("initial assistant connect failed", zap.Error(err))
	}

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(conn)
	chatHandler := handler.NewChatHandler(chatSvc, log)
	schemaHandler := handler.NewSchemaHandler(apps, objects, workflows, records, users, layout, snapshots, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Conversation surface
		r.Route("/chat", func(r chi.Router) {
			r.Post("/messages", chatHandler.Send)
			r.Get("/turns", chatHandler.ListTurns)
			r.Delete("/turns", chatHandler.Reset)
			r.Get("/stream", chatHandler.Stream)
		})

		// Apps
		r.Route("/apps", func(r chi.Router) {
			r.Post("/", schemaHandler.CreateApp)
			r.Get("/", schemaHandler.ListApps)
			r.Get("/{id}", schemaHandler.GetApp)
			r.Put("/{id}", schemaHandler.UpdateApp)
			r.Delete("/{id}", schemaHandler.DeleteApp)
		})

		// Objects
		r.Route("/objects", func(r chi.Router) {
			r.Get("/", schemaHandler.ListObjects)
			r.Get("/{name}", schemaHandler.GetObject)
			r.Put("/{name}", schemaHandler.UpsertObject)
			r.Delete("/{name}", schemaHandler.DeleteObject)
		})

		// Workflows
		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", schemaHandler.ListWorkflows)
			r.Get("/{name}", schemaHandler.GetWorkflow)
			r.Put("/{name}", schemaHandler.UpsertWorkflow)
			r.Delete("/{name}", schemaHandler.DeleteWorkflow)
		})

		// Layout
		r.Get("/layout", schemaHandler.GetLayout)
		r.Put("/layout", schemaHandler.SetLayout)

		// Records
		r.Route("/records", func(r chi.Router) {
			r.Post("/", schemaHandler.CreateRecord)
			r.Get("/", schemaHandler.ListRecords)
			r.Get("/{id}", schemaHandler.GetRecord)
			r.Put("/{id}", schemaHandler.UpdateRecord)
			r.Delete("/{id}", schemaHandler.DeleteRecord)
		})

		// Users
		r.Route("/users", func(r chi.Router) {
			r.Post("/", schemaHandler.CreateUser)
			r.Get("/", schemaHandler.ListUsers)
			r.Delete("/{id}", schemaHandler.DeleteUser)
		})

		// Schema snapshots
		r.Post("/schema/save", schemaHandler.SaveSchema)
		r.Get("/schema/{appID}", schemaHandler.GetSchema)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Close the assistant socket gracefully; no reconnect follows.
	if err := conn.Disconnect(); err != nil {
		log.Warn("assistant disconnect failed", zap.Error(err))
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
