// FinAgent - conversational financial journeys server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/finagent/internal/agent"
	"github.com/ashureev/finagent/internal/api"
	"github.com/ashureev/finagent/internal/config"
	"github.com/ashureev/finagent/internal/expiry"
	"github.com/ashureev/finagent/internal/grpcserver"
	"github.com/ashureev/finagent/internal/identity"
	"github.com/ashureev/finagent/internal/journey"
	"github.com/ashureev/finagent/internal/live"
	"github.com/ashureev/finagent/internal/middleware"
	"github.com/ashureev/finagent/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "grpc_port", cfg.GRPCPort, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	catalog := journey.DefaultCatalog()
	if cfg.CatalogPath != "" {
		data, err := os.ReadFile(cfg.CatalogPath)
		if err != nil {
			slog.Error("Failed to read journey catalog", "error", err, "path", cfg.CatalogPath)
			os.Exit(1)
		}
		if catalog, err = journey.LoadCatalog(data); err != nil {
			slog.Error("Invalid journey catalog", "error", err, "path", cfg.CatalogPath)
			os.Exit(1)
		}
		slog.Info("Journey catalog loaded", "path", cfg.CatalogPath, "journeys", len(catalog.List()))
	}

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	// Initialize services.
	svc := agent.NewService(repo, agent.Options{
		Catalog:    catalog,
		KYC:        journey.StaticKYC(cfg.KYCStatus),
		Refs:       journey.UUIDRefs{},
		Pacer:      journey.TimerPacer{Scale: cfg.PaceScale},
		Transcript: conversationLogger,
		Logger:     logger,
	})
	defer svc.Close()

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, cfg)
	healthHandler := api.NewHealthHandler(repo, cfg)
	accountHandler := api.NewAccountHandler(baseHandler)
	agentHandler := agent.NewHandler(svc, cfg)
	defer agentHandler.Close()
	liveHandler := live.NewHandler(svc, cfg.FrontendURL, cfg.IsDevelopment())
	defer liveHandler.Close()

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.Handler())

	// Everything else runs under an anonymous identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		accountHandler.RegisterRoutes(r)
		agentHandler.RegisterRoutes(r)
		r.Get("/ws/agent", liveHandler.ServeHTTP)
	})

	// Create server.
	// Note: SSE connections require long timeouts (no WriteTimeout)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,                 // 0 = no timeout for SSE support
		IdleTimeout:  120 * time.Second, // 2 minutes for idle connections
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start expiry worker.
	worker := expiry.NewWorker(svc, repo, expiry.Config{
		Interval:  cfg.SweepInterval,
		IdleTTL:   cfg.SessionTTL,
		Retention: cfg.SessionRetention,
	})
	workerDone := worker.Start(ctx)

	// Start gRPC health server.
	grpcSrv := grpcserver.New(repo, cfg.Timeout.HealthCheck, logger)
	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		slog.Error("Failed to listen for gRPC", "error", err, "port", cfg.GRPCPort)
		os.Exit(1)
	}
	go func() {
		if err := grpcSrv.Serve(ctx, grpcLis); err != nil {
			slog.Error("gRPC server failed", "error", err)
		}
	}()
	go grpcSrv.Watch(ctx, 30*time.Second)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout.Shutdown)
	defer cancel()

	// Streams never finish on their own; close them so Shutdown can drain.
	agentHandler.Close()
	liveHandler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	grpcSrv.Stop(shutdownCtx)
	<-workerDone

	slog.Info("Server stopped successfully")
}
