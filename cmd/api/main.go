// Package main is the entry point for the API server.
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/techsolutions/agency-chat/internal/config"
	"github.com/techsolutions/agency-chat/internal/gateway"
	"github.com/techsolutions/agency-chat/internal/handler"
	"github.com/techsolutions/agency-chat/internal/middleware"
	natsclient "github.com/techsolutions/agency-chat/internal/nats"
	"github.com/techsolutions/agency-chat/internal/service"
	"github.com/techsolutions/agency-chat/internal/store"
	"github.com/techsolutions/agency-chat/pkg/logger"
	"github.com/techsolutions/agency-chat/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "agency-chat", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Open the database
	st, err := store.Open(store.Config{
		Driver:       cfg.DBDriver,
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpen,
		MaxIdleConns: cfg.DBMaxIdle,
		AutoMigrate:  cfg.DBAutoMigrate,
		Logger:       log,
	})
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer st.Close()

	// Connect the event journal when NATS is configured
	var (
		events  service.EventPublisher
		journal handler.Journal
	)
	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		j := natsclient.NewJournal(natsClient)
		if err := j.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		events, journal = j, j
	} else {
		log.Info("NATS_URL not set, chat event journal disabled")
	}

	// Initialize services
	chatSvc := service.NewChatService(st, events, cfg.DefaultAgencyID, log)

	hub := gateway.NewHub(gateway.Config{
		PingPeriod:          cfg.WSPingPeriod,
		PongWait:            cfg.WSPongWait,
		WriteWait:           cfg.WSWriteWait,
		MaxMessageSize:      cfg.WSMaxMessageSize,
		TypingTimeout:       cfg.TypingTimeout,
		TypingSweepInterval: cfg.TypingSweepInterval,
	}, chatSvc, log)

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	// Initialize handlers
	verifier := middleware.NewTokenVerifier(cfg.JWTSecret)
	healthHandler := handler.NewHealthHandler(st, journal)
	conversationHandler := handler.NewConversationHandler(chatSvc, hub, log)
	messageHandler := handler.NewMessageHandler(chatSvc, hub, log)
	liveHandler := handler.NewLiveHandler(hub, verifier, cfg.CORSAllowedOrigins, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Live connections authenticate during the handshake
	r.Get("/ws", liveHandler.Connect)

	// API routes with authentication
	r.Route("/api/v1/chat", func(r chi.Router) {
		r.Use(middleware.Auth(verifier))
		r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		handler.ChatRoutes(r, conversationHandler, messageHandler)
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
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout. Hijacked websocket connections are not
	// tracked by the server, so the hub closes them first.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Shutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
