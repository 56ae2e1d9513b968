// Package main is the entry point for the care gateway.
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

	"github.com/carebridge/shared-care-platform/internal/config"
	"github.com/carebridge/shared-care-platform/internal/handler"
	"github.com/carebridge/shared-care-platform/internal/llm"
	"github.com/carebridge/shared-care-platform/internal/middleware"
	"github.com/carebridge/shared-care-platform/internal/natslog"
	"github.com/carebridge/shared-care-platform/internal/service"
	"github.com/carebridge/shared-care-platform/pkg/logger"
	"github.com/carebridge/shared-care-platform/pkg/tracing"
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

	log.Info("starting care gateway")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "shared-care-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Pick the message log. With no NATS URL the gateway keeps the
	// conversation history in memory, which is enough for development.
	var msgLog natslog.Log
	var natsClient *natslog.Client
	if cfg.NATSURL != "" {
		natsClient, err = natslog.Connect(ctx, natslog.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsClient.Close()

		jsLog := natslog.NewJetStreamLog(natsClient)
		if err := jsLog.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure stream", zap.Error(err))
			os.Exit(1)
		}
		msgLog = jsLog
	} else {
		log.Warn("NATS_URL not set, using in-memory message log")
		msgLog = natslog.NewMemoryLog()
	}

	// Initialize LLM client
	var llmClient llm.Client
	if cfg.AnthropicAPIKey != "" {
		llmClient, err = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
		if err != nil {
			log.Warn("failed to create Anthropic client, assistant replies disabled", zap.Error(err))
		}
	} else if cfg.OpenAIAPIKey != "" {
		llmClient, err = llm.NewOpenAIClient(cfg.OpenAIAPIKey)
		if err != nil {
			log.Warn("failed to create OpenAI client, assistant replies disabled", zap.Error(err))
		}
	}

	// Initialize services
	conversationSvc := service.NewConversationService(msgLog, log)
	alertSvc := service.NewAlertService(log)
	screener := service.NewScreener(cfg.BlockedTerms, cfg.BlockNotice)
	messageSvc := service.NewMessageService(msgLog, conversationSvc, alertSvc, screener, llmClient, log)
	draftSvc := service.NewDraftService(msgLog, messageSvc, llmClient, log)
	directorySvc := service.NewDirectoryService()

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient)
	conversationHandler := handler.NewConversationHandler(conversationSvc, messageSvc, alertSvc, log)
	messageHandler := handler.NewMessageHandler(messageSvc, conversationSvc, conversationHandler, log)
	draftHandler := handler.NewDraftHandler(draftSvc, conversationHandler, log)
	directoryHandler := handler.NewDirectoryHandler(directorySvc)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
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

		// Conversations
		r.Route("/conversations", func(r chi.Router) {
			r.With(middleware.RequireTherapist).Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Get("/check", conversationHandler.Check)
				r.Post("/read", conversationHandler.MarkRead)

				// Messages
				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)

				// Clinician-only actions
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireTherapist)

					r.Post("/ai", conversationHandler.ToggleAI)
					r.Post("/risk", conversationHandler.SetRisk)
					r.Post("/status", conversationHandler.SetStatus)

					r.Get("/alerts", conversationHandler.Alerts)
					r.Post("/alerts/{alertID}/ack", conversationHandler.AcknowledgeAlert)

					r.Post("/drafts", draftHandler.Generate)
					r.Post("/drafts/{draftID}/send", draftHandler.Send)
					r.Post("/drafts/{draftID}/discard", draftHandler.Discard)
					r.Post("/summary", draftHandler.Summarize)
					r.Post("/notes", draftHandler.SaveNote)
					r.Get("/notes", draftHandler.Notes)
				})
			})
		})

		// Directory
		r.Get("/directory", directoryHandler.Search)
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

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
