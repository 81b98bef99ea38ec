package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/opencare-labs/doseaudit/internal/config"
	dbRedis "github.com/opencare-labs/doseaudit/internal/db/redis"
	logpkg "github.com/opencare-labs/doseaudit/internal/logger"
	"github.com/opencare-labs/doseaudit/internal/metrics"
	corpusrepo "github.com/opencare-labs/doseaudit/internal/repository/corpus"
	"github.com/opencare-labs/doseaudit/internal/repository/embcache"
	chiTransport "github.com/opencare-labs/doseaudit/internal/transport/chi"
	openaiProvider "github.com/opencare-labs/doseaudit/internal/transport/openai"
	audituc "github.com/opencare-labs/doseaudit/internal/usecase/audit"
	chatuc "github.com/opencare-labs/doseaudit/internal/usecase/chat"
	dosageuc "github.com/opencare-labs/doseaudit/internal/usecase/dosage"
	extractuc "github.com/opencare-labs/doseaudit/internal/usecase/extract"
	healthuc "github.com/opencare-labs/doseaudit/internal/usecase/health"
	ingestuc "github.com/opencare-labs/doseaudit/internal/usecase/ingest"
	"github.com/opencare-labs/doseaudit/internal/usecase/llm"
	pipelineuc "github.com/opencare-labs/doseaudit/internal/usecase/pipeline"
	retrievaluc "github.com/opencare-labs/doseaudit/internal/usecase/retrieval"
	"github.com/opencare-labs/doseaudit/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting doseaudit API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	corpus := corpusrepo.New(store)
	if err := corpus.EnsureIndex(ctx, cfg.Embedding.Dimensions, cfg.Ingest.HNSWM, cfg.Ingest.HNSWEF); err != nil {
		logger.Fatal("Failed to ensure chunk index", zap.Error(err))
	}

	// Embedder chain: OpenAI -> Cached. The cache saves provider tokens
	// when the same guideline text is re-ingested or re-queried.
	baseEmbedder := openaiProvider.NewEmbedder(&openaiProvider.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	embedder := embcache.New(baseEmbedder, store, metrics.EmbeddingCacheTotal, logger)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Completer chain: OpenAI -> Policy (timeout, retry, concurrency cap).
	baseCompleter := openaiProvider.NewCompleter(&openaiProvider.CompleterConfig{
		APIKey:  cfg.Model.APIKey,
		BaseURL: cfg.Model.BaseURL,
		Model:   cfg.Model.Model,
		Logger:  logger,
	})
	completer := llm.NewPolicyCompleter(
		baseCompleter, cfg.Model.Model,
		time.Duration(cfg.Model.CallTimeoutSec)*time.Second,
		cfg.Model.MaxRetries, cfg.Model.MaxConcurrent,
		logger,
	)
	logger.Info("Completer created", zap.String("model", cfg.Model.Model))

	// Create use case services
	dosageSvc := dosageuc.New(logger)
	extractSvc := extractuc.New(completer, logger)
	retrievalSvc := retrievaluc.New(embedder, corpus, cfg.Retrieval.TopK, logger)
	auditSvc := audituc.New(completer, cfg.Validation.ToleranceFraction, logger)
	pipelineSvc := pipelineuc.New(
		extractSvc, retrievalSvc, dosageSvc, auditSvc, store,
		pipelineuc.Timeouts{
			Extract:  time.Duration(cfg.Validation.ExtractTimeoutSec) * time.Second,
			Retrieve: time.Duration(cfg.Validation.RetrieveTimeoutSec) * time.Second,
			Audit:    time.Duration(cfg.Validation.AuditTimeoutSec) * time.Second,
		},
		logger,
	)
	ingestSvc := ingestuc.New(
		corpus, embedder, dosageSvc,
		cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap,
		logger,
	)
	chatSvc := chatuc.New(completer, retrievalSvc, logger)

	// Health service probes the raw providers, not the decorated chain.
	healthSvc := healthuc.New(store, baseEmbedder, baseCompleter)

	server := chiTransport.NewServer(pipelineSvc, ingestSvc, corpus, chatSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
