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

	"github.com/strugglingman/rag-chatbot/internal/config"
	dbRedis "github.com/strugglingman/rag-chatbot/internal/db/redis"
	logpkg "github.com/strugglingman/rag-chatbot/internal/logger"
	"github.com/strugglingman/rag-chatbot/internal/metrics"
	"github.com/strugglingman/rag-chatbot/internal/reader"
	"github.com/strugglingman/rag-chatbot/internal/repository/lexical"
	"github.com/strugglingman/rag-chatbot/internal/repository/session"
	vectorrepo "github.com/strugglingman/rag-chatbot/internal/repository/vector"
	chiTransport "github.com/strugglingman/rag-chatbot/internal/transport/chi"
	openaiTransport "github.com/strugglingman/rag-chatbot/internal/transport/openai"
	"github.com/strugglingman/rag-chatbot/internal/transport/rerank"
	chatuc "github.com/strugglingman/rag-chatbot/internal/usecase/chat"
	healthuc "github.com/strugglingman/rag-chatbot/internal/usecase/health"
	ingestuc "github.com/strugglingman/rag-chatbot/internal/usecase/ingest"
	retrievaluc "github.com/strugglingman/rag-chatbot/internal/usecase/retrieval"
	"github.com/strugglingman/rag-chatbot/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting rag-chatbot API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
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

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:      cfg.Generation.APIKey,
		BaseURL:     cfg.Generation.BaseURL,
		Model:       cfg.Generation.Model,
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		Logger:      logger,
	})

	// Create repositories
	vectorRepo := vectorrepo.New(store, cfg.Embedding.Dimensions)
	if err := vectorRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err))
	}
	lexicalCache := lexical.NewCache(vectorRepo, logger)
	sessions := session.New(cfg.Chat.MaxHistory)

	// Reranker is optional, but only via an explicit use_reranker: false;
	// config validation rejects an enabled reranker without a base URL.
	// Pass a nil interface (not a typed nil pointer) when disabled.
	var reranker retrievaluc.Reranker
	var rerankChecker healthuc.RerankChecker
	useReranker := cfg.Retrieval.UseRerankerEnabled()
	if useReranker {
		client := rerank.New(&rerank.Config{
			BaseURL: cfg.Reranker.BaseURL,
			Timeout: time.Duration(cfg.Reranker.TimeoutSec) * time.Second,
			Logger:  logger,
		})
		reranker = client
		rerankChecker = client
		logger.Info("Reranker enabled", zap.String("base_url", cfg.Reranker.BaseURL))
	}

	// Create use case services
	retrievalSvc := retrievaluc.New(vectorRepo, lexicalCache, reranker, embedder, retrievaluc.Config{
		Candidates:  cfg.Retrieval.Candidates,
		TopK:        cfg.Retrieval.TopK,
		Alpha:       cfg.Retrieval.Alpha,
		MinHybrid:   cfg.Retrieval.MinHybrid,
		AvgHybrid:   cfg.Retrieval.AvgHybrid,
		MinSemantic: cfg.Retrieval.MinSemantic,
		AvgSemantic: cfg.Retrieval.AvgSemantic,
		MinRerank:   cfg.Retrieval.MinRerank,
		AvgRerank:   cfg.Retrieval.AvgRerank,
		MaxQueryLen: cfg.Retrieval.MaxQueryLen,
		UseHybrid:   cfg.Retrieval.UseHybridEnabled(),
		UseReranker: useReranker,
	}, logger)

	ingestSvc := ingestuc.New(reader.New(), embedder, vectorRepo, lexicalCache, ingestuc.Config{
		ChunkTarget:  cfg.Ingest.ChunkTarget,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
	}, logger)

	chatSvc := chatuc.New(retrievalSvc, generator, sessions, chatuc.Config{
		MaxHistory: cfg.Chat.MaxHistory,
	}, logger)

	healthSvc := healthuc.New(store, embedder, rerankChecker)

	// Create chi server
	server := chiTransport.NewServer(chatSvc, ingestSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.JWTAuthMiddleware(chiTransport.AuthConfig{
		Secret:   cfg.Auth.Secret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	}))
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
						"error": "internal error",
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
