package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/bryanwahyu/medreport-ai/internal/application"
	appanalysis "github.com/bryanwahyu/medreport-ai/internal/application/analysis"
	"github.com/bryanwahyu/medreport-ai/internal/config"
	domai "github.com/bryanwahyu/medreport-ai/internal/domain/ai"
	openaiClient "github.com/bryanwahyu/medreport-ai/internal/infra/ai/openai"
	"github.com/bryanwahyu/medreport-ai/internal/infra/httpserver"
	"github.com/bryanwahyu/medreport-ai/internal/middleware"
)

func main() {
	// .env is optional, real env always wins
	_ = godotenv.Load()

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := newLogger(cfg.Log.Level)

	// remote generator behind the capability port
	gen := openaiClient.NewClient(cfg.AI.APIKey, cfg.AI.FastModel, cfg.AI.CapableModel)

	invoker := appanalysis.NewInvoker(gen, appanalysis.RetryConfig{
		MaxAttempts:           cfg.Retry.MaxAttempts,
		BaseDelay:             cfg.BaseDelay(),
		RateLimitBaseDelay:    cfg.RateLimitBaseDelay(),
		MaxDelay:              cfg.MaxDelay(),
		DefaultRetryAfter:     5 * time.Minute,
		UnavailableRetryAfter: time.Minute,
	}, logger)

	svc := appanalysis.NewService(
		appanalysis.NewExtractor(logger),
		invoker,
		application.SystemClock{},
		domai.Tier(cfg.AI.Tier),
		logger,
	)

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	mux.Use(middleware.LoggingMiddleware(logger))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate))
	mux.Mount("/", httpserver.NewRouter(svc, httpserver.Options{
		MaxFileSize: cfg.Upload.MaxFileSizeBytes,
		TempDir:     cfg.Upload.TempDir,
	}, logger))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
