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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/flora/internal/config"
	"github.com/kailas-cloud/flora/internal/db"
	"github.com/kailas-cloud/flora/internal/db/memory"
	dbRedis "github.com/kailas-cloud/flora/internal/db/redis"
	"github.com/kailas-cloud/flora/internal/domain/upload"
	logpkg "github.com/kailas-cloud/flora/internal/logger"
	"github.com/kailas-cloud/flora/internal/metrics"
	previewrepo "github.com/kailas-cloud/flora/internal/repository/preview"
	"github.com/kailas-cloud/flora/internal/transport/catalog"
	chiTransport "github.com/kailas-cloud/flora/internal/transport/chi"
	healthuc "github.com/kailas-cloud/flora/internal/usecase/health"
	previewuc "github.com/kailas-cloud/flora/internal/usecase/preview"
	sessionuc "github.com/kailas-cloud/flora/internal/usecase/session"
	"github.com/kailas-cloud/flora/internal/version"
	"github.com/kailas-cloud/flora/internal/view"
)

func main() {
	// Optional .env for local runs
	_ = godotenv.Load()

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

	logger.Info("Starting flora",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("catalog_base_url", cfg.Catalog.BaseURL),
		zap.String("preview_driver", cfg.Preview.Driver),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterAppMetrics()

	// Preview store based on driver
	var store db.Store
	switch cfg.Preview.Driver {
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Preview.Addrs,
			Password: cfg.Preview.Password,
		})
	case "memory":
		store = memory.NewStore()
	default:
		logger.Fatal("Unknown preview driver", zap.String("driver", cfg.Preview.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create preview store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Preview.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Preview store not ready", zap.Error(err))
	}
	logger.Info("Preview store ready")

	catalogClient := catalog.New(catalog.Config{
		BaseURL: cfg.Catalog.BaseURL,
		Timeout: time.Duration(cfg.Catalog.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	validator := upload.NewValidator(cfg.Upload.MaxBytes)
	previewSvc := previewuc.New(
		previewrepo.New(store, time.Duration(cfg.Preview.TTLSec)*time.Second),
		logger,
	)
	sessions := sessionuc.NewManager(
		sessionuc.ManagerConfig{IdleTimeout: time.Duration(cfg.Session.IdleTimeoutSec) * time.Second},
		catalogClient, sessionuc.PreviewService{Service: previewSvc}, validator, logger,
	)
	healthSvc := healthuc.New(store, catalogClient)

	renderer, err := view.NewRenderer()
	if err != nil {
		logger.Fatal("Failed to parse templates", zap.Error(err))
	}

	server := chiTransport.NewServer(
		sessions, previewSvc, catalogClient, validator, healthSvc, renderer,
		chiTransport.Options{
			CookieName:     cfg.Session.CookieName,
			SecureCookie:   cfg.Session.SecureCookie,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
		},
		logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sessions.Run(sweepCtx, time.Duration(cfg.Session.SweepIntervalSec)*time.Second)

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

	// Release previews before the store closes
	stopSweep()
	sessions.Close(shutdownCtx)

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
						"detail": "internal error",
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

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
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
