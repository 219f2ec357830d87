//	@title			mediacore API
//	@version		1.0
//	@description	Media ingestion backend: video and image uploads, thumbnail derivation, signed access and a same-origin media proxy.
//
//	@host		localhost:8080
//	@BasePath	/api/v1

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/swinglab/mediacore/internal/config"
	"github.com/swinglab/mediacore/internal/logging"
	"github.com/swinglab/mediacore/internal/media"
	"github.com/swinglab/mediacore/internal/metrics"
	appMiddleware "github.com/swinglab/mediacore/internal/middleware"
	"github.com/swinglab/mediacore/internal/proxy"
	"github.com/swinglab/mediacore/internal/signedurl"
	"github.com/swinglab/mediacore/internal/storage"
	"github.com/swinglab/mediacore/internal/thumbnail"
	"github.com/swinglab/mediacore/internal/workpool"

	_ "github.com/swinglab/mediacore/docs/swagger"
)

func main() {
	cfg := config.Load()

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		panic(err)
	}
	defer logging.Sync()

	if err := cfg.Validate(); err != nil {
		logging.Fatal("invalid configuration", zap.Error(err))
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	backend, err := storage.NewBackendFromConfig(startCtx, cfg)
	cancelStart()
	if err != nil {
		logging.Fatal("storage backend init failed", zap.String("type", cfg.StorageType), zap.Error(err))
	}
	logging.Info("storage backend ready",
		zap.String("kind", string(backend.Kind())),
		zap.String("container", backend.Container()))

	// Wire dependencies: backend → storage service → deriver/issuer/proxy → media service → handlers
	store := storage.NewService(backend)

	derivePool := workpool.New("derive", cfg.ThumbnailWorkers, cfg.ThumbnailWorkers*8)
	deriver := thumbnail.New(thumbnail.Config{
		Extractor: &thumbnail.FFmpeg{Binary: cfg.FFmpegPath, Timeout: cfg.ThumbnailTimeout},
		Pool:      derivePool,
		TempDir:   cfg.ThumbnailTempDir,
	})

	issuer := signedurl.NewIssuer(backend)
	relay := proxy.New(proxy.Config{
		Locator:  store,
		Grants:   issuer.Profile("proxy", cfg.ProxySignedURLTTL),
		Client:   &http.Client{Timeout: cfg.ProxyTimeout},
		Cache:    proxy.CachePolicy{MaxAge: cfg.ProxyCacheMaxAge},
		MaxBytes: cfg.ProxyMaxBytes,
	})

	mediaSvc := media.NewService(store, deriver, issuer.Profile("client", cfg.SignedURLTTL), relay)
	mediaHandler := media.NewHandler(mediaSvc, cfg.UploadMaxBytes)
	proxyHandler := proxy.NewHandler(relay)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(appMiddleware.Metrics)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Length", "Content-Type", "Cache-Control"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","storage":"` + string(backend.Kind()) + `"}`))
	})

	r.Handle("/metrics", metrics.Handler())

	// Swagger UI: available at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Locally stored objects are served by the app itself.
	if local, ok := backend.(*storage.LocalBackend); ok {
		r.Handle(local.Mount()+"/*", local.FileHandler(cfg.LocalSignedOnly))
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/media", mediaHandler.Routes)
		r.Route("/proxy", proxyHandler.Routes)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logging.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.AppEnv),
			zap.String("swagger", "http://localhost:"+cfg.Port+"/swagger/"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	logging.Info("shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("forced shutdown", zap.Error(err))
	}

	// In-flight thumbnail derivations finish before their pool and the backend go away.
	if err := mediaSvc.Close(); err != nil {
		logging.Error("media service close", zap.Error(err))
	}
	if err := derivePool.Close(); err != nil {
		logging.Error("derivation pool close", zap.Error(err))
	}
	if err := backend.Close(); err != nil {
		logging.Error("storage backend close", zap.Error(err))
	}

	logging.Info("server stopped")
}
