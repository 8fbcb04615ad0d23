package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tckmpsi/kq-classifier/internal/cache"
	"github.com/tckmpsi/kq-classifier/internal/classifier"
	"github.com/tckmpsi/kq-classifier/internal/config"
	"github.com/tckmpsi/kq-classifier/internal/handlers"
	"github.com/tckmpsi/kq-classifier/internal/model"
	"github.com/tckmpsi/kq-classifier/internal/vision"
)

func main() {
	cfg := config.LoadServer()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	modelsDir := cfg.ModelsDir
	if !filepath.IsAbs(modelsDir) {
		wd, err := os.Getwd()
		if err != nil {
			log.Fatalf("Failed to get working directory: %v", err)
		}
		// If running from cmd/server, go up two levels
		if filepath.Base(wd) == "server" {
			wd = filepath.Join(wd, "../..")
		}
		modelsDir = filepath.Join(wd, modelsDir)
	}

	log.Printf("Loading models %v from: %s", cfg.ModelNames, modelsDir)

	registry, err := model.NewRegistry(modelsDir, cfg.ModelNames, cfg.OrtLibrary)
	if err != nil {
		log.Fatalf("Failed to initialize model registry: %v", err)
	}
	defer registry.Close()

	mux := classifier.NewMux(cfg.ModelNames[0])
	for _, name := range registry.Names() {
		m, _ := registry.Get(name)
		mux.Handle(name, m)
	}

	ctx := context.Background()

	if cfg.VisionEnabled {
		vc, err := vision.NewLabelClassifier(ctx)
		if err != nil {
			log.Printf("[WARN] Cloud Vision unavailable: %v", err)
		} else {
			defer func() {
				if err := vc.Close(); err != nil {
					log.Println("[ERROR] Failed to close vision client:", err)
				}
			}()
			mux.Handle(vision.ModelName, vc)
		}
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		if tmp, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword); err != nil {
			log.Println("[WARN] Redis unavailable. Running without cache.")
		} else {
			rdb = tmp
			defer func() {
				if err := rdb.Close(); err != nil {
					log.Println("[ERROR] Failed to close Redis client:", err)
				}
			}()
		}
	}

	cached := cache.NewCachingClassifier(rdb, cfg.CacheTTL, mux, "kq")
	// Freshly loaded weights may disagree with results cached by a previous run.
	for _, name := range registry.Names() {
		if err := cached.Invalidate(ctx, name); err != nil {
			log.Printf("[WARN] Failed to invalidate cache for %s: %v", name, err)
		}
	}

	handler := handlers.NewHandler(cached, mux, registry)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("Models: %v", mux.Names())
	log.Println("Endpoints:")
	log.Println("  GET  /health        - Health check")
	log.Println("  GET  /models        - Available models")
	log.Println("  POST /kq            - Classify a Base64 image")
	log.Println("  POST /predict       - Raw tensor prediction")
	log.Println("  POST /predict/image - Classify an uploaded image")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
