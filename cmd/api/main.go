package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lukagarbi/doorstep/internal/adapters/geocode"
	"github.com/lukagarbi/doorstep/internal/adapters/http"
	natsadapter "github.com/lukagarbi/doorstep/internal/adapters/nats"
	"github.com/lukagarbi/doorstep/internal/adapters/overpass"
	"github.com/lukagarbi/doorstep/internal/adapters/postgres"
	"github.com/lukagarbi/doorstep/internal/adapters/valkey"
	"github.com/lukagarbi/doorstep/internal/core/ports"
	"github.com/lukagarbi/doorstep/internal/core/usecases"
	"github.com/lukagarbi/doorstep/internal/pkg/config"
	"github.com/lukagarbi/doorstep/internal/pkg/logging"
	"github.com/lukagarbi/doorstep/internal/pkg/metrics"
	"github.com/lukagarbi/doorstep/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("doorstep-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache. A nil *valkey.Cache must not reach the services as a non-nil
	// interface, so the interface value is only assigned on success.
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, caching disabled", "error", err)
		cache = nil
	} else {
		cacheSvc = cache
		defer cache.Close()
	}

	// NATS JetStream publisher
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, events disabled", "error", err)
	} else {
		publisher = pub
		defer pub.Close()
	}

	// Raw NATS connection for the WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Repos and external clients
	territoryRepo := postgres.NewTerritoryRepo(db)
	runRepo := postgres.NewDetectionRunRepo(db)
	source := overpass.NewClient(cfg.Overpass)
	geocoder := geocode.NewClient(cfg.Geocoding)

	// Use cases
	resolver := usecases.NewAddressResolver(geocoder, cacheSvc, cfg.Geocoding.CacheTTLSeconds)
	synth := usecases.NewSynthesizer(cfg.Detection.SampleAttempts)
	detector := usecases.NewDetectionService(source, resolver, synth, publisher, usecases.DetectionParams{
		AreaPerBuildingM2: cfg.Detection.AreaPerBuildingM2,
		MinTarget:         cfg.Detection.MinTarget,
		MaxTarget:         cfg.Detection.MaxTarget,
	})
	territorySvc := usecases.NewTerritoryService(territoryRepo, runRepo, cacheSvc, publisher, detector)

	deps := &http.Dependencies{
		Territories: territorySvc,
		Detector:    detector,
		NATS:        natsConn,
		DB:          db,
		Cache:       cache,
	}

	// Connection pool gauges for the /metrics endpoint
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			}
		}
	}()

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Doorstep API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.doorstep.eus",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
