package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/lukagarbi/doorstep/internal/adapters/geocode"
	natsadapter "github.com/lukagarbi/doorstep/internal/adapters/nats"
	"github.com/lukagarbi/doorstep/internal/adapters/overpass"
	"github.com/lukagarbi/doorstep/internal/adapters/postgres"
	"github.com/lukagarbi/doorstep/internal/adapters/valkey"
	"github.com/lukagarbi/doorstep/internal/core/ports"
	"github.com/lukagarbi/doorstep/internal/core/usecases"
	"github.com/lukagarbi/doorstep/internal/pkg/config"
	"github.com/lukagarbi/doorstep/internal/pkg/logging"
	"github.com/lukagarbi/doorstep/internal/workflows"
)

func main() {
	cfg, err := config.Load("doorstep-rescan")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx := context.Background()

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache, optional
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, caching disabled", "error", err)
	} else {
		cacheSvc = cache
		defer cache.Close()
	}

	// Events, optional. Without a publisher rescans still run; they just
	// leave no trail for the recorder.
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, events disabled", "error", err)
	} else {
		publisher = pub
		defer pub.Close()
	}

	// The worker runs the same detection pipeline as the API.
	source := overpass.NewClient(cfg.Overpass)
	geocoder := geocode.NewClient(cfg.Geocoding)
	resolver := usecases.NewAddressResolver(geocoder, cacheSvc, cfg.Geocoding.CacheTTLSeconds)
	synth := usecases.NewSynthesizer(cfg.Detection.SampleAttempts)
	detector := usecases.NewDetectionService(source, resolver, synth, publisher, usecases.DetectionParams{
		AreaPerBuildingM2: cfg.Detection.AreaPerBuildingM2,
		MinTarget:         cfg.Detection.MinTarget,
		MaxTarget:         cfg.Detection.MaxTarget,
	})
	territorySvc := usecases.NewTerritoryService(
		postgres.NewTerritoryRepo(db),
		postgres.NewDetectionRunRepo(db),
		cacheSvc,
		publisher,
		detector,
	)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.NightlyRescanWorkflow)
	w.RegisterActivity(&workflows.RescanActivities{
		Territories: territorySvc,
	})

	// Kick off the cron schedule. On redeploy the workflow id already
	// exists, which is fine; the schedule keeps running.
	_, err = c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:           "nightly-rescan",
		TaskQueue:    cfg.Temporal.TaskQueue,
		CronSchedule: cfg.Temporal.CronSchedule,
	}, workflows.NightlyRescanWorkflow)
	if err != nil {
		slog.Warn("cron schedule not started", "error", err)
	}

	log.Println("rescan worker started")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
