package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/lukagarbi/doorstep/internal/adapters/nats"
	"github.com/lukagarbi/doorstep/internal/adapters/postgres"
	"github.com/lukagarbi/doorstep/internal/core/domain"
	"github.com/lukagarbi/doorstep/internal/pkg/config"
	"github.com/lukagarbi/doorstep/internal/pkg/logging"
)

// The recorder drains detection events off JetStream and turns them into
// detection_runs rows. It is the only writer of run history; the API and
// the rescan worker just publish.
func main() {
	cfg, err := config.Load("doorstep-recorder")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	runs := postgres.NewDetectionRunRepo(db)

	// NATS
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	err = sub.SubscribeDetectionEvents(ctx, func(ctx context.Context, event *domain.DetectionEvent) error {
		// Ad-hoc detections have no territory row to attach history to.
		if event.TerritoryID == "" {
			return nil
		}

		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		run := &domain.DetectionRun{
			TerritoryID:    event.TerritoryID,
			Trigger:        event.Trigger,
			BuildingCount:  event.BuildingCount,
			SimulatedCount: event.SimulatedCount,
			Warnings:       event.Warnings,
			At:             event.At,
		}
		if err := runs.Record(writeCtx, run); err != nil {
			slog.Error("record detection run failed",
				"territory_id", event.TerritoryID, "error", err)
			return err
		}

		slog.Info("detection run recorded",
			"territory_id", event.TerritoryID,
			"trigger", event.Trigger,
			"buildings", event.BuildingCount,
			"simulated", event.SimulatedCount)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	log.Println("recorder started, waiting for detection events")

	// Signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Printf("received signal %v, shutting down recorder", sig)
	cancel()
	// Give the in-flight handler time to finish
	time.Sleep(2 * time.Second)
}
