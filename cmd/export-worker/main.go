package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pinoerp/wms-backend/internal/export"
	"github.com/pinoerp/wms-backend/internal/movements/events"
	"github.com/pinoerp/wms-backend/internal/movements/repository"
	"github.com/pinoerp/wms-backend/pkg/config"
	"github.com/pinoerp/wms-backend/pkg/database"
	"github.com/pinoerp/wms-backend/pkg/logger"
	"github.com/pinoerp/wms-backend/pkg/messaging"
	"github.com/pinoerp/wms-backend/pkg/operator"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("export-worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("export-worker", cfg.Server.Environment)
	log.Info().Msg("starting Export Worker")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewMovementEventPublisher(rmq, "export-worker", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize the spool writer and exporter
	writer, err := export.NewSpoolWriter(cfg.Legacy.SpoolDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create spool writer")
	}

	movementRepo := repository.NewMovementRepository(db)
	exporter := export.NewExporter(db, movementRepo, writer, publisher, cfg.Export.BatchSize, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = operator.WithOperator(ctx, operator.System())

	// Wake-ups are edge hints only; the poll ticker catches anything a
	// lost message would leave behind.
	wake := make(chan struct{}, 1)

	consumer, err := messaging.NewConsumer(rmq, "export-worker.eligible", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create consumer")
	}
	if err := consumer.Subscribe(messaging.ExchangeMovementEvents, messaging.EventExportEligible); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to export eligible events")
	}
	consumer.RegisterHandler(messaging.EventExportEligible, func(ctx context.Context, event *messaging.Event) error {
		select {
		case wake <- struct{}{}:
		default:
		}
		return nil
	})
	if err := consumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start consumer")
	}

	go runLoop(ctx, exporter, wake, cfg.Export.PollInterval, log)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down export worker")
	cancel()
	time.Sleep(time.Second)
	log.Info().Msg("export worker stopped")
}

func runLoop(ctx context.Context, exporter *export.Exporter, wake <-chan struct{}, pollInterval time.Duration, log *logger.Logger) {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
		case <-ticker.C:
		}

		if _, err := exporter.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("export run failed")
		}
	}
}
