package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/placemates-backend/internal/cron"
	"github.com/angelmondragon/placemates-backend/internal/places"
	"github.com/angelmondragon/placemates-backend/pkg/bootstrap"
	"github.com/angelmondragon/placemates-backend/pkg/metrics"
	"github.com/angelmondragon/placemates-backend/pkg/outbox"
)

func main() {
	bootstrap.Main("cron-worker", run)
}

func run(ctx context.Context, p *bootstrap.Process) error {
	cfg, logg := p.Config, p.Logger

	dbClient, err := p.Database(ctx)
	if err != nil {
		return err
	}
	leases, err := p.Redis(ctx)
	if err != nil {
		return err
	}
	blobs, err := p.Storage(ctx)
	if err != nil {
		return err
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Days:       cfg.Cron.OutboxRetentionDays,
		Chunk:      cfg.Cron.RetentionChunk,
	})
	if err != nil {
		return fmt.Errorf("outbox retention job: %w", err)
	}
	replay, err := cron.NewDLQPurgeReplayJob(cron.DLQPurgeReplayJobParams{
		Logger:   logg,
		DLQ:      outbox.NewDLQRepository(dbClient.DB()),
		Purger:   places.NewPurger(blobs, logg, metrics.NewEngineMetrics(prometheus.DefaultRegisterer), cfg.Engine.FanOutLimit),
		Lookback: cfg.Cron.DLQLookback,
	})
	if err != nil {
		return fmt.Errorf("dlq purge replay job: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Jobs:     []cron.Job{retention, replay},
		Leases:   leases,
		Env:      cfg.App.Env,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	p.ServeMetrics(ctx)
	logg.Info(ctx, "starting cron worker")
	return service.Run(ctx)
}
