package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/placemates-backend/internal/places"
	"github.com/angelmondragon/placemates-backend/internal/purge"
	"github.com/angelmondragon/placemates-backend/pkg/bootstrap"
	"github.com/angelmondragon/placemates-backend/pkg/metrics"
	"github.com/angelmondragon/placemates-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/placemates-backend/pkg/pubsub"
)

func main() {
	bootstrap.Main("purge-worker", run)
}

func run(ctx context.Context, p *bootstrap.Process) error {
	cfg, logg := p.Config, p.Logger

	redisClient, err := p.Redis(ctx)
	if err != nil {
		return err
	}
	blobs, err := p.Storage(ctx)
	if err != nil {
		return err
	}
	broker, err := p.PubSub(ctx, pubsub.PurgeSubscription)
	if err != nil {
		return err
	}
	subscription := broker.PurgeSubscription()
	if subscription == nil {
		return errors.New("purge subscription not configured")
	}

	guard, err := idempotency.NewGuard(redisClient, purge.ConsumerName, cfg.Eventing.OutboxIdempotencyTTL, 0)
	if err != nil {
		return fmt.Errorf("idempotency guard: %w", err)
	}
	consumer, err := purge.NewConsumer(purge.ConsumerParams{
		Subscription: subscription,
		Dedupe:       guard,
		Purger:       places.NewPurger(blobs, logg, metrics.NewEngineMetrics(prometheus.DefaultRegisterer), cfg.Engine.FanOutLimit),
		Locker:       redisClient,
		Logger:       logg,
	})
	if err != nil {
		return fmt.Errorf("purge consumer: %w", err)
	}

	p.ServeMetrics(ctx)
	logg.Info(ctx, "purge worker ready")
	return consumer.Run(ctx)
}
