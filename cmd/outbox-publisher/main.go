package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/placemates-backend/pkg/bootstrap"
	"github.com/angelmondragon/placemates-backend/pkg/metrics"
	"github.com/angelmondragon/placemates-backend/pkg/outbox"
	"github.com/angelmondragon/placemates-backend/pkg/outbox/registry"
	"github.com/angelmondragon/placemates-backend/pkg/pubsub"
)

func main() {
	bootstrap.Main("outbox-publisher", run)
}

func run(ctx context.Context, p *bootstrap.Process) error {
	dbClient, err := p.Database(ctx)
	if err != nil {
		return err
	}
	broker, err := p.PubSub(ctx, pubsub.PlacesTopic)
	if err != nil {
		return err
	}
	routes, err := registry.NewEventRegistry(p.Config.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}

	topics := newPubSubTopics(broker)
	p.Own("publishers", func() error { topics.Stop(); return nil })

	dispatcher, err := NewDispatcher(DispatcherParams{
		Outbox:     p.Config.Outbox,
		Logger:     p.Logger,
		DB:         dbClient,
		Broker:     broker,
		Topics:     topics,
		Repository: outbox.NewRepository(dbClient.DB()),
		DLQ:        outbox.NewDLQRepository(dbClient.DB()),
		Registry:   routes,
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fmt.Errorf("outbox dispatcher: %w", err)
	}

	p.ServeMetrics(ctx)
	p.Logger.Info(ctx, "starting outbox dispatcher")
	return dispatcher.Run(ctx)
}
