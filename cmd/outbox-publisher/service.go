package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/angelmondragon/placemates-backend/pkg/config"
	"github.com/angelmondragon/placemates-backend/pkg/db/models"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
	"github.com/angelmondragon/placemates-backend/pkg/metrics"
	"github.com/angelmondragon/placemates-backend/pkg/outbox/registry"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	backoffCeiling     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// DispatcherParams wires the outbox dispatcher.
type DispatcherParams struct {
	Outbox     config.OutboxConfig
	Logger     *logger.Logger
	DB         txRunner
	Broker     pinger
	Topics     topicSource
	Repository outboxRepository
	DLQ        dlqRepository
	Registry   registryResolver
	Metrics    *metrics.OutboxMetrics
}

// Dispatcher drains unpublished outbox rows into Pub/Sub. Rows for the same
// place share an ordering key so place_created is always seen before
// place_deleted.
type Dispatcher struct {
	logg        *logger.Logger
	db          txRunner
	broker      pinger
	topics      topicSource
	repo        outboxRepository
	dlq         dlqRepository
	registry    registryResolver
	metrics     *metrics.OutboxMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Broker == nil:
		return nil, errors.New("pubsub client is required")
	case params.Topics == nil:
		return nil, errors.New("topic source is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	d := &Dispatcher{
		logg:        params.Logger,
		db:          params.DB,
		broker:      params.Broker,
		topics:      params.Topics,
		repo:        params.Repository,
		dlq:         params.DLQ,
		registry:    params.Registry,
		metrics:     params.Metrics,
		batchSize:   params.Outbox.BatchSize,
		maxAttempts: params.Outbox.MaxAttempts,
		poll:        time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if d.batchSize <= 0 {
		d.batchSize = defaultBatchSize
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = defaultMaxAttempts
	}
	if d.poll <= 0 {
		d.poll = defaultPoll
	}
	return d, nil
}

// Run polls until ctx is canceled. A full batch is followed immediately by
// the next one; storage errors back off exponentially up to backoffCeiling.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := d.broker.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	wait := d.poll
	for ctx.Err() == nil {
		drained, err := d.dispatchBatch(ctx)
		switch {
		case err != nil:
			d.metrics.IncBatchError()
			d.logg.Error(ctx, "outbox dispatch batch rolled back", err)
			wait = min(wait*2, backoffCeiling)
		case drained:
			wait = d.poll
			continue
		default:
			wait = d.poll
		}
		if err := pause(ctx, jittered(wait)); err != nil {
			return err
		}
	}
	d.logg.Info(ctx, "outbox dispatcher context canceled")
	return ctx.Err()
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func jittered(d time.Duration) time.Duration {
	return d + rand.N(jitterWindow)
}
