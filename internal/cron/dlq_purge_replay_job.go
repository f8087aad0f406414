package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/placemates-backend/internal/places"
	"github.com/angelmondragon/placemates-backend/pkg/db/models"
	"github.com/angelmondragon/placemates-backend/pkg/enums"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
)

const (
	defaultDLQLookback = 72 * time.Hour
	dlqReplayBatch     = 200
)

type deadLetterLister interface {
	ListByTypeSince(ctx context.Context, eventType enums.OutboxEventType, since time.Time, limit int) ([]models.OutboxDLQ, error)
}

type prefixPurger interface {
	Purge(ctx context.Context, placeID uuid.UUID) places.PurgeResult
}

type DLQPurgeReplayJobParams struct {
	Logger   *logger.Logger
	DLQ      deadLetterLister
	Purger   prefixPurger
	Lookback time.Duration
}

// NewDLQPurgeReplayJob re-sweeps the blob prefix of every place whose
// place_deleted event was dead-lettered and so never reached the purge
// worker. Sweeping an empty prefix is a no-op, so overlapping windows are
// harmless.
func NewDLQPurgeReplayJob(params DLQPurgeReplayJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DLQ == nil {
		return nil, fmt.Errorf("dlq repository required")
	}
	if params.Purger == nil {
		return nil, fmt.Errorf("purger required")
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultDLQLookback
	}
	return &dlqPurgeReplayJob{
		logg:     params.Logger,
		dlq:      params.DLQ,
		purger:   params.Purger,
		lookback: lookback,
		now:      time.Now,
	}, nil
}

type dlqPurgeReplayJob struct {
	logg     *logger.Logger
	dlq      deadLetterLister
	purger   prefixPurger
	lookback time.Duration
	now      func() time.Time
}

func (j *dlqPurgeReplayJob) Name() string { return "dlq-purge-replay" }

func (j *dlqPurgeReplayJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.lookback)
	entries, err := j.dlq.ListByTypeSince(ctx, enums.EventPlaceDeleted, since, dlqReplayBatch)
	if err != nil {
		return fmt.Errorf("list dead letters: %w", err)
	}

	seen := make(map[uuid.UUID]struct{}, len(entries))
	var errs error
	swept, deleted := 0, 0
	for _, entry := range entries {
		if entry.AggregateID == uuid.Nil {
			continue
		}
		if _, ok := seen[entry.AggregateID]; ok {
			continue
		}
		seen[entry.AggregateID] = struct{}{}

		result := j.purger.Purge(ctx, entry.AggregateID)
		swept++
		deleted += result.Deleted
		if !result.Listed || result.Failed > 0 {
			errs = multierr.Append(errs, fmt.Errorf("place %s: listed=%t failed=%d", entry.AggregateID, result.Listed, result.Failed))
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"since":         since,
		"dead_letters":  len(entries),
		"places_swept":  swept,
		"blobs_deleted": deleted,
	}), "dead-lettered purges replayed")
	return errs
}
