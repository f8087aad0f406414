package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/placemates-backend/pkg/db/models"
	"github.com/angelmondragon/placemates-backend/pkg/enums"
	"github.com/angelmondragon/placemates-backend/pkg/metrics"
	"github.com/angelmondragon/placemates-backend/pkg/outbox/registry"
	"gorm.io/gorm"
)

type outcome struct {
	kind   string
	reason enums.OutboxDLQErrorReason
	err    error
	topic  string
}

// dispatchBatch locks up to batchSize rows and settles each of them inside a
// single transaction. It reports whether any rows were found.
func (d *Dispatcher) dispatchBatch(ctx context.Context) (bool, error) {
	found := false
	err := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := d.repo.FetchUnpublishedForPublish(tx, d.batchSize, d.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox rows: %w", err)
		}
		found = len(rows) > 0
		for _, row := range rows {
			result := d.dispatchOne(ctx, row)
			if err := d.record(ctx, tx, row, result); err != nil {
				return err
			}
		}
		return nil
	})
	return found, err
}

func (d *Dispatcher) dispatchOne(ctx context.Context, row models.OutboxEvent) outcome {
	resolved, err := d.registry.Resolve(row)
	if err != nil {
		return outcome{kind: metrics.DispatchDeadLettered, reason: enums.OutboxDLQReasonUnroutable, err: err}
	}
	topic := resolved.Route.Topic

	err = d.send(ctx, row, resolved)
	var nonRetryable registry.NonRetryableError
	switch {
	case err == nil:
		return outcome{kind: metrics.DispatchPublished, topic: topic}
	case errors.As(err, &nonRetryable):
		return outcome{kind: metrics.DispatchDeadLettered, reason: enums.OutboxDLQReasonNonRetryable, err: err, topic: topic}
	case row.AttemptCount+1 >= d.maxAttempts:
		return outcome{
			kind:   metrics.DispatchDeadLettered,
			reason: enums.OutboxDLQReasonMaxAttempts,
			err:    fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err),
			topic:  topic,
		}
	default:
		return outcome{kind: metrics.DispatchRetry, err: err, topic: topic}
	}
}

func (d *Dispatcher) send(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Route.Topic
	pub := d.topics.Topic(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	key := row.AggregateID.String()
	msg := &gcppubsub.Message{
		Data:        row.Payload,
		OrderingKey: key,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   key,
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}

	sendCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(sendCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", topic))
	}
	if _, err := result.Get(sendCtx); err != nil {
		// A failed publish pauses its ordering key until resumed.
		pub.ResumePublish(key)
		return err
	}
	return nil
}

func (d *Dispatcher) record(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, result outcome) error {
	d.metrics.IncDispatched(string(row.EventType), result.kind)
	ctx = d.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"place_id":      row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
		"topic":         result.topic,
	})

	switch result.kind {
	case metrics.DispatchPublished:
		if err := d.repo.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		d.logg.Info(ctx, "outbox event published")
	case metrics.DispatchRetry:
		d.logg.Warn(d.logg.WithField(ctx, "error", result.err.Error()), "outbox publish failed, will retry")
		if err := d.repo.MarkFailedTx(tx, row.ID, result.err); err != nil {
			return fmt.Errorf("mark failed %s: %w", row.ID, err)
		}
	default:
		ctx = d.logg.WithFields(ctx, map[string]any{"error": result.err.Error(), "error_reason": result.reason})
		d.logg.Warn(ctx, "outbox event dead-lettered")
		if err := d.dlq.InsertTx(tx, deadLetter(row, result)); err != nil {
			return fmt.Errorf("insert dlq %s: %w", row.ID, err)
		}
		if err := d.repo.MarkTerminalTx(tx, row.ID, result.err, d.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", row.ID, err)
		}
	}
	return nil
}

func deadLetter(row models.OutboxEvent, result outcome) models.OutboxDLQ {
	msg := result.err.Error()
	return models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   result.reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
}
