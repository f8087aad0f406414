package purge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/placemates-backend/internal/places"
	"github.com/angelmondragon/placemates-backend/pkg/enums"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
	"github.com/angelmondragon/placemates-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/placemates-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/placemates-backend/pkg/outbox/registry"
	"github.com/google/uuid"
)

// ConsumerName scopes this worker's idempotency claims.
const ConsumerName = "purge-worker"

const (
	lockScope      = "place-purge"
	defaultLockTTL = 2 * time.Minute
	eventTypeAttr  = "event_type"
	eventIDAttr    = "event_id"
)

type subscription interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type eventGuard interface {
	Claim(ctx context.Context, eventID uuid.UUID) (idempotency.State, error)
	Complete(ctx context.Context, eventID uuid.UUID) error
	Abandon(ctx context.Context, eventID uuid.UUID) error
}

type placeLocker interface {
	TryLock(ctx context.Context, scope, id string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, scope, id string) error
}

type prefixPurger interface {
	Purge(ctx context.Context, placeID uuid.UUID) places.PurgeResult
}

type processResult struct {
	ack  bool
	nack bool
}

// ConsumerParams wires the purge worker.
type ConsumerParams struct {
	Subscription subscription
	Dedupe       eventGuard
	Purger       prefixPurger
	Locker       placeLocker
	LockTTL      time.Duration
	Logger       *logger.Logger
}

// Consumer re-sweeps the blob prefix of every deleted place so objects left
// behind by swallowed delete failures are eventually removed.
type Consumer struct {
	subscription subscription
	dedupe       eventGuard
	purger       prefixPurger
	locker       placeLocker
	lockTTL      time.Duration
	logg         *logger.Logger
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Subscription == nil {
		return nil, errors.New("purge subscription is required")
	}
	if params.Dedupe == nil {
		return nil, errors.New("event guard is required")
	}
	if params.Purger == nil {
		return nil, errors.New("purger is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	ttl := params.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	return &Consumer{
		subscription: params.Subscription,
		dedupe:       params.Dedupe,
		purger:       params.Purger,
		locker:       params.Locker,
		lockTTL:      ttl,
		logg:         params.Logger,
	}, nil
}

// Run processes place_deleted messages until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(strings.TrimSpace(msg.Attributes[eventTypeAttr]))
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != enums.EventPlaceDeleted {
		c.logg.Info(logCtx, "skipping event not handled by purge worker")
		return processResult{ack: true}
	}

	envelope, event, err := registry.OpenAs[payloads.PlaceDeletedEvent](eventType, msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode place_deleted message", err)
		return processResult{ack: true}
	}
	if event.PlaceID == uuid.Nil {
		c.logg.Error(logCtx, "place_deleted payload missing place id", fmt.Errorf("empty place_id"))
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(firstNonEmpty(envelope.EventID, msg.Attributes[eventIDAttr]))
	if err != nil {
		c.logg.Error(logCtx, "place_deleted event id invalid", err)
		return processResult{ack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"event_id":    eventID.String(),
		"place_id":    event.PlaceID.String(),
		"blob_prefix": places.BlobPrefix(event.PlaceID),
	})
	if event.BlobPrefix != "" && event.BlobPrefix != places.BlobPrefix(event.PlaceID) {
		c.logg.Warn(c.logg.WithField(logCtx, "event_blob_prefix", event.BlobPrefix), "event blob prefix differs from place prefix")
	}

	state, err := c.dedupe.Claim(logCtx, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency claim failed", err)
		return processResult{nack: true}
	}
	switch state {
	case idempotency.Completed:
		c.logg.Info(logCtx, "place purge already processed")
		return processResult{ack: true}
	case idempotency.InProgress:
		c.logg.Info(logCtx, "place purge in progress elsewhere")
		return processResult{nack: true}
	}

	if c.locker != nil {
		locked, err := c.locker.TryLock(logCtx, lockScope, event.PlaceID.String(), c.lockTTL)
		if err != nil || !locked {
			if err == nil {
				err = errors.New("place purge lease held elsewhere")
			}
			c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "place purge lease not acquired")
			return c.retry(logCtx, eventID)
		}
		defer func() {
			if err := c.locker.Unlock(logCtx, lockScope, event.PlaceID.String()); err != nil {
				c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "place purge lease release failed")
			}
		}()
	}

	result := c.purger.Purge(logCtx, event.PlaceID)
	if !result.Listed || result.Failed > 0 {
		c.logg.Warn(c.logg.WithFields(logCtx, map[string]any{
			"listed": result.Listed,
			"failed": result.Failed,
		}), "place purge incomplete")
		return c.retry(logCtx, eventID)
	}

	if err := c.dedupe.Complete(logCtx, eventID); err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "failed to mark place purge complete")
	}
	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"found":   result.Found,
		"deleted": result.Deleted,
	}), "place purge complete")
	return processResult{ack: true}
}

// retry abandons the claim so the redelivered message is processed.
func (c *Consumer) retry(ctx context.Context, eventID uuid.UUID) processResult {
	if err := c.dedupe.Abandon(ctx, eventID); err != nil {
		c.logg.Error(ctx, "failed to release idempotency key", err)
	}
	return processResult{nack: true}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
