// Package idempotency dedupes at-least-once Pub/Sub deliveries per consumer.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/placemates-backend/pkg/redis"
)

const (
	markerProcessing = "processing"
	markerDone       = "done"

	defaultClaimTTL = 5 * time.Minute
)

// State is the outcome of claiming an event.
type State int

const (
	// Claimed means the caller owns the event and must Complete or Abandon it.
	Claimed State = iota
	// InProgress means another delivery holds an unexpired claim.
	InProgress
	// Completed means the event was already handled.
	Completed
)

// Guard tracks events for one consumer under
// pm:idempotency:evt:<consumer>:<event id>. A claim expires after claimTTL,
// so a worker that dies mid-event does not block redelivery for long.
type Guard struct {
	store    redis.IdempotencyStore
	consumer string
	doneTTL  time.Duration
	claimTTL time.Duration
}

func NewGuard(store redis.IdempotencyStore, consumer string, doneTTL, claimTTL time.Duration) (*Guard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case consumer == "":
		return nil, errors.New("consumer name is required")
	case doneTTL < 0:
		return nil, errors.New("ttl must be non-negative")
	}
	if claimTTL <= 0 {
		claimTTL = defaultClaimTTL
	}
	return &Guard{store: store, consumer: consumer, doneTTL: doneTTL, claimTTL: claimTTL}, nil
}

func (g *Guard) Claim(ctx context.Context, eventID uuid.UUID) (State, error) {
	key, err := g.key(eventID)
	if err != nil {
		return InProgress, err
	}
	ok, err := g.store.SetNX(ctx, key, markerProcessing, g.claimTTL)
	if err != nil {
		return InProgress, err
	}
	if ok {
		return Claimed, nil
	}
	current, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		// Claim expired between the two calls; let the redelivery take it.
		return InProgress, nil
	case err != nil:
		return InProgress, err
	case current == markerDone:
		return Completed, nil
	default:
		return InProgress, nil
	}
}

// Complete marks the event handled for doneTTL.
func (g *Guard) Complete(ctx context.Context, eventID uuid.UUID) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Set(ctx, key, markerDone, g.doneTTL)
}

// Abandon drops the claim so the next delivery runs again.
func (g *Guard) Abandon(ctx context.Context, eventID uuid.UUID) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(eventID uuid.UUID) (string, error) {
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey("evt:"+g.consumer, eventID.String()), nil
}
