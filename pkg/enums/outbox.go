package enums

import (
	"fmt"
	"slices"
)

// OutboxAggregateType names the aggregate an outbox event describes.
type OutboxAggregateType string

const (
	AggregatePlace OutboxAggregateType = "place"
)

// OutboxEventType names a place lifecycle event.
type OutboxEventType string

const (
	EventPlaceCreated OutboxEventType = "place_created"
	EventPlaceDeleted OutboxEventType = "place_deleted"
)

// OutboxDLQErrorReason records why the publisher gave up on a row.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	// OutboxDLQReasonUnroutable marks rows whose type or payload no
	// descriptor accepts; they never reached Pub/Sub.
	OutboxDLQReasonUnroutable OutboxDLQErrorReason = "unroutable"
)

var (
	aggregateTypes = []OutboxAggregateType{AggregatePlace}
	eventTypes     = []OutboxEventType{EventPlaceCreated, EventPlaceDeleted}
	dlqReasons     = []OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable, OutboxDLQReasonUnroutable}
)

func (a OutboxAggregateType) IsValid() bool  { return slices.Contains(aggregateTypes, a) }
func (e OutboxEventType) IsValid() bool      { return slices.Contains(eventTypes, e) }
func (r OutboxDLQErrorReason) IsValid() bool { return slices.Contains(dlqReasons, r) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parseKnown(aggregateTypes, value, "aggregate type")
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parseKnown(eventTypes, value, "event type")
}

func parseKnown[T ~string](known []T, value, kind string) (T, error) {
	if v := T(value); slices.Contains(known, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
