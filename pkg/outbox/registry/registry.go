package registry

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/placemates-backend/pkg/config"
	"github.com/angelmondragon/placemates-backend/pkg/db/models"
	"github.com/angelmondragon/placemates-backend/pkg/enums"
	"github.com/angelmondragon/placemates-backend/pkg/outbox"
	"github.com/google/uuid"
)

// Route is where a resolved row is published.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row that passed validation and decoding.
type ResolvedEvent struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

// EventRegistry routes outbox rows to topics. Every place lifecycle event
// shares the places topic, so one ordering key per place covers both kinds.
type EventRegistry struct {
	routes map[enums.OutboxEventType]Route
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.PlacesTopic)
	if topic == "" {
		return nil, fmt.Errorf("places topic is required")
	}
	reg := &EventRegistry{routes: make(map[enums.OutboxEventType]Route, len(catalog))}
	for eventType, k := range catalog {
		reg.routes[eventType] = Route{EventType: eventType, AggregateType: k.aggregate, Topic: topic}
	}
	return reg, nil
}

// Resolve checks the row against its route and decodes the payload.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	route, ok := r.routes[row.EventType]
	switch {
	case !ok:
		return nil, permanent("no route for event type %s", row.EventType)
	case route.AggregateType != row.AggregateType:
		return nil, permanent("%s belongs to %s, row says %s", row.EventType, route.AggregateType, row.AggregateType)
	case row.AggregateID == uuid.Nil:
		return nil, permanent("%s row has no aggregate id", row.EventType)
	}

	env, payload, err := Open(row.EventType, row.Payload)
	if err != nil {
		return nil, err
	}
	return &ResolvedEvent{Route: route, Envelope: env, Payload: payload}, nil
}
