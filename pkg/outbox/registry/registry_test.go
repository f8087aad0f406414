package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/placemates-backend/pkg/config"
	"github.com/angelmondragon/placemates-backend/pkg/db/models"
	"github.com/angelmondragon/placemates-backend/pkg/enums"
	"github.com/angelmondragon/placemates-backend/pkg/outbox"
	"github.com/angelmondragon/placemates-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

func TestResolveRoutesDeletedPlace(t *testing.T) {
	reg := newTestEventRegistry(t)

	placeID := uuid.New()
	row := models.OutboxEvent{
		EventType:     enums.EventPlaceDeleted,
		AggregateType: enums.AggregatePlace,
		AggregateID:   placeID,
		Payload: envelopeFor(t, 1, payloads.PlaceDeletedEvent{
			PlaceID:      placeID,
			CreatorID:    uuid.New(),
			MemberTokens: []string{"tok-a", "tok-b"},
			BlobPrefix:   "places/" + placeID.String() + "/",
		}),
	}

	resolved, err := reg.Resolve(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Route.Topic != "places-topic" {
		t.Fatalf("unexpected topic %q", resolved.Route.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.PlaceDeletedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.PlaceID != placeID || len(payload.MemberTokens) != 2 {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" || resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope metadata missing: %+v", resolved.Envelope)
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{PlacesTopic: "  "}); err == nil {
		t.Fatalf("expected error without places topic")
	}
}

func TestResolveRejectsBrokenRows(t *testing.T) {
	reg := newTestEventRegistry(t)
	created := envelopeFor(t, 1, payloads.PlaceCreatedEvent{Slots: 1})

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("place_renamed"),
			AggregateType: enums.AggregatePlace,
			AggregateID:   uuid.New(),
			Payload:       created,
		},
		"aggregate mismatch": {
			EventType:     enums.EventPlaceCreated,
			AggregateType: enums.OutboxAggregateType("user"),
			AggregateID:   uuid.New(),
			Payload:       created,
		},
		"missing aggregate id": {
			EventType:     enums.EventPlaceCreated,
			AggregateType: enums.AggregatePlace,
			Payload:       created,
		},
		"null payload": {
			EventType:     enums.EventPlaceCreated,
			AggregateType: enums.AggregatePlace,
			AggregateID:   uuid.New(),
			Payload:       envelopeFor(t, 1, nil),
		},
		"future version": {
			EventType:     enums.EventPlaceCreated,
			AggregateType: enums.AggregatePlace,
			AggregateID:   uuid.New(),
			Payload:       envelopeFor(t, 2, payloads.PlaceCreatedEvent{}),
		},
		"broken envelope": {
			EventType:     enums.EventPlaceCreated,
			AggregateType: enums.AggregatePlace,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"data":`),
		},
	}

	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(row)
			var permanentErr NonRetryableError
			if !errors.As(err, &permanentErr) {
				t.Fatalf("expected non-retryable error, got %v", err)
			}
		})
	}
}

func TestOpenAsDecodesTypedPayload(t *testing.T) {
	placeID := uuid.New()
	raw := []byte(`{"eventId":"e1","data":{"place_id":"` + placeID.String() + `","blob_prefix":"places/x/","member_tokens":["t1"]}}`)

	env, event, err := OpenAs[payloads.PlaceDeletedEvent](enums.EventPlaceDeleted, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Version != outbox.EnvelopeVersion {
		t.Fatalf("missing version should read as %d, got %d", outbox.EnvelopeVersion, env.Version)
	}
	if event.PlaceID != placeID || event.BlobPrefix != "places/x/" || len(event.MemberTokens) != 1 {
		t.Fatalf("unexpected event %+v", event)
	}

	if _, _, err := OpenAs[payloads.PlaceCreatedEvent](enums.EventPlaceDeleted, raw); err == nil {
		t.Fatalf("expected type mismatch error")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{PlacesTopic: "places-topic"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func envelopeFor(t *testing.T, version int, payload any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return raw
}
