package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/placemates-backend/pkg/enums"
	"github.com/angelmondragon/placemates-backend/pkg/outbox"
	"github.com/angelmondragon/placemates-backend/pkg/outbox/payloads"
)

type decodeFunc func(json.RawMessage) (any, error)

// kind is the wire contract of one event type: the aggregate it belongs to
// and a decoder per envelope version.
type kind struct {
	aggregate enums.OutboxAggregateType
	versions  map[int]decodeFunc
}

func decoderFor[T any]() decodeFunc {
	return func(raw json.RawMessage) (any, error) {
		v := new(T)
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

var catalog = map[enums.OutboxEventType]kind{
	enums.EventPlaceCreated: {
		aggregate: enums.AggregatePlace,
		versions:  map[int]decodeFunc{1: decoderFor[payloads.PlaceCreatedEvent]()},
	},
	enums.EventPlaceDeleted: {
		aggregate: enums.AggregatePlace,
		versions:  map[int]decodeFunc{1: decoderFor[payloads.PlaceDeletedEvent]()},
	},
}

// NonRetryableError marks a row or message that will never decode or route,
// however often it is retried.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func permanent(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// Open parses raw as an outbox envelope and decodes its data with the
// decoder registered for eventType at the envelope's version. Every failure
// is a NonRetryableError.
func Open(eventType enums.OutboxEventType, raw []byte) (outbox.PayloadEnvelope, any, error) {
	var env outbox.PayloadEnvelope
	k, ok := catalog[eventType]
	if !ok {
		return env, nil, permanent("unsupported event type %s", eventType)
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, nil, permanent("decode envelope: %w", err)
	}
	if env.Version == 0 {
		env.Version = outbox.EnvelopeVersion
	}
	decode, ok := k.versions[env.Version]
	if !ok {
		return env, nil, permanent("%s has no decoder for version %d", eventType, env.Version)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return env, nil, permanent("payload missing for %s", eventType)
	}
	payload, err := decode(data)
	if err != nil {
		return env, nil, permanent("decode %s payload: %w", eventType, err)
	}
	return env, payload, nil
}

// OpenAs is Open for callers that know the payload type they expect.
func OpenAs[T any](eventType enums.OutboxEventType, raw []byte) (outbox.PayloadEnvelope, *T, error) {
	env, payload, err := Open(eventType, raw)
	if err != nil {
		return env, nil, err
	}
	typed, ok := payload.(*T)
	if !ok {
		return env, nil, permanent("%s decodes to %T, not %T", eventType, payload, typed)
	}
	return env, typed, nil
}
