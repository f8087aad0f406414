package payloads

import (
	"time"

	"github.com/google/uuid"
)

// PlaceCreatedEvent is queued with the place record before any image upload.
type PlaceCreatedEvent struct {
	PlaceID   uuid.UUID `json:"place_id"`
	CreatorID uuid.UUID `json:"creator_id"`
	Slots     int       `json:"slots"`
	CreatedAt time.Time `json:"created_at"`
}

// PlaceDeletedEvent carries the member snapshot taken at deletion and the blob
// prefix a purge worker re-sweeps.
type PlaceDeletedEvent struct {
	PlaceID      uuid.UUID `json:"place_id"`
	CreatorID    uuid.UUID `json:"creator_id"`
	MemberTokens []string  `json:"member_tokens"`
	BlobPrefix   string    `json:"blob_prefix"`
	DeletedAt    time.Time `json:"deleted_at"`
}
