package places

import (
	"fmt"
	"time"

	"github.com/angelmondragon/placemates-backend/pkg/db/models"
	"github.com/angelmondragon/placemates-backend/pkg/enums"
	"github.com/angelmondragon/placemates-backend/pkg/types"
	"github.com/google/uuid"
)

// ImageSlots is the number of image slots a draft offers.
const ImageSlots = 3

// Draft is a place as composed by its creator. Images holds one reference
// per slot; an empty string is an unset slot.
type Draft struct {
	Coordinate      types.Coordinate `json:"coordinate"`
	Street          string           `json:"street"`
	City            string           `json:"city"`
	PreviewMapImage string           `json:"preview_map_image"`
	Description     string           `json:"description"`
	Images          []string         `json:"images"`
}

// PlaceDTO is the read model of a place with its member and image sets.
type PlaceDTO struct {
	ID              uuid.UUID        `json:"id"`
	CreatorID       uuid.UUID        `json:"creator_id"`
	CreatorName     string           `json:"creator_name"`
	CreatorAvatar   string           `json:"creator_avatar"`
	Coordinate      types.Coordinate `json:"coordinate"`
	Street          string           `json:"street"`
	City            string           `json:"city"`
	PreviewMapImage string           `json:"preview_map_image"`
	Description     string           `json:"description"`
	Images          []string         `json:"images"`
	Members         []string         `json:"members"`
	CreatedAt       time.Time        `json:"created_at"`
}

// FromModel assembles the read model.
func FromModel(place *models.Place, members []string, images []models.PlaceImage) *PlaceDTO {
	if place == nil {
		return nil
	}
	locations := make([]string, 0, len(images))
	for _, img := range images {
		locations = append(locations, img.Location)
	}
	if members == nil {
		members = []string{}
	}
	return &PlaceDTO{
		ID:              place.ID,
		CreatorID:       place.CreatorID,
		CreatorName:     place.CreatorName,
		CreatorAvatar:   place.CreatorAvatar,
		Coordinate:      place.Coordinate,
		Street:          place.Street,
		City:            place.City,
		PreviewMapImage: place.PreviewMapImage,
		Description:     place.Description,
		Images:          locations,
		Members:         members,
		CreatedAt:       place.CreatedAt,
	}
}

// UploadedImage is a slot whose blob was written and appended to the place.
type UploadedImage struct {
	Slot     int    `json:"slot"`
	Object   string `json:"object"`
	Location string `json:"location"`
}

// FailedImage is a slot that did not make it onto the place.
type FailedImage struct {
	Slot  int    `json:"slot"`
	Error string `json:"error"`
}

// CreateResult reports the new place id and the outcome of every set slot.
type CreateResult struct {
	PlaceID  uuid.UUID       `json:"place_id"`
	Uploaded []UploadedImage `json:"uploaded"`
	Failed   []FailedImage   `json:"failed"`
}

// DeleteInput names the place to delete, the acting creator and the member
// snapshot used for settlement. A nil snapshot settles against the member
// set read inside the delete transaction.
type DeleteInput struct {
	PlaceID      uuid.UUID
	ActorID      uuid.UUID
	MemberTokens []string
}

// DeleteReport records how far a deletion progressed.
type DeleteReport struct {
	PlaceID      uuid.UUID            `json:"place_id"`
	Stage        enums.LifecycleStage `json:"stage"`
	Settled      bool                 `json:"settled"`
	BlobsFound   int                  `json:"blobs_found"`
	BlobsDeleted int                  `json:"blobs_deleted"`
	BlobsFailed  int                  `json:"blobs_failed"`
}

// BlobPrefix is the storage prefix owned by a place.
func BlobPrefix(placeID uuid.UUID) string {
	return "places/" + placeID.String() + "/"
}

// ImageObject is the object name of an image slot.
func ImageObject(placeID uuid.UUID, slot int) string {
	return fmt.Sprintf("%simage-%d", BlobPrefix(placeID), slot)
}
