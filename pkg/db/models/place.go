package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/placemates-backend/pkg/types"
)

// Place is a shared location published by a creator. Members and image
// locations live in child tables so their set semantics are enforced by
// primary keys.
type Place struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	CreatorID       uuid.UUID        `gorm:"column:creator_id;type:uuid;not null;index"`
	CreatorName     string           `gorm:"column:creator_name;not null"`
	CreatorAvatar   string           `gorm:"column:creator_avatar;not null"`
	Coordinate      types.Coordinate `gorm:"column:coordinate;type:geography(Point,4326);not null"`
	Street          string           `gorm:"column:street;not null;default:''"`
	City            string           `gorm:"column:city;not null;default:''"`
	PreviewMapImage string           `gorm:"column:preview_map_image;not null;default:''"`
	Description     string           `gorm:"column:description;not null;default:''"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (Place) TableName() string { return "places" }

// PlaceMember records one avatar token in a place's member set.
type PlaceMember struct {
	PlaceID   uuid.UUID `gorm:"column:place_id;type:uuid;primaryKey"`
	Token     string    `gorm:"column:token;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (PlaceMember) TableName() string { return "place_members" }

// PlaceImage records one resolved image location appended to a place.
type PlaceImage struct {
	PlaceID   uuid.UUID `gorm:"column:place_id;type:uuid;primaryKey"`
	Location  string    `gorm:"column:location;primaryKey"`
	Slot      int       `gorm:"column:slot;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (PlaceImage) TableName() string { return "place_images" }
