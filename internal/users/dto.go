package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/placemates-backend/pkg/db/models"
)

// UserDTO is the transport shape of a user.
type UserDTO struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarToken string    `json:"avatar_token"`
	Score       int64     `json:"score"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpsertUserDTO holds the fields the identity provider is authoritative for.
type UpsertUserDTO struct {
	ID          uuid.UUID
	DisplayName string
	AvatarToken string
}

func (d UpsertUserDTO) ToModel() *models.User {
	return &models.User{
		ID:          d.ID,
		DisplayName: strings.TrimSpace(d.DisplayName),
		AvatarToken: strings.TrimSpace(d.AvatarToken),
	}
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarToken: u.AvatarToken,
		Score:       u.Score,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
