package models

import (
	"time"

	"github.com/google/uuid"
)

// User mirrors an identity known to this service. AvatarToken is the join key
// used by place member sets and is indexed but not unique.
type User struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	DisplayName string    `gorm:"column:display_name;not null"`
	AvatarToken string    `gorm:"column:avatar_token;not null;index"`
	Score       int64     `gorm:"column:score;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }
