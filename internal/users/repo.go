package users

import (
	"context"

	"github.com/angelmondragon/placemates-backend/internal/repo"
	"github.com/angelmondragon/placemates-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes user persistence, including the atomic score increment.
type Repository struct {
	repo.Base
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Upsert creates the user or refreshes its display name and avatar token.
// The score column is never written here.
func (r *Repository) Upsert(ctx context.Context, dto UpsertUserDTO) (*models.User, error) {
	user := dto.ToModel()
	err := r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "avatar_token", "updated_at"}),
		}).
		Omit("score").
		Create(user).Error
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, user.ID)
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindIDsByAvatarToken returns every user whose avatar token equals token.
// More than one id is possible: tokens are not unique.
func (r *Repository) FindIDsByAvatarToken(ctx context.Context, token string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.DB(ctx).
		Model(&models.User{}).
		Where("avatar_token = ?", token).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// IncrementScore adds delta to the user's score in a single UPDATE. A
// missing user yields gorm.ErrRecordNotFound.
func (r *Repository) IncrementScore(ctx context.Context, id uuid.UUID, delta int64) error {
	res := r.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("score", gorm.Expr("score + ?", delta))
	touched, err := repo.Touched(res)
	if err == nil && !touched {
		err = gorm.ErrRecordNotFound
	}
	return err
}
