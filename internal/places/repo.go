package places

import (
	"context"
	"errors"

	"github.com/angelmondragon/placemates-backend/internal/repo"
	"github.com/angelmondragon/placemates-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotOwner is returned when a delete targets a place created by someone else.
var ErrNotOwner = errors.New("place owned by another user")

const (
	insertMemberSQL = `INSERT INTO place_members (place_id, token)
SELECT ?, ? WHERE EXISTS (SELECT 1 FROM places WHERE id = ?)
ON CONFLICT (place_id, token) DO NOTHING`

	insertImageSQL = `INSERT INTO place_images (place_id, location, slot)
SELECT ?, ?, ? WHERE EXISTS (SELECT 1 FROM places WHERE id = ?)
ON CONFLICT (place_id, location) DO NOTHING`
)

// Repository persists places and their member/image sets.
type Repository struct {
	repo.Base
}

// NewRepository binds a places repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// NewID allocates the identifier of a place before it is written.
func (r *Repository) NewID() uuid.UUID {
	return uuid.New()
}

// CreateTx writes the place row only; members and images start empty.
func (r *Repository) CreateTx(ctx context.Context, tx *gorm.DB, place *models.Place) error {
	return r.Tx(ctx, tx).Create(place).Error
}

// FindByID loads the place row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Place, error) {
	var place models.Place
	if err := r.DB(ctx).First(&place, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &place, nil
}

// ListMemberTokens returns the member token set of a place.
func (r *Repository) ListMemberTokens(ctx context.Context, placeID uuid.UUID) ([]string, error) {
	return r.listMemberTokens(r.DB(ctx), placeID)
}

func (r *Repository) listMemberTokens(db *gorm.DB, placeID uuid.UUID) ([]string, error) {
	tokens := []string{}
	err := db.Model(&models.PlaceMember{}).
		Where("place_id = ?", placeID).
		Order("created_at ASC").
		Order("token ASC").
		Pluck("token", &tokens).Error
	return tokens, err
}

// ListImages returns image locations in slot order.
func (r *Repository) ListImages(ctx context.Context, placeID uuid.UUID) ([]models.PlaceImage, error) {
	var images []models.PlaceImage
	err := r.DB(ctx).
		Where("place_id = ?", placeID).
		Order("slot ASC").
		Order("location ASC").
		Find(&images).Error
	return images, err
}

// AddMember adds token to the member set. Adding a present token is a no-op;
// a missing place yields gorm.ErrRecordNotFound.
func (r *Repository) AddMember(ctx context.Context, placeID uuid.UUID, token string) error {
	res := r.DB(ctx).Exec(insertMemberSQL, placeID, token, placeID)
	if touched, err := repo.Touched(res); err != nil || touched {
		return err
	}
	return r.requireExists(ctx, placeID)
}

// RemoveMember removes token from the member set. Removing an absent token is
// a no-op; a missing place yields gorm.ErrRecordNotFound.
func (r *Repository) RemoveMember(ctx context.Context, placeID uuid.UUID, token string) error {
	res := r.DB(ctx).
		Where("place_id = ? AND token = ?", placeID, token).
		Delete(&models.PlaceMember{})
	if touched, err := repo.Touched(res); err != nil || touched {
		return err
	}
	return r.requireExists(ctx, placeID)
}

// AppendImage adds location to the image set with set-add semantics.
func (r *Repository) AppendImage(ctx context.Context, placeID uuid.UUID, slot int, location string) error {
	res := r.DB(ctx).Exec(insertImageSQL, placeID, location, slot, placeID)
	if touched, err := repo.Touched(res); err != nil || touched {
		return err
	}
	return r.requireExists(ctx, placeID)
}

// DeleteOwnedTx removes the place and its child rows when creatorID owns it
// and returns the member set as it was inside the transaction.
func (r *Repository) DeleteOwnedTx(ctx context.Context, tx *gorm.DB, placeID, creatorID uuid.UUID) ([]string, error) {
	db := r.Tx(ctx, tx)

	members, err := r.listMemberTokens(db, placeID)
	if err != nil {
		return nil, err
	}

	res := db.Where("id = ? AND creator_id = ?", placeID, creatorID).Delete(&models.Place{})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.Model(&models.Place{}).Where("id = ?", placeID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, ErrNotOwner
	}

	if err := db.Where("place_id = ?", placeID).Delete(&models.PlaceMember{}).Error; err != nil {
		return nil, err
	}
	if err := db.Where("place_id = ?", placeID).Delete(&models.PlaceImage{}).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *Repository) requireExists(ctx context.Context, placeID uuid.UUID) error {
	var count int64
	if err := r.DB(ctx).Model(&models.Place{}).Where("id = ?", placeID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
