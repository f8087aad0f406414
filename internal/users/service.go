package users

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/placemates-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/placemates-backend/pkg/errors"
	"github.com/angelmondragon/placemates-backend/pkg/identity"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository interface {
	Upsert(ctx context.Context, dto UpsertUserDTO) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service registers identities as users and serves their profiles.
type Service struct {
	repo repository
	logg *logger.Logger
}

func NewService(repo repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("users repository required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Service{repo: repo, logg: logg}, nil
}

// Register mirrors the caller's identity into the users table.
func (s *Service) Register(ctx context.Context, id identity.Identity) (*UserDTO, error) {
	if !id.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "identity requires id and avatar token")
	}
	name := strings.TrimSpace(id.DisplayName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "display name is required")
	}

	user, err := s.repo.Upsert(ctx, UpsertUserDTO{ID: id.ID, DisplayName: name, AvatarToken: id.AvatarToken})
	if err != nil {
		return nil, pkgerrors.FromStore(err, "register user")
	}
	s.logg.Info(s.logg.WithUserID(ctx, id.ID.String()), "user registered")
	return FromModel(user), nil
}

// Get returns the user profile.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
		}
		return nil, pkgerrors.FromStore(err, "load user")
	}
	return FromModel(user), nil
}
