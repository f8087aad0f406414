package users

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/angelmondragon/placemates-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/placemates-backend/pkg/errors"
	"github.com/angelmondragon/placemates-backend/pkg/identity"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeRepo struct {
	upserted []UpsertUserDTO
	users    map[uuid.UUID]*models.User
	err      error
}

func (f *fakeRepo) Upsert(ctx context.Context, dto UpsertUserDTO) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.upserted = append(f.upserted, dto)
	return dto.ToModel(), nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func newTestService(t *testing.T, repo *fakeRepo) *Service {
	t.Helper()
	svc, err := NewService(repo, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestRegisterValidatesIdentity(t *testing.T) {
	svc := newTestService(t, &fakeRepo{})
	_, err := svc.Register(context.Background(), identity.Identity{ID: uuid.New(), DisplayName: "x"})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = svc.Register(context.Background(), identity.Identity{ID: uuid.New(), AvatarToken: "tok", DisplayName: "  "})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
}

func TestRegisterTrimsAndStores(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(t, repo)
	id := identity.Identity{ID: uuid.New(), DisplayName: " Ana ", AvatarToken: "tok"}

	dto, err := svc.Register(context.Background(), id)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if dto.DisplayName != "Ana" || len(repo.upserted) != 1 {
		t.Fatalf("unexpected register result %+v upserts=%d", dto, len(repo.upserted))
	}
}

func TestGetMapsErrors(t *testing.T) {
	svc := newTestService(t, &fakeRepo{users: map[uuid.UUID]*models.User{}})
	if _, err := svc.Get(context.Background(), uuid.New()); pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	broken := newTestService(t, &fakeRepo{err: errors.New("conn refused")})
	if _, err := broken.Get(context.Background(), uuid.New()); pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
