// Package membership toggles a caller in or out of a place's member set.
package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/placemates-backend/pkg/db/models"
	"github.com/angelmondragon/placemates-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/placemates-backend/pkg/errors"
	"github.com/angelmondragon/placemates-backend/pkg/identity"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
	"github.com/angelmondragon/placemates-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type memberStore interface {
	AddMember(ctx context.Context, placeID uuid.UUID, token string) error
	RemoveMember(ctx context.Context, placeID uuid.UUID, token string) error
}

// ToggleInput is the caller's view of the place at the time of the toggle.
type ToggleInput struct {
	PlaceID   uuid.UUID
	CreatorID uuid.UUID
	Actor     identity.Identity
	Members   []string
}

// ToggleResult is the direction applied and the caller's updated view.
type ToggleResult struct {
	Action  enums.MembershipAction `json:"action"`
	Members []string               `json:"members"`
}

// Service decides join or leave from the supplied view and applies exactly
// one set mutation. The decision is not atomic with the mutation; repeated
// toggles converge because the mutations are set-add and set-remove.
type Service struct {
	users   userReader
	members memberStore
	logg    *logger.Logger
	metrics *metrics.EngineMetrics
}

func NewService(users userReader, members memberStore, logg *logger.Logger, m *metrics.EngineMetrics) (*Service, error) {
	if users == nil {
		return nil, errors.New("users reader required")
	}
	if members == nil {
		return nil, errors.New("member store required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Service{users: users, members: members, logg: logg, metrics: m}, nil
}

// ToggleMembership leaves the place when the actor's token is in the view and
// joins it otherwise. The mutation uses the avatar token from the actor's
// stored user record. On any failure the returned view equals the input.
func (s *Service) ToggleMembership(ctx context.Context, in ToggleInput) (*ToggleResult, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDuration("toggle_membership", time.Since(start)) }()

	unchanged := &ToggleResult{Members: copyTokens(in.Members)}

	if in.PlaceID == uuid.Nil {
		return unchanged, pkgerrors.New(pkgerrors.CodeValidation, "place id is required")
	}
	if in.Actor.ID == uuid.Nil || strings.TrimSpace(in.Actor.AvatarToken) == "" {
		return unchanged, pkgerrors.New(pkgerrors.CodeValidation, "acting user token is required")
	}
	if in.CreatorID != uuid.Nil && in.CreatorID == in.Actor.ID {
		return unchanged, pkgerrors.New(pkgerrors.CodeForbidden, "creators cannot join their own place")
	}

	ctx = s.logg.WithPlaceID(ctx, in.PlaceID.String())
	ctx = s.logg.WithUserID(ctx, in.Actor.ID.String())

	user, err := s.users.FindByID(ctx, in.Actor.ID)
	if err != nil {
		s.logg.Error(ctx, "loading acting user failed", err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return unchanged, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "acting user not found")
		}
		return unchanged, pkgerrors.FromStore(err, "load acting user")
	}
	fresh := strings.TrimSpace(user.AvatarToken)
	if fresh == "" {
		return unchanged, pkgerrors.New(pkgerrors.CodeValidation, "acting user has no avatar token")
	}

	action := enums.MembershipActionJoin
	if contains(in.Members, in.Actor.AvatarToken) {
		action = enums.MembershipActionLeave
	}

	if action == enums.MembershipActionLeave {
		err = s.members.RemoveMember(ctx, in.PlaceID, fresh)
	} else {
		err = s.members.AddMember(ctx, in.PlaceID, fresh)
	}
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "action", action.String()), "membership mutation failed", err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return unchanged, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "place not found")
		}
		return unchanged, pkgerrors.FromStore(err, fmt.Sprintf("%s place", action))
	}
	s.metrics.IncToggle(action.String())
	s.logg.Info(s.logg.WithField(ctx, "action", action.String()), "membership toggled")

	members := copyTokens(in.Members)
	if action == enums.MembershipActionLeave {
		members = remove(members, fresh)
	} else if !contains(members, fresh) {
		members = append(members, fresh)
	}
	return &ToggleResult{Action: action, Members: members}, nil
}

func contains(tokens []string, token string) bool {
	for _, t := range tokens {
		if t == token {
			return true
		}
	}
	return false
}

func remove(tokens []string, token string) []string {
	out := tokens[:0]
	for _, t := range tokens {
		if t != token {
			out = append(out, t)
		}
	}
	return out
}

func copyTokens(tokens []string) []string {
	out := make([]string, len(tokens))
	copy(out, tokens)
	return out
}
