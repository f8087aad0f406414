package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/placemates-backend/api/responses"
	"github.com/angelmondragon/placemates-backend/api/validators"
	"github.com/angelmondragon/placemates-backend/internal/users"
	pkgerrors "github.com/angelmondragon/placemates-backend/pkg/errors"
	"github.com/angelmondragon/placemates-backend/pkg/identity"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
)

type userRegistrar interface {
	Register(ctx context.Context, id identity.Identity) (*users.UserDTO, error)
}

type registerUserRequest struct {
	DisplayName string `json:"display_name" validate:"omitempty,max=120"`
}

// UserRegister mirrors the caller's identity into the users table so the
// score engine can resolve their avatar token.
func UserRegister(svc userRegistrar, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}
		id, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		var req registerUserRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if name := strings.TrimSpace(req.DisplayName); name != "" {
			id.DisplayName = name
		}

		user, err := svc.Register(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}
