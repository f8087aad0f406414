package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/placemates-backend/api/responses"
	"github.com/angelmondragon/placemates-backend/api/validators"
	"github.com/angelmondragon/placemates-backend/internal/membership"
	pkgerrors "github.com/angelmondragon/placemates-backend/pkg/errors"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
)

type membershipToggler interface {
	ToggleMembership(ctx context.Context, in membership.ToggleInput) (*membership.ToggleResult, error)
}

// toggleMembershipRequest optionally carries the member set the caller is
// looking at. Without it the stored set is used as the view.
type toggleMembershipRequest struct {
	Members *[]string `json:"members" validate:"omitempty"`
}

// PlaceMembershipToggle joins or leaves a place for the caller.
func PlaceMembershipToggle(reader placeReader, svc membershipToggler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership service unavailable"))
			return
		}
		actor, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}
		placeID, err := validators.ParseUUIDParam(r, "placeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req toggleMembershipRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		place, err := reader.Get(r.Context(), placeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view := place.Members
		if req.Members != nil {
			view = *req.Members
		}

		result, err := svc.ToggleMembership(r.Context(), membership.ToggleInput{
			PlaceID:   placeID,
			CreatorID: place.CreatorID,
			Actor:     actor,
			Members:   view,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
