package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/placemates-backend/api/responses"
	"github.com/angelmondragon/placemates-backend/api/validators"
	"github.com/angelmondragon/placemates-backend/internal/places"
	"github.com/angelmondragon/placemates-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/placemates-backend/pkg/errors"
	"github.com/angelmondragon/placemates-backend/pkg/identity"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
	"github.com/angelmondragon/placemates-backend/pkg/types"
)

const maxDescriptionLen = 2000

type placeReader interface {
	Get(ctx context.Context, id uuid.UUID) (*places.PlaceDTO, error)
}

type placeCreator interface {
	CreatePlace(ctx context.Context, creator identity.Identity, draft places.Draft) (*places.CreateResult, error)
}

type placeDeleter interface {
	DeletePlace(ctx context.Context, in places.DeleteInput) (*places.DeleteReport, error)
}

type createPlaceRequest struct {
	Coordinate struct {
		Lat float64 `json:"lat" validate:"latitude"`
		Lng float64 `json:"lng" validate:"longitude"`
	} `json:"coordinate"`
	Street          string   `json:"street" validate:"max=200"`
	City            string   `json:"city" validate:"max=120"`
	PreviewMapImage string   `json:"preview_map_image"`
	Description     string   `json:"description"`
	Images          []string `json:"images" validate:"max=3"`
}

func (req createPlaceRequest) toDraft() places.Draft {
	return places.Draft{
		Coordinate:      types.Coordinate{Lat: req.Coordinate.Lat, Lng: req.Coordinate.Lng},
		Street:          req.Street,
		City:            req.City,
		PreviewMapImage: req.PreviewMapImage,
		Description:     validators.SanitizeText(req.Description, maxDescriptionLen),
		Images:          req.Images,
	}
}

// PlaceCreate creates a place owned by the caller. When some images fail the
// place still exists and the partial failure carries the per-slot result.
func PlaceCreate(svc placeCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "places service unavailable"))
			return
		}
		creator, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		var req createPlaceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreatePlace(r.Context(), creator, req.toDraft())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func PlaceGet(svc placeReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "places service unavailable"))
			return
		}
		placeID, err := validators.ParseUUIDParam(r, "placeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		place, err := svc.Get(r.Context(), placeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, place)
	}
}

// PlaceDelete runs the deletion lifecycle for a place the caller created.
// Settlement uses the member set stored at deletion time.
func PlaceDelete(svc placeDeleter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "places service unavailable"))
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

		report, err := svc.DeletePlace(r.Context(), places.DeleteInput{PlaceID: placeID, ActorID: actor.ID})
		if err != nil {
			if report != nil && report.Stage != enums.LifecycleStagePending {
				err = pkgerrors.Wrap(pkgerrors.CodePartialFailure, err, "place deleted but scores were not settled").
					WithDetails(map[string]any{"report": report})
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
