package controllers

import (
	"net/http"

	"github.com/angelmondragon/placemates-backend/api/responses"
	pkgerrors "github.com/angelmondragon/placemates-backend/pkg/errors"
	"github.com/angelmondragon/placemates-backend/pkg/identity"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
)

// requireIdentity writes 401 and reports false when the identity middleware
// did not run for the request.
func requireIdentity(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (identity.Identity, bool) {
	id, ok := identity.FromContext(r.Context())
	if !ok || !id.Valid() {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing"))
		return identity.Identity{}, false
	}
	return id, true
}
