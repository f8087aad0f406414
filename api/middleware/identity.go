package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/placemates-backend/api/responses"
	"github.com/angelmondragon/placemates-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/placemates-backend/pkg/errors"
	"github.com/angelmondragon/placemates-backend/pkg/identity"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
)

// Identity verifies the bearer token issued by the identity provider and
// seeds the request context with the caller identity.
func Identity(cfg config.IdentityConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			id, err := identity.ParseToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if !id.Valid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no avatar token"))
				return
			}

			ctx := identity.WithIdentity(r.Context(), id)
			if logg != nil {
				ctx = logg.WithUserID(ctx, id.ID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
