// Package identity verifies bearer tokens issued by the upstream identity
// provider and carries the resulting caller identity through a context.
package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Identity is the caller as seen by the engines. AvatarToken is the photo
// identifier that place member sets are keyed by.
type Identity struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarToken string    `json:"avatar_token"`
}

// Valid reports whether the identity carries the fields every engine needs.
func (i Identity) Valid() bool {
	return i.ID != uuid.Nil && strings.TrimSpace(i.AvatarToken) != ""
}

type ctxKey struct{}

// WithIdentity stores id on ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
