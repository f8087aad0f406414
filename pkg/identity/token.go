package identity

import (
	"fmt"
	"time"

	"github.com/angelmondragon/placemates-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// Claims is the token layout issued by the identity provider.
type Claims struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"name"`
	AvatarToken string    `json:"picture"`
	jwt.RegisteredClaims
}

// ParseToken validates tokenString and returns the caller identity.
func ParseToken(cfg config.IdentityConfig, tokenString string) (Identity, error) {
	if cfg.Secret == "" {
		return Identity{}, fmt.Errorf("identity secret is required")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (any, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, err
	}
	if claims.UserID == uuid.Nil {
		return Identity{}, fmt.Errorf("token has no user_id")
	}

	return Identity{
		ID:          claims.UserID,
		DisplayName: claims.DisplayName,
		AvatarToken: claims.AvatarToken,
	}, nil
}

// MintToken signs a token for id. Used by local tooling and tests; production
// tokens are minted by the identity provider.
func MintToken(cfg config.IdentityConfig, now time.Time, ttl time.Duration, id Identity) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("identity secret is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive")
	}

	claims := Claims{
		UserID:      id.ID,
		DisplayName: id.DisplayName,
		AvatarToken: id.AvatarToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   id.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing identity token: %w", err)
	}
	return signed, nil
}
