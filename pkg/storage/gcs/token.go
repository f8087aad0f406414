package gcs

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const readWriteScope = "https://www.googleapis.com/auth/devstorage.read_write"

// credentialSource picks the token source for the configured credentials:
// inline service account JSON, a key file already read by the caller, or
// the metadata server when neither is set.
func credentialSource(ctx context.Context, httpClient *http.Client, keyJSON []byte) (oauth2.TokenSource, error) {
	if len(keyJSON) == 0 {
		return oauth2.ReuseTokenSource(nil, google.ComputeTokenSource("", readWriteScope)), nil
	}
	jwtCfg, err := google.JWTConfigFromJSON(keyJSON, readWriteScope)
	if err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	// The token exchange uses the same transport as object calls so tests and
	// proxies see both.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	return oauth2.ReuseTokenSource(nil, jwtCfg.TokenSource(ctx)), nil
}

func staticTokenSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}
