package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/placemates-backend/api/responses"
	pkgerrors "github.com/angelmondragon/placemates-backend/pkg/errors"
	"github.com/angelmondragon/placemates-backend/pkg/identity"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/placemates-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	replayHeader      = "Idempotent-Replayed"

	replayWindow     = 24 * time.Hour
	settlementWindow = 7 * 24 * time.Hour
	inFlightTTL      = 2 * time.Minute
	inFlightMarker   = "in-flight"
)

// claimRefreshInterval re-arms the in-flight marker well before it expires.
var claimRefreshInterval = inFlightTTL / 2

// guardedRoute is a mutating endpoint whose responses are replayed for
// retries that carry the same Idempotency-Key.
type guardedRoute struct {
	method   string
	template string
	window   time.Duration
}

// Deleting a place awards points, so its replays are held for a week.
var guardedRoutes = []guardedRoute{
	{http.MethodPost, "/api/v1/places", replayWindow},
	{http.MethodPost, "/api/v1/places/{placeId}/membership", replayWindow},
	{http.MethodDelete, "/api/v1/places/{placeId}", settlementWindow},
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	Fingerprint string `json:"fingerprint"`
}

// Idempotency claims the Idempotency-Key before the handler runs, so a
// concurrent duplicate is rejected instead of executed twice. Completed
// responses are replayed verbatim; transient 5xx answers release the claim.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			window, guarded := replayWindowFor(r.Method, requestPath(r))
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := fingerprintOf(body)
			key := store.IdempotencyKey(callerScope(r), clientKey)

			claimed, err := store.SetNX(ctx, key, inFlightMarker, inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replay(w, r, store, logg, key, fingerprint)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			release := holdClaim(ctx, store, logg, key)
			next.ServeHTTP(capture, r)
			release()

			if retryable(capture.statusCode()) {
				if err := store.Del(ctx, key); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency claim", err)
				}
				return
			}

			payload, err := json.Marshal(storedResponse{
				Status:      capture.statusCode(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				Fingerprint: fingerprint,
			})
			if err == nil {
				err = store.Set(ctx, key, string(payload), window)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "persist idempotent response", err)
			}
		})
	}
}

// holdClaim keeps the in-flight marker alive while the handler runs, so a
// delete that outlasts inFlightTTL is not executed twice. The returned func
// stops the refresh and waits for any write in progress.
func holdClaim(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, key string) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(claimRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := store.Set(ctx, key, inFlightMarker, inFlightTTL); err != nil && logg != nil {
					logg.Error(ctx, "refresh idempotency claim", err)
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func replay(w http.ResponseWriter, r *http.Request, store pkgredis.IdempotencyStore, logg *logger.Logger, key, fingerprint string) {
	ctx := r.Context()
	raw, err := store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		// The claim expired between SetNX and Get; let the client retry.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
		return
	case err != nil:
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotent response"))
		return
	case raw == inFlightMarker:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotent response"))
		return
	}
	if stored.Fingerprint != fingerprint {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "Idempotency-Key reused with a different request body"))
		return
	}

	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(replayHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

// callerScope keys replays per caller and concrete path, so the same
// Idempotency-Key on two places never collides.
func callerScope(r *http.Request) string {
	caller := "anonymous"
	if id, ok := identity.FromContext(r.Context()); ok {
		caller = id.ID.String()
	}
	return caller + "|" + r.Method + "|" + r.URL.Path
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func retryable(status int) bool {
	return status == http.StatusInternalServerError || status == http.StatusServiceUnavailable
}

// requestPath prefers the matched chi template. Mounted as group middleware
// the template still ends in a wildcard, so the concrete path is used.
func requestPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return pattern
		}
	}
	if trimmed := strings.TrimSuffix(r.URL.Path, "/"); trimmed != "" {
		return trimmed
	}
	return r.URL.Path
}

func replayWindowFor(method, path string) (time.Duration, bool) {
	for _, route := range guardedRoutes {
		if route.method == method && matchTemplate(route.template, path) {
			return route.window, true
		}
	}
	return 0, false
}

// matchTemplate compares path segment by segment; {param} segments match any
// non-empty value.
func matchTemplate(template, path string) bool {
	want := strings.Split(strings.Trim(template, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return false
	}
	for i, segment := range want {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if segment != got[i] {
			return false
		}
	}
	return true
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
