package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/angelmondragon/placemates-backend/pkg/config"
	"github.com/angelmondragon/placemates-backend/pkg/logger"
	"golang.org/x/oauth2"
)

const (
	defaultAPIBaseURL    = "https://storage.googleapis.com"
	defaultPublicBaseURL = "https://storage.googleapis.com"
	pingTimeout          = 5 * time.Second
	requestTimeout       = 30 * time.Second
)

// Client talks to the GCS JSON API with a cached OAuth token.
type Client struct {
	httpClient    *http.Client
	defaultBucket string
	apiBaseURL    string
	publicBaseURL string
	tokenSource   oauth2.TokenSource
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Option customises a Client built with New.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithAPIBaseURL points the client at an alternate JSON API host.
func WithAPIBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.apiBaseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithPublicBaseURL sets the host used to build retrieval URLs.
func WithPublicBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.publicBaseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithStaticToken replaces the token source with a fixed bearer token.
func WithStaticToken(token string) Option {
	return func(c *Client) {
		c.tokenSource = staticTokenSource(token)
	}
}

// New builds a client without credentials discovery or a health check.
func New(bucket string, opts ...Option) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: requestTimeout},
		defaultBucket: bucket,
		apiBaseURL:    defaultAPIBaseURL,
		publicBaseURL: defaultPublicBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokenSource == nil {
		c.tokenSource, _ = credentialSource(context.Background(), c.httpClient, nil)
	}
	return c
}

// drainClose reads a bounded tail of body so the connection can be reused.
func drainClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

// NewClient resolves credentials from config and verifies bucket access.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	httpClient := &http.Client{Timeout: requestTimeout}

	keyJSON := []byte(gcp.CredentialsJSON)
	if len(keyJSON) == 0 && gcp.ApplicationCredentials != "" {
		raw, err := os.ReadFile(gcp.ApplicationCredentials)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		keyJSON = raw
	}
	ts, err := credentialSource(ctx, httpClient, keyJSON)
	if err != nil {
		return nil, err
	}

	client := New(cfg.BucketName,
		WithHTTPClient(httpClient),
		WithAPIBaseURL(cfg.APIBaseURL),
		WithPublicBaseURL(cfg.PublicBaseURL),
	)
	client.tokenSource = ts

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs client initialized")
	}

	return client, nil
}

// BucketHandle returns a handle on name, or the default bucket when empty.
func (c *Client) BucketHandle(name string) *Bucket {
	if c == nil {
		return nil
	}
	if name == "" {
		name = c.defaultBucket
	}
	return &Bucket{name: name, client: c}
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

func (c *Client) Close() error {
	return nil
}

// Ping lists at most one object, which requires storage.objects.list.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.tokenSource == nil {
		return errors.New("gcs client not initialized")
	}
	if c.defaultBucket == "" {
		return errors.New("gcs bucket not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	_, _, err := c.BucketHandle("").listPage(ctx, "", "", 1)
	if err != nil {
		return fmt.Errorf("gcs object check failed: %w", err)
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	token, err := c.tokenSource.Token()
	if err != nil {
		return fmt.Errorf("gcs token: %w", err)
	}
	token.SetAuthHeader(req)
	return nil
}

// statusError captures a non-2xx API response.
type statusError struct {
	status int
	text   string
	body   string
}

func (e *statusError) Error() string {
	if e.body != "" {
		return fmt.Sprintf("gcs: %s: %s", e.text, e.body)
	}
	return fmt.Sprintf("gcs: %s", e.text)
}

func newStatusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &statusError{status: resp.StatusCode, text: resp.Status, body: strings.TrimSpace(string(b))}
}
