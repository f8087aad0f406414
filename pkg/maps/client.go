package maps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/placemates-backend/pkg/errors"
)

const (
	defaultBaseURL                  = "https://places.googleapis.com/v1"
	searchNearbyFieldMask           = "places.formattedAddress,places.addressComponents"
	reverseLookupRadiusMeters       = 50.0
	requestBodyReadLimit      int64 = 1024
)

var errAPIKeyRequired = errors.New("google maps api key is required")

// Client wraps the Google Maps Places API used to label place coordinates.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured Places base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the Google Maps client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// Address is the street/city pair shown under a place.
type Address struct {
	Street           string
	City             string
	FormattedAddress string
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type searchNearbyRequest struct {
	MaxResultCount      int    `json:"maxResultCount"`
	RankPreference      string `json:"rankPreference"`
	LocationRestriction struct {
		Circle struct {
			Center latLng  `json:"center"`
			Radius float64 `json:"radius"`
		} `json:"circle"`
	} `json:"locationRestriction"`
}

type addressComponent struct {
	LongText  string   `json:"longText"`
	ShortText string   `json:"shortText"`
	Types     []string `json:"types"`
}

// ReverseLookup returns the address of the closest known place to lat/lng.
// A nil Address with a nil error means nothing was found nearby.
func (c *Client) ReverseLookup(ctx context.Context, lat, lng float64) (*Address, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google maps client not configured")
	}

	var req searchNearbyRequest
	req.MaxResultCount = 1
	req.RankPreference = "DISTANCE"
	req.LocationRestriction.Circle.Center = latLng{Latitude: lat, Longitude: lng}
	req.LocationRestriction.Circle.Radius = reverseLookupRadiusMeters
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal search nearby request")
	}

	endpoint, err := url.JoinPath(c.baseURL, "places:searchNearby")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build search nearby url")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build search nearby request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", searchNearbyFieldMask)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute search nearby request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "search nearby request failed")
	}

	var apiResp struct {
		Places []struct {
			FormattedAddress  string             `json:"formattedAddress"`
			AddressComponents []addressComponent `json:"addressComponents"`
		} `json:"places"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode search nearby response")
	}
	if len(apiResp.Places) == 0 {
		return nil, nil
	}

	place := apiResp.Places[0]
	return &Address{
		Street:           streetFrom(place.AddressComponents),
		City:             cityFrom(place.AddressComponents),
		FormattedAddress: place.FormattedAddress,
	}, nil
}

func streetFrom(components []addressComponent) string {
	route := componentText(components, "route")
	number := componentText(components, "street_number")
	switch {
	case route == "":
		return ""
	case number == "":
		return route
	default:
		return route + " " + number
	}
}

func cityFrom(components []addressComponent) string {
	for _, kind := range []string{"locality", "postal_town", "administrative_area_level_2"} {
		if v := componentText(components, kind); v != "" {
			return v
		}
	}
	return ""
}

func componentText(components []addressComponent, kind string) string {
	for _, comp := range components {
		if slices.Contains(comp.Types, kind) {
			return comp.LongText
		}
	}
	return ""
}
