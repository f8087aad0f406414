package maps

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/placemates-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func TestReverseLookupRequestAndMapping(t *testing.T) {
	const respBody = `{"places":[{"formattedAddress":"Calle Mayor 5, Madrid","addressComponents":[
		{"longText":"5","shortText":"5","types":["street_number"]},
		{"longText":"Calle Mayor","shortText":"C. Mayor","types":["route"]},
		{"longText":"Madrid","shortText":"Madrid","types":["locality","political"]}]}]}`

	var capturedURL string
	var capturedHeaders http.Header
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedHeaders = req.Header.Clone()

		var payload struct {
			MaxResultCount      int `json:"maxResultCount"`
			LocationRestriction struct {
				Circle struct {
					Center struct {
						Latitude  float64 `json:"latitude"`
						Longitude float64 `json:"longitude"`
					} `json:"center"`
				} `json:"circle"`
			} `json:"locationRestriction"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.MaxResultCount != 1 {
			t.Fatalf("expected maxResultCount 1, got %d", payload.MaxResultCount)
		}
		if payload.LocationRestriction.Circle.Center.Latitude != 40.4 {
			t.Fatalf("unexpected latitude %v", payload.LocationRestriction.Circle.Center.Latitude)
		}
		return jsonResponse(http.StatusOK, respBody), nil
	})

	client, err := NewClient("test-key", WithBaseURL("http://maps.test/v1"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	addr, err := client.ReverseLookup(context.Background(), 40.4, -3.7)
	if err != nil {
		t.Fatalf("reverse lookup: %v", err)
	}
	if capturedURL != "http://maps.test/v1/places:searchNearby" {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedHeaders.Get("X-Goog-Api-Key") != "test-key" {
		t.Fatalf("api key header missing")
	}
	if capturedHeaders.Get("X-Goog-FieldMask") != searchNearbyFieldMask {
		t.Fatalf("unexpected field mask %q", capturedHeaders.Get("X-Goog-FieldMask"))
	}
	if addr.Street != "Calle Mayor 5" || addr.City != "Madrid" {
		t.Fatalf("unexpected address %+v", addr)
	}
}

func TestReverseLookupNoResults(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{}`), nil
	})
	client, _ := NewClient("k", WithHTTPClient(&http.Client{Transport: rt}))

	addr, err := client.ReverseLookup(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != nil {
		t.Fatalf("expected nil address, got %+v", addr)
	}
}

func TestReverseLookupUpstreamFailure(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusForbidden, `{"error":"denied"}`), nil
	})
	client, _ := NewClient("k", WithHTTPClient(&http.Client{Transport: rt}))

	_, err := client.ReverseLookup(context.Background(), 1, 1)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestCityFallsBackToPostalTown(t *testing.T) {
	components := []addressComponent{
		{LongText: "London", Types: []string{"postal_town"}},
		{LongText: "Baker Street", Types: []string{"route"}},
	}
	if got := cityFrom(components); got != "London" {
		t.Fatalf("expected London, got %q", got)
	}
	if got := streetFrom(components); got != "Baker Street" {
		t.Fatalf("expected street without number, got %q", got)
	}
}
