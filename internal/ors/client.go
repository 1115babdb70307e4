// Package ors is a thin client for the OpenRouteService geocoding and
// directions APIs.
package ors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"backend-flathunt/internal/shared/geo"
)

const (
	DefaultBaseURL = "https://api.openrouteservice.org"
	defaultTimeout = 15 * time.Second
	geocodeSize    = 5
)

var (
	// ErrNotFound is returned when the geocoder has no match or answers
	// with a non-success status.
	ErrNotFound = errors.New("address not found")
	// ErrNoRoute is returned when no route exists or the directions API
	// answers with a non-success status.
	ErrNoRoute = errors.New("route not calculable")
)

// Place is the best geocoding match for a free-text address.
type Place struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"address"`
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Label string `json:"label"`
		} `json:"properties"`
	} `json:"features"`
}

// Geocode resolves text to the first feature returned by the provider.
func (c *Client) Geocode(ctx context.Context, text string) (Place, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("text", text)
	q.Set("size", fmt.Sprint(geocodeSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/geocode/search?"+q.Encode(), http.NoBody)
	if err != nil {
		return Place{}, fmt.Errorf("build geocode request: %w", err)
	}

	var body geocodeResponse
	ok, err := c.do(req, &body)
	if err != nil {
		return Place{}, fmt.Errorf("geocode: %w", err)
	}
	if !ok || len(body.Features) == 0 || len(body.Features[0].Geometry.Coordinates) < 2 {
		return Place{}, ErrNotFound
	}

	f := body.Features[0]
	return Place{
		Latitude:  f.Geometry.Coordinates[1],
		Longitude: f.Geometry.Coordinates[0],
		Label:     f.Properties.Label,
	}, nil
}

type directionsRequest struct {
	Coordinates [][2]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Routes []struct {
		Summary struct {
			Duration float64 `json:"duration"`
		} `json:"summary"`
	} `json:"routes"`
}

// Route returns the driving duration in seconds between two points.
func (c *Client) Route(ctx context.Context, from, to geo.Point) (float64, error) {
	payload, err := json.Marshal(directionsRequest{
		Coordinates: [][2]float64{{from.Lng, from.Lat}, {to.Lng, to.Lat}},
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/directions/driving-car", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build directions request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var body directionsResponse
	ok, err := c.do(req, &body)
	if err != nil {
		return 0, fmt.Errorf("directions: %w", err)
	}
	if !ok || len(body.Routes) == 0 {
		return 0, ErrNoRoute
	}
	return body.Routes[0].Summary.Duration, nil
}

// do sends req and decodes a 2xx body into out. A non-success status is
// reported as ok=false without an error.
func (c *Client) do(req *http.Request, out any) (bool, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}

// Minutes converts a duration in seconds to whole minutes, rounded.
func Minutes(seconds float64) int {
	return int(math.Round(seconds / 60))
}
