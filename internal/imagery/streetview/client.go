// Package streetview provides a Google Street View Static API imagery provider.
package streetview

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/safewalk/safewalk/internal/imagery"
	"github.com/safewalk/safewalk/internal/provider/resilience"
	"github.com/safewalk/safewalk/pkg/geo"
)

const (
	// DefaultBaseURL is the base URL for the Street View Static API.
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/streetview"

	// ProviderName identifies this provider.
	ProviderName = "streetview"
)

// ClientConfig holds configuration for the Street View client.
type ClientConfig struct {
	// APIKey is the Google Maps Platform API key.
	APIKey string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Registry receives request outcomes for health reporting. Ignored when
	// a custom HTTPClient is supplied.
	Registry *resilience.Registry
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a Street View Static API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new Street View client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Registry:        cfg.Registry,
		})
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// metadataResponse is the Street View metadata endpoint response.
type metadataResponse struct {
	Status string `json:"status"`
	PanoID string `json:"pano_id"`
	Date   string `json:"date"`
}

// Lookup queries the metadata endpoint for imagery availability at a
// coordinate. A ZERO_RESULTS status is a valid answer, not an error.
func (c *Client) Lookup(ctx context.Context, coord geo.Coordinate) (*imagery.Metadata, error) {
	endpoint := fmt.Sprintf("%s/metadata?location=%.6f,%.6f&key=%s",
		c.baseURL, coord.Lat, coord.Lon, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create metadata request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("street view metadata request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("street view metadata returned status %d", resp.StatusCode)
	}

	var meta metadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode metadata response: %w", err)
	}

	switch meta.Status {
	case "OK":
		return &imagery.Metadata{
			Available:   true,
			PanoID:      meta.PanoID,
			CaptureDate: meta.Date,
		}, nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return &imagery.Metadata{Available: false}, nil
	default:
		return nil, fmt.Errorf("street view metadata status %q", meta.Status)
	}
}

// ImageURL constructs the static image URL for a coordinate and heading.
// The size, field of view, and pitch are fixed so identical points always
// yield identical URLs.
func (c *Client) ImageURL(coord geo.Coordinate, heading float64) string {
	return fmt.Sprintf("%s?size=%dx%d&location=%.6f,%.6f&heading=%.0f&fov=%d&pitch=%d&key=%s",
		c.baseURL,
		imagery.ImageWidth, imagery.ImageHeight,
		coord.Lat, coord.Lon,
		heading,
		imagery.FieldOfView, imagery.Pitch,
		url.QueryEscape(c.apiKey),
	)
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return ProviderName
}
