// Package cloudvision provides a Google Cloud Vision feature-extraction
// provider for the safety scorer.
package cloudvision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/safewalk/safewalk/internal/provider/resilience"
	"github.com/safewalk/safewalk/internal/scoring"
)

const (
	// DefaultBaseURL is the base URL for the Cloud Vision REST API.
	DefaultBaseURL = "https://vision.googleapis.com/v1"

	// ProviderName identifies this provider.
	ProviderName = "cloudvision"

	// maxResults bounds label and object detections per image.
	maxResults = 20
)

// ClientConfig holds configuration for the Cloud Vision client.
type ClientConfig struct {
	// APIKey is the Cloud Vision API key.
	APIKey string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 15s).
	Timeout time.Duration

	// Registry receives request outcomes for health reporting. Ignored when
	// a custom HTTPClient is supplied.
	Registry *resilience.Registry
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a Cloud Vision API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new Cloud Vision client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      2,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     3 * time.Second,
			Registry:        cfg.Registry,
		})
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Request/response types for the images:annotate endpoint.

type annotateRequest struct {
	Requests []annotateRequestItem `json:"requests"`
}

type annotateRequestItem struct {
	Image    imageSpec     `json:"image"`
	Features []featureSpec `json:"features"`
}

type imageSpec struct {
	Source imageSource `json:"source"`
}

type imageSource struct {
	ImageURI string `json:"imageUri"`
}

type featureSpec struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type annotateResponse struct {
	Responses []annotateResponseItem `json:"responses"`
}

type annotateResponseItem struct {
	LabelAnnotations []labelAnnotation `json:"labelAnnotations"`
	LocalizedObjects []localizedObject `json:"localizedObjectAnnotations"`
	ImageProperties  *imageProperties  `json:"imagePropertiesAnnotation"`
	Error            *apiError         `json:"error"`
}

type labelAnnotation struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

type localizedObject struct {
	Name string `json:"name"`
}

type imageProperties struct {
	DominantColors dominantColors `json:"dominantColors"`
}

type dominantColors struct {
	Colors []colorInfo `json:"colors"`
}

type colorInfo struct {
	Color         rgbColor `json:"color"`
	PixelFraction float64  `json:"pixelFraction"`
}

type rgbColor struct {
	Red   float64 `json:"red"`
	Green float64 `json:"green"`
	Blue  float64 `json:"blue"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Extract annotates the image at the given URL with labels, localized
// objects, and dominant colors.
func (c *Client) Extract(ctx context.Context, imageURL string) (*scoring.VisionResult, error) {
	body := annotateRequest{
		Requests: []annotateRequestItem{{
			Image: imageSpec{Source: imageSource{ImageURI: imageURL}},
			Features: []featureSpec{
				{Type: "LABEL_DETECTION", MaxResults: maxResults},
				{Type: "OBJECT_LOCALIZATION", MaxResults: maxResults},
				{Type: "IMAGE_PROPERTIES"},
			},
		}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal annotate request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/images:annotate?key=%s", c.baseURL, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create annotate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision annotate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision annotate returned status %d", resp.StatusCode)
	}

	var annotated annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&annotated); err != nil {
		return nil, fmt.Errorf("decode annotate response: %w", err)
	}

	if len(annotated.Responses) == 0 {
		return nil, fmt.Errorf("vision annotate returned no responses")
	}

	item := annotated.Responses[0]
	if item.Error != nil {
		return nil, fmt.Errorf("vision annotate error %d: %s", item.Error.Code, item.Error.Message)
	}

	return toVisionResult(item), nil
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return ProviderName
}

func toVisionResult(item annotateResponseItem) *scoring.VisionResult {
	result := &scoring.VisionResult{
		Labels:  make([]scoring.Label, 0, len(item.LabelAnnotations)),
		Objects: make([]scoring.Object, 0, len(item.LocalizedObjects)),
	}

	for _, label := range item.LabelAnnotations {
		result.Labels = append(result.Labels, scoring.Label{
			Description: label.Description,
			Score:       label.Score,
		})
	}

	for _, obj := range item.LocalizedObjects {
		result.Objects = append(result.Objects, scoring.Object{Name: obj.Name})
	}

	if item.ImageProperties != nil {
		for _, color := range item.ImageProperties.DominantColors.Colors {
			result.DominantColors = append(result.DominantColors, scoring.DominantColor{
				Color: scoring.RGB{
					R: color.Color.Red,
					G: color.Color.Green,
					B: color.Color.Blue,
				},
				PixelFraction: color.PixelFraction,
			})
		}
	}

	return result
}
