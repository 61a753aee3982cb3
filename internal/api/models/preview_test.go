package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/safewalk/safewalk/internal/api/models"
)

func TestPreviewGenerateRequest_Validate(t *testing.T) {
	valid := []models.Point{{Lat: 52.37, Lon: 4.89}, {Lat: 52.38, Lon: 4.90}}

	tests := []struct {
		name       string
		request    models.PreviewGenerateRequest
		wantFields []string
	}{
		{
			name:    "valid route",
			request: models.PreviewGenerateRequest{Route: valid},
		},
		{
			name:    "valid polyline only",
			request: models.PreviewGenerateRequest{EncodedPolyline: "_p~iF~ps|U_ulLnnqC"},
		},
		{
			name:       "empty",
			request:    models.PreviewGenerateRequest{},
			wantFields: []string{"route"},
		},
		{
			name:       "single coordinate",
			request:    models.PreviewGenerateRequest{Route: valid[:1]},
			wantFields: []string{"route"},
		},
		{
			name: "latitude out of range",
			request: models.PreviewGenerateRequest{
				Route: []models.Point{{Lat: 91, Lon: 0}, {Lat: 0, Lon: 0}},
			},
			wantFields: []string{"route"},
		},
		{
			name: "longitude out of range",
			request: models.PreviewGenerateRequest{
				Route: []models.Point{{Lat: 0, Lon: -181}, {Lat: 0, Lon: 0}},
			},
			wantFields: []string{"route"},
		},
		{
			name: "negative options",
			request: models.PreviewGenerateRequest{
				Route:                  valid,
				SamplingDistanceMeters: -1,
				MaxPoints:              -1,
				TimeoutSeconds:         -1,
			},
			wantFields: []string{"samplingDistanceMeters", "maxPoints", "timeoutSeconds"},
		},
		{
			name: "timeout at cap is accepted",
			request: models.PreviewGenerateRequest{
				Route:          valid,
				TimeoutSeconds: models.MaxTimeoutSeconds,
			},
		},
		{
			name: "timeout above cap",
			request: models.PreviewGenerateRequest{
				Route:          valid,
				TimeoutSeconds: models.MaxTimeoutSeconds + 1,
			},
			wantFields: []string{"timeoutSeconds"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.request.Validate()
			if len(tt.wantFields) == 0 {
				assert.Empty(t, errs)
				return
			}

			fields := make(map[string]bool)
			for _, e := range errs {
				fields[e.Field] = true
			}
			for _, f := range tt.wantFields {
				assert.True(t, fields[f], "expected a field error for %q, got %v", f, errs)
			}
		})
	}
}

func TestPreviewFallbackRequest_Validate(t *testing.T) {
	errs := (&models.PreviewFallbackRequest{}).Validate()
	assert.NotEmpty(t, errs)

	errs = (&models.PreviewFallbackRequest{
		Route: []models.Point{{Lat: 52.37, Lon: 4.89}, {Lat: 52.38, Lon: 4.90}},
	}).Validate()
	assert.Empty(t, errs)
}
