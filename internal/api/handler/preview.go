// Package handler provides HTTP handlers for the SafeWalk API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/api/models"
	"github.com/safewalk/safewalk/internal/api/response"
	"github.com/safewalk/safewalk/internal/preview"
	"github.com/safewalk/safewalk/pkg/geo"
)

// PreviewHandler handles route safety preview endpoints.
type PreviewHandler struct {
	previews *preview.Service
	logger   zerolog.Logger
}

// NewPreviewHandler creates a new PreviewHandler.
func NewPreviewHandler(previews *preview.Service, logger zerolog.Logger) *PreviewHandler {
	return &PreviewHandler{
		previews: previews,
		logger:   logger,
	}
}

// GeneratePreview handles POST /v1/previews:generate - run the full preview
// pipeline for a route.
func (h *PreviewHandler) GeneratePreview(w http.ResponseWriter, r *http.Request) {
	var input models.PreviewGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if errs := input.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "request validation failed", errs)
		return
	}

	coords, ok := routeCoordinates(w, r, input.Route, input.EncodedPolyline)
	if !ok {
		return
	}

	opts := preview.GenerateOptions{
		SamplingDistance: input.SamplingDistanceMeters,
		MaxPoints:        input.MaxPoints,
		Timeout:          time.Duration(input.TimeoutSeconds) * time.Second,
	}

	result, err := h.previews.Generate(r.Context(), coords, opts)
	if err != nil {
		h.writePreviewError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, result)
}

// FallbackPreview handles POST /v1/previews:fallback - build a degraded
// preview without any provider calls.
func (h *PreviewHandler) FallbackPreview(w http.ResponseWriter, r *http.Request) {
	var input models.PreviewFallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if errs := input.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "request validation failed", errs)
		return
	}

	coords, ok := routeCoordinates(w, r, input.Route, input.EncodedPolyline)
	if !ok {
		return
	}

	result, err := h.previews.Fallback(r.Context(), coords)
	if err != nil {
		h.writePreviewError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, result)
}

// GetCachedPreview handles GET /v1/previews/cached - look up a previously
// generated preview without triggering generation.
func (h *PreviewHandler) GetCachedPreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		coords []geo.Coordinate
		errs   []models.FieldError
	)
	for _, pair := range [][2]string{
		{"originLat", "originLon"},
		{"destLat", "destLon"},
	} {
		lat, latErr := strconv.ParseFloat(q.Get(pair[0]), 64)
		lon, lonErr := strconv.ParseFloat(q.Get(pair[1]), 64)
		if latErr != nil {
			errs = append(errs, models.FieldError{Field: pair[0], Message: "must be a number", Code: "invalid"})
		}
		if lonErr != nil {
			errs = append(errs, models.FieldError{Field: pair[1], Message: "must be a number", Code: "invalid"})
		}
		c := geo.Coordinate{Lat: lat, Lon: lon}
		if latErr == nil && lonErr == nil {
			if err := c.Validate(); err != nil {
				errs = append(errs, models.FieldError{Field: pair[0], Message: err.Error(), Code: "out_of_range"})
			}
		}
		coords = append(coords, c)
	}
	if len(errs) > 0 {
		response.BadRequest(w, r, "request validation failed", errs)
		return
	}

	cached := h.previews.GetCached(r.Context(), coords)
	if cached == nil {
		response.NotFound(w, r, "no cached preview for this route")
		return
	}

	response.JSON(w, r, http.StatusOK, cached)
}

// ClearCaches handles DELETE /v1/caches - empty the preview, imagery and
// analysis caches.
func (h *PreviewHandler) ClearCaches(w http.ResponseWriter, r *http.Request) {
	if err := h.previews.ClearAll(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("cache clear failed")
		response.InternalError(w, r, "failed to clear caches")
		return
	}

	response.JSON(w, r, http.StatusOK, models.CacheClearResponse{
		Cleared: true,
		Time:    models.Timestamp(time.Now()),
	})
}

func (h *PreviewHandler) writePreviewError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, preview.ErrInvalidRoute):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, preview.ErrFetchTimeout):
		response.GenerationTimeout(w, r, "imagery could not be fetched within the generation budget")
	case errors.Is(err, preview.ErrNoImagery):
		response.NoImagery(w, r, "no street-level imagery is available along this route")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		h.logger.Error().Err(err).Msg("preview generation failed")
		response.InternalError(w, r, "preview generation failed")
	}
}

func routeCoordinates(w http.ResponseWriter, r *http.Request, route []models.Point, encoded string) ([]geo.Coordinate, bool) {
	if len(route) > 0 {
		coords := make([]geo.Coordinate, len(route))
		for i, p := range route {
			coords[i] = geo.Coordinate{Lat: p.Lat, Lon: p.Lon}
		}
		return coords, true
	}

	coords := geo.DecodePolyline(encoded)
	if len(coords) < 2 {
		response.BadRequest(w, r, "encodedPolyline did not decode to a usable route", []models.FieldError{
			{Field: "encodedPolyline", Message: "must decode to at least two coordinates", Code: "invalid"},
		})
		return nil, false
	}
	return coords, true
}
