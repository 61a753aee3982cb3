package models

import "strconv"

// MaxTimeoutSeconds caps the caller-supplied generation budget. The HTTP
// server's write timeout is sized above this cap; raising one requires
// raising the other.
const MaxTimeoutSeconds = 60

// PreviewGenerateRequest is the body of POST /v1/previews:generate.
type PreviewGenerateRequest struct {
	// Route is the ordered route geometry, at least two coordinates.
	Route []Point `json:"route"`

	// EncodedPolyline is an alternative to Route: the geometry as a Google
	// encoded polyline. Ignored when Route is present.
	EncodedPolyline string `json:"encodedPolyline,omitempty"`

	// SamplingDistanceMeters overrides the sampling interval. Optional.
	SamplingDistanceMeters float64 `json:"samplingDistanceMeters,omitempty"`

	// MaxPoints overrides the sampled-point cap. Optional.
	MaxPoints int `json:"maxPoints,omitempty"`

	// TimeoutSeconds overrides the generation budget. Optional.
	TimeoutSeconds int `json:"timeoutSeconds,omitempty"`
}

// Validate checks the request shape and coordinate ranges.
func (r *PreviewGenerateRequest) Validate() []FieldError {
	var errs []FieldError

	if len(r.Route) == 0 && r.EncodedPolyline == "" {
		errs = append(errs, FieldError{
			Field:   "route",
			Message: "either route or encodedPolyline is required",
			Code:    "required",
		})
		return errs
	}
	if len(r.Route) == 1 {
		errs = append(errs, FieldError{
			Field:   "route",
			Message: "at least two coordinates are required",
			Code:    "too_short",
		})
	}
	errs = append(errs, validatePoints("route", r.Route)...)

	if r.SamplingDistanceMeters < 0 {
		errs = append(errs, FieldError{
			Field:   "samplingDistanceMeters",
			Message: "must be positive",
			Code:    "out_of_range",
		})
	}
	if r.MaxPoints < 0 {
		errs = append(errs, FieldError{
			Field:   "maxPoints",
			Message: "must be positive",
			Code:    "out_of_range",
		})
	}
	if r.TimeoutSeconds < 0 {
		errs = append(errs, FieldError{
			Field:   "timeoutSeconds",
			Message: "must be positive",
			Code:    "out_of_range",
		})
	}
	if r.TimeoutSeconds > MaxTimeoutSeconds {
		errs = append(errs, FieldError{
			Field:   "timeoutSeconds",
			Message: "must be at most " + strconv.Itoa(MaxTimeoutSeconds) + " seconds",
			Code:    "out_of_range",
		})
	}

	return errs
}

// PreviewFallbackRequest is the body of POST /v1/previews:fallback.
type PreviewFallbackRequest struct {
	// Route is the ordered route geometry, at least two coordinates.
	Route []Point `json:"route"`

	// EncodedPolyline is an alternative to Route. Ignored when Route is
	// present.
	EncodedPolyline string `json:"encodedPolyline,omitempty"`
}

// Validate checks the request shape and coordinate ranges.
func (r *PreviewFallbackRequest) Validate() []FieldError {
	var errs []FieldError

	if len(r.Route) == 0 && r.EncodedPolyline == "" {
		errs = append(errs, FieldError{
			Field:   "route",
			Message: "either route or encodedPolyline is required",
			Code:    "required",
		})
		return errs
	}
	if len(r.Route) == 1 {
		errs = append(errs, FieldError{
			Field:   "route",
			Message: "at least two coordinates are required",
			Code:    "too_short",
		})
	}
	return append(errs, validatePoints("route", r.Route)...)
}

// CacheClearResponse is the body of DELETE /v1/caches.
type CacheClearResponse struct {
	Cleared bool      `json:"cleared"`
	Time    Timestamp `json:"time"`
}

func validatePoints(field string, points []Point) []FieldError {
	var errs []FieldError
	for i, p := range points {
		if p.Lat < -90 || p.Lat > 90 {
			errs = append(errs, FieldError{
				Field:   field,
				Message: "latitude out of range at index " + strconv.Itoa(i),
				Code:    "out_of_range",
			})
		}
		if p.Lon < -180 || p.Lon > 180 {
			errs = append(errs, FieldError{
				Field:   field,
				Message: "longitude out of range at index " + strconv.Itoa(i),
				Code:    "out_of_range",
			})
		}
	}
	return errs
}
