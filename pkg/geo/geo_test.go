package geo

import (
	"math"
	"testing"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Coordinate
		expected float64 // meters
		tol      float64
	}{
		{
			name:     "same point",
			a:        Coordinate{Lat: 52.3676, Lon: 4.9041},
			b:        Coordinate{Lat: 52.3676, Lon: 4.9041},
			expected: 0,
			tol:      0.001,
		},
		{
			name:     "one hundredth degree east at equator",
			a:        Coordinate{Lat: 0, Lon: 0},
			b:        Coordinate{Lat: 0, Lon: 0.01},
			expected: 1112.0,
			tol:      1,
		},
		{
			name:     "Amsterdam to Utrecht",
			a:        Coordinate{Lat: 52.3676, Lon: 4.9041},
			b:        Coordinate{Lat: 52.0907, Lon: 5.1214},
			expected: 34150,
			tol:      500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.a, tt.b)
			if math.Abs(got-tt.expected) > tt.tol {
				t.Errorf("expected ~%f, got %f", tt.expected, got)
			}
		})
	}
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Coordinate
		expected float64 // degrees
		tol      float64
	}{
		{
			name:     "due east at equator",
			a:        Coordinate{Lat: 0, Lon: 0},
			b:        Coordinate{Lat: 0, Lon: 0.01},
			expected: 90,
			tol:      0.01,
		},
		{
			name:     "due north",
			a:        Coordinate{Lat: 0, Lon: 0},
			b:        Coordinate{Lat: 0.01, Lon: 0},
			expected: 0,
			tol:      0.01,
		},
		{
			name:     "due west at equator",
			a:        Coordinate{Lat: 0, Lon: 0.01},
			b:        Coordinate{Lat: 0, Lon: 0},
			expected: 270,
			tol:      0.01,
		},
		{
			name:     "due south",
			a:        Coordinate{Lat: 0.01, Lon: 0},
			b:        Coordinate{Lat: 0, Lon: 0},
			expected: 180,
			tol:      0.01,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(tt.a, tt.b)
			if math.Abs(got-tt.expected) > tt.tol {
				t.Errorf("expected ~%f, got %f", tt.expected, got)
			}
		})
	}
}

func TestBearing_Range(t *testing.T) {
	points := []Coordinate{
		{Lat: 52.37, Lon: 4.90},
		{Lat: 52.36, Lon: 4.91},
		{Lat: 52.38, Lon: 4.88},
		{Lat: 51.92, Lon: 4.47},
	}

	for _, a := range points {
		for _, b := range points {
			if a == b {
				continue
			}
			got := Bearing(a, b)
			if got < 0 || got >= 360 {
				t.Errorf("bearing %f out of [0, 360) for %+v -> %+v", got, a, b)
			}
		}
	}
}

func TestInterpolate(t *testing.T) {
	a := Coordinate{Lat: 0, Lon: 0}
	b := Coordinate{Lat: 1, Lon: 2}

	mid := Interpolate(a, b, 0.5)
	if math.Abs(mid.Lat-0.5) > 1e-9 || math.Abs(mid.Lon-1.0) > 1e-9 {
		t.Errorf("expected midpoint {0.5 1}, got %+v", mid)
	}

	if start := Interpolate(a, b, 0); start != a {
		t.Errorf("expected start point, got %+v", start)
	}
	if end := Interpolate(a, b, 1); end != b {
		t.Errorf("expected end point, got %+v", end)
	}
}

func TestPathLength(t *testing.T) {
	coords := []Coordinate{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 0.01},
		{Lat: 0, Lon: 0.02},
	}

	got := PathLength(coords)
	if math.Abs(got-2224) > 2 {
		t.Errorf("expected ~2224m, got %f", got)
	}

	if l := PathLength(coords[:1]); l != 0 {
		t.Errorf("expected 0 for single point, got %f", l)
	}
}

func TestPolyline_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		coords []Coordinate
	}{
		{
			name:   "single point",
			coords: []Coordinate{{Lat: 38.5, Lon: -120.2}},
		},
		{
			name: "Google documentation example",
			coords: []Coordinate{
				{Lat: 38.5, Lon: -120.2},
				{Lat: 40.7, Lon: -120.95},
				{Lat: 43.252, Lon: -126.453},
			},
		},
		{
			name: "Amsterdam to Utrecht",
			coords: []Coordinate{
				{Lat: 52.3676, Lon: 4.9041},
				{Lat: 52.0907, Lon: 5.1214},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := DecodePolyline(EncodePolyline(tt.coords))
			if len(decoded) != len(tt.coords) {
				t.Fatalf("expected %d coordinates, got %d", len(tt.coords), len(decoded))
			}
			for i, c := range decoded {
				if math.Abs(c.Lat-tt.coords[i].Lat) > 1e-5 || math.Abs(c.Lon-tt.coords[i].Lon) > 1e-5 {
					t.Errorf("coordinate %d: expected %+v, got %+v", i, tt.coords[i], c)
				}
			}
		})
	}
}

func TestDecodePolyline_Known(t *testing.T) {
	decoded := DecodePolyline("_p~iF~ps|U_ulLnnqC")
	if len(decoded) != 2 {
		t.Fatalf("expected 2 coordinates, got %d", len(decoded))
	}
	if math.Abs(decoded[0].Lat-38.5) > 0.001 || math.Abs(decoded[0].Lon+120.2) > 0.001 {
		t.Errorf("unexpected first coordinate: %+v", decoded[0])
	}
	if math.Abs(decoded[1].Lat-40.7) > 0.001 || math.Abs(decoded[1].Lon+120.95) > 0.001 {
		t.Errorf("unexpected second coordinate: %+v", decoded[1])
	}
}

func TestDecodePolyline_Empty(t *testing.T) {
	if got := DecodePolyline(""); got != nil {
		t.Errorf("expected nil for empty string, got %v", got)
	}
}

func TestCoordinate_Validate(t *testing.T) {
	valid := Coordinate{Lat: 52.37, Lon: 4.90}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error for valid coordinate: %v", err)
	}

	invalid := []Coordinate{
		{Lat: 91, Lon: 0},
		{Lat: -91, Lon: 0},
		{Lat: 0, Lon: 181},
		{Lat: 0, Lon: -181},
	}
	for _, c := range invalid {
		if err := c.Validate(); err == nil {
			t.Errorf("expected error for %+v", c)
		}
	}
}
