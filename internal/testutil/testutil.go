// Package testutil provides shared test fixtures and helpers.
//
// This package centralises common synthetic point clouds and assertion
// helpers to reduce duplication across test files.
package testutil

import (
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/terrain.profile/internal/terrain"
)

// RampCloud returns n points spaced along the x axis with linearly rising
// elevation (z = x * slope).
func RampCloud(n int, spacing, slope float64) *terrain.PointCloud {
	points := make([]terrain.Point, n)
	for i := range points {
		x := float64(i) * spacing
		points[i] = terrain.Point{X: x, Y: 0, Z: x * slope}
	}
	return terrain.NewPointCloud(points)
}

// StackCloud returns points sharing one planar location with the given
// elevations, for closed-form statistics checks.
func StackCloud(x, y float64, elevations []float64) *terrain.PointCloud {
	points := make([]terrain.Point, len(elevations))
	for i, z := range elevations {
		points[i] = terrain.Point{X: x, Y: y, Z: z}
	}
	return terrain.NewPointCloud(points)
}

// RandomCloud returns n points uniformly scattered over a square of the
// given extent, deterministic for a fixed seed.
func RandomCloud(n int, extent float64, seed int64) *terrain.PointCloud {
	rng := rand.New(rand.NewSource(seed))
	points := make([]terrain.Point, n)
	for i := range points {
		points[i] = terrain.Point{
			X: rng.Float64() * extent,
			Y: rng.Float64() * extent,
			Z: rng.Float64() * 10,
		}
	}
	return terrain.NewPointCloud(points)
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertErrorIs fails the test unless err matches target.
func AssertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
