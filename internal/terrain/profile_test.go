package terrain

import (
	"errors"
	"math"
	"testing"
)

func buildIndex(t *testing.T, cloud *PointCloud, cellSize float64) *SpatialIndex {
	t.Helper()
	si := NewSpatialIndex(cellSize)
	si.Build(cloud)
	return si
}

// TestComputeProfile_Scenario runs the fixed three-point ramp: one point per
// station, heights 0/5/10.
func TestComputeProfile_Scenario(t *testing.T) {
	cloud := NewPointCloud([]Point{
		{X: 0, Y: 0, Z: 0},
		{X: 10, Y: 0, Z: 5},
		{X: 20, Y: 0, Z: 10},
	})
	si := buildIndex(t, cloud, 1.0)

	line := LineSegment{Start: Vec3{X: 0, Y: 0, Z: 0}, End: Vec3{X: 20, Y: 0, Z: 0}}
	result, err := ComputeProfile(cloud, si, line, 3, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantDistances := []float64{0, 10, 20}
	wantHeights := []float64{0, 5, 10}
	for i, st := range result.Stations {
		if math.Abs(st.Distance-wantDistances[i]) > 1e-9 {
			t.Errorf("station %d: distance = %g, want %g", i, st.Distance, wantDistances[i])
		}
		if !st.HasData() {
			t.Fatalf("station %d: expected data", i)
		}
		if st.Stats.Count != 1 {
			t.Errorf("station %d: count = %d, want 1", i, st.Stats.Count)
		}
		if math.Abs(st.Stats.Mean-wantHeights[i]) > 1e-9 {
			t.Errorf("station %d: mean = %g, want %g", i, st.Stats.Mean, wantHeights[i])
		}
	}
}

func TestComputeProfile_StatisticsCorrectness(t *testing.T) {
	// Three stacked points at one planar location, elevations {1, 2, 3}.
	cloud := NewPointCloud([]Point{
		{X: 0, Y: 0, Z: 1},
		{X: 0.1, Y: 0, Z: 2},
		{X: 0, Y: 0.1, Z: 3},
	})
	si := buildIndex(t, cloud, 1.0)

	line := LineSegment{Start: Vec3{}, End: Vec3{X: 1}}
	result, err := ComputeProfile(cloud, si, line, 2, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := result.Stations[0]
	if !st.HasData() {
		t.Fatal("expected data at station 0")
	}
	if st.Stats.Min != 1 || st.Stats.Max != 3 {
		t.Errorf("min/max = %g/%g, want 1/3", st.Stats.Min, st.Stats.Max)
	}
	if math.Abs(st.Stats.Mean-2) > 1e-12 {
		t.Errorf("mean = %g, want 2", st.Stats.Mean)
	}
	// Population standard deviation of {1,2,3} is sqrt(2/3).
	wantStd := math.Sqrt(2.0 / 3.0)
	if math.Abs(st.Stats.StdDev-wantStd) > 1e-9 {
		t.Errorf("std = %g, want %g", st.Stats.StdDev, wantStd)
	}
	if st.Stats.Count != 3 {
		t.Errorf("count = %d, want 3", st.Stats.Count)
	}
}

func TestComputeProfile_SinglePointStdZero(t *testing.T) {
	cloud := NewPointCloud([]Point{{X: 0, Y: 0, Z: 7}})
	si := buildIndex(t, cloud, 1.0)

	result, err := ComputeProfile(cloud, si, LineSegment{Start: Vec3{}, End: Vec3{X: 1}}, 2, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st := result.Stations[0]
	if !st.HasData() || st.Stats.StdDev != 0 {
		t.Errorf("expected zero std for single point, got %+v", st.Stats)
	}
}

func TestComputeProfile_NoData(t *testing.T) {
	// A single point far outside every tolerance disc.
	cloud := NewPointCloud([]Point{{X: 1000, Y: 1000, Z: 5}})
	si := buildIndex(t, cloud, 1.0)

	line := LineSegment{Start: Vec3{}, End: Vec3{X: 20}}
	result, err := ComputeProfile(cloud, si, line, 5, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, st := range result.Stations {
		if st.HasData() {
			t.Errorf("station %d: expected no data, got %+v", i, st.Stats)
		}
	}
}

func TestComputeProfile_EmptyCloud(t *testing.T) {
	cloud := NewPointCloud(nil)
	si := buildIndex(t, cloud, 1.0)

	result, err := ComputeProfile(cloud, si, LineSegment{Start: Vec3{}, End: Vec3{X: 5}}, 10, 1.0)
	if err != nil {
		t.Fatalf("empty cloud must not error: %v", err)
	}
	for i, st := range result.Stations {
		if st.HasData() {
			t.Errorf("station %d: expected no data on empty cloud", i)
		}
	}
}

func TestComputeProfile_InvalidArguments(t *testing.T) {
	cloud := NewPointCloud([]Point{{X: 0, Y: 0, Z: 0}})
	si := buildIndex(t, cloud, 1.0)
	line := LineSegment{Start: Vec3{}, End: Vec3{X: 1}}

	tests := []struct {
		name        string
		sampleCount int
		tolerance   float64
	}{
		{"zero tolerance", 10, 0},
		{"negative tolerance", 10, -2},
		{"one sample", 1, 1.0},
		{"zero samples", 0, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeProfile(cloud, si, line, tt.sampleCount, tt.tolerance)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestComputeProfile_StaleIndex(t *testing.T) {
	cloud := NewPointCloud([]Point{{X: 0, Y: 0, Z: 0}})
	si := buildIndex(t, cloud, 1.0)

	replaced := cloud.WithPoints([]Point{{X: 1, Y: 1, Z: 1}})
	_, err := ComputeProfile(replaced, si, LineSegment{Start: Vec3{}, End: Vec3{X: 1}}, 2, 1.0)
	if !errors.Is(err, ErrStaleIndex) {
		t.Errorf("expected ErrStaleIndex, got %v", err)
	}
}

func TestComputeProfile_MonotonicDistances(t *testing.T) {
	cloud := NewPointCloud([]Point{{X: 0, Y: 0, Z: 0}})
	si := buildIndex(t, cloud, 1.0)

	line := LineSegment{Start: Vec3{X: -3, Y: 4, Z: 1}, End: Vec3{X: 9, Y: -2, Z: 7}}
	result, err := ComputeProfile(cloud, si, line, 50, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prev := -1.0
	for i, st := range result.Stations {
		if st.Distance < prev {
			t.Fatalf("station %d: distance %g decreased from %g", i, st.Distance, prev)
		}
		prev = st.Distance
	}
	last := result.Stations[len(result.Stations)-1].Distance
	if math.Abs(last-line.Length()) > 1e-9 {
		t.Errorf("last distance = %g, want line length %g", last, line.Length())
	}
}

func TestComputeProfile_DegenerateLine(t *testing.T) {
	cloud := NewPointCloud([]Point{{X: 0, Y: 0, Z: 2}})
	si := buildIndex(t, cloud, 1.0)

	p := Vec3{X: 0, Y: 0, Z: 0}
	result, err := ComputeProfile(cloud, si, LineSegment{Start: p, End: p}, 5, 1.0)
	if err != nil {
		t.Fatalf("degenerate line must not error: %v", err)
	}
	for i, st := range result.Stations {
		if st.Distance != 0 {
			t.Errorf("station %d: distance = %g, want 0", i, st.Distance)
		}
		if !st.HasData() || st.Stats.Mean != 2 {
			t.Errorf("station %d: expected the stacked point at every station", i)
		}
	}
}

func TestProfileSummary(t *testing.T) {
	cloud := NewPointCloud([]Point{
		{X: 0, Y: 0, Z: 1},
		{X: 10, Y: 0, Z: 9},
	})
	si := buildIndex(t, cloud, 1.0)

	line := LineSegment{Start: Vec3{}, End: Vec3{X: 10}}
	result, err := ComputeProfile(cloud, si, line, 3, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := result.Summary()
	if s.ValidStations != 2 {
		t.Fatalf("valid stations = %d, want 2", s.ValidStations)
	}
	if s.MinElevation != 1 || s.MaxElevation != 9 {
		t.Errorf("elevation range = [%g, %g], want [1, 9]", s.MinElevation, s.MaxElevation)
	}
	if s.ElevationRange != 8 {
		t.Errorf("elevation range = %g, want 8", s.ElevationRange)
	}
	if s.TotalElevationChange != 8 {
		t.Errorf("total change = %g, want 8", s.TotalElevationChange)
	}
	wantCoverage := 2.0 / 3.0 * 100
	if math.Abs(s.CoveragePercent-wantCoverage) > 1e-9 {
		t.Errorf("coverage = %g%%, want %g%%", s.CoveragePercent, wantCoverage)
	}
}

func TestProfileSummary_AllNoData(t *testing.T) {
	cloud := NewPointCloud(nil)
	si := buildIndex(t, cloud, 1.0)

	result, err := ComputeProfile(cloud, si, LineSegment{Start: Vec3{}, End: Vec3{X: 5}}, 4, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s := result.Summary(); s != (ProfileSummary{}) {
		t.Errorf("expected zero summary for all no-data profile, got %+v", s)
	}
}

func TestInterpolateGaps(t *testing.T) {
	cloud := NewPointCloud([]Point{
		{X: 0, Y: 0, Z: 2},
		{X: 20, Y: 0, Z: 6},
	})
	si := buildIndex(t, cloud, 1.0)

	// Stations at 0, 5, 10, 15, 20; only the endpoints have data.
	line := LineSegment{Start: Vec3{}, End: Vec3{X: 20}}
	result, err := ComputeProfile(cloud, si, line, 5, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	filled := result.InterpolateGaps()

	// The receiver keeps its gaps.
	if result.Stations[2].HasData() {
		t.Fatal("InterpolateGaps must not modify the receiver")
	}

	wantMeans := []float64{2, 3, 4, 5, 6}
	for i, st := range filled.Stations {
		if !st.HasData() {
			t.Fatalf("station %d: expected interpolated data", i)
		}
		if math.Abs(st.Stats.Mean-wantMeans[i]) > 1e-9 {
			t.Errorf("station %d: mean = %g, want %g", i, st.Stats.Mean, wantMeans[i])
		}
	}
	// Interior stations are flagged and keep zero counts.
	for _, i := range []int{1, 2, 3} {
		st := filled.Stations[i]
		if !st.Interpolated || st.Stats.Count != 0 {
			t.Errorf("station %d: expected interpolated marker with zero count, got %+v", i, st)
		}
	}
	// Measured stations stay unflagged.
	if filled.Stations[0].Interpolated || filled.Stations[4].Interpolated {
		t.Error("measured stations must not be flagged interpolated")
	}
}

func TestInterpolateGaps_NoExtrapolation(t *testing.T) {
	cloud := NewPointCloud([]Point{{X: 10, Y: 0, Z: 5}})
	si := buildIndex(t, cloud, 1.0)

	// Only the middle station has data; its neighbours must stay no-data.
	line := LineSegment{Start: Vec3{}, End: Vec3{X: 20}}
	result, err := ComputeProfile(cloud, si, line, 3, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	filled := result.InterpolateGaps()
	if filled.Stations[0].HasData() || filled.Stations[2].HasData() {
		t.Error("expected no extrapolation beyond the valid station range")
	}
}

func TestExtractCrossSection(t *testing.T) {
	cloud := NewPointCloud([]Point{
		{X: 5, Y: 0.5, Z: 1},  // inside the corridor
		{X: 5, Y: -0.4, Z: 2}, // inside
		{X: 5, Y: 3, Z: 3},    // too far off-axis
		{X: -4, Y: 0, Z: 4},   // behind the start
	})

	line := LineSegment{Start: Vec3{}, End: Vec3{X: 10}}
	cs, err := ExtractCrossSection(cloud, line, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cs.Indices) != 2 {
		t.Fatalf("expected 2 corridor points, got %v", cs.Indices)
	}
	for i, idx := range cs.Indices {
		if idx != i {
			t.Errorf("expected indices [0 1], got %v", cs.Indices)
		}
		if math.Abs(cs.AlongLine[i]-5) > 1e-9 {
			t.Errorf("point %d: along-line = %g, want 5", i, cs.AlongLine[i])
		}
	}
	if math.Abs(cs.Perpendicular[0]-0.5) > 1e-9 || math.Abs(cs.Perpendicular[1]-0.4) > 1e-9 {
		t.Errorf("perpendicular = %v, want [0.5 0.4]", cs.Perpendicular)
	}
}

func TestExtractCrossSection_InvalidTolerance(t *testing.T) {
	cloud := NewPointCloud(nil)
	if _, err := ExtractCrossSection(cloud, LineSegment{}, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}
