package terrain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// HeightStats summarises the elevations of the points gathered at one
// station. StdDev is the population standard deviation (denominator = count).
type HeightStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
	Count  int     `json:"count"`
}

// Station is one sampled position along a profile line. Distance is the
// cumulative distance from the line start in meters. A nil Stats marks a
// no-data station: zero points fell within the tolerance disc. Downstream
// consumers must keep no-data distinct from a valid station at height zero.
type Station struct {
	Distance     float64      `json:"distance_m"`
	Stats        *HeightStats `json:"stats,omitempty"`
	Interpolated bool         `json:"interpolated,omitempty"`
}

// HasData reports whether any points were found at this station.
func (s Station) HasData() bool { return s.Stats != nil }

// ProfileResult is the immutable output of ComputeProfile: the ordered
// stations plus the originating line and parameters.
type ProfileResult struct {
	Line        LineSegment `json:"line"`
	SampleCount int         `json:"sample_count"`
	Tolerance   float64     `json:"tolerance_m"`
	Length      float64     `json:"length_m"`
	Stations    []Station   `json:"stations"`
}

// ComputeProfile extracts an elevation profile along line using radius
// queries against index, which must have been built for cloud.
//
// Candidate gathering uses only the planar (x, y) projection: each station
// collects the points whose planar distance from the sample position is
// within tolerance, and aggregates their elevations. Height never filters
// candidates. For a near-vertical line this admits points from a wide
// elevation range at a single station; that is a known property of the
// planar search, kept deliberately to keep queries cheap.
//
// Station distances are exactly linear in the sample index,
// (i/(sampleCount-1)) * lineLength, independent of query results. An empty
// cloud is legal and produces a result whose every station is no-data.
func ComputeProfile(cloud *PointCloud, index *SpatialIndex, line LineSegment, sampleCount int, tolerance float64) (*ProfileResult, error) {
	if tolerance <= 0 {
		return nil, fmt.Errorf("%w: tolerance %g (must be positive)", ErrInvalidArgument, tolerance)
	}

	positions, err := SampleLine(line, sampleCount)
	if err != nil {
		return nil, err
	}

	length := line.Length()
	stations := make([]Station, sampleCount)
	elevations := make([]float64, 0, 64)

	for i, pos := range positions {
		matches, err := index.QueryRadius(cloud, pos.X, pos.Y, tolerance)
		if err != nil {
			return nil, err
		}

		stations[i] = Station{
			Distance: float64(i) / float64(sampleCount-1) * length,
		}
		if len(matches) == 0 {
			continue
		}

		elevations = elevations[:0]
		for _, idx := range matches {
			elevations = append(elevations, cloud.At(idx).Z)
		}
		stations[i].Stats = summariseElevations(elevations)
	}

	return &ProfileResult{
		Line:        line,
		SampleCount: sampleCount,
		Tolerance:   tolerance,
		Length:      length,
		Stations:    stations,
	}, nil
}

// summariseElevations aggregates a non-empty elevation slice.
func summariseElevations(elevations []float64) *HeightStats {
	return &HeightStats{
		Min:    floats.Min(elevations),
		Max:    floats.Max(elevations),
		Mean:   stat.Mean(elevations, nil),
		StdDev: stat.PopStdDev(elevations, nil),
		Count:  len(elevations),
	}
}

// ProfileSummary aggregates a whole profile for display headers and export
// footers. Elevation fields are zero when ValidStations is zero.
type ProfileSummary struct {
	MinElevation         float64 `json:"min_elevation"`
	MaxElevation         float64 `json:"max_elevation"`
	MeanElevation        float64 `json:"mean_elevation"`
	ElevationRange       float64 `json:"elevation_range"`
	TotalElevationChange float64 `json:"total_elevation_change"`
	ValidStations        int     `json:"valid_stations"`
	CoveragePercent      float64 `json:"coverage_percent"`
}

// Summary computes profile-wide statistics over the stations that carry data.
// Interpolated stations are excluded.
func (r *ProfileResult) Summary() ProfileSummary {
	var s ProfileSummary
	var meanSum float64
	var firstMean, lastMean float64

	for _, st := range r.Stations {
		if !st.HasData() || st.Interpolated {
			continue
		}
		if s.ValidStations == 0 {
			s.MinElevation = st.Stats.Min
			s.MaxElevation = st.Stats.Max
			firstMean = st.Stats.Mean
		}
		s.MinElevation = math.Min(s.MinElevation, st.Stats.Min)
		s.MaxElevation = math.Max(s.MaxElevation, st.Stats.Max)
		meanSum += st.Stats.Mean
		lastMean = st.Stats.Mean
		s.ValidStations++
	}

	if s.ValidStations == 0 {
		return ProfileSummary{}
	}

	s.MeanElevation = meanSum / float64(s.ValidStations)
	s.ElevationRange = s.MaxElevation - s.MinElevation
	s.TotalElevationChange = math.Abs(lastMean - firstMean)
	s.CoveragePercent = float64(s.ValidStations) / float64(len(r.Stations)) * 100
	return s
}

// InterpolateGaps returns a copy of the profile with interior no-data
// stations filled by linear interpolation between the nearest valid
// neighbours. Stations outside the first and last valid stations are left
// as no-data (no extrapolation). Filled stations are flagged Interpolated
// and keep Count zero so exports and plots can still tell them apart from
// measured data. The receiver is not modified.
func (r *ProfileResult) InterpolateGaps() *ProfileResult {
	out := *r
	out.Stations = make([]Station, len(r.Stations))
	copy(out.Stations, r.Stations)

	first, last := -1, -1
	for i, st := range r.Stations {
		if st.HasData() {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 || first == last {
		return &out
	}

	prev := first
	for i := first + 1; i <= last; i++ {
		if !r.Stations[i].HasData() {
			continue
		}
		// Fill the gap (prev, i) against its two valid endpoints.
		a, b := r.Stations[prev], r.Stations[i]
		span := b.Distance - a.Distance
		for j := prev + 1; j < i; j++ {
			t := 0.0
			if span > 0 {
				t = (r.Stations[j].Distance - a.Distance) / span
			}
			out.Stations[j].Stats = &HeightStats{
				Min:  a.Stats.Min + t*(b.Stats.Min-a.Stats.Min),
				Max:  a.Stats.Max + t*(b.Stats.Max-a.Stats.Max),
				Mean: a.Stats.Mean + t*(b.Stats.Mean-a.Stats.Mean),
			}
			out.Stations[j].Interpolated = true
		}
		prev = i
	}
	return &out
}

// CrossSection holds every point within tolerance of a profile line,
// decomposed into distance along the line and perpendicular offset. It is
// used for detailed station-free inspection of a corridor.
type CrossSection struct {
	Line          LineSegment `json:"line"`
	Length        float64     `json:"length_m"`
	Tolerance     float64     `json:"tolerance_m"`
	Indices       []int       `json:"indices"`
	AlongLine     []float64   `json:"along_line_m"`
	Perpendicular []float64   `json:"perpendicular_m"`
}

// ExtractCrossSection collects all cloud points whose planar distance from
// the segment is within tolerance. The scan is linear in the cloud size;
// unlike ComputeProfile it does not need a spatial index.
func ExtractCrossSection(cloud *PointCloud, line LineSegment, tolerance float64) (*CrossSection, error) {
	if tolerance <= 0 {
		return nil, fmt.Errorf("%w: tolerance %g (must be positive)", ErrInvalidArgument, tolerance)
	}

	cs := &CrossSection{
		Line:      line,
		Length:    line.Length(),
		Tolerance: tolerance,
	}

	dir := line.End.Sub(line.Start)
	var unit Vec3
	if cs.Length > 0 {
		unit = dir.Scale(1 / cs.Length)
	}

	for i := 0; i < cloud.Len(); i++ {
		p := cloud.At(i)
		pos := Vec3{X: p.X, Y: p.Y, Z: p.Z}
		perp := planarSegmentDistance(pos, line)
		if perp > tolerance {
			continue
		}
		rel := pos.Sub(line.Start)
		along := rel.X*unit.X + rel.Y*unit.Y + rel.Z*unit.Z
		cs.Indices = append(cs.Indices, i)
		cs.AlongLine = append(cs.AlongLine, along)
		cs.Perpendicular = append(cs.Perpendicular, perp)
	}
	return cs, nil
}

// planarSegmentDistance returns the 2-D distance from p to the segment,
// clamping the projection to the segment's extent.
func planarSegmentDistance(p Vec3, line LineSegment) float64 {
	lx := line.End.X - line.Start.X
	ly := line.End.Y - line.Start.Y
	px := p.X - line.Start.X
	py := p.Y - line.Start.Y

	lineLen := math.Hypot(lx, ly)
	if lineLen == 0 {
		return math.Hypot(px, py)
	}

	proj := (px*lx + py*ly) / lineLen
	proj = math.Max(0, math.Min(proj, lineLen))
	qx := line.Start.X + proj*lx/lineLen
	qy := line.Start.Y + proj*ly/lineLen
	return math.Hypot(p.X-qx, p.Y-qy)
}
