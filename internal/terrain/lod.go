package terrain

import (
	"fmt"
	"math"
)

// Dataset size thresholds for adaptive decimation (point counts).
const (
	SmallCloudPoints  = 50_000
	MediumCloudPoints = 200_000
	LargeCloudPoints  = 500_000
)

// LODLevel binds a viewer-distance interval [MinDistance, MaxDistance) to a
// decimation policy. MaxDistance <= 0 marks an open-ended upper bound.
// Exactly one of Stride or Budget should be set: Stride keeps every Nth
// index; Budget keeps a target number of evenly spaced indices.
type LODLevel struct {
	MinDistance float64 `json:"min_distance"`
	MaxDistance float64 `json:"max_distance"`
	Stride      int     `json:"stride,omitempty"`
	Budget      int     `json:"budget,omitempty"`
}

// contains reports whether d falls in the level's [low, high) interval.
func (l LODLevel) contains(d float64) bool {
	if d < l.MinDistance {
		return false
	}
	return l.MaxDistance <= 0 || d < l.MaxDistance
}

// DefaultLODLevels returns the standard four-level stride configuration.
// Distances are expressed as multiples of the scene size (bounding box
// diagonal); normalise the camera distance with Bounds.Diagonal before
// selection.
func DefaultLODLevels() []LODLevel {
	return []LODLevel{
		{MinDistance: 0, MaxDistance: 1, Stride: 1},  // close: all points
		{MinDistance: 1, MaxDistance: 2, Stride: 2},  // near
		{MinDistance: 2, MaxDistance: 5, Stride: 5},  // medium
		{MinDistance: 5, MaxDistance: 0, Stride: 20}, // far, open-ended
	}
}

// ValidateLevels checks that levels form an ordered, non-overlapping
// partition with a usable policy on every level.
func ValidateLevels(levels []LODLevel) error {
	if len(levels) == 0 {
		return fmt.Errorf("%w: empty LOD level configuration", ErrInvalidArgument)
	}
	for i, l := range levels {
		if l.Stride < 1 && l.Budget < 1 {
			return fmt.Errorf("%w: level %d has neither stride nor budget", ErrInvalidArgument, i)
		}
		if l.MaxDistance > 0 && l.MaxDistance <= l.MinDistance {
			return fmt.Errorf("%w: level %d interval [%g, %g) is empty", ErrInvalidArgument, i, l.MinDistance, l.MaxDistance)
		}
		if i > 0 {
			prev := levels[i-1]
			if prev.MaxDistance <= 0 {
				return fmt.Errorf("%w: level %d follows an open-ended level", ErrInvalidArgument, i)
			}
			if l.MinDistance < prev.MaxDistance {
				return fmt.Errorf("%w: level %d overlaps level %d", ErrInvalidArgument, i, i-1)
			}
		}
	}
	return nil
}

// DecimatedSelection is the subset of point indices chosen for the current
// LOD level. It references the original cloud by index and is recomputed per
// request; it never copies point data.
type DecimatedSelection struct {
	LevelIndex    int      `json:"level_index"`
	Level         LODLevel `json:"level"`
	Indices       []int    `json:"indices"`
	OriginalCount int      `json:"original_count"`
}

// SelectForDistance returns the decimated index subset for the level whose
// interval contains viewerDistance. Distances below the first level clamp to
// the first level; distances at or beyond the last level's upper bound use
// the last level. Selection is stateless and deterministic: identical inputs
// always yield identical index sets, which keeps rendering stable between
// frames at constant distance. Hysteresis around level boundaries is a caller
// policy (see LODGate), not part of this contract.
//
// index is optional; when non-nil it is checked against cloud so a stale
// cached index is caught on the render path as well as the profile path.
func SelectForDistance(cloud *PointCloud, index *SpatialIndex, levels []LODLevel, viewerDistance float64) (*DecimatedSelection, error) {
	if err := ValidateLevels(levels); err != nil {
		return nil, err
	}
	if index != nil {
		if err := index.check(cloud); err != nil {
			return nil, err
		}
	}

	levelIdx := levelForDistance(levels, viewerDistance)
	level := levels[levelIdx]
	n := cloud.Len()

	sel := &DecimatedSelection{
		LevelIndex:    levelIdx,
		Level:         level,
		OriginalCount: n,
	}
	if n == 0 {
		return sel, nil
	}

	switch {
	case level.Stride > 0:
		sel.Indices = strideIndices(n, level.Stride)
	default:
		sel.Indices = budgetIndices(n, level.Budget)
	}
	return sel, nil
}

// levelForDistance returns the index of the first level containing d,
// clamping out-of-range distances to the nearest end of the partition.
func levelForDistance(levels []LODLevel, d float64) int {
	for i, l := range levels {
		if l.contains(d) {
			return i
		}
	}
	if d < levels[0].MinDistance {
		return 0
	}
	return len(levels) - 1
}

// strideIndices keeps every nth index, order preserving.
func strideIndices(n, stride int) []int {
	indices := make([]int, 0, n/stride+1)
	for i := 0; i < n; i += stride {
		indices = append(indices, i)
	}
	return indices
}

// budgetIndices keeps budget evenly spaced indices so the subset follows
// the cloud's storage order uniformly rather than truncating a prefix.
func budgetIndices(n, budget int) []int {
	if budget >= n {
		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}
	indices := make([]int, budget)
	for k := 0; k < budget; k++ {
		indices[k] = k * n / budget
	}
	return indices
}

// AdaptiveStride recommends a stride factor from the dataset size alone,
// for callers without camera information: small clouds render in full,
// massive clouds start at a tenth.
func AdaptiveStride(pointCount int) int {
	switch {
	case pointCount < SmallCloudPoints:
		return 1
	case pointCount < MediumCloudPoints:
		return 2
	case pointCount < LargeCloudPoints:
		return 5
	default:
		return 10
	}
}

// LODGate layers hysteresis on top of SelectForDistance. The selector itself
// is stateless; the gate remembers the level of the previous frame and only
// switches once the viewer distance leaves a dead band around the boundary
// between the current and target levels, so selections do not thrash while
// the camera hovers near a threshold.
type LODGate struct {
	levels  []LODLevel
	band    float64
	current int
}

// NewLODGate creates a gate over levels with a dead band expressed as a
// fraction of the boundary distance (e.g. 0.1 for ±10%).
func NewLODGate(levels []LODLevel, band float64) (*LODGate, error) {
	if err := ValidateLevels(levels); err != nil {
		return nil, err
	}
	if band < 0 || band >= 1 {
		return nil, fmt.Errorf("%w: hysteresis band %g (want [0, 1))", ErrInvalidArgument, band)
	}
	return &LODGate{levels: levels, band: band, current: -1}, nil
}

// Resolve returns the level index to use for viewerDistance, applying the
// dead band against the previously resolved level.
func (g *LODGate) Resolve(viewerDistance float64) int {
	target := levelForDistance(g.levels, viewerDistance)
	if g.current < 0 || target == g.current {
		g.current = target
		return target
	}

	// Boundary between the two levels: the min distance of the higher one.
	lo, hi := g.current, target
	if lo > hi {
		lo, hi = hi, lo
	}
	boundary := g.levels[hi].MinDistance
	if math.Abs(viewerDistance-boundary) <= g.band*boundary {
		return g.current
	}
	g.current = target
	return target
}

// Current returns the last resolved level index, or -1 before the first
// Resolve call.
func (g *LODGate) Current() int { return g.current }
