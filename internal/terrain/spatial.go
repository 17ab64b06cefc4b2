package terrain

import (
	"fmt"
	"math"
)

// Constants for spatial index configuration
const (
	// DefaultCellSize is the default grid cell size in meters. Queries are
	// cheapest when the cell size approximately matches the common search
	// radius.
	DefaultCellSize = 1.0
	// EstimatedPointsPerCell is used for initial grid capacity estimation
	EstimatedPointsPerCell = 4
)

// SpatialIndex provides efficient radius queries over the planar (x, y)
// projection of a point cloud using a regular grid hash. The index references
// the cloud's point storage and records its identity; queries against a cloud
// with a different identity or revision fail with ErrStaleIndex rather than
// silently returning wrong indices.
//
// Building is an exclusive operation. Once built an index has no internal
// mutable state, so concurrent read-only queries are safe. Rebuild by
// constructing a fresh index and publishing it (see IndexArena) so in-flight
// queries complete against the old instance.
type SpatialIndex struct {
	cellSize float64
	grid     map[int64][]int
	points   []Point
	cloudID  [16]byte
	revision uint64
}

// NewSpatialIndex creates a spatial index with the specified cell size.
// Non-positive cell sizes fall back to DefaultCellSize.
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &SpatialIndex{
		cellSize: cellSize,
		grid:     make(map[int64][]int),
	}
}

// CellSize returns the grid cell size in meters.
func (si *SpatialIndex) CellSize() float64 { return si.cellSize }

// Build populates the index from the cloud's (x, y) projection and records
// the cloud's identity for stale detection. An empty cloud yields a valid
// index whose every query returns no indices.
func (si *SpatialIndex) Build(cloud *PointCloud) {
	points := cloud.Points()
	si.points = points
	si.cloudID = cloud.ID()
	si.revision = cloud.Revision()
	si.grid = make(map[int64][]int, len(points)/EstimatedPointsPerCell+1)

	for i, p := range points {
		cellID := pairCell(si.cellCoord(p.X), si.cellCoord(p.Y))
		si.grid[cellID] = append(si.grid[cellID], i)
	}
}

// QueryRadius returns the indices of all points whose planar distance from
// (cx, cy) is within radius, boundary inclusive, in unspecified order. Cost
// is proportional to the covered cells plus the result size, never the full
// point set.
func (si *SpatialIndex) QueryRadius(cloud *PointCloud, cx, cy, radius float64) ([]int, error) {
	if err := si.check(cloud); err != nil {
		return nil, err
	}
	if radius < 0 {
		return nil, fmt.Errorf("%w: negative query radius %g", ErrInvalidArgument, radius)
	}

	radius2 := radius * radius
	span := int64(math.Ceil(radius / si.cellSize))
	cellX := si.cellCoord(cx)
	cellY := si.cellCoord(cy)

	var matches []int
	for dx := -span; dx <= span; dx++ {
		for dy := -span; dy <= span; dy++ {
			for _, idx := range si.grid[pairCell(cellX+dx, cellY+dy)] {
				p := si.points[idx]
				ddx := p.X - cx
				ddy := p.Y - cy
				if ddx*ddx+ddy*ddy <= radius2 {
					matches = append(matches, idx)
				}
			}
		}
	}
	return matches, nil
}

// check validates that the queried cloud is the one the index was built for.
func (si *SpatialIndex) check(cloud *PointCloud) error {
	if cloud.ID() != si.cloudID || cloud.Revision() != si.revision {
		return fmt.Errorf("%w: built for layer %x revision %d, queried with layer %x revision %d",
			ErrStaleIndex, si.cloudID, si.revision, cloud.ID(), cloud.Revision())
	}
	return nil
}

func (si *SpatialIndex) cellCoord(v float64) int64 {
	return int64(math.Floor(v / si.cellSize))
}

// pairCell computes a unique cell identifier from signed cell coordinates
// using zigzag encoding followed by Szudzik's pairing function.
func pairCell(cellX, cellY int64) int64 {
	var a, b int64
	if cellX >= 0 {
		a = 2 * cellX
	} else {
		a = -2*cellX - 1
	}
	if cellY >= 0 {
		b = 2 * cellY
	} else {
		b = -2*cellY - 1
	}

	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}
