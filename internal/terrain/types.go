// Package terrain implements the spatial query and sampling engine behind the
// height-profile and level-of-detail features: building a planar index over an
// in-memory point cloud, extracting elevation profiles along a line segment,
// and selecting decimated render subsets based on viewer distance.
package terrain

import (
	"math"

	"github.com/google/uuid"
)

// Vec3 is a position in world coordinates (meters).
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Norm returns the 3-D Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// PlanarDistance returns the 2-D (x, y) distance between v and o,
// discarding elevation.
func (v Vec3) PlanarDistance(o Vec3) float64 {
	dx := v.X - o.X
	dy := v.Y - o.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// LineSegment is a profile line between two world positions. A degenerate
// segment (Start == End) is legal; its length is zero.
type LineSegment struct {
	Start Vec3 `json:"start"`
	End   Vec3 `json:"end"`
}

// Length returns the 3-D Euclidean length of the segment.
func (l LineSegment) Length() float64 {
	return l.End.Sub(l.Start).Norm()
}

// Degenerate reports whether both endpoints coincide.
func (l LineSegment) Degenerate() bool {
	return l.Start == l.End
}

// Point is a single LiDAR return in world coordinates.
type Point struct {
	X, Y, Z        float64
	Intensity      uint8
	Classification uint8
}

// Bounds is an axis-aligned bounding box over a point set.
type Bounds struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

// Diagonal returns the length of the bounding box diagonal. Callers use it as
// a scene-size estimate when normalizing camera distance for LOD selection.
func (b Bounds) Diagonal() float64 {
	return b.Max.Sub(b.Min).Norm()
}

// PointCloud is an immutable ordered point set owned by a layer. The identity
// pair (ID, Revision) keys spatial-index caching: replacing a layer's data
// produces a cloud with the same ID and a bumped revision, never an in-place
// mutation.
type PointCloud struct {
	id       uuid.UUID
	revision uint64
	points   []Point
	bounds   Bounds
}

// NewPointCloud builds a point cloud with a fresh layer identity. The points
// slice is referenced, not copied; the caller must not mutate it afterwards.
func NewPointCloud(points []Point) *PointCloud {
	return &PointCloud{
		id:       uuid.New(),
		revision: 1,
		points:   points,
		bounds:   computeBounds(points),
	}
}

// WithPoints returns a new cloud carrying the same layer ID with the next
// revision. Indexes built against the receiver become stale.
func (pc *PointCloud) WithPoints(points []Point) *PointCloud {
	return &PointCloud{
		id:       pc.id,
		revision: pc.revision + 1,
		points:   points,
		bounds:   computeBounds(points),
	}
}

// ID returns the layer identity of the cloud.
func (pc *PointCloud) ID() uuid.UUID { return pc.id }

// Revision returns the data revision, starting at 1.
func (pc *PointCloud) Revision() uint64 { return pc.revision }

// Len returns the number of points.
func (pc *PointCloud) Len() int { return len(pc.points) }

// At returns the point at index i.
func (pc *PointCloud) At(i int) Point { return pc.points[i] }

// Points exposes the backing slice for bulk reads. Callers must treat it as
// read-only.
func (pc *PointCloud) Points() []Point { return pc.points }

// Bounds returns the axis-aligned bounding box computed at construction.
// The zero Bounds is returned for an empty cloud.
func (pc *PointCloud) Bounds() Bounds { return pc.bounds }

func computeBounds(points []Point) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	b := Bounds{
		Min: Vec3{X: points[0].X, Y: points[0].Y, Z: points[0].Z},
		Max: Vec3{X: points[0].X, Y: points[0].Y, Z: points[0].Z},
	}
	for _, p := range points[1:] {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Min.Z = math.Min(b.Min.Z, p.Z)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
		b.Max.Z = math.Max(b.Max.Z, p.Z)
	}
	return b
}
