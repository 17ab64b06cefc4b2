package terrain

import "errors"

// ErrInvalidArgument marks contract violations in caller-supplied parameters
// (sample count below 2, non-positive tolerance, empty LOD configuration).
// Wrapped errors carry the offending value; match with errors.Is.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrStaleIndex is returned when a spatial index is queried with a point cloud
// whose identity or revision no longer matches the one the index was built
// against. It indicates a caller lifecycle bug, not recoverable input.
var ErrStaleIndex = errors.New("stale spatial index")
