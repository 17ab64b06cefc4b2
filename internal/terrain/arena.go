package terrain

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// IndexArena caches one SpatialIndex per layer, keyed by the cloud's layer ID
// and checked against its revision. Repeated profile and LOD requests against
// an unchanged layer are the common case, so the index is built once and
// reused until the layer's data changes identity.
//
// Rebuilds are build-then-publish: a replacement index is constructed outside
// the lock and swapped in atomically, so callers already querying the old
// instance finish against it untouched.
type IndexArena struct {
	mu       sync.RWMutex
	cellSize float64
	entries  map[uuid.UUID]*SpatialIndex
}

// NewIndexArena creates an arena building indexes with the given cell size.
func NewIndexArena(cellSize float64) *IndexArena {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &IndexArena{
		cellSize: cellSize,
		entries:  make(map[uuid.UUID]*SpatialIndex),
	}
}

// Index returns the cached index for the cloud's layer, building or
// rebuilding it when missing or stale.
func (a *IndexArena) Index(cloud *PointCloud) *SpatialIndex {
	a.mu.RLock()
	idx, ok := a.entries[cloud.ID()]
	a.mu.RUnlock()
	if ok && idx.revision == cloud.Revision() {
		return idx
	}

	fresh := NewSpatialIndex(a.cellSize)
	fresh.Build(cloud)
	log.Printf("arena: built spatial index for layer %s revision %d (%d points)",
		cloud.ID(), cloud.Revision(), cloud.Len())

	a.mu.Lock()
	defer a.mu.Unlock()
	// Another caller may have published a fresher index while we built.
	if current, ok := a.entries[cloud.ID()]; ok && current.revision >= cloud.Revision() {
		return current
	}
	a.entries[cloud.ID()] = fresh
	return fresh
}

// Invalidate drops the cached index for a layer. The next Index call
// rebuilds it.
func (a *IndexArena) Invalidate(layerID uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, layerID)
}

// Len returns the number of cached indexes.
func (a *IndexArena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}
