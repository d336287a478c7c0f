package world

import (
	"maps"
	"slices"
	"sync"

	"github.com/df-mc/tileworld/server/world/chunk"
	"github.com/go-gl/mathgl/mgl64"
)

// Viewer is a viewer in the world. It can view chunks as they become resident
// around the Loader it is attached to. Its methods are called from the
// goroutine that ticks the World and must not call Loader.Close.
type Viewer interface {
	// ViewChunk views the chunk passed at a particular position. It is called
	// once for every chunk that becomes resident within the radius of the
	// Loader.
	ViewChunk(pos ChunkPos, c *chunk.Chunk)
	// HideChunk hides the chunk at the position passed, either because it was
	// evicted or because the Loader moved away from it.
	HideChunk(pos ChunkPos)
}

// NopViewer is a Viewer implementation that does not implement any
// behaviour. It may be embedded by other structs to prevent having to
// implement all of Viewer's methods.
type NopViewer struct{}

// Compile time check to make sure NopViewer implements Viewer.
var _ Viewer = NopViewer{}

func (NopViewer) ViewChunk(ChunkPos, *chunk.Chunk) {}
func (NopViewer) HideChunk(ChunkPos)               {}

// Loader represents an observer of a World. The chunks within its radius are
// kept resident by the World, which generates them in the background as the
// Loader moves. A Loader is created with World.NewLoader and is safe for
// concurrent use.
type Loader struct {
	w      *World
	viewer Viewer

	mu     sync.RWMutex
	pos    mgl64.Vec2
	r      int
	closed bool

	// viewMu guards viewed, the set of chunks passed to the Viewer with
	// ViewChunk and not hidden since.
	viewMu sync.Mutex
	viewed map[ChunkPos]*chunk.Chunk
}

// Move moves the Loader to the tile-space position passed. The chunks around
// the new position are requested on the next tick of the World.
func (l *Loader) Move(pos mgl64.Vec2) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pos = pos
}

// Position returns the tile-space position of the Loader.
func (l *Loader) Position() mgl64.Vec2 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pos
}

// MaxRadius is the largest radius in chunks a Loader may have. Larger radii
// are reduced to MaxRadius.
const MaxRadius = 64

// ChangeRadius changes the radius, in chunks, of the Loader. Negative radii
// are treated as 0 and radii above MaxRadius as MaxRadius.
func (l *Loader) ChangeRadius(r int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r = clampRadius(r)
}

func clampRadius(r int) int {
	return min(max(r, 0), MaxRadius)
}

// Radius returns the radius of the Loader in chunks.
func (l *Loader) Radius() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.r
}

// ChunkPos returns the position of the chunk the Loader is currently in.
func (l *Loader) ChunkPos() ChunkPos {
	return chunk.PosFromVec2(l.Position(), l.w.conf.ChunkSize)
}

// Chunk returns the chunk at pos if it was shown to the Viewer of the Loader.
func (l *Loader) Chunk(pos ChunkPos) (*chunk.Chunk, bool) {
	l.viewMu.Lock()
	defer l.viewMu.Unlock()
	c, ok := l.viewed[pos]
	return c, ok
}

// Viewed returns the positions of all chunks currently shown to the Viewer,
// sorted by X and then Y.
func (l *Loader) Viewed() []ChunkPos {
	l.viewMu.Lock()
	positions := slices.Collect(maps.Keys(l.viewed))
	l.viewMu.Unlock()
	slices.SortFunc(positions, comparePos)
	return positions
}

// Close detaches the Loader from its World and hides all chunks it was
// viewing. Chunks that are no longer required by any Loader are evicted on
// the next tick. Calling Close more than once is a no-op.
func (l *Loader) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.w.removeLoader(l)

	l.viewMu.Lock()
	defer l.viewMu.Unlock()
	for pos := range l.viewed {
		l.viewer.HideChunk(pos)
	}
	clear(l.viewed)
	return nil
}

// area returns the chunk the Loader is in and its radius, or false if the
// Loader was closed.
func (l *Loader) area(size int) (ChunkPos, int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ChunkPos{}, 0, false
	}
	return chunk.PosFromVec2(l.pos, size), l.r, true
}

// updateView shows the resident chunks within the radius of the Loader to its
// Viewer and hides the ones that were evicted or left the radius.
func (l *Loader) updateView(store *Store, metric DistanceMetric, centre ChunkPos, r int) {
	l.viewMu.Lock()
	defer l.viewMu.Unlock()
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return
	}
	for pos, c := range l.viewed {
		if current, ok := store.Chunk(pos); ok && current == c && metric.within(centre, pos, r) {
			continue
		}
		delete(l.viewed, pos)
		l.viewer.HideChunk(pos)
	}
	for pos := range chunksAround(centre, r) {
		if _, ok := l.viewed[pos]; ok || !metric.within(centre, pos, r) {
			continue
		}
		if c, ok := store.Chunk(pos); ok {
			l.viewed[pos] = c
			l.viewer.ViewChunk(pos, c)
		}
	}
}

// comparePos orders chunk positions by X and then Y.
func comparePos(a, b ChunkPos) int {
	if a[0] != b[0] {
		if a[0] < b[0] {
			return -1
		}
		return 1
	}
	if a[1] < b[1] {
		return -1
	} else if a[1] > b[1] {
		return 1
	}
	return 0
}
