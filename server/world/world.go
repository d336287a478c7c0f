package world

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"sync"
	"sync/atomic"

	"github.com/df-mc/tileworld/server/world/chunk"
	"github.com/df-mc/tileworld/server/world/terrain"
	"github.com/google/uuid"
)

// World is an infinite two-dimensional tile world. Only the chunks around
// its Loaders are held in memory: they are generated in the background when a
// Loader approaches and evicted once every Loader has moved away.
type World struct {
	conf Config
	id   uuid.UUID

	store   *Store
	sched   *Scheduler
	pool    *generationPool
	overlay *overlay
	metrics *Metrics

	// tickMu serialises ticks and guards the scheduler and the worker pool.
	tickMu      sync.Mutex
	currentTick atomic.Int64
	tps         atomic.Uint64

	loaderMu sync.Mutex
	loaders  map[*Loader]struct{}

	o       sync.Once
	closed  atomic.Bool
	closing chan struct{}
	running sync.WaitGroup
}

// ID returns the unique ID of the World, generated when it was created.
func (w *World) ID() uuid.UUID {
	return w.id
}

// ChunkSize returns the side length of the chunks of the World in tiles.
func (w *World) ChunkSize() int {
	return w.conf.ChunkSize
}

// CurrentTick returns the number of ticks the World has performed.
func (w *World) CurrentTick() int64 {
	return w.currentTick.Load()
}

// TPS returns the average ticks per second of the World, measured by its
// internal tick loop. It is zero if the World does not tick itself.
func (w *World) TPS() float64 {
	return math.Float64frombits(w.tps.Load())
}

// Metrics returns the streaming metrics of the World.
func (w *World) Metrics() *Metrics {
	return w.metrics
}

// Store returns the Store holding the resident chunks of the World.
func (w *World) Store() *Store {
	return w.store
}

// Tick performs a single scheduling step: generated chunks are collected,
// chunks required by the Loaders are requested and chunks no Loader needs
// anymore are evicted. Viewers are notified of the resulting changes. Tick
// never generates chunks itself and is a no-op once the World is closed.
func (w *World) Tick() {
	w.tickMu.Lock()
	defer w.tickMu.Unlock()
	if w.closed.Load() {
		return
	}
	tick := w.currentTick.Add(1)

	loaders := w.allLoaders()
	areas := make([]Area, 0, len(loaders))
	active := loaders[:0]
	for _, l := range loaders {
		centre, r, ok := l.area(w.conf.ChunkSize)
		if !ok {
			continue
		}
		areas = append(areas, Area{Centre: centre, Radius: r})
		active = append(active, l)
	}
	w.sched.Tick(tick, areas)
	for i, l := range active {
		l.updateView(w.store, w.conf.Metric, areas[i].Centre, areas[i].Radius)
	}
}

// NewLoader creates a Loader at the origin of the World with the radius
// passed in chunks. If the radius is negative, the Radius of the Config is
// used. Radii above MaxRadius are reduced to MaxRadius. Chunks around the Loader are requested on the next tick. The Viewer
// passed may be nil.
func (w *World) NewLoader(radius int, v Viewer) *Loader {
	if radius < 0 {
		radius = w.conf.Radius
	}
	radius = clampRadius(radius)
	if v == nil {
		v = NopViewer{}
	}
	l := &Loader{w: w, viewer: v, r: radius, viewed: make(map[ChunkPos]*chunk.Chunk)}
	w.loaderMu.Lock()
	w.loaders[l] = struct{}{}
	w.loaderMu.Unlock()
	return l
}

// Loaders returns all Loaders currently attached to the World.
func (w *World) Loaders() []*Loader {
	return w.allLoaders()
}

func (w *World) allLoaders() []*Loader {
	w.loaderMu.Lock()
	defer w.loaderMu.Unlock()
	loaders := make([]*Loader, 0, len(w.loaders))
	for l := range w.loaders {
		loaders = append(loaders, l)
	}
	return loaders
}

func (w *World) removeLoader(l *Loader) {
	w.loaderMu.Lock()
	defer w.loaderMu.Unlock()
	delete(w.loaders, l)
}

// Chunk returns the chunk resident at pos. It never generates a chunk.
func (w *World) Chunk(pos ChunkPos) (*chunk.Chunk, bool) {
	return w.store.Chunk(pos)
}

// Chunks returns a snapshot of all resident chunks.
func (w *World) Chunks() iter.Seq2[ChunkPos, *chunk.Chunk] {
	return w.store.Chunks()
}

// ErrTileOutOfRange is returned for tiles whose chunk coordinates do not fit
// in a ChunkPos.
var ErrTileOutOfRange = errors.New("world: tile out of range")

// tileGenerator is implemented by generators that can produce a single tile
// without generating the chunk it is in.
type tileGenerator interface {
	Tile(pos TilePos) terrain.Type
}

// Tile returns the terrain type at pos. Edits made with SetTile take
// precedence, followed by the resident chunk at pos. If the chunk is not
// resident, the tile is generated without making the chunk resident, so
// Tile returns the same value regardless of what is loaded.
func (w *World) Tile(pos TilePos) (terrain.Type, error) {
	if !chunk.InRange(pos, w.conf.ChunkSize) {
		return 0, fmt.Errorf("%w: %v", ErrTileOutOfRange, pos)
	}
	if t, ok := w.overlay.tile(pos); ok {
		return t, nil
	}
	cp := chunk.PosOf(pos, w.conf.ChunkSize)
	if c, ok := w.store.Chunk(cp); ok {
		t, _ := c.Tile(pos)
		return t, nil
	}
	if g, ok := w.conf.Generator.(tileGenerator); ok {
		return g.Tile(pos), nil
	}
	c, err := w.conf.Generator.GenerateChunk(cp, w.conf.ChunkSize)
	if err != nil {
		return 0, err
	}
	x, y := chunk.Local(pos, w.conf.ChunkSize)
	return c.TileAt(x, y), nil
}

// SetTile overrides the terrain type at pos. The edit is kept in memory only,
// also while the chunk it is in is not resident. ErrTileOutOfRange is
// returned if pos lies outside the chunk range.
func (w *World) SetTile(pos TilePos, t terrain.Type) error {
	if !chunk.InRange(pos, w.conf.ChunkSize) {
		return fmt.Errorf("%w: %v", ErrTileOutOfRange, pos)
	}
	w.overlay.set(pos, t)
	return nil
}

// ClearTile removes an edit made with SetTile, restoring the generated
// terrain at pos. It reports if there was an edit.
func (w *World) ClearTile(pos TilePos) bool {
	if !chunk.InRange(pos, w.conf.ChunkSize) {
		return false
	}
	return w.overlay.clear(pos)
}

// Edits returns the edits made with SetTile within the chunk at pos.
func (w *World) Edits(pos ChunkPos) map[TilePos]terrain.Type {
	return w.overlay.chunkEdits(pos)
}

// Close stops the World from ticking and stops its generation workers.
// Generation tasks still queued are dropped. Close may be called more than
// once.
func (w *World) Close() error {
	w.o.Do(w.close)
	return nil
}

func (w *World) close() {
	close(w.closing)
	w.running.Wait()

	w.tickMu.Lock()
	defer w.tickMu.Unlock()
	w.closed.Store(true)
	w.pool.close()
	w.conf.Log.Debug("World closed.", "resident", w.store.Len())
}
