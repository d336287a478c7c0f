package world

import (
	"errors"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/df-mc/tileworld/server/world/chunk"
	"github.com/df-mc/tileworld/server/world/generator/noisegen"
	"github.com/df-mc/tileworld/server/world/terrain"
	"github.com/go-gl/mathgl/mgl64"
)

func newTestWorld(t *testing.T, conf Config) *World {
	t.Helper()
	w, err := conf.New()
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	t.Cleanup(func() {
		if err := w.Close(); err != nil {
			t.Fatalf("failed closing world: %v", err)
		}
	})
	return w
}

func noiseGenerator(t *testing.T, seed int64) *noisegen.Generator {
	t.Helper()
	g, err := noisegen.New(noisegen.Config{Seed: seed})
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	return g
}

// tickUntil ticks w until cond returns true, failing the test if that does
// not happen within five seconds.
func tickUntil(t *testing.T, w *World, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		w.Tick()
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("world did not converge: %d resident, %d in flight", w.store.Len(), w.sched.InFlight())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// settled reports if w holds n resident chunks and has nothing in flight.
func settled(w *World, n int) func() bool {
	return func() bool {
		return w.sched.InFlight() == 0 && w.store.Len() == n
	}
}

// chunkCentre returns the tile-space centre of the chunk at pos.
func chunkCentre(pos ChunkPos, size int) mgl64.Vec2 {
	return mgl64.Vec2{float64(int(pos[0])*size + size/2), float64(int(pos[1])*size + size/2)}
}

func residentPositions(w *World) []ChunkPos {
	positions := slices.Collect(w.store.Positions())
	slices.SortFunc(positions, comparePos)
	return positions
}

func square(centre ChunkPos, r int32) []ChunkPos {
	var positions []ChunkPos
	for x := centre[0] - r; x <= centre[0]+r; x++ {
		for y := centre[1] - r; y <= centre[1]+r; y++ {
			positions = append(positions, ChunkPos{x, y})
		}
	}
	return positions
}

func TestWorldLoadsRequiredSquare(t *testing.T) {
	w := newTestWorld(t, Config{ChunkSize: 16, Generator: noiseGenerator(t, 42)})
	l := w.NewLoader(1, nil)
	l.Move(chunkCentre(ChunkPos{}, 16))

	tickUntil(t, w, settled(w, 9))
	if got, want := residentPositions(w), square(ChunkPos{}, 1); !slices.Equal(got, want) {
		t.Fatalf("resident chunks = %v, want %v", got, want)
	}
	if m := w.Metrics().Snapshot(); m.Generated != 9 || m.Resident != 9 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestWorldMoveEvictsOldArea(t *testing.T) {
	w := newTestWorld(t, Config{ChunkSize: 16, Generator: noiseGenerator(t, 42)})
	l := w.NewLoader(1, nil)
	l.Move(chunkCentre(ChunkPos{}, 16))
	tickUntil(t, w, settled(w, 9))

	l.Move(chunkCentre(ChunkPos{5, 0}, 16))
	if got := l.ChunkPos(); got != (ChunkPos{5, 0}) {
		t.Fatalf("loader in chunk %v, want (5, 0)", got)
	}
	tickUntil(t, w, func() bool {
		_, ok := w.Chunk(ChunkPos{6, 1})
		return ok && settled(w, 9)()
	})
	if got, want := residentPositions(w), square(ChunkPos{5, 0}, 1); !slices.Equal(got, want) {
		t.Fatalf("resident chunks = %v, want %v", got, want)
	}
	if m := w.Metrics().Snapshot(); m.Evicted != 9 {
		t.Fatalf("expected 9 evictions, got %d", m.Evicted)
	}
}

func TestWorldHysteresisRetainsBorder(t *testing.T) {
	w := newTestWorld(t, Config{ChunkSize: 8, Hysteresis: 1})
	l := w.NewLoader(1, nil)
	tickUntil(t, w, settled(w, 9))

	l.Move(chunkCentre(ChunkPos{1, 0}, 8))
	tickUntil(t, w, settled(w, 12))
	if m := w.Metrics().Snapshot(); m.Evicted != 0 {
		t.Fatalf("expected no evictions within hysteresis, got %d", m.Evicted)
	}
	// Moving back must not regenerate anything.
	l.Move(chunkCentre(ChunkPos{}, 8))
	w.Tick()
	if m := w.Metrics().Snapshot(); m.Generated != 12 || m.InFlight != 0 {
		t.Fatalf("expected no regeneration, got %+v", m)
	}

	l.Move(chunkCentre(ChunkPos{3, 0}, 8))
	tickUntil(t, w, settled(w, 12))
	if m := w.Metrics().Snapshot(); m.Evicted != 6 {
		t.Fatalf("expected 6 evictions, got %d", m.Evicted)
	}
}

func TestWorldEuclideanMetric(t *testing.T) {
	w := newTestWorld(t, Config{ChunkSize: 4, Metric: Euclidean})
	w.NewLoader(2, nil)
	tickUntil(t, w, settled(w, 13))
	if _, ok := w.Chunk(ChunkPos{2, 2}); ok {
		t.Fatalf("corner chunk loaded with euclidean metric")
	}
}

func TestWorldRetriesFailedGeneration(t *testing.T) {
	var calls atomic.Int32
	gen := GeneratorFunc(func(pos ChunkPos, size int) (*chunk.Chunk, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("transient failure")
		}
		return NopGenerator{}.GenerateChunk(pos, size)
	})
	w := newTestWorld(t, Config{ChunkSize: 4, Generator: gen, GeneratorWorkers: 1})
	w.NewLoader(0, nil)

	tickUntil(t, w, settled(w, 1))
	if m := w.Metrics().Snapshot(); m.Failed != 1 || m.Generated != 1 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestWorldRecoversGeneratorPanic(t *testing.T) {
	var calls atomic.Int32
	gen := GeneratorFunc(func(pos ChunkPos, size int) (*chunk.Chunk, error) {
		if calls.Add(1) == 1 {
			panic("generator bug")
		}
		return NopGenerator{}.GenerateChunk(pos, size)
	})
	w := newTestWorld(t, Config{ChunkSize: 4, Generator: gen, GeneratorWorkers: 1})
	w.NewLoader(0, nil)

	tickUntil(t, w, settled(w, 1))
	if m := w.Metrics().Snapshot(); m.Failed != 1 {
		t.Fatalf("expected 1 failure, got %d", m.Failed)
	}
}

func TestWorldCancelsChunksLeavingRadius(t *testing.T) {
	release := make(chan struct{})
	gen := GeneratorFunc(func(pos ChunkPos, size int) (*chunk.Chunk, error) {
		if pos == (ChunkPos{}) {
			<-release
		}
		return NopGenerator{}.GenerateChunk(pos, size)
	})
	w := newTestWorld(t, Config{ChunkSize: 4, Generator: gen, GeneratorWorkers: 2})
	l := w.NewLoader(0, nil)
	w.Tick()
	if w.sched.InFlight() != 1 {
		t.Fatalf("expected origin chunk in flight")
	}

	l.Move(chunkCentre(ChunkPos{10, 0}, 4))
	w.Tick()
	close(release)

	tickUntil(t, w, settled(w, 1))
	if _, ok := w.Chunk(ChunkPos{}); ok {
		t.Fatalf("cancelled chunk became resident")
	}
	if _, ok := w.Chunk(ChunkPos{10, 0}); !ok {
		t.Fatalf("required chunk not resident")
	}
	if m := w.Metrics().Snapshot(); m.Cancelled != 1 {
		t.Fatalf("expected 1 cancellation, got %d", m.Cancelled)
	}
}

func TestWorldKeepsChunkRequiredAgainWhileGenerating(t *testing.T) {
	var generated atomic.Int32
	release := make(chan struct{})
	gen := GeneratorFunc(func(pos ChunkPos, size int) (*chunk.Chunk, error) {
		if pos == (ChunkPos{}) {
			<-release
			generated.Add(1)
		}
		return NopGenerator{}.GenerateChunk(pos, size)
	})
	w := newTestWorld(t, Config{ChunkSize: 4, Generator: gen, GeneratorWorkers: 2})
	l := w.NewLoader(0, nil)
	w.Tick()

	// Leave and come back before the origin chunk finished generating.
	l.Move(chunkCentre(ChunkPos{10, 0}, 4))
	w.Tick()
	l.Move(chunkCentre(ChunkPos{}, 4))
	close(release)
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := w.store.Chunk(ChunkPos{}); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("origin chunk was never generated")
		}
		time.Sleep(time.Millisecond)
	}

	tickUntil(t, w, settled(w, 1))
	if _, ok := w.Chunk(ChunkPos{}); !ok {
		t.Fatalf("origin chunk not resident")
	}
	if n := generated.Load(); n != 1 {
		t.Fatalf("origin chunk generated %d times, want 1", n)
	}
	if m := w.Metrics().Snapshot(); m.Generated != 1 {
		t.Fatalf("expected 1 generated chunk, got %+v", m)
	}
}

func TestWorldDispatchOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []ChunkPos
	)
	gen := GeneratorFunc(func(pos ChunkPos, size int) (*chunk.Chunk, error) {
		mu.Lock()
		order = append(order, pos)
		mu.Unlock()
		return NopGenerator{}.GenerateChunk(pos, size)
	})
	w := newTestWorld(t, Config{ChunkSize: 4, Generator: gen, GeneratorWorkers: 1, GeneratorQueueSize: 16})
	w.NewLoader(1, nil)
	tickUntil(t, w, settled(w, 9))

	want := []ChunkPos{{0, 0}, {-1, -1}, {-1, 0}, {0, -1}, {-1, 1}, {1, -1}, {0, 1}, {1, 0}, {1, 1}}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(order, want) {
		t.Fatalf("generation order = %v, want %v", order, want)
	}
}

func TestWorldDispatchBudget(t *testing.T) {
	w := newTestWorld(t, Config{ChunkSize: 4, DispatchBudget: 2})
	w.NewLoader(1, nil)
	w.Tick()
	if n := w.sched.InFlight(); n > 2 {
		t.Fatalf("expected at most 2 chunks in flight, got %d", n)
	}
	if m := w.Metrics().Snapshot(); m.Rejected != 7 {
		t.Fatalf("expected 7 rejected dispatches, got %d", m.Rejected)
	}
	tickUntil(t, w, settled(w, 9))
}

func TestWorldDeterministicTiles(t *testing.T) {
	pos := TilePos{1000, -1000}
	a := newTestWorld(t, Config{Generator: noiseGenerator(t, 42)})
	b := newTestWorld(t, Config{Generator: noiseGenerator(t, 42)})

	ta, err := a.Tile(pos)
	if err != nil {
		t.Fatalf("tile: %v", err)
	}
	// Load the chunk in one world only: residency must not change the tile.
	b.NewLoader(0, nil).Move(pos.Vec2())
	tickUntil(t, b, settled(b, 1))
	tb, err := b.Tile(pos)
	if err != nil {
		t.Fatalf("tile: %v", err)
	}
	if ta != tb {
		t.Fatalf("tile %v differs between worlds: %v != %v", pos, ta, tb)
	}
}

func TestWorldTileEdits(t *testing.T) {
	w := newTestWorld(t, Config{ChunkSize: 4})
	pos := TilePos{-5, 9}
	if err := w.SetTile(pos, terrain.Rock); err != nil {
		t.Fatalf("set tile: %v", err)
	}
	if got, _ := w.Tile(pos); got != terrain.Rock {
		t.Fatalf("edited tile = %v, want rock", got)
	}
	if edits := w.Edits(chunk.PosOf(pos, 4)); len(edits) != 1 {
		t.Fatalf("expected 1 edit, got %v", edits)
	}
	if !w.ClearTile(pos) {
		t.Fatalf("expected edit to be cleared")
	}
	if w.ClearTile(pos) {
		t.Fatalf("expected second clear to be a no-op")
	}
	if got, _ := w.Tile(pos); got != terrain.Water {
		t.Fatalf("cleared tile = %v, want water", got)
	}
}

func TestWorldTilesOutsideChunkRange(t *testing.T) {
	g := noiseGenerator(t, 42)
	w := newTestWorld(t, Config{ChunkSize: 16, Generator: g})
	w.NewLoader(0, nil)
	tickUntil(t, w, settled(w, 1))

	for i := range 16 {
		pos := TilePos{16<<32 + i, i}
		if _, err := w.Tile(pos); !errors.Is(err, ErrTileOutOfRange) {
			t.Fatalf("tile %v: expected ErrTileOutOfRange, got %v", pos, err)
		}
	}
	far := TilePos{-16<<32 - 1, 0}
	if err := w.SetTile(far, terrain.Rock); !errors.Is(err, ErrTileOutOfRange) {
		t.Fatalf("expected ErrTileOutOfRange setting %v, got %v", far, err)
	}
	if w.ClearTile(far) {
		t.Fatalf("expected no edit outside the chunk range")
	}
	if got, _ := w.Tile(TilePos{}); got != g.Tile(TilePos{}) {
		t.Fatalf("resident origin tile changed")
	}

	edge := TilePos{math.MaxInt32*16 + 15, math.MinInt32 * 16}
	got, err := w.Tile(edge)
	if err != nil {
		t.Fatalf("tile %v: %v", edge, err)
	}
	if want := g.Tile(edge); got != want {
		t.Fatalf("tile %v = %v, want %v", edge, got, want)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []Config{
		{ChunkSize: -1},
		{Radius: -1},
		{Radius: MaxRadius + 1},
		{Hysteresis: -1},
		{Metric: DistanceMetric(9)},
		{TickInterval: -time.Second},
	}
	for _, conf := range tests {
		if w, err := conf.New(); err == nil {
			_ = w.Close()
			t.Fatalf("expected error for config %+v", conf)
		}
	}
}

func TestWorldTicksItself(t *testing.T) {
	w := newTestWorld(t, Config{ChunkSize: 4, TickInterval: time.Millisecond})
	w.NewLoader(1, nil)
	deadline := time.Now().Add(5 * time.Second)
	for w.store.Len() != 9 {
		if time.Now().After(deadline) {
			t.Fatalf("world did not load chunks on its own")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if w.CurrentTick() == 0 {
		t.Fatalf("expected world to have ticked")
	}
}

func TestWorldCloseIsIdempotent(t *testing.T) {
	w, err := Config{ChunkSize: 4}.New()
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	w.NewLoader(1, nil)
	w.Tick()
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	tick := w.CurrentTick()
	w.Tick()
	if w.CurrentTick() != tick {
		t.Fatalf("closed world ticked")
	}
}
