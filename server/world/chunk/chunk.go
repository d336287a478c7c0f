// Package chunk implements the fixed-size square tile grids that make up a
// world, and the coordinate types used to address them.
package chunk

import (
	"fmt"
	"iter"

	"github.com/df-mc/tileworld/server/world/terrain"
	"github.com/segmentio/fasthash/fnv1a"
)

// Chunk is a square grid of terrain types with side length Size. Chunks are
// immutable: once constructed, the terrain of a chunk never changes, so a
// *Chunk may be shared with any number of readers without synchronisation.
type Chunk struct {
	pos   Pos
	size  int
	tiles []terrain.Type

	tick    int64
	version uint64
}

// New creates a chunk at pos from a row-major tile grid: the tile at local
// (x, y) is tiles[y*size+x]. New takes ownership of tiles; the caller must not
// modify the slice afterwards. New panics if len(tiles) != size*size.
func New(pos Pos, size int, tiles []terrain.Type) *Chunk {
	if size <= 0 || len(tiles) != size*size {
		panic(fmt.Sprintf("chunk: %d tiles do not form a grid of size %d", len(tiles), size))
	}
	return &Chunk{
		pos:     pos,
		size:    size,
		tiles:   tiles,
		version: digest(pos, size, tiles),
	}
}

// Pos returns the position of the chunk.
func (c *Chunk) Pos() Pos {
	return c.pos
}

// Size returns the side length of the chunk in tiles.
func (c *Chunk) Size() int {
	return c.size
}

// Tick returns the world tick at which the chunk became resident. It is zero
// for chunks that were never stamped with WithTick.
func (c *Chunk) Tick() int64 {
	return c.tick
}

// WithTick returns a copy of c stamped with tick. The tile grid is shared, not
// copied.
func (c *Chunk) WithTick(tick int64) *Chunk {
	cp := *c
	cp.tick = tick
	return &cp
}

// Version returns a digest of the position and terrain of the chunk. Two
// chunks with the same Version hold the same terrain, so consumers may key
// derived data, such as meshes, by it.
func (c *Chunk) Version() uint64 {
	return c.version
}

// TileAt returns the terrain type at the local position (x, y). TileAt panics
// if x or y lie outside [0, Size).
func (c *Chunk) TileAt(x, y int) terrain.Type {
	if x < 0 || y < 0 || x >= c.size || y >= c.size {
		panic(fmt.Sprintf("chunk: local position (%d, %d) out of bounds for chunk size %d", x, y, c.size))
	}
	return c.tiles[y*c.size+x]
}

// Tile returns the terrain type at the absolute tile position t. The bool
// returned is false if t does not lie in the chunk.
func (c *Chunk) Tile(t TilePos) (terrain.Type, bool) {
	if !InRange(t, c.size) || PosOf(t, c.size) != c.pos {
		return 0, false
	}
	x, y := Local(t, c.size)
	return c.tiles[y*c.size+x], true
}

// All returns a sequence of every tile in the chunk with its absolute tile
// position, in row-major order.
func (c *Chunk) All() iter.Seq2[TilePos, terrain.Type] {
	return func(yield func(TilePos, terrain.Type) bool) {
		origin := c.pos.Origin(c.size)
		for i, t := range c.tiles {
			pos := TilePos{origin[0] + i%c.size, origin[1] + i/c.size}
			if !yield(pos, t) {
				return
			}
		}
	}
}

// Count returns how many tiles of the chunk have the terrain type t.
func (c *Chunk) Count(t terrain.Type) int {
	n := 0
	for _, v := range c.tiles {
		if v == t {
			n++
		}
	}
	return n
}

func digest(pos Pos, size int, tiles []terrain.Type) uint64 {
	h := fnv1a.Init64
	h = fnv1a.AddUint64(h, uint64(uint32(pos[0]))<<32|uint64(uint32(pos[1])))
	h = fnv1a.AddUint64(h, uint64(size))
	for _, t := range tiles {
		h = fnv1a.AddUint64(h, uint64(t))
	}
	return h
}
