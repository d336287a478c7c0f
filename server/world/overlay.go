package world

import (
	"maps"
	"sync"

	"github.com/df-mc/tileworld/server/world/chunk"
	"github.com/df-mc/tileworld/server/world/terrain"
)

// overlay holds sparse tile edits made on top of generated terrain, grouped
// per chunk. Edits are independent of chunk residency: they survive eviction
// and apply again once the chunk is regenerated.
type overlay struct {
	size int

	mu    sync.RWMutex
	edits map[ChunkPos]map[TilePos]terrain.Type
}

func newOverlay(size int) *overlay {
	return &overlay{size: size, edits: make(map[ChunkPos]map[TilePos]terrain.Type)}
}

// tile returns the edited tile at pos, if any.
func (o *overlay) tile(pos TilePos) (terrain.Type, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	t, ok := o.edits[chunk.PosOf(pos, o.size)][pos]
	return t, ok
}

func (o *overlay) set(pos TilePos, t terrain.Type) {
	cp := chunk.PosOf(pos, o.size)

	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.edits[cp]
	if !ok {
		m = make(map[TilePos]terrain.Type)
		o.edits[cp] = m
	}
	m[pos] = t
}

// clear removes the edit at pos and reports if there was one.
func (o *overlay) clear(pos TilePos) bool {
	cp := chunk.PosOf(pos, o.size)

	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.edits[cp]
	if !ok {
		return false
	}
	if _, ok := m[pos]; !ok {
		return false
	}
	delete(m, pos)
	if len(m) == 0 {
		delete(o.edits, cp)
	}
	return true
}

// chunkEdits returns a copy of the edits within the chunk at pos.
func (o *overlay) chunkEdits(pos ChunkPos) map[TilePos]terrain.Type {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return maps.Clone(o.edits[pos])
}
